package config

import (
	"sort"

	"github.com/rafidiit-ops/ReverseGoGo/internal/depth"
	"github.com/rafidiit-ops/ReverseGoGo/internal/mapping"
)

// Presets are named overrides applied on top of DefaultConfig.
var Presets = map[string]func(*Config){
	// quest2 matches a seated Quest 2 participant: short arm threshold and
	// a 72 Hz tick.
	"quest2": func(c *Config) {
		c.Depth = depth.Config{Threshold: 0.3, Power: 2, MaxMultiplier: 10}
		c.Sim.Dt = 1.0 / 72
	},
	"aggressive": func(c *Config) {
		c.Technique = "gogo"
		c.Depth = depth.Config{Threshold: 0.25, Power: 3, MaxMultiplier: 15}
		c.GoGo = mapping.GoGoConfig{Threshold: 0.25, ScalingFactor: 40, MaxExtension: 15}
		c.Reverse.Power = 3
		c.Reverse.MaxMultiplier = 15
	},
	"gentle": func(c *Config) {
		c.Depth = depth.Config{Threshold: 0.35, Power: 1, MaxMultiplier: 4}
		c.GoGo = mapping.GoGoConfig{Threshold: 0.35, ScalingFactor: 8, MaxExtension: 5}
		c.Reverse.Power = 1
		c.Reverse.MaxMultiplier = 4
	},
	"legacy": func(c *Config) {
		c.Technique = "legacy"
		c.Study.Placement = "immediate"
	},
}

// GetPreset returns a fresh config with the named preset applied, or nil.
func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
