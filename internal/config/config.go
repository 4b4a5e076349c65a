package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/rafidiit-ops/ReverseGoGo/internal/depth"
	"github.com/rafidiit-ops/ReverseGoGo/internal/grab"
	"github.com/rafidiit-ops/ReverseGoGo/internal/mapping"
	"github.com/rafidiit-ops/ReverseGoGo/internal/placement"
	"github.com/rafidiit-ops/ReverseGoGo/internal/selection"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt          = 1.0 / 72
	DefaultMaxDuration = 600.0
	DefaultLogEvery    = 120
	DefaultDataDir     = "UserStudyData"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Technique string               `yaml:"technique"`
	LogLevel  string               `yaml:"log_level"`
	Depth     depth.Config         `yaml:"depth"`
	GoGo      mapping.GoGoConfig   `yaml:"gogo"`
	Reverse   mapping.PullConfig   `yaml:"reverse"`
	Legacy    mapping.LegacyConfig `yaml:"legacy"`
	Selection selection.Config     `yaml:"selection"`
	Study     StudyConfig          `yaml:"study"`
	Recorder  RecorderConfig       `yaml:"recorder"`
	Sim       SimConfig            `yaml:"sim"`
}

type StudyConfig struct {
	// Placement is "deferred" or "immediate".
	Placement string `yaml:"placement"`
}

type RecorderConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
}

type SimConfig struct {
	Dt          float64 `yaml:"dt"`
	MaxDuration float64 `yaml:"max_duration"`
	// LogEvery is how many ticks pass between diagnostic log lines.
	LogEvery int `yaml:"log_every"`
}

func DefaultConfig() *Config {
	return &Config{
		Technique: grab.ReverseGoGo.String(),
		LogLevel:  "info",
		Depth:     depth.DefaultConfig(),
		GoGo:      mapping.DefaultGoGoConfig(),
		Reverse:   mapping.DefaultPullConfig(),
		Legacy:    mapping.DefaultLegacyConfig(),
		Selection: selection.DefaultConfig(),
		Study:     StudyConfig{Placement: placement.ModeDeferred.String()},
		Recorder:  RecorderConfig{Backend: "csv", Dir: DefaultDataDir},
		Sim: SimConfig{
			Dt:          DefaultDt,
			MaxDuration: DefaultMaxDuration,
			LogEvery:    DefaultLogEvery,
		},
	}
}

func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver reads path on top of base, so keys missing from the file keep
// base's values. base is modified and returned.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, base); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return base, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Kind returns the configured starting technique.
func (c *Config) Kind() (grab.Kind, error) {
	return grab.ParseKind(c.Technique)
}

func (c *Config) PlacementMode() (placement.Mode, error) {
	return placement.ParseMode(c.Study.Placement)
}

func (c *Config) Validate() error {
	if _, err := c.Kind(); err != nil {
		return err
	}
	if _, err := c.PlacementMode(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	for _, v := range []interface{ Validate() error }{c.Depth, c.GoGo, c.Reverse, c.Legacy} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	switch {
	case !(c.Selection.RayLength > 0):
		return fmt.Errorf("%w: ray length must be positive, got %g", ErrInvalid, c.Selection.RayLength)
	case !(c.Sim.Dt > 0):
		return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalid, c.Sim.Dt)
	case c.Sim.MaxDuration < 0:
		return fmt.Errorf("%w: max duration must be >= 0, got %g", ErrInvalid, c.Sim.MaxDuration)
	}
	return nil
}
