// Package depth computes the controller depth scaling used by the pulling
// techniques.
//
// The controller's distance from the HMD is compared against a threshold.
// Inside the threshold the multiplier is exactly 1. Beyond it the multiplier
// follows an inverse power curve that is largest just past the threshold and
// falls back toward 1 as the arm extends, so a short retraction near the body
// moves a pulled object a long way:
//
//	beyond     = max(0, distance - threshold)
//	normalized = beyond / threshold
//	multiplier = clamp((1 / (normalized + 0.1))^power, 1, maxMultiplier)
//
// The 0.1 term is a smoothing epsilon keeping the curve finite as normalized
// approaches zero.
package depth

import (
	"errors"
	"fmt"
	"math"

	"github.com/rafidiit-ops/ReverseGoGo/internal/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// SmoothingEpsilon is added to the normalized distance before inversion.
const SmoothingEpsilon = 0.1

var ErrInvalidConfig = errors.New("depth: invalid scaling config")

type Config struct {
	Threshold     float64 `yaml:"threshold"`
	Power         float64 `yaml:"power"`
	MaxMultiplier float64 `yaml:"max_multiplier"`
}

// DefaultConfig matches a Meta Quest 2 arm reach: 0.3 m threshold,
// quadratic curve, 10x cap.
func DefaultConfig() Config {
	return Config{Threshold: 0.3, Power: 2, MaxMultiplier: 10}
}

func (c Config) Validate() error {
	switch {
	case !(c.Threshold > 0):
		return fmt.Errorf("%w: threshold must be positive, got %g", ErrInvalidConfig, c.Threshold)
	case c.Power < 1:
		return fmt.Errorf("%w: power must be >= 1, got %g", ErrInvalidConfig, c.Power)
	case c.MaxMultiplier < 1:
		return fmt.Errorf("%w: max multiplier must be >= 1, got %g", ErrInvalidConfig, c.MaxMultiplier)
	}
	return nil
}

// Beyond returns how far distance reaches past the threshold, never negative.
func Beyond(distance float64, cfg Config) float64 {
	return math.Max(0, distance-cfg.Threshold)
}

// Multiplier returns the depth multiplier for a controller-to-HMD distance.
// It is exactly 1 when distance <= threshold and lies in [1, MaxMultiplier]
// otherwise.
func Multiplier(distance float64, cfg Config) float64 {
	beyond := Beyond(distance, cfg)
	if beyond == 0 {
		return 1
	}
	normalized := beyond / cfg.Threshold
	m := math.Pow(1/(normalized+SmoothingEpsilon), cfg.Power)
	return geom.Clamp(m, 1, math.Max(1, cfg.MaxMultiplier))
}

// State is the per-tick scaling snapshot. It has no identity and is rebuilt
// from live poses every tick.
type State struct {
	Config

	DistanceFromHMD         float64
	DistanceBeyondThreshold float64
	Multiplier              float64
	BeyondThreshold         bool
}

// Scaler keeps the latest State for the components that read it later in
// the same tick.
type Scaler struct {
	cfg   Config
	state State
}

func NewScaler(cfg Config) *Scaler {
	return &Scaler{cfg: cfg, state: State{Config: cfg, Multiplier: 1}}
}

func (s *Scaler) Config() Config { return s.cfg }
func (s *Scaler) State() State   { return s.state }

// Update recomputes the state from the HMD and controller poses.
func (s *Scaler) Update(hmd, controller geom.Pose) State {
	d := geom.Distance(hmd.Position, controller.Position)
	beyond := Beyond(d, s.cfg)
	s.state = State{
		Config:                  s.cfg,
		DistanceFromHMD:         d,
		DistanceBeyondThreshold: beyond,
		Multiplier:              Multiplier(d, s.cfg),
		BeyondThreshold:         beyond > 0,
	}
	return s.state
}

// ApplyScaling scales a movement delta by the current multiplier.
func (s *Scaler) ApplyScaling(delta r3.Vec) r3.Vec {
	return r3.Scale(s.state.Multiplier, delta)
}
