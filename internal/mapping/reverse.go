package mapping

import (
	"fmt"
	"math"

	"github.com/rafidiit-ops/ReverseGoGo/internal/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// Parked is where the virtual hand visual goes when nothing is held.
var Parked = r3.Vec{X: 1000, Y: 1000, Z: 1000}

// Attach moves the entity by the controller's translation since the grab
// started.
func Attach(entityStart, controllerStart, controller r3.Vec) r3.Vec {
	return r3.Add(entityStart, r3.Sub(controller, controllerStart))
}

type PullConfig struct {
	Power         float64 `yaml:"power"`
	MaxMultiplier float64 `yaml:"max_multiplier"`
	// AttachDistance is the entity-to-controller distance at which a
	// remote pull hands over to attach mode.
	AttachDistance float64 `yaml:"attach_distance"`
	// MinPullDistance floors the retraction range and the initial distance.
	MinPullDistance float64 `yaml:"min_pull_distance"`
	MinSpeedFactor  float64 `yaml:"min_speed_factor"`
}

func DefaultPullConfig() PullConfig {
	return PullConfig{
		Power:           2,
		MaxMultiplier:   10,
		AttachDistance:  0.15,
		MinPullDistance: 0.01,
		MinSpeedFactor:  0.1,
	}
}

func (c PullConfig) Validate() error {
	switch {
	case c.Power < 1:
		return fmt.Errorf("%w: pull power must be >= 1, got %g", ErrInvalidConfig, c.Power)
	case c.MaxMultiplier < 1:
		return fmt.Errorf("%w: pull max multiplier must be >= 1, got %g", ErrInvalidConfig, c.MaxMultiplier)
	case c.AttachDistance < 0:
		return fmt.Errorf("%w: attach distance must be >= 0, got %g", ErrInvalidConfig, c.AttachDistance)
	case !(c.MinPullDistance > 0):
		return fmt.Errorf("%w: min pull distance must be positive, got %g", ErrInvalidConfig, c.MinPullDistance)
	}
	return nil
}

// PullAnchor is what a remote pull captures when it starts.
type PullAnchor struct {
	EntityStart     r3.Vec
	ControllerStart r3.Vec
	// MaxPull is the controller's distance beyond the depth threshold at
	// grab start, i.e. how far the hand can retract before reaching it.
	MaxPull float64
	// InitialDistance is the entity-to-controller distance at grab start.
	InitialDistance float64
}

// Pull is one tick of a remote pull.
type Pull struct {
	Target               r3.Vec
	Progress             float64
	Eased                float64
	SpeedFactor          float64
	DistanceToController float64
}

// RemotePull interpolates the entity from its start toward the controller as
// the controller retracts. The speed factor shrinks as the entity closes in
// and only applies to velocity-driven bodies.
func RemotePull(a PullAnchor, controller, entity r3.Vec, cfg PullConfig) Pull {
	maxPull := math.Max(a.MaxPull, cfg.MinPullDistance)
	initial := math.Max(a.InitialDistance, cfg.MinPullDistance)

	retraction := geom.Distance(a.ControllerStart, controller)
	progress := geom.Clamp01(retraction / maxPull)
	eased := math.Pow(progress, cfg.Power)

	dist := geom.Distance(entity, controller)
	normalized := geom.Clamp01(dist / initial)
	speed := math.Pow(normalized, 1/cfg.Power) * cfg.MaxMultiplier
	speed = math.Max(cfg.MinSpeedFactor, speed)

	return Pull{
		Target:               geom.Lerp(a.EntityStart, controller, eased),
		Progress:             progress,
		Eased:                eased,
		SpeedFactor:          speed,
		DistanceToController: dist,
	}
}

// Arrived reports whether the pulled entity is close enough to the hand to
// switch to attach mode.
func (p Pull) Arrived(cfg PullConfig) bool {
	return p.DistanceToController < cfg.AttachDistance
}

type LegacyConfig struct {
	// MinGrabDistance auto-releases when the hand comes closer to the HMD.
	MinGrabDistance float64 `yaml:"min_grab_distance"`
	// MinScaleDistance floors the depth scale denominator.
	MinScaleDistance float64 `yaml:"min_scale_distance"`
}

func DefaultLegacyConfig() LegacyConfig {
	return LegacyConfig{MinGrabDistance: 0.3, MinScaleDistance: 0.5}
}

func (c LegacyConfig) Validate() error {
	if !(c.MinScaleDistance > 0) {
		return fmt.Errorf("%w: min scale distance must be positive, got %g", ErrInvalidConfig, c.MinScaleDistance)
	}
	return nil
}

// LegacyPull keeps the hand's x/y offset from the HMD 1:1 and scales its z
// offset by initialDistance over the current hand distance, pushed along the
// HMD forward axis.
func LegacyPull(hmd geom.Pose, controller r3.Vec, initialDistance float64, cfg LegacyConfig) r3.Vec {
	offset := r3.Sub(controller, hmd.Position)
	lateral := r3.Vec{X: offset.X, Y: offset.Y}
	scale := initialDistance / math.Max(r3.Norm(offset), cfg.MinScaleDistance)
	depth := r3.Scale(offset.Z*scale, hmd.Forward())
	return r3.Add(hmd.Position, r3.Add(lateral, depth))
}

// HandAnchor places the virtual hand visual between an entity and the
// camera, extent*1.2 away from the entity.
func HandAnchor(entity, camera r3.Vec, extent float64) r3.Vec {
	dir := geom.Direction(entity, camera, geom.Up)
	return r3.Add(entity, r3.Scale(extent*1.2, dir))
}
