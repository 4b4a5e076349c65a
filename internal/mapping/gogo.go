package mapping

import (
	"errors"
	"fmt"
	"math"

	"github.com/rafidiit-ops/ReverseGoGo/internal/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// DegenerateDistance is the controller-to-HMD distance below which the
// direction to the controller is unreliable.
const DegenerateDistance = 0.05

var ErrInvalidConfig = errors.New("mapping: invalid config")

type GoGoConfig struct {
	Threshold     float64 `yaml:"threshold"`
	ScalingFactor float64 `yaml:"scaling_factor"`
	MaxExtension  float64 `yaml:"max_extension"`
}

func DefaultGoGoConfig() GoGoConfig {
	return GoGoConfig{Threshold: 0.3, ScalingFactor: 20, MaxExtension: 10}
}

func (c GoGoConfig) Validate() error {
	switch {
	case !(c.Threshold > 0):
		return fmt.Errorf("%w: gogo threshold must be positive, got %g", ErrInvalidConfig, c.Threshold)
	case c.ScalingFactor < 0:
		return fmt.Errorf("%w: gogo scaling factor must be >= 0, got %g", ErrInvalidConfig, c.ScalingFactor)
	case c.MaxExtension < c.Threshold:
		return fmt.Errorf("%w: gogo max extension %g below threshold %g", ErrInvalidConfig, c.MaxExtension, c.Threshold)
	}
	return nil
}

// Reach is the GoGo virtual hand for one tick.
type Reach struct {
	Point           r3.Vec
	Direction       r3.Vec
	RealDistance    float64
	VirtualDistance float64
	Degenerate      bool
}

// Amplification is the ratio of virtual to real reach.
func (r Reach) Amplification() float64 {
	if r.RealDistance <= 0 {
		return 1
	}
	return r.VirtualDistance / r.RealDistance
}

// VirtualDistance applies the GoGo curve to a real controller distance:
// 1:1 up to the threshold, real + k*(real-threshold)^2 beyond it, capped at
// MaxExtension. The result is never shorter than real.
func VirtualDistance(real float64, cfg GoGoConfig) float64 {
	if real <= cfg.Threshold {
		return real
	}
	beyond := real - cfg.Threshold
	v := real + cfg.ScalingFactor*beyond*beyond
	v = math.Min(v, cfg.MaxExtension)
	return math.Max(v, real)
}

// GoGo maps the controller pose to the virtual hand position. When the
// controller is almost inside the HMD the hand is parked threshold metres in
// front of the face.
func GoGo(hmd, controller geom.Pose, cfg GoGoConfig) Reach {
	real := geom.Distance(hmd.Position, controller.Position)
	if real < DegenerateDistance {
		fwd := hmd.Forward()
		return Reach{
			Point:           r3.Add(hmd.Position, r3.Scale(cfg.Threshold, fwd)),
			Direction:       fwd,
			RealDistance:    real,
			VirtualDistance: cfg.Threshold,
			Degenerate:      true,
		}
	}

	dir := r3.Unit(r3.Sub(controller.Position, hmd.Position))
	virtual := VirtualDistance(real, cfg)
	return Reach{
		Point:           r3.Add(hmd.Position, r3.Scale(virtual, dir)),
		Direction:       dir,
		RealDistance:    real,
		VirtualDistance: virtual,
	}
}

// RealDistance inverts VirtualDistance: it returns the controller distance
// whose GoGo reach is virtual. Distances past MaxExtension are unreachable
// and map to the real distance that first reaches the cap.
func RealDistance(virtual float64, cfg GoGoConfig) float64 {
	if virtual <= cfg.Threshold || cfg.ScalingFactor == 0 {
		return virtual
	}
	virtual = math.Min(virtual, cfg.MaxExtension)
	k := cfg.ScalingFactor
	// virtual = t + x + k*x^2 with x = real - t
	x := (-1 + math.Sqrt(1+4*k*(virtual-cfg.Threshold))) / (2 * k)
	return cfg.Threshold + x
}

// HandFor returns the controller position that puts the GoGo virtual hand
// at point.
func HandFor(hmd geom.Pose, point r3.Vec, cfg GoGoConfig) r3.Vec {
	dir := geom.Direction(hmd.Position, point, hmd.Forward())
	real := RealDistance(geom.Distance(hmd.Position, point), cfg)
	return r3.Add(hmd.Position, r3.Scale(real, dir))
}
