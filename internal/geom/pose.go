// Package geom holds the pose and vector helpers shared by the interaction
// components. Vectors are gonum r3.Vec values in a right-handed world frame
// with +Y up and +Z forward.
package geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Identity is the no-op rotation.
var Identity = r3.Rotation{Real: 1}

var (
	Forward = r3.Vec{Z: 1}
	Up      = r3.Vec{Y: 1}
	Right   = r3.Vec{X: 1}
)

// Pose is a position and orientation read from tracking once per tick.
// A zero Rotation is treated as Identity.
type Pose struct {
	Position r3.Vec
	Rotation r3.Rotation
}

func At(p r3.Vec) Pose {
	return Pose{Position: p, Rotation: Identity}
}

func (p Pose) Orientation() r3.Rotation {
	if p.Rotation == (r3.Rotation{}) {
		return Identity
	}
	return p.Rotation
}

// Forward returns the unit forward axis of the pose.
func (p Pose) Forward() r3.Vec {
	return p.Orientation().Rotate(Forward)
}

func Distance(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// Direction returns the unit vector from a to b, or fallback when the points
// coincide.
func Direction(a, b, fallback r3.Vec) r3.Vec {
	d := r3.Sub(b, a)
	if r3.Norm2(d) == 0 {
		return fallback
	}
	return r3.Unit(d)
}

func Lerp(a, b r3.Vec, t float64) r3.Vec {
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}

func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Compose returns the rotation that applies b and then a.
func Compose(a, b r3.Rotation) r3.Rotation {
	return r3.Rotation(quat.Mul(quat.Number(a), quat.Number(b)))
}

// Inverse returns the inverse of a unit rotation.
func Inverse(r r3.Rotation) r3.Rotation {
	return r3.Rotation(quat.Conj(quat.Number(r)))
}

// YawPitch builds an orientation turned yaw radians about +Y and then
// pitched up by pitch radians.
func YawPitch(yaw, pitch float64) r3.Rotation {
	return Compose(r3.NewRotation(yaw, Up), r3.NewRotation(-pitch, Right))
}

// LookAt returns the orientation whose forward axis points from "from" to
// "to". Roll is always zero.
func LookAt(from, to r3.Vec) r3.Rotation {
	d := r3.Sub(to, from)
	if r3.Norm2(d) == 0 {
		return Identity
	}
	yaw := math.Atan2(d.X, d.Z)
	pitch := math.Atan2(d.Y, math.Hypot(d.X, d.Z))
	return YawPitch(yaw, pitch)
}

// Finite reports whether every component of v is a finite number.
func Finite(v r3.Vec) bool {
	for _, c := range [...]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
