package geom

import (
	"math"
	"testing"

	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestForwardOfZeroPose(t *testing.T) {
	g := NewWithT(t)

	var p Pose
	g.Expect(p.Forward()).To(Equal(Forward))
}

func TestLookAt(t *testing.T) {
	tests := []struct {
		name string
		to   r3.Vec
	}{
		{"ahead", r3.Vec{Z: 2}},
		{"right", r3.Vec{X: 1}},
		{"up and left", r3.Vec{X: -1, Y: 1, Z: 1}},
		{"behind", r3.Vec{Z: -3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			p := Pose{Rotation: LookAt(r3.Vec{}, tt.to)}
			want := r3.Unit(tt.to)
			got := p.Forward()
			g.Expect(got.X).To(BeNumerically("~", want.X, 1e-9))
			g.Expect(got.Y).To(BeNumerically("~", want.Y, 1e-9))
			g.Expect(got.Z).To(BeNumerically("~", want.Z, 1e-9))
		})
	}
}

func TestInverseComposeIsIdentity(t *testing.T) {
	g := NewWithT(t)

	r := YawPitch(0.7, -0.3)
	v := r3.Vec{X: 1, Y: 2, Z: 3}
	back := Compose(Inverse(r), r).Rotate(v)

	g.Expect(back.X).To(BeNumerically("~", v.X, 1e-9))
	g.Expect(back.Y).To(BeNumerically("~", v.Y, 1e-9))
	g.Expect(back.Z).To(BeNumerically("~", v.Z, 1e-9))
}

func TestLerpAndClamp(t *testing.T) {
	g := NewWithT(t)

	g.Expect(Lerp(r3.Vec{}, r3.Vec{X: 2}, 0.25)).To(Equal(r3.Vec{X: 0.5}))
	g.Expect(Clamp01(-1)).To(Equal(0.0))
	g.Expect(Clamp01(2)).To(Equal(1.0))
	g.Expect(Direction(r3.Vec{}, r3.Vec{}, Up)).To(Equal(Up))
	g.Expect(Finite(r3.Vec{X: math.NaN()})).To(BeFalse())
}
