package mapping

import (
	"math"
	"math/rand"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/rafidiit-ops/ReverseGoGo/internal/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

var head = geom.At(r3.Vec{Y: 1.6})

func TestGoGoInsideThresholdIsOneToOne(t *testing.T) {
	g := NewWithT(t)
	cfg := DefaultGoGoConfig()

	ctrl := geom.At(r3.Vec{X: 0.1, Y: 1.5, Z: 0.2})
	r := GoGo(head, ctrl, cfg)

	g.Expect(r.Degenerate).To(BeFalse())
	g.Expect(r.VirtualDistance).To(BeNumerically("~", r.RealDistance, 1e-12))
	g.Expect(geom.Distance(r.Point, ctrl.Position)).To(BeNumerically("<", 1e-12))
	g.Expect(r.Amplification()).To(BeNumerically("~", 1, 1e-12))
}

func TestGoGoBeyondThreshold(t *testing.T) {
	g := NewWithT(t)
	cfg := DefaultGoGoConfig()

	ctrl := geom.At(r3.Vec{Y: 1.6, Z: 0.5})
	r := GoGo(head, ctrl, cfg)

	// 0.5 + 20 * 0.2^2 = 1.3
	g.Expect(r.VirtualDistance).To(BeNumerically("~", 1.3, 1e-9))
	g.Expect(r.Point.Z).To(BeNumerically("~", 1.3, 1e-9))
	g.Expect(r.Point.Y).To(BeNumerically("~", 1.6, 1e-12))
}

func TestGoGoClampsToMaxExtension(t *testing.T) {
	g := NewWithT(t)
	cfg := GoGoConfig{Threshold: 0.3, ScalingFactor: 20, MaxExtension: 2}

	r := GoGo(head, geom.At(r3.Vec{Y: 1.6, Z: 0.9}), cfg)
	g.Expect(r.VirtualDistance).To(Equal(2.0))
}

func TestGoGoDegenerateFallsBackInFrontOfHMD(t *testing.T) {
	g := NewWithT(t)
	cfg := DefaultGoGoConfig()

	hmd := geom.Pose{Position: r3.Vec{Y: 1.6}, Rotation: geom.YawPitch(math.Pi/2, 0)}
	r := GoGo(hmd, geom.At(r3.Vec{X: 0.01, Y: 1.6}), cfg)

	g.Expect(r.Degenerate).To(BeTrue())
	g.Expect(r.Point.X).To(BeNumerically("~", cfg.Threshold, 1e-9))
	g.Expect(r.Point.Y).To(BeNumerically("~", 1.6, 1e-9))
	g.Expect(r.Point.Z).To(BeNumerically("~", 0, 1e-9))
}

func TestGoGoNeverAttenuates(t *testing.T) {
	g := NewWithT(t)
	cfg := DefaultGoGoConfig()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 2000; i++ {
		dir := r3.Unit(r3.Vec{X: rng.Float64()*2 - 1, Y: rng.Float64()*2 - 1, Z: rng.Float64()*2 - 1})
		dist := DegenerateDistance + rng.Float64()*1.2
		ctrl := geom.At(r3.Add(head.Position, r3.Scale(dist, dir)))

		r := GoGo(head, ctrl, cfg)
		g.Expect(r.VirtualDistance).To(BeNumerically(">=", r.RealDistance-1e-12))
		g.Expect(r.VirtualDistance).To(BeNumerically("<=", cfg.MaxExtension))
		g.Expect(geom.Distance(head.Position, r.Point)).To(BeNumerically("~", r.VirtualDistance, 1e-9))
	}
}

func TestAttach(t *testing.T) {
	g := NewWithT(t)

	got := Attach(r3.Vec{X: 1, Z: 3}, r3.Vec{Z: 0.5}, r3.Vec{X: 0.1, Y: 0.2, Z: 0.4})
	g.Expect(got.X).To(BeNumerically("~", 1.1, 1e-12))
	g.Expect(got.Y).To(BeNumerically("~", 0.2, 1e-12))
	g.Expect(got.Z).To(BeNumerically("~", 2.9, 1e-12))
}

func TestRemotePullProgress(t *testing.T) {
	g := NewWithT(t)
	cfg := DefaultPullConfig()
	anchor := PullAnchor{
		EntityStart:     r3.Vec{Y: 1, Z: 3},
		ControllerStart: r3.Vec{Y: 1.4, Z: 0.6},
		MaxPull:         0.3,
		InitialDistance: 2.44,
	}

	start := RemotePull(anchor, anchor.ControllerStart, anchor.EntityStart, cfg)
	g.Expect(start.Progress).To(Equal(0.0))
	g.Expect(start.Target).To(Equal(anchor.EntityStart))

	half := RemotePull(anchor, r3.Vec{Y: 1.4, Z: 0.45}, anchor.EntityStart, cfg)
	g.Expect(half.Progress).To(BeNumerically("~", 0.5, 1e-9))
	g.Expect(half.Eased).To(BeNumerically("~", 0.25, 1e-9))

	ctrl := r3.Vec{Y: 1.4, Z: 0.2}
	full := RemotePull(anchor, ctrl, anchor.EntityStart, cfg)
	g.Expect(full.Progress).To(Equal(1.0))
	g.Expect(geom.Distance(full.Target, ctrl)).To(BeNumerically("<", 1e-12))
}

func TestRemotePullSpeedFactor(t *testing.T) {
	g := NewWithT(t)
	cfg := DefaultPullConfig()
	anchor := PullAnchor{ControllerStart: r3.Vec{Z: 0.6}, MaxPull: 0.3, InitialDistance: 2}

	far := RemotePull(anchor, r3.Vec{Z: 0.6}, r3.Vec{Z: 2.6}, cfg)
	g.Expect(far.SpeedFactor).To(BeNumerically("~", cfg.MaxMultiplier, 1e-9))

	atHand := RemotePull(anchor, r3.Vec{Z: 0.6}, r3.Vec{Z: 0.6}, cfg)
	g.Expect(atHand.SpeedFactor).To(Equal(cfg.MinSpeedFactor))
	g.Expect(atHand.Arrived(cfg)).To(BeTrue())
	g.Expect(far.Arrived(cfg)).To(BeFalse())
}

func TestRemotePullZeroRangeIsFloored(t *testing.T) {
	g := NewWithT(t)

	p := RemotePull(PullAnchor{}, r3.Vec{Z: 1}, r3.Vec{Z: 2}, DefaultPullConfig())
	g.Expect(geom.Finite(p.Target)).To(BeTrue())
	g.Expect(math.IsNaN(p.SpeedFactor)).To(BeFalse())
}

func TestLegacyPull(t *testing.T) {
	g := NewWithT(t)
	cfg := DefaultLegacyConfig()

	// hand 0.6 m straight ahead, entity started 3 m away: z scaled by 3/0.6
	got := LegacyPull(head, r3.Vec{X: 0.1, Y: 1.6, Z: 0.6}, 3, cfg)
	g.Expect(got.X).To(BeNumerically("~", 0.1, 1e-12))
	g.Expect(got.Y).To(BeNumerically("~", 1.6, 1e-12))
	g.Expect(got.Z).To(BeNumerically("~", 0.6*3/math.Hypot(0.1, 0.6), 1e-9))

	// inside the floor the scale denominator stays at MinScaleDistance
	near := LegacyPull(head, r3.Vec{Y: 1.6, Z: 0.2}, 3, cfg)
	g.Expect(near.Z).To(BeNumerically("~", 0.2*3/cfg.MinScaleDistance, 1e-9))
}

func TestHandAnchor(t *testing.T) {
	g := NewWithT(t)

	got := HandAnchor(r3.Vec{Z: 3}, r3.Vec{}, 0.5)
	g.Expect(got.Z).To(BeNumerically("~", 3-0.6, 1e-12))
}

func TestConfigValidation(t *testing.T) {
	g := NewWithT(t)

	g.Expect(DefaultGoGoConfig().Validate()).To(Succeed())
	g.Expect(DefaultPullConfig().Validate()).To(Succeed())
	g.Expect(DefaultLegacyConfig().Validate()).To(Succeed())
	g.Expect(GoGoConfig{Threshold: 1, MaxExtension: 0.5}.Validate()).To(MatchError(ErrInvalidConfig))
	g.Expect(PullConfig{Power: 2, MaxMultiplier: 10}.Validate()).To(MatchError(ErrInvalidConfig))
	g.Expect(LegacyConfig{}.Validate()).To(MatchError(ErrInvalidConfig))
}

func TestRealDistanceInvertsGoGo(t *testing.T) {
	g := NewWithT(t)
	cfg := DefaultGoGoConfig()

	for _, real := range []float64{0.1, 0.3, 0.45, 0.6, 0.9} {
		v := VirtualDistance(real, cfg)
		g.Expect(RealDistance(v, cfg)).To(BeNumerically("~", real, 1e-9), "real %g", real)
	}

	point := r3.Vec{X: 0.4, Y: 0.8, Z: 2}
	hand := HandFor(head, point, cfg)
	g.Expect(geom.Distance(GoGo(head, geom.At(hand), cfg).Point, point)).To(BeNumerically("<", 1e-9))
}
