package depth

import (
	"testing"

	. "github.com/onsi/gomega"
	"github.com/rafidiit-ops/ReverseGoGo/internal/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestMultiplierInsideThreshold(t *testing.T) {
	g := NewWithT(t)
	cfg := DefaultConfig()

	for _, d := range []float64{0, 0.05, 0.1, 0.2999, 0.3} {
		g.Expect(Multiplier(d, cfg)).To(Equal(1.0), "distance %v", d)
	}
}

func TestMultiplierClampedJustBeyondThreshold(t *testing.T) {
	g := NewWithT(t)
	cfg := Config{Threshold: 0.3, Power: 2, MaxMultiplier: 10}

	// normalized = 0.05/0.3, raw = (1/0.2667)^2 ~ 14.06
	g.Expect(Multiplier(0.35, cfg)).To(BeNumerically("~", 10.0, 1e-12))

	unclamped := Config{Threshold: 0.3, Power: 2, MaxMultiplier: 100}
	g.Expect(Multiplier(0.35, unclamped)).To(BeNumerically("~", 14.0625, 1e-3))
}

func TestMultiplierBounds(t *testing.T) {
	g := NewWithT(t)
	cfg := Config{Threshold: 0.3, Power: 3, MaxMultiplier: 6}

	for d := 0.301; d < 3; d += 0.01 {
		m := Multiplier(d, cfg)
		g.Expect(m).To(BeNumerically(">=", 1))
		g.Expect(m).To(BeNumerically("<=", cfg.MaxMultiplier))
	}
}

func TestMultiplierGrowsAsHandRetracts(t *testing.T) {
	g := NewWithT(t)
	cfg := DefaultConfig()

	// The curve peaks near the threshold and falls off with reach: 0.35 m
	// already saturates at the 10x cap (see the clamped case above), so the
	// multiplier only grows as the hand comes back toward the body.
	prev := Multiplier(1.5, cfg)
	for d := 1.5; d > cfg.Threshold; d -= 0.005 {
		m := Multiplier(d, cfg)
		g.Expect(m).To(BeNumerically(">=", prev), "distance %v", d)
		prev = m
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"default", DefaultConfig(), true},
		{"zero threshold", Config{Threshold: 0, Power: 2, MaxMultiplier: 10}, false},
		{"power below one", Config{Threshold: 0.3, Power: 0.5, MaxMultiplier: 10}, false},
		{"max below one", Config{Threshold: 0.3, Power: 2, MaxMultiplier: 0.5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			err := tt.cfg.Validate()
			if tt.ok {
				g.Expect(err).NotTo(HaveOccurred())
			} else {
				g.Expect(err).To(MatchError(ErrInvalidConfig))
			}
		})
	}
}

func TestScalerUpdate(t *testing.T) {
	g := NewWithT(t)
	s := NewScaler(DefaultConfig())

	hmd := geom.At(r3.Vec{Y: 1.6})
	near := geom.At(r3.Vec{Y: 1.6, Z: 0.2})
	far := geom.At(r3.Vec{Y: 1.6, Z: 0.5})

	st := s.Update(hmd, near)
	g.Expect(st.BeyondThreshold).To(BeFalse())
	g.Expect(st.Multiplier).To(Equal(1.0))
	g.Expect(st.DistanceBeyondThreshold).To(Equal(0.0))

	st = s.Update(hmd, far)
	g.Expect(st.BeyondThreshold).To(BeTrue())
	g.Expect(st.DistanceBeyondThreshold).To(BeNumerically("~", 0.2, 1e-12))
	g.Expect(s.State()).To(Equal(st))
	g.Expect(s.ApplyScaling(r3.Vec{X: 1}).X).To(BeNumerically("~", st.Multiplier, 1e-12))
}
