package metrics

import (
	"math"

	"github.com/rafidiit-ops/ReverseGoGo/internal/testbed"
)

// Amplification tracks the GoGo virtual-to-real reach ratio on ticks where
// the arm is extended past the threshold.
type Amplification struct {
	name    string
	peak    bool
	sum     float64
	max     float64
	samples int
}

func NewMeanAmplification() *Amplification {
	return &Amplification{name: "mean_amplification"}
}

func NewPeakAmplification() *Amplification {
	return &Amplification{name: "peak_amplification", peak: true}
}

func (a *Amplification) Name() string {
	return a.name
}

func (a *Amplification) Observe(s testbed.Snapshot) {
	if s.Reach == nil || !s.Depth.BeyondThreshold {
		return
	}
	r := s.Reach.Amplification()
	a.sum += r
	a.max = math.Max(a.max, r)
	a.samples++
}

func (a *Amplification) Value() float64 {
	if a.samples == 0 {
		return 1
	}
	if a.peak {
		return a.max
	}
	return a.sum / float64(a.samples)
}

func (a *Amplification) Reset() {
	a.sum = 0
	a.max = 0
	a.samples = 0
}
