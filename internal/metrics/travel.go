package metrics

import (
	"github.com/rafidiit-ops/ReverseGoGo/internal/geom"
	"github.com/rafidiit-ops/ReverseGoGo/internal/testbed"
	"gonum.org/v1/gonum/spatial/r3"
)

// HandTravel is the path length of the real controller in metres.
type HandTravel struct {
	last  r3.Vec
	seen  bool
	total float64
}

func NewHandTravel() *HandTravel { return &HandTravel{} }

func (h *HandTravel) Name() string { return "hand_travel" }

func (h *HandTravel) Observe(s testbed.Snapshot) {
	p := s.Controller.Position
	if h.seen {
		h.total += geom.Distance(h.last, p)
	}
	h.last = p
	h.seen = true
}

func (h *HandTravel) Value() float64 { return h.total }

func (h *HandTravel) Reset() {
	h.total = 0
	h.seen = false
}

// Default returns the metrics a study run reports.
func Default() []testbed.Metric {
	return []testbed.Metric{
		NewMeanAmplification(),
		NewPeakAmplification(),
		NewHoldFraction(),
		NewGrabs(),
		NewPlacements(),
		NewMisplacements(),
		NewHandTravel(),
	}
}
