package metrics

import (
	"github.com/rafidiit-ops/ReverseGoGo/internal/testbed"
	"github.com/rafidiit-ops/ReverseGoGo/internal/world"
)

// HoldFraction is the share of ticks spent holding an entity.
type HoldFraction struct {
	name    string
	held    int
	samples int
}

func NewHoldFraction() *HoldFraction {
	return &HoldFraction{name: "hold_fraction"}
}

func (h *HoldFraction) Name() string {
	return h.name
}

func (h *HoldFraction) Observe(s testbed.Snapshot) {
	h.samples++
	if s.Held != world.None {
		h.held++
	}
}

func (h *HoldFraction) Value() float64 {
	if h.samples == 0 {
		return 0
	}
	return float64(h.held) / float64(h.samples)
}

func (h *HoldFraction) Reset() {
	h.held = 0
	h.samples = 0
}

// Grabs counts started grab sessions.
type Grabs struct {
	n int
}

func NewGrabs() *Grabs { return &Grabs{} }

func (g *Grabs) Name() string { return "grabs" }

func (g *Grabs) Observe(s testbed.Snapshot) {
	if s.Started != world.None {
		g.n++
	}
}

func (g *Grabs) Value() float64 { return float64(g.n) }
func (g *Grabs) Reset()         { g.n = 0 }

// Placements counts placement judgements, or only wrong ones.
type Placements struct {
	name      string
	wrongOnly bool
	n         int
}

func NewPlacements() *Placements { return &Placements{name: "placements"} }

func NewMisplacements() *Placements {
	return &Placements{name: "misplacements", wrongOnly: true}
}

func (p *Placements) Name() string { return p.name }

func (p *Placements) Observe(s testbed.Snapshot) {
	for _, ev := range s.Events {
		if !p.wrongOnly || !ev.IsCorrect {
			p.n++
		}
	}
}

func (p *Placements) Value() float64 { return float64(p.n) }
func (p *Placements) Reset()         { p.n = 0 }
