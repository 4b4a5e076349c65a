package grab

import (
	"log/slog"

	"github.com/rafidiit-ops/ReverseGoGo/internal/geom"
	"github.com/rafidiit-ops/ReverseGoGo/internal/mapping"
	"github.com/rafidiit-ops/ReverseGoGo/internal/world"
	"gonum.org/v1/gonum/spatial/r3"
)

// TouchRadius is the radius of the virtual hand's proximity sphere.
const TouchRadius = 0.1

// GoGo is the traditional arm-extension technique: the virtual hand must
// touch an entity before grab picks it up.
type GoGo struct {
	machine
	cfg      mapping.GoGoConfig
	touching int
}

func NewGoGo(cfg mapping.GoGoConfig, w *world.World, sel Locker, owner *Owner, logger *slog.Logger) *GoGo {
	g := &GoGo{cfg: cfg}
	g.init(TraditionalGoGo, g, w, sel, owner, logger)
	return g
}

// Touching returns the entity under the virtual hand, or world.None.
func (g *GoGo) Touching() int { return g.touching }

func (g *GoGo) Reset() int {
	g.touching = world.None
	return g.machine.Reset()
}

func (g *GoGo) Tick(f Frame) Result {
	if g.err != nil {
		return Result{HandAnchor: mapping.Parked}
	}

	reach := mapping.GoGo(f.HMD, f.Controller, g.cfg)
	res := Result{VirtualPoint: reach.Point, HandAnchor: reach.Point, Reach: &reach}

	if g.phase == Grabbing {
		e, ok := g.held()
		if !ok || buttonUp(g.session) {
			res.Released = g.release("button")
			return res
		}
		target := r3.Add(reach.Point, g.session.PositionOffset)
		drive(e, target, 1, f.Dt)
		e.Pose.Rotation = geom.Compose(f.Controller.Orientation(), g.session.RotationOffset)
		return res
	}

	g.touching = g.touch(reach.Point)
	if g.touching == world.None {
		g.phase = Idle
		return res
	}
	g.phase = Touching

	if f.Actions != nil && f.Actions.Grab.Pressed() {
		e := g.world.Get(g.touching)
		s := Session{
			Mode:            ModeFollow,
			Button:          f.Actions.Grab,
			StartController: f.Controller,
			PositionOffset:  r3.Sub(e.Pose.Position, reach.Point),
			RotationOffset:  geom.Compose(geom.Inverse(f.Controller.Orientation()), e.Pose.Orientation()),
		}
		if g.start(e, s) {
			res.Started = e.ID
		}
	}
	return res
}

// touch keeps the current touch while it still overlaps, otherwise picks
// the nearest selectable entity in reach.
func (g *GoGo) touch(point r3.Vec) int {
	hits := g.world.Overlapping(point, TouchRadius, world.Selectable)
	for _, e := range hits {
		if e.ID == g.touching {
			return e.ID
		}
	}
	if len(hits) > 0 {
		return hits[0].ID
	}
	return world.None
}
