package grab

import (
	"log/slog"

	"github.com/rafidiit-ops/ReverseGoGo/internal/geom"
	"github.com/rafidiit-ops/ReverseGoGo/internal/mapping"
	"github.com/rafidiit-ops/ReverseGoGo/internal/world"
)

// Legacy is the threshold pull variant: lateral hand motion maps 1:1 and
// depth is rescaled so that the entity keeps its grab-time distance when
// the arm is extended.
type Legacy struct {
	machine
	cfg mapping.LegacyConfig
}

func NewLegacy(cfg mapping.LegacyConfig, w *world.World, sel Locker, owner *Owner, logger *slog.Logger) *Legacy {
	l := &Legacy{cfg: cfg}
	l.init(LegacyThresholdPull, l, w, sel, owner, logger)
	return l
}

func (l *Legacy) Tick(f Frame) Result {
	res := Result{VirtualPoint: f.Controller.Position, HandAnchor: mapping.Parked}
	if l.err != nil {
		return res
	}

	if l.phase != Grabbing {
		if f.Actions == nil || f.Hover == world.None || !f.Actions.Grab.Pressed() {
			return res
		}
		e := l.world.Get(f.Hover)
		if e == nil || !e.Selectable {
			return res
		}
		s := Session{
			Mode:            ModeLegacy,
			Button:          f.Actions.Grab,
			StartController: f.Controller,
			InitialDistance: geom.Distance(f.HMD.Position, e.Pose.Position),
		}
		if l.start(e, s) {
			res.Started = e.ID
		}
		return res
	}

	e, ok := l.held()
	if !ok || buttonUp(l.session) {
		res.Released = l.release("button")
		return res
	}
	if geom.Distance(f.HMD.Position, f.Controller.Position) < l.cfg.MinGrabDistance {
		res.Released = l.release("hand too close")
		return res
	}

	target := mapping.LegacyPull(f.HMD, f.Controller.Position, l.session.InitialDistance, l.cfg)
	drive(e, target, 1, f.Dt)
	res.VirtualPoint = target
	return res
}
