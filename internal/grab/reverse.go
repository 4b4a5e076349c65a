package grab

import (
	"log/slog"
	"math"

	"github.com/rafidiit-ops/ReverseGoGo/internal/geom"
	"github.com/rafidiit-ops/ReverseGoGo/internal/mapping"
	"github.com/rafidiit-ops/ReverseGoGo/internal/world"
	"gonum.org/v1/gonum/spatial/r3"
)

// Reverse is the ReverseGoGo technique. The trigger attaches the hovered
// entity to the hand's motion; the grab button pulls it in as the hand
// retracts toward the body, switching to attach once it arrives.
type Reverse struct {
	machine
	cfg mapping.PullConfig
}

func NewReverse(cfg mapping.PullConfig, w *world.World, sel Locker, owner *Owner, logger *slog.Logger) *Reverse {
	r := &Reverse{cfg: cfg}
	r.init(ReverseGoGo, r, w, sel, owner, logger)
	return r
}

func (r *Reverse) Tick(f Frame) Result {
	res := Result{VirtualPoint: f.Controller.Position, HandAnchor: mapping.Parked}
	if r.err != nil {
		return res
	}

	if r.phase != Grabbing {
		r.tryStart(f, &res)
		return res
	}

	e, ok := r.held()
	if !ok || buttonUp(r.session) {
		res.Released = r.release("button")
		return res
	}

	switch r.session.Mode {
	case ModeAttach:
		target := mapping.Attach(r.session.StartEntity.Position, r.session.StartController.Position, f.Controller.Position)
		drive(e, target, 1, f.Dt)
	case ModeRemotePull:
		pull := mapping.RemotePull(r.session.Pull, f.Controller.Position, e.Pose.Position, r.cfg)
		speed := 1.0
		if e.Dynamic() {
			speed = pullSpeed(e.Pose.Position, pull.Target, f.Controller.Position, pull.SpeedFactor)
		}
		drive(e, pull.Target, speed, f.Dt)
		res.Pull = &pull
		if pull.Arrived(r.cfg) {
			r.attachPulled(e, f)
		}
	}
	res.HandAnchor = mapping.HandAnchor(e.Pose.Position, f.HMD.Position, e.Extent())
	return res
}

func (r *Reverse) tryStart(f Frame, res *Result) {
	if f.Actions == nil || f.Hover == world.None {
		return
	}
	e := r.world.Get(f.Hover)
	if e == nil || !e.Selectable {
		return
	}

	s := Session{StartController: f.Controller}
	switch {
	case f.Actions.Trigger.Pressed():
		s.Mode = ModeAttach
		s.Button = f.Actions.Trigger
	case f.Actions.Grab.Pressed():
		s.Mode = ModeRemotePull
		s.Button = f.Actions.Grab
		s.Pull = mapping.PullAnchor{
			EntityStart:     e.Pose.Position,
			ControllerStart: f.Controller.Position,
			MaxPull:         f.Depth.DistanceBeyondThreshold,
			InitialDistance: geom.Distance(e.Pose.Position, f.Controller.Position),
		}
	default:
		return
	}
	if r.start(e, s) {
		res.Started = e.ID
		res.HandAnchor = mapping.HandAnchor(e.Pose.Position, f.HMD.Position, e.Extent())
	}
}

// pullSpeed limits the pull speed factor so one scaled step never carries
// the entity past the controller. An entity that has run ahead of its target
// falls back at unit speed.
func pullSpeed(pos, target, controller r3.Vec, factor float64) float64 {
	gap := r3.Sub(target, pos)
	n := r3.Norm(gap)
	if factor <= 1 || n == 0 {
		return factor
	}
	toHand := r3.Sub(controller, pos)
	if r3.Dot(gap, toHand) <= 0 {
		return 1
	}
	return math.Min(factor, r3.Norm(toHand)/n)
}

// attachPulled hands a remote pull over to attach mode, re-anchoring both
// start poses. Arrival is judged on the distance before this tick's move.
// The starting button still owns the session.
func (r *Reverse) attachPulled(e *world.Entity, f Frame) {
	r.session.Mode = ModeAttach
	r.session.StartEntity = e.Pose
	r.session.StartController = f.Controller
	r.log.Info("pull complete, attached", "entity", e.Name)
}
