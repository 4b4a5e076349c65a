// Package testbed wires the interaction components into one fixed-order
// tick over a headless world: depth scaling, selection, the active grab
// technique, body integration, placement and the study.
package testbed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/rafidiit-ops/ReverseGoGo/internal/automation"
	"github.com/rafidiit-ops/ReverseGoGo/internal/config"
	"github.com/rafidiit-ops/ReverseGoGo/internal/depth"
	"github.com/rafidiit-ops/ReverseGoGo/internal/geom"
	"github.com/rafidiit-ops/ReverseGoGo/internal/grab"
	"github.com/rafidiit-ops/ReverseGoGo/internal/input"
	"github.com/rafidiit-ops/ReverseGoGo/internal/log"
	"github.com/rafidiit-ops/ReverseGoGo/internal/mapping"
	"github.com/rafidiit-ops/ReverseGoGo/internal/placement"
	"github.com/rafidiit-ops/ReverseGoGo/internal/selection"
	"github.com/rafidiit-ops/ReverseGoGo/internal/study"
	"github.com/rafidiit-ops/ReverseGoGo/internal/world"
	"gonum.org/v1/gonum/spatial/r3"
)

var ErrNoRecorder = errors.New("testbed: recorder is required")

// Frame is the tracked input for one tick.
type Frame struct {
	HMD        geom.Pose
	Controller geom.Pose
	Buttons    input.Snapshot
}

// Snapshot is the observable state after a tick.
type Snapshot struct {
	Tick      int
	Time      float64
	Technique grab.Kind
	ModeName  string
	Phase     grab.Phase

	HMD        geom.Pose
	Controller geom.Pose
	Depth      depth.State

	Hover       int
	Highlighted int
	Ray         selection.Ray

	Held         int
	Started      int
	Released     int
	VirtualPoint r3.Vec
	HandAnchor   r3.Vec
	Reach        *mapping.Reach
	Pull         *mapping.Pull

	Events []placement.Event
	Study  study.State
	Record *study.TrialRecord
}

// Metric accumulates a value over the snapshots of a run.
type Metric interface {
	Name() string
	Observe(s Snapshot)
	Value() float64
	Reset()
}

type Observer interface {
	OnTick(s Snapshot)
}

type ObserverFunc func(Snapshot)

func (f ObserverFunc) OnTick(s Snapshot) { f(s) }

type Testbed struct {
	cfg     *config.Config
	session string
	log     *slog.Logger

	World     *world.World
	Scaler    *depth.Scaler
	Selector  *selection.Selector
	Owner     *grab.Owner
	Switcher  *grab.Switcher
	Evaluator *placement.Evaluator
	Study     *study.Controller

	objects []*world.Entity
	home    map[int]geom.Pose
	actions *input.Actions
	state   study.State

	tick      int
	now       float64
	records   []study.TrialRecord
	metrics   []Metric
	observers []Observer
}

// New builds the default study scene for cfg.
func New(cfg *config.Config, rec study.Recorder, logger *slog.Logger) (*Testbed, error) {
	return NewWithLayout(cfg, DefaultLayout(), rec, logger)
}

func NewWithLayout(cfg *config.Config, layout Layout, rec study.Recorder, logger *slog.Logger) (*Testbed, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNoRecorder
	}
	kind, _ := cfg.Kind()
	mode, _ := cfg.PlacementMode()

	session := uuid.New().String()
	lg := log.Or(logger).With("session", session)

	w := world.New()
	objects, zones := layout.build(w)

	tb := &Testbed{
		cfg:     cfg,
		session: session,
		log:     lg,
		World:   w,
		Scaler:  depth.NewScaler(cfg.Depth),
		Owner:   grab.NewOwner(),
		objects: objects,
		home:    make(map[int]geom.Pose, len(objects)),
		actions: input.NewActions(),
	}
	for _, e := range objects {
		tb.home[e.ID] = e.Pose
	}

	tb.Selector = selection.New(cfg.Selection, w, nil, lg)
	tb.Switcher = grab.NewSwitcher(lg,
		grab.NewGoGo(cfg.GoGo, w, tb.Selector, tb.Owner, lg),
		grab.NewReverse(cfg.Reverse, w, tb.Selector, tb.Owner, lg),
		grab.NewLegacy(cfg.Legacy, w, tb.Selector, tb.Owner, lg),
	)
	if _, err := tb.Switcher.SwitchTo(kind); err != nil {
		return nil, err
	}
	tb.Evaluator = placement.NewEvaluator(mode, nil, lg, zones...)
	tb.Study = study.NewController(rec, study.ResetFunc(tb.resetScene), lg)
	tb.state = tb.Study.Start(0)

	lg.Info("testbed ready", "technique", kind.Label(), "placement", mode.String(), "objects", len(objects))
	return tb, nil
}

func (tb *Testbed) Config() *config.Config       { return tb.cfg }
func (tb *Testbed) Session() string              { return tb.session }
func (tb *Testbed) Now() float64                 { return tb.now }
func (tb *Testbed) State() study.State           { return tb.state }
func (tb *Testbed) Records() []study.TrialRecord { return tb.records }
func (tb *Testbed) Objects() []*world.Entity     { return tb.objects }

func (tb *Testbed) AddMetric(m Metric)     { tb.metrics = append(tb.metrics, m) }
func (tb *Testbed) AddObserver(o Observer) { tb.observers = append(tb.observers, o) }

// Step runs one tick in fixed order.
func (tb *Testbed) Step(f Frame) Snapshot {
	dt := tb.cfg.Sim.Dt
	tb.actions.Update(f.Buttons)

	// a switch drops whatever was held; at most one entity is held at a time
	switched := world.None
	if tb.actions.ToggleMode.Pressed() {
		next, released := tb.Switcher.Toggle()
		if len(released) > 0 {
			switched = released[0]
		}
		tb.log.Info("mode toggled", "technique", next.Label(), "released", switched)
	}

	d := tb.Scaler.Update(f.HMD, f.Controller)
	tb.Selector.Tick(f.Controller, d)

	active := tb.Switcher.Active()
	res := active.Tick(grab.Frame{
		HMD:        f.HMD,
		Controller: f.Controller,
		Depth:      d,
		Actions:    tb.actions,
		Hover:      tb.Selector.Current(),
		Dt:         dt,
	})

	if res.Released == world.None {
		res.Released = switched
	}

	tb.World.Integrate(dt)

	held := tb.Owner.Held()
	events := tb.Evaluator.Tick(tb.World, held, res.Released)

	tb.now += dt
	tb.tick++

	var rec *study.TrialRecord
	tb.state, rec = tb.Study.Tick(tb.state, study.Input{Now: tb.now, Held: held, Events: events})
	if rec != nil {
		tb.records = append(tb.records, *rec)
	}

	snap := Snapshot{
		Tick:         tb.tick,
		Time:         tb.now,
		Technique:    active.Kind(),
		ModeName:     tb.Switcher.ModeName(),
		Phase:        active.Phase(),
		HMD:          f.HMD,
		Controller:   f.Controller,
		Depth:        d,
		Hover:        tb.Selector.Current(),
		Highlighted:  tb.Selector.State().Highlighted,
		Ray:          tb.Selector.Ray(),
		Held:         tb.Owner.Held(),
		Started:      res.Started,
		Released:     res.Released,
		VirtualPoint: res.VirtualPoint,
		HandAnchor:   res.HandAnchor,
		Reach:        res.Reach,
		Pull:         res.Pull,
		Events:       events,
		Study:        tb.state,
		Record:       rec,
	}

	if n := tb.cfg.Sim.LogEvery; n > 0 && tb.tick%n == 0 {
		tb.log.Debug("tick",
			"tick", tb.tick,
			"technique", snap.ModeName,
			"phase", snap.Phase.String(),
			"hmd_distance", d.DistanceFromHMD,
			"beyond", d.DistanceBeyondThreshold,
			"multiplier", d.Multiplier)
		if snap.Reach != nil {
			tb.log.Debug("gogo reach",
				"real", snap.Reach.RealDistance,
				"virtual", snap.Reach.VirtualDistance,
				"amplification", snap.Reach.Amplification())
		}
	}

	for _, m := range tb.metrics {
		m.Observe(snap)
	}
	for _, o := range tb.observers {
		o.OnTick(snap)
	}
	return snap
}

// Result summarises a scripted run.
type Result struct {
	Session  string
	Ticks    int
	Duration float64
	Records  []study.TrialRecord
	Metrics  map[string]float64
}

// Run plays the scenario until it ends or MaxDuration elapses. ctx is
// checked between ticks.
func (tb *Testbed) Run(ctx context.Context, p *automation.Player) (*Result, error) {
	if tb.cfg.Sim.Dt <= 0 {
		return nil, fmt.Errorf("dt must be positive, got %f", tb.cfg.Sim.Dt)
	}
	for _, m := range tb.metrics {
		m.Reset()
	}

	res := &Result{Session: tb.session, Metrics: make(map[string]float64)}
	startTick, startRecords := tb.tick, len(tb.records)

	for !p.Done() {
		select {
		case <-ctx.Done():
			tb.fill(res, startTick, startRecords)
			return res, ctx.Err()
		default:
		}
		if limit := tb.cfg.Sim.MaxDuration; limit > 0 && tb.now >= limit {
			tb.log.Warn("scenario cut short", "max_duration", limit)
			break
		}
		t := p.Next(tb, tb.cfg.Sim.Dt)
		tb.Step(Frame{HMD: t.HMD, Controller: t.Controller, Buttons: t.Buttons})
	}

	tb.fill(res, startTick, startRecords)
	return res, nil
}

func (tb *Testbed) fill(res *Result, startTick, startRecords int) {
	res.Ticks = tb.tick - startTick
	res.Duration = float64(res.Ticks) * tb.cfg.Sim.Dt
	res.Records = append([]study.TrialRecord(nil), tb.records[startRecords:]...)
	for _, m := range tb.metrics {
		res.Metrics[m.Name()] = m.Value()
	}
}

// resetScene runs when a participant finishes: zones are cleared and every
// object goes back to where it started.
func (tb *Testbed) resetScene() {
	tb.Evaluator.Reset()
	for _, e := range tb.objects {
		e.Pose = tb.home[e.ID]
		if e.Body != nil {
			e.Body.Velocity = r3.Vec{}
			e.Body.AngularVelocity = r3.Vec{}
		}
	}
	tb.log.Info("scene reset")
}

// Locate finds an entity by name or a zone by label.
func (tb *Testbed) Locate(name string) (r3.Vec, bool) {
	if e := tb.World.FindByName(name); e != nil {
		return e.Pose.Position, true
	}
	if z := tb.Evaluator.Zone(name); z != nil {
		return z.Center, true
	}
	return r3.Vec{}, false
}

// HandFor inverts the active technique's hand mapping.
func (tb *Testbed) HandFor(hmd geom.Pose, point r3.Vec) r3.Vec {
	if tb.Switcher.Active().Kind() == grab.TraditionalGoGo {
		return mapping.HandFor(hmd, point, tb.cfg.GoGo)
	}
	return point
}

// CarryTo returns where the controller has to go for the held entity to
// end up at goal.
func (tb *Testbed) CarryTo(hmd geom.Pose, controller, goal r3.Vec) (r3.Vec, bool) {
	active := tb.Switcher.Active()
	s, ok := active.Session()
	if !ok {
		return controller, false
	}
	e := tb.World.Get(s.Entity)
	if e == nil {
		return controller, false
	}
	if active.Kind() == grab.TraditionalGoGo {
		return mapping.HandFor(hmd, r3.Sub(goal, s.PositionOffset), tb.cfg.GoGo), true
	}
	return r3.Add(controller, r3.Sub(goal, e.Pose.Position)), true
}
