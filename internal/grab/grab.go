// Package grab holds the per-technique grab state machines: traditional
// GoGo touch-and-grab, ReverseGoGo attach and remote pull, and the legacy
// threshold pull. Exactly one technique is active at a time and the one
// holding an entity is published through Owner.
package grab

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rafidiit-ops/ReverseGoGo/internal/depth"
	"github.com/rafidiit-ops/ReverseGoGo/internal/geom"
	"github.com/rafidiit-ops/ReverseGoGo/internal/input"
	"github.com/rafidiit-ops/ReverseGoGo/internal/log"
	"github.com/rafidiit-ops/ReverseGoGo/internal/mapping"
	"github.com/rafidiit-ops/ReverseGoGo/internal/world"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrMissingReference = errors.New("grab: missing required reference")
	ErrUnknownTechnique = errors.New("grab: unknown technique")
)

type Kind int

const (
	TraditionalGoGo Kind = iota
	ReverseGoGo
	LegacyThresholdPull
)

func (k Kind) String() string {
	switch k {
	case TraditionalGoGo:
		return "gogo"
	case ReverseGoGo:
		return "reverse"
	case LegacyThresholdPull:
		return "legacy"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Label is the human readable technique name shown to participants.
func (k Kind) Label() string {
	switch k {
	case TraditionalGoGo:
		return "Traditional GoGo"
	case ReverseGoGo:
		return "ReverseGoGo"
	case LegacyThresholdPull:
		return "Legacy Threshold Pull"
	}
	return k.String()
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gogo", "traditional", "traditionalgogo":
		return TraditionalGoGo, nil
	case "reverse", "reversegogo":
		return ReverseGoGo, nil
	case "legacy", "legacythresholdpull", "threshold":
		return LegacyThresholdPull, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTechnique, s)
}

type Phase int

const (
	Idle Phase = iota
	Touching
	Grabbing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Touching:
		return "touching"
	case Grabbing:
		return "grabbing"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

type Mode int

const (
	ModeNone Mode = iota
	ModeFollow
	ModeAttach
	ModeRemotePull
	ModeLegacy
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeFollow:
		return "follow"
	case ModeAttach:
		return "attach"
	case ModeRemotePull:
		return "remote-pull"
	case ModeLegacy:
		return "legacy"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Session is a live grab. It exists only while a technique is Grabbing.
type Session struct {
	Entity int
	Mode   Mode
	// Button is the action that started the session; releasing it ends it.
	Button *input.Action

	StartController geom.Pose
	StartEntity     geom.Pose
	PositionOffset  r3.Vec
	RotationOffset  r3.Rotation

	Pull            mapping.PullAnchor
	InitialDistance float64

	hadGravity bool
}

// Frame is everything a technique reads in one tick.
type Frame struct {
	HMD        geom.Pose
	Controller geom.Pose
	Depth      depth.State
	Actions    *input.Actions
	// Hover is the selector's current hover, or world.None.
	Hover int
	Dt    float64
}

// Result reports what a technique did in one tick.
type Result struct {
	Started  int
	Released int
	// VirtualPoint is where the virtual hand is this tick.
	VirtualPoint r3.Vec
	// HandAnchor is where the hand visual should be drawn; mapping.Parked
	// when it should be hidden.
	HandAnchor r3.Vec
	Reach      *mapping.Reach
	Pull       *mapping.Pull
}

// Locker is the part of the selector a grab needs.
type Locker interface {
	Lock()
	Unlock()
}

type Technique interface {
	Kind() Kind
	Phase() Phase
	Session() (Session, bool)
	Held() int
	Tick(f Frame) Result
	// Reset releases any held entity and returns to Idle. It returns the
	// released entity, or world.None.
	Reset() int
	Err() error
}

// Owner publishes which technique currently holds an entity.
type Owner struct {
	holder Technique
}

func NewOwner() *Owner { return &Owner{} }

// Claim makes t the holder. It fails when another technique already holds.
func (o *Owner) Claim(t Technique) bool {
	if o.holder != nil && o.holder != t {
		return false
	}
	o.holder = t
	return true
}

func (o *Owner) Release(t Technique) {
	if o.holder == t {
		o.holder = nil
	}
}

func (o *Owner) Current() Technique { return o.holder }

// Held returns the entity held by the current owner, or world.None.
func (o *Owner) Held() int {
	if o == nil || o.holder == nil {
		return world.None
	}
	return o.holder.Held()
}

// machine is the grab bookkeeping shared by every technique.
type machine struct {
	kind  Kind
	self  Technique
	world *world.World
	sel   Locker
	owner *Owner
	log   *slog.Logger

	phase   Phase
	session Session
	err     error
}

func (m *machine) init(kind Kind, self Technique, w *world.World, sel Locker, owner *Owner, logger *slog.Logger) {
	m.kind = kind
	m.self = self
	m.world = w
	m.sel = sel
	m.owner = owner
	if m.owner == nil {
		m.owner = NewOwner()
	}
	m.log = log.Or(logger).With("component", "grab", "technique", kind.String())
	if w == nil || sel == nil {
		m.err = ErrMissingReference
		m.log.Error("technique disabled", "err", m.err, "world", w != nil, "selector", sel != nil)
	}
}

func (m *machine) Kind() Kind   { return m.kind }
func (m *machine) Phase() Phase { return m.phase }
func (m *machine) Err() error   { return m.err }

func (m *machine) Session() (Session, bool) {
	return m.session, m.phase == Grabbing
}

func (m *machine) Held() int {
	if m.phase != Grabbing {
		return world.None
	}
	return m.session.Entity
}

func (m *machine) Reset() int {
	released := world.None
	if m.phase == Grabbing {
		released = m.release("reset")
	}
	m.phase = Idle
	return released
}

// start opens a session on e. A second grab while grabbing is a no-op.
func (m *machine) start(e *world.Entity, s Session) bool {
	if m.phase == Grabbing || e == nil {
		return false
	}
	if !m.owner.Claim(m.self) {
		m.log.Warn("grab refused, another technique holds an entity", "entity", e.Name)
		return false
	}
	s.Entity = e.ID
	s.StartEntity = e.Pose
	if b := e.Body; b != nil {
		s.hadGravity = b.UseGravity
		b.UseGravity = false
		b.Velocity = r3.Vec{}
		b.AngularVelocity = r3.Vec{}
	}
	m.sel.Lock()
	m.session = s
	m.phase = Grabbing
	m.log.Info("grab", "entity", e.Name, "mode", s.Mode.String())
	return true
}

// release ends the session and hands the entity back to physics.
func (m *machine) release(reason string) int {
	id := m.session.Entity
	if e := m.world.Get(id); e != nil {
		if b := e.Body; b != nil {
			b.UseGravity = m.session.hadGravity
			b.Velocity = r3.Vec{}
			b.AngularVelocity = r3.Vec{}
			b.FreezeRotation = false
		}
		m.log.Info("release", "entity", e.Name, "reason", reason)
	}
	m.sel.Unlock()
	m.owner.Release(m.self)
	m.session = Session{}
	m.phase = Idle
	return id
}

// held returns the grabbed entity, releasing the session if it vanished.
func (m *machine) held() (*world.Entity, bool) {
	e := m.world.Get(m.session.Entity)
	if e == nil {
		m.log.Warn("grabbed entity missing", "entity", m.session.Entity)
		return nil, false
	}
	return e, true
}

// drive moves e toward target. Dynamic bodies get a velocity that covers the
// gap in one tick, scaled by speed. Everything else is placed directly.
func drive(e *world.Entity, target r3.Vec, speed, dt float64) {
	if !e.Dynamic() || dt <= 0 {
		e.Pose.Position = target
		return
	}
	gap := r3.Sub(target, e.Pose.Position)
	e.Body.Velocity = r3.Scale(speed/dt, gap)
	e.Body.AngularVelocity = r3.Vec{}
	e.Body.FreezeRotation = true
}

func buttonUp(s Session) bool {
	return s.Button == nil || !s.Button.Held()
}
