// Package selection implements ray-based pre-selection: a bounded ray from
// the controller picks a hover target and keeps exactly one highlight alive.
package selection

import (
	"errors"
	"log/slog"

	"github.com/rafidiit-ops/ReverseGoGo/internal/depth"
	"github.com/rafidiit-ops/ReverseGoGo/internal/geom"
	"github.com/rafidiit-ops/ReverseGoGo/internal/log"
	"github.com/rafidiit-ops/ReverseGoGo/internal/world"
	"gonum.org/v1/gonum/spatial/r3"
)

var ErrMissingReference = errors.New("selection: missing world reference")

// Presenter receives the visual side effects of selection.
type Presenter interface {
	Highlight(entity int)
	ClearHighlight(entity int)
	Ray(visible bool, from, to r3.Vec)
}

type NopPresenter struct{}

func (NopPresenter) Highlight(int) {}
func (NopPresenter) ClearHighlight(int) {}
func (NopPresenter) Ray(bool, r3.Vec, r3.Vec) {}

type Config struct {
	RayLength float64 `yaml:"ray_length"`
}

func DefaultConfig() Config {
	return Config{RayLength: 3}
}

// State is the hover bookkeeping. Highlighted is the entity whose highlight
// is currently applied.
type State struct {
	Hover       int
	Highlighted int
	Locked      bool
}

type Ray struct {
	Visible  bool
	From, To r3.Vec
}

type Selector struct {
	cfg       Config
	world     *world.World
	presenter Presenter
	log       *slog.Logger

	state State
	ray   Ray
	err   error
}

// New builds a selector. A nil world leaves the selector inert: the error
// is logged, returned by Err, and Tick does nothing.
func New(cfg Config, w *world.World, p Presenter, logger *slog.Logger) *Selector {
	if p == nil {
		p = NopPresenter{}
	}
	s := &Selector{cfg: cfg, world: w, presenter: p, log: log.Or(logger).With("component", "selection")}
	if w == nil {
		s.err = ErrMissingReference
		s.log.Error("selector disabled", "err", s.err)
	}
	return s
}

func (s *Selector) Err() error   { return s.err }
func (s *Selector) State() State { return s.state }
func (s *Selector) Ray() Ray     { return s.ray }

// Current returns the hovered entity, or world.None.
func (s *Selector) Current() int { return s.state.Hover }

// Tick hides the ray while locked or while the controller is inside the
// depth threshold; otherwise it casts from the controller's forward axis.
func (s *Selector) Tick(controller geom.Pose, d depth.State) {
	if s.err != nil {
		return
	}

	if s.state.Locked || !d.BeyondThreshold {
		s.setRay(Ray{})
		if !s.state.Locked {
			s.clearHighlight()
			s.state.Hover = world.None
		}
		return
	}

	from := controller.Position
	fwd := controller.Forward()
	if hit, ok := s.world.Raycast(from, fwd, s.cfg.RayLength, world.Selectable); ok {
		s.state.Hover = hit.Entity.ID
		s.setRay(Ray{Visible: true, From: from, To: hit.Point})
		s.applyHighlight(hit.Entity.ID)
		return
	}

	s.clearHighlight()
	s.state.Hover = world.None
	s.setRay(Ray{Visible: true, From: from, To: r3.Add(from, r3.Scale(s.cfg.RayLength, fwd))})
}

// Lock freezes the hover and drops the highlight while something is held.
func (s *Selector) Lock() {
	s.state.Locked = true
	s.clearHighlight()
}

func (s *Selector) Unlock() {
	s.state.Locked = false
}

// Reset drops hover, highlight and lock.
func (s *Selector) Reset() {
	s.clearHighlight()
	s.state = State{}
	s.setRay(Ray{})
}

func (s *Selector) applyHighlight(id int) {
	if id == s.state.Highlighted {
		return
	}
	s.clearHighlight()
	s.presenter.Highlight(id)
	s.state.Highlighted = id
}

func (s *Selector) clearHighlight() {
	if s.state.Highlighted == world.None {
		return
	}
	s.presenter.ClearHighlight(s.state.Highlighted)
	s.state.Highlighted = world.None
}

func (s *Selector) setRay(r Ray) {
	s.ray = r
	s.presenter.Ray(r.Visible, r.From, r.To)
}
