package grab

import (
	"fmt"
	"log/slog"

	"github.com/rafidiit-ops/ReverseGoGo/internal/log"
	"github.com/rafidiit-ops/ReverseGoGo/internal/world"
)

// Switcher keeps the registered techniques and dispatches to the active one.
type Switcher struct {
	order  []Technique
	active int
	log    *slog.Logger
}

// NewSwitcher registers ts in toggle order. The first one starts active.
func NewSwitcher(logger *slog.Logger, ts ...Technique) *Switcher {
	return &Switcher{order: ts, log: log.Or(logger).With("component", "switcher")}
}

func (s *Switcher) Active() Technique {
	if len(s.order) == 0 {
		return nil
	}
	return s.order[s.active]
}

func (s *Switcher) Techniques() []Technique { return s.order }

// SwitchTo activates kind. Every technique is reset, so nothing stays held
// across a switch; the entities released by the reset are returned.
func (s *Switcher) SwitchTo(kind Kind) ([]int, error) {
	for i, t := range s.order {
		if t.Kind() == kind {
			released := s.resetAll()
			s.active = i
			s.log.Info("technique switched", "technique", kind.Label(), "released", len(released))
			return released, nil
		}
	}
	return nil, fmt.Errorf("%w: %s not registered", ErrUnknownTechnique, kind)
}

// Toggle advances to the next registered technique.
func (s *Switcher) Toggle() (Kind, []int) {
	if len(s.order) == 0 {
		return 0, nil
	}
	next := s.order[(s.active+1)%len(s.order)].Kind()
	released, _ := s.SwitchTo(next)
	return next, released
}

// ModeName describes the active technique, including the ReverseGoGo
// sub-mode while a session is live.
func (s *Switcher) ModeName() string {
	t := s.Active()
	if t == nil {
		return "none"
	}
	if sess, ok := t.Session(); ok && t.Kind() == ReverseGoGo {
		return fmt.Sprintf("%s (%s)", t.Kind().Label(), sess.Mode)
	}
	return t.Kind().Label()
}

func (s *Switcher) resetAll() []int {
	var released []int
	for _, t := range s.order {
		if id := t.Reset(); id != world.None {
			released = append(released, id)
		}
	}
	return released
}
