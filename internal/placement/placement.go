// Package placement evaluates whether entities dropped into labelled zones
// match the zone's colour.
package placement

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/rafidiit-ops/ReverseGoGo/internal/geom"
	"github.com/rafidiit-ops/ReverseGoGo/internal/log"
	"github.com/rafidiit-ops/ReverseGoGo/internal/world"
	"gonum.org/v1/gonum/spatial/r3"
)

// Colors are the zone labels used by the study scene.
var Colors = []string{"red", "green", "blue", "yellow"}

// Mode selects when a zone entry is judged.
type Mode int

const (
	// ModeDeferred judges an entity that enters while held only once it is
	// released inside the zone.
	ModeDeferred Mode = iota
	// ModeImmediate judges on entry.
	ModeImmediate
)

func (m Mode) String() string {
	switch m {
	case ModeDeferred:
		return "deferred"
	case ModeImmediate:
		return "immediate"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "deferred":
		return ModeDeferred, nil
	case "immediate":
		return ModeImmediate, nil
	}
	return 0, fmt.Errorf("placement: unknown mode %q", s)
}

// Visualizer switches a zone's look between its normal and success state.
type Visualizer interface {
	ZoneNormal(label string)
	ZoneSuccess(label string)
}

type NopVisualizer struct{}

func (NopVisualizer) ZoneNormal(string) {}
func (NopVisualizer) ZoneSuccess(string) {}

// Zone is a spherical trigger volume requiring one colour.
type Zone struct {
	Label  string
	Center r3.Vec
	Radius float64

	Occupant int
	// Matched only goes from false to true within a trial.
	Matched bool

	inside  map[int]bool
	pending map[int]bool
}

func NewZone(label string, center r3.Vec, radius float64) *Zone {
	return &Zone{
		Label:   label,
		Center:  center,
		Radius:  radius,
		inside:  make(map[int]bool),
		pending: make(map[int]bool),
	}
}

// Contains reports whether e's centre is inside the zone.
func (z *Zone) Contains(e *world.Entity) bool {
	return geom.Distance(z.Center, e.Pose.Position) <= z.Radius
}

// Inside returns the ids currently inside the zone, sorted.
func (z *Zone) Inside() []int {
	ids := make([]int, 0, len(z.inside))
	for id := range z.inside {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Pending reports whether id entered while held and awaits release.
func (z *Zone) Pending(id int) bool { return z.pending[id] }

// Event is one placement judgement.
type Event struct {
	Entity     int
	EntityName string
	ZoneLabel  string
	IsCorrect  bool
}

// LabelOf returns the colour an entity carries: its explicit label, or the
// first known colour found in its name.
func LabelOf(e *world.Entity) string {
	if e.Label != "" {
		return strings.ToLower(e.Label)
	}
	name := strings.ToLower(e.Name)
	for _, c := range Colors {
		if strings.Contains(name, c) {
			return c
		}
	}
	return ""
}

// Matches reports whether e belongs in a zone labelled label.
func Matches(e *world.Entity, label string) bool {
	label = strings.ToLower(label)
	if label == "" {
		return false
	}
	if e.Label != "" {
		return strings.ToLower(e.Label) == label
	}
	return strings.Contains(strings.ToLower(e.Name), label)
}

type Evaluator struct {
	zones []*Zone
	mode  Mode
	vis   Visualizer
	log   *slog.Logger
}

func NewEvaluator(mode Mode, vis Visualizer, logger *slog.Logger, zones ...*Zone) *Evaluator {
	if vis == nil {
		vis = NopVisualizer{}
	}
	ev := &Evaluator{zones: zones, mode: mode, vis: vis, log: log.Or(logger).With("component", "placement")}
	for _, z := range zones {
		vis.ZoneNormal(z.Label)
	}
	return ev
}

func (ev *Evaluator) Zones() []*Zone { return ev.zones }
func (ev *Evaluator) Mode() Mode     { return ev.mode }

// Zone returns the zone with the given label, or nil.
func (ev *Evaluator) Zone(label string) *Zone {
	for _, z := range ev.zones {
		if strings.EqualFold(z.Label, label) {
			return z
		}
	}
	return nil
}

// Tick derives zone entries and exits from entity positions, then judges
// the entity released this tick if it is waiting inside a zone. held and
// released are entity ids or world.None.
func (ev *Evaluator) Tick(w *world.World, held, released int) []Event {
	var events []Event
	for _, z := range ev.zones {
		for _, e := range w.Entities() {
			if !e.Selectable {
				continue
			}
			in, was := z.Contains(e), z.inside[e.ID]
			switch {
			case in && !was:
				z.inside[e.ID] = true
				if ev.mode == ModeDeferred && e.ID == held {
					z.pending[e.ID] = true
					continue
				}
				events = append(events, ev.evaluate(z, e))
			case !in && was:
				delete(z.inside, e.ID)
				delete(z.pending, e.ID)
				if z.Occupant == e.ID {
					z.Occupant = world.None
				}
			}
		}

		if released != world.None && z.pending[released] {
			delete(z.pending, released)
			if e := w.Get(released); e != nil && z.inside[released] {
				events = append(events, ev.evaluate(z, e))
			}
		}
	}
	return events
}

// Reset clears matches, occupancy and pending judgements for a new trial.
// Entities already inside a zone stay inside.
func (ev *Evaluator) Reset() {
	for _, z := range ev.zones {
		z.Matched = false
		z.Occupant = world.None
		clear(z.pending)
		ev.vis.ZoneNormal(z.Label)
	}
}

func (ev *Evaluator) evaluate(z *Zone, e *world.Entity) Event {
	ok := Matches(e, z.Label)
	z.Occupant = e.ID
	if ok && !z.Matched {
		z.Matched = true
		ev.vis.ZoneSuccess(z.Label)
	}
	ev.log.Info("placement", "entity", e.Name, "zone", z.Label, "correct", ok)
	return Event{Entity: e.ID, EntityName: e.Name, ZoneLabel: z.Label, IsCorrect: ok}
}
