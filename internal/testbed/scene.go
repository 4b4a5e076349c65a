package testbed

import (
	"strings"

	"github.com/rafidiit-ops/ReverseGoGo/internal/automation"
	"github.com/rafidiit-ops/ReverseGoGo/internal/placement"
	"github.com/rafidiit-ops/ReverseGoGo/internal/world"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// TableHeight is the floor dynamic objects rest on.
	TableHeight  = 0.8
	ObjectRadius = 0.05
	ZoneRadius   = 0.15
)

// Layout places the study objects and the zones they belong in.
type Layout struct {
	Objects []Placed
	Zones   []Placed
}

type Placed struct {
	Name     string
	Label    string
	Position r3.Vec
}

// DefaultLayout puts four coloured objects on the far end of the table and
// four zones, in a shuffled colour order, at the near end.
func DefaultLayout() Layout {
	y := TableHeight + ObjectRadius
	xs := []float64{-0.45, -0.15, 0.15, 0.45}
	var l Layout
	for i, c := range placement.Colors {
		l.Objects = append(l.Objects, Placed{
			Name:     "Phantom" + title(c),
			Label:    c,
			Position: r3.Vec{X: xs[i], Y: y, Z: 2},
		})
	}
	for i, c := range []string{"blue", "red", "yellow", "green"} {
		l.Zones = append(l.Zones, Placed{
			Name:     c + "Bubble",
			Label:    c,
			Position: r3.Vec{X: xs[i], Y: y, Z: 0.9},
		})
	}
	return l
}

// Tasks pairs each object with the zone of its colour, in object order.
func (l Layout) Tasks() []automation.Task {
	tasks := make([]automation.Task, 0, len(l.Objects))
	for _, o := range l.Objects {
		tasks = append(tasks, automation.Task{Object: o.Name, Zone: o.Label})
	}
	return tasks
}

func (l Layout) build(w *world.World) ([]*world.Entity, []*placement.Zone) {
	w.Ground = TableHeight
	objects := make([]*world.Entity, 0, len(l.Objects))
	for _, o := range l.Objects {
		e := w.Add(&world.Entity{
			Name:       o.Name,
			Radius:     ObjectRadius,
			Selectable: true,
			Body:       world.NewDynamicBody(),
		})
		e.Pose.Position = o.Position
		objects = append(objects, e)
	}
	zones := make([]*placement.Zone, 0, len(l.Zones))
	for _, z := range l.Zones {
		zones = append(zones, placement.NewZone(z.Label, z.Position, ZoneRadius))
	}
	return objects, zones
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
