// Package world is the headless stand-in for the host engine: an entity
// table with simple rigid bodies, ray casts and sphere overlap queries.
// The interaction core only ever sets a body's velocity, gravity flag or
// position; everything else about physics stays behind Integrate.
package world

import (
	"math"
	"sort"

	"github.com/rafidiit-ops/ReverseGoGo/internal/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// None is the id of no entity.
const None = 0

var DefaultGravity = r3.Vec{Y: -9.81}

type BodyKind int

const (
	// BodyNone entities are visual only and are moved by position.
	BodyNone BodyKind = iota
	// BodyKinematic entities are moved by position and ignore gravity.
	BodyKinematic
	// BodyDynamic entities are moved by velocity and integrated.
	BodyDynamic
)

func (k BodyKind) String() string {
	switch k {
	case BodyKinematic:
		return "kinematic"
	case BodyDynamic:
		return "dynamic"
	default:
		return "none"
	}
}

type Body struct {
	Kind            BodyKind
	Velocity        r3.Vec
	AngularVelocity r3.Vec
	UseGravity      bool
	FreezeRotation  bool
}

func NewDynamicBody() *Body {
	return &Body{Kind: BodyDynamic, UseGravity: true}
}

func NewKinematicBody() *Body {
	return &Body{Kind: BodyKinematic}
}

type Entity struct {
	ID    int
	Name  string
	Label string
	Pose  geom.Pose
	// Radius of the bounding sphere used for rays, touch and zones.
	Radius     float64
	Selectable bool
	Body       *Body
}

// Dynamic reports whether the entity is driven by velocity.
func (e *Entity) Dynamic() bool {
	return e.Body != nil && e.Body.Kind == BodyDynamic
}

// Extent is the half-size used to place the hand visual next to the entity.
func (e *Entity) Extent() float64 {
	return e.Radius
}

type World struct {
	Gravity r3.Vec
	// Ground is the height of the floor plane dynamic bodies rest on.
	Ground float64

	entities []*Entity
	byID     map[int]*Entity
	nextID   int
}

func New() *World {
	return &World{
		Gravity: DefaultGravity,
		byID:    make(map[int]*Entity),
		nextID:  1,
	}
}

// Add registers e, assigns its id and returns it.
func (w *World) Add(e *Entity) *Entity {
	e.ID = w.nextID
	w.nextID++
	if e.Pose.Rotation == (r3.Rotation{}) {
		e.Pose.Rotation = geom.Identity
	}
	w.entities = append(w.entities, e)
	w.byID[e.ID] = e
	return e
}

func (w *World) Get(id int) *Entity {
	return w.byID[id]
}

func (w *World) Entities() []*Entity {
	return w.entities
}

// FindByName returns the first entity with the given name.
func (w *World) FindByName(name string) *Entity {
	for _, e := range w.entities {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Selectable is a filter for entities that can be hovered and grabbed.
func Selectable(e *Entity) bool { return e.Selectable }

type Hit struct {
	Entity   *Entity
	Point    r3.Vec
	Normal   r3.Vec
	Distance float64
}

// Raycast returns the closest entity hit within maxDistance. A nil filter
// accepts every entity.
func (w *World) Raycast(origin, direction r3.Vec, maxDistance float64, filter func(*Entity) bool) (Hit, bool) {
	if r3.Norm2(direction) == 0 {
		return Hit{}, false
	}
	direction = r3.Unit(direction)

	closest := Hit{Distance: maxDistance}
	hit := false
	for _, e := range w.entities {
		if filter != nil && !filter(e) {
			continue
		}
		h, ok := raycastSphere(origin, direction, e.Pose.Position, e.Radius, maxDistance)
		if ok && h.Distance < closest.Distance {
			closest = h
			closest.Entity = e
			hit = true
		}
	}
	return closest, hit
}

func raycastSphere(origin, direction, center r3.Vec, radius, maxDistance float64) (Hit, bool) {
	oc := r3.Sub(origin, center)
	b := 2 * r3.Dot(oc, direction)
	c := r3.Dot(oc, oc) - radius*radius

	disc := b*b - 4*c
	if disc < 0 {
		return Hit{}, false
	}

	t := (-b - math.Sqrt(disc)) / 2
	if t < 0 {
		t = (-b + math.Sqrt(disc)) / 2
	}
	if t < 0 || t > maxDistance {
		return Hit{}, false
	}

	point := r3.Add(origin, r3.Scale(t, direction))
	normal := geom.Direction(center, point, geom.Up)
	return Hit{Point: point, Normal: normal, Distance: t}, true
}

// Overlapping returns the entities whose bounding spheres intersect the
// sphere at center, nearest first.
func (w *World) Overlapping(center r3.Vec, radius float64, filter func(*Entity) bool) []*Entity {
	var out []*Entity
	for _, e := range w.entities {
		if filter != nil && !filter(e) {
			continue
		}
		if geom.Distance(center, e.Pose.Position) <= radius+e.Radius {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return geom.Distance(center, out[i].Pose.Position) < geom.Distance(center, out[j].Pose.Position)
	})
	return out
}

// Integrate advances dynamic bodies by dt: gravity, velocity, and a floor
// contact that stops downward motion.
func (w *World) Integrate(dt float64) {
	if dt <= 0 {
		return
	}
	for _, e := range w.entities {
		b := e.Body
		if b == nil || b.Kind == BodyNone {
			continue
		}
		if b.Kind == BodyDynamic && b.UseGravity {
			b.Velocity = r3.Add(b.Velocity, r3.Scale(dt, w.Gravity))
		}
		e.Pose.Position = r3.Add(e.Pose.Position, r3.Scale(dt, b.Velocity))
		if !b.FreezeRotation && r3.Norm2(b.AngularVelocity) > 0 {
			spin := r3.NewRotation(r3.Norm(b.AngularVelocity)*dt, b.AngularVelocity)
			e.Pose.Rotation = geom.Compose(spin, e.Pose.Orientation())
		}

		floor := w.Ground + e.Radius
		if b.Kind == BodyDynamic && e.Pose.Position.Y < floor {
			e.Pose.Position.Y = floor
			if b.Velocity.Y < 0 {
				b.Velocity.Y = 0
			}
		}
	}
}
