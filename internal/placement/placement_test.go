package placement

import (
	"testing"

	. "github.com/onsi/gomega"
	"github.com/rafidiit-ops/ReverseGoGo/internal/geom"
	"github.com/rafidiit-ops/ReverseGoGo/internal/log"
	"github.com/rafidiit-ops/ReverseGoGo/internal/world"
	"gonum.org/v1/gonum/spatial/r3"
)

type visuals struct {
	success []string
}

func (v *visuals) ZoneNormal(string) {}
func (v *visuals) ZoneSuccess(label string) { v.success = append(v.success, label) }

func scene(mode Mode) (*world.World, *Evaluator, *world.Entity, *world.Entity, *visuals) {
	log.Discard()
	w := world.New()
	red := w.Add(&world.Entity{Name: "PhantomRed", Pose: geom.At(r3.Vec{X: -2}), Radius: 0.05, Selectable: true})
	blue := w.Add(&world.Entity{Name: "PhantomBlue", Pose: geom.At(r3.Vec{X: 2}), Radius: 0.05, Selectable: true})
	v := &visuals{}
	ev := NewEvaluator(mode, v, nil, NewZone("Red", r3.Vec{}, 0.2))
	return w, ev, red, blue, v
}

func TestLabelOf(t *testing.T) {
	g := NewWithT(t)

	g.Expect(LabelOf(&world.Entity{Name: "PhantomYellow"})).To(Equal("yellow"))
	g.Expect(LabelOf(&world.Entity{Name: "Cube", Label: "Green"})).To(Equal("green"))
	g.Expect(LabelOf(&world.Entity{Name: "Cube"})).To(BeEmpty())

	g.Expect(Matches(&world.Entity{Name: "PhantomRED"}, "red")).To(BeTrue())
	g.Expect(Matches(&world.Entity{Name: "RedCube", Label: "blue"}, "red")).To(BeFalse())
	g.Expect(Matches(&world.Entity{Name: "PhantomRed"}, "")).To(BeFalse())
}

func TestDeferredWaitsForRelease(t *testing.T) {
	g := NewWithT(t)
	w, ev, red, _, v := scene(ModeDeferred)

	red.Pose.Position = r3.Vec{}
	g.Expect(ev.Tick(w, red.ID, world.None)).To(BeEmpty())
	g.Expect(ev.Zone("red").Pending(red.ID)).To(BeTrue())

	g.Expect(ev.Tick(w, red.ID, world.None)).To(BeEmpty())

	events := ev.Tick(w, world.None, red.ID)
	g.Expect(events).To(ConsistOf(Event{Entity: red.ID, EntityName: "PhantomRed", ZoneLabel: "Red", IsCorrect: true}))
	g.Expect(ev.Zone("red").Matched).To(BeTrue())
	g.Expect(ev.Zone("red").Occupant).To(Equal(red.ID))
	g.Expect(v.success).To(Equal([]string{"Red"}))
}

func TestDeferredLeavingBeforeReleaseCancels(t *testing.T) {
	g := NewWithT(t)
	w, ev, red, _, _ := scene(ModeDeferred)

	red.Pose.Position = r3.Vec{}
	ev.Tick(w, red.ID, world.None)
	red.Pose.Position = r3.Vec{X: 1}
	ev.Tick(w, red.ID, world.None)

	g.Expect(ev.Tick(w, world.None, red.ID)).To(BeEmpty())
	g.Expect(ev.Zone("red").Matched).To(BeFalse())
}

func TestUnheldEntryIsJudgedImmediately(t *testing.T) {
	g := NewWithT(t)
	w, ev, _, blue, v := scene(ModeDeferred)

	blue.Pose.Position = r3.Vec{Y: 0.1}
	events := ev.Tick(w, world.None, world.None)
	g.Expect(events).To(HaveLen(1))
	g.Expect(events[0].IsCorrect).To(BeFalse())
	g.Expect(ev.Zone("red").Matched).To(BeFalse())
	g.Expect(v.success).To(BeEmpty())
}

func TestImmediateModeIgnoresHolding(t *testing.T) {
	g := NewWithT(t)
	w, ev, red, _, _ := scene(ModeImmediate)

	red.Pose.Position = r3.Vec{}
	events := ev.Tick(w, red.ID, world.None)
	g.Expect(events).To(HaveLen(1))
	g.Expect(events[0].IsCorrect).To(BeTrue())
}

func TestMatchSurvivesExitUntilReset(t *testing.T) {
	g := NewWithT(t)
	w, ev, red, _, _ := scene(ModeImmediate)

	red.Pose.Position = r3.Vec{}
	ev.Tick(w, world.None, world.None)
	red.Pose.Position = r3.Vec{X: 1}
	ev.Tick(w, world.None, world.None)

	z := ev.Zone("red")
	g.Expect(z.Occupant).To(Equal(world.None))
	g.Expect(z.Matched).To(BeTrue())

	ev.Reset()
	g.Expect(z.Matched).To(BeFalse())
}

func TestParseMode(t *testing.T) {
	g := NewWithT(t)

	m, err := ParseMode("immediate")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(m).To(Equal(ModeImmediate))
	_, err = ParseMode("later")
	g.Expect(err).To(HaveOccurred())
}
