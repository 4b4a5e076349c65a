package grab_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rafidiit-ops/ReverseGoGo/internal/depth"
	"github.com/rafidiit-ops/ReverseGoGo/internal/geom"
	"github.com/rafidiit-ops/ReverseGoGo/internal/grab"
	"github.com/rafidiit-ops/ReverseGoGo/internal/input"
	"github.com/rafidiit-ops/ReverseGoGo/internal/mapping"
	"github.com/rafidiit-ops/ReverseGoGo/internal/world"
	"gonum.org/v1/gonum/spatial/r3"
)

type locker struct {
	locked bool
}

func (l *locker) Lock()   { l.locked = true }
func (l *locker) Unlock() { l.locked = false }

const dt = 1.0 / 60

type rig struct {
	world   *world.World
	sel     *locker
	owner   *grab.Owner
	actions *input.Actions
}

func newRig() *rig {
	return &rig{
		world:   world.New(),
		sel:     &locker{},
		owner:   grab.NewOwner(),
		actions: input.NewActions(),
	}
}

// frame samples the buttons and builds a tick with the HMD at the origin.
func (r *rig) frame(controller r3.Vec, buttons input.Snapshot, hover int) grab.Frame {
	r.actions.Update(buttons)
	d := depth.NewScaler(depth.DefaultConfig()).Update(geom.At(r3.Vec{}), geom.At(controller))
	return grab.Frame{
		HMD:        geom.At(r3.Vec{}),
		Controller: geom.At(controller),
		Depth:      d,
		Actions:    r.actions,
		Hover:      hover,
		Dt:         dt,
	}
}

var (
	none    = input.Snapshot{}
	grabOn  = input.Snapshot{Grab: true}
	trigger = input.Snapshot{Trigger: true}
	both    = input.Snapshot{Grab: true, Trigger: true}
)

var _ = Describe("Kind", func() {
	It("parses technique names", func() {
		k, err := grab.ParseKind("Reverse")
		Expect(err).NotTo(HaveOccurred())
		Expect(k).To(Equal(grab.ReverseGoGo))

		_, err = grab.ParseKind("telekinesis")
		Expect(err).To(MatchError(grab.ErrUnknownTechnique))
	})
})

var _ = Describe("Owner", func() {
	It("allows a single holder at a time", func() {
		r := newRig()
		a := grab.NewGoGo(mapping.DefaultGoGoConfig(), r.world, r.sel, r.owner, nil)
		b := grab.NewReverse(mapping.DefaultPullConfig(), r.world, r.sel, r.owner, nil)

		Expect(r.owner.Claim(a)).To(BeTrue())
		Expect(r.owner.Claim(a)).To(BeTrue())
		Expect(r.owner.Claim(b)).To(BeFalse())

		r.owner.Release(b)
		Expect(r.owner.Current()).To(BeIdenticalTo(a))
		r.owner.Release(a)
		Expect(r.owner.Current()).To(BeNil())
		Expect(r.owner.Held()).To(Equal(world.None))
	})
})

var _ = Describe("GoGo", func() {
	var (
		r      *rig
		g      *grab.GoGo
		target *world.Entity
	)

	BeforeEach(func() {
		r = newRig()
		target = r.world.Add(&world.Entity{Name: "PhantomRed", Pose: geom.At(r3.Vec{Z: 0.25}), Radius: 0.05, Selectable: true})
		g = grab.NewGoGo(mapping.DefaultGoGoConfig(), r.world, r.sel, r.owner, nil)
	})

	It("touches when the virtual hand overlaps an entity", func() {
		g.Tick(r.frame(r3.Vec{Z: 0.2}, none, world.None))
		Expect(g.Phase()).To(Equal(grab.Touching))
		Expect(g.Touching()).To(Equal(target.ID))

		g.Tick(r.frame(r3.Vec{X: 0.2, Z: 0.05}, none, world.None))
		Expect(g.Phase()).To(Equal(grab.Idle))
		Expect(g.Touching()).To(Equal(world.None))
	})

	It("ignores grab without a touch", func() {
		res := g.Tick(r.frame(r3.Vec{X: 0.2, Z: 0.05}, grabOn, world.None))
		Expect(res.Started).To(Equal(world.None))
		Expect(g.Phase()).To(Equal(grab.Idle))
	})

	It("grabs, follows with the captured offset and releases", func() {
		res := g.Tick(r.frame(r3.Vec{Z: 0.2}, grabOn, world.None))
		Expect(res.Started).To(Equal(target.ID))
		Expect(g.Phase()).To(Equal(grab.Grabbing))
		Expect(r.sel.locked).To(BeTrue())
		Expect(r.owner.Held()).To(Equal(target.ID))

		s, ok := g.Session()
		Expect(ok).To(BeTrue())
		Expect(s.Mode).To(Equal(grab.ModeFollow))
		Expect(s.PositionOffset.Z).To(BeNumerically("~", 0.05, 1e-9))

		g.Tick(r.frame(r3.Vec{Y: 0.1, Z: 0.2}, grabOn, world.None))
		Expect(target.Pose.Position.Y).To(BeNumerically("~", 0.1, 1e-9))
		Expect(target.Pose.Position.Z).To(BeNumerically("~", 0.25, 1e-9))

		res = g.Tick(r.frame(r3.Vec{Y: 0.1, Z: 0.2}, none, world.None))
		Expect(res.Released).To(Equal(target.ID))
		Expect(g.Phase()).To(Equal(grab.Idle))
		Expect(r.sel.locked).To(BeFalse())
		Expect(r.owner.Current()).To(BeNil())
	})

	It("treats a second grab while grabbing as a no-op", func() {
		g.Tick(r.frame(r3.Vec{Z: 0.2}, grabOn, world.None))
		res := g.Tick(r.frame(r3.Vec{Z: 0.2}, both, world.None))
		Expect(res.Started).To(Equal(world.None))
		Expect(g.Held()).To(Equal(target.ID))
	})

	It("refuses a grab by another technique while holding", func() {
		rev := grab.NewReverse(mapping.DefaultPullConfig(), r.world, r.sel, r.owner, nil)
		g.Tick(r.frame(r3.Vec{Z: 0.2}, grabOn, world.None))

		f := r.frame(r3.Vec{Z: 0.2}, both, target.ID)
		g.Tick(f)
		res := rev.Tick(f)
		Expect(res.Started).To(Equal(world.None))
		Expect(rev.Phase()).To(Equal(grab.Idle))
		Expect(r.owner.Current()).To(BeIdenticalTo(g))
	})

	It("suspends and restores physics on a dynamic body", func() {
		target.Body = world.NewDynamicBody()
		target.Body.Velocity = r3.Vec{Y: -1}

		g.Tick(r.frame(r3.Vec{Z: 0.2}, grabOn, world.None))
		Expect(target.Body.UseGravity).To(BeFalse())
		Expect(target.Body.Velocity).To(Equal(r3.Vec{}))

		g.Tick(r.frame(r3.Vec{Y: 0.1, Z: 0.2}, grabOn, world.None))
		Expect(target.Body.FreezeRotation).To(BeTrue())
		Expect(target.Body.Velocity.Y).To(BeNumerically("~", 0.1/dt, 1e-6))

		g.Tick(r.frame(r3.Vec{Y: 0.1, Z: 0.2}, none, world.None))
		Expect(target.Body.UseGravity).To(BeTrue())
		Expect(target.Body.FreezeRotation).To(BeFalse())
		Expect(target.Body.Velocity).To(Equal(r3.Vec{}))
	})
})

var _ = Describe("Reverse", func() {
	var (
		r      *rig
		rev    *grab.Reverse
		target *world.Entity
	)

	BeforeEach(func() {
		r = newRig()
		target = r.world.Add(&world.Entity{Name: "PhantomBlue", Pose: geom.At(r3.Vec{Z: 3}), Radius: 0.1, Selectable: true})
		rev = grab.NewReverse(mapping.DefaultPullConfig(), r.world, r.sel, r.owner, nil)
	})

	It("needs a hover to start", func() {
		res := rev.Tick(r.frame(r3.Vec{Z: 0.8}, trigger, world.None))
		Expect(res.Started).To(Equal(world.None))
		Expect(res.HandAnchor).To(Equal(mapping.Parked))
	})

	It("attaches on trigger and mirrors hand translation", func() {
		rev.Tick(r.frame(r3.Vec{Z: 0.8}, trigger, target.ID))
		s, _ := rev.Session()
		Expect(s.Mode).To(Equal(grab.ModeAttach))

		res := rev.Tick(r.frame(r3.Vec{Y: 0.2, Z: 0.8}, trigger, target.ID))
		Expect(target.Pose.Position.Y).To(BeNumerically("~", 0.2, 1e-9))
		Expect(target.Pose.Position.Z).To(BeNumerically("~", 3, 1e-9))
		Expect(res.HandAnchor).NotTo(Equal(mapping.Parked))

		res = rev.Tick(r.frame(r3.Vec{Y: 0.2, Z: 0.8}, none, target.ID))
		Expect(res.Released).To(Equal(target.ID))
		Expect(res.HandAnchor).To(Equal(mapping.Parked))
	})

	It("pulls the entity in as the hand retracts and then attaches", func() {
		rev.Tick(r.frame(r3.Vec{Z: 0.8}, grabOn, target.ID))
		s, ok := rev.Session()
		Expect(ok).To(BeTrue())
		Expect(s.Mode).To(Equal(grab.ModeRemotePull))
		Expect(s.Pull.MaxPull).To(BeNumerically("~", 0.5, 1e-9))

		res := rev.Tick(r.frame(r3.Vec{Z: 0.55}, grabOn, target.ID))
		Expect(res.Pull).NotTo(BeNil())
		Expect(res.Pull.Progress).To(BeNumerically("~", 0.5, 1e-9))
		Expect(target.Pose.Position.Z).To(BeNumerically("~", 2.3875, 1e-9))

		rev.Tick(r.frame(r3.Vec{Z: 0.3}, grabOn, target.ID))
		Expect(target.Pose.Position.Z).To(BeNumerically("~", 0.3, 1e-9))
		s, _ = rev.Session()
		Expect(s.Mode).To(Equal(grab.ModeRemotePull), "arrival is judged before the move")

		rev.Tick(r.frame(r3.Vec{Z: 0.3}, grabOn, target.ID))
		s, _ = rev.Session()
		Expect(s.Mode).To(Equal(grab.ModeAttach))

		rev.Tick(r.frame(r3.Vec{X: 0.1, Z: 0.3}, grabOn, target.ID))
		Expect(target.Pose.Position.X).To(BeNumerically("~", 0.1, 1e-9))

		// the trigger did not start the session, so it cannot end it
		rev.Tick(r.frame(r3.Vec{X: 0.1, Z: 0.3}, both, target.ID))
		rev.Tick(r.frame(r3.Vec{X: 0.1, Z: 0.3}, grabOn, target.ID))
		Expect(rev.Phase()).To(Equal(grab.Grabbing))

		res = rev.Tick(r.frame(r3.Vec{X: 0.1, Z: 0.3}, none, target.ID))
		Expect(res.Released).To(Equal(target.ID))
	})
})

var _ = Describe("Reverse remote pull on a dynamic body", func() {
	var (
		r      *rig
		rev    *grab.Reverse
		target *world.Entity
	)

	BeforeEach(func() {
		r = newRig()
		target = r.world.Add(&world.Entity{Name: "PhantomRed", Pose: geom.At(r3.Vec{Z: 3}), Radius: 0.1, Selectable: true})
		target.Body = world.NewDynamicBody()
		rev = grab.NewReverse(mapping.DefaultPullConfig(), r.world, r.sel, r.owner, nil)
		rev.Tick(r.frame(r3.Vec{Z: 0.8}, grabOn, target.ID))
	})

	It("scales the body velocity by the speed factor", func() {
		res := rev.Tick(r.frame(r3.Vec{Z: 0.79}, grabOn, target.ID))
		Expect(res.Pull).NotTo(BeNil())
		Expect(res.Pull.SpeedFactor).To(BeNumerically("~", 10, 1e-9))

		gap := res.Pull.Target.Z - 3
		Expect(gap).To(BeNumerically("<", 0))
		Expect(target.Body.Velocity.Z).To(BeNumerically("~", gap/dt*res.Pull.SpeedFactor, 1e-9))
	})

	It("never steps past the controller", func() {
		res := rev.Tick(r.frame(r3.Vec{Z: 0.55}, grabOn, target.ID))
		Expect(res.Pull.SpeedFactor).To(BeNumerically(">", 1))
		Expect(target.Body.Velocity.Z * dt).To(BeNumerically("~", 0.55-3, 1e-9))
	})

	It("falls back at unit speed once ahead of the target", func() {
		target.Pose.Position = r3.Vec{Z: 1}
		res := rev.Tick(r.frame(r3.Vec{Z: 0.78}, grabOn, target.ID))
		Expect(res.Pull.SpeedFactor).To(BeNumerically(">", 1))
		Expect(target.Body.Velocity.Z).To(BeNumerically("~", (res.Pull.Target.Z-1)/dt, 1e-9))
	})
})

var _ = Describe("Legacy", func() {
	It("auto-releases when the hand comes back to the body", func() {
		r := newRig()
		target := r.world.Add(&world.Entity{Name: "PhantomGreen", Pose: geom.At(r3.Vec{Z: 2}), Radius: 0.1, Selectable: true})
		l := grab.NewLegacy(mapping.DefaultLegacyConfig(), r.world, r.sel, r.owner, nil)

		res := l.Tick(r.frame(r3.Vec{Z: 0.6}, grabOn, target.ID))
		Expect(res.Started).To(Equal(target.ID))
		s, _ := l.Session()
		Expect(s.InitialDistance).To(BeNumerically("~", 2, 1e-9))

		// |offset| 0.6 -> scale 2/0.6, depth 0.6*scale = 2
		l.Tick(r.frame(r3.Vec{X: 0.1, Z: 0.6}, grabOn, target.ID))
		Expect(target.Pose.Position.X).To(BeNumerically("~", 0.1, 1e-9))
		Expect(target.Pose.Position.Z).To(BeNumerically("~", 0.6*2/r3.Norm(r3.Vec{X: 0.1, Z: 0.6}), 1e-9))

		res = l.Tick(r.frame(r3.Vec{Z: 0.2}, grabOn, target.ID))
		Expect(res.Released).To(Equal(target.ID))
		Expect(l.Phase()).To(Equal(grab.Idle))
	})
})

var _ = Describe("Switcher", func() {
	It("resets every technique on switch and reports what it released", func() {
		r := newRig()
		target := r.world.Add(&world.Entity{Name: "PhantomYellow", Pose: geom.At(r3.Vec{Z: 2}), Radius: 0.1, Selectable: true})
		g := grab.NewGoGo(mapping.DefaultGoGoConfig(), r.world, r.sel, r.owner, nil)
		rev := grab.NewReverse(mapping.DefaultPullConfig(), r.world, r.sel, r.owner, nil)
		sw := grab.NewSwitcher(nil, g, rev)

		Expect(sw.Active().Kind()).To(Equal(grab.TraditionalGoGo))
		next, released := sw.Toggle()
		Expect(next).To(Equal(grab.ReverseGoGo))
		Expect(released).To(BeEmpty())

		sw.Active().Tick(r.frame(r3.Vec{Z: 0.8}, trigger, target.ID))
		Expect(sw.ModeName()).To(Equal("ReverseGoGo (attach)"))

		released, err := sw.SwitchTo(grab.TraditionalGoGo)
		Expect(err).NotTo(HaveOccurred())
		Expect(released).To(ConsistOf(target.ID))
		Expect(rev.Phase()).To(Equal(grab.Idle))
		Expect(r.owner.Held()).To(Equal(world.None))
		Expect(r.sel.locked).To(BeFalse())
		Expect(sw.ModeName()).To(Equal("Traditional GoGo"))

		_, err = sw.SwitchTo(grab.LegacyThresholdPull)
		Expect(err).To(MatchError(grab.ErrUnknownTechnique))
	})
})

var _ = Describe("missing references", func() {
	It("disables the technique", func() {
		r := newRig()
		g := grab.NewGoGo(mapping.DefaultGoGoConfig(), nil, r.sel, nil, nil)
		Expect(g.Err()).To(MatchError(grab.ErrMissingReference))
		Expect(func() { g.Tick(r.frame(r3.Vec{Z: 0.2}, grabOn, world.None)) }).NotTo(Panic())
		Expect(g.Phase()).To(Equal(grab.Idle))
	})
})
