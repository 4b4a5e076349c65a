// Package automation drives a synthetic participant from a YAML scenario.
// Each step is a hand motion, a button edge, a wait or a technique toggle;
// motions are eased with gween tweens and sampled once per tick.
package automation

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rafidiit-ops/ReverseGoGo/internal/geom"
	"github.com/rafidiit-ops/ReverseGoGo/internal/input"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

var ErrInvalidScenario = errors.New("automation: invalid scenario")

// Phases understood by the player.
const (
	PhaseReach   = "reach"
	PhaseRetract = "retract"
	PhaseMove    = "move"
	PhaseTouch   = "touch"
	PhaseCarry   = "carry"
	PhasePress   = "press"
	PhaseRelease = "release"
	PhaseWait    = "wait"
	PhaseToggle  = "toggle"
)

// DefaultEase is used when a motion step names none.
const DefaultEase = "inOutQuad"

var easings = map[string]ease.TweenFunc{
	"linear":     ease.Linear,
	"inQuad":     ease.InQuad,
	"outQuad":    ease.OutQuad,
	"inOutQuad":  ease.InOutQuad,
	"inCubic":    ease.InCubic,
	"outCubic":   ease.OutCubic,
	"inOutCubic": ease.InOutCubic,
	"inOutSine":  ease.InOutSine,
	"outBack":    ease.OutBack,
}

// Scenario is a scripted participant session.
type Scenario struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Technique   string    `yaml:"technique"`
	HMD         []float64 `yaml:"hmd"`
	Hand        []float64 `yaml:"hand"`
	Steps       []Step    `yaml:"steps"`
}

// Step is one scripted action. Motion steps pick their goal from exactly
// one of To, By, Toward, Touch or Zone.
type Step struct {
	Phase string `yaml:"phase"`

	To     []float64 `yaml:"to,omitempty"`
	By     []float64 `yaml:"by,omitempty"`
	Toward string    `yaml:"toward,omitempty"`
	// Distance is the hand's distance from the HMD for Toward.
	Distance float64 `yaml:"distance,omitempty"`
	Touch    string  `yaml:"touch,omitempty"`
	// Zone is the carry destination.
	Zone string `yaml:"zone,omitempty"`
	// Aim keeps the controller pointed at a named target from this step on.
	// "none" restores pointing along the arm.
	Aim string `yaml:"aim,omitempty"`

	Button   string  `yaml:"button,omitempty"`
	Duration float64 `yaml:"duration,omitempty"`
	Ease     string  `yaml:"ease,omitempty"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) Marshal() ([]byte, error) {
	return yaml.Marshal(sc)
}

func (sc *Scenario) Validate() error {
	if _, err := vec(sc.HMD, "hmd"); err != nil && sc.HMD != nil {
		return err
	}
	if _, err := vec(sc.Hand, "hand"); err != nil && sc.Hand != nil {
		return err
	}
	for i, st := range sc.Steps {
		if err := st.validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

func (st Step) validate() error {
	switch st.Phase {
	case PhaseReach, PhaseRetract, PhaseMove:
		goals := 0
		for _, set := range []bool{st.To != nil, st.By != nil, st.Toward != ""} {
			if set {
				goals++
			}
		}
		if goals != 1 {
			return fmt.Errorf("%w: %s needs exactly one of to, by, toward", ErrInvalidScenario, st.Phase)
		}
		if st.To != nil {
			if _, err := vec(st.To, "to"); err != nil {
				return err
			}
		}
		if st.By != nil {
			if _, err := vec(st.By, "by"); err != nil {
				return err
			}
		}
		if st.Toward != "" && !(st.Distance > 0) {
			return fmt.Errorf("%w: toward needs a positive distance", ErrInvalidScenario)
		}
	case PhaseTouch:
		if st.Touch == "" {
			return fmt.Errorf("%w: touch needs a target", ErrInvalidScenario)
		}
	case PhaseCarry:
		if st.Zone == "" {
			return fmt.Errorf("%w: carry needs a zone", ErrInvalidScenario)
		}
	case PhasePress, PhaseRelease:
		if _, err := buttonOf(st.Button); err != nil {
			return err
		}
		return nil
	case PhaseWait, PhaseToggle:
	default:
		return fmt.Errorf("%w: unknown phase %q", ErrInvalidScenario, st.Phase)
	}
	if st.Duration < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidScenario)
	}
	if st.Ease != "" {
		if _, ok := easings[st.Ease]; !ok {
			return fmt.Errorf("%w: unknown ease %q", ErrInvalidScenario, st.Ease)
		}
	}
	return nil
}

// Scene is what the player needs to know about the world to resolve named
// goals.
type Scene interface {
	// Locate returns the position of a named entity or zone label.
	Locate(name string) (r3.Vec, bool)
	// HandFor returns the controller position that puts the active
	// technique's virtual hand at point.
	HandFor(hmd geom.Pose, point r3.Vec) r3.Vec
	// CarryTo returns the controller position that brings the held entity
	// to goal, given the current controller position.
	CarryTo(hmd geom.Pose, controller, goal r3.Vec) (r3.Vec, bool)
}

// Tick is the player output for one tick.
type Tick struct {
	HMD        geom.Pose
	Controller geom.Pose
	Buttons    input.Snapshot
	Step       int
	Phase      string
}

// Player replays a scenario tick by tick.
type Player struct {
	sc      *Scenario
	hmd     geom.Pose
	hand    r3.Vec
	aim     string
	buttons input.Snapshot

	step    int
	started bool
	elapsed float64
	from    r3.Vec
	tweens  [3]*gween.Tween
}

var (
	DefaultHMD  = r3.Vec{Y: 1.6}
	DefaultHand = r3.Vec{X: 0.2, Y: 1.3, Z: 0.25}
)

func NewPlayer(sc *Scenario) *Player {
	hmd, err := vec(sc.HMD, "hmd")
	if err != nil {
		hmd = DefaultHMD
	}
	hand, err := vec(sc.Hand, "hand")
	if err != nil {
		hand = DefaultHand
	}
	return &Player{sc: sc, hmd: geom.At(hmd), hand: hand}
}

// Done reports whether every step has played.
func (p *Player) Done() bool { return p.step >= len(p.sc.Steps) }

func (p *Player) Hand() r3.Vec { return p.hand }

// Next advances the scenario by dt and returns this tick's poses and
// buttons. Instant steps take exactly one tick.
func (p *Player) Next(scene Scene, dt float64) Tick {
	p.buttons.ToggleMode = false
	phase := ""
	step := p.step

	if !p.Done() {
		st := p.sc.Steps[p.step]
		phase = st.Phase
		if st.Aim != "" && !p.started {
			p.aim = st.Aim
		}
		switch st.Phase {
		case PhasePress, PhaseRelease:
			b, _ := buttonOf(st.Button)
			*b(&p.buttons) = st.Phase == PhasePress
			p.advance()
		case PhaseToggle:
			p.buttons.ToggleMode = true
			p.advance()
		case PhaseWait:
			p.elapsed += dt
			if p.elapsed >= st.Duration {
				p.advance()
			}
		default:
			if !p.started {
				p.begin(scene, st)
			}
			if p.sample(dt) {
				p.advance()
			}
		}
	}

	return Tick{
		HMD:        p.hmd,
		Controller: geom.Pose{Position: p.hand, Rotation: p.orientation(scene)},
		Buttons:    p.buttons,
		Step:       step,
		Phase:      phase,
	}
}

func (p *Player) advance() {
	p.step++
	p.started = false
	p.elapsed = 0
}

// begin resolves the step goal once, at the start of the step.
func (p *Player) begin(scene Scene, st Step) {
	p.started = true
	p.from = p.hand
	goal := p.goal(scene, st)

	fn := easings[st.Ease]
	if fn == nil {
		fn = easings[DefaultEase]
	}
	d := float32(st.Duration)
	p.tweens = [3]*gween.Tween{
		gween.New(float32(p.from.X), float32(goal.X), d, fn),
		gween.New(float32(p.from.Y), float32(goal.Y), d, fn),
		gween.New(float32(p.from.Z), float32(goal.Z), d, fn),
	}
}

func (p *Player) goal(scene Scene, st Step) r3.Vec {
	switch {
	case st.To != nil:
		v, _ := vec(st.To, "to")
		return v
	case st.By != nil:
		v, _ := vec(st.By, "by")
		return r3.Add(p.hand, v)
	case st.Toward != "":
		if target, ok := scene.Locate(st.Toward); ok {
			dir := geom.Direction(p.hmd.Position, target, p.hmd.Forward())
			return r3.Add(p.hmd.Position, r3.Scale(st.Distance, dir))
		}
	case st.Touch != "":
		if target, ok := scene.Locate(st.Touch); ok {
			return scene.HandFor(p.hmd, target)
		}
	case st.Zone != "":
		if target, ok := scene.Locate(st.Zone); ok {
			if hand, ok := scene.CarryTo(p.hmd, p.hand, target); ok {
				return hand
			}
		}
	}
	return p.hand
}

// sample advances the motion tweens and reports whether they finished.
func (p *Player) sample(dt float64) bool {
	var out [3]float32
	done := true
	for i, tw := range p.tweens {
		v, finished := tw.Update(float32(dt))
		out[i] = v
		done = done && finished
	}
	p.hand = r3.Vec{X: float64(out[0]), Y: float64(out[1]), Z: float64(out[2])}
	return done
}

// orientation points the controller at the aim target, or along the arm.
func (p *Player) orientation(scene Scene) r3.Rotation {
	if p.aim != "" && p.aim != "none" {
		if target, ok := scene.Locate(p.aim); ok {
			return geom.LookAt(p.hand, target)
		}
	}
	return geom.LookAt(p.hmd.Position, p.hand)
}

func buttonOf(name string) (func(*input.Snapshot) *bool, error) {
	switch strings.ToLower(name) {
	case "grab", "":
		return func(s *input.Snapshot) *bool { return &s.Grab }, nil
	case "trigger":
		return func(s *input.Snapshot) *bool { return &s.Trigger }, nil
	}
	return nil, fmt.Errorf("%w: unknown button %q", ErrInvalidScenario, name)
}

func vec(v []float64, field string) (r3.Vec, error) {
	if len(v) != 3 {
		return r3.Vec{}, fmt.Errorf("%w: %s needs 3 components, got %d", ErrInvalidScenario, field, len(v))
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}, nil
}
