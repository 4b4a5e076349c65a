package automation

import (
	"fmt"

	"github.com/rafidiit-ops/ReverseGoGo/internal/grab"
)

// Task is one placement the synthetic participant performs.
type Task struct {
	Object string
	Zone   string
}

// Builtin returns the canned four-task scenario for a technique.
func Builtin(kind grab.Kind, tasks []Task) (*Scenario, error) {
	sc := &Scenario{
		Name:      fmt.Sprintf("%s-study", kind),
		Technique: kind.String(),
		HMD:       []float64{DefaultHMD.X, DefaultHMD.Y, DefaultHMD.Z},
		Hand:      []float64{DefaultHand.X, DefaultHand.Y, DefaultHand.Z},
	}
	rest := []float64{DefaultHand.X, DefaultHand.Y, DefaultHand.Z}

	for _, t := range tasks {
		switch kind {
		case grab.TraditionalGoGo:
			sc.Steps = append(sc.Steps,
				Step{Phase: PhaseTouch, Touch: t.Object, Duration: 0.8},
				Step{Phase: PhaseWait, Duration: 0.1},
				Step{Phase: PhasePress, Button: "grab"},
				Step{Phase: PhaseCarry, Zone: t.Zone, Duration: 1.0},
				Step{Phase: PhaseWait, Duration: 0.15},
				Step{Phase: PhaseRelease, Button: "grab"},
			)
		case grab.ReverseGoGo:
			sc.Steps = append(sc.Steps,
				Step{Phase: PhaseReach, Toward: t.Object, Distance: 0.7, Duration: 0.6, Aim: "none"},
				Step{Phase: PhaseWait, Duration: 0.1},
				Step{Phase: PhasePress, Button: "grab"},
				Step{Phase: PhaseRetract, Toward: t.Object, Distance: 0.3, Duration: 1.0, Ease: "outQuad"},
				Step{Phase: PhaseWait, Duration: 0.2},
				Step{Phase: PhaseCarry, Zone: t.Zone, Duration: 0.8},
				Step{Phase: PhaseWait, Duration: 0.15},
				Step{Phase: PhaseRelease, Button: "grab"},
			)
		default:
			return nil, fmt.Errorf("%w: no builtin scenario for %s", ErrInvalidScenario, kind.Label())
		}
		sc.Steps = append(sc.Steps,
			Step{Phase: PhaseMove, To: rest, Duration: 0.5},
			Step{Phase: PhaseWait, Duration: 0.2},
		)
	}
	return sc, sc.Validate()
}
