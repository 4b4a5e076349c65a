// Package optim sweeps technique parameters over a grid and scores each
// point with a scripted study.
package optim

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/rafidiit-ops/ReverseGoGo/internal/config"
)

var ErrUnknownParam = errors.New("optim: unknown parameter")

// Params are the tunable knobs, keyed by their yaml path.
var Params = map[string]func(*config.Config, float64){
	"depth.threshold":         func(c *config.Config, v float64) { c.Depth.Threshold = v },
	"depth.power":             func(c *config.Config, v float64) { c.Depth.Power = v },
	"depth.max_multiplier":    func(c *config.Config, v float64) { c.Depth.MaxMultiplier = v },
	"gogo.threshold":          func(c *config.Config, v float64) { c.GoGo.Threshold = v },
	"gogo.scaling_factor":     func(c *config.Config, v float64) { c.GoGo.ScalingFactor = v },
	"gogo.max_extension":      func(c *config.Config, v float64) { c.GoGo.MaxExtension = v },
	"reverse.power":           func(c *config.Config, v float64) { c.Reverse.Power = v },
	"reverse.max_multiplier":  func(c *config.Config, v float64) { c.Reverse.MaxMultiplier = v },
	"reverse.attach_distance": func(c *config.Config, v float64) { c.Reverse.AttachDistance = v },
}

// Objective scores a config; lower is better.
type Objective func(ctx context.Context, cfg *config.Config) (float64, error)

// Trial is one evaluated grid point. Err is set when the point's config
// was invalid or the objective failed.
type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("optim: %d params but %d ranges", len(params), len(ranges))
	}
	for i, name := range params {
		if _, ok := Params[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownParam, name)
		}
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("optim: no values for %s", name)
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Size is the number of grid points.
func (g *GridSearch) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search evaluates every grid point on a copy of base and returns the best
// trial plus all trials in grid order. It stops early, returning what it
// has, when ctx is done.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, objective Objective) (Trial, []Trial, error) {
	best := Trial{Value: math.Inf(1)}
	trials := make([]Trial, 0, g.Size())

	err := g.searchRecursive(0, make(map[string]float64), func(params map[string]float64) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		cfg := *base
		for _, name := range g.paramNames {
			Params[name](&cfg, params[name])
		}
		t := Trial{Params: maps.Clone(params), Value: math.NaN()}
		if t.Err = cfg.Validate(); t.Err == nil {
			t.Value, t.Err = objective(ctx, &cfg)
		}
		trials = append(trials, t)
		if t.Err == nil && t.Value < best.Value {
			best = t
		}
		return nil
	})
	if best.Params == nil && err == nil {
		err = errors.New("optim: no grid point produced a finite score")
	}
	return best, trials, err
}

func (g *GridSearch) searchRecursive(depth int, current map[string]float64, visit func(map[string]float64) error) error {
	if depth == len(g.paramNames) {
		return visit(current)
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := maps.Clone(current)
		newParams[paramName] = val
		if err := g.searchRecursive(depth+1, newParams, visit); err != nil {
			return err
		}
	}
	return nil
}

// ParamNames lists Params in sorted order.
func ParamNames() []string {
	return slices.Sorted(maps.Keys(Params))
}
