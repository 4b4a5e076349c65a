// Package sim runs batches of scripted participants concurrently, one
// testbed per participant, sharing a single recorder.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rafidiit-ops/ReverseGoGo/internal/automation"
	"github.com/rafidiit-ops/ReverseGoGo/internal/config"
	"github.com/rafidiit-ops/ReverseGoGo/internal/grab"
	"github.com/rafidiit-ops/ReverseGoGo/internal/log"
	"github.com/rafidiit-ops/ReverseGoGo/internal/study"
	"github.com/rafidiit-ops/ReverseGoGo/internal/testbed"
	"golang.org/x/sync/errgroup"
)

var ErrEmptyPlan = errors.New("sim: nothing to run")

// RunError ties a failure to the run that produced it.
type RunError struct {
	Run       int
	Technique string
	Err       error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("sim: run %d (%s): %v", e.Run, e.Technique, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Plan is one synthetic participant. A nil Scenario means the built-in one
// for Technique.
type Plan struct {
	Technique string
	Scenario  *automation.Scenario
}

type Outcome struct {
	Run       int
	Technique grab.Kind
	Result    *testbed.Result
}

type Ensemble struct {
	cfg     *config.Config
	plans   []Plan
	workers int
	metrics func() []testbed.Metric
	log     *slog.Logger
}

// NewEnsemble runs plans on at most workers goroutines. Each run gets its
// own copy of cfg.
func NewEnsemble(cfg *config.Config, plans []Plan, workers int, logger *slog.Logger) *Ensemble {
	return &Ensemble{
		cfg:     cfg,
		plans:   plans,
		workers: max(workers, 1),
		log:     log.Or(logger).With("component", "ensemble"),
	}
}

// WithMetrics attaches a fresh metric set, built by f, to every run.
func (e *Ensemble) WithMetrics(f func() []testbed.Metric) *Ensemble {
	e.metrics = f
	return e
}

// Run plays every plan and writes the finished participants to rec in id
// order once all runs are done. Testbeds are built up front so participant
// ids follow plan order.
func (e *Ensemble) Run(ctx context.Context, rec study.Recorder) ([]Outcome, error) {
	if len(e.plans) == 0 {
		return nil, ErrEmptyPlan
	}

	shared := NewShared(rec)
	beds := make([]*testbed.Testbed, len(e.plans))
	players := make([]*automation.Player, len(e.plans))
	outcomes := make([]Outcome, len(e.plans))

	for i, p := range e.plans {
		cfg := *e.cfg
		if p.Technique != "" {
			cfg.Technique = p.Technique
		}
		kind, err := cfg.Kind()
		if err != nil {
			return nil, &RunError{Run: i, Technique: cfg.Technique, Err: err}
		}
		sc := p.Scenario
		if sc == nil {
			if sc, err = automation.Builtin(kind, testbed.DefaultLayout().Tasks()); err != nil {
				return nil, &RunError{Run: i, Technique: cfg.Technique, Err: err}
			}
		}
		tb, err := testbed.New(&cfg, shared, e.log.With("run", i))
		if err != nil {
			return nil, &RunError{Run: i, Technique: cfg.Technique, Err: err}
		}
		if e.metrics != nil {
			for _, m := range e.metrics() {
				tb.AddMetric(m)
			}
		}
		beds[i] = tb
		players[i] = automation.NewPlayer(sc)
		outcomes[i] = Outcome{Run: i, Technique: kind}
	}

	e.log.Info("ensemble started", "runs", len(beds), "workers", e.workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range beds {
		g.Go(func() error {
			res, err := beds[i].Run(gctx, players[i])
			outcomes[i].Result = res
			if err != nil {
				return &RunError{Run: i, Technique: outcomes[i].Technique.String(), Err: err}
			}
			return nil
		})
	}
	runErr := g.Wait()

	if err := shared.Flush(); err != nil {
		e.log.Warn("recorder flush failed", "err", err)
		runErr = errors.Join(runErr, err)
	}
	e.log.Info("ensemble finished", "recorded", len(shared.Flushed()))
	return outcomes, runErr
}
