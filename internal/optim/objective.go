package optim

import (
	"context"
	"fmt"
	"math"

	"github.com/rafidiit-ops/ReverseGoGo/internal/automation"
	"github.com/rafidiit-ops/ReverseGoGo/internal/config"
	"github.com/rafidiit-ops/ReverseGoGo/internal/log"
	"github.com/rafidiit-ops/ReverseGoGo/internal/metrics"
	"github.com/rafidiit-ops/ReverseGoGo/internal/study"
	"github.com/rafidiit-ops/ReverseGoGo/internal/testbed"
)

// Record-derived objectives. Any metric name from metrics.Default is also
// accepted and minimised as is.
const (
	TaskTime = "task_time"
	Errors   = "errors"
	// Failure is 100 minus the success rate.
	Failure = "failure"
)

// scratch keeps a study's records in memory.
type scratch struct{ records []study.TrialRecord }

func (s *scratch) Append(r study.TrialRecord) error {
	s.records = append(s.records, r)
	return nil
}

func (s *scratch) NextParticipantID() string { return "001" }

// StudyObjective plays the built-in scenario for the config's technique and
// reads name from the finished participant or the run's metrics. A run
// that finishes nobody scores +Inf.
func StudyObjective(name string) (Objective, error) {
	known := name == TaskTime || name == Errors || name == Failure
	for _, m := range metrics.Default() {
		known = known || m.Name() == name
	}
	if !known {
		return nil, fmt.Errorf("optim: unknown objective %q", name)
	}

	return func(ctx context.Context, cfg *config.Config) (float64, error) {
		kind, err := cfg.Kind()
		if err != nil {
			return 0, err
		}
		sc, err := automation.Builtin(kind, testbed.DefaultLayout().Tasks())
		if err != nil {
			return 0, err
		}
		tb, err := testbed.New(cfg, &scratch{}, log.L())
		if err != nil {
			return 0, err
		}
		for _, m := range metrics.Default() {
			tb.AddMetric(m)
		}
		res, err := tb.Run(ctx, automation.NewPlayer(sc))
		if err != nil {
			return 0, err
		}

		if v, ok := res.Metrics[name]; ok {
			return v, nil
		}
		if len(res.Records) == 0 {
			return math.Inf(1), nil
		}
		r := res.Records[0]
		switch name {
		case TaskTime:
			return r.AverageTaskTime, nil
		case Errors:
			return r.ErrorRate, nil
		default:
			return 100 - r.SuccessRate, nil
		}
	}, nil
}
