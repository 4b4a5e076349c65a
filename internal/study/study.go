// Package study runs the four-task placement study: it counts selections
// and placement attempts per task and summarises each participant into a
// TrialRecord.
package study

import (
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/rafidiit-ops/ReverseGoGo/internal/log"
	"github.com/rafidiit-ops/ReverseGoGo/internal/placement"
	"github.com/rafidiit-ops/ReverseGoGo/internal/world"
	"gonum.org/v1/gonum/stat"
)

// TasksPerStudy is the number of correct placements that completes a study.
const TasksPerStudy = 4

// TrialRecord is one participant's summary.
type TrialRecord struct {
	ParticipantID   string
	Timestamp       time.Time
	SuccessRate     float64
	ErrorRate       float64
	AverageTaskTime float64
	PullingAccuracy float64
}

// State is the study progress. It is passed into and returned from Tick;
// the controller keeps none of it.
type State struct {
	ParticipantID string
	TrialIndex    int
	TaskStart     float64

	SelectionCount int
	LastHeld       int

	Successes int
	Attempts  int

	TaskTimes       []float64
	SelectionCounts []int
}

func NewState(participantID string, now float64) State {
	return State{ParticipantID: participantID, TaskStart: now}
}

// Done reports whether every task has been completed.
func (s State) Done() bool { return s.TrialIndex >= TasksPerStudy }

// Input is what the study sees each tick.
type Input struct {
	// Now is the tick time in seconds.
	Now float64
	// Held is the entity held by the current grab owner, or world.None.
	Held   int
	Events []placement.Event
}

// Recorder persists finished trials.
type Recorder interface {
	Append(r TrialRecord) error
	NextParticipantID() string
}

// Resetter puts the scene back for the next participant.
type Resetter interface {
	Reset()
}

type ResetFunc func()

func (f ResetFunc) Reset() { f() }

type Controller struct {
	rec   Recorder
	reset Resetter
	clock func() time.Time
	log   *slog.Logger
}

// NewController builds a study controller. reset may be nil.
func NewController(rec Recorder, reset Resetter, logger *slog.Logger) *Controller {
	return &Controller{rec: rec, reset: reset, clock: time.Now, log: log.Or(logger).With("component", "study")}
}

// SetClock replaces the wall clock used to timestamp records.
func (c *Controller) SetClock(clock func() time.Time) { c.clock = clock }

// Start fetches the first participant id.
func (c *Controller) Start(now float64) State {
	id := c.rec.NextParticipantID()
	c.log.Info("study started", "participant", id)
	return NewState(id, now)
}

// Tick counts selection transitions, then applies this tick's placement
// events. When the last task completes it returns the finished record
// together with a fresh state for the next participant.
func (c *Controller) Tick(s State, in Input) (State, *TrialRecord) {
	if in.Held != world.None && in.Held != s.LastHeld {
		s.SelectionCount++
		c.log.Debug("selection", "entity", in.Held, "count", s.SelectionCount)
	}
	s.LastHeld = in.Held

	for _, ev := range in.Events {
		s.Attempts++
		if !ev.IsCorrect {
			c.log.Info("incorrect placement", "entity", ev.EntityName, "zone", ev.ZoneLabel)
			continue
		}

		s.Successes++
		elapsed := in.Now - s.TaskStart
		s.TaskTimes = append(slices.Clip(s.TaskTimes), elapsed)
		s.SelectionCounts = append(slices.Clip(s.SelectionCounts), s.SelectionCount)
		s.TrialIndex++
		c.log.Info("correct placement", "entity", ev.EntityName, "zone", ev.ZoneLabel,
			"seconds", elapsed, "selections", s.SelectionCount)

		if s.Done() {
			rec := Summarize(s, c.clock())
			return c.finish(rec, in.Now), &rec
		}
		s.TaskStart = in.Now
		s.SelectionCount = 0
		s.LastHeld = world.None
	}
	return s, nil
}

func (c *Controller) finish(rec TrialRecord, now float64) State {
	c.log.Info("study complete",
		"participant", rec.ParticipantID,
		"success_rate", rec.SuccessRate,
		"error_rate", rec.ErrorRate,
		"avg_task_time", rec.AverageTaskTime,
		"pulling_accuracy", rec.PullingAccuracy)

	if err := c.rec.Append(rec); err != nil {
		c.log.Error("failed to record trial", "participant", rec.ParticipantID, "err", err)
	}
	if c.reset != nil {
		c.reset.Reset()
	}
	next := c.rec.NextParticipantID()
	c.log.Info("ready for next participant", "participant", next)
	return NewState(next, now)
}

// Summarize computes the participant metrics from a state.
func Summarize(s State, at time.Time) TrialRecord {
	rec := TrialRecord{
		ParticipantID: s.ParticipantID,
		Timestamp:     at,
		ErrorRate:     float64(s.Attempts - s.Successes),
	}
	if s.Attempts > 0 {
		rec.SuccessRate = float64(s.Successes) / float64(s.Attempts) * 100
	}
	if len(s.TaskTimes) > 0 {
		rec.AverageTaskTime = stat.Mean(s.TaskTimes, nil)
	}
	if len(s.SelectionCounts) > 0 {
		counts := make([]float64, len(s.SelectionCounts))
		for i, n := range s.SelectionCounts {
			counts[i] = float64(n)
		}
		mean := stat.Mean(counts, nil)
		rec.PullingAccuracy = math.Max(0, 1-(mean-1)*0.2) * 100
	}
	return rec
}
