// Package recorder persists finished study trials. The CSV backend appends
// to a single ParticipantData.csv shared by every participant; the SQLite
// backend keeps the same rows in a trials table.
package recorder

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/rafidiit-ops/ReverseGoGo/internal/study"
)

const (
	Header             = "ParticipantID,DateTime,SuccessRate,ErrorRate,AverageTaskTime,PullingAccuracy"
	TimeLayout         = "2006-01-02 15:04:05"
	FirstParticipantID = "001"
)

var (
	ErrUnknownBackend = errors.New("recorder: unknown backend")
	ErrMalformedRow   = errors.New("recorder: malformed row")
)

// WriteError reports a failed append. The study keeps going after one.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("recorder: write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

type Recorder interface {
	study.Recorder
	Init() error
	Records() ([]study.TrialRecord, error)
	Path() string
	Close() error
}

// Open returns the named backend storing under dir.
func Open(backend, dir string, logger *slog.Logger) (Recorder, error) {
	switch strings.ToLower(backend) {
	case "", "csv":
		return NewCSV(dir, logger), nil
	case "sqlite":
		return NewSQLite(dir, logger), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
}

// FormatID renders a participant number as a zero-padded id.
func FormatID(n int) string {
	return fmt.Sprintf("%03d", n)
}

// NextID returns the id following last, or FirstParticipantID when last is
// not a number.
func NextID(last string) string {
	n, err := strconv.Atoi(strings.TrimSpace(last))
	if err != nil {
		return FirstParticipantID
	}
	return FormatID(n + 1)
}

// FormatRow renders r as CSV fields.
func FormatRow(r study.TrialRecord) []string {
	return []string{
		r.ParticipantID,
		r.Timestamp.Format(TimeLayout),
		formatFloat(r.SuccessRate),
		formatFloat(r.ErrorRate),
		formatFloat(r.AverageTaskTime),
		formatFloat(r.PullingAccuracy),
	}
}

// ParseRow is the inverse of FormatRow. Timestamps are read as local time.
func ParseRow(fields []string) (study.TrialRecord, error) {
	if len(fields) != 6 {
		return study.TrialRecord{}, fmt.Errorf("%w: want 6 fields, got %d", ErrMalformedRow, len(fields))
	}
	ts, err := time.ParseInLocation(TimeLayout, fields[1], time.Local)
	if err != nil {
		return study.TrialRecord{}, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}
	var nums [4]float64
	for i := range nums {
		nums[i], err = strconv.ParseFloat(fields[i+2], 64)
		if err != nil {
			return study.TrialRecord{}, fmt.Errorf("%w: %v", ErrMalformedRow, err)
		}
	}
	return study.TrialRecord{
		ParticipantID:   fields[0],
		Timestamp:       ts,
		SuccessRate:     nums[0],
		ErrorRate:       nums[1],
		AverageTaskTime: nums[2],
		PullingAccuracy: nums[3],
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
