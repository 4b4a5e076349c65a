package sim

import (
	"cmp"
	"errors"
	"slices"
	"sync"

	"github.com/rafidiit-ops/ReverseGoGo/internal/recorder"
	"github.com/rafidiit-ops/ReverseGoGo/internal/study"
)

// Shared lets concurrent studies use one recorder. Ids are handed out from
// an in-memory counter seeded by the recorder, and records are held until
// Flush writes them in id order.
type Shared struct {
	mu      sync.Mutex
	rec     study.Recorder
	next    string
	pending []study.TrialRecord
	flushed []study.TrialRecord
}

func NewShared(rec study.Recorder) *Shared {
	return &Shared{rec: rec}
}

func (s *Shared) NextParticipantID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next == "" {
		s.next = s.rec.NextParticipantID()
	}
	id := s.next
	s.next = recorder.NextID(id)
	return id
}

func (s *Shared) Append(r study.TrialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, r)
	return nil
}

// Flush appends every pending record to the underlying recorder. Records
// that fail to write are dropped and their errors joined.
func (s *Shared) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slices.SortStableFunc(s.pending, func(a, b study.TrialRecord) int {
		return cmp.Or(
			cmp.Compare(len(a.ParticipantID), len(b.ParticipantID)),
			cmp.Compare(a.ParticipantID, b.ParticipantID),
		)
	})
	var errs []error
	for _, r := range s.pending {
		if err := s.rec.Append(r); err != nil {
			errs = append(errs, err)
			continue
		}
		s.flushed = append(s.flushed, r)
	}
	s.pending = s.pending[:0]
	return errors.Join(errs...)
}

// Flushed returns the records written so far.
func (s *Shared) Flushed() []study.TrialRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.flushed)
}
