package profiler

import (
	"time"

	"github.com/sarchlab/framescope/tree"
)

// A FlushScheduler keeps at most one deferred flush pending.
type FlushScheduler struct {
	deferrer tree.Deferrer
	quantum  time.Duration
	flush    func()

	pending    bool
	generation uint64
	scheduled  uint64
}

// NewFlushScheduler creates a scheduler that runs flush quantum after the
// first request of a window.
func NewFlushScheduler(
	deferrer tree.Deferrer,
	quantum time.Duration,
	flush func(),
) *FlushScheduler {
	return &FlushScheduler{
		deferrer: deferrer,
		quantum:  quantum,
		flush:    flush,
	}
}

// RequestFlush schedules a flush unless one is already pending. It returns
// whether a new flush was scheduled.
func (s *FlushScheduler) RequestFlush() bool {
	if s.pending {
		return false
	}

	s.pending = true
	s.scheduled++

	generation := s.generation
	s.deferrer.Defer(s.quantum, func() {
		s.fire(generation)
	})

	return true
}

func (s *FlushScheduler) fire(generation uint64) {
	if generation != s.generation || !s.pending {
		return
	}

	s.pending = false
	s.flush()
}

// Pending tells whether a flush is scheduled.
func (s *FlushScheduler) Pending() bool {
	return s.pending
}

// Scheduled returns how many flushes were scheduled so far.
func (s *FlushScheduler) Scheduled() uint64 {
	return s.scheduled
}

// Cancel turns the pending flush, if any, into a no-op.
func (s *FlushScheduler) Cancel() {
	s.generation++
	s.pending = false
}
