package stopwatch

import (
	"sync"
	"time"
)

// StopWatch accumulates elapsed time across start/stop cycles.
// It is safe to read from other goroutines while the owner starts and stops it.
type StopWatch struct {
	mu          sync.Mutex
	now         func() time.Time
	accumulated time.Duration
	running     bool
	resumedAt   time.Time
}

// New creates a stopped stopwatch using the wall clock
func New() *StopWatch {
	return NewWithClock(time.Now)
}

// NewWithClock creates a stopped stopwatch that reads time from now
func NewWithClock(now func() time.Time) *StopWatch {
	if now == nil {
		now = time.Now
	}
	return &StopWatch{now: now}
}

// Reset zeroes the accumulated time and clears the running flag
func (s *StopWatch) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accumulated = 0
	s.running = false
	s.resumedAt = time.Time{}
}

// Start marks the stopwatch running. Calling it while running re-anchors
// the reference time without folding the time since the previous anchor.
func (s *StopWatch) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = true
	s.resumedAt = s.now()
}

// Stop folds the time since the last Start into the accumulated total.
func (s *StopWatch) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.accumulated += s.sinceResume()
	s.running = false
}

// Running reports whether the stopwatch is currently counting
func (s *StopWatch) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Elapsed returns the accumulated duration plus the running segment, if any
func (s *StopWatch) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return s.accumulated
	}
	return s.accumulated + s.sinceResume()
}

// ElapsedSeconds returns Elapsed as fractional seconds
func (s *StopWatch) ElapsedSeconds() float64 {
	return s.Elapsed().Seconds()
}

// sinceResume never goes negative, so a clock step backwards cannot make
// the elapsed reading decrease.
func (s *StopWatch) sinceResume() time.Duration {
	d := s.now().Sub(s.resumedAt)
	if d < 0 {
		return 0
	}
	return d
}
