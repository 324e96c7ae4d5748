package stopwatch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestStopWatch_NeverStarted(t *testing.T) {
	sw := New()
	assert.Zero(t, sw.ElapsedSeconds())
	assert.False(t, sw.Running())

	// Stopping a stopwatch that never ran is a no-op
	sw.Stop()
	assert.Zero(t, sw.ElapsedSeconds())
}

func TestStopWatch_ElapsedWhileRunning(t *testing.T) {
	clock := newFakeClock()
	sw := NewWithClock(clock.Now)

	sw.Reset()
	sw.Start()
	clock.Advance(2 * time.Second)

	assert.InDelta(t, 2.0, sw.ElapsedSeconds(), 0.001)
	assert.True(t, sw.Running())
}

func TestStopWatch_FrozenAfterStop(t *testing.T) {
	clock := newFakeClock()
	sw := NewWithClock(clock.Now)

	sw.Start()
	clock.Advance(2 * time.Second)
	sw.Stop()
	clock.Advance(10 * time.Second)

	assert.InDelta(t, 2.0, sw.ElapsedSeconds(), 0.001)
	clock.Advance(time.Minute)
	assert.InDelta(t, 2.0, sw.ElapsedSeconds(), 0.001)
}

func TestStopWatch_AccumulatesAcrossCycles(t *testing.T) {
	clock := newFakeClock()
	sw := NewWithClock(clock.Now)

	sw.Start()
	clock.Advance(1500 * time.Millisecond)
	sw.Stop()

	clock.Advance(5 * time.Second) // paused segment is not counted

	sw.Start()
	clock.Advance(500 * time.Millisecond)

	assert.InDelta(t, 2.0, sw.ElapsedSeconds(), 0.001)
}

func TestStopWatch_StartWhileRunningReanchors(t *testing.T) {
	clock := newFakeClock()
	sw := NewWithClock(clock.Now)

	sw.Start()
	clock.Advance(3 * time.Second)
	sw.Start()
	clock.Advance(time.Second)

	assert.InDelta(t, 1.0, sw.ElapsedSeconds(), 0.001)
}

func TestStopWatch_Reset(t *testing.T) {
	clock := newFakeClock()
	sw := NewWithClock(clock.Now)

	sw.Start()
	clock.Advance(4 * time.Second)
	sw.Reset()

	assert.False(t, sw.Running())
	assert.Zero(t, sw.ElapsedSeconds())
}

func TestStopWatch_MonotonicWhileRunning(t *testing.T) {
	clock := newFakeClock()
	sw := NewWithClock(clock.Now)
	sw.Start()

	last := sw.ElapsedSeconds()
	for i := 0; i < 10; i++ {
		clock.Advance(100 * time.Millisecond)
		current := sw.ElapsedSeconds()
		assert.GreaterOrEqual(t, current, last)
		last = current
	}

	// A clock stepping backwards must not decrease the reading below the accumulated total
	clock.Advance(-10 * time.Second)
	assert.GreaterOrEqual(t, sw.ElapsedSeconds(), 0.0)
}
