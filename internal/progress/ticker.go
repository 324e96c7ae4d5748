// Package progress reports elapsed recording time on a fixed schedule.
package progress

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// DefaultPeriod is the interval between progress ticks
const DefaultPeriod = time.Second

// Recording is the view of a recording the ticker reads from.
// IfActive calls fn with the elapsed time only while the recording is
// running and not paused, and reports whether fn ran. Implementations hold
// their state stable for the duration of fn, so a tick can never land
// after the recording has stopped.
type Recording interface {
	IfActive(fn func(elapsedSeconds float64)) bool
}

// Presence receives the rendered status line on every reported tick
type Presence interface {
	Start(title, text string)
}

// Options configures a Ticker
type Options struct {
	Period     time.Duration
	Title      string
	TextPrefix string
	OnProgress func(elapsedSeconds float64)
	Presence   Presence
}

// Ticker fires immediately on Start and then once per period until Stop.
// Ticks while the recording is paused are suppressed but the schedule keeps
// running, so resuming does not need to re-arm it.
type Ticker struct {
	source Recording
	opts   Options

	once    sync.Once
	stop    chan struct{}
	done    chan struct{}
	started bool
}

// New creates a stopped ticker reading from source
func New(source Recording, opts Options) *Ticker {
	if opts.Period <= 0 {
		opts.Period = DefaultPeriod
	}
	return &Ticker{
		source: source,
		opts:   opts,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the schedule. It must be called at most once.
func (t *Ticker) Start() {
	t.started = true
	go func() {
		defer close(t.done)

		ticker := time.NewTicker(t.opts.Period)
		defer ticker.Stop()

		t.Tick()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				t.Tick()
			}
		}
	}()
}

// Stop cancels the schedule without waiting for an in-flight tick, so it
// is safe to call while holding locks the tick itself may need.
func (t *Ticker) Stop() {
	t.once.Do(func() {
		close(t.stop)
		if !t.started {
			close(t.done)
		}
	})
}

// Done is closed once the schedule goroutine has exited
func (t *Ticker) Done() <-chan struct{} {
	return t.done
}

// Tick performs one tick and reports whether anything was emitted
func (t *Ticker) Tick() bool {
	select {
	case <-t.stop:
		return false
	default:
	}

	return t.source.IfActive(func(elapsed float64) {
		if t.opts.OnProgress != nil {
			t.opts.OnProgress(elapsed)
		}
		if t.opts.Presence != nil {
			t.opts.Presence.Start(t.opts.Title, t.opts.TextPrefix+FormatElapsed(elapsed))
		}
	})
}

// FormatElapsed renders seconds as HH:MM:SS, rounding to the nearest second.
// Hours are not capped at 99.
func FormatElapsed(seconds float64) string {
	secs := int64(math.Round(seconds))
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}
