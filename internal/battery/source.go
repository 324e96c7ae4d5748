package battery

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/distatus/battery"
)

// ErrNoBattery is returned when the host reports no usable battery
var ErrNoBattery = errors.New("no battery present")

// Observation is a single power-state reading
type Observation struct {
	Level    int  // percent, negative when unknown
	Charging bool // charging or full
}

// Subscription is a registration with a Source. Close is idempotent and
// may be called from inside the observation callback.
type Subscription interface {
	Close() error
}

// Source delivers power-state observations to a callback
type Source interface {
	Subscribe(fn func(Observation)) (Subscription, error)
}

// ReadFunc reads the current power state
type ReadFunc func() (Observation, error)

// PollingSource polls a ReadFunc at a fixed interval. The current state is
// delivered immediately on subscribe, then after every interval.
type PollingSource struct {
	interval time.Duration
	read     ReadFunc
}

// NewPollingSource creates a source polling read every interval.
// A nil read uses the host battery.
func NewPollingSource(interval time.Duration, read ReadFunc) *PollingSource {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if read == nil {
		read = ReadHost
	}
	return &PollingSource{interval: interval, read: read}
}

// Subscribe starts a polling goroutine delivering to fn
func (p *PollingSource) Subscribe(fn func(Observation)) (Subscription, error) {
	if fn == nil {
		return nil, errors.New("observation callback is required")
	}

	sub := &pollingSubscription{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(sub.done)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.deliver(sub, fn)
		for {
			select {
			case <-sub.stop:
				return
			case <-ticker.C:
				p.deliver(sub, fn)
			}
		}
	}()

	slog.Debug("Battery polling started", "interval", p.interval)
	return sub, nil
}

func (p *PollingSource) deliver(sub *pollingSubscription, fn func(Observation)) {
	if sub.closed() {
		return
	}
	obs, err := p.read()
	if err != nil {
		if !errors.Is(err, ErrNoBattery) {
			slog.Debug("Battery read failed", "error", err)
		}
		return
	}
	fn(obs)
}

type pollingSubscription struct {
	once sync.Once
	stop chan struct{}
	done chan struct{}
}

func (s *pollingSubscription) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *pollingSubscription) closed() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// Done is closed when the polling goroutine has exited
func (s *pollingSubscription) Done() <-chan struct{} {
	return s.done
}

// ReadHost aggregates all host batteries into one observation
func ReadHost() (Observation, error) {
	batteries, err := battery.GetAll()
	if err != nil && len(batteries) == 0 {
		return Observation{}, fmt.Errorf("failed to read battery state: %w", err)
	}
	return aggregate(batteries)
}

func aggregate(batteries []*battery.Battery) (Observation, error) {
	var current, full float64
	charging := false
	usable := 0

	for _, b := range batteries {
		if b == nil || b.Full <= 0 {
			continue
		}
		usable++
		current += b.Current
		full += b.Full
		if b.State.Raw == battery.Charging || b.State.Raw == battery.Full {
			charging = true
		}
	}

	if usable == 0 {
		return Observation{}, ErrNoBattery
	}

	level := int(math.Round(current / full * 100))
	if level > 100 {
		level = 100
	}
	return Observation{Level: level, Charging: charging}, nil
}
