// Package battery watches the host power state and fires a corrective
// action when charge is critically low and the device is not charging.
package battery

import (
	"errors"
	"log/slog"
	"sync"
)

// DefaultLowLevel is the charge percentage at or below which recording stops
const DefaultLowLevel = 5

// IsCritical reports whether an observation calls for a forced stop.
// Unknown (negative) levels never trigger.
func IsCritical(obs Observation, lowLevel int) bool {
	if obs.Level < 0 {
		return false
	}
	return obs.Level <= lowLevel && !obs.Charging
}

// Watchdog owns at most one subscription to a Source. While registered,
// the first critical observation invokes onLow; later ones are ignored
// until the next Register.
type Watchdog struct {
	source   Source
	lowLevel int
	onLow    func()

	mu    sync.Mutex
	sub   Subscription
	fired bool
}

// NewWatchdog creates an unregistered watchdog
func NewWatchdog(source Source, lowLevel int, onLow func()) *Watchdog {
	return &Watchdog{
		source:   source,
		lowLevel: lowLevel,
		onLow:    onLow,
	}
}

// Register subscribes to the source. Registering twice keeps the first subscription.
func (w *Watchdog) Register() error {
	if w.source == nil {
		return errors.New("no battery source configured")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.sub != nil {
		return nil
	}
	w.fired = false

	sub, err := w.source.Subscribe(w.Observe)
	if err != nil {
		return err
	}
	w.sub = sub
	slog.Debug("Battery watchdog registered", "low_level", w.lowLevel)
	return nil
}

// Unregister drops the subscription. It is safe to call repeatedly and
// from within the onLow callback. Errors are logged only.
func (w *Watchdog) Unregister() {
	w.mu.Lock()
	sub := w.sub
	w.sub = nil
	w.mu.Unlock()

	if sub == nil {
		return
	}
	if err := sub.Close(); err != nil {
		slog.Error("Error unregistering battery watchdog", "error", err)
		return
	}
	slog.Debug("Battery watchdog unregistered")
}

// Registered reports whether a subscription is held
func (w *Watchdog) Registered() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sub != nil
}

// Observe handles one power-state observation
func (w *Watchdog) Observe(obs Observation) {
	if !IsCritical(obs, w.lowLevel) {
		return
	}

	w.mu.Lock()
	if w.sub == nil || w.fired {
		w.mu.Unlock()
		return
	}
	w.fired = true
	w.mu.Unlock()

	slog.Warn("Battery critically low, stopping recording", "level", obs.Level, "charging", obs.Charging)
	if w.onLow != nil {
		w.onLow()
	}
}
