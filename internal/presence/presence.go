// Package presence keeps a visible indicator on screen while a recording
// is running, so the user and the desktop session can see the process is busy.
package presence

import (
	"log/slog"
	"sync"
)

// Controller starts and stops the foreground indicator.
// Start may be called repeatedly to refresh the text.
type Controller interface {
	Start(title, text string) error
	Stop() error
}

// BestEffort wraps a Controller so that failures are logged and never
// reach the recording session.
type BestEffort struct {
	inner Controller

	mu      sync.Mutex
	started bool
}

// NewBestEffort wraps inner. A nil inner produces a no-op controller.
func NewBestEffort(inner Controller) *BestEffort {
	return &BestEffort{inner: inner}
}

// Start shows or refreshes the indicator
func (b *BestEffort) Start(title, text string) {
	if b.inner == nil {
		return
	}
	if err := b.inner.Start(title, text); err != nil {
		slog.Error("Foreground presence is not started", "error", err)
		return
	}
	b.mu.Lock()
	b.started = true
	b.mu.Unlock()
}

// Stop removes the indicator
func (b *BestEffort) Stop() {
	if b.inner == nil {
		return
	}
	b.mu.Lock()
	b.started = false
	b.mu.Unlock()

	if err := b.inner.Stop(); err != nil {
		slog.Error("Foreground presence failed to stop", "error", err)
	}
}

// Active reports whether the last Start succeeded and no Stop followed
func (b *BestEffort) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}

// Nop is a Controller that does nothing
type Nop struct{}

func (Nop) Start(string, string) error { return nil }
func (Nop) Stop() error               { return nil }
