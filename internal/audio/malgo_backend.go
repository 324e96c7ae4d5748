package audio

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/gen2brain/malgo"
)

// MalgoBackend implements AudioBackend on top of miniaudio
type MalgoBackend struct {
	caps Capabilities
}

// NewMalgoBackend creates the backend and fixes its capabilities
func NewMalgoBackend() *MalgoBackend {
	return &MalgoBackend{
		caps: Capabilities{PauseResume: pauseResumeSupported(runtime.GOOS)},
	}
}

// pauseResumeSupported is true where miniaudio can stop and restart a
// capture device without reinitialising it.
func pauseResumeSupported(goos string) bool {
	switch goos {
	case "linux", "darwin", "windows", "freebsd":
		return true
	default:
		return false
	}
}

// Capabilities returns the capabilities computed at construction
func (b *MalgoBackend) Capabilities() Capabilities {
	return b.caps
}

// NewRecorder creates a new malgo recorder
func (b *MalgoBackend) NewRecorder() Recorder {
	return NewMalgoRecorder()
}

// ListSources returns the capture devices visible to miniaudio
func (b *MalgoBackend) ListSources() ([]Source, error) {
	ctx, err := initContext()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to get capture devices: %w", err)
	}

	sources := make([]Source, 0, len(infos))
	for i, info := range infos {
		sources = append(sources, Source{
			Index: i + 1,
			Name:  info.Name(),
			ID:    info.ID.String(),
		})
	}
	return sources, nil
}

// CaptureAvailable reports whether at least one capture device is visible
func (b *MalgoBackend) CaptureAvailable() (bool, error) {
	sources, err := b.ListSources()
	if err != nil {
		return false, err
	}
	return len(sources) > 0, nil
}

// GetType returns the backend type
func (b *MalgoBackend) GetType() BackendType {
	return BackendTypeMalgo
}

func initContext() (*malgo.AllocatedContext, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("miniaudio", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	return ctx, nil
}
