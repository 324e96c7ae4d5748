package audio

import (
	"errors"
)

var (
	// ErrUnsupportedSettings is returned when a recorder cannot produce the
	// requested source/format/encoder/rate combination
	ErrUnsupportedSettings = errors.New("unsupported recorder settings")

	// ErrNoAudioData is returned by Stop when nothing was captured
	ErrNoAudioData = errors.New("no valid audio data received")

	// ErrNotPrepared is returned when a capture call is made before Prepare
	ErrNotPrepared = errors.New("recorder not prepared")
)

// Settings describes what a recorder should capture and where to write it
type Settings struct {
	Source     int
	Format     OutputFormat
	Encoder    Encoder
	SampleRate int
	Channels   int
	BitRate    int
	OutputFile string
}

// Capabilities lists optional features of a backend. They are computed
// once when the backend is constructed.
type Capabilities struct {
	PauseResume bool
}

// CapabilityProvider reports the fixed capabilities of a platform
type CapabilityProvider interface {
	Capabilities() Capabilities
}

// Recorder is a single-use hardware recording handle.
// The lifecycle is Configure -> Prepare -> Start -> (Pause/Resume)* -> Stop -> Release.
type Recorder interface {
	Configure(settings Settings) error
	Prepare() error
	Start() error
	Pause() error
	Resume() error
	Stop() error

	// Release frees the handle. It is safe to call more than once.
	Release()
}
