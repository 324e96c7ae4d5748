package audio

import (
	"log/slog"
	"strings"
)

// BackendType represents the type of audio backend
type BackendType string

const (
	BackendTypeMalgo BackendType = "malgo"
	BackendTypeAuto  BackendType = "auto"
)

// Source is a capture device. Index is the AudioSource value that selects it.
type Source struct {
	Index int
	Name  string
	ID    string
}

// AudioBackend defines the interface for audio backend implementations
type AudioBackend interface {
	CapabilityProvider

	// Create a new single-use recorder handle
	NewRecorder() Recorder

	// List available capture sources
	ListSources() ([]Source, error)

	// Report whether the process can open any capture device
	CaptureAvailable() (bool, error)

	// Get the backend type
	GetType() BackendType
}

// NewBackend creates the backend named in configuration
func NewBackend(name string) AudioBackend {
	switch determineBackend(name) {
	case BackendTypeMalgo:
		return NewMalgoBackend()
	default:
		return NewMalgoBackend()
	}
}

// determineBackend resolves a configured backend name
func determineBackend(name string) BackendType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto", "malgo", "miniaudio":
		return BackendTypeMalgo
	default:
		slog.Warn("Unknown audio backend, falling back to malgo", "backend", name)
		return BackendTypeMalgo
	}
}

// GetAvailableBackends returns list of available backends on current system
func GetAvailableBackends() []BackendType {
	return []BackendType{BackendTypeMalgo}
}

// IsKnownBackend reports whether name selects a backend without falling back
func IsKnownBackend(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto", "malgo", "miniaudio":
		return true
	}
	return false
}
