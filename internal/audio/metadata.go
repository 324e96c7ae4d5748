package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/tphakala/flac"
)

// ErrUnknownContainer is returned when no duration reader exists for a file type
var ErrUnknownContainer = errors.New("unknown audio container")

// ProbeDuration reads the playback duration from the file's own metadata.
// The container is identified by its magic bytes; the extension only
// decides for files too short or unrecognized to tell.
func ProbeDuration(path string) (time.Duration, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	container, err := sniffContainer(file, path)
	if err != nil {
		return 0, err
	}

	switch container {
	case "wav":
		return wavDuration(file)
	case "flac":
		return flacDuration(file)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownContainer, filepath.Ext(path))
	}
}

// sniffContainer names the container of file and rewinds it
func sniffContainer(file *os.File, path string) (string, error) {
	magic := make([]byte, 4)
	n, err := io.ReadFull(file, magic)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind %s: %w", path, err)
	}

	switch {
	case n == 4 && bytes.Equal(magic, []byte("RIFF")):
		return "wav", nil
	case n == 4 && bytes.Equal(magic, []byte("fLaC")):
		return "flac", nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return "wav", nil
	case ".flac":
		return "flac", nil
	}
	return "", nil
}

func wavDuration(file *os.File) (time.Duration, error) {
	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return 0, errors.New("invalid WAV file format")
	}

	d, err := decoder.Duration()
	if err != nil {
		return 0, fmt.Errorf("failed to read WAV duration: %w", err)
	}
	return d, nil
}

func flacDuration(file *os.File) (time.Duration, error) {
	decoder, err := flac.NewDecoder(file)
	if err != nil {
		return 0, fmt.Errorf("failed to read FLAC stream info: %w", err)
	}
	if decoder.SampleRate <= 0 {
		return 0, errors.New("invalid FLAC sample rate")
	}

	seconds := float64(decoder.TotalSamples) / float64(decoder.SampleRate)
	return time.Duration(seconds * float64(time.Second)), nil
}
