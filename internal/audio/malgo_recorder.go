package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gen2brain/malgo"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const bitDepth = 16

// recorderState tracks the handle lifecycle
type recorderState int

const (
	stateInitial recorderState = iota
	stateConfigured
	statePrepared
	stateCapturing
	statePaused
	stateStopped
	stateReleased
)

// MalgoRecorder captures from a miniaudio device into a 16-bit PCM WAV file
type MalgoRecorder struct {
	mutex    sync.Mutex
	state    recorderState
	settings Settings

	ctx    *malgo.AllocatedContext
	device *malgo.Device

	file     *os.File
	encoder  *wav.Encoder
	frames   int64
	writeErr error
}

// NewMalgoRecorder creates an unconfigured recorder handle
func NewMalgoRecorder() *MalgoRecorder {
	return &MalgoRecorder{}
}

// Configure checks that the requested combination can be produced.
// Only WAV containers with 16-bit PCM are written by this backend.
func (r *MalgoRecorder) Configure(settings Settings) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.state != stateInitial && r.state != stateConfigured {
		return fmt.Errorf("configure called after prepare")
	}
	if err := validateSettings(settings); err != nil {
		return err
	}

	r.settings = settings
	r.state = stateConfigured
	return nil
}

func validateSettings(s Settings) error {
	switch s.Format {
	case FormatDefault, FormatWAV:
	default:
		return fmt.Errorf("%w: output format %q", ErrUnsupportedSettings, s.Format)
	}
	switch s.Encoder {
	case EncoderDefault, EncoderPCM16Bit:
	default:
		return fmt.Errorf("%w: audio encoder %q", ErrUnsupportedSettings, s.Encoder)
	}
	if s.SampleRate < 8000 || s.SampleRate > 192000 {
		return fmt.Errorf("%w: sample rate %d", ErrUnsupportedSettings, s.SampleRate)
	}
	if s.Channels < 1 || s.Channels > 2 {
		return fmt.Errorf("%w: channel count %d", ErrUnsupportedSettings, s.Channels)
	}
	if s.Source < 0 {
		return fmt.Errorf("%w: audio source %d", ErrUnsupportedSettings, s.Source)
	}
	if s.OutputFile == "" {
		return fmt.Errorf("%w: output file is required", ErrUnsupportedSettings)
	}
	return nil
}

// Prepare opens the capture device and the output file
func (r *MalgoRecorder) Prepare() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.state != stateConfigured {
		return fmt.Errorf("prepare called before configure")
	}

	ctx, err := initContext()
	if err != nil {
		return err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(r.settings.Channels)
	deviceConfig.SampleRate = uint32(r.settings.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if r.settings.Source > 0 {
		infos, err := ctx.Devices(malgo.Capture)
		if err != nil {
			r.freeContext(ctx)
			return fmt.Errorf("failed to get capture devices: %w", err)
		}
		if r.settings.Source > len(infos) {
			r.freeContext(ctx)
			return fmt.Errorf("%w: audio source %d (%d devices available)", ErrUnsupportedSettings, r.settings.Source, len(infos))
		}
		deviceConfig.Capture.DeviceID = infos[r.settings.Source-1].ID.Pointer()
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: r.onFrames,
	})
	if err != nil {
		r.freeContext(ctx)
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	file, err := os.Create(r.settings.OutputFile)
	if err != nil {
		device.Uninit()
		r.freeContext(ctx)
		return fmt.Errorf("failed to create output file: %w", err)
	}

	r.ctx = ctx
	r.device = device
	r.file = file
	r.encoder = wav.NewEncoder(file, r.settings.SampleRate, bitDepth, r.settings.Channels, 1)
	r.state = statePrepared

	slog.Debug("Capture device prepared",
		"output", r.settings.OutputFile,
		"sample_rate", r.settings.SampleRate,
		"channels", r.settings.Channels,
		"source", r.settings.Source)
	return nil
}

// Start begins delivering frames into the output file
func (r *MalgoRecorder) Start() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.state != statePrepared {
		return ErrNotPrepared
	}
	if err := r.device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	r.state = stateCapturing
	return nil
}

// Pause stops the device without closing the file
func (r *MalgoRecorder) Pause() error {
	r.mutex.Lock()
	state := r.state
	device := r.device
	r.mutex.Unlock()

	if state != stateCapturing {
		return fmt.Errorf("pause called while not capturing")
	}
	// Device stop waits for the data callback, which takes the mutex
	if err := device.Stop(); err != nil {
		return fmt.Errorf("failed to pause capture device: %w", err)
	}

	r.mutex.Lock()
	r.state = statePaused
	r.mutex.Unlock()
	return nil
}

// Resume restarts a paused device
func (r *MalgoRecorder) Resume() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.state != statePaused {
		return fmt.Errorf("resume called while not paused")
	}
	if err := r.device.Start(); err != nil {
		return fmt.Errorf("failed to resume capture device: %w", err)
	}
	r.state = stateCapturing
	return nil
}

// Stop halts capture and finalizes the WAV header.
// It returns ErrNoAudioData when no frames were captured.
func (r *MalgoRecorder) Stop() error {
	r.mutex.Lock()
	state := r.state
	device := r.device
	r.mutex.Unlock()

	if state != stateCapturing && state != statePaused {
		return ErrNotPrepared
	}
	if state == stateCapturing {
		if err := device.Stop(); err != nil {
			slog.Debug("Capture device stop failed", "error", err)
		}
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.state = stateStopped
	closeErr := r.closeOutput()

	if r.writeErr != nil {
		return fmt.Errorf("failed to write audio data: %w", r.writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to finalize output file: %w", closeErr)
	}
	if r.frames == 0 {
		return ErrNoAudioData
	}

	slog.Debug("Capture stopped", "output", r.settings.OutputFile, "frames", r.frames)
	return nil
}

// Release frees the device and context
func (r *MalgoRecorder) Release() {
	r.mutex.Lock()
	device := r.device
	ctx := r.ctx
	released := r.state == stateReleased
	r.state = stateReleased
	r.device = nil
	r.ctx = nil
	r.mutex.Unlock()

	if released {
		return
	}
	if device != nil {
		device.Uninit()
	}

	r.mutex.Lock()
	if err := r.closeOutput(); err != nil {
		slog.Debug("Output close during release failed", "error", err)
	}
	r.mutex.Unlock()

	if ctx != nil {
		r.freeContext(ctx)
	}
}

// onFrames runs on the audio thread
func (r *MalgoRecorder) onFrames(_, input []byte, frameCount uint32) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.encoder == nil || r.writeErr != nil {
		return
	}

	buf := &goaudio.IntBuffer{
		Data:           s16ToInts(input),
		Format:         &goaudio.Format{SampleRate: r.settings.SampleRate, NumChannels: r.settings.Channels},
		SourceBitDepth: bitDepth,
	}
	if err := r.encoder.Write(buf); err != nil {
		r.writeErr = err
		return
	}
	r.frames += int64(frameCount)
}

// closeOutput finalizes the encoder and closes the file. Caller holds the mutex.
func (r *MalgoRecorder) closeOutput() error {
	var firstErr error
	if r.encoder != nil {
		if err := r.encoder.Close(); err != nil {
			firstErr = err
		}
		r.encoder = nil
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.file = nil
	}
	return firstErr
}

func (r *MalgoRecorder) freeContext(ctx *malgo.AllocatedContext) {
	if err := ctx.Uninit(); err != nil {
		slog.Debug("Audio context uninit failed", "error", err)
	}
	ctx.Free()
}

// s16ToInts converts little-endian signed 16-bit samples to ints
func s16ToInts(data []byte) []int {
	samples := make([]int, len(data)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	return samples
}

// EnsureOutputDir creates the parent directories of path
func EnsureOutputDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}
