// Package recording implements the recording lifecycle: one hardware
// recorder handle driven through prepare, start, pause, resume and stop,
// with a progress ticker, a foreground indicator and a battery watchdog
// kept in step with it.
package recording

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/audiolibrelab/recbridge/internal/audio"
	"github.com/audiolibrelab/recbridge/internal/battery"
	"github.com/audiolibrelab/recbridge/internal/presence"
	"github.com/audiolibrelab/recbridge/internal/progress"
	"github.com/audiolibrelab/recbridge/internal/stopwatch"
	"github.com/google/uuid"
)

// State is the session lifecycle state
type State int

const (
	StateIdle State = iota
	StatePrepared
	StateRecording
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StatePrepared:
		return "PREPARED"
	case StateRecording:
		return "RECORDING"
	case StatePaused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}

// StatusOK is the status field of a finished event
const StatusOK = "OK"

// RecorderFactory creates hardware recorder handles
type RecorderFactory interface {
	audio.CapabilityProvider
	NewRecorder() audio.Recorder
}

// Options configures a Session. Only Recorders is required.
type Options struct {
	Recorders RecorderFactory
	Presence  presence.Controller
	Battery   battery.Source
	Emitter   Emitter

	LowBatteryLevel        int
	ProgressPeriod         time.Duration
	NotificationTitle      string
	NotificationTextPrefix string

	// Clock drives the stopwatch and timestamps
	Clock func() time.Time
	// ProbeDuration reads the duration of the produced file
	ProbeDuration func(path string) (time.Duration, error)
}

// Session is the single owner of the recorder handle, the config snapshot,
// the timestamp log and the stopwatch. Its operations are expected to be
// called one at a time by the controlling caller; the ticker and watchdog
// only read through IfActive/Status and call ForceStop.
type Session struct {
	mutex sync.Mutex
	opts  Options
	caps  audio.Capabilities

	state      State
	recorder   audio.Recorder
	config     *Config
	timestamps []int64
	sessionID  string

	stopwatch *stopwatch.StopWatch
	ticker    *progress.Ticker
	presence  *presence.BestEffort
	watchdog  *battery.Watchdog
}

// NewSession creates an idle session. Pause/resume capability is read
// from the recorder factory here and never probed again.
func NewSession(opts Options) *Session {
	if opts.Emitter == nil {
		opts.Emitter = nopEmitter{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.ProbeDuration == nil {
		opts.ProbeDuration = audio.ProbeDuration
	}
	if opts.LowBatteryLevel == 0 {
		opts.LowBatteryLevel = battery.DefaultLowLevel
	}
	if opts.NotificationTitle == "" {
		opts.NotificationTitle = "Recording"
	}

	s := &Session{
		opts:      opts,
		stopwatch: stopwatch.NewWithClock(opts.Clock),
		presence:  presence.NewBestEffort(opts.Presence),
	}
	if opts.Recorders != nil {
		s.caps = opts.Recorders.Capabilities()
	}
	if opts.Battery != nil {
		s.watchdog = battery.NewWatchdog(opts.Battery, opts.LowBatteryLevel, s.ForceStop)
	}
	return s
}

// Capabilities returns the capabilities fixed at construction
func (s *Session) Capabilities() audio.Capabilities {
	return s.caps
}

// PrepareAtPath parses settings and prepares a recorder writing to path
func (s *Session) PrepareAtPath(path string, settings map[string]interface{}) (string, error) {
	cfg, err := ParseConfig(path, settings)
	if err != nil {
		slog.Error("Invalid recording settings", "path", path, "error", err)
		return "", err
	}
	return s.Prepare(cfg)
}

// Prepare moves Idle -> Prepared. Preparing again while Prepared replaces
// the previous handle.
func (s *Session) Prepare(cfg Config) (string, error) {
	const op = "prepare"

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state == StateRecording || s.state == StatePaused {
		return "", newError(ErrInvalidState, op, "please call stopRecording before preparing a new recording")
	}
	if s.opts.Recorders == nil {
		return "", newError(ErrRecorderConfiguration, op, "no recorder backend configured")
	}
	if cfg.Path == "" {
		return "", newError(ErrInvalidConfig, op, "recording path is required")
	}
	cfg.Audio.OutputFile = cfg.Path

	if err := audio.EnsureOutputDir(cfg.Path); err != nil {
		return "", wrapError(ErrRecorderConfiguration, op, err, "couldn't prepare recording at path %s", cfg.Path)
	}

	rec := s.opts.Recorders.NewRecorder()
	if err := rec.Configure(cfg.Audio); err != nil {
		rec.Release()
		slog.Error("Recorder rejected settings", "path", cfg.Path, "error", err)
		return "", wrapError(ErrRecorderConfiguration, op, err, "couldn't configure recorder")
	}
	if err := rec.Prepare(); err != nil {
		rec.Release()
		slog.Error("Recorder prepare failed", "path", cfg.Path, "error", err)
		return "", wrapError(ErrRecorderConfiguration, op, err, "couldn't prepare recording at path %s", cfg.Path)
	}

	// The previous handle survives until its replacement is ready
	if s.recorder != nil {
		slog.Debug("Replacing prepared recorder", "previous", s.config.Path, "next", cfg.Path)
		s.releaseRecorder()
	}

	snapshot := cfg
	s.recorder = rec
	s.config = &snapshot
	s.timestamps = nil
	s.sessionID = uuid.NewString()
	s.state = StatePrepared

	slog.Info("Recording prepared",
		"session", s.sessionID,
		"path", cfg.Path,
		"format", cfg.Audio.Format,
		"encoder", cfg.Audio.Encoder,
		"sample_rate", cfg.Audio.SampleRate,
		"channels", cfg.Audio.Channels)
	return cfg.Path, nil
}

// Start moves Prepared -> Recording
func (s *Session) Start() (string, error) {
	const op = "start"

	s.mutex.Lock()
	defer s.mutex.Unlock()

	switch s.state {
	case StatePrepared:
	case StateIdle:
		return "", newError(ErrInvalidState, op, "please call prepareRecordingAtPath before starting recording")
	default:
		return "", newError(ErrInvalidState, op, "please call stopRecording before starting recording")
	}

	s.saveTimestamp()
	if err := s.recorder.Start(); err != nil {
		path := s.config.Path
		s.releaseRecorder()
		s.resetLocked()
		slog.Error("Recorder failed to start", "path", path, "error", err)
		return "", wrapError(ErrHardwareFailure, op, err, "recorder failed to start")
	}

	s.stopwatch.Reset()
	s.stopwatch.Start()
	s.state = StateRecording

	s.ticker = progress.New(s, progress.Options{
		Period:     s.opts.ProgressPeriod,
		Title:      s.opts.NotificationTitle,
		TextPrefix: s.opts.NotificationTextPrefix,
		OnProgress: func(elapsed float64) {
			s.opts.Emitter.Emit(EventProgress, ProgressEvent{CurrentTime: elapsed})
		},
		Presence: s.presence,
	})
	s.ticker.Start()

	s.emitStatus()

	if s.watchdog != nil {
		if err := s.watchdog.Register(); err != nil {
			slog.Error("Battery watchdog registration failed", "error", err)
		}
	}

	slog.Info("Recording started", "session", s.sessionID, "path", s.config.Path)
	return s.config.Path, nil
}

// Pause moves Recording -> Paused. Pausing while paused succeeds without effect.
func (s *Session) Pause() error {
	const op = "pause"

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.caps.PauseResume {
		return newError(ErrUnsupportedOperation, op, "method not available on this platform")
	}
	switch s.state {
	case StatePaused:
		return nil
	case StateRecording:
	default:
		return newError(ErrInvalidState, op, "no recording in progress")
	}

	if err := s.recorder.Pause(); err != nil {
		slog.Error("Recorder failed to pause", "error", err)
		return wrapError(ErrHardwareFailure, op, err, "recorder failed to pause")
	}

	s.stopwatch.Stop()
	s.saveTimestamp()
	s.state = StatePaused
	s.emitStatus()

	slog.Debug("Recording paused", "session", s.sessionID, "elapsed", s.stopwatch.ElapsedSeconds())
	return nil
}

// Resume moves Paused -> Recording. Resuming while recording succeeds without effect.
func (s *Session) Resume() error {
	const op = "resume"

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.caps.PauseResume {
		return newError(ErrUnsupportedOperation, op, "method not available on this platform")
	}
	switch s.state {
	case StateRecording:
		return nil
	case StatePaused:
	default:
		return newError(ErrInvalidState, op, "no recording in progress")
	}

	if err := s.recorder.Resume(); err != nil {
		slog.Error("Recorder failed to resume", "error", err)
		return wrapError(ErrHardwareFailure, op, err, "recorder failed to resume")
	}

	s.stopwatch.Start()
	s.saveTimestamp()
	s.state = StateRecording
	s.emitStatus()

	slog.Debug("Recording resumed", "session", s.sessionID)
	return nil
}

// Stop moves Recording/Paused -> Idle and emits the finished event.
// A hardware failure while stopping still releases everything, but no
// finished event is emitted and the error is returned.
func (s *Session) Stop() (string, error) {
	const op = "stop"

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state != StateRecording && s.state != StatePaused {
		return "", newError(ErrInvalidState, op, "please call startRecording before stopping recording")
	}

	path, err := s.finishLocked(true)
	if err != nil {
		return "", wrapError(ErrHardwareFailure, op, err, "no valid audio data received, the device may be unable to record audio")
	}
	return path, nil
}

// ForceStop behaves like Stop but has no caller to report to. It does
// nothing unless a recording is in progress.
func (s *Session) ForceStop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state != StateRecording && s.state != StatePaused {
		return
	}

	slog.Warn("Forcing recording to stop", "session", s.sessionID)
	if _, err := s.finishLocked(true); err != nil {
		slog.Error("Forced stop failed", "error", err)
	}
}

// Teardown releases everything the session holds without emitting events.
// It is used when the host goes away and is safe to call in any state.
func (s *Session) Teardown() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	switch s.state {
	case StateRecording, StatePaused:
		slog.Info("Host teardown while recording", "session", s.sessionID)
		if _, err := s.finishLocked(false); err != nil {
			slog.Error("Recording teardown failed", "error", err)
		}
	case StatePrepared:
		s.releaseRecorder()
		s.resetLocked()
	}

	s.presence.Stop()
	if s.watchdog != nil {
		s.watchdog.Unregister()
	}
}

// Status returns whether a recording is in progress and whether it is paused
func (s *Session) Status() StatusEvent {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.statusLocked()
}

// State returns the lifecycle state
func (s *Session) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// IfActive calls fn with the elapsed time while recording and not paused
func (s *Session) IfActive(fn func(elapsedSeconds float64)) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state != StateRecording {
		return false
	}
	fn(s.stopwatch.ElapsedSeconds())
	return true
}

// finishLocked runs the shared stop path. The session is Idle afterwards
// whether or not the recorder stopped cleanly.
func (s *Session) finishLocked(emit bool) (string, error) {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}

	s.saveTimestamp()
	stopErr := s.recorder.Stop()
	s.releaseRecorder()
	s.stopwatch.Stop()
	s.presence.Stop()
	if s.watchdog != nil {
		s.watchdog.Unregister()
	}

	cfg := *s.config
	timestamps := s.timestamps
	sessionID := s.sessionID
	elapsed := s.stopwatch.ElapsedSeconds()
	s.resetLocked()

	if emit {
		s.emitStatus()
	}
	if stopErr != nil {
		slog.Error("Recorder failed to stop", "session", sessionID, "path", cfg.Path, "error", stopErr)
		return "", stopErr
	}

	slog.Info("Recording stopped", "session", sessionID, "path", cfg.Path, "elapsed", elapsed, "timestamps", len(timestamps))
	if emit {
		s.opts.Emitter.Emit(EventFinished, s.buildFinished(cfg, timestamps, sessionID))
	}
	return cfg.Path, nil
}

func (s *Session) buildFinished(cfg Config, timestamps []int64, sessionID string) FinishedEvent {
	result := FinishedEvent{
		Status:       StatusOK,
		AudioFileURL: "file://" + cfg.Path,
		Timestamps:   timestamps,
		SessionID:    sessionID,
	}
	if result.Timestamps == nil {
		result.Timestamps = []int64{}
	}

	if d, err := s.opts.ProbeDuration(cfg.Path); err != nil {
		slog.Error("Failed to read recording duration", "path", cfg.Path, "error", err)
	} else {
		result.Duration = d.Seconds()
	}

	if cfg.IncludeBase64 {
		data, err := os.ReadFile(cfg.Path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Error("Failed to find recording file", "path", cfg.Path)
		case err != nil:
			slog.Error("Failed to read recording file", "path", cfg.Path, "error", err)
		default:
			result.Base64 = base64.StdEncoding.EncodeToString(data)
		}
	}
	return result
}

func (s *Session) releaseRecorder() {
	if s.recorder == nil {
		return
	}
	s.recorder.Release()
	s.recorder = nil
}

func (s *Session) resetLocked() {
	s.state = StateIdle
	s.config = nil
	s.timestamps = nil
	s.sessionID = ""
}

func (s *Session) saveTimestamp() {
	s.timestamps = append(s.timestamps, s.opts.Clock().UnixMilli())
}

func (s *Session) statusLocked() StatusEvent {
	return StatusEvent{
		IsRecording: s.state == StateRecording || s.state == StatePaused,
		IsPaused:    s.state == StatePaused,
	}
}

func (s *Session) emitStatus() {
	s.opts.Emitter.Emit(EventStatus, s.statusLocked())
}
