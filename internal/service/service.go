package service

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/audiolibrelab/recbridge/internal/audio"
	"github.com/audiolibrelab/recbridge/internal/battery"
	"github.com/audiolibrelab/recbridge/internal/config"
	"github.com/audiolibrelab/recbridge/internal/presence"
	"github.com/audiolibrelab/recbridge/internal/recording"
)

// Service is the bridge surface exposed to the application shell
type Service interface {
	// Permission and presence
	CheckAuthorizationStatus() (bool, error)
	CreateNotificationChannel(channel map[string]interface{}) error

	// Recording operations
	PrepareRecordingAtPath(path string, settings map[string]interface{}) (string, error)
	StartRecording() (string, error)
	StopRecording() (string, error)
	PauseRecording() error
	ResumeRecording() error
	GetRecordStatus() recording.StatusEvent

	// Information operations
	Constants() Constants
	Capabilities() audio.Capabilities
	ListSources() ([]audio.Source, error)
	GetLastError() string

	// Configuration operations
	LoadProfile(profile string) error
	GetConfig() *config.Config

	// Shutdown releases everything without emitting events
	Shutdown()
}

// Dependencies are the collaborators of the service. Nil fields are built
// from the configuration.
type Dependencies struct {
	Backend  audio.AudioBackend
	Presence presence.Controller
	Battery  battery.Source
	Emitter  recording.Emitter
	Channels *presence.Channels
}

// RecBridgeService is the main service implementation
type RecBridgeService struct {
	configFile string
	deps       Dependencies

	// mu guards the fields replaced by LoadProfile
	mu       sync.RWMutex
	cfg      *config.Config
	notifier *presence.DBusNotifier
	session  *recording.Session

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates a new service instance
func New(cfg *config.Config, configFile string, deps Dependencies) *RecBridgeService {
	if cfg == nil {
		cfg = config.Default()
	}
	if deps.Backend == nil {
		deps.Backend = audio.NewBackend(cfg.Audio.Backend)
	}
	if deps.Channels == nil {
		deps.Channels = presence.NewChannels()
	}

	s := &RecBridgeService{
		cfg:        cfg,
		configFile: configFile,
		deps:       deps,
	}
	s.session = s.newSession()
	return s
}

func (s *RecBridgeService) newSession() *recording.Session {
	controller := s.deps.Presence
	if controller == nil {
		s.notifier = presence.NewDBusNotifier(s.deps.Channels, s.cfg.Notification.ChannelID)
		controller = s.notifier
	}

	source := s.deps.Battery
	if source == nil && s.cfg.Battery.IsEnabled() {
		source = battery.NewPollingSource(s.cfg.Battery.PollInterval, nil)
	}
	if !s.cfg.Battery.IsEnabled() {
		source = nil
	}

	slog.Debug("Creating recording session",
		"profile", s.cfg.Name,
		"backend", s.deps.Backend.GetType(),
		"pause_resume", s.deps.Backend.Capabilities().PauseResume,
		"battery_watchdog", source != nil)

	return recording.NewSession(recording.Options{
		Recorders:              s.deps.Backend,
		Presence:               controller,
		Battery:                source,
		Emitter:                s.deps.Emitter,
		LowBatteryLevel:        s.cfg.Battery.LowLevel,
		ProgressPeriod:         s.cfg.Progress.Interval,
		NotificationTitle:      s.cfg.Notification.Title,
		NotificationTextPrefix: s.cfg.Notification.TextPrefix,
	})
}

// CheckAuthorizationStatus reports whether audio capture is permitted
func (s *RecBridgeService) CheckAuthorizationStatus() (bool, error) {
	ok, err := s.deps.Backend.CaptureAvailable()
	if err != nil {
		slog.Debug("Capture probe failed", "error", err)
		return false, nil
	}
	return ok, nil
}

// CreateNotificationChannel registers the channel used by the foreground indicator
func (s *RecBridgeService) CreateNotificationChannel(channel map[string]interface{}) error {
	cfg, err := presence.ParseChannelConfig(channel)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to create notification channel: %v", err))
		return &Error{Code: CodeInvalidConfig, Message: "Invalid notification channel config", Err: err}
	}
	s.deps.Channels.Create(cfg)
	return nil
}

// PrepareRecordingAtPath validates settings and prepares a recorder
func (s *RecBridgeService) PrepareRecordingAtPath(path string, settings map[string]interface{}) (string, error) {
	slog.Debug("Service.PrepareRecordingAtPath called", "path", path)
	s.clearLastError()
	out, err := s.current().PrepareAtPath(path, settings)
	return out, s.fail("Failed to prepare recording", err)
}

// StartRecording starts the prepared recorder
func (s *RecBridgeService) StartRecording() (string, error) {
	out, err := s.current().Start()
	return out, s.fail("Failed to start recording", err)
}

// StopRecording stops the recording. The finished event follows on the emitter.
func (s *RecBridgeService) StopRecording() (string, error) {
	out, err := s.current().Stop()
	if err == nil {
		s.clearLastError()
	}
	return out, s.fail("Failed to stop recording", err)
}

// PauseRecording pauses the recording
func (s *RecBridgeService) PauseRecording() error {
	return s.fail("Failed to pause recording", s.current().Pause())
}

// ResumeRecording resumes a paused recording
func (s *RecBridgeService) ResumeRecording() error {
	return s.fail("Failed to resume recording", s.current().Resume())
}

// GetRecordStatus returns whether a recording is in progress and paused
func (s *RecBridgeService) GetRecordStatus() recording.StatusEvent {
	return s.current().Status()
}

// Constants returns the path constants resolved from configuration
func (s *RecBridgeService) Constants() Constants {
	return NewConstants(s.GetConfig().Directories)
}

// Capabilities returns the recorder capabilities fixed at startup
func (s *RecBridgeService) Capabilities() audio.Capabilities {
	return s.current().Capabilities()
}

// ListSources lists capture devices usable as AudioSource
func (s *RecBridgeService) ListSources() ([]audio.Source, error) {
	return s.deps.Backend.ListSources()
}

// LoadProfile switches configuration profile. Only allowed while no
// recording is prepared or running.
func (s *RecBridgeService) LoadProfile(profile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.session.State(); st != recording.StateIdle {
		return &Error{Code: CodeInvalidState, Message: fmt.Sprintf("cannot switch profile while %s", st)}
	}

	newCfg, err := config.LoadWithProfile(s.configFile, profile)
	if err != nil {
		return fmt.Errorf("failed to load profile '%s': %w", profile, err)
	}

	s.session.Teardown()
	s.closeNotifier()

	s.cfg = newCfg
	s.session = s.newSession()
	slog.Info("Profile loaded", "profile", newCfg.Name)
	return nil
}

// GetConfig returns the current configuration
func (s *RecBridgeService) GetConfig() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Shutdown tears the session down as the host going away would
func (s *RecBridgeService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.Teardown()
	s.closeNotifier()
}

func (s *RecBridgeService) current() *recording.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// closeNotifier must be called with mu held
func (s *RecBridgeService) closeNotifier() {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Close(); err != nil {
		slog.Debug("Error closing notification bus", "error", err)
	}
	s.notifier = nil
}

// fail records err as the last error and converts it to a bridge error
func (s *RecBridgeService) fail(msg string, err error) error {
	if err == nil {
		return nil
	}
	s.setLastError(fmt.Sprintf("%s: %v", msg, err))
	return toBridgeError(err)
}

// GetLastError returns the last error message
func (s *RecBridgeService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

func (s *RecBridgeService) setLastError(msg string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = msg
}

func (s *RecBridgeService) clearLastError() {
	s.setLastError("")
}
