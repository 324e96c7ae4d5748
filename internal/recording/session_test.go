package recording

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/audiolibrelab/recbridge/internal/audio"
	"github.com/audiolibrelab/recbridge/internal/battery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeRecorder struct {
	settings audio.Settings
	calls    []string

	configureErr error
	prepareErr   error
	startErr     error
	stopErr      error
	payload      []byte
	released     bool
}

func (r *fakeRecorder) Configure(s audio.Settings) error {
	r.calls = append(r.calls, "configure")
	r.settings = s
	return r.configureErr
}

func (r *fakeRecorder) Prepare() error {
	r.calls = append(r.calls, "prepare")
	return r.prepareErr
}

func (r *fakeRecorder) Start() error {
	r.calls = append(r.calls, "start")
	return r.startErr
}

func (r *fakeRecorder) Pause() error {
	r.calls = append(r.calls, "pause")
	return nil
}

func (r *fakeRecorder) Resume() error {
	r.calls = append(r.calls, "resume")
	return nil
}

func (r *fakeRecorder) Stop() error {
	r.calls = append(r.calls, "stop")
	if r.stopErr != nil {
		return r.stopErr
	}
	if r.payload != nil {
		return os.WriteFile(r.settings.OutputFile, r.payload, 0644)
	}
	return nil
}

func (r *fakeRecorder) Release() {
	r.released = true
}

type fakeFactory struct {
	caps      audio.Capabilities
	recorders []*fakeRecorder
	template  fakeRecorder
}

func (f *fakeFactory) Capabilities() audio.Capabilities { return f.caps }

func (f *fakeFactory) NewRecorder() audio.Recorder {
	rec := f.template
	rec.calls = nil
	f.recorders = append(f.recorders, &rec)
	return &rec
}

func (f *fakeFactory) last() *fakeRecorder {
	return f.recorders[len(f.recorders)-1]
}

type fakePresence struct {
	mu       sync.Mutex
	starts   int
	stops    int
	startErr error
}

func (p *fakePresence) Start(string, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.starts++
	return p.startErr
}

func (p *fakePresence) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	return nil
}

type fakeBattery struct {
	mu     sync.Mutex
	fn     func(battery.Observation)
	closes int
}

func (b *fakeBattery) Subscribe(fn func(battery.Observation)) (battery.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fn = fn
	return b, nil
}

func (b *fakeBattery) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fn = nil
	b.closes++
	return nil
}

func (b *fakeBattery) emit(obs battery.Observation) {
	b.mu.Lock()
	fn := b.fn
	b.mu.Unlock()
	if fn != nil {
		fn(obs)
	}
}

func (b *fakeBattery) subscribed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fn != nil
}

type event struct {
	name    string
	payload interface{}
}

type eventLog struct {
	mu     sync.Mutex
	events []event
}

func (l *eventLog) Emit(name string, payload interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event{name, payload})
}

func (l *eventLog) named(name string) []interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []interface{}
	for _, e := range l.events {
		if e.name == name {
			out = append(out, e.payload)
		}
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	session  *Session
	factory  *fakeFactory
	presence *fakePresence
	battery  *fakeBattery
	events   *eventLog
	clock    *fakeClock
	dir      string
}

func newHarness(t *testing.T, pauseResume bool) *harness {
	t.Helper()
	h := &harness{
		factory:  &fakeFactory{caps: audio.Capabilities{PauseResume: pauseResume}},
		presence: &fakePresence{},
		battery:  &fakeBattery{},
		events:   &eventLog{},
		clock:    &fakeClock{now: time.UnixMilli(1_700_000_000_000)},
		dir:      t.TempDir(),
	}
	h.session = NewSession(Options{
		Recorders:     h.factory,
		Presence:      h.presence,
		Battery:       h.battery,
		Emitter:       h.events,
		Clock:         h.clock.Now,
		ProbeDuration: func(string) (time.Duration, error) { return 3 * time.Second, nil },
		// Long enough that only the immediate tick fires during a test
		ProgressPeriod: time.Hour,
	})
	t.Cleanup(h.session.Teardown)
	return h
}

func (h *harness) config(name string) Config {
	path := filepath.Join(h.dir, name)
	return Config{
		Path: path,
		Audio: audio.Settings{
			Format:     audio.FormatWAV,
			Encoder:    audio.EncoderPCM16Bit,
			SampleRate: 44100,
			Channels:   1,
			BitRate:    32000,
		},
	}
}

func (h *harness) prepareAndStart(t *testing.T) string {
	t.Helper()
	path, err := h.session.Prepare(h.config("take.wav"))
	require.NoError(t, err)
	_, err = h.session.Start()
	require.NoError(t, err)
	return path
}

func (h *harness) finished(t *testing.T) FinishedEvent {
	t.Helper()
	events := h.events.named(EventFinished)
	require.Len(t, events, 1)
	return events[0].(FinishedEvent)
}

func TestSession_StartStopRecordsTwoTimestamps(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, true)

	path := h.prepareAndStart(t)
	assert.Equal(t, StatusEvent{IsRecording: true}, h.session.Status())

	h.clock.Advance(2 * time.Second)
	stopped, err := h.session.Stop()
	require.NoError(t, err)
	assert.Equal(t, path, stopped)
	assert.Equal(t, StateIdle, h.session.State())

	fin := h.finished(t)
	assert.Equal(t, StatusOK, fin.Status)
	assert.Equal(t, "file://"+path, fin.AudioFileURL)
	assert.Equal(t, 3.0, fin.Duration)
	assert.Empty(t, fin.Base64)
	require.Len(t, fin.Timestamps, 2)
	assert.Equal(t, int64(2000), fin.Timestamps[1]-fin.Timestamps[0])
	assert.NotEmpty(t, fin.SessionID)

	rec := h.factory.last()
	assert.Equal(t, []string{"configure", "prepare", "start", "stop"}, rec.calls)
	assert.True(t, rec.released)
	assert.False(t, h.battery.subscribed())
}

func TestSession_PauseResumeRecordsFourTimestamps(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, true)
	h.prepareAndStart(t)

	require.NoError(t, h.session.Pause())
	assert.Equal(t, StatusEvent{IsRecording: true, IsPaused: true}, h.session.Status())
	require.NoError(t, h.session.Resume())
	_, err := h.session.Stop()
	require.NoError(t, err)

	fin := h.finished(t)
	assert.Len(t, fin.Timestamps, 4)
	for i := 1; i < len(fin.Timestamps); i++ {
		assert.GreaterOrEqual(t, fin.Timestamps[i], fin.Timestamps[i-1])
	}
}

func TestSession_PauseAndResumeAreIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, true)
	h.prepareAndStart(t)

	require.NoError(t, h.session.Pause())
	require.NoError(t, h.session.Pause())
	require.NoError(t, h.session.Resume())
	require.NoError(t, h.session.Resume())
	_, err := h.session.Stop()
	require.NoError(t, err)

	assert.Len(t, h.finished(t).Timestamps, 4)
	assert.Equal(t, []string{"configure", "prepare", "start", "pause", "resume", "stop"}, h.factory.last().calls)
}

func TestSession_PauseFreezesElapsedAndSuppressesProgress(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, true)
	h.prepareAndStart(t)

	h.clock.Advance(2 * time.Second)
	require.NoError(t, h.session.Pause())
	h.clock.Advance(10 * time.Second)

	assert.False(t, h.session.IfActive(func(float64) { t.Fatal("progress while paused") }))

	require.NoError(t, h.session.Resume())
	h.clock.Advance(time.Second)

	var elapsed float64
	assert.True(t, h.session.IfActive(func(s float64) { elapsed = s }))
	assert.InDelta(t, 3.0, elapsed, 1e-9)
	h.session.Teardown()
}

func TestSession_UnsupportedPauseResume(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, false)
	h.prepareAndStart(t)

	assert.ErrorIs(t, h.session.Pause(), ErrUnsupportedOperation)
	assert.ErrorIs(t, h.session.Resume(), ErrUnsupportedOperation)
	assert.Equal(t, StateRecording, h.session.State())
	h.session.Teardown()
}

func TestSession_InvalidStates(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, true)

	_, err := h.session.Stop()
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = h.session.Start()
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, h.session.Pause(), ErrInvalidState)
	assert.ErrorIs(t, h.session.Resume(), ErrInvalidState)

	_, err = h.session.Prepare(h.config("a.wav"))
	require.NoError(t, err)
	assert.ErrorIs(t, h.session.Pause(), ErrInvalidState)
	_, err = h.session.Stop()
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = h.session.Start()
	require.NoError(t, err)

	_, err = h.session.Start()
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = h.session.Prepare(h.config("b.wav"))
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, StateRecording, h.session.State())

	var recErr *Error
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, "prepare", recErr.Op)
	h.session.Teardown()
}

func TestSession_RePrepareReleasesPreviousHandle(t *testing.T) {
	h := newHarness(t, true)

	_, err := h.session.Prepare(h.config("a.wav"))
	require.NoError(t, err)
	path, err := h.session.Prepare(h.config("b.wav"))
	require.NoError(t, err)

	require.Len(t, h.factory.recorders, 2)
	assert.True(t, h.factory.recorders[0].released)
	assert.False(t, h.factory.recorders[1].released)
	assert.Equal(t, filepath.Join(h.dir, "b.wav"), path)
	assert.Equal(t, StatePrepared, h.session.State())
}

func TestSession_FailedRePrepareKeepsPreviousHandle(t *testing.T) {
	h := newHarness(t, true)

	_, err := h.session.Prepare(h.config("a.wav"))
	require.NoError(t, err)

	h.factory.template.configureErr = audio.ErrUnsupportedSettings
	_, err = h.session.Prepare(h.config("b.wav"))
	assert.ErrorIs(t, err, ErrRecorderConfiguration)

	h.factory.template.configureErr = nil
	h.factory.template.prepareErr = errors.New("device busy")
	_, err = h.session.Prepare(h.config("c.wav"))
	assert.ErrorIs(t, err, ErrRecorderConfiguration)

	require.Len(t, h.factory.recorders, 3)
	assert.False(t, h.factory.recorders[0].released)
	assert.True(t, h.factory.recorders[1].released)
	assert.True(t, h.factory.recorders[2].released)
	assert.Equal(t, StatePrepared, h.session.State())

	path, err := h.session.Start()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(h.dir, "a.wav"), path)
	h.session.Teardown()
}

func TestSession_PrepareCreatesParentDirectories(t *testing.T) {
	h := newHarness(t, true)

	cfg := h.config(filepath.Join("nested", "deeper", "take.wav"))
	_, err := h.session.Prepare(cfg)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Dir(cfg.Path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSession_PrepareRecorderFailures(t *testing.T) {
	h := newHarness(t, true)

	h.factory.template.configureErr = audio.ErrUnsupportedSettings
	_, err := h.session.Prepare(h.config("a.wav"))
	assert.ErrorIs(t, err, ErrRecorderConfiguration)
	assert.ErrorIs(t, err, audio.ErrUnsupportedSettings)
	assert.True(t, h.factory.last().released)
	assert.Equal(t, StateIdle, h.session.State())

	h.factory.template.configureErr = nil
	h.factory.template.prepareErr = errors.New("device busy")
	_, err = h.session.Prepare(h.config("a.wav"))
	assert.ErrorIs(t, err, ErrRecorderConfiguration)
	assert.Equal(t, StateIdle, h.session.State())
}

func TestSession_PrepareAtPathInvalidSettings(t *testing.T) {
	h := newHarness(t, true)

	_, err := h.session.PrepareAtPath(filepath.Join(h.dir, "a.wav"), map[string]interface{}{"SampleRate": 44100})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Empty(t, h.factory.recorders)
	assert.Equal(t, StateIdle, h.session.State())
}

func TestSession_StartHardwareFailureReturnsToIdle(t *testing.T) {
	h := newHarness(t, true)
	h.factory.template.startErr = errors.New("no input device")

	_, err := h.session.Prepare(h.config("a.wav"))
	require.NoError(t, err)
	_, err = h.session.Start()
	assert.ErrorIs(t, err, ErrHardwareFailure)
	assert.Equal(t, StateIdle, h.session.State())
	assert.True(t, h.factory.last().released)
	assert.Empty(t, h.events.named(EventStatus))
}

func TestSession_StopHardwareFailure(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, true)
	h.factory.template.stopErr = audio.ErrNoAudioData
	h.prepareAndStart(t)

	_, err := h.session.Stop()
	assert.ErrorIs(t, err, ErrHardwareFailure)
	assert.ErrorIs(t, err, audio.ErrNoAudioData)
	assert.Equal(t, StateIdle, h.session.State())
	assert.True(t, h.factory.last().released)
	assert.Empty(t, h.events.named(EventFinished))
	assert.False(t, h.battery.subscribed())

	statuses := h.events.named(EventStatus)
	require.NotEmpty(t, statuses)
	assert.Equal(t, StatusEvent{}, statuses[len(statuses)-1])
}

func TestSession_Base64(t *testing.T) {
	payload := []byte("RIFF fake audio bytes")

	t.Run("included when requested", func(t *testing.T) {
		h := newHarness(t, true)
		h.factory.template.payload = payload

		cfg := h.config("b64.wav")
		cfg.IncludeBase64 = true
		_, err := h.session.Prepare(cfg)
		require.NoError(t, err)
		_, err = h.session.Start()
		require.NoError(t, err)
		_, err = h.session.Stop()
		require.NoError(t, err)

		decoded, err := base64.StdEncoding.DecodeString(h.finished(t).Base64)
		require.NoError(t, err)
		assert.Equal(t, payload, decoded)
	})

	t.Run("empty by default", func(t *testing.T) {
		h := newHarness(t, true)
		h.factory.template.payload = payload
		h.prepareAndStart(t)
		_, err := h.session.Stop()
		require.NoError(t, err)
		assert.Empty(t, h.finished(t).Base64)
	})

	t.Run("empty when the file is missing", func(t *testing.T) {
		h := newHarness(t, true)
		cfg := h.config("missing.wav")
		cfg.IncludeBase64 = true
		_, err := h.session.Prepare(cfg)
		require.NoError(t, err)
		_, err = h.session.Start()
		require.NoError(t, err)
		_, err = h.session.Stop()
		require.NoError(t, err)
		assert.Empty(t, h.finished(t).Base64)
	})
}

func TestSession_DurationProbeFailureReportsZero(t *testing.T) {
	h := newHarness(t, true)
	h.session.opts.ProbeDuration = func(string) (time.Duration, error) {
		return 0, audio.ErrUnknownContainer
	}
	h.prepareAndStart(t)
	_, err := h.session.Stop()
	require.NoError(t, err)
	assert.Zero(t, h.finished(t).Duration)
}

func TestSession_LowBatteryForcesStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, true)
	path := h.prepareAndStart(t)
	require.True(t, h.battery.subscribed())

	h.battery.emit(battery.Observation{Level: 5, Charging: false})

	assert.Equal(t, StateIdle, h.session.State())
	fin := h.finished(t)
	assert.Equal(t, "file://"+path, fin.AudioFileURL)
	assert.Len(t, fin.Timestamps, 2)
	assert.False(t, h.battery.subscribed())
}

func TestSession_LowBatteryWhilePausedForcesStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, true)
	h.prepareAndStart(t)
	require.NoError(t, h.session.Pause())

	h.battery.emit(battery.Observation{Level: 1})

	assert.Equal(t, StateIdle, h.session.State())
	assert.Len(t, h.finished(t).Timestamps, 3)
}

func TestSession_BatteryIgnoredWhenChargingOrAboveThreshold(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, true)
	h.prepareAndStart(t)

	h.battery.emit(battery.Observation{Level: 2, Charging: true})
	h.battery.emit(battery.Observation{Level: 6, Charging: false})
	h.battery.emit(battery.Observation{Level: -1, Charging: false})

	assert.Equal(t, StateRecording, h.session.State())
	assert.Empty(t, h.events.named(EventFinished))
	h.session.Teardown()
}

func TestSession_ForceStopWhenIdleIsNoop(t *testing.T) {
	h := newHarness(t, true)
	h.session.ForceStop()
	assert.Empty(t, h.events.events)
}

func TestSession_TeardownReleasesWithoutEvents(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, true)
	h.prepareAndStart(t)
	before := len(h.events.named(EventStatus))

	h.session.Teardown()

	assert.Equal(t, StateIdle, h.session.State())
	assert.True(t, h.factory.last().released)
	assert.Empty(t, h.events.named(EventFinished))
	assert.Len(t, h.events.named(EventStatus), before)
	assert.False(t, h.battery.subscribed())

	// Safe to repeat
	h.session.Teardown()
}

func TestSession_PresenceFailureDoesNotAffectRecording(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, true)
	h.presence.startErr = errors.New("no notification daemon")

	h.prepareAndStart(t)
	assert.Equal(t, StateRecording, h.session.State())
	_, err := h.session.Stop()
	require.NoError(t, err)
	assert.Len(t, h.finished(t).Timestamps, 2)
}

func TestSession_EmitsStatusOnEveryTransition(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, true)
	h.prepareAndStart(t)
	require.NoError(t, h.session.Pause())
	require.NoError(t, h.session.Resume())
	_, err := h.session.Stop()
	require.NoError(t, err)

	assert.Equal(t, []interface{}{
		StatusEvent{IsRecording: true},
		StatusEvent{IsRecording: true, IsPaused: true},
		StatusEvent{IsRecording: true},
		StatusEvent{},
	}, h.events.named(EventStatus))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "IDLE", StateIdle.String())
	assert.Equal(t, "PREPARED", StatePrepared.String())
	assert.Equal(t, "RECORDING", StateRecording.String())
	assert.Equal(t, "PAUSED", StatePaused.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}
