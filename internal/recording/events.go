package recording

// Outbound event names
const (
	EventProgress = "recordingProgress"
	EventStatus   = "recordingStatus"
	EventFinished = "recordingFinished"
)

// Emitter delivers outbound events. Emit is called with the session lock
// held and must not call back into the session.
type Emitter interface {
	Emit(name string, payload interface{})
}

// EmitterFunc adapts a function to Emitter
type EmitterFunc func(name string, payload interface{})

func (f EmitterFunc) Emit(name string, payload interface{}) { f(name, payload) }

type nopEmitter struct{}

func (nopEmitter) Emit(string, interface{}) {}

// ProgressEvent carries elapsed recording time in seconds
type ProgressEvent struct {
	CurrentTime float64 `json:"currentTime"`
}

// StatusEvent is both the recordingStatus payload and the getRecordStatus result
type StatusEvent struct {
	IsRecording bool `json:"isRecording"`
	IsPaused    bool `json:"isPaused"`
}

// FinishedEvent is emitted once per completed session
type FinishedEvent struct {
	Status       string  `json:"status"`
	AudioFileURL string  `json:"audioFileURL"`
	Duration     float64 `json:"duration"`
	Base64       string  `json:"base64"`
	Timestamps   []int64 `json:"timestamps"`
	SessionID    string  `json:"sessionId,omitempty"`
}
