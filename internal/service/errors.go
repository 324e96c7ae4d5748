package service

import (
	"errors"

	"github.com/audiolibrelab/recbridge/internal/recording"
)

// Bridge error codes
const (
	CodeInvalidConfig         = "INVALID_CONFIG"
	CodeInvalidState          = "INVALID_STATE"
	CodeRecorderConfiguration = "COULDNT_CONFIGURE_MEDIA_RECORDER"
	CodeUnsupportedOperation  = "UNSUPPORTED_OPERATION"
	CodeHardwareFailure       = "RUNTIME_EXCEPTION"
	CodeInternal              = "INTERNAL_ERROR"
)

// Error is a failed bridge call: a code the shell can switch on and a
// human readable message.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode returns the bridge code for err
func ErrorCode(err error) string {
	var bridgeErr *Error
	if errors.As(err, &bridgeErr) {
		return bridgeErr.Code
	}

	switch {
	case errors.Is(err, recording.ErrInvalidConfig):
		return CodeInvalidConfig
	case errors.Is(err, recording.ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, recording.ErrRecorderConfiguration):
		return CodeRecorderConfiguration
	case errors.Is(err, recording.ErrUnsupportedOperation):
		return CodeUnsupportedOperation
	case errors.Is(err, recording.ErrHardwareFailure):
		return CodeHardwareFailure
	default:
		return CodeInternal
	}
}

// toBridgeError wraps a session error with its code. The message is the
// session's own message without the wrapped cause.
func toBridgeError(err error) *Error {
	msg := err.Error()
	var recErr *recording.Error
	if errors.As(err, &recErr) {
		msg = recErr.Msg
	}
	return &Error{Code: ErrorCode(err), Message: msg, Err: err}
}
