package capture

import "errors"

var (
	ErrNotStarted     = errors.New("session not started")
	ErrAlreadyStarted = errors.New("session already started")
	ErrSessionFailed  = errors.New("session failed")
	ErrShortBuffer    = errors.New("device returned fewer bytes than acquired frames")
)

// Error is a fatal capture failure tagged with the device operation that produced it
type Error struct {
	Op      string `json:"op"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	msg := "capture " + e.Op
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(op, message string, cause error) *Error {
	return &Error{
		Op:      op,
		Message: message,
		Cause:   cause,
	}
}
