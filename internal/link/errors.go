package link

import (
	"errors"
	"fmt"
)

// Normalized link errors. Match them with errors.Is.
var (
	ErrOpenFailed   = errors.New("OPEN_FAILED")
	ErrNotConnected = errors.New("NOT_CONNECTED")
	ErrWriteFailed  = errors.New("WRITE_FAILED")
)

// Error wraps a transport failure with its normalized code.
type Error struct {
	Code     error  // one of the Err* values above
	Device   string // serial device path, when known
	Original error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	switch {
	case e.Original != nil && e.Device != "":
		return fmt.Sprintf("%v on %s: %v", e.Code, e.Device, e.Original)
	case e.Original != nil:
		return fmt.Sprintf("%v: %v", e.Code, e.Original)
	case e.Device != "":
		return fmt.Sprintf("%v on %s", e.Code, e.Device)
	}
	return e.Code.Error()
}

func (e *Error) Unwrap() error {
	return e.Code
}

// Cause returns the underlying transport error, if any.
func (e *Error) Cause() error {
	return e.Original
}
