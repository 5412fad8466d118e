package base

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument marks contract violations by the caller, these are programmer errors.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrorClass groups recoverable protocol conditions so the owning connection can choose the recovery.
type ErrorClass byte

const (
	ClassFraming      ErrorClass = 1 // connection local, reported to caller
	ClassSegmentation ErrorClass = 2 // session sequence state is lost, session has to be reset
	ClassSecurity     ErrorClass = 3 // frame rejected, security state untouched
	ClassLink         ErrorClass = 4 // retransmission exhausted or link unusable
)

func (c ErrorClass) String() string {
	switch c {
	case ClassFraming:
		return "framing"
	case ClassSegmentation:
		return "segmentation"
	case ClassSecurity:
		return "security"
	case ClassLink:
		return "link"
	default:
		return "unknown"
	}
}

type ProtocolError struct {
	Class ErrorClass
	Err   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Class, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func NewFramingError(err error) error {
	return &ProtocolError{Class: ClassFraming, Err: err}
}

func NewSegmentationError(err error) error {
	return &ProtocolError{Class: ClassSegmentation, Err: err}
}

func NewSecurityError(err error) error {
	return &ProtocolError{Class: ClassSecurity, Err: err}
}

func NewLinkError(err error) error {
	return &ProtocolError{Class: ClassLink, Err: err}
}

// ClassOf returns class of the first ProtocolError in the chain.
func ClassOf(err error) (ErrorClass, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Class, true
	}
	return 0, false
}

// IsFatal reports whether the session (segmentation) or connection (link) can't continue.
func IsFatal(err error) bool {
	c, ok := ClassOf(err)
	return ok && (c == ClassSegmentation || c == ClassLink)
}
