package tensor

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package (and by device and sparse)
// matches exactly one of them with errors.Is.
var (
	ErrAllocation            = errors.New("allocation failed")
	ErrRange                 = errors.New("offset or length out of range")
	ErrShape                 = errors.New("shape mismatch")
	ErrUnsupportedConversion = errors.New("unsupported conversion")
	ErrTransfer              = errors.New("host/device transfer failed")
)

// Error carries the failing operation and details for one of the error kinds.
type Error struct {
	Op     string // Operation that failed (e.g. "reshape", "view")
	Kind   error  // One of the Err* kinds
	Detail string // Human-readable details
	Err    error  // Underlying cause, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

// Is matches the error kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds an *Error of the given kind with a formatted detail message.
func Errorf(op string, kind error, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// WrapError builds an *Error of the given kind around cause.
func WrapError(op string, kind, cause error) error {
	return &Error{Op: op, Kind: kind, Err: cause}
}
