package errorsx

import (
	"errors"
	"fmt"
)

// ReasonedError carries a stable reason code alongside the underlying
// error. The code survives further %w wrapping and is what callers
// branch on; the message is for humans.
type ReasonedError struct {
	Err    error
	Reason ReasonCode
}

func (e ReasonedError) Error() string {
	switch {
	case e.Err == nil:
		return string(e.Reason)
	case e.Reason == "":
		return e.Err.Error()
	default:
		return string(e.Reason) + ": " + e.Err.Error()
	}
}

func (e ReasonedError) Unwrap() error { return e.Err }

// Wrap attaches a reason code to err. A reason already present
// anywhere in the chain wins, so the code closest to the failure is
// the one reported.
func Wrap(err error, reason ReasonCode) error {
	if err == nil {
		return nil
	}
	if Reason(err) != ReasonUnknown {
		return err
	}
	return ReasonedError{Err: err, Reason: reason}
}

// New creates a reasoned error from a message.
func New(reason ReasonCode, msg string) error {
	return ReasonedError{Err: errors.New(msg), Reason: reason}
}

// Newf creates a reasoned error from a format string.
func Newf(reason ReasonCode, format string, args ...any) error {
	return ReasonedError{Err: fmt.Errorf(format, args...), Reason: reason}
}

// Reason extracts the reason code from err, or ReasonUnknown.
func Reason(err error) ReasonCode {
	var re ReasonedError
	if err != nil && errors.As(err, &re) {
		return re.Reason
	}
	return ReasonUnknown
}

// HasReason reports whether err carries the given reason code.
func HasReason(err error, reason ReasonCode) bool {
	return Reason(err) == reason
}
