//go:build cgo

package capi

import "fmt"

/*
#include <errno.h>
*/
import "C"

// Errno represents a C errno value (positive integral value).
type Errno int32

// Error codes mirrored from <errno.h>. Only the values the native handoff
// layer can produce are listed.
const (
	Success     Errno = 0
	ErrNoMemory Errno = Errno(C.ENOMEM)
	ErrInvalid  Errno = Errno(C.EINVAL)
	ErrFault    Errno = Errno(C.EFAULT)
)

var errnoMessages = map[Errno]string{
	ErrNoMemory: "cannot allocate memory",
	ErrInvalid:  "invalid argument",
	ErrFault:    "bad address",
}

// Error returns the human-readable message for the Errno.
func (e Errno) Error() string {
	return e.String()
}

// String returns the message for the Errno. Messages come from a static table
// since strerror(3) is not safe for concurrent use.
func (e Errno) String() string {
	if e == Success {
		return "success"
	}
	if msg, ok := errnoMessages[e]; ok {
		return msg
	}
	return fmt.Sprintf("errno %d", int32(e))
}

// WithOp adds operation context to the provided Errno.
func (e Errno) WithOp(op string) error {
	if op == "" {
		return e
	}
	return fmt.Errorf("%s: %w", op, e)
}

// ErrorFromStatus converts a C status code into a Go error. Zero and positive
// values are success; negative values carry a negated errno.
func ErrorFromStatus(status int, op string) error {
	if status >= 0 {
		return nil
	}

	code := Errno(-status)
	if code == Success {
		return nil
	}
	return code.WithOp(op)
}
