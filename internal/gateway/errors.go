package gateway

import (
	"errors"
	"fmt"
	"os/exec"
)

// StartupError reports that the JVM could not be brought up: it exited or
// closed stdout before announcing its port, announced an invalid port, or
// could not be reached.
type StartupError struct {
	// Reason is a human-readable description.
	Reason string

	// ExitCode is the JVM's exit status, or -1 if it had not exited.
	ExitCode int

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *StartupError) Error() string {
	msg := "gateway startup failed: " + e.Reason
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" (exit status %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *StartupError) Unwrap() error {
	return e.Err
}

// IsStartupError returns true if err is or wraps a StartupError.
func IsStartupError(err error) bool {
	var se *StartupError
	return errors.As(err, &se)
}

// exitCode extracts the exit status from a Wait error.
func exitCode(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(waitErr, &ee) {
		return ee.ExitCode()
	}
	return -1
}
