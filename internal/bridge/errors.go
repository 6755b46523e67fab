package bridge

import (
	"errors"
	"fmt"
)

// Sentinel errors for bridge operations.
var (
	// ErrClosed indicates the client was closed or its connection was lost.
	ErrClosed = errors.New("bridge connection closed")

	// ErrInvalidTarget indicates a Target with neither or both of ref and class.
	ErrInvalidTarget = errors.New("invalid bridge target")

	// ErrNullResult indicates a call expected to return an object returned null.
	ErrNullResult = errors.New("remote call returned null")

	// ErrNotObject indicates a call expected to return an object returned a plain value.
	ErrNotObject = errors.New("remote call did not return an object")

	// ErrZeroObject indicates a call on an unbound Object handle.
	ErrZeroObject = errors.New("call on zero object handle")
)

// JSON-RPC error codes used by the bridge server.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeJavaException is reported when the invoked Java code threw.
	CodeJavaException = -32000

	// CodeUnknownObject is reported for a ref the server no longer holds.
	CodeUnknownObject = -32001
)

// RemoteError represents an error reported by the bridge server.
type RemoteError struct {
	// Code is the JSON-RPC error code.
	Code int

	// Message is the server's description (usually the exception message).
	Message string

	// JavaClass is the exception class when Code is CodeJavaException.
	JavaClass string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.JavaClass != "" {
		return fmt.Sprintf("bridge error %d: %s: %s", e.Code, e.JavaClass, e.Message)
	}
	return fmt.Sprintf("bridge error %d: %s", e.Code, e.Message)
}

// IsRemoteError returns true if err is or wraps a RemoteError.
func IsRemoteError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// IsJavaException returns true if err wraps a Java exception with the
// given class name. An empty name matches any Java exception.
func IsJavaException(err error, class string) bool {
	var re *RemoteError
	if !errors.As(err, &re) || re.Code != CodeJavaException {
		return false
	}
	return class == "" || re.JavaClass == class
}
