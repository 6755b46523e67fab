package schemagen

import (
	"errors"
	"fmt"
)

// ErrEmptyClassName indicates a class without a name.
var ErrEmptyClassName = errors.New("class name is empty")

// UnmappableFieldError reports an attribute whose type has no rule-engine
// equivalent and that is not marked to be ignored.
type UnmappableFieldError struct {
	Class string
	Field string

	// Type is the offending column type, empty for relations.
	Type string
}

// Error implements the error interface.
func (e *UnmappableFieldError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("cannot map type %q for field %s.%s", e.Type, e.Class, e.Field)
	}
	return fmt.Sprintf("cannot map type for field %s.%s", e.Class, e.Field)
}

// IsUnmappableFieldError returns true if err is or wraps an UnmappableFieldError.
func IsUnmappableFieldError(err error) bool {
	var ufe *UnmappableFieldError
	return errors.As(err, &ufe)
}
