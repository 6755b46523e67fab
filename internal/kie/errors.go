package kie

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the knowledge layer.
var (
	// ErrBuilderConsumed indicates Add or Build on a builder that already built a base.
	ErrBuilderConsumed = errors.New("knowledge builder already built")

	// ErrInvalidUTF8 indicates a text asset that is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("asset text is not valid UTF-8")

	// ErrUnknownField indicates a named value for a field the fact type does not declare.
	ErrUnknownField = errors.New("unknown field")

	// ErrTooManyValues indicates more positional values than declared fields.
	ErrTooManyValues = errors.New("too many positional values")
)

// RuleCompilationError reports that the builder rejected its rule sources.
// Errors holds every message the builder reported, in order.
type RuleCompilationError struct {
	Errors []string
}

// Error implements the error interface.
func (e *RuleCompilationError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "rule compilation failed"
	case 1:
		return "rule compilation failed: " + e.Errors[0]
	default:
		return fmt.Sprintf("rule compilation failed with %d errors: %s", len(e.Errors), strings.Join(e.Errors, "; "))
	}
}

// UnknownFactTypeError reports a (package, name) pair missing from the base.
type UnknownFactTypeError struct {
	Package string
	Name    string
}

// Error implements the error interface.
func (e *UnknownFactTypeError) Error() string {
	return fmt.Sprintf("unknown fact type %s.%s", e.Package, e.Name)
}

// IsRuleCompilationError returns true if err is or wraps a RuleCompilationError.
func IsRuleCompilationError(err error) bool {
	var rce *RuleCompilationError
	return errors.As(err, &rce)
}

// IsUnknownFactTypeError returns true if err is or wraps an UnknownFactTypeError.
func IsUnknownFactTypeError(err error) bool {
	var ute *UnknownFactTypeError
	return errors.As(err, &ute)
}
