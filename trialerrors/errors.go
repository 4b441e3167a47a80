// Package trialerrors classifies trial-execution failures into the fixed
// ErrorCategory vocabulary without ever panicking, mirroring the chain-walk
// toolerrors.FromError uses to preserve diagnostic context.
package trialerrors

import (
	"context"
	"errors"

	"github.com/agentuse/agentuse/toolerrors"
)

// Category is the closed set of trial-level failure classes.
type Category string

const (
	CategoryTimeout           Category = "timeout"
	CategoryRuntimeError      Category = "runtime_error"
	CategoryValidationFailure Category = "validation_failure"
	CategoryToolError         Category = "tool_error"
	CategoryUnknown           Category = "unknown"
)

// Detail carries the category alongside a human-readable message, matching
// TrialResult.execution.error in the data model.
type Detail struct {
	Category Category
	Message  string
}

// Classify inspects err and assigns it a Category. A nil error classifies as
// the zero Detail with an empty category and is never called from a success
// path by convention.
func Classify(err error) Detail {
	if err == nil {
		return Detail{}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Detail{Category: CategoryTimeout, Message: err.Error()}
	case errors.Is(err, context.Canceled):
		return Detail{Category: CategoryTimeout, Message: err.Error()}
	}

	var te *toolerrors.ToolError
	if errors.As(err, &te) {
		return Detail{Category: CategoryToolError, Message: te.Error()}
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return Detail{Category: CategoryValidationFailure, Message: ve.Error()}
	}

	return Detail{Category: CategoryRuntimeError, Message: err.Error()}
}

// ValidationError marks a failure produced by the evaluator (unparseable
// judge response, invalid regex, unreadable artifact) as distinct from a
// runtime crash.
type ValidationError struct {
	Message string
	Cause   error
}

// NewValidation constructs a ValidationError.
func NewValidation(message string, cause error) *ValidationError {
	return &ValidationError{Message: message, Cause: cause}
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error { return e.Cause }
