// Package suiteerrors provides structured errors for the suite-loading phase
// of a benchmark run. Every error here aborts the run before any trial
// executes.
package suiteerrors

import "fmt"

// ConfigError reports a configuration-class failure: suite not found, schema
// violation, agent parse error, or malformed model identifier.
type ConfigError struct {
	// Field is the offending configuration field path, e.g. "tests[0].agent"
	// or "suitePath".
	Field string
	// Issue is a short machine-readable code, e.g. "not_found",
	// "schema_violation", "agent_load_error".
	Issue string
	// Candidates lists paths that were probed and rejected, populated for
	// suite-resolution failures.
	Candidates []string
	// Cause is the underlying error, if any.
	Cause error
}

// New constructs a ConfigError.
func New(field, issue string) *ConfigError {
	return &ConfigError{Field: field, Issue: issue}
}

// Wrap constructs a ConfigError around an underlying cause.
func Wrap(field, issue string, cause error) *ConfigError {
	return &ConfigError{Field: field, Issue: issue, Cause: cause}
}

// WithCandidates attaches the list of probed paths and returns the receiver.
func (e *ConfigError) WithCandidates(candidates []string) *ConfigError {
	e.Candidates = candidates
	return e
}

// Error implements the error interface as "field: issue", followed by
// ": cause" when a cause is set.
func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Field, e.Issue, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Issue)
}

// Unwrap supports errors.Is/As against the underlying cause.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
