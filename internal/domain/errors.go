// Package domain defines core types, interfaces, and errors for the pipeline.
package domain

import "fmt"

// ConfigurationError indicates a descriptor or pipeline config that cannot be
// executed as written: unknown type, missing field, or invalid output name.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// ReferenceError indicates a qualified table that does not exist in the
// catalog at the moment a descriptor needs it.
type ReferenceError struct {
	Table string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("table %s does not exist", e.Table)
}

// ExecutionError indicates the analytical engine rejected a constructed query.
type ExecutionError struct {
	Query string
	Err   error
}

func (e *ExecutionError) Error() string { return "execute query: " + e.Err.Error() }

func (e *ExecutionError) Unwrap() error { return e.Err }

// StepError is the terminal error of a transform run. It identifies the
// failing descriptor by position and declared type.
type StepError struct {
	Index       int
	Kind        TransformKind
	OutputTable string
	Err         error
}

func (e *StepError) Error() string {
	kind := string(e.Kind)
	if kind == "" {
		kind = "unknown"
	}
	if e.OutputTable != "" {
		return fmt.Sprintf("transformation #%d (%s -> %s): %v", e.Index, kind, e.OutputTable, e.Err)
	}
	return fmt.Sprintf("transformation #%d (%s): %v", e.Index, kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., target table already exists).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ErrConfiguration creates a ConfigurationError with a formatted message.
func ErrConfiguration(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// ErrReference creates a ReferenceError for the given qualified table.
func ErrReference(ref TableRef) *ReferenceError {
	return &ReferenceError{Table: ref.String()}
}

// ErrExecution wraps an engine failure for the given query.
func ErrExecution(query string, err error) *ExecutionError {
	return &ExecutionError{Query: query, Err: err}
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}
