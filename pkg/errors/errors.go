// Package errors provides structured error types for the gridplace engine.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the placement library
//   - Machine-readable error codes for programmatic handling
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes map onto the failure taxonomy of a placement run:
//   - IMPORT_*: malformed input snapshots, rejected before optimization
//   - LEGALIZE_*: row/region assignment failures after spillover retries
//   - DIVERGED: the global placer exhausted its recovery budgets
//   - CONSISTENCY_*: internal invariant violations, never a user error
//
// # Usage
//
//	err := errors.New(errors.ErrCodeImport, "row %d is not horizontal", r)
//	if errors.Is(err, errors.ErrCodeImport) {
//	    // reject the snapshot
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeLegalize, cause, "region %d", id)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different failure categories.
const (
	// Import validation errors. Fatal before any optimization begins.
	ErrCodeImport        Code = "IMPORT_ERROR"
	ErrCodeImportRow     Code = "IMPORT_BAD_ROW"
	ErrCodeImportNode    Code = "IMPORT_BAD_NODE"
	ErrCodeImportPin     Code = "IMPORT_DANGLING_PIN"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidScript Code = "INVALID_SCRIPT"

	// Legalization errors. Surfaced without partial writeback.
	ErrCodeLegalize Code = "LEGALIZE_ERROR"
	ErrCodeCapacity Code = "LEGALIZE_NO_CAPACITY"

	// Global placement divergence.
	ErrCodeDiverged Code = "DIVERGED"

	// Internal invariant violations.
	ErrCodeConsistency Code = "CONSISTENCY_ERROR"
	ErrCodeInternal    Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
