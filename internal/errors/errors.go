// Package errors classifies the conditions that abort a support dump run.
//
// Everything that is not a StructuredError is a step failure: it is logged
// by the function that owns it and the run moves on.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a structured error classification.
type ErrorCode string

const (
	// ErrCodeNoClient indicates no supported cluster CLI was found on PATH.
	ErrCodeNoClient ErrorCode = "NO_CLUSTER_CLIENT"
	// ErrCodeInvalidConfig indicates a rejected configuration value.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	// ErrCodeClusterAccess indicates the cluster could not be reached or the
	// session is not authenticated.
	ErrCodeClusterAccess ErrorCode = "CLUSTER_ACCESS"
	// ErrCodeOutputDir indicates the output directory could not be created.
	ErrCodeOutputDir ErrorCode = "OUTPUT_DIR"
	// ErrCodeArchive indicates the archive could not be written.
	ErrCodeArchive ErrorCode = "ARCHIVE"
)

// StructuredError carries an error code for programmatic handling, a
// human-readable message, the underlying cause and optional context.
type StructuredError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is and errors.As support.
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// Wrap wraps an existing error with a code and message.
func Wrap(code ErrorCode, message string, cause error) *StructuredError {
	return &StructuredError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapWithContext wraps an error with additional context information.
func WrapWithContext(code ErrorCode, message string, cause error, context map[string]any) *StructuredError {
	return &StructuredError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: context,
	}
}

// CodeOf returns the code of the first StructuredError in err's chain, or an
// empty code when there is none.
func CodeOf(err error) ErrorCode {
	var se *StructuredError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsFatal reports whether err must abort the run.
func IsFatal(err error) bool {
	return CodeOf(err) != ""
}
