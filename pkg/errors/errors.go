// Package errors provides coded errors for tracedump. Codes follow the
// tool's failure taxonomy: I/O errors abort the invocation, format errors
// accumulate into the pipeline outcome, validation errors abort before any
// pipeline runs. The exit code is uniform; the code here is what makes the
// failure class recoverable from diagnostics.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code identifies a failure class for programmatic handling.
type Code string

const (
	// I/O errors (1xx)
	CodeFileNotFound Code = "E101"
	CodeOpenFailed   Code = "E102"
	CodeMmapFailed   Code = "E103"
	CodeWriteFailed  Code = "E104"

	// Format errors (2xx)
	CodeBadMagic     Code = "E201"
	CodeBadVersion   Code = "E202"
	CodeBadHeader    Code = "E203"
	CodeBadRecord    Code = "E204"
	CodeUnknownEvent Code = "E205"
	CodeBadTimestamp Code = "E206"
	CodeTruncated    Code = "E207"

	// Validation errors (3xx)
	CodeBadFlag Code = "E301"

	CodeUnknown Code = "E999"
)

// Error is the base coded error type.
type Error struct {
	Code    Code
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", e.Code, e.Message)

	if len(e.Context) > 0 {
		sb.WriteString(" (")
		first := true
		for k, v := range e.Context {
			if !first {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%v", k, v)
			first = false
		}
		sb.WriteString(")")
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches errors by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext attaches a key/value pair to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error from a format string.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a code and message.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Cause: err}
}

// CodeOf extracts the code from an error chain, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsFormat reports whether the error belongs to the format class, the only
// class that accumulates into a pipeline outcome instead of aborting.
func IsFormat(err error) bool {
	c := CodeOf(err)
	return strings.HasPrefix(string(c), "E2")
}
