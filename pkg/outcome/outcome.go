// Package outcome implements the multi-error result shape shared by every
// pipeline in tracedump. A pipeline either succeeds (nil error) or fails with
// a summary plus the ordered list of constituent errors discovered along the
// way, so callers can report all partial failures instead of just the first.
package outcome

import (
	"fmt"
	"strings"
)

// Error is a failed pipeline result: one top-level summary and zero or more
// constituent errors in discovery order.
type Error struct {
	Summary string
	Details []error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return e.Summary
	}
	return fmt.Sprintf("%s (%d errors)", e.Summary, len(e.Details))
}

// Errors returns the constituent error descriptions in discovery order.
// A failure with no recorded details reports its summary as the single entry.
func (e *Error) Errors() []string {
	if len(e.Details) == 0 {
		return []string{e.Summary}
	}
	out := make([]string, len(e.Details))
	for i, d := range e.Details {
		out[i] = d.Error()
	}
	return out
}

// Unwrap exposes the constituent errors to errors.Is/As.
func (e *Error) Unwrap() []error { return e.Details }

// Describe extracts the full ordered error list from a pipeline result.
// Returns nil for a nil (successful) result; for a plain error, its message.
func Describe(err error) []string {
	switch e := err.(type) {
	case nil:
		return nil
	case *Error:
		return e.Errors()
	default:
		return []string{err.Error()}
	}
}

// Collector accumulates constituent errors while a pipeline streams.
type Collector struct {
	details []error
}

// Add records one constituent error.
func (c *Collector) Add(err error) {
	c.details = append(c.details, err)
}

// Addf records one constituent error built from a format string.
func (c *Collector) Addf(format string, args ...any) {
	c.details = append(c.details, fmt.Errorf(format, args...))
}

// Len reports how many errors were recorded so far.
func (c *Collector) Len() int { return len(c.details) }

// Result finalizes the collector: nil when nothing was recorded, otherwise
// an *Error carrying the summary and the accumulated details.
func (c *Collector) Result(summary string) error {
	if len(c.details) == 0 {
		return nil
	}
	return &Error{Summary: summary, Details: c.details}
}

// Fail builds a failure from a summary and pre-collected details.
func Fail(summary string, details ...error) *Error {
	return &Error{Summary: summary, Details: details}
}

// String renders the whole error set, one description per line. Used by
// tests and verbose diagnostics.
func String(err error) string {
	return strings.Join(Describe(err), "\n")
}
