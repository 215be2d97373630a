// Package model defines core data structures for tracedump.
package model

import (
	"fmt"
	"strconv"
)

// Event represents a single decoded trace event.
// Timestamps are stored as uint64 nanoseconds on the trace clock; field
// values keep the width they had on the wire so that raw dumps and columnar
// exports agree with the capture byte-for-byte.
type Event struct {
	// ID is the numeric event id from the header's descriptor table.
	ID uint16

	// Name is the event name resolved through the descriptor table.
	Name string

	// CPU is the logical CPU the event was recorded on.
	CPU uint16

	// PID is the process id active when the event fired.
	PID uint32

	// Timestamp in nanoseconds on the trace clock.
	Timestamp uint64

	// Fields holds the decoded payload fields in descriptor order.
	Fields []Field

	// Raw is the undecoded payload, kept for raw rendering.
	Raw []byte
}

// Field is one decoded payload field.
type Field struct {
	Name  string
	Value Value
}

// ValueKind discriminates the payload field value union.
type ValueKind uint8

const (
	KindUint ValueKind = iota
	KindInt
	KindString
	KindBytes
)

// Value is a small sum type for payload field values.
type Value struct {
	Kind  ValueKind
	Uint  uint64
	Int   int64
	Str   string
	Bytes []byte
}

// U wraps an unsigned integer value.
func U(v uint64) Value { return Value{Kind: KindUint, Uint: v} }

// I wraps a signed integer value.
func I(v int64) Value { return Value{Kind: KindInt, Int: v} }

// S wraps a string value.
func S(v string) Value { return Value{Kind: KindString, Str: v} }

// B wraps a byte-slice value.
func B(v []byte) Value { return Value{Kind: KindBytes, Bytes: v} }

// String renders the value the way the human-readable dump prints it.
func (v Value) String() string {
	switch v.Kind {
	case KindUint:
		return strconv.FormatUint(v.Uint, 10)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindString:
		return v.Str
	case KindBytes:
		return fmt.Sprintf("%x", v.Bytes)
	default:
		return "?"
	}
}

// Reset clears the event for reuse.
func (e *Event) Reset() {
	e.ID = 0
	e.Name = ""
	e.CPU = 0
	e.PID = 0
	e.Timestamp = 0
	e.Fields = e.Fields[:0]
	e.Raw = e.Raw[:0]
}
