// Package trace reads KTRC binary trace captures: header parsing, a
// memory-mapped source, and a streaming event reader with a
// record-and-continue protocol for malformed records.
package trace

import (
	"encoding/binary"
	"fmt"
	"io"

	tderrors "github.com/tracedump/tracedump/pkg/errors"
)

// Magic is the 4-byte file signature of a KTRC capture.
const Magic = "KTRC"

// Version is the format version this reader understands.
const Version = 1

// FieldKind encodes the wire type of a payload field.
type FieldKind uint8

const (
	FieldU8 FieldKind = iota
	FieldU16
	FieldU32
	FieldU64
	FieldI32
	FieldI64
	FieldString
	FieldBytes

	fieldKindMax
)

// String returns the kind name used in diagnostics and check output.
func (k FieldKind) String() string {
	switch k {
	case FieldU8:
		return "u8"
	case FieldU16:
		return "u16"
	case FieldU32:
		return "u32"
	case FieldU64:
		return "u64"
	case FieldI32:
		return "i32"
	case FieldI64:
		return "i64"
	case FieldString:
		return "string"
	case FieldBytes:
		return "bytes"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether the kind is one this reader can decode.
func (k FieldKind) Valid() bool { return k < fieldKindMax }

// FieldDesc describes one payload field of an event type.
type FieldDesc struct {
	Name string
	Kind FieldKind
}

// EventDesc describes one event type declared in the header.
type EventDesc struct {
	ID     uint16
	Name   string
	Fields []FieldDesc
}

// MetaEntry is one header metadata key/value pair. Order is the order of
// appearance in the file and is preserved end to end.
type MetaEntry struct {
	Key   string
	Value string
}

// Header is the parsed KTRC header. It is immutable after parsing.
type Header struct {
	Version       uint16
	BigEndian     bool
	CPUCount      uint16
	Clock         string
	SourceVersion string
	Events        []EventDesc
	Meta          []MetaEntry

	// DeclaredEvents is the record count the capturing tool declared,
	// 0 when unknown.
	DeclaredEvents uint64

	// DataOffset is the absolute file offset of the first event record.
	DataOffset uint64

	byID map[uint16]*EventDesc
}

// ByteOrder returns the integer byte order records are encoded with.
func (h *Header) ByteOrder() binary.ByteOrder {
	if h.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// EventByID resolves an event descriptor by its numeric id.
func (h *Header) EventByID(id uint16) (*EventDesc, bool) {
	d, ok := h.byID[id]
	return d, ok
}

// WriteMetadata writes the header's metadata fields verbatim, one "key: value"
// line per field, built-in fields first and then the capture's own metadata
// entries in file order.
func (h *Header) WriteMetadata(w io.Writer) error {
	order := "little-endian"
	if h.BigEndian {
		order = "big-endian"
	}
	if _, err := fmt.Fprintf(w,
		"version: %d\nbyte-order: %s\nclock: %s\nsource-version: %s\ncpus: %d\ndeclared-events: %d\n",
		h.Version, order, h.Clock, h.SourceVersion, h.CPUCount, h.DeclaredEvents); err != nil {
		return tderrors.Wrap(err, tderrors.CodeWriteFailed, "writing metadata")
	}
	for _, m := range h.Meta {
		if _, err := fmt.Fprintf(w, "%s: %s\n", m.Key, m.Value); err != nil {
			return tderrors.Wrap(err, tderrors.CodeWriteFailed, "writing metadata")
		}
	}
	return nil
}

// ParseHeader parses a KTRC header from the start of data. data is the whole
// mapped file; the returned header's DataOffset points past the header into
// the record region.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < 8 {
		return nil, tderrors.New(tderrors.CodeBadMagic, "file too short for a trace header")
	}
	if string(data[:4]) != Magic {
		return nil, tderrors.Newf(tderrors.CodeBadMagic, "bad magic %q, want %q", data[:4], Magic)
	}

	h := &Header{}
	switch data[4] {
	case 0:
	case 1:
		h.BigEndian = true
	default:
		return nil, tderrors.Newf(tderrors.CodeBadHeader, "invalid byte-order flag %d", data[4])
	}
	if data[5] != 0 {
		return nil, tderrors.Newf(tderrors.CodeBadHeader, "reserved header byte is %d, want 0", data[5])
	}

	c := cursor{data: data, off: 6, ord: h.ByteOrder()}

	h.Version = c.u16()
	if c.err == nil && h.Version != Version {
		return nil, tderrors.Newf(tderrors.CodeBadVersion, "unsupported format version %d", h.Version)
	}
	h.CPUCount = c.u16()
	h.Clock = c.str()
	h.SourceVersion = c.str()

	nEvents := c.u16()
	for i := 0; i < int(nEvents) && c.err == nil; i++ {
		d := EventDesc{ID: c.u16(), Name: c.str()}
		nFields := c.u8()
		for j := 0; j < int(nFields) && c.err == nil; j++ {
			d.Fields = append(d.Fields, FieldDesc{Name: c.str(), Kind: FieldKind(c.u8())})
		}
		h.Events = append(h.Events, d)
	}

	nMeta := c.u16()
	for i := 0; i < int(nMeta) && c.err == nil; i++ {
		h.Meta = append(h.Meta, MetaEntry{Key: c.str(), Value: c.str()})
	}

	h.DeclaredEvents = c.u64()
	h.DataOffset = c.u64()

	if c.err != nil {
		return nil, tderrors.Wrap(c.err, tderrors.CodeBadHeader, "truncated trace header")
	}
	if h.DataOffset < uint64(c.off) || h.DataOffset > uint64(len(data)) {
		return nil, tderrors.Newf(tderrors.CodeBadHeader,
			"data offset %d outside file (header ends at %d, file size %d)",
			h.DataOffset, c.off, len(data))
	}

	h.byID = make(map[uint16]*EventDesc, len(h.Events))
	for i := range h.Events {
		h.byID[h.Events[i].ID] = &h.Events[i]
	}
	return h, nil
}

// cursor is a bounds-checked decoder over the mapped file. The first
// out-of-bounds read latches err; subsequent reads return zero values.
type cursor struct {
	data []byte
	off  int
	ord  binary.ByteOrder
	err  error
}

func (c *cursor) need(n int) []byte {
	if c.err != nil {
		return nil
	}
	if c.off+n > len(c.data) {
		c.err = fmt.Errorf("need %d bytes at offset %d, have %d", n, c.off, len(c.data)-c.off)
		return nil
	}
	b := c.data[c.off : c.off+n]
	c.off += n
	return b
}

func (c *cursor) u8() uint8 {
	b := c.need(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (c *cursor) u16() uint16 {
	b := c.need(2)
	if b == nil {
		return 0
	}
	return c.ord.Uint16(b)
}

func (c *cursor) u32() uint32 {
	b := c.need(4)
	if b == nil {
		return 0
	}
	return c.ord.Uint32(b)
}

func (c *cursor) u64() uint64 {
	b := c.need(8)
	if b == nil {
		return 0
	}
	return c.ord.Uint64(b)
}

func (c *cursor) str() string {
	n := c.u16()
	b := c.need(int(n))
	if b == nil {
		return ""
	}
	return string(b)
}
