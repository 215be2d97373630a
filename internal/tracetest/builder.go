// Package tracetest builds synthetic KTRC captures for tests.
package tracetest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/tracedump/tracedump/pkg/trace"
)

// Builder assembles a little-endian KTRC capture in memory. Fields with
// zero values get sensible defaults in Bytes. Tests that need a corrupted
// capture set the override fields or patch the returned bytes directly.
type Builder struct {
	Version       uint16
	Reserved      uint8
	CPUCount      uint16
	Clock         string
	SourceVersion string
	Meta          []trace.MetaEntry

	// DeclaredEvents overrides the record count written to the header.
	// Left nil, the header declares the true number of appended records.
	DeclaredEvents *uint64

	descs   []trace.EventDesc
	records []record
}

type record struct {
	id      uint16
	cpu     uint16
	pid     uint32
	ts      uint64
	payload []byte
}

// NewBuilder returns a builder for a plausible one-CPU capture.
func NewBuilder() *Builder {
	return &Builder{
		Version:       trace.Version,
		CPUCount:      1,
		Clock:         "mono",
		SourceVersion: "tracetest-1.0",
	}
}

// AddEventDesc declares an event type.
func (b *Builder) AddEventDesc(id uint16, name string, fields ...trace.FieldDesc) *Builder {
	b.descs = append(b.descs, trace.EventDesc{ID: id, Name: name, Fields: fields})
	return b
}

// AddRecord appends a record, encoding values against the declared fields of
// id in order. Accepted value types: uint64 for the unsigned kinds, int64
// for the signed ones, string, []byte.
func (b *Builder) AddRecord(id uint16, cpu uint16, pid uint32, ts uint64, values ...any) *Builder {
	var desc *trace.EventDesc
	for i := range b.descs {
		if b.descs[i].ID == id {
			desc = &b.descs[i]
			break
		}
	}
	if desc == nil {
		panic(fmt.Sprintf("tracetest: AddRecord for undeclared event id %d", id))
	}
	if len(values) != len(desc.Fields) {
		panic(fmt.Sprintf("tracetest: event %s wants %d values, got %d", desc.Name, len(desc.Fields), len(values)))
	}

	var p bytes.Buffer
	for i, fd := range desc.Fields {
		encodeValue(&p, fd, values[i])
	}
	b.records = append(b.records, record{id: id, cpu: cpu, pid: pid, ts: ts, payload: p.Bytes()})
	return b
}

// AddRawRecord appends a record with an arbitrary payload, bypassing field
// encoding. Used to plant malformed payloads and unknown event ids.
func (b *Builder) AddRawRecord(id uint16, cpu uint16, pid uint32, ts uint64, payload []byte) *Builder {
	b.records = append(b.records, record{id: id, cpu: cpu, pid: pid, ts: ts, payload: payload})
	return b
}

// Bytes encodes the capture.
func (b *Builder) Bytes() []byte {
	var w bytes.Buffer
	w.WriteString(trace.Magic)
	w.WriteByte(0) // little-endian
	w.WriteByte(b.Reserved)
	le16(&w, b.Version)
	le16(&w, b.CPUCount)
	str(&w, b.Clock)
	str(&w, b.SourceVersion)

	le16(&w, uint16(len(b.descs)))
	for _, d := range b.descs {
		le16(&w, d.ID)
		str(&w, d.Name)
		w.WriteByte(uint8(len(d.Fields)))
		for _, f := range d.Fields {
			str(&w, f.Name)
			w.WriteByte(uint8(f.Kind))
		}
	}

	le16(&w, uint16(len(b.Meta)))
	for _, m := range b.Meta {
		str(&w, m.Key)
		str(&w, m.Value)
	}

	declared := uint64(len(b.records))
	if b.DeclaredEvents != nil {
		declared = *b.DeclaredEvents
	}
	le64(&w, declared)

	// Data offset: header length plus the 8 bytes of the offset field itself.
	le64(&w, uint64(w.Len())+8)

	for _, r := range b.records {
		le16(&w, r.id)
		le16(&w, r.cpu)
		le32(&w, r.pid)
		le64(&w, r.ts)
		le32(&w, uint32(len(r.payload)))
		w.Write(r.payload)
	}
	return w.Bytes()
}

// WriteFile encodes the capture into a file under t.TempDir and returns its
// path.
func (b *Builder) WriteFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.ktrc")
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func encodeValue(w *bytes.Buffer, fd trace.FieldDesc, v any) {
	bad := func() {
		panic(fmt.Sprintf("tracetest: field %s (%s) cannot encode %T", fd.Name, fd.Kind, v))
	}
	switch fd.Kind {
	case trace.FieldU8:
		u, ok := v.(uint64)
		if !ok {
			bad()
		}
		w.WriteByte(uint8(u))
	case trace.FieldU16:
		u, ok := v.(uint64)
		if !ok {
			bad()
		}
		le16(w, uint16(u))
	case trace.FieldU32:
		u, ok := v.(uint64)
		if !ok {
			bad()
		}
		le32(w, uint32(u))
	case trace.FieldU64:
		u, ok := v.(uint64)
		if !ok {
			bad()
		}
		le64(w, u)
	case trace.FieldI32:
		i, ok := v.(int64)
		if !ok {
			bad()
		}
		le32(w, uint32(int32(i)))
	case trace.FieldI64:
		i, ok := v.(int64)
		if !ok {
			bad()
		}
		le64(w, uint64(i))
	case trace.FieldString:
		s, ok := v.(string)
		if !ok {
			bad()
		}
		str(w, s)
	case trace.FieldBytes:
		p, ok := v.([]byte)
		if !ok {
			bad()
		}
		le16(w, uint16(len(p)))
		w.Write(p)
	default:
		bad()
	}
}

func le16(w *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.Write(b[:])
}

func le32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func le64(w *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.Write(b[:])
}

func str(w *bytes.Buffer, s string) {
	le16(w, uint16(len(s)))
	w.WriteString(s)
}
