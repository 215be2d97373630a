package trace

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/tracedump/tracedump/internal/model"
	tderrors "github.com/tracedump/tracedump/pkg/errors"
)

// Reader streams event records from a mapped capture.
//
// Next returns (event, nil) for a well-formed record and (nil, io.EOF) at
// the clean end of the data region. Malformed records follow a
// record-and-continue protocol: Next returns a format error, has already
// advanced past the bad record where possible, and can be called again.
// Recoverable tells the caller whether iteration may continue. A decreasing
// timestamp returns both the event (clamped to the previous timestamp) and
// an error, so the caller can keep the record while accounting the
// violation.
type Reader struct {
	h    *Header
	data []byte
	off  int
	ord  binary.ByteOrder

	lastTS   uint64
	seenAny  bool
	consumed uint64
}

// RecordHeadSize is the fixed part of every record:
// id u16 + cpu u16 + pid u32 + timestamp u64 + payload length u32.
const RecordHeadSize = 2 + 2 + 4 + 8 + 4

// Next decodes the next record. See the Reader doc for the error protocol.
func (r *Reader) Next() (*model.Event, error) {
	if r.off >= len(r.data) {
		return nil, io.EOF
	}
	if r.off+RecordHeadSize > len(r.data) {
		n := len(r.data) - r.off
		r.off = len(r.data)
		return nil, tderrors.Newf(tderrors.CodeTruncated,
			"truncated record header at offset %d (%d trailing bytes)", r.off-n, n)
	}

	start := r.off
	id := r.ord.Uint16(r.data[r.off:])
	cpu := r.ord.Uint16(r.data[r.off+2:])
	pid := r.ord.Uint32(r.data[r.off+4:])
	ts := r.ord.Uint64(r.data[r.off+8:])
	plen := int(r.ord.Uint32(r.data[r.off+16:]))
	r.off += RecordHeadSize

	if r.off+plen > len(r.data) {
		r.off = len(r.data)
		return nil, tderrors.Newf(tderrors.CodeTruncated,
			"truncated payload at offset %d: record declares %d bytes, %d remain",
			start, plen, len(r.data)-start-RecordHeadSize)
	}
	payload := r.data[r.off : r.off+plen]
	r.off += plen

	desc, ok := r.h.EventByID(id)
	if !ok {
		return nil, tderrors.Newf(tderrors.CodeUnknownEvent,
			"record at offset %d references unknown event id %d", start, id)
	}

	ev := &model.Event{
		ID:        id,
		Name:      desc.Name,
		CPU:       cpu,
		PID:       pid,
		Timestamp: ts,
		Raw:       payload,
	}
	if err := decodeFields(ev, desc, payload, r.ord); err != nil {
		return nil, tderrors.Wrap(err, tderrors.CodeBadRecord,
			"malformed payload for event "+desc.Name).WithContext("offset", start)
	}

	var tsErr error
	if r.seenAny && ts < r.lastTS {
		// The format guarantees in-order emission; a step backwards is a
		// capture defect. Clamp so downstream ordering invariants hold.
		tsErr = tderrors.Newf(tderrors.CodeBadTimestamp,
			"event %s at offset %d goes back in time (%d after %d)", desc.Name, start, ts, r.lastTS)
		ev.Timestamp = r.lastTS
	}
	r.lastTS = ev.Timestamp
	r.seenAny = true
	r.consumed++
	return ev, tsErr
}

// Count reports how many records were successfully decoded so far.
func (r *Reader) Count() uint64 { return r.consumed }

// Recoverable reports whether iteration may continue after a Next error.
// Truncation consumes the rest of the data region, so it is terminal; every
// other format error leaves the reader positioned at the next record.
func Recoverable(err error) bool {
	if err == nil || errors.Is(err, io.EOF) {
		return false
	}
	return tderrors.IsFormat(err) && tderrors.CodeOf(err) != tderrors.CodeTruncated
}

func decodeFields(ev *model.Event, desc *EventDesc, payload []byte, ord binary.ByteOrder) error {
	c := cursor{data: payload, ord: ord}
	for _, fd := range desc.Fields {
		var v model.Value
		switch fd.Kind {
		case FieldU8:
			v = model.U(uint64(c.u8()))
		case FieldU16:
			v = model.U(uint64(c.u16()))
		case FieldU32:
			v = model.U(uint64(c.u32()))
		case FieldU64:
			v = model.U(c.u64())
		case FieldI32:
			v = model.I(int64(int32(c.u32())))
		case FieldI64:
			v = model.I(int64(c.u64()))
		case FieldString:
			v = model.S(c.str())
		case FieldBytes:
			n := c.u16()
			v = model.B(c.need(int(n)))
		default:
			return tderrors.Newf(tderrors.CodeBadRecord, "field %s has unknown kind %d", fd.Name, fd.Kind)
		}
		if c.err != nil {
			return c.err
		}
		ev.Fields = append(ev.Fields, model.Field{Name: fd.Name, Value: v})
	}
	if c.off != len(payload) {
		return tderrors.Newf(tderrors.CodeBadRecord,
			"%d undeclared trailing payload bytes", len(payload)-c.off)
	}
	return nil
}
