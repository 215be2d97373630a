// Package check validates the internal consistency of a parsed trace header.
package check

import (
	"fmt"
	"io"

	tderrors "github.com/tracedump/tracedump/pkg/errors"
	"github.com/tracedump/tracedump/pkg/outcome"
	"github.com/tracedump/tracedump/pkg/trace"
)

// Known clock names. An unrecognized clock is reported but is not an error:
// captures from newer kernels legitimately carry clocks this tool has not
// heard of.
var knownClocks = map[string]bool{
	"local":   true,
	"global":  true,
	"mono":    true,
	"boot":    true,
	"uptime":  true,
	"x86-tsc": true,
}

// Header checks h against the capture's file size, writes every finding to
// w and returns an outcome whose constituent errors are the error-level
// findings. Informational findings are written but do not fail the check.
func Header(h *trace.Header, fileSize int64, w io.Writer) error {
	var col outcome.Collector

	fail := func(format string, args ...any) error {
		msg := fmt.Sprintf(format, args...)
		col.Addf("%s", msg)
		_, err := fmt.Fprintf(w, "error: %s\n", msg)
		return err
	}
	info := func(format string, args ...any) error {
		_, err := fmt.Fprintf(w, "note: %s\n", fmt.Sprintf(format, args...))
		return err
	}

	var werr error
	put := func(err error) {
		if werr == nil {
			werr = err
		}
	}

	if len(h.Events) == 0 {
		put(fail("header declares no event descriptors"))
	}
	seenIDs := make(map[uint16]string, len(h.Events))
	seenNames := make(map[string]uint16, len(h.Events))
	for _, d := range h.Events {
		if prev, dup := seenIDs[d.ID]; dup {
			put(fail("event id %d declared twice (%s and %s)", d.ID, prev, d.Name))
		}
		seenIDs[d.ID] = d.Name
		if prev, dup := seenNames[d.Name]; dup {
			put(fail("event name %q declared twice (ids %d and %d)", d.Name, prev, d.ID))
		}
		seenNames[d.Name] = d.ID
		for _, f := range d.Fields {
			if !f.Kind.Valid() {
				put(fail("event %s field %s has unknown kind %d", d.Name, f.Name, f.Kind))
			}
		}
	}

	if h.CPUCount == 0 {
		put(fail("header declares zero CPUs"))
	}
	if !knownClocks[h.Clock] {
		put(info("unrecognized clock %q", h.Clock))
	}

	if h.DataOffset > uint64(fileSize) {
		put(fail("data offset %d beyond end of file (%d bytes)", h.DataOffset, fileSize))
	} else if h.DeclaredEvents > 0 {
		// Every record costs at least its fixed head; a declared count that
		// cannot fit in the data region means the header lies. Compare by
		// division so an absurd count cannot wrap the product.
		region := uint64(fileSize) - h.DataOffset
		if h.DeclaredEvents > region/trace.RecordHeadSize {
			put(fail("declared event count %d cannot fit in %d data bytes", h.DeclaredEvents, region))
		}
	}

	if werr != nil {
		return tderrors.Wrap(werr, tderrors.CodeWriteFailed, "writing check report")
	}
	if col.Len() == 0 {
		if _, err := fmt.Fprintln(w, "header ok"); err != nil {
			return tderrors.Wrap(err, tderrors.CodeWriteFailed, "writing check report")
		}
		return nil
	}
	return col.Result(fmt.Sprintf("%d header consistency errors", col.Len()))
}
