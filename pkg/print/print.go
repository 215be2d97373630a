// Package print renders trace events as human-readable text.
package print

import (
	"fmt"
	"io"

	"github.com/tracedump/tracedump/internal/model"
	tderrors "github.com/tracedump/tracedump/pkg/errors"
	"github.com/tracedump/tracedump/pkg/outcome"
	"github.com/tracedump/tracedump/pkg/trace"
)

// Events streams every event from r into w, one line per event. raw renders
// the undecoded payload as hex instead of decoded fields. Malformed records
// accumulate into the returned outcome while printing continues; a sink
// write failure aborts immediately.
func Events(h *trace.Header, r *trace.Reader, w io.Writer, raw bool) error {
	var col outcome.Collector
	for {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			col.Add(err)
			if ev == nil {
				if !trace.Recoverable(err) {
					break
				}
				continue
			}
			// Timestamp violations still carry a printable event.
		}
		if werr := writeEvent(w, ev, raw); werr != nil {
			return tderrors.Wrap(werr, tderrors.CodeWriteFailed, "writing event dump")
		}
	}
	return col.Result(fmt.Sprintf("%d malformed events while printing trace", col.Len()))
}

func writeEvent(w io.Writer, ev *model.Event, raw bool) error {
	if _, err := fmt.Fprintf(w, "%s: cpu=%d pid=%d ts=%d", ev.Name, ev.CPU, ev.PID, ev.Timestamp); err != nil {
		return err
	}
	if raw {
		if _, err := fmt.Fprintf(w, " raw=%x\n", ev.Raw); err != nil {
			return err
		}
		return nil
	}
	for _, f := range ev.Fields {
		if _, err := fmt.Fprintf(w, " %s=%s", f.Name, f.Value.String()); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}
