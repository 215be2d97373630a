package writer

import (
	"fmt"
	"io"

	tderrors "github.com/tracedump/tracedump/pkg/errors"
	"github.com/tracedump/tracedump/pkg/outcome"
	"github.com/tracedump/tracedump/pkg/trace"
)

// Export streams events from r into a Parquet file written to out.
//
// makeTS transforms each event's timestamp before it is appended (identity
// when uniqueness is not requested). events, when non-nil, is an allow-list
// of event names; events absent from it are skipped. Malformed records
// accumulate into the returned outcome while well-formed rows keep flowing;
// output failures abort.
func Export(h *trace.Header, r *trace.Reader, makeTS func(uint64) uint64, events []string, cfg Config, out io.Writer) error {
	var allow map[string]bool
	if events != nil {
		allow = make(map[string]bool, len(events))
		for _, name := range events {
			allow[name] = true
		}
	}

	pw, err := NewParquetWriter(out, cfg)
	if err != nil {
		return tderrors.Wrap(err, tderrors.CodeWriteFailed, "opening parquet output")
	}

	var col outcome.Collector
	for {
		ev, rerr := r.Next()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			col.Add(rerr)
			if ev == nil {
				if !trace.Recoverable(rerr) {
					break
				}
				continue
			}
		}
		if allow != nil && !allow[ev.Name] {
			continue
		}
		if werr := pw.Append(ev, makeTS(ev.Timestamp)); werr != nil {
			pw.Close()
			return tderrors.Wrap(werr, tderrors.CodeWriteFailed, "writing parquet chunk")
		}
	}

	if cerr := pw.Close(); cerr != nil {
		return tderrors.Wrap(cerr, tderrors.CodeWriteFailed, "finalizing parquet output")
	}
	return col.Result(fmt.Sprintf("%d malformed events while exporting trace", col.Len()))
}
