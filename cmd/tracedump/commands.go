package main

import (
	"bufio"
	"errors"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tracedump/tracedump/internal/timestamp"
	"github.com/tracedump/tracedump/pkg/check"
	"github.com/tracedump/tracedump/pkg/config"
	tderrors "github.com/tracedump/tracedump/pkg/errors"
	"github.com/tracedump/tracedump/pkg/outcome"
	"github.com/tracedump/tracedump/pkg/print"
	"github.com/tracedump/tracedump/pkg/report"
	"github.com/tracedump/tracedump/pkg/trace"
	"github.com/tracedump/tracedump/pkg/tui"
	"github.com/tracedump/tracedump/pkg/writer"
)

// errErrorsHappened is the uniform top-level failure: the reason is only
// recoverable from stderr or the --errors-json artifact, never the exit code.
var errErrorsHappened = errors.New("errors happened")

// dispatch runs exactly one pipeline over an acquired trace source.
//
// Acquisition and validation failures abort before the pipeline and
// propagate directly. A pipeline result goes through the aggregation
// protocol: flush the shared output buffer exactly once, print the one-line
// diagnostic, write the --errors-json artifact when requested (on success
// too, with an empty list), and collapse any failure into the uniform
// non-zero exit.
func dispatch(cfg *config.Config, run func(src *trace.Source, out io.Writer) error) error {
	src, err := trace.Open(tracePath)
	if err != nil {
		return err
	}
	defer src.Close()

	out := bufio.NewWriterSize(os.Stdout, cfg.Output.BufferSize)
	res := run(src, out)

	if ferr := out.Flush(); ferr != nil {
		werr := tderrors.Wrap(ferr, tderrors.CodeWriteFailed, "flushing output")
		switch prev := res.(type) {
		case nil:
			res = werr
		case *outcome.Error:
			prev.Details = append(prev.Details, werr)
		default:
			res = outcome.Fail(prev.Error(), prev, werr)
		}
	}

	report.Diagnose(res, os.Stderr)
	if errorsJSON != "" {
		if werr := report.Write(res, errorsJSON); werr != nil {
			return werr
		}
	}
	if res != nil {
		return errErrorsHappened
	}
	return nil
}

func runHumanReadable(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	return dispatch(cfg, func(src *trace.Source, out io.Writer) error {
		r := src.Reader()
		res := print.Events(src.Header, r, out, rawMode)
		if verbose {
			tui.Infof("Events", "%d", r.Count())
		}
		return res
	})
}

func runParquet(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if compressionFlag == "" {
		compressionFlag = cfg.Export.Compression
	}
	compression, err := writer.ParseCompression(compressionFlag)
	if err != nil {
		return tderrors.Wrap(err, tderrors.CodeBadFlag, "invalid --compression")
	}
	if chunkSize == 0 {
		chunkSize = cfg.Export.ChunkSize
	}
	if chunkSize < 1 {
		return tderrors.Newf(tderrors.CodeBadFlag, "--chunk-size %d, want >= 1", chunkSize)
	}

	return dispatch(cfg, func(src *trace.Source, out io.Writer) error {
		makeTS := timestamp.Identity
		if uniqueTimestamps {
			var seq timestamp.Sequencer
			makeTS = seq.Next
		}

		wcfg := writer.Config{ChunkSize: chunkSize, Compression: compression}

		if verbose {
			if bar := tui.NewProgress(int64(src.Header.DeclaredEvents), "exporting"); bar != nil {
				wcfg.Progress = func(rows int64) { _ = bar.Set64(rows) }
			}
		}

		if verbose {
			tui.Infof("Trace", "%s (%s)", tracePath, tui.FormatBytes(src.Size()))
			tui.Infof("Compression", "%s", compression)
			tui.Infof("Chunk size", "%d rows", chunkSize)
		}

		start := time.Now()
		res := writer.Export(src.Header, src.Reader(), makeTS, eventNames, wcfg, out)
		if verbose {
			tui.ClearLine()
			if res == nil {
				tui.Successf("exported in %s", time.Since(start).Round(time.Millisecond))
			}
		}
		return res
	})
}

func runCheckHeader(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	return dispatch(cfg, func(src *trace.Source, out io.Writer) error {
		return check.Header(src.Header, src.Size(), out)
	})
}

func runMetadata(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	return dispatch(cfg, func(src *trace.Source, out io.Writer) error {
		return src.Header.WriteMetadata(out)
	})
}
