// Package report converts a pipeline outcome into console diagnostics, an
// optional structured error artifact and a process exit status.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tderrors "github.com/tracedump/tracedump/pkg/errors"
	"github.com/tracedump/tracedump/pkg/outcome"
)

// Artifact is the machine-readable error report: the ordered list of error
// descriptions observed during the pipeline, empty when none occurred.
type Artifact struct {
	Errors []string `json:"errors"`
}

// Write serializes the artifact for res to path, atomically (temp file in
// the destination directory, then rename). It is called whenever a report
// path was supplied, success or failure, so "no errors occurred" stays
// distinguishable from "reporting was not requested".
func Write(res error, path string) error {
	art := Artifact{Errors: make([]string, 0)}
	if res != nil {
		art.Errors = outcome.Describe(res)
	}

	data, err := json.Marshal(art)
	if err != nil {
		return tderrors.Wrap(err, tderrors.CodeWriteFailed, "encoding error report")
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".errors-*.json")
	if err != nil {
		return tderrors.Wrap(err, tderrors.CodeWriteFailed, "creating error report").WithContext("path", path)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return tderrors.Wrap(err, tderrors.CodeWriteFailed, "writing error report").WithContext("path", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return tderrors.Wrap(err, tderrors.CodeWriteFailed, "closing error report").WithContext("path", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return tderrors.Wrap(err, tderrors.CodeWriteFailed, "publishing error report").WithContext("path", path)
	}
	return nil
}

// Diagnose writes the one-line top-level diagnostic for a failed result.
func Diagnose(res error, w io.Writer) {
	if res == nil {
		return
	}
	summary := res.Error()
	if oe, ok := res.(*outcome.Error); ok {
		summary = oe.Summary
	}
	fmt.Fprintf(w, "Errors happened while processing the trace: %s\n", summary)
}

// ExitCode maps a pipeline result to the process exit status. Failure is
// uniform: the taxonomy of why lives in the diagnostics and the artifact,
// never in the exit code.
func ExitCode(res error) int {
	if res != nil {
		return 1
	}
	return 0
}
