package main

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/tracedump/tracedump/internal/tracetest"
	"github.com/tracedump/tracedump/pkg/report"
	"github.com/tracedump/tracedump/pkg/trace"
)

// resetFlags restores the CLI globals between tests and isolates config
// lookup from the developer's machine.
func resetFlags(t *testing.T) {
	t.Helper()
	errorsJSON = ""
	verbose = false
	tracePath = ""
	rawMode = false
	eventNames = nil
	uniqueTimestamps = false
	compressionFlag = ""
	chunkSize = 0

	dir := t.TempDir()
	t.Setenv("HOME", filepath.Join(dir, "home"))
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

// capture runs a subcommand with stdout redirected to a file and returns
// what the pipeline wrote.
func capture(t *testing.T, run func(cmd *cobra.Command, args []string) error) (string, error) {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "stdout-*")
	if err != nil {
		t.Fatal(err)
	}
	old := os.Stdout
	os.Stdout = f
	runErr := run(nil, nil)
	os.Stdout = old

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		t.Fatal(err)
	}
	return string(data), runErr
}

func validCapture(t *testing.T) string {
	b := tracetest.NewBuilder()
	b.AddEventDesc(1, "sched_wakeup",
		trace.FieldDesc{Name: "pid", Kind: trace.FieldU32},
	)
	b.AddRecord(1, 0, 5, 100, uint64(42))
	b.AddRecord(1, 0, 5, 110, uint64(43))
	b.AddRecord(1, 1, 5, 120, uint64(44))
	return b.WriteFile(t)
}

func readArtifact(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("artifact not written: %v", err)
	}
	var art report.Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		t.Fatalf("artifact is not valid JSON: %v", err)
	}
	return art.Errors
}

func TestHumanReadableEndToEnd(t *testing.T) {
	resetFlags(t)
	tracePath = validCapture(t)

	out, err := capture(t, runHumanReadable)
	if err != nil {
		t.Fatalf("human-readable failed: %v", err)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "sched_wakeup: cpu=0 pid=5 ts=100") {
		t.Errorf("line 0 = %q", lines[0])
	}
}

func TestCheckHeaderSuccessWritesEmptyArtifact(t *testing.T) {
	resetFlags(t)
	tracePath = validCapture(t)
	errorsJSON = filepath.Join(t.TempDir(), "errors.json")

	out, err := capture(t, runCheckHeader)
	if err != nil {
		t.Fatalf("check-header failed on a valid trace: %v", err)
	}
	if !strings.Contains(out, "header ok") {
		t.Errorf("check output = %q", out)
	}
	if got := readArtifact(t, errorsJSON); len(got) != 0 {
		t.Errorf("artifact errors = %v, want empty", got)
	}
}

func TestCheckHeaderCorruptedFails(t *testing.T) {
	resetFlags(t)

	b := tracetest.NewBuilder()
	b.AddEventDesc(1, "dup")
	b.AddEventDesc(1, "dup") // duplicated id and name
	tracePath = b.WriteFile(t)
	errorsJSON = filepath.Join(t.TempDir(), "errors.json")

	_, err := capture(t, runCheckHeader)
	if !errors.Is(err, errErrorsHappened) {
		t.Fatalf("err = %v, want uniform failure", err)
	}
	got := readArtifact(t, errorsJSON)
	if len(got) == 0 {
		t.Fatal("artifact has no entries for a corrupted header")
	}
	found := false
	for _, msg := range got {
		if strings.Contains(msg, "declared twice") {
			found = true
		}
	}
	if !found {
		t.Errorf("no artifact entry describes the duplicate: %v", got)
	}
}

func TestMetadataIdempotent(t *testing.T) {
	resetFlags(t)
	tracePath = validCapture(t)

	first, err := capture(t, runMetadata)
	if err != nil {
		t.Fatal(err)
	}
	second, err := capture(t, runMetadata)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("metadata output differs between identical runs")
	}
	if !strings.Contains(first, "clock: mono") {
		t.Errorf("metadata output = %q", first)
	}
}

func TestParquetMalformedEventsReported(t *testing.T) {
	resetFlags(t)

	b := tracetest.NewBuilder()
	b.AddEventDesc(1, "tick", trace.FieldDesc{Name: "seq", Kind: trace.FieldU32})
	b.AddRecord(1, 0, 1, 100, uint64(0))
	b.AddRawRecord(50, 0, 1, 110, nil) // malformed: unknown id
	b.AddRawRecord(51, 0, 1, 115, nil) // malformed: unknown id
	b.AddRecord(1, 0, 1, 120, uint64(1))
	tracePath = b.WriteFile(t)
	errorsJSON = filepath.Join(t.TempDir(), "errors.json")

	out, err := capture(t, runParquet)
	if !errors.Is(err, errErrorsHappened) {
		t.Fatalf("err = %v, want uniform failure", err)
	}
	if got := readArtifact(t, errorsJSON); len(got) < 2 {
		t.Errorf("artifact has %d entries, want >= 2: %v", len(got), got)
	}
	// Best-effort output was still flushed: the archive is non-empty and
	// starts with the Parquet magic.
	if !strings.HasPrefix(out, "PAR1") {
		t.Errorf("stdout does not hold a parquet file (%d bytes)", len(out))
	}
}

func TestParquetRejectsBadFlags(t *testing.T) {
	resetFlags(t)
	tracePath = validCapture(t)

	compressionFlag = "brotli"
	if _, err := capture(t, runParquet); err == nil || errors.Is(err, errErrorsHappened) {
		t.Errorf("invalid compression: err = %v, want a validation error before the pipeline", err)
	}

	resetFlags(t)
	tracePath = validCapture(t)
	chunkSize = -1
	if _, err := capture(t, runParquet); err == nil || errors.Is(err, errErrorsHappened) {
		t.Errorf("invalid chunk size: err = %v, want a validation error before the pipeline", err)
	}
}

func TestFlushFailureRecordedAfterPipelineFailure(t *testing.T) {
	resetFlags(t)

	b := tracetest.NewBuilder()
	b.AddEventDesc(1, "dup")
	b.AddEventDesc(1, "dup")
	tracePath = b.WriteFile(t)
	errorsJSON = filepath.Join(t.TempDir(), "errors.json")

	f, err := os.CreateTemp(t.TempDir(), "stdout-*")
	if err != nil {
		t.Fatal(err)
	}
	f.Close() // buffered writes only hit the fd at flush time
	old := os.Stdout
	os.Stdout = f
	runErr := runCheckHeader(nil, nil)
	os.Stdout = old

	if !errors.Is(runErr, errErrorsHappened) {
		t.Fatalf("err = %v, want uniform failure", runErr)
	}
	got := readArtifact(t, errorsJSON)
	found := false
	for _, msg := range got {
		if strings.Contains(msg, "flushing output") {
			found = true
		}
	}
	if !found {
		t.Errorf("no artifact entry records the flush failure: %v", got)
	}
}

func TestAcquisitionFailureSkipsArtifact(t *testing.T) {
	resetFlags(t)
	tracePath = filepath.Join(t.TempDir(), "missing.ktrc")
	errorsJSON = filepath.Join(t.TempDir(), "errors.json")

	_, err := capture(t, runMetadata)
	if err == nil {
		t.Fatal("expected failure")
	}
	if errors.Is(err, errErrorsHappened) {
		t.Error("acquisition failure should propagate directly, not as a pipeline result")
	}
	if _, serr := os.Stat(errorsJSON); !os.IsNotExist(serr) {
		t.Error("artifact written for an acquisition failure")
	}
}
