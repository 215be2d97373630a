package trace_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/tracedump/tracedump/internal/tracetest"
	tderrors "github.com/tracedump/tracedump/pkg/errors"
	"github.com/tracedump/tracedump/pkg/trace"
)

func schedBuilder() *tracetest.Builder {
	b := tracetest.NewBuilder()
	b.CPUCount = 4
	b.Meta = []trace.MetaEntry{
		{Key: "hostname", Value: "bench-03"},
		{Key: "kernel", Value: "6.8.0"},
	}
	b.AddEventDesc(1, "sched_switch",
		trace.FieldDesc{Name: "prev_pid", Kind: trace.FieldU32},
		trace.FieldDesc{Name: "next_pid", Kind: trace.FieldU32},
		trace.FieldDesc{Name: "next_comm", Kind: trace.FieldString},
	)
	b.AddEventDesc(2, "sched_wakeup",
		trace.FieldDesc{Name: "pid", Kind: trace.FieldU32},
	)
	return b
}

func TestParseHeaderRoundTrip(t *testing.T) {
	b := schedBuilder()
	b.AddRecord(1, 0, 10, 1000, uint64(10), uint64(20), "kworker")

	h, err := trace.ParseHeader(b.Bytes())
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}

	if h.Version != trace.Version {
		t.Errorf("Version = %d", h.Version)
	}
	if h.BigEndian {
		t.Error("builder writes little-endian")
	}
	if h.CPUCount != 4 {
		t.Errorf("CPUCount = %d, want 4", h.CPUCount)
	}
	if h.Clock != "mono" {
		t.Errorf("Clock = %q", h.Clock)
	}
	if len(h.Events) != 2 {
		t.Fatalf("got %d event descriptors, want 2", len(h.Events))
	}
	if d, ok := h.EventByID(1); !ok || d.Name != "sched_switch" || len(d.Fields) != 3 {
		t.Errorf("EventByID(1) = %+v, %v", d, ok)
	}
	if len(h.Meta) != 2 || h.Meta[0].Key != "hostname" || h.Meta[1].Key != "kernel" {
		t.Errorf("Meta = %+v, want file order preserved", h.Meta)
	}
	if h.DeclaredEvents != 1 {
		t.Errorf("DeclaredEvents = %d, want 1", h.DeclaredEvents)
	}
}

func TestParseHeaderBadMagic(t *testing.T) {
	data := schedBuilder().Bytes()
	data[0] = 'X'

	_, err := trace.ParseHeader(data)
	if err == nil {
		t.Fatal("expected error")
	}
	if tderrors.CodeOf(err) != tderrors.CodeBadMagic {
		t.Errorf("code = %s, want %s", tderrors.CodeOf(err), tderrors.CodeBadMagic)
	}
}

func TestParseHeaderBadVersion(t *testing.T) {
	b := schedBuilder()
	b.Version = 99

	_, err := trace.ParseHeader(b.Bytes())
	if tderrors.CodeOf(err) != tderrors.CodeBadVersion {
		t.Errorf("code = %s, want %s (err: %v)", tderrors.CodeOf(err), tderrors.CodeBadVersion, err)
	}
}

func TestParseHeaderTruncated(t *testing.T) {
	data := schedBuilder().Bytes()
	for _, n := range []int{5, 10, len(data) / 2} {
		if _, err := trace.ParseHeader(data[:n]); err == nil {
			t.Errorf("ParseHeader on %d bytes succeeded", n)
		}
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := trace.Open("/does/not/exist.ktrc")
	if err == nil {
		t.Fatal("expected error")
	}
	if tderrors.CodeOf(err) != tderrors.CodeFileNotFound {
		t.Errorf("code = %s, want %s", tderrors.CodeOf(err), tderrors.CodeFileNotFound)
	}
}

func TestOpenAndClose(t *testing.T) {
	b := schedBuilder()
	b.AddRecord(2, 1, 77, 500, uint64(77))
	path := b.WriteFile(t)

	src, err := trace.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if src.Header == nil || src.Header.Clock != "mono" {
		t.Errorf("unexpected header: %+v", src.Header)
	}
	if src.Size() != int64(len(b.Bytes())) {
		t.Errorf("Size = %d, want %d", src.Size(), len(b.Bytes()))
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	// Close is idempotent.
	if err := src.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestWriteMetadataIdempotent(t *testing.T) {
	h, err := trace.ParseHeader(schedBuilder().Bytes())
	if err != nil {
		t.Fatal(err)
	}

	var first, second bytes.Buffer
	if err := h.WriteMetadata(&first); err != nil {
		t.Fatal(err)
	}
	if err := h.WriteMetadata(&second); err != nil {
		t.Fatal(err)
	}
	if first.String() != second.String() {
		t.Error("metadata output differs between runs")
	}

	out := first.String()
	for _, want := range []string{"clock: mono", "cpus: 4", "hostname: bench-03", "kernel: 6.8.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("metadata output missing %q:\n%s", want, out)
		}
	}
	// File order of metadata entries is preserved.
	if strings.Index(out, "hostname") > strings.Index(out, "kernel") {
		t.Error("metadata entries reordered")
	}
}

func TestWriteMetadataPropagatesWriteErrors(t *testing.T) {
	h, err := trace.ParseHeader(schedBuilder().Bytes())
	if err != nil {
		t.Fatal(err)
	}
	werr := h.WriteMetadata(failingWriter{})
	if werr == nil {
		t.Fatal("expected error")
	}
	if tderrors.CodeOf(werr) != tderrors.CodeWriteFailed {
		t.Errorf("code = %s, want %s", tderrors.CodeOf(werr), tderrors.CodeWriteFailed)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("sink closed") }
