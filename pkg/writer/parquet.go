package writer

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/tracedump/tracedump/internal/model"
)

// ParquetWriter writes trace events to Parquet using Apache Arrow, batching
// rows into fixed-size chunks.
type ParquetWriter struct {
	cfg    Config
	schema *arrow.Schema
	writer *pqarrow.FileWriter

	timestampBuilder *array.Int64Builder
	cpuBuilder       *array.Int32Builder
	pidBuilder       *array.Int32Builder
	eventBuilder     *array.StringBuilder
	fieldsBuilder    *array.StringBuilder

	rowCount  int
	totalRows int64
	closed    bool
}

// eventSchema returns the Arrow schema for exported trace events.
func eventSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "timestamp", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "cpu", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
		{Name: "pid", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
		{Name: "event", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "fields", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)
}

// NewParquetWriter creates a Parquet writer over output.
func NewParquetWriter(output io.Writer, cfg Config) (*ParquetWriter, error) {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}

	var codec compress.Compression
	switch cfg.Compression {
	case CompressionLZ4:
		codec = compress.Codecs.Lz4
	case CompressionSnappy:
		codec = compress.Codecs.Snappy
	case CompressionZstd:
		codec = compress.Codecs.Zstd
	default:
		codec = compress.Codecs.Uncompressed
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithDictionaryDefault(true),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithStoreSchema(),
	)

	schema := eventSchema()
	fw, err := pqarrow.NewFileWriter(schema, output, writerProps, arrowProps)
	if err != nil {
		return nil, fmt.Errorf("creating parquet writer: %w", err)
	}

	allocator := memory.NewGoAllocator()
	pw := &ParquetWriter{
		cfg:              cfg,
		schema:           schema,
		writer:           fw,
		timestampBuilder: array.NewInt64Builder(allocator),
		cpuBuilder:       array.NewInt32Builder(allocator),
		pidBuilder:       array.NewInt32Builder(allocator),
		eventBuilder:     array.NewStringBuilder(allocator),
		fieldsBuilder:    array.NewStringBuilder(allocator),
	}

	pw.timestampBuilder.Reserve(cfg.ChunkSize)
	pw.cpuBuilder.Reserve(cfg.ChunkSize)
	pw.pidBuilder.Reserve(cfg.ChunkSize)
	pw.eventBuilder.Reserve(cfg.ChunkSize)
	pw.fieldsBuilder.Reserve(cfg.ChunkSize)
	return pw, nil
}

// Append adds one event row with an already-transformed timestamp, flushing
// a chunk when ChunkSize rows have accumulated.
func (w *ParquetWriter) Append(ev *model.Event, ts uint64) error {
	// The column is int64; clamp so a pathological timestamp cannot show up
	// as a negative value.
	if ts > math.MaxInt64 {
		ts = math.MaxInt64
	}
	w.timestampBuilder.Append(int64(ts))
	w.cpuBuilder.Append(int32(ev.CPU))
	w.pidBuilder.Append(int32(ev.PID))
	w.eventBuilder.Append(ev.Name)

	if len(ev.Fields) == 0 {
		w.fieldsBuilder.AppendNull()
	} else {
		w.fieldsBuilder.Append(renderFields(ev.Fields))
	}

	w.rowCount++
	if w.cfg.Progress != nil {
		w.cfg.Progress(w.totalRows + int64(w.rowCount))
	}
	if w.rowCount >= w.cfg.ChunkSize {
		return w.flushChunk()
	}
	return nil
}

func renderFields(fields []model.Field) string {
	var sb strings.Builder
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(f.Name)
		sb.WriteByte('=')
		sb.WriteString(f.Value.String())
	}
	return sb.String()
}

// flushChunk writes the accumulated rows as one record batch.
func (w *ParquetWriter) flushChunk() error {
	if w.rowCount == 0 {
		return nil
	}

	timestampArray := w.timestampBuilder.NewArray()
	cpuArray := w.cpuBuilder.NewArray()
	pidArray := w.pidBuilder.NewArray()
	eventArray := w.eventBuilder.NewArray()
	fieldsArray := w.fieldsBuilder.NewArray()

	defer timestampArray.Release()
	defer cpuArray.Release()
	defer pidArray.Release()
	defer eventArray.Release()
	defer fieldsArray.Release()

	batch := array.NewRecord(w.schema, []arrow.Array{
		timestampArray,
		cpuArray,
		pidArray,
		eventArray,
		fieldsArray,
	}, int64(w.rowCount))
	defer batch.Release()

	if err := w.writer.Write(batch); err != nil {
		return fmt.Errorf("writing record batch: %w", err)
	}

	w.totalRows += int64(w.rowCount)
	w.rowCount = 0
	return nil
}

// Close flushes the last partial chunk and finalizes the Parquet footer.
func (w *ParquetWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.flushChunk(); err != nil {
		return err
	}
	if err := w.writer.Close(); err != nil {
		return fmt.Errorf("closing parquet writer: %w", err)
	}

	w.timestampBuilder.Release()
	w.cpuBuilder.Release()
	w.pidBuilder.Release()
	w.eventBuilder.Release()
	w.fieldsBuilder.Release()
	return nil
}

// RowsWritten returns the number of rows flushed so far plus pending rows.
func (w *ParquetWriter) RowsWritten() int64 {
	return w.totalRows + int64(w.rowCount)
}
