// Package writer provides Arrow/Parquet output for trace events.
package writer

import (
	"fmt"
)

// DefaultChunkSize is the default number of rows per Parquet record batch.
// Measured as the knee of the write/read throughput curve: chunks much
// smaller than this degrade both the export and downstream consumers.
const DefaultChunkSize = 64 * 1024

// CompressionType selects the per-chunk Parquet compression codec.
type CompressionType uint8

const (
	CompressionNone CompressionType = iota
	CompressionLZ4
	CompressionSnappy
	CompressionZstd
)

// String returns the codec name as accepted on the command line.
func (c CompressionType) String() string {
	switch c {
	case CompressionLZ4:
		return "lz4"
	case CompressionSnappy:
		return "snappy"
	case CompressionZstd:
		return "zstd"
	default:
		return "none"
	}
}

// ParseCompression maps a command-line codec name to a CompressionType.
func ParseCompression(s string) (CompressionType, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "snappy":
		return CompressionSnappy, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression %q (want lz4, snappy, zstd or none)", s)
	}
}

// Config holds columnar writer configuration.
type Config struct {
	// ChunkSize is the number of rows per record batch / row group.
	// Chunk boundaries are governed by row count, not byte size.
	ChunkSize int

	// Compression applied per chunk.
	Compression CompressionType

	// Progress, when set, is called with the running row count after each
	// appended row. Used for terminal progress display.
	Progress func(rows int64)
}
