// tracedump - converts raw binary trace captures into derived
// representations: a human-readable dump, a Parquet archive, a
// header-validity report, or the raw header metadata.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// CLI flags
var (
	errorsJSON string
	verbose    bool

	// Shared by every subcommand
	tracePath string

	// human-readable flags
	rawMode bool

	// parquet flags
	eventNames       []string
	uniqueTimestamps bool
	compressionFlag  string
	chunkSize        int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tracedump",
	Short: "tracedump - Convert binary trace captures",
	Long: `tracedump converts a raw, memory-mapped trace capture into one of several
derived representations: a human-readable dump, a Parquet archive, a
header-validity report, or the raw header metadata.

All output goes to stdout; diagnostics go to stderr. With --errors-json,
the full list of errors observed during the run is written as JSON,
whether or not the run succeeded.`,
	Version:       fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var humanReadableCmd = &cobra.Command{
	Use:   "human-readable",
	Short: "Dump every event as text",
	Long: `Stream every event of the capture to stdout as one text line per event.

Examples:
  tracedump human-readable --trace trace.ktrc
  tracedump human-readable --trace trace.ktrc --raw`,
	RunE: runHumanReadable,
}

var parquetCmd = &cobra.Command{
	Use:   "parquet",
	Short: "Export events as a Parquet archive",
	Long: `Stream events into a Parquet file on stdout, batched into fixed-size
row chunks with a selectable per-chunk compression codec.

Examples:
  tracedump parquet --trace trace.ktrc > trace.parquet
  tracedump parquet --trace trace.ktrc --events sched_switch --events sched_wakeup
  tracedump parquet --trace trace.ktrc --unique-timestamps --compression zstd`,
	RunE: runParquet,
}

var checkHeaderCmd = &cobra.Command{
	Use:   "check-header",
	Short: "Check the capture header for consistency",
	RunE:  runCheckHeader,
}

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Dump the capture header metadata",
	RunE:  runMetadata,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&errorsJSON, "errors-json", "", "Write the full error list as JSON to this path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	for _, cmd := range []*cobra.Command{humanReadableCmd, parquetCmd, checkHeaderCmd, metadataCmd} {
		cmd.Flags().StringVar(&tracePath, "trace", "", "Path to the trace capture (required)")
		cmd.MarkFlagRequired("trace")
	}

	humanReadableCmd.Flags().BoolVar(&rawMode, "raw", false, "Render undecoded payload bytes instead of fields")

	parquetCmd.Flags().StringArrayVar(&eventNames, "events", nil, "Only export these event names (repeatable; default: all)")
	parquetCmd.Flags().BoolVar(&uniqueTimestamps, "unique-timestamps", false, "Rewrite timestamps to be strictly increasing")
	parquetCmd.Flags().StringVar(&compressionFlag, "compression", "", "Chunk compression (lz4, snappy, zstd; default: none)")
	parquetCmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Rows per chunk (default 65536)")

	rootCmd.AddCommand(humanReadableCmd)
	rootCmd.AddCommand(parquetCmd)
	rootCmd.AddCommand(checkHeaderCmd)
	rootCmd.AddCommand(metadataCmd)
}
