// Package config provides hierarchical configuration for tracedump.
// Priority: defaults < user < project < env < flags.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	tderrors "github.com/tracedump/tracedump/pkg/errors"
)

// Config holds tracedump defaults that flags may override.
type Config struct {
	Version int          `yaml:"version"`
	Export  ExportConfig `yaml:"export"`
	Output  OutputConfig `yaml:"output"`
}

// ExportConfig controls parquet export defaults.
type ExportConfig struct {
	Compression string `yaml:"compression"` // lz4 | snappy | zstd | none
	ChunkSize   int    `yaml:"chunk_size"`  // rows per chunk
}

// OutputConfig controls the shared output stream.
type OutputConfig struct {
	BufferSize int `yaml:"buffer_size"` // bytes
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Version: 1,
		Export: ExportConfig{
			Compression: "none",
			ChunkSize:   64 * 1024,
		},
		Output: OutputConfig{
			BufferSize: 1024 * 1024,
		},
	}
}

// Load builds the effective configuration: defaults, then the user file
// (~/.tracedump/config.yaml), then the project file (.tracedump.yaml), then
// TRACEDUMP_* environment variables. Missing files are not errors; a file
// that exists but does not parse is.
func Load() (*Config, error) {
	cfg := Default()

	if home, err := os.UserHomeDir(); err == nil {
		if err := cfg.mergeFile(filepath.Join(home, ".tracedump", "config.yaml")); err != nil {
			return nil, err
		}
	}
	if err := cfg.mergeFile(".tracedump.yaml"); err != nil {
		return nil, err
	}
	cfg.mergeEnv()

	if cfg.Export.ChunkSize < 1 {
		return nil, tderrors.Newf(tderrors.CodeBadFlag, "configured chunk size %d, want >= 1", cfg.Export.ChunkSize)
	}
	if cfg.Output.BufferSize < 1 {
		return nil, tderrors.Newf(tderrors.CodeBadFlag, "configured buffer size %d, want >= 1", cfg.Output.BufferSize)
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return tderrors.Wrap(err, tderrors.CodeOpenFailed, "reading config").WithContext("path", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return tderrors.Wrap(err, tderrors.CodeBadFlag, "parsing config").WithContext("path", path)
	}
	return nil
}

func (c *Config) mergeEnv() {
	if v := os.Getenv("TRACEDUMP_COMPRESSION"); v != "" {
		c.Export.Compression = v
	}
	if v := os.Getenv("TRACEDUMP_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Export.ChunkSize = n
		}
	}
	if v := os.Getenv("TRACEDUMP_BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Output.BufferSize = n
		}
	}
}
