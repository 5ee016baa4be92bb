package batch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/MeKo-Tech/bannerscan/internal/capability"
	"github.com/MeKo-Tech/bannerscan/internal/pipeline"
	"github.com/MeKo-Tech/bannerscan/internal/store"
)

// Output formats accepted by FormatResults.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
)

// Formats lists the valid output formats.
var Formats = []string{FormatText, FormatJSON, FormatYAML, FormatCSV}

// Config holds all configuration for a batch run.
type Config struct {
	// Per-image processing
	Pipeline  pipeline.Config
	Detectors capability.Options

	// Output settings
	OutputDir     string
	WriteCombined bool
	Format        string
	OutputFile    string

	// Parallel processing settings
	Workers int

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ProgressInterval time.Duration
	ProgressWriter   io.Writer
	// Progress receives notifications in addition to the console bar.
	Progress pipeline.ProgressCallback
}

// DefaultConfig returns a configuration reading detections from sidecar files
// and writing records to ./results.
func DefaultConfig() *Config {
	return &Config{
		Pipeline: pipeline.DefaultConfig(),
		Detectors: capability.Options{
			PersonBackend: capability.BackendSidecar,
			TextBackend:   capability.BackendSidecar,
			SidecarSuffix: capability.DefaultSidecarSuffix,
		},
		OutputDir:        "results",
		WriteCombined:    true,
		Format:           FormatText,
		ShowProgress:     true,
		ProgressInterval: 100 * time.Millisecond,
	}
}

// Validate checks the configuration before any image is touched. Threshold
// and scale problems keep their typed errors from the detection package.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("batch config is nil")
	}
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	if c.OutputDir == "" {
		return errors.New("output directory is required")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.Format != "" && !slices.Contains(Formats, c.Format) {
		return fmt.Errorf("unknown output format %q (valid: %v)", c.Format, Formats)
	}
	return nil
}

func (c *Config) progressWriter() io.Writer {
	if c.ProgressWriter != nil {
		return c.ProgressWriter
	}
	return os.Stderr
}

func (c *Config) storeOptions() store.Options {
	return store.Options{WriteCombined: c.WriteCombined}
}
