package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/bannerscan/internal/batch"
	"github.com/MeKo-Tech/bannerscan/internal/capability"
	"github.com/MeKo-Tech/bannerscan/internal/detection"
	"github.com/MeKo-Tech/bannerscan/internal/grouping"
	"github.com/MeKo-Tech/bannerscan/internal/onnx"
	"github.com/MeKo-Tech/bannerscan/internal/pipeline"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Input: InputConfig{
			Recursive: false,
			Include:   []string{},
			Exclude:   []string{},
		},
		Inference: InferenceConfig{
			MaxSide:   pipeline.DefaultMaxSide,
			TextSpace: string(pipeline.TextSpaceOriginal),
		},
		Thresholds: ThresholdConfig{
			Person:       pipeline.DefaultPersonThreshold,
			TextFragment: pipeline.DefaultTextThreshold,
			Banner:       0,
		},
		Grouping: GroupingConfig{
			MinFragmentArea: grouping.DefaultMinArea,
			RowTolerance:    grouping.DefaultRowTolerance,
			GapTolerance:    grouping.DefaultGapTolerance,
		},
		Detectors: DetectorsConfig{
			TimeoutSec:    int(pipeline.DefaultDetectorTimeout / time.Second),
			SidecarSuffix: capability.DefaultSidecarSuffix,
			Person: PersonDetectorConfig{
				Backend:      capability.BackendSidecar,
				InputSize:    capability.DefaultYOLOInputSize,
				IoUThreshold: capability.DefaultIoUThreshold,
				NumThreads:   0,
				GPU: GPUConfig{
					Enabled:     false,
					Device:      0,
					MemoryLimit: "auto",
				},
			},
			Text: TextDetectorConfig{
				Backend:  capability.BackendSidecar,
				Language: capability.DefaultTesseractLanguage,
			},
		},
		Output: OutputConfig{
			Dir:      "results",
			Combined: true,
			Format:   batch.FormatText,
		},
		Batch: BatchConfig{
			Workers:  4,
			Progress: true,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			InputRoot:       ".",
		},
	}
}

// Validate validates the configuration and returns any errors. Bad thresholds
// yield *detection.InvalidThresholdError and a negative inference size yields
// *detection.InvalidScaleError.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Output.Format != "" && !slices.Contains(batch.Formats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(batch.Formats, ", "))
	}

	if err := c.ToPipelineConfig().Validate(); err != nil {
		return err
	}

	if err := validateThreshold(c.Detectors.Person.IoUThreshold, "detectors.person.iou_threshold"); err != nil {
		return err
	}
	if !slices.Contains(capability.PersonBackends, c.Detectors.Person.Backend) {
		return fmt.Errorf("invalid person detector backend: %s (must be one of: %s)",
			c.Detectors.Person.Backend, strings.Join(capability.PersonBackends, ", "))
	}
	if !slices.Contains(capability.TextBackends, c.Detectors.Text.Backend) {
		return fmt.Errorf("invalid text detector backend: %s (must be one of: %s)",
			c.Detectors.Text.Backend, strings.Join(capability.TextBackends, ", "))
	}
	if c.Detectors.Person.Backend == capability.BackendONNX && c.Detectors.Person.ModelPath == "" {
		return fmt.Errorf("detectors.person.model_path is required for the %s backend", capability.BackendONNX)
	}
	if c.Detectors.TimeoutSec < 0 {
		return fmt.Errorf("invalid detector timeout: %d (must not be negative)", c.Detectors.TimeoutSec)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Batch.Workers < 0 {
		return fmt.Errorf("invalid batch workers: %d (must not be negative)", c.Batch.Workers)
	}

	if _, err := parseMemoryLimit(c.Detectors.Person.GPU.MemoryLimit); err != nil {
		return fmt.Errorf("invalid GPU memory limit: %w", err)
	}

	return nil
}

// ToPipelineConfig converts the config to the per-image processing configuration.
func (c *Config) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		MaxSide:   c.Inference.MaxSide,
		TextSpace: pipeline.TextSpace(c.Inference.TextSpace),
		Thresholds: detection.Thresholds{
			detection.CategoryPerson:       c.Thresholds.Person,
			detection.CategoryTextFragment: c.Thresholds.TextFragment,
			detection.CategoryBanner:       c.Thresholds.Banner,
		},
		Grouper: grouping.Grouper{
			MinArea:      c.Grouping.MinFragmentArea,
			RowTolerance: c.Grouping.RowTolerance,
			GapTolerance: c.Grouping.GapTolerance,
		},
		DetectorTimeout: time.Duration(c.Detectors.TimeoutSec) * time.Second,
	}
}

// ToCapabilityOptions converts the detector section to backend options.
func (c *Config) ToCapabilityOptions() capability.Options {
	p := c.Detectors.Person
	memLimit, _ := parseMemoryLimit(p.GPU.MemoryLimit)
	return capability.Options{
		PersonBackend: p.Backend,
		TextBackend:   c.Detectors.Text.Backend,
		SidecarSuffix: c.Detectors.SidecarSuffix,
		YOLO: capability.YOLOConfig{
			ModelPath:    p.ModelPath,
			InputSize:    p.InputSize,
			IoUThreshold: p.IoUThreshold,
			NumThreads:   p.NumThreads,
			GPU: onnx.GPUConfig{
				Enabled:  p.GPU.Enabled,
				DeviceID: p.GPU.Device,
				MemLimit: memLimit,
			},
		},
		Tesseract: capability.TesseractConfig{
			Language: c.Detectors.Text.Language,
			DataPath: c.Detectors.Text.DataPath,
			Clients:  c.Batch.Workers,
		},
	}
}

// ToBatchConfig converts the config to a batch run configuration.
func (c *Config) ToBatchConfig() *batch.Config {
	return &batch.Config{
		Pipeline:         c.ToPipelineConfig(),
		Detectors:        c.ToCapabilityOptions(),
		OutputDir:        c.Output.Dir,
		WriteCombined:    c.Output.Combined,
		Format:           c.Output.Format,
		OutputFile:       c.Output.File,
		Workers:          c.Batch.Workers,
		Recursive:        c.Input.Recursive,
		IncludePatterns:  slices.Clone(c.Input.Include),
		ExcludePatterns:  slices.Clone(c.Input.Exclude),
		ShowProgress:     c.Batch.Progress,
		ProgressInterval: 100 * time.Millisecond,
	}
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	return detection.ValidateThreshold(name, value)
}

// parseMemoryLimit parses a memory limit string (e.g., "1GB", "512MB") into
// bytes. "auto" and "" mean no limit.
func parseMemoryLimit(limit string) (uint64, error) {
	limit = strings.TrimSpace(strings.ToUpper(limit))
	if limit == "" || limit == "AUTO" {
		return 0, nil
	}

	// Longest suffix first so "MB" is not read as "B".
	units := []struct {
		suffix string
		mult   uint64
	}{
		{"TB", 1 << 40},
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}
	for _, u := range units {
		if numStr, ok := strings.CutSuffix(limit, u.suffix); ok {
			num, err := strconv.ParseFloat(strings.TrimSpace(numStr), 64)
			if err != nil || num < 0 {
				return 0, fmt.Errorf("invalid number in memory limit: %s", limit)
			}
			return uint64(num * float64(u.mult)), nil
		}
	}
	return 0, fmt.Errorf("memory limit must end with one of: B, KB, MB, GB, TB")
}
