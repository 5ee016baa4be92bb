package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/bannerscan/internal/batch"
	"github.com/MeKo-Tech/bannerscan/internal/capability"
	"github.com/MeKo-Tech/bannerscan/internal/config"
)

// detectCmd processes images and maintains the result directory.
var detectCmd = &cobra.Command{
	Use:   "detect [files or directories...]",
	Short: "Detect people and banners in images and write per-image records",
	Long: `Process image files in parallel. For every image a JSON record with the
detected people and banners is written to the output directory; a failed
image gets a record with status "failed". When all images are done,
summary.json is rebuilt from every record in the directory.

Interrupting the run (Ctrl+C) keeps the records already written and skips
the summary rebuild; run "bannerscan summary" afterwards.

Supported formats: JPEG, PNG, BMP, TIFF, WebP

Examples:
  bannerscan detect photos/
  bannerscan detect photos/ --recursive --include "*.jpg" --workers 8
  bannerscan detect a.jpg b.png --out-dir results --format json
  bannerscan detect photos/ --person-backend onnx --model models/yolov8n.onnx`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDetectCommand,
}

// applyPipelineFlags writes explicitly set flags over the loaded configuration.
func applyPipelineFlags(cfg *config.Config, cmd *cobra.Command) {
	overrideString(cmd, "out-dir", &cfg.Output.Dir)
	overrideBool(cmd, "combined", &cfg.Output.Combined)
	overrideInt(cmd, "workers", &cfg.Batch.Workers)

	overrideBool(cmd, "recursive", &cfg.Input.Recursive)
	overrideStrings(cmd, "include", &cfg.Input.Include)
	overrideStrings(cmd, "exclude", &cfg.Input.Exclude)

	overrideFloat(cmd, "person-threshold", &cfg.Thresholds.Person)
	overrideFloat(cmd, "text-threshold", &cfg.Thresholds.TextFragment)
	overrideFloat(cmd, "banner-threshold", &cfg.Thresholds.Banner)

	overrideInt(cmd, "max-side", &cfg.Inference.MaxSide)
	overrideString(cmd, "text-space", &cfg.Inference.TextSpace)
	overrideInt(cmd, "min-fragment-area", &cfg.Grouping.MinFragmentArea)

	overrideString(cmd, "person-backend", &cfg.Detectors.Person.Backend)
	overrideString(cmd, "text-backend", &cfg.Detectors.Text.Backend)
	overrideString(cmd, "model", &cfg.Detectors.Person.ModelPath)
	overrideBool(cmd, "gpu", &cfg.Detectors.Person.GPU.Enabled)
	overrideString(cmd, "language", &cfg.Detectors.Text.Language)
	overrideInt(cmd, "timeout", &cfg.Detectors.TimeoutSec)
}

// addPipelineFlags registers the flags read by applyPipelineFlags.
func addPipelineFlags(cmd *cobra.Command) {
	d := config.DefaultConfig()
	f := cmd.Flags()

	f.StringP("out-dir", "d", d.Output.Dir, "directory for per-image records and summary.json")
	f.Bool("combined", d.Output.Combined, "also write combined_results.json")
	f.IntP("workers", "w", d.Batch.Workers, "number of parallel workers (0 = number of CPUs)")

	// Discovery
	f.BoolP("recursive", "r", d.Input.Recursive, "descend into subdirectories")
	f.StringSlice("include", nil, "glob patterns of files to include (e.g. *.jpg)")
	f.StringSlice("exclude", nil, "glob patterns of files to exclude")

	// Filtering and grouping
	f.Float64("person-threshold", d.Thresholds.Person, "minimum person confidence (0..1)")
	f.Float64("text-threshold", d.Thresholds.TextFragment, "minimum text fragment confidence (0..1)")
	f.Float64("banner-threshold", d.Thresholds.Banner, "minimum banner confidence after grouping (0..1)")
	f.Int("max-side", d.Inference.MaxSide, "downscale images whose longest side exceeds this before inference (0 = never)")
	f.String("text-space", d.Inference.TextSpace, "coordinate space of text boxes: original or inference")
	f.Int("min-fragment-area", d.Grouping.MinFragmentArea, "drop text fragments smaller than this area in pixels")

	// Detectors
	f.String("person-backend", d.Detectors.Person.Backend,
		"person detector: "+strings.Join(capability.PersonBackends, ", "))
	f.String("text-backend", d.Detectors.Text.Backend,
		"text recognizer: "+strings.Join(capability.TextBackends, ", "))
	f.String("model", "", "ONNX person detection model path")
	f.Bool("gpu", false, "run the ONNX person detector on CUDA")
	f.String("language", d.Detectors.Text.Language, "Tesseract language")
	f.Int("timeout", d.Detectors.TimeoutSec, "per-detector timeout in seconds (0 = none)")
}

func runDetectCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	applyPipelineFlags(cfg, cmd)
	overrideString(cmd, "format", &cfg.Output.Format)
	overrideString(cmd, "output", &cfg.Output.File)
	overrideBool(cmd, "progress", &cfg.Batch.Progress)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	bc := cfg.ToBatchConfig()
	bc.Quiet, _ = cmd.Flags().GetBool("quiet")
	bc.ProgressWriter = cmd.ErrOrStderr()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	if !bc.Quiet {
		_, _ = fmt.Fprintf(out, "Processing %s into %s...\n", strings.Join(args, ", "), bc.OutputDir)
	}

	result, err := batch.ProcessBatch(ctx, args, bc)
	if err != nil {
		if result != nil && errors.Is(err, context.Canceled) {
			result.PrintStats(out, bc.Quiet)
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(),
				"Run interrupted; records kept in %s. Run \"bannerscan summary %s\" to rebuild the summary.\n",
				bc.OutputDir, bc.OutputDir)
		}
		return fmt.Errorf("detection failed: %w", err)
	}

	if err := result.SaveResults(out, bc.Format, bc.OutputFile, bc.Quiet); err != nil {
		return err
	}
	result.PrintStats(out, bc.Quiet)
	return nil
}

func init() {
	rootCmd.AddCommand(detectCmd)
	addPipelineFlags(detectCmd)

	d := config.DefaultConfig()
	f := detectCmd.Flags()
	f.StringP("format", "f", d.Output.Format, "report format: "+strings.Join(batch.Formats, ", "))
	f.StringP("output", "o", "", "write the report to a file instead of stdout")
	f.Bool("progress", d.Batch.Progress, "show a progress bar on stderr")
	f.BoolP("quiet", "q", false, "suppress the report, statistics and progress output")
}
