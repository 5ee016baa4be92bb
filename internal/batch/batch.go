// Package batch runs the detection pipeline over a set of image files and
// maintains the result directory.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/bannerscan/internal/capability"
	"github.com/MeKo-Tech/bannerscan/internal/pipeline"
	"github.com/MeKo-Tech/bannerscan/internal/store"
)

// ErrNoImages is returned when discovery finds nothing to process.
var ErrNoImages = errors.New("no image files found")

// ProcessBatch discovers the images under imagePaths, processes them on a
// worker pool, persists one record per image and rebuilds the summary.
//
// Configuration errors and key collisions are returned before any image is
// processed. When ctx is cancelled mid-run, the records already written stay
// on disk, the summary is not rebuilt, and the partial Result is returned
// together with the context error.
func ProcessBatch(ctx context.Context, imagePaths []string, config *Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	tasks, err := discoverImages(imagePaths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(tasks) == 0 {
		return nil, ErrNoImages
	}

	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	if err := store.CheckKeys(ids); err != nil {
		return nil, err
	}

	detectors, err := capability.Open(config.Detectors)
	if err != nil {
		return nil, fmt.Errorf("failed to open detectors: %w", err)
	}
	defer func() {
		if err := detectors.Close(); err != nil {
			slog.Error("error closing detectors", "error", err)
		}
	}()

	proc, err := pipeline.NewProcessor(config.Pipeline, detectors.People, detectors.Text)
	if err != nil {
		return nil, err
	}

	st, err := store.New(config.OutputDir, config.storeOptions())
	if err != nil {
		return nil, err
	}

	return run(ctx, tasks, proc, st, config)
}

func run(ctx context.Context, tasks []pipeline.Task, proc pipeline.ImageProcessor, st *store.Store, config *Config) (*Result, error) {
	progress := pipeline.NewMultiProgressCallback(config.Progress)
	if config.ShowProgress && !config.Quiet {
		progress.Add(pipeline.NewConsoleProgressCallback(config.progressWriter(), "Processing: ").
			WithUpdateInterval(config.ProgressInterval))
	}

	slog.Info("batch started", "images", len(tasks), "workers", config.Workers, "output", st.Dir())
	start := time.Now()
	outcomes, runErr := pipeline.RunPool(ctx, tasks, proc, st.WriteImageRecord, pipeline.PoolConfig{
		Workers:  config.Workers,
		Progress: progress,
	})

	result := &Result{
		Outcomes:    outcomes,
		Run:         pipeline.CalculateRunStats(outcomes),
		OutputDir:   st.Dir(),
		Duration:    time.Since(start),
		WorkerCount: config.Workers,
	}

	if runErr != nil {
		result.Cancelled = true
		slog.Warn("batch cancelled, summary not rebuilt",
			"processed", result.Run.Processed+result.Run.Failed,
			"skipped", result.Run.Skipped)
		return result, fmt.Errorf("batch interrupted: %w", runErr)
	}

	// The pool is drained; rebuild against a context that is not tied to
	// per-image work.
	summary, err := st.RebuildSummary(context.WithoutCancel(ctx))
	if err != nil {
		return result, fmt.Errorf("failed to rebuild summary: %w", err)
	}
	result.Summary = summary
	result.SummaryWritten = true

	slog.Info("batch completed",
		"processed", result.Run.Processed,
		"failed", result.Run.Failed,
		"unsaved", result.Run.Unsaved,
		"duration", result.Duration.Round(time.Millisecond))
	return result, nil
}

// RebuildSummary recomputes summary.json from the records already in dir.
func RebuildSummary(ctx context.Context, dir string, writeCombined bool) (store.Summary, error) {
	st, err := store.New(dir, store.Options{WriteCombined: writeCombined})
	if err != nil {
		return store.Summary{}, err
	}
	return st.RebuildSummary(ctx)
}

// Result holds the outcome of a batch run.
type Result struct {
	Outcomes  []pipeline.Outcome
	Run       pipeline.RunStats
	OutputDir string
	// Summary is only set when SummaryWritten is true.
	Summary        store.Summary
	SummaryWritten bool
	Cancelled      bool
	Duration       time.Duration
	WorkerCount    int
}

// FormatResults renders the result in one of Formats.
func (r *Result) FormatResults(format string) (string, error) {
	return formatResult(r, format)
}

// SaveResults writes the formatted result to outputFile, or to w when no file
// is given.
func (r *Result) SaveResults(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := writeOutputFile(outputFile, output); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
		}
		return nil
	}
	_, err = fmt.Fprint(w, output)
	return err
}

// PrintStats prints run statistics.
func (r *Result) PrintStats(w io.Writer, quiet bool) {
	if quiet {
		return
	}
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", r.Run.Total)
	_, _ = fmt.Fprintf(w, "  Processed: %d\n", r.Run.Processed)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", r.Run.Failed)
	if r.Run.Unsaved > 0 {
		_, _ = fmt.Fprintf(w, "  Unsaved: %d\n", r.Run.Unsaved)
	}
	if r.Run.Skipped > 0 {
		_, _ = fmt.Fprintf(w, "  Skipped (cancelled): %d\n", r.Run.Skipped)
	}
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", r.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	if done := r.Run.Total - r.Run.Skipped; done > 0 && r.Duration > 0 {
		_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", (r.Duration / time.Duration(done)).Round(time.Millisecond))
		_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", float64(done)/r.Duration.Seconds())
	}
}
