package pipeline

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/MeKo-Tech/bannerscan/internal/record"
)

// Sink persists a finished record. It is called concurrently from workers, each
// time with a different image.
type Sink func(ctx context.Context, rec record.ImageRecord) error

// PoolConfig configures RunPool.
type PoolConfig struct {
	// Workers is the number of concurrent images (0 = runtime.NumCPU()).
	Workers  int
	Progress ProgressCallback
}

// Outcome is the result of one task.
type Outcome struct {
	Task   Task
	Record record.ImageRecord
	// Done is false for tasks skipped because the run was cancelled.
	Done bool
	// Err is the persistence error of a processed image, if any.
	Err error
}

// Persisted reports whether the record reached the sink.
func (o Outcome) Persisted() bool { return o.Done && o.Err == nil }

type poolJob struct {
	index int
	task  Task
}

type poolResult struct {
	index   int
	outcome Outcome
}

// RunPool processes tasks on a bounded worker pool and hands every record to
// sink. Outcomes are returned in task order. On cancellation, dispatch stops,
// in-flight images finish or abort, and ctx.Err() is returned together with
// the outcomes gathered so far.
func RunPool(ctx context.Context, tasks []Task, proc ImageProcessor, sink Sink, cfg PoolConfig) ([]Outcome, error) {
	if proc == nil {
		return nil, errors.New("no image processor")
	}
	if sink == nil {
		sink = func(context.Context, record.ImageRecord) error { return nil }
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Progress == nil {
		cfg.Progress = NoOpProgressCallback{}
	}

	outcomes := make([]Outcome, len(tasks))
	for i, t := range tasks {
		outcomes[i].Task = t
	}

	cfg.Progress.OnStart(len(tasks))
	defer cfg.Progress.OnComplete()

	jobs := make(chan poolJob)
	results := make(chan poolResult, cfg.Workers)

	var wg sync.WaitGroup
	for range min(cfg.Workers, max(len(tasks), 1)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				rec, err := proc.Process(ctx, job.task)
				if err != nil {
					// Cancelled mid-image: nothing to persist.
					continue
				}
				o := Outcome{Task: job.task, Record: rec, Done: true}
				o.Err = sink(ctx, rec)
				results <- poolResult{index: job.index, outcome: o}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, t := range tasks {
			select {
			case jobs <- poolJob{index: i, task: t}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	count := 0
	for r := range results {
		o := r.outcome
		outcomes[r.index] = o
		count++
		if o.Err != nil {
			cfg.Progress.OnError(o.Task.ID, o.Err)
		}
		cfg.Progress.OnProgress(Progress{
			Current: count,
			Total:   len(tasks),
			ImageID: o.Task.ID,
			Status:  o.Record.Status,
			Error:   o.Record.Error,
		})
	}

	if err := ctx.Err(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

// RunStats summarizes the outcomes of a run.
type RunStats struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Unsaved   int `json:"unsaved"`
	Skipped   int `json:"skipped"`
}

// CalculateRunStats counts outcomes by result.
func CalculateRunStats(outcomes []Outcome) RunStats {
	s := RunStats{Total: len(outcomes)}
	for _, o := range outcomes {
		switch {
		case !o.Done:
			s.Skipped++
		case o.Err != nil:
			s.Unsaved++
		case o.Record.OK():
			s.Processed++
		default:
			s.Failed++
		}
	}
	return s
}
