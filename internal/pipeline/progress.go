package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/bannerscan/internal/record"
)

// Progress describes one finished image within a run.
type Progress struct {
	Current int           `json:"current"`
	Total   int           `json:"total"`
	ImageID string        `json:"image_id"`
	Status  record.Status `json:"status"`
	Error   string        `json:"error,omitempty"`
}

// ProgressCallback receives progress notifications from a run. Calls may come
// from several goroutines but are never concurrent for one run.
type ProgressCallback interface {
	// OnStart is called once with the number of images.
	OnStart(total int)

	// OnProgress is called after each image has been processed and persisted.
	OnProgress(p Progress)

	// OnComplete is called once when the run ends.
	OnComplete()

	// OnError is called when an image could not be persisted.
	OnError(imageID string, err error)
}

// NoOpProgressCallback ignores all notifications.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)           {}
func (NoOpProgressCallback) OnProgress(Progress)   {}
func (NoOpProgressCallback) OnComplete()           {}
func (NoOpProgressCallback) OnError(string, error) {}

// ConsoleProgressCallback draws a progress bar.
type ConsoleProgressCallback struct {
	writer         io.Writer
	prefix         string
	width          int
	updateInterval time.Duration

	mu         sync.Mutex
	lastUpdate time.Time
	startTime  time.Time
	failed     int
}

// NewConsoleProgressCallback writes to writer, or stderr when nil.
func NewConsoleProgressCallback(writer io.Writer, prefix string) *ConsoleProgressCallback {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleProgressCallback{
		writer:         writer,
		prefix:         prefix,
		width:          40,
		updateInterval: 100 * time.Millisecond,
	}
}

// WithWidth sets the bar width in characters.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	c.width = width
	return c
}

// WithUpdateInterval sets the minimum time between redraws.
func (c *ConsoleProgressCallback) WithUpdateInterval(interval time.Duration) *ConsoleProgressCallback {
	c.updateInterval = interval
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startTime = time.Now()
	c.lastUpdate = time.Time{}
	c.failed = 0
	_, _ = fmt.Fprintf(c.writer, "%s0/%d (0.0%%)\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnProgress(p Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p.Status == record.StatusFailed {
		c.failed++
	}
	now := time.Now()
	if now.Sub(c.lastUpdate) < c.updateInterval && p.Current < p.Total {
		return
	}
	c.lastUpdate = now
	c.draw(p, now)
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = fmt.Fprintf(c.writer, "\n%sCompleted in %v\n", c.prefix, time.Since(c.startTime).Round(time.Millisecond))
}

func (c *ConsoleProgressCallback) OnError(imageID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = fmt.Fprintf(c.writer, "\n%sError on %s: %v\n", c.prefix, imageID, err)
}

func (c *ConsoleProgressCallback) draw(p Progress, now time.Time) {
	if p.Total == 0 {
		return
	}
	percent := float64(p.Current) / float64(p.Total) * 100
	filled := c.width * p.Current / p.Total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)

	status := fmt.Sprintf("\r%s[%s] %d/%d (%.1f%%)", c.prefix, bar, p.Current, p.Total, percent)
	if c.failed > 0 {
		status += fmt.Sprintf(" failed: %d", c.failed)
	}
	if elapsed := now.Sub(c.startTime); elapsed > 0 && p.Current > 0 {
		status += fmt.Sprintf(" %.1f/s", float64(p.Current)/elapsed.Seconds())
	}
	_, _ = fmt.Fprint(c.writer, status)
}

// LogProgressCallback logs progress with slog.
type LogProgressCallback struct {
	logger   *slog.Logger
	level    slog.Level
	interval int

	mu        sync.Mutex
	lastLog   int
	startTime time.Time
}

// NewLogProgressCallback logs through logger, or slog.Default when nil.
func NewLogProgressCallback(logger *slog.Logger, level slog.Level) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger, level: level, interval: 10}
}

// WithInterval logs every n images.
func (l *LogProgressCallback) WithInterval(n int) *LogProgressCallback {
	l.interval = n
	return l
}

func (l *LogProgressCallback) OnStart(total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.startTime = time.Now()
	l.lastLog = 0
	l.logger.Log(context.Background(), l.level, "batch started", "total", total)
}

func (l *LogProgressCallback) OnProgress(p Progress) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p.Current-l.lastLog < l.interval && p.Current != p.Total {
		return
	}
	l.lastLog = p.Current
	l.logger.Log(context.Background(), l.level, "batch progress",
		"current", p.Current,
		"total", p.Total,
		"image", p.ImageID,
		"elapsed", time.Since(l.startTime).Round(time.Millisecond),
	)
}

func (l *LogProgressCallback) OnComplete() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Log(context.Background(), l.level, "batch completed", "elapsed", time.Since(l.startTime).Round(time.Millisecond))
}

func (l *LogProgressCallback) OnError(imageID string, err error) {
	l.logger.Error("image not persisted", "image", imageID, "error", err)
}

// MultiProgressCallback fans notifications out to several callbacks.
type MultiProgressCallback struct {
	callbacks []ProgressCallback
}

// NewMultiProgressCallback returns a callback reporting to all non-nil callbacks.
func NewMultiProgressCallback(callbacks ...ProgressCallback) *MultiProgressCallback {
	m := &MultiProgressCallback{}
	for _, cb := range callbacks {
		m.Add(cb)
	}
	return m
}

// Add appends a callback; nil is ignored.
func (m *MultiProgressCallback) Add(cb ProgressCallback) {
	if cb != nil {
		m.callbacks = append(m.callbacks, cb)
	}
}

func (m *MultiProgressCallback) OnStart(total int) {
	for _, cb := range m.callbacks {
		cb.OnStart(total)
	}
}

func (m *MultiProgressCallback) OnProgress(p Progress) {
	for _, cb := range m.callbacks {
		cb.OnProgress(p)
	}
}

func (m *MultiProgressCallback) OnComplete() {
	for _, cb := range m.callbacks {
		cb.OnComplete()
	}
}

func (m *MultiProgressCallback) OnError(imageID string, err error) {
	for _, cb := range m.callbacks {
		cb.OnError(imageID, err)
	}
}

// ProgressTracker accumulates counters of a run for later inspection.
type ProgressTracker struct {
	mu        sync.RWMutex
	startTime time.Time
	total     int
	completed int
	failed    int
	errors    int
	running   bool
}

// TrackerSnapshot is a point-in-time copy of a ProgressTracker.
type TrackerSnapshot struct {
	Running   bool          `json:"running"`
	Total     int           `json:"total"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Unsaved   int           `json:"unsaved"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Rate      float64       `json:"rate_per_second"`
}

func (pt *ProgressTracker) OnStart(total int) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.startTime = time.Now()
	pt.total = total
	pt.completed, pt.failed, pt.errors = 0, 0, 0
	pt.running = true
}

func (pt *ProgressTracker) OnProgress(p Progress) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.completed = p.Current
	if p.Status == record.StatusFailed {
		pt.failed++
	}
}

func (pt *ProgressTracker) OnComplete() {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.running = false
}

func (pt *ProgressTracker) OnError(string, error) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.errors++
}

// Snapshot returns the current counters.
func (pt *ProgressTracker) Snapshot() TrackerSnapshot {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	s := TrackerSnapshot{
		Running:   pt.running,
		Total:     pt.total,
		Completed: pt.completed,
		Failed:    pt.failed,
		Unsaved:   pt.errors,
	}
	if !pt.startTime.IsZero() {
		s.Elapsed = time.Since(pt.startTime)
		if secs := s.Elapsed.Seconds(); secs > 0 {
			s.Rate = float64(pt.completed) / secs
		}
	}
	return s
}
