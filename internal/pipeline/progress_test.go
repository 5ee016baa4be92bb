package pipeline

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/MeKo-Tech/bannerscan/internal/record"
	"github.com/stretchr/testify/assert"
)

func TestNoOpProgressCallback(t *testing.T) {
	callback := NoOpProgressCallback{}
	callback.OnStart(10)
	callback.OnProgress(Progress{Current: 5, Total: 10})
	callback.OnComplete()
	callback.OnError("a.png", assert.AnError)
}

func TestConsoleProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	callback := NewConsoleProgressCallback(&buf, "Test: ").WithWidth(10).WithUpdateInterval(0)

	callback.OnStart(4)
	assert.Contains(t, buf.String(), "Test: 0/4 (0.0%)")

	buf.Reset()
	callback.OnProgress(Progress{Current: 2, Total: 4, ImageID: "b.png", Status: record.StatusFailed})
	out := buf.String()
	assert.Contains(t, out, "2/4")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "failed: 1")

	buf.Reset()
	callback.OnError("c.png", assert.AnError)
	assert.Contains(t, buf.String(), "Test: Error on c.png")

	buf.Reset()
	callback.OnComplete()
	assert.Contains(t, buf.String(), "Test: Completed")
}

func TestConsoleProgressCallback_Throttling(t *testing.T) {
	var buf bytes.Buffer
	callback := NewConsoleProgressCallback(&buf, "").WithUpdateInterval(time.Hour)

	callback.OnStart(10)
	callback.OnProgress(Progress{Current: 1, Total: 10})
	buf.Reset()

	callback.OnProgress(Progress{Current: 2, Total: 10})
	assert.Empty(t, buf.String())

	// The last image always redraws.
	callback.OnProgress(Progress{Current: 10, Total: 10})
	assert.Contains(t, buf.String(), "10/10")
}

func TestLogProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	callback := NewLogProgressCallback(logger, slog.LevelInfo).WithInterval(2)

	callback.OnStart(3)
	callback.OnProgress(Progress{Current: 1, Total: 3})
	callback.OnProgress(Progress{Current: 2, Total: 3})
	callback.OnProgress(Progress{Current: 3, Total: 3})
	callback.OnError("x.png", assert.AnError)
	callback.OnComplete()

	out := buf.String()
	assert.Contains(t, out, `"msg":"batch started"`)
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte(`"msg":"batch progress"`)))
	assert.Contains(t, out, `"image":"x.png"`)
	assert.Contains(t, out, `"msg":"batch completed"`)
}

func TestMultiProgressCallback(t *testing.T) {
	a, b := &ProgressTracker{}, &ProgressTracker{}
	m := NewMultiProgressCallback(a, nil, b)

	m.OnStart(2)
	m.OnProgress(Progress{Current: 1, Total: 2, Status: record.StatusOK})
	m.OnProgress(Progress{Current: 2, Total: 2, Status: record.StatusFailed})
	m.OnError("x", assert.AnError)
	m.OnComplete()

	for _, pt := range []*ProgressTracker{a, b} {
		s := pt.Snapshot()
		assert.Equal(t, 2, s.Total)
		assert.Equal(t, 2, s.Completed)
		assert.Equal(t, 1, s.Failed)
		assert.Equal(t, 1, s.Unsaved)
		assert.False(t, s.Running)
	}
}
