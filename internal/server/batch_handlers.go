package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/MeKo-Tech/bannerscan/internal/batch"
	"github.com/MeKo-Tech/bannerscan/internal/pipeline"
)

const maxBatchRequestBytes = 1 << 20

var (
	errBatchRunning   = errors.New("a batch is already running")
	errRebuildRunning = errors.New("a summary rebuild is running")
)

// batchHandler starts a batch (POST) or reports the current one (GET).
func (s *Server) batchHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.status())
	case http.MethodPost:
		s.startBatchHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) startBatchHandler(w http.ResponseWriter, r *http.Request) {
	if s.inputRoot == "" {
		s.writeErrorResponse(w, "Batch requests are disabled: no input root configured", http.StatusForbidden)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBatchRequestBytes)
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	paths, err := s.resolvePaths(req.Paths)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Workers < 0 {
		s.writeErrorResponse(w, "workers must not be negative", http.StatusBadRequest)
		return
	}

	cfg := s.batchConfigFor(req)
	if err := s.startBatch(paths, cfg); err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusConflict)
		return
	}

	writeJSON(w, http.StatusAccepted, s.status())
}

// resolvePaths maps request paths onto the input root and rejects anything
// that would leave it.
func (s *Server) resolvePaths(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return []string{s.inputRoot}, nil
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		clean := filepath.FromSlash(p)
		if clean == "" || clean == "." {
			out = append(out, s.inputRoot)
			continue
		}
		if !filepath.IsLocal(clean) {
			return nil, fmt.Errorf("path %q must be relative to the input root", p)
		}
		out = append(out, filepath.Join(s.inputRoot, clean))
	}
	return out, nil
}

func (s *Server) batchConfigFor(req BatchRequest) batch.Config {
	cfg := s.batchCfg
	cfg.ShowProgress = false
	cfg.Quiet = true
	cfg.Progress = pipeline.NewMultiProgressCallback(s.tracker, s.hub)
	if req.Recursive != nil {
		cfg.Recursive = *req.Recursive
	}
	if req.Include != nil {
		cfg.IncludePatterns = req.Include
	}
	if req.Exclude != nil {
		cfg.ExcludePatterns = req.Exclude
	}
	if req.Workers > 0 {
		cfg.Workers = req.Workers
	}
	return cfg
}

// startBatch runs a batch in the background. Only one batch runs at a time.
func (s *Server) startBatch(paths []string, cfg batch.Config) error {
	s.mu.Lock()
	if err := s.busyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.running = true
	s.lastRun = nil
	s.batchDone.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.batchDone.Done()
		res, err := s.runBatch(s.ctx, paths, &cfg)
		s.finishBatch(res, err)
	}()
	return nil
}

func (s *Server) finishBatch(res *batch.Result, err error) {
	st := &BatchStatus{}
	label := "completed"
	if res != nil {
		run := res.Run
		st.Run = &run
		st.Cancelled = res.Cancelled
	}
	switch {
	case errors.Is(err, context.Canceled):
		label = "cancelled"
		st.Cancelled = true
		st.Error = err.Error()
	case err != nil:
		label = "error"
		st.Error = err.Error()
		slog.Error("API batch failed", "error", err)
	}
	batchRunsTotal.WithLabelValues(label).Inc()

	s.mu.Lock()
	s.running = false
	s.lastRun = st
	s.mu.Unlock()
}

// busyLocked reports why no batch or rebuild may start. s.mu must be held.
func (s *Server) busyLocked() error {
	switch {
	case s.running:
		return errBatchRunning
	case s.rebuilding:
		return errRebuildRunning
	}
	return nil
}

// beginRebuild claims the store for a summary rebuild. The caller must call
// endRebuild when done.
func (s *Server) beginRebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.busyLocked(); err != nil {
		return err
	}
	s.rebuilding = true
	return nil
}

func (s *Server) endRebuild() {
	s.mu.Lock()
	s.rebuilding = false
	s.mu.Unlock()
}

func (s *Server) status() BatchStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := BatchStatus{Running: s.running}
	if s.lastRun != nil {
		st = *s.lastRun
	}
	st.Running = s.running
	st.Progress = s.tracker.Snapshot()
	return st
}
