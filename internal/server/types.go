// Package server exposes the result directory and batch runs over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/bannerscan/internal/batch"
	"github.com/MeKo-Tech/bannerscan/internal/pipeline"
	"github.com/MeKo-Tech/bannerscan/internal/record"
	"github.com/MeKo-Tech/bannerscan/internal/store"
)

// batchRunner matches batch.ProcessBatch.
type batchRunner func(ctx context.Context, paths []string, cfg *batch.Config) (*batch.Result, error)

// Server holds the HTTP server state and dependencies.
type Server struct {
	store      *store.Store
	batchCfg   batch.Config
	inputRoot  string
	corsOrigin string
	timeoutSec int
	version    string

	runBatch batchRunner
	hub      *progressHub
	tracker  *pipeline.ProgressTracker

	// ctx is cancelled by Close to abort a running batch.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	running    bool
	rebuilding bool
	lastRun    *BatchStatus
	batchDone  sync.WaitGroup
}

// Config holds server configuration.
type Config struct {
	Host       string
	Port       int
	CORSOrigin string
	TimeoutSec int
	// InputRoot confines the directories a batch request may name.
	InputRoot string
	// Batch is the template for batch requests; its OutputDir is the
	// directory served by the record and summary endpoints.
	Batch   *batch.Config
	Version string
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// RecordsResponse lists the stored records.
type RecordsResponse struct {
	Records []record.ImageRecord `json:"records"`
	Skipped []string             `json:"skipped_files,omitempty"`
	Count   int                  `json:"count"`
}

// BatchRequest starts a batch over directories below the input root.
type BatchRequest struct {
	Paths     []string `json:"paths"`
	Recursive *bool    `json:"recursive,omitempty"`
	Include   []string `json:"include,omitempty"`
	Exclude   []string `json:"exclude,omitempty"`
	Workers   int      `json:"workers,omitempty"`
}

// BatchStatus reports the running or last finished batch.
type BatchStatus struct {
	Running   bool                     `json:"running"`
	Progress  pipeline.TrackerSnapshot `json:"progress"`
	Run       *pipeline.RunStats       `json:"run,omitempty"`
	Cancelled bool                     `json:"cancelled,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

// NewServer creates a server over the batch output directory.
func NewServer(config Config) (*Server, error) {
	if config.Batch == nil {
		return nil, errors.New("batch configuration is required")
	}
	st, err := store.New(config.Batch.OutputDir, store.Options{WriteCombined: config.Batch.WriteCombined})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		store:      st,
		batchCfg:   *config.Batch,
		inputRoot:  config.InputRoot,
		corsOrigin: config.CORSOrigin,
		timeoutSec: config.TimeoutSec,
		version:    config.Version,
		runBatch:   batch.ProcessBatch,
		hub:        newProgressHub(),
		tracker:    &pipeline.ProgressTracker{},
		ctx:        ctx,
		cancel:     cancel,
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	return s, nil
}

// Close aborts a running batch, waits for it and disconnects progress clients.
func (s *Server) Close() error {
	s.cancel()
	s.batchDone.Wait()
	s.hub.closeAll()
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/api/v1/summary", s.corsMiddleware(s.summaryHandler))
	mux.HandleFunc("/api/v1/summary/rebuild", s.corsMiddleware(s.rebuildHandler))
	mux.HandleFunc("/api/v1/records", s.corsMiddleware(s.recordsHandler))
	mux.HandleFunc("/api/v1/records/{id...}", s.corsMiddleware(s.recordHandler))
	mux.HandleFunc("/api/v1/batch", s.corsMiddleware(s.batchHandler))
	mux.HandleFunc("/api/v1/progress", s.progressWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}
