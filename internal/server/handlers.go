package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/bannerscan/internal/record"
	"github.com/MeKo-Tech/bannerscan/internal/store"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// summaryHandler returns summary.json as last written.
func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	sum, err := s.store.ReadSummary(ctx)
	if err != nil {
		s.writeStoreError(w, "Failed to read summary", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// rebuildHandler recomputes the summary from the stored records.
func (s *Server) rebuildHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.beginRebuild(); err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusConflict)
		return
	}
	defer s.endRebuild()

	ctx, cancel := s.requestContext(r)
	defer cancel()

	sum, err := s.store.RebuildSummary(ctx)
	if err != nil {
		s.writeStoreError(w, "Failed to rebuild summary", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// recordsHandler lists stored records, optionally filtered by ?status=.
func (s *Server) recordsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := record.Status(r.URL.Query().Get("status"))
	switch status {
	case "", record.StatusOK, record.StatusFailed:
	default:
		s.writeErrorResponse(w, "status must be ok or failed", http.StatusBadRequest)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	recs, skipped, err := s.store.Records(ctx)
	if err != nil {
		s.writeStoreError(w, "Failed to list records", err)
		return
	}

	out := make([]record.ImageRecord, 0, len(recs))
	for _, rec := range recs {
		if status == "" || rec.Status == status {
			out = append(out, rec)
		}
	}
	writeJSON(w, http.StatusOK, RecordsResponse{Records: out, Skipped: skipped, Count: len(out)})
}

// recordHandler returns the record of one image ID.
func (s *Server) recordHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		s.writeErrorResponse(w, "No image ID provided", http.StatusBadRequest)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	rec, err := s.store.Record(ctx, id)
	if err != nil {
		s.writeStoreError(w, "Failed to read record", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeoutSec <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), time.Duration(s.timeoutSec)*time.Second)
}

func (s *Server) writeStoreError(w http.ResponseWriter, message string, err error) {
	if errors.Is(err, store.ErrRecordNotFound) {
		s.writeErrorResponse(w, err.Error(), http.StatusNotFound)
		return
	}
	slog.Error(message, "error", err)
	s.writeErrorResponse(w, message+": "+err.Error(), http.StatusInternalServerError)
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are sent; nothing left to report to the client.
		slog.Error("Error encoding response", "error", err)
	}
}
