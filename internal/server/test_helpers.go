package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/bannerscan/internal/batch"
)

// newTestServer returns a server whose input root and output directory are
// fresh temp directories.
func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	inputRoot := t.TempDir()
	cfg := batch.DefaultConfig()
	cfg.OutputDir = filepath.Join(t.TempDir(), "results")
	cfg.Workers = 2

	srv, err := NewServer(Config{InputRoot: inputRoot, Batch: cfg, Version: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv, inputRoot
}

// serve mounts srv on an httptest server.
func serve(t *testing.T, srv *Server) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if v != nil && len(body) > 0 {
		require.NoError(t, json.Unmarshal(body, v), string(body))
	}
	return resp.StatusCode
}

// waitIdle polls the batch status until no batch is running.
func waitIdle(t *testing.T, baseURL string) BatchStatus {
	t.Helper()
	var st BatchStatus
	require.Eventually(t, func() bool {
		st = BatchStatus{}
		getJSON(t, baseURL+"/api/v1/batch", &st)
		return !st.Running
	}, 10*time.Second, 20*time.Millisecond)
	return st
}
