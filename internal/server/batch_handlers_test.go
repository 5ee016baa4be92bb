package server

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/bannerscan/internal/batch"
	"github.com/MeKo-Tech/bannerscan/internal/pipeline"
	"github.com/MeKo-Tech/bannerscan/internal/store"
	"github.com/MeKo-Tech/bannerscan/internal/testutil"
)

func postBatch(t *testing.T, baseURL, body string) int {
	t.Helper()
	resp, err := http.Post(baseURL+"/api/v1/batch", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp.StatusCode
}

func TestServer_BatchRun(t *testing.T) {
	srv, root := newTestServer(t)
	testutil.WriteMixedBatch(t, root)
	ts := serve(t, srv)

	require.Equal(t, http.StatusAccepted, postBatch(t, ts.URL, `{"paths":["."]}`))

	st := waitIdle(t, ts.URL)
	require.NotNil(t, st.Run)
	assert.Empty(t, st.Error)
	assert.Equal(t, pipeline.RunStats{Total: 2, Processed: 1, Failed: 1}, *st.Run)
	assert.Equal(t, 2, st.Progress.Completed)
	assert.Equal(t, 1, st.Progress.Failed)

	var sum store.Summary
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/summary", &sum))
	assert.Equal(t, 1, sum.TotalImagesProcessed)
	assert.Equal(t, 1, sum.TotalBannersDetected)
	assert.InDelta(t, 0.89, sum.AverageConfidenceBanners, 1e-9)
}

func TestServer_BatchNoImagesReportsError(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := serve(t, srv)

	require.Equal(t, http.StatusAccepted, postBatch(t, ts.URL, `{}`))

	st := waitIdle(t, ts.URL)
	assert.Contains(t, st.Error, batch.ErrNoImages.Error())
	assert.Nil(t, st.Run)
}

func TestServer_BatchRejectsBadRequests(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := serve(t, srv)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"paths":`},
		{"absolute path", `{"paths":["/etc"]}`},
		{"escaping path", `{"paths":["../outside"]}`},
		{"negative workers", `{"workers":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, postBatch(t, ts.URL, tt.body))
		})
	}
	assert.False(t, srv.status().Running)
}

func TestServer_BatchDisabledWithoutInputRoot(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.inputRoot = ""
	ts := serve(t, srv)

	assert.Equal(t, http.StatusForbidden, postBatch(t, ts.URL, `{}`))
}

func TestServer_BatchConflictAndOverrides(t *testing.T) {
	srv, root := newTestServer(t)
	release := make(chan struct{})
	var (
		mu        sync.Mutex
		gotPaths  []string
		gotConfig batch.Config
	)
	srv.runBatch = func(ctx context.Context, paths []string, cfg *batch.Config) (*batch.Result, error) {
		mu.Lock()
		gotPaths, gotConfig = paths, *cfg
		mu.Unlock()
		<-release
		return &batch.Result{Run: pipeline.RunStats{Total: 3, Processed: 3}}, nil
	}
	ts := serve(t, srv)

	require.Equal(t, http.StatusAccepted,
		postBatch(t, ts.URL, `{"paths":["a","b/c"],"recursive":true,"include":["*.png"],"workers":7}`))
	assert.True(t, srv.status().Running)
	assert.Equal(t, http.StatusConflict, postBatch(t, ts.URL, `{}`))

	resp, err := http.Post(ts.URL+"/api/v1/summary/rebuild", "application/json", nil)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	close(release)
	st := waitIdle(t, ts.URL)
	require.NotNil(t, st.Run)
	assert.Equal(t, 3, st.Run.Processed)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{filepath.Join(root, "a"), filepath.Join(root, "b", "c")}, gotPaths)
	assert.True(t, gotConfig.Recursive)
	assert.Equal(t, []string{"*.png"}, gotConfig.IncludePatterns)
	assert.Equal(t, 7, gotConfig.Workers)
	assert.False(t, gotConfig.ShowProgress)
	assert.NotNil(t, gotConfig.Progress)
	assert.Equal(t, 2, srv.batchCfg.Workers, "template config must not change")
}

func TestServer_BatchAndRebuildExclusive(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.runBatch = func(context.Context, []string, *batch.Config) (*batch.Result, error) {
		return &batch.Result{}, nil
	}
	ts := serve(t, srv)

	require.NoError(t, srv.beginRebuild())
	assert.ErrorIs(t, srv.beginRebuild(), errRebuildRunning)
	assert.Equal(t, http.StatusConflict, postBatch(t, ts.URL, `{}`))

	resp, err := http.Post(ts.URL+"/api/v1/summary/rebuild", "application/json", nil)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	srv.endRebuild()
	require.Equal(t, http.StatusAccepted, postBatch(t, ts.URL, `{}`))
	waitIdle(t, ts.URL)

	require.NoError(t, srv.beginRebuild())
	srv.endRebuild()
}

func TestServer_CloseCancelsBatch(t *testing.T) {
	srv, _ := newTestServer(t)
	started := make(chan struct{})
	srv.runBatch = func(ctx context.Context, _ []string, _ *batch.Config) (*batch.Result, error) {
		close(started)
		<-ctx.Done()
		return &batch.Result{Cancelled: true}, ctx.Err()
	}

	require.NoError(t, srv.startBatch([]string{"."}, srv.batchCfg))
	<-started
	require.NoError(t, srv.Close())

	st := srv.status()
	assert.False(t, st.Running)
	assert.True(t, st.Cancelled)
	assert.Contains(t, st.Error, context.Canceled.Error())
}
