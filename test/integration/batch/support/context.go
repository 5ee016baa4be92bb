// Package support holds the state and step definitions of the batch
// integration suite.
package support

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/bannerscan/internal/batch"
	"github.com/MeKo-Tech/bannerscan/internal/server"
	"github.com/MeKo-Tech/bannerscan/internal/store"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Test environment
	TempDir  string
	InputDir string

	// Batch execution state
	LastResult *batch.Result
	LastError  error

	// Rebuild results, in call order
	Rebuilds []store.Summary

	// Server state
	Server       *server.Server
	HTTPServer   *httptest.Server
	LastStatus   int
	LastResponse map[string]any
}

// NewTestContext creates a scenario context below a fresh temp directory.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "bannerscan-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TestContext{TempDir: tempDir}, nil
}

// outputDir maps a scenario-level directory name into the temp directory.
func (testCtx *TestContext) outputDir(name string) string {
	return filepath.Join(testCtx.TempDir, "out", name)
}

// Cleanup stops the server and removes all temporary files.
func (testCtx *TestContext) Cleanup() error {
	var errs []error
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
		testCtx.HTTPServer = nil
	}
	if testCtx.Server != nil {
		if err := testCtx.Server.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close server: %w", err))
		}
		testCtx.Server = nil
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove %s: %w", testCtx.TempDir, err))
	}
	return errors.Join(errs...)
}
