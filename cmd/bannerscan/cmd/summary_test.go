package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/bannerscan/internal/store"
	"github.com/MeKo-Tech/bannerscan/internal/testutil"
)

func detectInto(t *testing.T) string {
	t.Helper()
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "results")
	testutil.WriteMixedBatch(t, in)
	_, _, err := executeCommand(t, "detect", in, "--out-dir", out, "--quiet")
	require.NoError(t, err)
	return out
}

func TestSummaryCommand_JSON(t *testing.T) {
	out := detectInto(t)
	before, err := os.ReadFile(filepath.Join(out, store.SummaryFileName))
	require.NoError(t, err)

	stdout, _, err := executeCommand(t, "summary", out, "--format", "json")
	require.NoError(t, err)

	var sum store.Summary
	require.NoError(t, json.Unmarshal([]byte(stdout), &sum))
	assert.Equal(t, 1, sum.TotalImagesProcessed)
	assert.Equal(t, 1, sum.FailedImages)
	assert.Equal(t, 1, sum.TotalBannersDetected)

	after, err := os.ReadFile(filepath.Join(out, store.SummaryFileName))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after), "rebuilding without new records must not change summary.json")
}

func TestSummaryCommand_YAMLAndText(t *testing.T) {
	out := detectInto(t)

	stdout, _, err := executeCommand(t, "summary", out, "--format", "yaml", "--no-rebuild")
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &doc))
	assert.Equal(t, 1, doc["total_images_processed"])

	stdout, _, err = executeCommand(t, "summary", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Batch Summary:")
	assert.Contains(t, stdout, "Failed IDs: corrupt.jpg")
}

func TestSummaryCommand_Errors(t *testing.T) {
	_, _, err := executeCommand(t, "summary", t.TempDir(), "--no-rebuild")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrRecordNotFound)

	_, _, err = executeCommand(t, "summary", t.TempDir(), "--format", "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported summary format")
}
