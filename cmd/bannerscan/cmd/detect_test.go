package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/bannerscan/internal/record"
	"github.com/MeKo-Tech/bannerscan/internal/store"
	"github.com/MeKo-Tech/bannerscan/internal/testutil"
)

func TestDetectCommand_MixedBatch(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "results")
	testutil.WriteMixedBatch(t, in)

	stdout, _, err := executeCommand(t, "detect", in, "--out-dir", out, "--workers", "2", "--progress=false")
	require.NoError(t, err)

	assert.Contains(t, stdout, "✓ street_001.jpg")
	assert.Contains(t, stdout, "✗ corrupt.jpg")
	assert.Contains(t, stdout, "Processing Statistics:")

	files, err := testutil.ListFiles(out)
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{"corrupt.json", "street_001.json", store.SummaryFileName, store.CombinedFileName}, files)

	data, err := os.ReadFile(filepath.Join(out, "street_001.json"))
	require.NoError(t, err)
	var rec record.ImageRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	require.Len(t, rec.Detections.Banners, 1)
	assert.Equal(t, "Welcome to the park", rec.Detections.Banners[0].Text)
}

func TestDetectCommand_ReportFile(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "results")
	report := filepath.Join(t.TempDir(), "report.csv")
	testutil.WriteMixedBatch(t, in)

	_, _, err := executeCommand(t, "detect", in, "--out-dir", out, "--format", "csv", "--output", report, "--quiet")
	require.NoError(t, err)

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), "image_id,status,person_count,banner_count,persisted,error")
	assert.Contains(t, string(data), "street_001.jpg,ok,1,1,true,")
}

func TestDetectCommand_InvalidThreshold(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "results")
	testutil.WriteMixedBatch(t, in)

	_, _, err := executeCommand(t, "detect", in, "--out-dir", out, "--person-threshold", "1.5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.NoDirExists(t, out, "no output may be written for a rejected configuration")
}

func TestDetectCommand_UnknownBackend(t *testing.T) {
	_, _, err := executeCommand(t, "detect", t.TempDir(), "--person-backend", "magic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "magic")
}

func TestDetectCommand_NoImages(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results")
	_, _, err := executeCommand(t, "detect", t.TempDir(), "--out-dir", out, "--quiet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image files found")
}

func TestDetectCommand_RequiresArgs(t *testing.T) {
	_, _, err := executeCommand(t, "detect")
	require.Error(t, err)
}
