package batch

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/bannerscan/internal/pipeline"
	"github.com/MeKo-Tech/bannerscan/internal/record"
	"github.com/MeKo-Tech/bannerscan/internal/stats"
	"github.com/MeKo-Tech/bannerscan/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *Result {
	b := record.NewBuilder()
	ok := b.Build(record.ImageInfo{ID: "street.jpg"}, nil, nil, nil)
	failed := b.Failed(record.ImageInfo{ID: "corrupt.jpg"}, errors.New("bad header"))
	outcomes := []pipeline.Outcome{
		{Task: pipeline.Task{ID: "corrupt.jpg"}, Record: failed, Done: true},
		{Task: pipeline.Task{ID: "street.jpg"}, Record: ok, Done: true},
		{Task: pipeline.Task{ID: "late.jpg"}},
	}
	return &Result{
		Outcomes:       outcomes,
		Run:            pipeline.CalculateRunStats(outcomes),
		OutputDir:      "out",
		SummaryWritten: true,
		Summary: store.Summary{BatchStatistics: stats.Accumulate([]record.ImageRecord{failed, ok})},
	}
}

func TestFormatResults_Text(t *testing.T) {
	out, err := sampleResult().FormatResults(FormatText)
	require.NoError(t, err)
	assert.Contains(t, out, "✗ corrupt.jpg: bad header")
	assert.Contains(t, out, "✓ street.jpg: 0 people, 0 banners")
	assert.Contains(t, out, "- late.jpg: skipped")
	assert.Contains(t, out, "Images processed: 1")
	assert.Contains(t, out, "Failed IDs: corrupt.jpg")
}

func TestFormatResults_JSON(t *testing.T) {
	out, err := sampleResult().FormatResults(FormatJSON)
	require.NoError(t, err)

	var rep report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 3, rep.Run.Total)
	assert.Equal(t, 1, rep.Run.Skipped)
	require.NotNil(t, rep.Summary)
	assert.Equal(t, 1, rep.Summary.FailedImages)
	require.Len(t, rep.Images, 3)
	assert.Equal(t, "failed", rep.Images[0].Status)
	assert.True(t, rep.Images[1].Persisted)
}

func TestFormatResults_YAML(t *testing.T) {
	out, err := sampleResult().FormatResults(FormatYAML)
	require.NoError(t, err)

	var rep report
	require.NoError(t, yaml.Unmarshal([]byte(out), &rep))
	assert.Equal(t, "out", rep.OutputDir)
	require.NotNil(t, rep.Summary)
	assert.Equal(t, []string{"corrupt.jpg"}, rep.Summary.FailedImageIDs)
}

func TestFormatResults_CSV(t *testing.T) {
	out, err := sampleResult().FormatResults(FormatCSV)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "image_id,status,person_count,banner_count,persisted,error", lines[0])
	assert.Equal(t, "corrupt.jpg,failed,0,0,true,bad header", lines[1])
	assert.Equal(t, "late.jpg,skipped,0,0,false,", lines[3])
}

func TestFormatResults_Unknown(t *testing.T) {
	_, err := sampleResult().FormatResults("xml")
	require.Error(t, err)
}

func TestSaveResults_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	var buf strings.Builder
	require.NoError(t, sampleResult().SaveResults(&buf, FormatJSON, path, false))
	assert.Contains(t, buf.String(), "Results written to")
	assert.FileExists(t, path)
}
