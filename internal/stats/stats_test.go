package stats

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/MeKo-Tech/bannerscan/internal/detection"
	"github.com/MeKo-Tech/bannerscan/internal/grouping"
	"github.com/MeKo-Tech/bannerscan/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func builder() *record.Builder {
	return &record.Builder{Now: func() time.Time { return time.Unix(0, 0) }}
}

func okRecord(id string, people []float64, banners []float64) record.ImageRecord {
	p := make([]detection.Detection, len(people))
	for i, c := range people {
		p[i] = detection.Detection{Box: detection.Box{XMax: 1, YMax: 1}, Confidence: c}
	}
	b := make([]grouping.Banner, len(banners))
	for i, c := range banners {
		b[i] = grouping.Banner{Detection: detection.Detection{Box: detection.Box{XMax: 1, YMax: 1}, Confidence: c}, Text: "x"}
	}
	return builder().Build(record.ImageInfo{ID: id, Size: detection.ImageSize{Width: 1, Height: 1}}, p, b, nil)
}

func failedRecord(id string) record.ImageRecord {
	return builder().Failed(record.ImageInfo{ID: id}, errors.New("unreadable"))
}

func TestAccumulate_MixedBatch(t *testing.T) {
	s := Accumulate([]record.ImageRecord{
		failedRecord("corrupt.jpg"),
		okRecord("street_001.jpg", []float64{0.95}, []float64{0.89}),
	})

	assert.Equal(t, 1, s.FailedImages)
	assert.Equal(t, []string{"corrupt.jpg"}, s.FailedImageIDs)
	assert.Equal(t, 1, s.TotalImagesProcessed)
	assert.Equal(t, 1, s.TotalPeopleDetected)
	assert.Equal(t, 1, s.TotalBannersDetected)
	assert.Equal(t, 1, s.ImagesWithPeople)
	assert.Equal(t, 1, s.ImagesWithBanners)
	assert.InDelta(t, 1.0, s.AveragePeoplePerImage, 1e-12)
	assert.InDelta(t, 0.95, s.AverageConfidencePeople, 1e-12)
	assert.InDelta(t, 0.89, s.AverageConfidenceBanners, 1e-12)
}

func TestAccumulate_ExtremaAndAverages(t *testing.T) {
	s := Accumulate([]record.ImageRecord{
		okRecord("a", []float64{0.5, 0.7, 0.9}, nil),
		okRecord("b", nil, []float64{0.4, 0.6}),
		okRecord("c", []float64{0.6}, []float64{0.8}),
		failedRecord("d"),
	})

	assert.Equal(t, 3, s.TotalImagesProcessed)
	assert.Equal(t, 4, s.TotalPeopleDetected)
	assert.Equal(t, 3, s.TotalBannersDetected)
	assert.InDelta(t, 1.33, s.AveragePeoplePerImage, 1e-12)
	assert.InDelta(t, 1.0, s.AverageBannersPerImage, 1e-12)
	assert.InDelta(t, 0.675, s.AverageConfidencePeople, 1e-12)
	assert.InDelta(t, 0.6, s.AverageConfidenceBanners, 1e-12)
	assert.Equal(t, 3, s.MaxPeopleInSingleImage)
	assert.Equal(t, 0, s.MinPeopleInSingleImage)
	assert.Equal(t, 2, s.MaxBannersInSingleImage)
	assert.Equal(t, 0, s.MinBannersInSingleImage)
	assert.Equal(t, 2, s.ImagesWithPeople)
	assert.Equal(t, 2, s.ImagesWithBanners)
}

func TestAccumulate_NoDetections(t *testing.T) {
	s := Accumulate([]record.ImageRecord{okRecord("empty.png", nil, nil)})

	assert.Equal(t, 1, s.TotalImagesProcessed)
	assert.Zero(t, s.TotalPeopleDetected)
	assert.Zero(t, s.TotalBannersDetected)
	assert.Zero(t, s.AverageConfidencePeople)
	assert.Zero(t, s.AverageConfidenceBanners)
	assert.Zero(t, s.ImagesWithPeople)
	assert.Zero(t, s.ImagesWithBanners)
}

func TestAccumulate_Empty(t *testing.T) {
	s := Accumulate(nil)
	assert.Equal(t, BatchStatistics{FailedImageIDs: []string{}}, s)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"failed_image_ids":[]`)
	assert.Contains(t, string(data), `"average_confidence_people":0`)
}

func TestAccumulate_AllFailed(t *testing.T) {
	s := Accumulate([]record.ImageRecord{failedRecord("b"), failedRecord("a")})
	assert.Equal(t, 2, s.FailedImages)
	assert.Equal(t, []string{"a", "b"}, s.FailedImageIDs)
	assert.Zero(t, s.TotalImagesProcessed)
	assert.Zero(t, s.MaxPeopleInSingleImage)
	assert.Zero(t, s.AveragePeoplePerImage)
}

func TestAccumulate_DoesNotReorderInput(t *testing.T) {
	in := []record.ImageRecord{okRecord("b", []float64{0.9, 0.1}, nil), okRecord("a", nil, nil)}
	Accumulate(in)
	assert.Equal(t, "b", in[0].ImageID)
	assert.InDelta(t, 0.9, in[0].Detections.People[0].Confidence, 1e-12)
}
