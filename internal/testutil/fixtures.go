package testutil

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/bannerscan/internal/capability"
	"github.com/stretchr/testify/require"
)

// StreetImage is the standard single-person, one-banner test image.
var StreetImage = capability.SidecarFile{
	People: []capability.SidecarPerson{
		{Box: [4]float64{50, 60, 80, 200}, Confidence: 0.95},
		{Box: [4]float64{300, 300, 20, 40}, Confidence: 0.2},
	},
	Text: []capability.SidecarText{
		{Box: [4]int{100, 50, 220, 80}, Text: "Welcome", Confidence: 0.90},
		{Box: [4]int{230, 52, 400, 82}, Text: "to the park", Confidence: 0.88},
		{Box: [4]int{10, 400, 14, 404}, Text: "x", Confidence: 0.99},
	},
}

// SaveScenarioImage writes a 640x480 PNG or JPEG plus its detector sidecar
// and returns the image path.
func SaveScenarioImage(dir, name string, sc capability.SidecarFile) (string, error) {
	path := filepath.Join(dir, name)
	if err := SaveImage(path, 640, 480); err != nil {
		return "", err
	}
	if err := capability.NewSidecar("").WriteSidecar(path, sc); err != nil {
		return "", err
	}
	return path, nil
}

// WriteScenarioImage is SaveScenarioImage failing t on error.
func WriteScenarioImage(t *testing.T, dir, name string, sc capability.SidecarFile) string {
	t.Helper()
	path, err := SaveScenarioImage(dir, name, sc)
	require.NoError(t, err)
	return path
}

// SaveMixedBatch writes corrupt.jpg and street_001.jpg into dir.
func SaveMixedBatch(dir string) error {
	if err := SaveCorruptImage(filepath.Join(dir, "corrupt.jpg")); err != nil {
		return err
	}
	_, err := SaveScenarioImage(dir, "street_001.jpg", StreetImage)
	return err
}

// WriteMixedBatch is SaveMixedBatch failing t on error.
func WriteMixedBatch(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, SaveMixedBatch(dir))
}

// NumberedImage returns the detections of the i-th numbered image: i%4
// people and i%3 separate banners.
func NumberedImage(i int) capability.SidecarFile {
	var sc capability.SidecarFile
	for p := range i % 4 {
		sc.People = append(sc.People, capability.SidecarPerson{
			Box:        [4]float64{float64(10 + p*100), 10, 50, 120},
			Confidence: 0.5 + float64(p)/10 + float64(i)/100,
		})
	}
	for b := range i % 3 {
		y := 200 + b*80
		sc.Text = append(sc.Text, capability.SidecarText{
			Box:        [4]int{20, y, 200, y + 30},
			Text:       fmt.Sprintf("banner %d-%d", i, b),
			Confidence: 0.6 + float64(b)/10,
		})
	}
	return sc
}

// SaveNumberedBatch writes n images named img_00.png onwards.
func SaveNumberedBatch(dir string, n int) ([]string, error) {
	paths := make([]string, 0, n)
	for i := range n {
		path, err := SaveScenarioImage(dir, fmt.Sprintf("img_%02d.png", i), NumberedImage(i))
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteNumberedBatch is SaveNumberedBatch failing t on error.
func WriteNumberedBatch(t *testing.T, dir string, n int) []string {
	t.Helper()
	paths, err := SaveNumberedBatch(dir, n)
	require.NoError(t, err)
	return paths
}
