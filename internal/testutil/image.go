package testutil

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// CreateTestImage returns a solid image of the given size.
func CreateTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.Set(x, y, c)
		}
	}
	return img
}

// SaveImage encodes a gray test image to path; the extension picks PNG or JPEG.
func SaveImage(path string, width, height int) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path) //nolint:gosec // G304: test paths
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	img := CreateTestImage(width, height, color.Gray{Y: 128})
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return jpeg.Encode(f, img, &jpeg.Options{Quality: 80})
	default:
		return png.Encode(f, img)
	}
}

// WriteImage is SaveImage failing t on error.
func WriteImage(t *testing.T, path string, width, height int) {
	t.Helper()
	require.NoError(t, SaveImage(path, width, height))
}

// SaveCorruptImage writes bytes that no decoder accepts.
func SaveCorruptImage(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("\xff\xd8 truncated, not an image"), 0o600)
}

// WriteCorruptImage is SaveCorruptImage failing t on error.
func WriteCorruptImage(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, SaveCorruptImage(path))
}
