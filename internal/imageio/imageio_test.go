package imageio

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/bannerscan/internal/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.White)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("a.JPG"))
	assert.True(t, IsSupported("dir/b.tiff"))
	assert.True(t, IsSupported("c.webp"))
	assert.False(t, IsSupported("d.gif"))
	assert.False(t, IsSupported("noext"))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.png")
	writePNG(t, path, 32, 16)

	img, meta, err := Load(path)
	require.NoError(t, err)
	assert.NotNil(t, img)
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, detection.ImageSize{Width: 32, Height: 16}, meta.Size)
	assert.Positive(t, meta.SizeBytes)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.jpg")
	require.NoError(t, os.WriteFile(corrupt, []byte("definitely not a jpeg"), 0o600))

	tests := []struct {
		name string
		path string
		op   string
	}{
		{"empty path", "", "open"},
		{"unsupported", filepath.Join(dir, "x.gif"), "open"},
		{"missing", filepath.Join(dir, "missing.png"), "open"},
		{"corrupt", corrupt, "decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Load(tt.path)
			var le *LoadError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, tt.op, le.Op)
		})
	}
}

func TestScaleDown(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3200, 1600))

	out, s := ScaleDown(img, 1600)
	assert.Equal(t, 1600, out.Bounds().Dx())
	assert.Equal(t, 800, out.Bounds().Dy())
	assert.InDelta(t, 0.5, s.X, 1e-9)
	assert.InDelta(t, 0.5, s.Y, 1e-9)

	small := image.NewRGBA(image.Rect(0, 0, 100, 50))
	out, s = ScaleDown(small, 1600)
	assert.Same(t, small, out)
	assert.Equal(t, detection.Identity, s)

	out, s = ScaleDown(img, 0)
	assert.Same(t, img, out)
	assert.Equal(t, detection.Identity, s)
}

// Benchmark tests.
func BenchmarkScaleDown(b *testing.B) {
	img := image.NewRGBA(image.Rect(0, 0, 4000, 3000))

	b.ResetTimer()
	for range b.N {
		_, _ = ScaleDown(img, 1280)
	}
}
