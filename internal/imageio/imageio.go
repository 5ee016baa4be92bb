// Package imageio decodes input images and prepares them for inference.
package imageio

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/MeKo-Tech/bannerscan/internal/detection"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// SupportedExtensions lists the file extensions accepted as input images.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".tif", ".webp"}

// IsSupported reports whether path has a supported image extension.
func IsSupported(path string) bool {
	return slices.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(path)))
}

// LoadError describes why an image could not be opened or decoded.
type LoadError struct {
	Op   string
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Metadata describes a decoded image.
type Metadata struct {
	Path      string
	Format    string
	SizeBytes int64
	Size      detection.ImageSize
}

// Load opens and decodes an image file.
func Load(path string) (image.Image, Metadata, error) {
	if path == "" {
		return nil, Metadata{}, &LoadError{Op: "open", Path: path, Err: errors.New("empty path")}
	}
	if !IsSupported(path) {
		return nil, Metadata{}, &LoadError{Op: "open", Path: path, Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
	}

	f, err := os.Open(path) //nolint:gosec // G304: reading user supplied image paths is the point
	if err != nil {
		return nil, Metadata{}, &LoadError{Op: "open", Path: path, Err: err}
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close image file", "path", path, "error", err)
		}
	}()

	fi, err := f.Stat()
	if err != nil {
		return nil, Metadata{}, &LoadError{Op: "stat", Path: path, Err: err}
	}

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, Metadata{}, &LoadError{Op: "decode", Path: path, Err: err}
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, Metadata{}, &LoadError{Op: "decode", Path: path, Err: errors.New("image has no pixels")}
	}

	return img, Metadata{
		Path:      path,
		Format:    format,
		SizeBytes: fi.Size(),
		Size:      detection.ImageSize{Width: b.Dx(), Height: b.Dy()},
	}, nil
}

// ScaleDown shrinks img so its longest side is at most maxSide, keeping the
// aspect ratio. It returns the image to run inference on and the factors that
// map original coordinates into it. maxSide <= 0 disables scaling.
func ScaleDown(img image.Image, maxSide int) (image.Image, detection.Scale) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := max(w, h)
	if maxSide <= 0 || longest <= maxSide {
		return img, detection.Identity
	}

	s := float64(maxSide) / float64(longest)
	nw := max(1, int(float64(w)*s+0.5))
	nh := max(1, int(float64(h)*s+0.5))
	resized := imaging.Resize(img, nw, nh, imaging.Lanczos)

	return resized, detection.Scale{X: float64(nw) / float64(w), Y: float64(nh) / float64(h)}
}
