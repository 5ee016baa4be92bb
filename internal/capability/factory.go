package capability

import (
	"errors"
	"fmt"
	"io"
)

// Backend names accepted in configuration.
const (
	BackendSidecar   = "sidecar"
	BackendONNX      = "onnx"
	BackendTesseract = "tesseract"
	BackendNone      = "none"
)

// PersonBackends and TextBackends list the valid backend names.
var (
	PersonBackends = []string{BackendSidecar, BackendONNX, BackendNone}
	TextBackends   = []string{BackendSidecar, BackendTesseract, BackendNone}
)

// Options select and configure the detector backends.
type Options struct {
	PersonBackend string
	TextBackend   string
	SidecarSuffix string
	YOLO          YOLOConfig
	Tesseract     TesseractConfig
}

// Set is an opened pair of detectors.
type Set struct {
	People  PersonDetector
	Text    TextRecognizer
	closers []io.Closer
}

// Open creates the configured detectors. The caller must Close the set.
func Open(opts Options) (*Set, error) {
	s := &Set{}

	switch opts.PersonBackend {
	case BackendSidecar:
		s.People = NewSidecar(opts.SidecarSuffix)
	case BackendONNX:
		d, err := NewYOLOPersonDetector(opts.YOLO)
		if err != nil {
			return nil, fmt.Errorf("open person detector: %w", err)
		}
		s.People = d
		s.closers = append(s.closers, d)
	case BackendNone, "":
		s.People = None{}
	default:
		return nil, fmt.Errorf("unknown person detector backend %q", opts.PersonBackend)
	}

	switch opts.TextBackend {
	case BackendSidecar:
		s.Text = NewSidecar(opts.SidecarSuffix)
	case BackendTesseract:
		r, err := NewTesseractRecognizer(opts.Tesseract)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("open text recognizer: %w", err)
		}
		s.Text = r
		s.closers = append(s.closers, r)
	case BackendNone, "":
		s.Text = None{}
	default:
		_ = s.Close()
		return nil, fmt.Errorf("unknown text recognizer backend %q", opts.TextBackend)
	}

	return s, nil
}

// Close releases every backend that holds resources.
func (s *Set) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
