//go:build !tesseract

package capability

import (
	"context"
	"fmt"
)

// TesseractRecognizer is unavailable in builds without the tesseract tag.
type TesseractRecognizer struct{}

// NewTesseractRecognizer always fails; rebuild with -tags=tesseract.
func NewTesseractRecognizer(TesseractConfig) (*TesseractRecognizer, error) {
	return nil, fmt.Errorf("tesseract: %w; build with -tags=tesseract", ErrUnavailable)
}

func (*TesseractRecognizer) RecognizeText(context.Context, Frame) (TextResult, error) {
	return TextResult{}, ErrUnavailable
}

func (*TesseractRecognizer) Close() error { return nil }
