// Package capability defines the contracts of the external person detector and
// text recognizer, and the adapters that implement them.
package capability

import (
	"context"
	"errors"
	"image"

	"github.com/MeKo-Tech/bannerscan/internal/detection"
	"github.com/MeKo-Tech/bannerscan/internal/grouping"
)

// ErrUnavailable is returned by adapters whose backend is not linked or configured.
var ErrUnavailable = errors.New("capability backend unavailable")

// Frame is one image handed to the detectors. Image may already be downscaled
// for inference; Scale maps original coordinates into it.
type Frame struct {
	ID    string
	Path  string
	Image image.Image
	Size  detection.ImageSize
	Scale detection.Scale
}

// PersonResult is the raw output of a person detector. Boxes are in the space
// described by Scale.
type PersonResult struct {
	Detections []detection.InferenceDetection
	Scale      detection.Scale
}

// TextResult is the raw output of a text recognizer. Scale describes the space
// of the fragment boxes when they are not already in original pixels.
type TextResult struct {
	Fragments []grouping.Fragment
	Scale     detection.Scale
}

// PersonDetector finds people in an image.
type PersonDetector interface {
	DetectPeople(ctx context.Context, f Frame) (PersonResult, error)
}

// TextRecognizer finds and reads text fragments in an image.
type TextRecognizer interface {
	RecognizeText(ctx context.Context, f Frame) (TextResult, error)
}

// PersonDetectorFunc adapts a function to PersonDetector.
type PersonDetectorFunc func(ctx context.Context, f Frame) (PersonResult, error)

func (fn PersonDetectorFunc) DetectPeople(ctx context.Context, f Frame) (PersonResult, error) {
	return fn(ctx, f)
}

// TextRecognizerFunc adapts a function to TextRecognizer.
type TextRecognizerFunc func(ctx context.Context, f Frame) (TextResult, error)

func (fn TextRecognizerFunc) RecognizeText(ctx context.Context, f Frame) (TextResult, error) {
	return fn(ctx, f)
}

// None detects nothing. It stands in for a disabled capability.
type None struct{}

func (None) DetectPeople(context.Context, Frame) (PersonResult, error) {
	return PersonResult{Detections: []detection.InferenceDetection{}, Scale: detection.Identity}, nil
}

func (None) RecognizeText(context.Context, Frame) (TextResult, error) {
	return TextResult{Fragments: []grouping.Fragment{}, Scale: detection.Identity}, nil
}
