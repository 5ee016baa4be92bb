package detection

import (
	"errors"
	"fmt"
)

// ErrInvalidImageSize is returned when a box is mapped into an image without pixels.
var ErrInvalidImageSize = errors.New("image size must be positive")

// InvalidScaleError reports a non-positive or non-finite scale factor.
type InvalidScaleError struct {
	Scale Scale
}

func (e *InvalidScaleError) Error() string {
	return fmt.Sprintf("invalid scale factors (%g, %g): both must be positive and finite", e.Scale.X, e.Scale.Y)
}

// InvalidThresholdError reports a confidence threshold outside [0, 1].
type InvalidThresholdError struct {
	Name      string
	Threshold float64
}

func (e *InvalidThresholdError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("invalid confidence threshold %g: must be between 0.0 and 1.0", e.Threshold)
	}
	return fmt.Sprintf("invalid %s threshold %g: must be between 0.0 and 1.0", e.Name, e.Threshold)
}
