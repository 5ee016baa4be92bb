package pipeline

import "fmt"

// ImageReadError reports an image that is missing, unreadable or undecodable.
type ImageReadError struct {
	ImageID string
	Err     error
}

func (e *ImageReadError) Error() string {
	return fmt.Sprintf("failed to read image %s: %v", e.ImageID, e.Err)
}

func (e *ImageReadError) Unwrap() error { return e.Err }

// DetectorInvocationError reports a detector that failed or timed out on one image.
type DetectorInvocationError struct {
	ImageID    string
	Capability string
	Err        error
}

func (e *DetectorInvocationError) Error() string {
	return fmt.Sprintf("%s detector failed on %s: %v", e.Capability, e.ImageID, e.Err)
}

func (e *DetectorInvocationError) Unwrap() error { return e.Err }
