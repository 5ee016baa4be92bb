package pipeline

import (
	"fmt"
	"time"

	"github.com/MeKo-Tech/bannerscan/internal/detection"
	"github.com/MeKo-Tech/bannerscan/internal/grouping"
)

// TextSpace names the coordinate space text fragments arrive in.
type TextSpace string

const (
	// TextSpaceOriginal means fragment boxes are already original pixels.
	TextSpaceOriginal TextSpace = "original"
	// TextSpaceInference means fragment boxes must be remapped with the
	// recognizer's scale, like person boxes.
	TextSpaceInference TextSpace = "inference"
)

const (
	DefaultMaxSide         = 1600
	DefaultPersonThreshold = 0.45
	DefaultTextThreshold   = 0.3
	DefaultDetectorTimeout = 30 * time.Second
)

// Config controls per-image processing.
type Config struct {
	// MaxSide bounds the longest side of the inference image; 0 disables downscaling.
	MaxSide         int
	TextSpace       TextSpace
	Thresholds      detection.Thresholds
	Grouper         grouping.Grouper
	DetectorTimeout time.Duration
}

// DefaultConfig returns the default processing configuration.
func DefaultConfig() Config {
	return Config{
		MaxSide:   DefaultMaxSide,
		TextSpace: TextSpaceOriginal,
		Thresholds: detection.Thresholds{
			detection.CategoryPerson:       DefaultPersonThreshold,
			detection.CategoryTextFragment: DefaultTextThreshold,
			detection.CategoryBanner:       0,
		},
		Grouper:         grouping.NewGrouper(),
		DetectorTimeout: DefaultDetectorTimeout,
	}
}

// Validate rejects configurations that would make every image fail. Threshold
// problems are *detection.InvalidThresholdError and a negative inference size
// is *detection.InvalidScaleError.
func (c Config) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if c.MaxSide < 0 {
		f := float64(c.MaxSide)
		return &detection.InvalidScaleError{Scale: detection.Scale{X: f, Y: f}}
	}
	switch c.TextSpace {
	case TextSpaceOriginal, TextSpaceInference:
	default:
		return fmt.Errorf("invalid text coordinate space %q (must be %q or %q)", c.TextSpace, TextSpaceOriginal, TextSpaceInference)
	}
	if c.Grouper.MinArea < 0 || c.Grouper.RowTolerance < 0 || c.Grouper.GapTolerance < 0 {
		return fmt.Errorf("grouping tolerances must not be negative")
	}
	if c.DetectorTimeout < 0 {
		return fmt.Errorf("detector timeout must not be negative")
	}
	return nil
}
