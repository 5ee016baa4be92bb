package detection

import "math"

// Mapper converts boxes between inference space and original image pixels.
// The zero value is ready to use.
type Mapper struct{}

// ValidateScale returns an *InvalidScaleError unless both factors are positive and finite.
func ValidateScale(s Scale) error {
	if !validFactor(s.X) || !validFactor(s.Y) {
		return &InvalidScaleError{Scale: s}
	}
	return nil
}

func validFactor(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// ToOriginal divides an inference-space box by the scale factors, rounds to the
// nearest pixel and clamps the result into the image. Boxes falling partly or
// completely outside the image are clamped, never rejected; a clamped box is at
// least one pixel wide and tall.
func (Mapper) ToOriginal(b InferenceBox, s Scale, size ImageSize) (Box, error) {
	if err := ValidateScale(s); err != nil {
		return Box{}, err
	}
	if size.Width <= 0 || size.Height <= 0 {
		return Box{}, ErrInvalidImageSize
	}

	x0, x1 := b.X, b.X+b.W
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	y0, y1 := b.Y, b.Y+b.H
	if y1 < y0 {
		y0, y1 = y1, y0
	}

	xMin, xMax := clampSpan(roundPixel(x0/s.X), roundPixel(x1/s.X), size.Width)
	yMin, yMax := clampSpan(roundPixel(y0/s.Y), roundPixel(y1/s.Y), size.Height)

	return Box{XMin: xMin, YMin: yMin, XMax: xMax, YMax: yMax}, nil
}

// ToInference multiplies an original-space box by the scale factors.
// No rounding happens, so ToOriginal(ToInference(b, s), s, size) == b for any
// box inside the image.
func (Mapper) ToInference(b Box, s Scale) (InferenceBox, error) {
	if err := ValidateScale(s); err != nil {
		return InferenceBox{}, err
	}
	return InferenceBox{
		X: float64(b.XMin) * s.X,
		Y: float64(b.YMin) * s.Y,
		W: float64(b.Width()) * s.X,
		H: float64(b.Height()) * s.Y,
	}, nil
}

// MapDetections remaps raw detections of one category into original pixels.
func (m Mapper) MapDetections(raw []InferenceDetection, cat Category, s Scale, size ImageSize) ([]Detection, error) {
	out := make([]Detection, 0, len(raw))
	for _, r := range raw {
		box, err := m.ToOriginal(r.Box, s, size)
		if err != nil {
			return nil, err
		}
		out = append(out, Detection{Category: cat, Box: box, Confidence: clampConfidence(r.Confidence)})
	}
	return out, nil
}

// roundPixel rounds half away from zero and saturates at the int range.
func roundPixel(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	r := math.Round(v)
	if r > math.MaxInt32 {
		return math.MaxInt32
	}
	if r < math.MinInt32 {
		return math.MinInt32
	}
	return int(r)
}

// clampSpan keeps lo in [0, limit-1] and hi in [lo+1, limit].
func clampSpan(lo, hi, limit int) (int, int) {
	lo = max(0, min(lo, limit-1))
	hi = max(lo+1, min(hi, limit))
	return lo, hi
}

func clampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c) || c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
