package detection

import "math"

// ValidateThreshold returns an *InvalidThresholdError unless t is in [0, 1].
func ValidateThreshold(name string, t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return &InvalidThresholdError{Name: name, Threshold: t}
	}
	return nil
}

// Filter returns the detections with confidence >= t, preserving order.
// The input slice is never modified.
func Filter(dets []Detection, t float64) ([]Detection, error) {
	return FilterFunc(dets, t, func(d Detection) float64 { return d.Confidence })
}

// FilterFunc is Filter for any scored item.
func FilterFunc[T any](items []T, t float64, confidence func(T) float64) ([]T, error) {
	if err := ValidateThreshold("", t); err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if confidence(it) >= t {
			out = append(out, it)
		}
	}
	return out, nil
}

// Thresholds holds one confidence threshold per category.
type Thresholds map[Category]float64

// Validate checks every configured threshold.
func (th Thresholds) Validate() error {
	for _, cat := range []Category{CategoryPerson, CategoryTextFragment, CategoryBanner} {
		t, ok := th[cat]
		if !ok {
			continue
		}
		if err := ValidateThreshold(string(cat), t); err != nil {
			return err
		}
	}
	return nil
}

// For returns the threshold of a category, or 0 when none is set.
func (th Thresholds) For(cat Category) float64 {
	return th[cat]
}
