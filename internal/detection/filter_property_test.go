package detection

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genDetections() gopter.Gen {
	return gen.SliceOf(gen.Float64Range(0, 1).Map(func(c float64) Detection {
		return Detection{Category: CategoryPerson, Box: Box{XMax: 1, YMax: 1}, Confidence: c}
	}))
}

// TestFilter_Monotonic verifies raising the threshold never grows the output.
func TestFilter_Monotonic(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("t1 <= t2 implies |filter(t2)| <= |filter(t1)|", prop.ForAll(
		func(dets []Detection, a, b float64) bool {
			t1, t2 := min(a, b), max(a, b)
			low, err := Filter(dets, t1)
			if err != nil {
				return false
			}
			high, err := Filter(dets, t2)
			if err != nil {
				return false
			}
			return len(high) <= len(low)
		},
		genDetections(),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
	))

	properties.Property("every kept detection meets the threshold", prop.ForAll(
		func(dets []Detection, th float64) bool {
			kept, err := Filter(dets, th)
			if err != nil {
				return false
			}
			for _, d := range kept {
				if d.Confidence < th {
					return false
				}
			}
			return true
		},
		genDetections(),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}
