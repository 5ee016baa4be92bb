package detection

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type roundTripCase struct {
	Size  ImageSize
	Box   Box
	Scale Scale
}

// genRoundTripCase generates a box inside an image plus a scale pair.
func genRoundTripCase() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(2, 4000),
		gen.IntRange(2, 4000),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.Float64Range(0.05, 4),
		gen.Float64Range(0.05, 4),
	).Map(func(vals []interface{}) roundTripCase {
		w, ok := vals[0].(int)
		if !ok {
			panic("expected int")
		}
		h, ok := vals[1].(int)
		if !ok {
			panic("expected int")
		}
		fx0, _ := vals[2].(float64)
		fy0, _ := vals[3].(float64)
		fx1, _ := vals[4].(float64)
		fy1, _ := vals[5].(float64)
		sx, _ := vals[6].(float64)
		sy, _ := vals[7].(float64)

		x0 := int(fx0 * float64(w-1))
		y0 := int(fy0 * float64(h-1))
		x1 := x0 + 1 + int(fx1*float64(w-x0-1))
		y1 := y0 + 1 + int(fy1*float64(h-y0-1))
		return roundTripCase{
			Size:  ImageSize{Width: w, Height: h},
			Box:   Box{XMin: x0, YMin: y0, XMax: x1, YMax: y1},
			Scale: Scale{X: sx, Y: sy},
		}
	})
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// TestMapper_RoundTrip verifies original -> inference -> original stays within one pixel.
func TestMapper_RoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)
	var m Mapper

	properties.Property("round trip is within 1px", prop.ForAll(
		func(c roundTripCase) bool {
			ib, err := m.ToInference(c.Box, c.Scale)
			if err != nil {
				return false
			}
			got, err := m.ToOriginal(ib, c.Scale, c.Size)
			if err != nil {
				return false
			}
			return absInt(got.XMin-c.Box.XMin) <= 1 &&
				absInt(got.YMin-c.Box.YMin) <= 1 &&
				absInt(got.XMax-c.Box.XMax) <= 1 &&
				absInt(got.YMax-c.Box.YMax) <= 1
		},
		genRoundTripCase(),
	))

	properties.TestingRun(t)
}

// TestMapper_AlwaysInsideImage verifies arbitrary inference boxes always clamp into the image.
func TestMapper_AlwaysInsideImage(t *testing.T) {
	properties := gopter.NewProperties(nil)
	var m Mapper

	properties.Property("mapped boxes satisfy the box invariant", prop.ForAll(
		func(x, y, w, h, s float64, width, height int) bool {
			size := ImageSize{Width: width, Height: height}
			got, err := m.ToOriginal(InferenceBox{X: x, Y: y, W: w, H: h}, Scale{X: s, Y: s}, size)
			return err == nil && within(got, size)
		},
		gen.Float64Range(-5000, 5000),
		gen.Float64Range(-5000, 5000),
		gen.Float64Range(-500, 5000),
		gen.Float64Range(-500, 5000),
		gen.Float64Range(0.01, 10),
		gen.IntRange(1, 3000),
		gen.IntRange(1, 3000),
	))

	properties.TestingRun(t)
}
