// Package grouping merges OCR text fragments that belong to the same printed
// line into banners.
package grouping

import (
	"math"
	"sort"
	"strings"

	"github.com/MeKo-Tech/bannerscan/internal/detection"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultMinArea      = 100
	DefaultRowTolerance = 0.5
	DefaultGapTolerance = 1.0
)

// Fragment is a single OCR text box in original image pixels.
type Fragment struct {
	detection.Box
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Banner is a group of fragments read as one line of text.
type Banner struct {
	detection.Detection `yaml:",inline"`
	Text string `json:"text" yaml:"text"`
}

// Grouper clusters fragments into banners. Both tolerances are multiples of the
// mean height of the two fragments being compared.
type Grouper struct {
	// MinArea drops fragments smaller than this many square pixels.
	MinArea int
	// RowTolerance bounds the vertical distance between fragment centers.
	RowTolerance float64
	// GapTolerance bounds the horizontal gap between facing edges. Overlap
	// (a negative gap) always satisfies it.
	GapTolerance float64
}

// NewGrouper returns a Grouper with the default tolerances.
func NewGrouper() Grouper {
	return Grouper{
		MinArea:      DefaultMinArea,
		RowTolerance: DefaultRowTolerance,
		GapTolerance: DefaultGapTolerance,
	}
}

// Group returns the banners formed by fragments, ordered top to bottom then
// left to right. The input is not modified.
func (g Grouper) Group(fragments []Fragment) []Banner {
	frags := g.prepare(fragments)
	if len(frags) == 0 {
		return []Banner{}
	}

	ds := newDisjointSet(len(frags))
	for i := range frags {
		for j := i + 1; j < len(frags); j++ {
			if g.adjacent(frags[i], frags[j]) {
				ds.union(i, j)
			}
		}
	}

	comps := ds.components()
	banners := make([]Banner, 0, len(comps))
	for _, members := range comps {
		banners = append(banners, merge(frags, members))
	}

	sort.Slice(banners, func(i, j int) bool {
		a, b := banners[i], banners[j]
		if a.YMin != b.YMin {
			return a.YMin < b.YMin
		}
		if a.XMin != b.XMin {
			return a.XMin < b.XMin
		}
		if a.Text != b.Text {
			return a.Text < b.Text
		}
		if a.XMax != b.XMax {
			return a.XMax < b.XMax
		}
		if a.YMax != b.YMax {
			return a.YMax < b.YMax
		}
		return a.Confidence < b.Confidence
	})
	return banners
}

// prepare normalizes text and drops noise and empty fragments.
func (g Grouper) prepare(fragments []Fragment) []Fragment {
	out := make([]Fragment, 0, len(fragments))
	for _, f := range fragments {
		if f.Width() <= 0 || f.Height() <= 0 || f.Area() < g.MinArea {
			continue
		}
		text := strings.Join(strings.Fields(norm.NFC.String(f.Text)), " ")
		if text == "" {
			continue
		}
		f.Text = text
		out = append(out, f)
	}
	return out
}

func (g Grouper) adjacent(a, b Fragment) bool {
	h := float64(a.Height()+b.Height()) / 2
	if math.Abs(a.CenterY()-b.CenterY()) > g.RowTolerance*h {
		return false
	}
	left, right := a, b
	if right.XMin < left.XMin {
		left, right = right, left
	}
	gap := float64(right.XMin - left.XMax)
	return gap <= g.GapTolerance*h
}

// merge builds one banner from the fragments at the given indices.
func merge(frags []Fragment, members []int) Banner {
	parts := make([]Fragment, len(members))
	for i, m := range members {
		parts[i] = frags[m]
	}
	sort.Slice(parts, func(i, j int) bool {
		ci, cj := parts[i].CenterY(), parts[j].CenterY()
		if ci != cj {
			return ci < cj
		}
		if parts[i].XMin != parts[j].XMin {
			return parts[i].XMin < parts[j].XMin
		}
		if parts[i].Text != parts[j].Text {
			return parts[i].Text < parts[j].Text
		}
		if parts[i].XMax != parts[j].XMax {
			return parts[i].XMax < parts[j].XMax
		}
		if parts[i].YMax != parts[j].YMax {
			return parts[i].YMax < parts[j].YMax
		}
		return parts[i].Confidence < parts[j].Confidence
	})

	box := parts[0].Box
	texts := make([]string, len(parts))
	var sum float64
	for i, p := range parts {
		box = box.Union(p.Box)
		texts[i] = p.Text
		sum += p.Confidence
	}

	return Banner{
		Detection: detection.Detection{
			Category:   detection.CategoryBanner,
			Box:        box,
			Confidence: sum / float64(len(parts)),
		},
		Text: strings.Join(texts, " "),
	}
}

// FilterBanners keeps banners whose confidence is at least t.
func FilterBanners(banners []Banner, t float64) ([]Banner, error) {
	return detection.FilterFunc(banners, t, func(b Banner) float64 { return b.Confidence })
}

// FilterFragments keeps fragments whose confidence is at least t.
func FilterFragments(fragments []Fragment, t float64) ([]Fragment, error) {
	return detection.FilterFunc(fragments, t, func(f Fragment) float64 { return f.Confidence })
}
