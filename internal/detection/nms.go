package detection

import "sort"

// IoU computes intersection over union of two inference boxes.
func IoU(a, b InferenceBox) float64 {
	ix0 := max(a.X, b.X)
	iy0 := max(a.Y, b.Y)
	ix1 := min(a.X+a.W, b.X+b.W)
	iy1 := min(a.Y+a.H, b.Y+b.H)
	if ix1 <= ix0 || iy1 <= iy0 {
		return 0
	}
	inter := (ix1 - ix0) * (iy1 - iy0)
	union := a.W*a.H + b.W*b.H - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// NonMaxSuppression keeps the highest scoring box of every overlapping cluster.
// Boxes overlapping a kept box by more than iouThreshold are discarded.
func NonMaxSuppression(dets []InferenceDetection, iouThreshold float64) []InferenceDetection {
	if len(dets) <= 1 {
		return append([]InferenceDetection(nil), dets...)
	}

	indices := make([]int, len(dets))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(i, j int) bool {
		return dets[indices[i]].Confidence > dets[indices[j]].Confidence
	})

	suppressed := make([]bool, len(dets))
	kept := make([]InferenceDetection, 0, len(dets))
	for _, a := range indices {
		if suppressed[a] {
			continue
		}
		kept = append(kept, dets[a])
		for _, b := range indices {
			if suppressed[b] || a == b {
				continue
			}
			if IoU(dets[a].Box, dets[b].Box) > iouThreshold {
				suppressed[b] = true
			}
		}
	}
	return kept
}
