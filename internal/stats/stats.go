// Package stats reduces persisted image records to batch statistics.
package stats

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/bannerscan/internal/record"
)

// BatchStatistics summarizes a set of image records. It is always derived from
// the full record set and never updated incrementally.
type BatchStatistics struct {
	TotalImagesProcessed     int      `json:"total_images_processed" yaml:"total_images_processed"`
	FailedImages             int      `json:"failed_images" yaml:"failed_images"`
	FailedImageIDs           []string `json:"failed_image_ids" yaml:"failed_image_ids"`
	TotalPeopleDetected      int      `json:"total_people_detected" yaml:"total_people_detected"`
	TotalBannersDetected     int      `json:"total_banners_detected" yaml:"total_banners_detected"`
	AveragePeoplePerImage    float64  `json:"average_people_per_image" yaml:"average_people_per_image"`
	AverageBannersPerImage   float64  `json:"average_banners_per_image" yaml:"average_banners_per_image"`
	AverageConfidencePeople  float64  `json:"average_confidence_people" yaml:"average_confidence_people"`
	AverageConfidenceBanners float64  `json:"average_confidence_banners" yaml:"average_confidence_banners"`
	MaxPeopleInSingleImage   int      `json:"max_people_in_single_image" yaml:"max_people_in_single_image"`
	MinPeopleInSingleImage   int      `json:"min_people_in_single_image" yaml:"min_people_in_single_image"`
	MaxBannersInSingleImage  int      `json:"max_banners_in_single_image" yaml:"max_banners_in_single_image"`
	MinBannersInSingleImage  int      `json:"min_banners_in_single_image" yaml:"min_banners_in_single_image"`
	ImagesWithPeople         int      `json:"images_with_people" yaml:"images_with_people"`
	ImagesWithBanners        int      `json:"images_with_banners" yaml:"images_with_banners"`
}

const (
	countPrecision      = 2
	confidencePrecision = 4
)

// Accumulate computes statistics over records. The result depends only on the
// multiset of records: any permutation of the input yields an identical value.
// Failed records count toward FailedImages only. Averages and extrema over an
// empty set are zero.
func Accumulate(records []record.ImageRecord) BatchStatistics {
	s := BatchStatistics{FailedImageIDs: []string{}}

	var peopleConf, bannerConf []float64
	first := true

	for _, r := range records {
		if !r.OK() {
			s.FailedImages++
			s.FailedImageIDs = append(s.FailedImageIDs, r.ImageID)
			continue
		}

		people := len(r.Detections.People)
		banners := len(r.Detections.Banners)

		s.TotalImagesProcessed++
		s.TotalPeopleDetected += people
		s.TotalBannersDetected += banners
		if people > 0 {
			s.ImagesWithPeople++
		}
		if banners > 0 {
			s.ImagesWithBanners++
		}

		if first {
			s.MaxPeopleInSingleImage, s.MinPeopleInSingleImage = people, people
			s.MaxBannersInSingleImage, s.MinBannersInSingleImage = banners, banners
			first = false
		} else {
			s.MaxPeopleInSingleImage = max(s.MaxPeopleInSingleImage, people)
			s.MinPeopleInSingleImage = min(s.MinPeopleInSingleImage, people)
			s.MaxBannersInSingleImage = max(s.MaxBannersInSingleImage, banners)
			s.MinBannersInSingleImage = min(s.MinBannersInSingleImage, banners)
		}

		for _, d := range r.Detections.People {
			peopleConf = append(peopleConf, d.Confidence)
		}
		for _, b := range r.Detections.Banners {
			bannerConf = append(bannerConf, b.Confidence)
		}
	}

	sort.Strings(s.FailedImageIDs)

	if s.TotalImagesProcessed > 0 {
		n := float64(s.TotalImagesProcessed)
		s.AveragePeoplePerImage = roundTo(float64(s.TotalPeopleDetected)/n, countPrecision)
		s.AverageBannersPerImage = roundTo(float64(s.TotalBannersDetected)/n, countPrecision)
	}
	s.AverageConfidencePeople = roundTo(mean(peopleConf), confidencePrecision)
	s.AverageConfidenceBanners = roundTo(mean(bannerConf), confidencePrecision)

	return s
}

// mean sorts values before summing so the floating point result does not
// depend on input order.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func roundTo(v float64, digits int) float64 {
	p := math.Pow10(digits)
	return math.Round(v*p) / p
}
