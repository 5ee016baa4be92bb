// Package record defines the canonical per-image result and its builder.
package record

import (
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/bannerscan/internal/detection"
	"github.com/MeKo-Tech/bannerscan/internal/grouping"
)

// Status is the processing outcome of one image.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// ImageInfo identifies an image and its original dimensions.
type ImageInfo struct {
	ID   string
	Size detection.ImageSize
}

// Detections groups the retained detections of an image by kind.
type Detections struct {
	People  []detection.Detection `json:"people" yaml:"people"`
	Banners []grouping.Banner     `json:"banners" yaml:"banners"`
}

// ImageRecord is the persisted result for one image. Records are values and
// share no slices with the data they were built from.
type ImageRecord struct {
	ImageID     string              `json:"image_id" yaml:"image_id"`
	ImageSize   detection.ImageSize `json:"image_size" yaml:"image_size"`
	Status      Status              `json:"status" yaml:"status"`
	Error       string              `json:"error,omitempty" yaml:"error,omitempty"`
	Detections  Detections          `json:"detections" yaml:"detections"`
	PersonCount int                 `json:"person_count" yaml:"person_count"`
	BannerCount int                 `json:"banner_count" yaml:"banner_count"`
	Timestamp   time.Time           `json:"timestamp" yaml:"timestamp"`
}

// OK reports whether the image was processed successfully.
func (r ImageRecord) OK() bool { return r.Status == StatusOK }

// Validate checks the internal consistency of a decoded record.
func (r ImageRecord) Validate() error {
	if r.ImageID == "" {
		return errors.New("record has no image_id")
	}
	switch r.Status {
	case StatusOK:
		if r.PersonCount != len(r.Detections.People) {
			return fmt.Errorf("record %s: person_count %d does not match %d people", r.ImageID, r.PersonCount, len(r.Detections.People))
		}
		if r.BannerCount != len(r.Detections.Banners) {
			return fmt.Errorf("record %s: banner_count %d does not match %d banners", r.ImageID, r.BannerCount, len(r.Detections.Banners))
		}
	case StatusFailed:
		if r.PersonCount != 0 || r.BannerCount != 0 || len(r.Detections.People) != 0 || len(r.Detections.Banners) != 0 {
			return fmt.Errorf("record %s: failed record carries detections", r.ImageID)
		}
	default:
		return fmt.Errorf("record %s: unknown status %q", r.ImageID, r.Status)
	}
	return nil
}

// Builder assembles ImageRecords.
type Builder struct {
	// Now supplies record timestamps. Defaults to time.Now.
	Now func() time.Time
}

// NewBuilder returns a Builder stamping records with the current UTC time.
func NewBuilder() *Builder {
	return &Builder{Now: time.Now}
}

func (b *Builder) now() time.Time {
	if b == nil || b.Now == nil {
		return time.Now().UTC()
	}
	return b.Now().UTC()
}

// Build returns an ok record, or a failed one when err is non-nil. Failed
// records always carry empty detection lists and zero counts.
func (b *Builder) Build(info ImageInfo, people []detection.Detection, banners []grouping.Banner, err error) ImageRecord {
	if err != nil {
		return b.Failed(info, err)
	}

	p := make([]detection.Detection, len(people))
	for i, d := range people {
		d.Category = detection.CategoryPerson
		p[i] = d
	}
	bn := make([]grouping.Banner, len(banners))
	copy(bn, banners)

	return ImageRecord{
		ImageID:     info.ID,
		ImageSize:   info.Size,
		Status:      StatusOK,
		Detections:  Detections{People: p, Banners: bn},
		PersonCount: len(p),
		BannerCount: len(bn),
		Timestamp:   b.now(),
	}
}

// Failed returns a failed record for info.
func (b *Builder) Failed(info ImageInfo, err error) ImageRecord {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return ImageRecord{
		ImageID:    info.ID,
		ImageSize:  info.Size,
		Status:     StatusFailed,
		Error:      msg,
		Detections: Detections{People: []detection.Detection{}, Banners: []grouping.Banner{}},
		Timestamp:  b.now(),
	}
}
