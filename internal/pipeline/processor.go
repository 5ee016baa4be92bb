// Package pipeline turns images into records: it runs the detectors, remaps,
// filters and groups their output, and fans images out over a worker pool.
package pipeline

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/bannerscan/internal/capability"
	"github.com/MeKo-Tech/bannerscan/internal/detection"
	"github.com/MeKo-Tech/bannerscan/internal/grouping"
	"github.com/MeKo-Tech/bannerscan/internal/imageio"
	"github.com/MeKo-Tech/bannerscan/internal/record"
)

const (
	capabilityPerson = "person"
	capabilityText   = "text"
)

// Task is one image to process.
type Task struct {
	// ID is the image identifier stored in its record.
	ID   string
	Path string
}

// ImageProcessor produces the record of one image. It returns an error only
// when ctx is done; per-image failures are reported as failed records.
type ImageProcessor interface {
	Process(ctx context.Context, t Task) (record.ImageRecord, error)
}

// Processor is the default ImageProcessor.
type Processor struct {
	cfg     Config
	people  capability.PersonDetector
	text    capability.TextRecognizer
	mapper  detection.Mapper
	builder *record.Builder

	load func(path string) (image.Image, imageio.Metadata, error)
}

// NewProcessor validates cfg and returns a Processor using the given detectors.
func NewProcessor(cfg Config, people capability.PersonDetector, text capability.TextRecognizer) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if people == nil {
		people = capability.None{}
	}
	if text == nil {
		text = capability.None{}
	}
	return &Processor{
		cfg:     cfg,
		people:  people,
		text:    text,
		builder: record.NewBuilder(),
		load:    imageio.Load,
	}, nil
}

// WithBuilder replaces the record builder, mainly to pin timestamps.
func (p *Processor) WithBuilder(b *record.Builder) *Processor {
	p.builder = b
	return p
}

// Process implements ImageProcessor.
func (p *Processor) Process(ctx context.Context, t Task) (record.ImageRecord, error) {
	start := time.Now()
	rec, err := p.process(ctx, t)
	if err != nil {
		return record.ImageRecord{}, err
	}

	imagesProcessed.WithLabelValues(string(rec.Status)).Inc()
	imageDuration.Observe(time.Since(start).Seconds())
	if rec.OK() {
		detectionsPerImage.WithLabelValues(string(detection.CategoryPerson)).Observe(float64(rec.PersonCount))
		detectionsPerImage.WithLabelValues(string(detection.CategoryBanner)).Observe(float64(rec.BannerCount))
	} else {
		slog.Warn("image failed", "image", t.ID, "error", rec.Error)
	}
	return rec, nil
}

func (p *Processor) process(ctx context.Context, t Task) (record.ImageRecord, error) {
	info := record.ImageInfo{ID: t.ID}
	if err := ctx.Err(); err != nil {
		return record.ImageRecord{}, err
	}

	img, meta, err := p.load(t.Path)
	if err != nil {
		return p.builder.Failed(info, &ImageReadError{ImageID: t.ID, Err: err}), nil
	}
	info.Size = meta.Size

	inferImg, scale := imageio.ScaleDown(img, p.cfg.MaxSide)
	frame := capability.Frame{ID: t.ID, Path: t.Path, Image: inferImg, Size: meta.Size, Scale: scale}

	var (
		wg        sync.WaitGroup
		peopleRes capability.PersonResult
		textRes   capability.TextResult
		peopleErr error
		textErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		peopleRes, peopleErr = invoke(ctx, p.cfg.DetectorTimeout, func(ctx context.Context) (capability.PersonResult, error) {
			return p.people.DetectPeople(ctx, frame)
		})
	}()
	go func() {
		defer wg.Done()
		textRes, textErr = invoke(ctx, p.cfg.DetectorTimeout, func(ctx context.Context) (capability.TextResult, error) {
			return p.text.RecognizeText(ctx, frame)
		})
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return record.ImageRecord{}, err
	}
	if peopleErr != nil {
		detectorFailures.WithLabelValues(capabilityPerson).Inc()
		return p.builder.Failed(info, &DetectorInvocationError{ImageID: t.ID, Capability: capabilityPerson, Err: peopleErr}), nil
	}
	if textErr != nil {
		detectorFailures.WithLabelValues(capabilityText).Inc()
		return p.builder.Failed(info, &DetectorInvocationError{ImageID: t.ID, Capability: capabilityText, Err: textErr}), nil
	}

	people, err := p.mapPeople(peopleRes, meta.Size)
	if err != nil {
		return p.builder.Failed(info, &DetectorInvocationError{ImageID: t.ID, Capability: capabilityPerson, Err: err}), nil
	}
	banners, err := p.buildBanners(textRes, meta.Size)
	if err != nil {
		return p.builder.Failed(info, &DetectorInvocationError{ImageID: t.ID, Capability: capabilityText, Err: err}), nil
	}

	return p.builder.Build(info, people, banners, nil), nil
}

func (p *Processor) mapPeople(res capability.PersonResult, size detection.ImageSize) ([]detection.Detection, error) {
	dets, err := p.mapper.MapDetections(res.Detections, detection.CategoryPerson, res.Scale, size)
	if err != nil {
		return nil, err
	}
	return detection.Filter(dets, p.cfg.Thresholds.For(detection.CategoryPerson))
}

func (p *Processor) buildBanners(res capability.TextResult, size detection.ImageSize) ([]grouping.Banner, error) {
	scale := detection.Identity
	if p.cfg.TextSpace == TextSpaceInference {
		scale = res.Scale
	}

	frags := make([]grouping.Fragment, 0, len(res.Fragments))
	for _, f := range res.Fragments {
		box, err := p.mapper.ToOriginal(detection.InferenceBox{
			X: float64(f.XMin),
			Y: float64(f.YMin),
			W: float64(f.Width()),
			H: float64(f.Height()),
		}, scale, size)
		if err != nil {
			return nil, err
		}
		f.Box = box
		frags = append(frags, f)
	}

	frags, err := grouping.FilterFragments(frags, p.cfg.Thresholds.For(detection.CategoryTextFragment))
	if err != nil {
		return nil, err
	}
	return grouping.FilterBanners(p.cfg.Grouper.Group(frags), p.cfg.Thresholds.For(detection.CategoryBanner))
}

// invoke runs fn with a deadline and returns as soon as either fn finishes or
// the deadline passes. A detector that ignores its context keeps running in
// the background, but its result is discarded.
func invoke[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- result{zero, errors.New("detector panicked")}
				slog.Error("detector panicked", "panic", r)
			}
		}()
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
