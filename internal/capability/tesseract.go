//go:build tesseract

package capability

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/MeKo-Tech/bannerscan/internal/detection"
	"github.com/MeKo-Tech/bannerscan/internal/grouping"
	"github.com/otiai10/gosseract/v2"
)

// TesseractRecognizer reads word level text with Tesseract. Boxes are
// returned in original pixels.
type TesseractRecognizer struct {
	cfg TesseractConfig
	// gosseract clients are not safe for concurrent use.
	pool *clientPool[*gosseract.Client]
}

// NewTesseractRecognizer returns a recognizer for the configured languages.
func NewTesseractRecognizer(cfg TesseractConfig) (*TesseractRecognizer, error) {
	if cfg.Language == "" {
		cfg.Language = DefaultTesseractLanguage
	}
	size := cfg.Clients
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &TesseractRecognizer{
		cfg:  cfg,
		pool: newClientPool(size, gosseract.NewClient),
	}, nil
}

// RecognizeText implements TextRecognizer.
func (r *TesseractRecognizer) RecognizeText(ctx context.Context, f Frame) (TextResult, error) {
	if err := ctx.Err(); err != nil {
		return TextResult{}, err
	}
	client, err := r.pool.get()
	if err != nil {
		return TextResult{}, err
	}
	defer r.pool.put(client)

	if r.cfg.DataPath != "" {
		if err := client.SetTessdataPrefix(r.cfg.DataPath); err != nil {
			return TextResult{}, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(strings.Split(r.cfg.Language, "+")...); err != nil {
		return TextResult{}, fmt.Errorf("set language: %w", err)
	}
	if err := client.SetImage(f.Path); err != nil {
		return TextResult{}, fmt.Errorf("set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return TextResult{}, fmt.Errorf("OCR failed: %w", err)
	}

	frags := make([]grouping.Fragment, 0, len(boxes))
	for _, b := range boxes {
		frags = append(frags, grouping.Fragment{
			Box: detection.Box{
				XMin: b.Box.Min.X,
				YMin: b.Box.Min.Y,
				XMax: b.Box.Max.X,
				YMax: b.Box.Max.Y,
			},
			Text:       b.Word,
			Confidence: b.Confidence / 100.0,
		})
	}
	return TextResult{Fragments: frags, Scale: detection.Identity}, nil
}

// Close releases the idle clients. Clients still in use are closed when
// they are returned.
func (r *TesseractRecognizer) Close() error {
	return r.pool.close()
}
