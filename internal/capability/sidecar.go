package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/bannerscan/internal/detection"
	"github.com/MeKo-Tech/bannerscan/internal/grouping"
)

// DefaultSidecarSuffix is appended to the image stem to find its sidecar file.
const DefaultSidecarSuffix = ".detections.json"

// SidecarScale is the JSON form of a scale pair.
type SidecarScale struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SidecarPerson is a person box as x, y, width, height in inference space.
type SidecarPerson struct {
	Box        [4]float64 `json:"box"`
	Confidence float64    `json:"confidence"`
}

// SidecarText is a text fragment box as x_min, y_min, x_max, y_max.
type SidecarText struct {
	Box        [4]int  `json:"box"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// SidecarFile holds detections produced ahead of time by another tool.
// Missing scales default to 1.
type SidecarFile struct {
	PersonScale *SidecarScale   `json:"person_scale,omitempty"`
	People      []SidecarPerson `json:"people"`
	TextScale   *SidecarScale   `json:"text_scale,omitempty"`
	Text        []SidecarText   `json:"text"`
}

// Sidecar reads detections from a JSON file stored next to each image. It
// implements both PersonDetector and TextRecognizer.
type Sidecar struct {
	Suffix string
}

// NewSidecar returns a Sidecar using suffix, or the default when empty.
func NewSidecar(suffix string) *Sidecar {
	if suffix == "" {
		suffix = DefaultSidecarSuffix
	}
	return &Sidecar{Suffix: suffix}
}

// PathFor returns the sidecar path of an image.
func (s *Sidecar) PathFor(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + s.Suffix
}

func (s *Sidecar) load(ctx context.Context, f Frame) (SidecarFile, error) {
	var sc SidecarFile
	if err := ctx.Err(); err != nil {
		return sc, err
	}
	path := s.PathFor(f.Path)
	data, err := os.ReadFile(path) //nolint:gosec // G304: sidecar next to a user supplied image
	if err != nil {
		return sc, fmt.Errorf("read sidecar: %w", err)
	}
	if err := json.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("decode sidecar %s: %w", filepath.Base(path), err)
	}
	return sc, nil
}

func (sc *SidecarScale) scale() detection.Scale {
	if sc == nil {
		return detection.Identity
	}
	return detection.Scale{X: sc.X, Y: sc.Y}
}

// DetectPeople implements PersonDetector.
func (s *Sidecar) DetectPeople(ctx context.Context, f Frame) (PersonResult, error) {
	sc, err := s.load(ctx, f)
	if err != nil {
		return PersonResult{}, err
	}
	dets := make([]detection.InferenceDetection, len(sc.People))
	for i, p := range sc.People {
		dets[i] = detection.InferenceDetection{
			Box:        detection.InferenceBox{X: p.Box[0], Y: p.Box[1], W: p.Box[2], H: p.Box[3]},
			Confidence: p.Confidence,
		}
	}
	return PersonResult{Detections: dets, Scale: sc.PersonScale.scale()}, nil
}

// RecognizeText implements TextRecognizer.
func (s *Sidecar) RecognizeText(ctx context.Context, f Frame) (TextResult, error) {
	sc, err := s.load(ctx, f)
	if err != nil {
		return TextResult{}, err
	}
	frags := make([]grouping.Fragment, len(sc.Text))
	for i, t := range sc.Text {
		frags[i] = grouping.Fragment{
			Box:        detection.Box{XMin: t.Box[0], YMin: t.Box[1], XMax: t.Box[2], YMax: t.Box[3]},
			Text:       t.Text,
			Confidence: t.Confidence,
		}
	}
	return TextResult{Fragments: frags, Scale: sc.TextScale.scale()}, nil
}

// WriteSidecar stores sc next to imagePath.
func (s *Sidecar) WriteSidecar(imagePath string, sc SidecarFile) error {
	if sc.People == nil {
		sc.People = []SidecarPerson{}
	}
	if sc.Text == nil {
		sc.Text = []SidecarText{}
	}
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.PathFor(imagePath), data, 0o600)
}
