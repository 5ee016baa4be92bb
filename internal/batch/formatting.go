package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/bannerscan/internal/store"
)

// formatResult renders a batch result in the given format.
func formatResult(r *Result, format string) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(r)
	case FormatYAML:
		return formatYAML(r)
	case FormatCSV:
		return formatCSV(r)
	case FormatText, "":
		return formatText(r), nil
	default:
		return "", fmt.Errorf("unknown output format %q", format)
	}
}

type imageLine struct {
	ImageID     string `json:"image_id" yaml:"image_id"`
	Status      string `json:"status" yaml:"status"`
	PersonCount int    `json:"person_count" yaml:"person_count"`
	BannerCount int    `json:"banner_count" yaml:"banner_count"`
	Persisted   bool   `json:"persisted" yaml:"persisted"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

type report struct {
	OutputDir string         `json:"output_dir" yaml:"output_dir"`
	Cancelled bool           `json:"cancelled" yaml:"cancelled"`
	Run       runCounts      `json:"run" yaml:"run"`
	Summary   *store.Summary `json:"summary,omitempty" yaml:"summary,omitempty"`
	Images    []imageLine    `json:"images" yaml:"images"`
}

type runCounts struct {
	Total     int `json:"total" yaml:"total"`
	Processed int `json:"processed" yaml:"processed"`
	Failed    int `json:"failed" yaml:"failed"`
	Unsaved   int `json:"unsaved" yaml:"unsaved"`
	Skipped   int `json:"skipped" yaml:"skipped"`
}

func buildReport(r *Result) report {
	rep := report{
		OutputDir: r.OutputDir,
		Cancelled: r.Cancelled,
		Run:       runCounts(r.Run),
		Images:    make([]imageLine, 0, len(r.Outcomes)),
	}
	if r.SummaryWritten {
		s := r.Summary
		rep.Summary = &s
	}
	for _, o := range r.Outcomes {
		line := imageLine{ImageID: o.Task.ID, Status: "skipped"}
		if o.Done {
			line.Status = string(o.Record.Status)
			line.PersonCount = o.Record.PersonCount
			line.BannerCount = o.Record.BannerCount
			line.Persisted = o.Persisted()
			line.Error = o.Record.Error
			if o.Err != nil {
				line.Error = o.Err.Error()
			}
		}
		rep.Images = append(rep.Images, line)
	}
	return rep
}

func formatJSON(r *Result) (string, error) {
	bts, err := json.MarshalIndent(buildReport(r), "", "  ")
	return string(bts) + "\n", err
}

func formatYAML(r *Result) (string, error) {
	var sb strings.Builder
	enc := yaml.NewEncoder(&sb)
	enc.SetIndent(2)
	if err := enc.Encode(buildReport(r)); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func formatCSV(r *Result) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	if err := writer.Write([]string{"image_id", "status", "person_count", "banner_count", "persisted", "error"}); err != nil {
		return "", err
	}
	for _, line := range buildReport(r).Images {
		if err := writer.Write([]string{
			line.ImageID,
			line.Status,
			strconv.Itoa(line.PersonCount),
			strconv.Itoa(line.BannerCount),
			strconv.FormatBool(line.Persisted),
			line.Error,
		}); err != nil {
			return "", err
		}
	}
	writer.Flush()
	return output.String(), writer.Error()
}

func formatText(r *Result) string {
	var sb strings.Builder
	for _, line := range buildReport(r).Images {
		switch {
		case line.Status == "skipped":
			fmt.Fprintf(&sb, "- %s: skipped\n", line.ImageID)
		case line.Error != "":
			fmt.Fprintf(&sb, "✗ %s: %s\n", line.ImageID, line.Error)
		default:
			fmt.Fprintf(&sb, "✓ %s: %d people, %d banners\n", line.ImageID, line.PersonCount, line.BannerCount)
		}
	}
	if r.SummaryWritten {
		sb.WriteString("\n")
		sb.WriteString(FormatSummaryText(r.Summary))
	}
	return sb.String()
}

// FormatSummaryText renders batch statistics for humans.
func FormatSummaryText(s store.Summary) string {
	var sb strings.Builder
	sb.WriteString("Batch Summary:\n")
	fmt.Fprintf(&sb, "  Images processed: %d\n", s.TotalImagesProcessed)
	fmt.Fprintf(&sb, "  Failed images: %d\n", s.FailedImages)
	if len(s.FailedImageIDs) > 0 {
		fmt.Fprintf(&sb, "  Failed IDs: %s\n", strings.Join(s.FailedImageIDs, ", "))
	}
	fmt.Fprintf(&sb, "  People: %d (avg %.2f/image, confidence %.4f, min %d, max %d, in %d images)\n",
		s.TotalPeopleDetected, s.AveragePeoplePerImage, s.AverageConfidencePeople,
		s.MinPeopleInSingleImage, s.MaxPeopleInSingleImage, s.ImagesWithPeople)
	fmt.Fprintf(&sb, "  Banners: %d (avg %.2f/image, confidence %.4f, min %d, max %d, in %d images)\n",
		s.TotalBannersDetected, s.AverageBannersPerImage, s.AverageConfidenceBanners,
		s.MinBannersInSingleImage, s.MaxBannersInSingleImage, s.ImagesWithBanners)
	if len(s.Skipped) > 0 {
		fmt.Fprintf(&sb, "  Unreadable record files: %s\n", strings.Join(s.Skipped, ", "))
	}
	return sb.String()
}

func writeOutputFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
