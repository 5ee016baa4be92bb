package support

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/bannerscan/internal/batch"
	"github.com/MeKo-Tech/bannerscan/internal/capability"
	"github.com/MeKo-Tech/bannerscan/internal/detection"
	"github.com/MeKo-Tech/bannerscan/internal/record"
	"github.com/MeKo-Tech/bannerscan/internal/server"
	"github.com/MeKo-Tech/bannerscan/internal/store"
	"github.com/MeKo-Tech/bannerscan/internal/testutil"
)

const confidenceTolerance = 1e-9

// RegisterSteps registers all step definitions of the suite.
func (testCtx *TestContext) RegisterSteps(sc *godog.ScenarioContext) {
	// Input
	sc.Step(`^an empty input directory$`, testCtx.anEmptyInputDirectory)
	sc.Step(`^the street image "([^"]*)"$`, testCtx.theStreetImage)
	sc.Step(`^the corrupt image "([^"]*)"$`, testCtx.theCorruptImage)
	sc.Step(`^the empty image "([^"]*)"$`, testCtx.theEmptyImage)
	sc.Step(`^(\d+) numbered images$`, testCtx.numberedImages)

	// Batch runs
	sc.Step(`^I run a batch into "([^"]*)" with (\d+) workers?$`, testCtx.iRunABatch)
	sc.Step(`^I run a batch into "([^"]*)" with person threshold ([0-9.]+)$`, testCtx.iRunABatchWithPersonThreshold)
	sc.Step(`^the batch succeeds$`, testCtx.theBatchSucceeds)
	sc.Step(`^the batch fails with "([^"]*)"$`, testCtx.theBatchFailsWith)
	sc.Step(`^I rebuild the summary of "([^"]*)" twice$`, testCtx.iRebuildTheSummaryTwice)

	// Result directory
	sc.Step(`^"([^"]*)" contains the files "([^"]*)"$`, testCtx.containsTheFiles)
	sc.Step(`^the output directory "([^"]*)" does not exist$`, testCtx.theOutputDirectoryDoesNotExist)
	sc.Step(`^the record "([^"]*)" in "([^"]*)" has status "([^"]*)" with (\d+) people and (\d+) banners$`,
		testCtx.theRecordHasStatus)
	sc.Step(`^the record "([^"]*)" in "([^"]*)" has a person at (\d+),(\d+),(\d+),(\d+)$`,
		testCtx.theRecordHasAPersonAt)
	sc.Step(`^the record "([^"]*)" in "([^"]*)" has the banner "([^"]*)" at (\d+),(\d+),(\d+),(\d+) with confidence ([0-9.]+)$`,
		testCtx.theRecordHasTheBanner)

	// Summary
	sc.Step(`^the summary of "([^"]*)" reports (\d+) processed and (\d+) failed images$`, testCtx.theSummaryReportsProcessed)
	sc.Step(`^the summary of "([^"]*)" reports (\d+) people and (\d+) banners$`, testCtx.theSummaryReportsTotals)
	sc.Step(`^the summary of "([^"]*)" reports (\d+) images with people and (\d+) images with banners$`,
		testCtx.theSummaryReportsImagesWith)
	sc.Step(`^the summary of "([^"]*)" lists "([^"]*)" as failed$`, testCtx.theSummaryListsAsFailed)
	sc.Step(`^the summaries of "([^"]*)" and "([^"]*)" are identical$`, testCtx.theSummariesAreIdentical)
	sc.Step(`^both rebuilds produce the same summary$`, testCtx.bothRebuildsProduceTheSameSummary)

	// Server
	sc.Step(`^a server over "([^"]*)"$`, testCtx.aServerOver)
	sc.Step(`^I request "([^"]*)"$`, testCtx.iRequest)
	sc.Step(`^the response status is (\d+)$`, testCtx.theResponseStatusIs)
	sc.Step(`^the response field "([^"]*)" is (\d+)$`, testCtx.theResponseFieldIs)
}

func (testCtx *TestContext) anEmptyInputDirectory() error {
	testCtx.InputDir = filepath.Join(testCtx.TempDir, "in")
	return os.MkdirAll(testCtx.InputDir, 0o755)
}

func (testCtx *TestContext) theStreetImage(name string) error {
	_, err := testutil.SaveScenarioImage(testCtx.InputDir, name, testutil.StreetImage)
	return err
}

func (testCtx *TestContext) theCorruptImage(name string) error {
	return testutil.SaveCorruptImage(filepath.Join(testCtx.InputDir, name))
}

func (testCtx *TestContext) theEmptyImage(name string) error {
	_, err := testutil.SaveScenarioImage(testCtx.InputDir, name, capability.SidecarFile{})
	return err
}

func (testCtx *TestContext) numberedImages(n int) error {
	_, err := testutil.SaveNumberedBatch(testCtx.InputDir, n)
	return err
}

func (testCtx *TestContext) batchConfig(dir string, workers int) *batch.Config {
	cfg := batch.DefaultConfig()
	cfg.OutputDir = testCtx.outputDir(dir)
	cfg.Workers = workers
	cfg.ShowProgress = false
	cfg.Quiet = true
	return cfg
}

func (testCtx *TestContext) runBatch(cfg *batch.Config) {
	testCtx.LastResult, testCtx.LastError = batch.ProcessBatch(context.Background(), []string{testCtx.InputDir}, cfg)
}

func (testCtx *TestContext) iRunABatch(dir string, workers int) error {
	testCtx.runBatch(testCtx.batchConfig(dir, workers))
	// Later steps of a Given chain rely on the run having worked.
	return testCtx.LastError
}

func (testCtx *TestContext) iRunABatchWithPersonThreshold(dir string, threshold float64) error {
	cfg := testCtx.batchConfig(dir, 1)
	cfg.Pipeline.Thresholds[detection.CategoryPerson] = threshold
	testCtx.runBatch(cfg)
	return nil
}

func (testCtx *TestContext) theBatchSucceeds() error {
	if testCtx.LastError != nil {
		return fmt.Errorf("batch failed: %w", testCtx.LastError)
	}
	if testCtx.LastResult == nil || !testCtx.LastResult.SummaryWritten {
		return errors.New("batch did not write a summary")
	}
	return nil
}

func (testCtx *TestContext) theBatchFailsWith(fragment string) error {
	if testCtx.LastError == nil {
		return errors.New("expected the batch to fail")
	}
	if !strings.Contains(testCtx.LastError.Error(), fragment) {
		return fmt.Errorf("error %q does not mention %q", testCtx.LastError, fragment)
	}
	return nil
}

func (testCtx *TestContext) iRebuildTheSummaryTwice(dir string) error {
	for range 2 {
		sum, err := batch.RebuildSummary(context.Background(), testCtx.outputDir(dir), true)
		if err != nil {
			return err
		}
		testCtx.Rebuilds = append(testCtx.Rebuilds, sum)
	}
	return nil
}

func (testCtx *TestContext) containsTheFiles(dir, list string) error {
	for _, name := range strings.Split(list, ",") {
		path := filepath.Join(testCtx.outputDir(dir), strings.TrimSpace(name))
		if !testutil.FileExists(path) {
			return fmt.Errorf("expected file %s", path)
		}
	}
	return nil
}

func (testCtx *TestContext) theOutputDirectoryDoesNotExist(dir string) error {
	if _, err := os.Stat(testCtx.outputDir(dir)); !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("output directory %s exists (stat error: %v)", dir, err)
	}
	return nil
}

func (testCtx *TestContext) readRecord(imageID, dir string) (record.ImageRecord, error) {
	st, err := store.New(testCtx.outputDir(dir), store.Options{})
	if err != nil {
		return record.ImageRecord{}, err
	}
	return st.Record(context.Background(), imageID)
}

func (testCtx *TestContext) theRecordHasStatus(imageID, dir, status string, people, banners int) error {
	rec, err := testCtx.readRecord(imageID, dir)
	if err != nil {
		return err
	}
	if string(rec.Status) != status {
		return fmt.Errorf("status: got %q, want %q (error: %s)", rec.Status, status, rec.Error)
	}
	if rec.PersonCount != people || rec.BannerCount != banners {
		return fmt.Errorf("counts: got %d people and %d banners, want %d and %d",
			rec.PersonCount, rec.BannerCount, people, banners)
	}
	return nil
}

func (testCtx *TestContext) theRecordHasAPersonAt(imageID, dir string, x1, y1, x2, y2 int) error {
	rec, err := testCtx.readRecord(imageID, dir)
	if err != nil {
		return err
	}
	want := detection.Box{XMin: x1, YMin: y1, XMax: x2, YMax: y2}
	for _, p := range rec.Detections.People {
		if p.Box == want {
			return nil
		}
	}
	return fmt.Errorf("no person at %+v in %+v", want, rec.Detections.People)
}

func (testCtx *TestContext) theRecordHasTheBanner(imageID, dir, text string, x1, y1, x2, y2 int, confidence float64) error {
	rec, err := testCtx.readRecord(imageID, dir)
	if err != nil {
		return err
	}
	want := detection.Box{XMin: x1, YMin: y1, XMax: x2, YMax: y2}
	for _, b := range rec.Detections.Banners {
		if b.Text != text {
			continue
		}
		if b.Box != want {
			return fmt.Errorf("banner %q: box %+v, want %+v", text, b.Box, want)
		}
		if math.Abs(b.Confidence-confidence) > confidenceTolerance {
			return fmt.Errorf("banner %q: confidence %v, want %v", text, b.Confidence, confidence)
		}
		return nil
	}
	return fmt.Errorf("no banner %q in %+v", text, rec.Detections.Banners)
}

func (testCtx *TestContext) readSummary(dir string) (store.Summary, error) {
	st, err := store.New(testCtx.outputDir(dir), store.Options{})
	if err != nil {
		return store.Summary{}, err
	}
	return st.ReadSummary(context.Background())
}

func (testCtx *TestContext) theSummaryReportsProcessed(dir string, processed, failed int) error {
	sum, err := testCtx.readSummary(dir)
	if err != nil {
		return err
	}
	if sum.TotalImagesProcessed != processed || sum.FailedImages != failed {
		return fmt.Errorf("got %d processed and %d failed, want %d and %d",
			sum.TotalImagesProcessed, sum.FailedImages, processed, failed)
	}
	return nil
}

func (testCtx *TestContext) theSummaryReportsTotals(dir string, people, banners int) error {
	sum, err := testCtx.readSummary(dir)
	if err != nil {
		return err
	}
	if sum.TotalPeopleDetected != people || sum.TotalBannersDetected != banners {
		return fmt.Errorf("got %d people and %d banners, want %d and %d",
			sum.TotalPeopleDetected, sum.TotalBannersDetected, people, banners)
	}
	return nil
}

func (testCtx *TestContext) theSummaryReportsImagesWith(dir string, withPeople, withBanners int) error {
	sum, err := testCtx.readSummary(dir)
	if err != nil {
		return err
	}
	if sum.ImagesWithPeople != withPeople || sum.ImagesWithBanners != withBanners {
		return fmt.Errorf("got %d images with people and %d with banners, want %d and %d",
			sum.ImagesWithPeople, sum.ImagesWithBanners, withPeople, withBanners)
	}
	return nil
}

func (testCtx *TestContext) theSummaryListsAsFailed(dir, imageID string) error {
	sum, err := testCtx.readSummary(dir)
	if err != nil {
		return err
	}
	for _, id := range sum.FailedImageIDs {
		if id == imageID {
			return nil
		}
	}
	return fmt.Errorf("%s not in failed ids %v", imageID, sum.FailedImageIDs)
}

func (testCtx *TestContext) theSummariesAreIdentical(a, b string) error {
	first, err := os.ReadFile(filepath.Join(testCtx.outputDir(a), store.SummaryFileName))
	if err != nil {
		return err
	}
	second, err := os.ReadFile(filepath.Join(testCtx.outputDir(b), store.SummaryFileName))
	if err != nil {
		return err
	}
	if string(first) != string(second) {
		return fmt.Errorf("summaries differ:\n%s\n---\n%s", first, second)
	}
	return nil
}

func (testCtx *TestContext) bothRebuildsProduceTheSameSummary() error {
	if len(testCtx.Rebuilds) != 2 {
		return fmt.Errorf("expected 2 rebuilds, got %d", len(testCtx.Rebuilds))
	}
	if !reflect.DeepEqual(testCtx.Rebuilds[0], testCtx.Rebuilds[1]) {
		return fmt.Errorf("rebuilds differ: %+v vs %+v", testCtx.Rebuilds[0], testCtx.Rebuilds[1])
	}
	return nil
}

func (testCtx *TestContext) aServerOver(dir string) error {
	cfg := testCtx.batchConfig(dir, 1)
	srv, err := server.NewServer(server.Config{InputRoot: testCtx.InputDir, Batch: cfg, Version: "test"})
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	testCtx.Server = srv
	testCtx.HTTPServer = httptest.NewServer(mux)
	return nil
}

func (testCtx *TestContext) iRequest(path string) error {
	if testCtx.HTTPServer == nil {
		return errors.New("no server running")
	}
	resp, err := http.Get(testCtx.HTTPServer.URL + path)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	testCtx.LastStatus = resp.StatusCode
	testCtx.LastResponse = map[string]any{}
	return json.NewDecoder(resp.Body).Decode(&testCtx.LastResponse)
}

func (testCtx *TestContext) theResponseStatusIs(status int) error {
	if testCtx.LastStatus != status {
		return fmt.Errorf("status: got %d, want %d (%v)", testCtx.LastStatus, status, testCtx.LastResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseFieldIs(field string, want int) error {
	raw, ok := testCtx.LastResponse[field]
	if !ok {
		return fmt.Errorf("response has no field %q: %v", field, testCtx.LastResponse)
	}
	got, ok := raw.(float64)
	if !ok || got != float64(want) {
		return fmt.Errorf("%s: got %v, want %s", field, raw, strconv.Itoa(want))
	}
	return nil
}
