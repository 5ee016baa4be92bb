// Package store persists image records and the batch summary as JSON files in
// one output directory. Every write is atomic; the summary is a view rebuilt
// from whatever records are on disk.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/MeKo-Tech/bannerscan/internal/record"
	"github.com/MeKo-Tech/bannerscan/internal/stats"
)

const (
	SummaryFileName  = "summary.json"
	CombinedFileName = "combined_results.json"

	recordExt  = ".json"
	tempSuffix = ".tmp"
)

// ErrRecordNotFound is returned when no record exists for an image.
var ErrRecordNotFound = errors.New("record not found")

// Summary is the content of summary.json: the batch statistics plus the names
// of record files that could not be read.
type Summary struct {
	stats.BatchStatistics `yaml:",inline"`
	Skipped               []string `json:"skipped_files,omitempty" yaml:"skipped_files,omitempty"`
}

// Options configure a Store.
type Options struct {
	// WriteCombined also writes all records to combined_results.json on rebuild.
	WriteCombined bool
	// RetryDelay is the pause before the single retry of a failed write.
	RetryDelay time.Duration
}

// Store reads and writes records below Dir.
type Store struct {
	dir  string
	opts Options

	// writeFile is replaceable in tests to inject failures.
	writeFile func(path string, data []byte) error
}

// New creates the output directory if needed and returns a Store over it.
func New(dir string, opts Options) (*Store, error) {
	if dir == "" {
		return nil, errors.New("output directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", dir, err)
	}
	return &Store{dir: dir, opts: opts, writeFile: writeFileAtomic}, nil
}

// Dir returns the output directory.
func (s *Store) Dir() string { return s.dir }

// Key returns the file name a record for imageID is stored under. The image ID
// is a slash separated path relative to the input root; the key drops the
// extension and flattens directories with "__".
func Key(imageID string) string {
	id := filepath.ToSlash(imageID)
	id = strings.TrimSuffix(id, filepath.Ext(id))
	id = strings.TrimLeft(id, "/")
	id = strings.ReplaceAll(id, "/", "__")
	if id == "" || strings.HasPrefix(id, ".") {
		id = "_" + id
	}
	return id + recordExt
}

// CheckKeys returns a *KeyCollisionError if two image IDs share a key or an ID
// maps onto one of the reserved summary files.
func CheckKeys(imageIDs []string) error {
	seen := make(map[string]string, len(imageIDs))
	for _, id := range imageIDs {
		k := Key(id)
		if isReserved(k) {
			return &KeyCollisionError{Key: k, First: id}
		}
		if prev, ok := seen[k]; ok {
			return &KeyCollisionError{Key: k, First: prev, Second: id}
		}
		seen[k] = id
	}
	return nil
}

func isReserved(name string) bool {
	return name == SummaryFileName || name == CombinedFileName
}

// PathFor returns the record path for imageID.
func (s *Store) PathFor(imageID string) string {
	return filepath.Join(s.dir, Key(imageID))
}

// WriteImageRecord atomically writes rec to its own file. A failed write is
// retried once; the second failure is returned as *PersistenceError.
func (s *Store) WriteImageRecord(ctx context.Context, rec record.ImageRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.ImageID, err)
	}
	return s.writeWithRetry(ctx, s.PathFor(rec.ImageID), data)
}

func (s *Store) writeWithRetry(ctx context.Context, path string, data []byte) error {
	err := s.writeFile(path, data)
	if err == nil {
		return nil
	}

	slog.Warn("write failed, retrying", "path", path, "error", err)
	persistenceRetries.Inc()

	if s.opts.RetryDelay > 0 {
		select {
		case <-ctx.Done():
			return &PersistenceError{Path: path, Attempts: 1, Err: ctx.Err()}
		case <-time.After(s.opts.RetryDelay):
		}
	}

	if err = s.writeFile(path, data); err != nil {
		persistenceFailures.Inc()
		return &PersistenceError{Path: path, Attempts: 2, Err: err}
	}
	return nil
}

// Records loads every record in the directory ordered by image ID. Files that
// cannot be decoded are skipped and their names returned.
func (s *Store) Records(ctx context.Context) ([]record.ImageRecord, []string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, nil, fmt.Errorf("list output directory: %w", err)
	}

	var (
		records []record.ImageRecord
		skipped []string
	)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		name := e.Name()
		if e.IsDir() || !isRecordFile(name) {
			continue
		}
		rec, err := readRecord(filepath.Join(s.dir, name))
		if err != nil {
			slog.Warn("skipping unreadable record", "file", name, "error", err)
			skipped = append(skipped, name)
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ImageID < records[j].ImageID })
	return records, skipped, nil
}

// Record loads the record stored for imageID.
func (s *Store) Record(_ context.Context, imageID string) (record.ImageRecord, error) {
	if isReserved(Key(imageID)) {
		return record.ImageRecord{}, fmt.Errorf("%s: %w", imageID, ErrRecordNotFound)
	}
	rec, err := readRecord(s.PathFor(imageID))
	if errors.Is(err, os.ErrNotExist) {
		return record.ImageRecord{}, fmt.Errorf("%s: %w", imageID, ErrRecordNotFound)
	}
	return rec, err
}

func isRecordFile(name string) bool {
	return strings.HasSuffix(name, recordExt) && !strings.HasPrefix(name, ".") && !isReserved(name)
}

func readRecord(path string) (record.ImageRecord, error) {
	var rec record.ImageRecord
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if err := rec.Validate(); err != nil {
		return rec, err
	}
	return rec, nil
}

// RebuildSummary recomputes statistics from all stored records and atomically
// replaces summary.json. Per-image files are never modified. Calling it twice
// without intervening writes produces the same summary.
func (s *Store) RebuildSummary(ctx context.Context) (Summary, error) {
	start := time.Now()
	records, skipped, err := s.Records(ctx)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		BatchStatistics: stats.Accumulate(records),
		Skipped:         skipped,
	}

	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return Summary{}, fmt.Errorf("marshal summary: %w", err)
	}
	if err := s.writeWithRetry(ctx, filepath.Join(s.dir, SummaryFileName), data); err != nil {
		return Summary{}, err
	}

	if s.opts.WriteCombined {
		if records == nil {
			records = []record.ImageRecord{}
		}
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return Summary{}, fmt.Errorf("marshal combined results: %w", err)
		}
		if err := s.writeWithRetry(ctx, filepath.Join(s.dir, CombinedFileName), data); err != nil {
			return Summary{}, err
		}
	}

	summaryRebuilds.Inc()
	slog.Debug("summary rebuilt", "records", len(records), "skipped", len(skipped), "duration", time.Since(start))
	return sum, nil
}

// ReadSummary loads summary.json as last written.
func (s *Store) ReadSummary(_ context.Context) (Summary, error) {
	var sum Summary
	data, err := os.ReadFile(filepath.Join(s.dir, SummaryFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sum, fmt.Errorf("%s: %w", SummaryFileName, ErrRecordNotFound)
		}
		return sum, err
	}
	if err := json.Unmarshal(data, &sum); err != nil {
		return sum, fmt.Errorf("decode %s: %w", SummaryFileName, err)
	}
	return sum, nil
}
