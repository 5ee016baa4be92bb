package batch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/bannerscan/internal/imageio"
	"github.com/MeKo-Tech/bannerscan/internal/pipeline"
)

// discoverImages finds all supported images matching the given patterns. Image
// IDs are slash separated paths relative to the directory argument they were
// found under; files given directly use their base name. Only arguments that
// are neither a directory nor an image name are fatal when missing.
func discoverImages(args []string, recursive bool, includePatterns, excludePatterns []string) ([]pipeline.Task, error) {
	var tasks []pipeline.Task

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			// A named image that cannot be read still gets a task so it is
			// recorded as failed instead of aborting the batch.
			if imageio.IsSupported(arg) {
				if shouldIncludeFile(arg, includePatterns, excludePatterns) {
					slog.Warn("cannot access image", "path", arg, "error", err)
					tasks = append(tasks, pipeline.Task{ID: filepath.Base(arg), Path: arg})
				}
				continue
			}
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			found, err := discoverInDirectory(arg, recursive, includePatterns, excludePatterns)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, found...)
		} else if imageio.IsSupported(arg) && shouldIncludeFile(arg, includePatterns, excludePatterns) {
			tasks = append(tasks, pipeline.Task{ID: filepath.Base(arg), Path: arg})
		}
	}

	return tasks, nil
}

// discoverInDirectory walks dir in lexical order.
func discoverInDirectory(dir string, recursive bool, includePatterns, excludePatterns []string) ([]pipeline.Task, error) {
	var tasks []pipeline.Task

	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		if !imageio.IsSupported(path) || !shouldIncludeFile(path, includePatterns, excludePatterns) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		tasks = append(tasks, pipeline.Task{ID: filepath.ToSlash(rel), Path: path})
		return nil
	}

	return tasks, filepath.Walk(dir, walkFn)
}

// shouldIncludeFile applies exclude patterns first, then include patterns.
func shouldIncludeFile(path string, includePatterns, excludePatterns []string) bool {
	if matchesAnyPattern(path, excludePatterns) {
		return false
	}
	if len(includePatterns) == 0 {
		return true
	}
	return matchesAnyPattern(path, includePatterns)
}

// matchesAnyPattern matches the base name of path against glob patterns.
func matchesAnyPattern(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
