// Package models locates model files on disk.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultModelsDir is the models directory below the project root.
	DefaultModelsDir = "models"

	// EnvModelsDir overrides the models directory.
	EnvModelsDir = "BANNERSCAN_MODELS_DIR"

	// PersonYOLOv8n is the default person detection model.
	PersonYOLOv8n = "yolov8n.onnx"

	TypeDetection = "detection"
)

// Dir returns the models directory.
// Priority: 1. explicit dir, 2. environment variable, 3. project root + default.
func Dir(dir string) string {
	if dir != "" {
		return dir
	}
	if env := os.Getenv(EnvModelsDir); env != "" {
		return env
	}
	if root, err := ProjectRoot(); err == nil {
		return filepath.Join(root, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// Resolve maps a configured model path to a file that exists. Absolute paths
// and paths that exist relative to the working directory are returned as is.
// Bare names are looked up in the models directory, first below detection/
// and then flat. When nothing matches the input is returned unchanged so the
// caller reports the path the user configured.
func Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || exists(path) {
		return path
	}

	base := Dir("")
	for _, candidate := range []string{
		filepath.Join(base, TypeDetection, path),
		filepath.Join(base, path),
		filepath.Join(base, filepath.Base(path)),
	} {
		if exists(candidate) {
			return candidate
		}
	}
	return path
}

// Validate checks that a model file exists.
func Validate(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("model file not found: %s (set %s or use an absolute path)", path, EnvModelsDir)
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("model path is a directory: %s", path)
	}
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ProjectRoot walks up from the working directory to the nearest go.mod.
func ProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root")
		}
		dir = parent
	}
}
