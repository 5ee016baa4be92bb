// Package onnx wraps ONNX Runtime environment setup and session creation.
package onnx

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/MeKo-Tech/bannerscan/internal/models"
	"github.com/yalue/onnxruntime_go"
)

// EnvLibraryPath overrides the shared library location.
const EnvLibraryPath = "BANNERSCAN_ONNXRUNTIME_LIB"

// GPUConfig selects CUDA execution.
type GPUConfig struct {
	Enabled  bool
	DeviceID int
	// MemLimit is the CUDA arena limit in bytes, 0 for unlimited.
	MemLimit uint64
}

// SessionConfig describes a single-input single-output model session.
type SessionConfig struct {
	ModelPath  string
	NumThreads int
	GPU        GPUConfig
}

var initMu sync.Mutex

// Init locates the shared library and initializes the ONNX Runtime environment
// once per process.
func Init(useGPU bool) error {
	initMu.Lock()
	defer initMu.Unlock()

	if onnxruntime_go.IsInitialized() {
		return nil
	}
	if err := setLibraryPath(useGPU); err != nil {
		return fmt.Errorf("failed to set ONNX Runtime library path: %w", err)
	}
	if err := onnxruntime_go.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}
	return nil
}

// ModelIO returns the single input and output of a model.
func ModelIO(modelPath string) (onnxruntime_go.InputOutputInfo, onnxruntime_go.InputOutputInfo, error) {
	var in, out onnxruntime_go.InputOutputInfo
	if _, err := os.Stat(modelPath); err != nil {
		return in, out, fmt.Errorf("model file not found: %s", modelPath)
	}
	inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(modelPath)
	if err != nil {
		return in, out, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return in, out, fmt.Errorf("expected 1 input and 1 output, got %d and %d", len(inputs), len(outputs))
	}
	return inputs[0], outputs[0], nil
}

// NewSession creates a dynamic session bound to the given input and output names.
func NewSession(cfg SessionConfig, input, output string) (*onnxruntime_go.DynamicAdvancedSession, error) {
	opts, err := onnxruntime_go.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			slog.Warn("failed to destroy session options", "error", err)
		}
	}()

	if cfg.GPU.Enabled {
		if err := appendCUDA(opts, cfg.GPU); err != nil {
			return nil, err
		}
	}
	if cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	session, err := onnxruntime_go.NewDynamicAdvancedSession(cfg.ModelPath, []string{input}, []string{output}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return session, nil
}

func appendCUDA(opts *onnxruntime_go.SessionOptions, gpu GPUConfig) error {
	if gpu.DeviceID < 0 {
		return fmt.Errorf("device ID must be non-negative, got %d", gpu.DeviceID)
	}
	cudaOpts, err := onnxruntime_go.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("failed to create CUDA provider options (GPU may not be available): %w", err)
	}
	defer func() {
		if err := cudaOpts.Destroy(); err != nil {
			slog.Warn("failed to destroy CUDA provider options", "error", err)
		}
	}()

	settings := map[string]string{
		"device_id":                 strconv.Itoa(gpu.DeviceID),
		"arena_extend_strategy":     "kNextPowerOfTwo",
		"do_copy_in_default_stream": "1",
	}
	if gpu.MemLimit > 0 {
		settings["gpu_mem_limit"] = strconv.FormatUint(gpu.MemLimit, 10)
	}
	if err := cudaOpts.Update(settings); err != nil {
		return fmt.Errorf("failed to update CUDA provider options: %w", err)
	}
	if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
		return fmt.Errorf("failed to append CUDA execution provider: %w", err)
	}
	return nil
}

// LibraryCandidates lists the shared library locations tried, in order.
func LibraryCandidates(useGPU bool) []string {
	var paths []string
	if p := os.Getenv(EnvLibraryPath); p != "" {
		paths = append(paths, p)
	}

	name := libraryName()
	if useGPU {
		paths = append(paths, filepath.Join("/opt/onnxruntime/gpu/lib", name))
	}
	paths = append(paths,
		filepath.Join("/usr/local/lib", name),
		filepath.Join("/usr/lib", name),
		filepath.Join("/opt/onnxruntime/cpu/lib", name),
	)

	if root, err := models.ProjectRoot(); err == nil {
		if useGPU {
			paths = append(paths, filepath.Join(root, "onnxruntime", "gpu", "lib", name))
		}
		paths = append(paths, filepath.Join(root, "onnxruntime", "lib", name))
	}
	return paths
}

func setLibraryPath(useGPU bool) error {
	for _, p := range LibraryCandidates(useGPU) {
		if _, err := os.Stat(p); err == nil {
			onnxruntime_go.SetSharedLibraryPath(p)
			slog.Debug("using ONNX Runtime library", "path", p)
			return nil
		}
	}
	return fmt.Errorf("ONNX Runtime library %s not found (set %s)", libraryName(), EnvLibraryPath)
}

func libraryName() string {
	switch runtime.GOOS {
	case "darwin":
		return "libonnxruntime.dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return "libonnxruntime.so"
	}
}
