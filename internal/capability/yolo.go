package capability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/bannerscan/internal/detection"
	"github.com/MeKo-Tech/bannerscan/internal/mempool"
	"github.com/MeKo-Tech/bannerscan/internal/models"
	"github.com/MeKo-Tech/bannerscan/internal/onnx"
	"github.com/yalue/onnxruntime_go"
)

const (
	DefaultYOLOInputSize = 640
	DefaultIoUThreshold  = 0.45
	// DefaultMinScore discards raw candidates before NMS. The configured person
	// threshold is applied later by the pipeline.
	DefaultMinScore = 0.05

	yoloPersonClass = 0
)

// YOLOConfig configures the ONNX person detector.
type YOLOConfig struct {
	ModelPath    string
	InputSize    int
	IoUThreshold float64
	MinScore     float64
	NumThreads   int
	GPU          onnx.GPUConfig
}

// YOLOPersonDetector runs a YOLOv8 style ONNX model and keeps the person class.
type YOLOPersonDetector struct {
	cfg     YOLOConfig
	mu      sync.RWMutex
	session *onnxruntime_go.DynamicAdvancedSession
}

// NewYOLOPersonDetector loads the model and creates an inference session.
func NewYOLOPersonDetector(cfg YOLOConfig) (*YOLOPersonDetector, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("person model path is required")
	}
	cfg.ModelPath = models.Resolve(cfg.ModelPath)
	if err := models.Validate(cfg.ModelPath); err != nil {
		return nil, err
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = DefaultYOLOInputSize
	}
	if cfg.IoUThreshold <= 0 {
		cfg.IoUThreshold = DefaultIoUThreshold
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = DefaultMinScore
	}

	if err := onnx.Init(cfg.GPU.Enabled); err != nil {
		return nil, err
	}
	in, out, err := onnx.ModelIO(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	session, err := onnx.NewSession(onnx.SessionConfig{
		ModelPath:  cfg.ModelPath,
		NumThreads: cfg.NumThreads,
		GPU:        cfg.GPU,
	}, in.Name, out.Name)
	if err != nil {
		return nil, err
	}

	slog.Debug("person detector ready", "model", cfg.ModelPath, "input", in.Name, "output", out.Name, "size", cfg.InputSize)
	return &YOLOPersonDetector{cfg: cfg, session: session}, nil
}

// DetectPeople implements PersonDetector. The frame is stretched to the square
// model input, so the returned scale differs per axis.
func (d *YOLOPersonDetector) DetectPeople(ctx context.Context, f Frame) (PersonResult, error) {
	if err := ctx.Err(); err != nil {
		return PersonResult{}, err
	}
	if f.Image == nil || f.Size.Width <= 0 || f.Size.Height <= 0 {
		return PersonResult{}, errors.New("frame has no image")
	}

	size := d.cfg.InputSize
	tensor, err := onnx.ImageToTensor(f.Image, size, size)
	if err != nil {
		return PersonResult{}, err
	}
	defer tensor.Release()

	data, shape, err := d.run(tensor)
	if err != nil {
		return PersonResult{}, err
	}
	defer mempool.PutFloat32(data)
	raw, err := DecodeYOLO(data, shape, yoloPersonClass, d.cfg.MinScore)
	if err != nil {
		return PersonResult{}, err
	}

	return PersonResult{
		Detections: detection.NonMaxSuppression(raw, d.cfg.IoUThreshold),
		Scale: detection.Scale{
			X: float64(size) / float64(f.Size.Width),
			Y: float64(size) / float64(f.Size.Height),
		},
	}, nil
}

func (d *YOLOPersonDetector) run(t onnx.Tensor) ([]float32, []int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.session == nil {
		return nil, nil, errors.New("person detector is closed")
	}

	input, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(t.Shape...), t.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer func() {
		if err := input.Destroy(); err != nil {
			slog.Warn("failed to destroy input tensor", "error", err)
		}
	}()

	outputs := []onnxruntime_go.Value{nil}
	if err := d.session.Run([]onnxruntime_go.Value{input}, outputs); err != nil {
		return nil, nil, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		if err := outputs[0].Destroy(); err != nil {
			slog.Warn("failed to destroy output tensor", "error", err)
		}
	}()

	ft, ok := outputs[0].(*onnxruntime_go.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("expected float32 tensor, got %T", outputs[0])
	}
	out := ft.GetData()
	data := mempool.GetFloat32(len(out))
	copy(data, out)
	return data, []int64(outputs[0].GetShape()), nil
}

// Close releases the inference session.
func (d *YOLOPersonDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil
	}
	err := d.session.Destroy()
	d.session = nil
	return err
}

// DecodeYOLO reads a [1, 4+classes, anchors] output whose first four rows are
// center x, center y, width and height, and returns the anchors whose score for
// class is at least minScore.
func DecodeYOLO(data []float32, shape []int64, class int, minScore float64) ([]detection.InferenceDetection, error) {
	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}
	rows, anchors := int(shape[1]), int(shape[2])
	if rows < 5+class || len(data) != rows*anchors {
		return nil, fmt.Errorf("output shape %v does not hold class %d", shape, class)
	}

	scores := data[(4+class)*anchors : (5+class)*anchors]
	var out []detection.InferenceDetection
	for i, s := range scores {
		if float64(s) < minScore {
			continue
		}
		cx, cy := float64(data[i]), float64(data[anchors+i])
		w, h := float64(data[2*anchors+i]), float64(data[3*anchors+i])
		out = append(out, detection.InferenceDetection{
			Box:        detection.InferenceBox{X: cx - w/2, Y: cy - h/2, W: w, H: h},
			Confidence: float64(s),
		})
	}
	return out, nil
}
