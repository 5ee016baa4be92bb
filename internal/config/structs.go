//nolint:lll
package config

// Config represents the complete configuration of the bannerscan application.
// It covers every command (detect, summary, serve) and is loaded from
// configuration files, environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Input discovery
	Input InputConfig `mapstructure:"input" yaml:"input" json:"input"`

	// Inference image preparation
	Inference InferenceConfig `mapstructure:"inference" yaml:"inference" json:"inference"`

	// Confidence thresholds per category
	Thresholds ThresholdConfig `mapstructure:"thresholds" yaml:"thresholds" json:"thresholds"`

	// Banner grouping
	Grouping GroupingConfig `mapstructure:"grouping" yaml:"grouping" json:"grouping"`

	// Detector backends
	Detectors DetectorsConfig `mapstructure:"detectors" yaml:"detectors" json:"detectors"`

	// Result directory and report format
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// InputConfig controls image discovery.
type InputConfig struct {
	Recursive bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Include   []string `mapstructure:"include" yaml:"include" json:"include"`
	Exclude   []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
}

// InferenceConfig controls the image handed to the detectors.
type InferenceConfig struct {
	MaxSide   int    `mapstructure:"max_side" yaml:"max_side" json:"max_side"`
	TextSpace string `mapstructure:"text_space" yaml:"text_space" json:"text_space"`
}

// ThresholdConfig holds the minimum confidences.
type ThresholdConfig struct {
	Person       float64 `mapstructure:"person" yaml:"person" json:"person"`
	TextFragment float64 `mapstructure:"text_fragment" yaml:"text_fragment" json:"text_fragment"`
	Banner       float64 `mapstructure:"banner" yaml:"banner" json:"banner"`
}

// GroupingConfig tunes how fragments merge into banners.
type GroupingConfig struct {
	MinFragmentArea int     `mapstructure:"min_fragment_area" yaml:"min_fragment_area" json:"min_fragment_area"`
	RowTolerance    float64 `mapstructure:"row_tolerance" yaml:"row_tolerance" json:"row_tolerance"`
	GapTolerance    float64 `mapstructure:"gap_tolerance" yaml:"gap_tolerance" json:"gap_tolerance"`
}

// DetectorsConfig selects and configures the detector backends.
type DetectorsConfig struct {
	TimeoutSec    int                  `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	SidecarSuffix string               `mapstructure:"sidecar_suffix" yaml:"sidecar_suffix" json:"sidecar_suffix"`
	Person        PersonDetectorConfig `mapstructure:"person" yaml:"person" json:"person"`
	Text          TextDetectorConfig   `mapstructure:"text" yaml:"text" json:"text"`
}

// PersonDetectorConfig contains person detection settings.
type PersonDetectorConfig struct {
	Backend      string    `mapstructure:"backend" yaml:"backend" json:"backend"`
	ModelPath    string    `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	InputSize    int       `mapstructure:"input_size" yaml:"input_size" json:"input_size"`
	IoUThreshold float64   `mapstructure:"iou_threshold" yaml:"iou_threshold" json:"iou_threshold"`
	NumThreads   int       `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	GPU          GPUConfig `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// TextDetectorConfig contains text recognition settings.
type TextDetectorConfig struct {
	Backend  string `mapstructure:"backend" yaml:"backend" json:"backend"`
	Language string `mapstructure:"language" yaml:"language" json:"language"`
	DataPath string `mapstructure:"data_path" yaml:"data_path" json:"data_path"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}

// OutputConfig contains result directory and report settings.
type OutputConfig struct {
	Dir      string `mapstructure:"dir" yaml:"dir" json:"dir"`
	Combined bool   `mapstructure:"combined" yaml:"combined" json:"combined"`
	Format   string `mapstructure:"format" yaml:"format" json:"format"`
	File     string `mapstructure:"file" yaml:"file" json:"file"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers  int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	Progress bool `mapstructure:"progress" yaml:"progress" json:"progress"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	// InputRoot is the directory batch requests are resolved against. Empty
	// disables POST /api/v1/batch.
	InputRoot       string `mapstructure:"input_root" yaml:"input_root" json:"input_root"`
}
