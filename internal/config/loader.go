package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "bannerscan"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "BANNERSCAN"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance, so that flags
// bound by the root command take part in resolution.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on a private viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load loads configuration from the search paths, environment variables and
// defaults, then validates it.
func (l *Loader) Load() (*Config, error) {
	return l.load("", true)
}

// LoadWithoutValidation is Load without the final validation.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.load("", false)
}

// LoadWithFile loads configuration from a specific file path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return l.load(configFile, true)
}

// LoadWithFileWithoutValidation loads a specific file without validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	return l.load(configFile, false)
}

func (l *Loader) load(configFile string, validate bool) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// A missing config file is fine when searching; defaults and env vars apply.
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if validate {
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return &config, nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) any {
	return l.v.Get(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables maps BANNERSCAN_THRESHOLDS_PERSON to thresholds.person.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so that env vars and Unmarshal see it.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("input.recursive", d.Input.Recursive)
	l.v.SetDefault("input.include", d.Input.Include)
	l.v.SetDefault("input.exclude", d.Input.Exclude)

	l.v.SetDefault("inference.max_side", d.Inference.MaxSide)
	l.v.SetDefault("inference.text_space", d.Inference.TextSpace)

	l.v.SetDefault("thresholds.person", d.Thresholds.Person)
	l.v.SetDefault("thresholds.text_fragment", d.Thresholds.TextFragment)
	l.v.SetDefault("thresholds.banner", d.Thresholds.Banner)

	l.v.SetDefault("grouping.min_fragment_area", d.Grouping.MinFragmentArea)
	l.v.SetDefault("grouping.row_tolerance", d.Grouping.RowTolerance)
	l.v.SetDefault("grouping.gap_tolerance", d.Grouping.GapTolerance)

	l.v.SetDefault("detectors.timeout", d.Detectors.TimeoutSec)
	l.v.SetDefault("detectors.sidecar_suffix", d.Detectors.SidecarSuffix)
	l.v.SetDefault("detectors.person.backend", d.Detectors.Person.Backend)
	l.v.SetDefault("detectors.person.model_path", d.Detectors.Person.ModelPath)
	l.v.SetDefault("detectors.person.input_size", d.Detectors.Person.InputSize)
	l.v.SetDefault("detectors.person.iou_threshold", d.Detectors.Person.IoUThreshold)
	l.v.SetDefault("detectors.person.num_threads", d.Detectors.Person.NumThreads)
	l.v.SetDefault("detectors.person.gpu.enabled", d.Detectors.Person.GPU.Enabled)
	l.v.SetDefault("detectors.person.gpu.device", d.Detectors.Person.GPU.Device)
	l.v.SetDefault("detectors.person.gpu.memory_limit", d.Detectors.Person.GPU.MemoryLimit)
	l.v.SetDefault("detectors.text.backend", d.Detectors.Text.Backend)
	l.v.SetDefault("detectors.text.language", d.Detectors.Text.Language)
	l.v.SetDefault("detectors.text.data_path", d.Detectors.Text.DataPath)

	l.v.SetDefault("output.dir", d.Output.Dir)
	l.v.SetDefault("output.combined", d.Output.Combined)
	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.file", d.Output.File)

	l.v.SetDefault("batch.workers", d.Batch.Workers)
	l.v.SetDefault("batch.progress", d.Batch.Progress)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.input_root", d.Server.InputRoot)
}

// GetResolvedConfig returns the current resolved configuration for debugging.
func (l *Loader) GetResolvedConfig() map[string]any {
	return l.v.AllSettings()
}

// WriteYAML encodes cfg as YAML.
func WriteYAML(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

// GenerateDefaultConfigFile writes the default configuration to filename, or
// bannerscan.yaml when empty. Existing files are not overwritten.
func GenerateDefaultConfigFile(filename string) (string, error) {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) //nolint:gosec // G304: user chosen path
	if err != nil {
		return "", fmt.Errorf("create config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := WriteYAML(f, &cfg); err != nil {
		_ = f.Close()
		return "", err
	}
	return filename, f.Close()
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	}

	paths = append(paths, "/etc/"+ConfigFileName)

	return paths
}

// PrintConfigInfo prints information about configuration loading.
func (l *Loader) PrintConfigInfo(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Configuration file used: %s\n", l.GetConfigFileUsed())
	_, _ = fmt.Fprintf(w, "Configuration search paths: %v\n", GetConfigSearchPaths())
	_, _ = fmt.Fprintf(w, "Environment prefix: %s\n", EnvPrefix)
}
