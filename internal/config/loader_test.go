package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newTestLoader() *Loader {
	return NewLoaderWithViper(viper.New())
}

func TestLoad_NoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := newTestLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Thresholds, cfg.Thresholds)
	assert.Equal(t, DefaultConfig().Output.Dir, cfg.Output.Dir)
}

func TestLoadWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	content := `
log_level: debug
thresholds:
  person: 0.6
  banner: 0.5
grouping:
  gap_tolerance: 1.5
detectors:
  person:
    backend: none
input:
  recursive: true
  include: ["*.jpg", "*.png"]
output:
  dir: /data/out
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	l := newTestLoader()
	cfg, err := l.LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.InDelta(t, 0.6, cfg.Thresholds.Person, 1e-12)
	assert.InDelta(t, 0.3, cfg.Thresholds.TextFragment, 1e-12)
	assert.InDelta(t, 0.5, cfg.Thresholds.Banner, 1e-12)
	assert.InDelta(t, 1.5, cfg.Grouping.GapTolerance, 1e-12)
	assert.Equal(t, "none", cfg.Detectors.Person.Backend)
	assert.True(t, cfg.Input.Recursive)
	assert.Equal(t, []string{"*.jpg", "*.png"}, cfg.Input.Include)
	assert.Equal(t, "/data/out", cfg.Output.Dir)
	assert.Equal(t, path, l.GetConfigFileUsed())
}

func TestLoadWithFile_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := newTestLoader().LoadWithFile(filepath.Join(dir, "missing.yaml"))
	require.ErrorContains(t, err, "does not exist")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("thresholds:\n  person: 1.4\n"), 0o600))
	_, err = newTestLoader().LoadWithFile(bad)
	require.ErrorContains(t, err, "configuration validation failed")

	cfg, err := newTestLoader().LoadWithFileWithoutValidation(bad)
	require.NoError(t, err)
	assert.InDelta(t, 1.4, cfg.Thresholds.Person, 1e-12)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("thresholds: [\n"), 0o600))
	_, err = newTestLoader().LoadWithFile(broken)
	require.ErrorContains(t, err, "error reading config file")
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BANNERSCAN_THRESHOLDS_PERSON", "0.8")
	t.Setenv("BANNERSCAN_OUTPUT_DIR", "/env/out")
	t.Setenv("BANNERSCAN_BATCH_WORKERS", "7")
	t.Setenv("BANNERSCAN_DETECTORS_PERSON_GPU_ENABLED", "true")

	cfg, err := newTestLoader().Load()
	require.NoError(t, err)
	assert.InDelta(t, 0.8, cfg.Thresholds.Person, 1e-12)
	assert.Equal(t, "/env/out", cfg.Output.Dir)
	assert.Equal(t, 7, cfg.Batch.Workers)
	assert.True(t, cfg.Detectors.Person.GPU.Enabled)
}

func TestLoad_SearchPathFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bannerscan.yaml"), []byte("batch:\n  workers: 2\n"), 0o600))

	l := newTestLoader()
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Batch.Workers)
	assert.Equal(t, "bannerscan.yaml", filepath.Base(l.GetConfigFileUsed()))
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bannerscan.yaml")

	written, err := GenerateDefaultConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var cfg Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = GenerateDefaultConfigFile(path)
	require.Error(t, err, "existing files are kept")

	loaded, err := newTestLoader().LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Grouping, loaded.Grouping)
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	paths := GetConfigSearchPaths()
	assert.Equal(t, ".", paths[0])
	assert.Contains(t, paths, filepath.Join("/xdg", "bannerscan"))
	assert.Equal(t, "/etc/bannerscan", paths[len(paths)-1])
}

func TestPrintConfigInfo(t *testing.T) {
	var buf bytes.Buffer
	newTestLoader().PrintConfigInfo(&buf)
	assert.Contains(t, buf.String(), "Environment prefix: BANNERSCAN")
}
