package batch

import (
	"testing"

	"github.com/MeKo-Tech/bannerscan/internal/capability"
	"github.com/MeKo-Tech/bannerscan/internal/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, capability.BackendSidecar, cfg.Detectors.PersonBackend)
	assert.Equal(t, FormatText, cfg.Format)
	assert.True(t, cfg.WriteCombined)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"no output", func(c *Config) { c.OutputDir = "" }, "output directory"},
		{"negative workers", func(c *Config) { c.Workers = -2 }, "workers"},
		{"format", func(c *Config) { c.Format = "xml" }, "unknown output format"},
		{"threshold", func(c *Config) { c.Pipeline.Thresholds[detection.CategoryBanner] = -0.1 }, "banner threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			require.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}

	var nilCfg *Config
	require.Error(t, nilCfg.Validate())
}
