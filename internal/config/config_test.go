package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "maizemap/internal/errors"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pricesurface.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "additive", cfg.Pipeline.SeasonalMethod)
				assert.Equal(t, "ratio", cfg.Pipeline.IndexMode)
				assert.Equal(t, "-", cfg.Pipeline.MissingSentinel)
				assert.Equal(t, []string{"tps", "idw", "rf"}, cfg.Interpolation.Methods)
				assert.Equal(t, 500, cfg.Interpolation.ForestTrees)
				assert.Equal(t, 2.0, cfg.Interpolation.IDWPower)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Empty(t, cfg.Pipeline.Anchor)
			},
		},
		{
			name: "file overrides defaults",
			file: `
pipeline:
  anchor: Lilongwe
  seasonal_method: multiplicative
  timeout: 5m
interpolation:
  methods: [idw]
  resolution: 0.1
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "Lilongwe", cfg.Pipeline.Anchor)
				assert.Equal(t, "multiplicative", cfg.Pipeline.SeasonalMethod)
				assert.Equal(t, 5*time.Minute, cfg.Pipeline.Timeout)
				assert.Equal(t, []string{"idw"}, cfg.Interpolation.Methods)
				assert.Equal(t, 0.1, cfg.Interpolation.Resolution)
				assert.Equal(t, "ratio", cfg.Pipeline.IndexMode, "unset keys keep defaults")
			},
		},
		{
			name: "env takes precedence over file",
			file: "pipeline:\n  anchor: Lilongwe\n",
			env: map[string]string{
				"MAIZE_PIPELINE_ANCHOR":          "Mzuzu",
				"MAIZE_INTERPOLATION_METHODS":    "tps,rf",
				"MAIZE_INTERPOLATION_RESOLUTION": "0.25",
				"MAIZE_LOGGING_LEVEL":            "debug",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "Mzuzu", cfg.Pipeline.Anchor)
				assert.Equal(t, []string{"tps", "rf"}, cfg.Interpolation.Methods)
				assert.Equal(t, 0.25, cfg.Interpolation.Resolution)
				assert.Equal(t, "debug", cfg.Logging.Level)
			},
		},
		{
			name:    "unknown file key",
			file:    "pipeline:\n  anchr: Lilongwe\n",
			wantErr: true,
		},
		{
			name:    "bad env value",
			env:     map[string]string{"MAIZE_INTERPOLATION_FOREST_TREES": "many"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file)
			}

			cfg, err := Load(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Pipeline.Anchor = "Lilongwe"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"anchor is required", func(c *Config) { c.Pipeline.Anchor = "" }, "anchor"},
		{"unknown seasonal method", func(c *Config) { c.Pipeline.SeasonalMethod = "stl" }, "seasonal_method"},
		{"sentinel is one character", func(c *Config) { c.Pipeline.MissingSentinel = "NA" }, "missing_sentinel"},
		{"no methods", func(c *Config) { c.Interpolation.Methods = nil }, "methods"},
		{"unknown method", func(c *Config) { c.Interpolation.Methods = []string{"tps", "kriging"} }, "methods"},
		{"non-positive resolution", func(c *Config) { c.Interpolation.Resolution = 0 }, "resolution"},
		{"idw power below one", func(c *Config) { c.Interpolation.IDWPower = 0.5 }, "idw_power"},
		{"only optional steps can be disabled", func(c *Config) { c.Pipeline.DisabledSteps = []string{"seasonal"} }, "disabled_steps"},
		{"unknown log level", func(c *Config) { c.Logging.Level = "trace" }, "level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrValidation))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}
