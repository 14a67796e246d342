package config

import (
	"testing"

	apperrors "abtest/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"ANALYSIS_ALPHA", "MIN_NORMALITY_SAMPLES", "TREATMENT_GROUP", "CONTROL_GROUP", "SOURCE_KIND", "PORT", "MAX_CONCURRENT_RUNS", "EXTENDED_COLUMNS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultAlpha, cfg.Analysis.Alpha)
	assert.InDelta(t, 0.95, cfg.Analysis.ConfidenceLevel(), 1e-12)
	assert.Equal(t, 3, cfg.Analysis.MinNormalitySamples)
	assert.Equal(t, "treatment", string(cfg.Analysis.Groups().Treatment))
	assert.Equal(t, "control", string(cfg.Analysis.Groups().Control))
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "file", cfg.Source.Kind)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ANALYSIS_ALPHA", "0.01")
	t.Setenv("TREATMENT_GROUP", "ad")
	t.Setenv("CONTROL_GROUP", "psa")
	t.Setenv("EXTENDED_COLUMNS", "session_duration, page_views,,")
	t.Setenv("MAX_CONCURRENT_RUNS", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.01, cfg.Analysis.Alpha)
	assert.Equal(t, "ad", cfg.Analysis.TreatmentGroup)
	assert.Equal(t, "psa", cfg.Analysis.ControlGroup)
	assert.Equal(t, []string{"session_duration", "page_views"}, cfg.Schema.ExtendedColumns)
	assert.Equal(t, 2, cfg.Server.MaxConcurrentRuns)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"alpha zero", func(c *Config) { c.Analysis.Alpha = 0 }},
		{"alpha one", func(c *Config) { c.Analysis.Alpha = 1 }},
		{"normality samples below 3", func(c *Config) { c.Analysis.MinNormalitySamples = 2 }},
		{"same group labels", func(c *Config) { c.Analysis.ControlGroup = c.Analysis.TreatmentGroup }},
		{"unknown source", func(c *Config) { c.Source.Kind = "s3" }},
		{"postgres without query", func(c *Config) { c.Source.Kind = "postgres"; c.Source.DatabaseURL = "postgres://x" }},
		{"no run slots", func(c *Config) { c.Server.MaxConcurrentRuns = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeConfigInvalid, apperrors.GetCode(err))
		})
	}
}
