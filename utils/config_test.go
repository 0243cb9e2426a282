package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 20, cfg.Data.Dim)
	require.Equal(t, 64, cfg.Data.BatchSize)
	require.Equal(t, 20000, cfg.Optimization.Iterations)
	require.InDelta(t, 5e-4, cfg.Optimization.LearningRate, 1e-12)
	require.Equal(t, 512, cfg.Estimation.BaselineHiddenDim)
	require.Equal(t, 2, cfg.Estimation.BaselineLayers)
}

func TestParseConfigOverDefaults(t *testing.T) {
	doc := `
data:
  dim: 4
  cubic: true
critic:
  kind: concat
estimation:
  estimator: smile
  clip: 5
  baseline_hidden_dim: 64
schedule:
  kind: constant
  rho: 0.5
seed: 7
`
	cfg, err := ParseConfig(strings.NewReader(doc))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Equal(t, 4, cfg.Data.Dim)
	require.Equal(t, 64, cfg.Data.BatchSize)
	require.True(t, cfg.Data.Cubic)
	require.Equal(t, "concat", cfg.Critic.Kind)
	require.Equal(t, 256, cfg.Critic.HiddenDim)
	require.Equal(t, "smile", cfg.Estimation.Estimator)
	require.Equal(t, 5.0, cfg.Estimation.Clip)
	require.Equal(t, 64, cfg.Estimation.BaselineHiddenDim)
	require.Equal(t, 2, cfg.Estimation.BaselineLayers)
	require.Equal(t, uint64(7), cfg.Seed)
}

func TestParseConfigRejectsUnknownKeys(t *testing.T) {
	_, err := ParseConfig(strings.NewReader("data:\n  dims: 3\n"))
	require.Error(t, err)
}

func TestParseConfigEmpty(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("optimization:\n  iterations: 10\n"), 0o644))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 10, cfg.Optimization.Iterations)

	require.NoError(t, os.WriteFile(path, []byte("optimization:\n  iterations: -1\n"), 0o644))
	_, err = LoadConfig(path)
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"dim":        func(c *Config) { c.Data.Dim = 0 },
		"batch":      func(c *Config) { c.Data.BatchSize = 1 },
		"hidden":     func(c *Config) { c.Critic.HiddenDim = 0 },
		"embed":      func(c *Config) { c.Critic.EmbedDim = -1 },
		"layers":     func(c *Config) { c.Critic.Layers = -1 },
		"clip":       func(c *Config) { c.Estimation.Clip = -2 },
		"bhidden":    func(c *Config) { c.Estimation.BaselineHiddenDim = 0 },
		"blayers":    func(c *Config) { c.Estimation.BaselineLayers = -1 },
		"log_every":  func(c *Config) { c.LogEvery = 0 },
		"iterations": func(c *Config) { c.Optimization.Iterations = 0 },
		"lr":         func(c *Config) { c.Optimization.LearningRate = 0 },
		"schedule":   func(c *Config) { c.Schedule.Kind = "sawtooth" },
		"mi":         func(c *Config) { c.Schedule.MIStart = -1 },
		"rho": func(c *Config) {
			c.Schedule.Kind = ScheduleConstant
			c.Schedule.Rho = 1
		},
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
	var nilCfg *Config
	require.ErrorIs(t, nilCfg.Validate(), ErrInvalidConfig)
}

func TestParseConfigDefaultsLogEvery(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader("log_every: 0\n"))
	require.NoError(t, err)
	require.Equal(t, DefaultLogEvery, cfg.LogEvery)
	require.NoError(t, cfg.Validate())
}

func TestValidateDoesNotMutate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogEvery = 0
	before := *cfg
	require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	require.Equal(t, before, *cfg)
}

func TestApplyOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ApplyOverrides(Overrides{Estimator: "nwj", Iterations: 5, Cubic: true, Seed: 3})
	require.Equal(t, "nwj", cfg.Estimation.Estimator)
	require.Equal(t, 5, cfg.Optimization.Iterations)
	require.True(t, cfg.Data.Cubic)
	require.Equal(t, uint64(3), cfg.Seed)
	// zero values leave the config alone
	require.Equal(t, "separable", cfg.Critic.Kind)
	require.InDelta(t, 5e-4, cfg.Optimization.LearningRate, 1e-12)
}

func TestParseEstimators(t *testing.T) {
	got, err := ParseEstimators("infonce, NWJ,smile")
	require.NoError(t, err)
	require.Equal(t, []string{"infonce", "nwj", "smile"}, got)
	_, err = ParseEstimators(" , ")
	require.ErrorIs(t, err, ErrInvalidConfig)
}
