package utils

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Schedule kinds understood by the training loop.
const (
	ScheduleStaircase = "staircase"
	ScheduleRamp      = "ramp"
	ScheduleConstant  = "constant"
)

// DefaultLogEvery is used when log_every is unset.
const DefaultLogEvery = 100

// DataConfig controls the synthetic correlated Gaussian.
type DataConfig struct {
	Dim       int  `yaml:"dim"`
	BatchSize int  `yaml:"batch_size"`
	Cubic     bool `yaml:"cubic"`
}

// CriticConfig holds the critic architecture.
type CriticConfig struct {
	Kind       string `yaml:"kind"`
	HiddenDim  int    `yaml:"hidden_dim"`
	EmbedDim   int    `yaml:"embed_dim"`
	Layers     int    `yaml:"layers"`
	Activation string `yaml:"activation"`
}

// EstimationConfig selects the bound and its hyperparameters.
type EstimationConfig struct {
	Estimator  string  `yaml:"estimator"`
	Baseline   string  `yaml:"baseline"`
	Clip       float64 `yaml:"clip"`
	AlphaLogit float64 `yaml:"alpha_logit"`

	// Size of the learned baseline network.
	BaselineHiddenDim int `yaml:"baseline_hidden_dim"`
	BaselineLayers    int `yaml:"baseline_layers"`
}

// OptimizationConfig holds the optimizer settings.
type OptimizationConfig struct {
	Iterations   int     `yaml:"iterations"`
	LearningRate float64 `yaml:"learning_rate"`
	Optimizer    string  `yaml:"optimizer"`
}

// ScheduleConfig describes how the true MI evolves over training.
type ScheduleConfig struct {
	Kind    string  `yaml:"kind"`
	MIStart float64 `yaml:"mi_start"`
	MIEnd   float64 `yaml:"mi_end"`
	Rho     float64 `yaml:"rho"`
}

// Config holds one experiment configuration.
type Config struct {
	Data         DataConfig         `yaml:"data"`
	Critic       CriticConfig       `yaml:"critic"`
	Estimation   EstimationConfig   `yaml:"estimation"`
	Optimization OptimizationConfig `yaml:"optimization"`
	Schedule     ScheduleConfig     `yaml:"schedule"`
	Device       string             `yaml:"device"`
	Seed         uint64             `yaml:"seed"`
	LogEvery     int                `yaml:"log_every"`
}

// Overrides captures CLI supplied values. Zero values leave the config
// untouched.
type Overrides struct {
	Estimator    string
	Critic       string
	Baseline     string
	Iterations   int
	LearningRate float64
	Clip         float64
	Cubic        bool
	Seed         uint64
	Device       string
}

// DefaultConfig reproduces the reference experiment: a 20-dimensional
// Gaussian, batches of 64, a separable critic and a staircase from 2 to 10
// nats over 20000 iterations.
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{Dim: 20, BatchSize: 64},
		Critic: CriticConfig{
			Kind:       "separable",
			HiddenDim:  256,
			EmbedDim:   32,
			Layers:     2,
			Activation: "relu",
		},
		Estimation: EstimationConfig{
			Estimator:         "infonce",
			Baseline:          "none",
			BaselineHiddenDim: 512,
			BaselineLayers:    2,
		},
		Optimization: OptimizationConfig{Iterations: 20000, LearningRate: 5e-4, Optimizer: "adam"},
		Schedule:     ScheduleConfig{Kind: ScheduleStaircase, MIStart: 2, MIEnd: 10},
		Device:       "cpu",
		Seed:         1,
		LogEvery:     DefaultLogEvery,
	}
}

// LoadConfig reads a YAML file over the defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := ParseConfig(f)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfig decodes YAML over DefaultConfig. Unknown keys are rejected
// and a non-positive log_every falls back to DefaultLogEvery.
func ParseConfig(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = DefaultLogEvery
	}
	return cfg, nil
}

// ApplyOverrides updates c using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Estimator != "" {
		c.Estimation.Estimator = o.Estimator
	}
	if o.Critic != "" {
		c.Critic.Kind = o.Critic
	}
	if o.Baseline != "" {
		c.Estimation.Baseline = o.Baseline
	}
	if o.Iterations > 0 {
		c.Optimization.Iterations = o.Iterations
	}
	if o.LearningRate > 0 {
		c.Optimization.LearningRate = o.LearningRate
	}
	if o.Clip > 0 {
		c.Estimation.Clip = o.Clip
	}
	if o.Cubic {
		c.Data.Cubic = true
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.Device != "" {
		c.Device = o.Device
	}
}

// Validate verifies the config is runnable. Names of critics, estimators,
// baselines and activations are resolved later by their own packages.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
	}
	if c.Data.Dim <= 0 {
		return invalid("data.dim must be > 0 (got %d)", c.Data.Dim)
	}
	if c.Data.BatchSize < 2 {
		return invalid("data.batch_size must be >= 2 (got %d)", c.Data.BatchSize)
	}
	if c.Critic.HiddenDim <= 0 {
		return invalid("critic.hidden_dim must be > 0 (got %d)", c.Critic.HiddenDim)
	}
	if c.Critic.EmbedDim <= 0 {
		return invalid("critic.embed_dim must be > 0 (got %d)", c.Critic.EmbedDim)
	}
	if c.Critic.Layers < 0 {
		return invalid("critic.layers must be >= 0 (got %d)", c.Critic.Layers)
	}
	if math.IsNaN(c.Estimation.Clip) || c.Estimation.Clip < 0 {
		return invalid("estimation.clip must be >= 0 (got %v)", c.Estimation.Clip)
	}
	if c.Estimation.BaselineHiddenDim <= 0 {
		return invalid("estimation.baseline_hidden_dim must be > 0 (got %d)", c.Estimation.BaselineHiddenDim)
	}
	if c.Estimation.BaselineLayers < 0 {
		return invalid("estimation.baseline_layers must be >= 0 (got %d)", c.Estimation.BaselineLayers)
	}
	if math.IsNaN(c.Estimation.AlphaLogit) || math.IsInf(c.Estimation.AlphaLogit, 0) {
		return invalid("estimation.alpha_logit must be finite (got %v)", c.Estimation.AlphaLogit)
	}
	if c.Optimization.Iterations <= 0 {
		return invalid("optimization.iterations must be > 0 (got %d)", c.Optimization.Iterations)
	}
	if lr := c.Optimization.LearningRate; !(lr > 0) || math.IsInf(lr, 0) {
		return invalid("optimization.learning_rate must be > 0 (got %v)", lr)
	}
	switch strings.ToLower(c.Schedule.Kind) {
	case ScheduleStaircase, ScheduleRamp:
		if !(c.Schedule.MIStart >= 0) || !(c.Schedule.MIEnd >= c.Schedule.MIStart) {
			return invalid("schedule needs 0 <= mi_start <= mi_end (got %v, %v)", c.Schedule.MIStart, c.Schedule.MIEnd)
		}
	case ScheduleConstant:
		if !(math.Abs(c.Schedule.Rho) < 1) {
			return invalid("schedule.rho must lie in (-1, 1) (got %v)", c.Schedule.Rho)
		}
	default:
		return invalid("schedule.kind must be one of %s, %s, %s (got %q)",
			ScheduleStaircase, ScheduleRamp, ScheduleConstant, c.Schedule.Kind)
	}
	if c.LogEvery <= 0 {
		return invalid("log_every must be > 0 (got %d)", c.LogEvery)
	}
	return nil
}

// ParseEstimators splits a comma or space separated list of estimator keys.
func ParseEstimators(list string) ([]string, error) {
	parts := strings.FieldsFunc(list, func(r rune) bool { return r == ',' || r == ' ' })
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: empty estimator list", ErrInvalidConfig)
	}
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return parts, nil
}
