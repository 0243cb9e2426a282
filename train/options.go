package train

import (
	"fmt"
	"strings"

	"mibound/critic"
	"mibound/estimator"
	"mibound/nn"
	"mibound/nn/layers"
	"mibound/utils"
)

// ScheduleOptions selects the ground-truth MI curve.
type ScheduleOptions struct {
	Kind    string
	MIStart float64
	MIEnd   float64
	Rho     float64
}

// Options is a fully resolved experiment: every name has been parsed into
// its enum and every numeric field validated.
type Options struct {
	Dim       int
	BatchSize int
	Cubic     bool

	Critic    critic.Config
	Baseline  critic.BaselineConfig
	Estimator estimator.Kind
	Bound     estimator.Options

	Iterations   int
	LearningRate float64
	Optimizer    string

	Schedule ScheduleOptions

	Seed     uint64
	LogEvery int
}

// FromConfig validates cfg and resolves it into Options. It fails before
// any sampling happens on unknown names or incompatible combinations.
func FromConfig(cfg *utils.Config) (Options, error) {
	if err := cfg.Validate(); err != nil {
		return Options{}, err
	}
	kind, err := critic.ParseKind(cfg.Critic.Kind)
	if err != nil {
		return Options{}, err
	}
	act, err := layers.ParseActivation(cfg.Critic.Activation)
	if err != nil {
		return Options{}, err
	}
	baseline, err := critic.ParseBaseline(cfg.Estimation.Baseline)
	if err != nil {
		return Options{}, err
	}
	est, err := estimator.ParseKind(cfg.Estimation.Estimator)
	if err != nil {
		return Options{}, err
	}
	if _, err := nn.NewOptimizer(cfg.Optimization.Optimizer, cfg.Optimization.LearningRate); err != nil {
		return Options{}, fmt.Errorf("%w: %v", utils.ErrInvalidConfig, err)
	}

	if est == estimator.Conditional {
		if kind != critic.Conditional {
			return Options{}, fmt.Errorf("%w: the conditional estimator needs the conditional critic (got %v)", utils.ErrInvalidConfig, kind)
		}
		switch baseline {
		case critic.NoBaseline:
			baseline = critic.GaussianBaseline
		case critic.LearnedBaseline:
			return Options{}, fmt.Errorf("%w: the conditional estimator uses the closed-form gaussian baseline", utils.ErrInvalidConfig)
		}
	}
	if kind == critic.Conditional && cfg.Data.Cubic {
		return Options{}, fmt.Errorf("%w: the conditional critic assumes gaussian data and cannot score cubic samples", utils.ErrInvalidConfig)
	}

	dim := cfg.Data.Dim
	return Options{
		Dim:       dim,
		BatchSize: cfg.Data.BatchSize,
		Cubic:     cfg.Data.Cubic,
		Critic: critic.Config{
			Kind:       kind,
			Dim:        dim,
			HiddenDim:  cfg.Critic.HiddenDim,
			EmbedDim:   cfg.Critic.EmbedDim,
			Layers:     cfg.Critic.Layers,
			Activation: act,
		},
		Baseline: critic.BaselineConfig{
			Kind:       baseline,
			Dim:        dim,
			HiddenDim:  cfg.Estimation.BaselineHiddenDim,
			Layers:     cfg.Estimation.BaselineLayers,
			Activation: act,
		},
		Estimator:    est,
		Bound:        estimator.Options{Clip: cfg.Estimation.Clip, AlphaLogit: cfg.Estimation.AlphaLogit},
		Iterations:   cfg.Optimization.Iterations,
		LearningRate: cfg.Optimization.LearningRate,
		Optimizer:    cfg.Optimization.Optimizer,
		Schedule: ScheduleOptions{
			Kind:    strings.ToLower(cfg.Schedule.Kind),
			MIStart: cfg.Schedule.MIStart,
			MIEnd:   cfg.Schedule.MIEnd,
			Rho:     cfg.Schedule.Rho,
		},
		Seed:     cfg.Seed,
		LogEvery: cfg.LogEvery,
	}, nil
}
