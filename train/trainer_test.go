package train

import (
	"context"
	"math"
	"testing"

	"mibound/critic"
	"mibound/estimator"
	"mibound/nn"
	"mibound/nn/layers"
	"mibound/tensor"
	"mibound/utils"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func smallConfig() *utils.Config {
	cfg := utils.DefaultConfig()
	cfg.Data.Dim = 4
	cfg.Data.BatchSize = 16
	cfg.Critic.HiddenDim = 16
	cfg.Critic.EmbedDim = 8
	cfg.Critic.Layers = 1
	cfg.Optimization.Iterations = 5
	cfg.Schedule = utils.ScheduleConfig{Kind: utils.ScheduleConstant, Rho: 0.5}
	return cfg
}

func newTrainer(t *testing.T, cfg *utils.Config) *Trainer {
	t.Helper()
	opts, err := FromConfig(cfg)
	require.NoError(t, err)
	compute, err := tensor.NewContext("")
	require.NoError(t, err)
	tr, err := NewTrainer(compute, opts)
	require.NoError(t, err)
	return tr
}

func TestFromConfigDefaults(t *testing.T) {
	opts, err := FromConfig(utils.DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, critic.Separable, opts.Critic.Kind)
	require.Equal(t, layers.ReLU, opts.Critic.Activation)
	require.Equal(t, estimator.InfoNCE, opts.Estimator)
	require.Equal(t, critic.NoBaseline, opts.Baseline.Kind)
	require.Equal(t, 20, opts.Critic.Dim)
	require.Equal(t, 512, opts.Baseline.HiddenDim)
	require.Equal(t, 2, opts.Baseline.Layers)
}

func TestBaselineSizedIndependently(t *testing.T) {
	cfg := smallConfig()
	cfg.Estimation.Baseline = "learned"
	cfg.Estimation.BaselineHiddenDim = 24
	cfg.Estimation.BaselineLayers = 3
	opts, err := FromConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, 16, opts.Critic.HiddenDim)
	require.Equal(t, 1, opts.Critic.Layers)
	require.Equal(t, 24, opts.Baseline.HiddenDim)
	require.Equal(t, 3, opts.Baseline.Layers)
}

func TestNewTrainerRequiresContext(t *testing.T) {
	opts, err := FromConfig(smallConfig())
	require.NoError(t, err)
	_, err = NewTrainer(nil, opts)
	require.Error(t, err)

	_, err = tensor.NewContext("cuda")
	require.ErrorIs(t, err, tensor.ErrUnsupportedDevice)
}

func TestFromConfigFailsFast(t *testing.T) {
	for name, tc := range map[string]struct {
		mutate func(*utils.Config)
		want   error
	}{
		"estimator":  {func(c *utils.Config) { c.Estimation.Estimator = "mine" }, estimator.ErrUnknownEstimator},
		"critic":     {func(c *utils.Config) { c.Critic.Kind = "bilinear" }, critic.ErrUnknownKind},
		"baseline":   {func(c *utils.Config) { c.Estimation.Baseline = "mean" }, critic.ErrUnknownBaseline},
		"activation": {func(c *utils.Config) { c.Critic.Activation = "gelu" }, layers.ErrUnknownActivation},
		"optimizer":  {func(c *utils.Config) { c.Optimization.Optimizer = "lbfgs" }, utils.ErrInvalidConfig},
		"batch":      {func(c *utils.Config) { c.Data.BatchSize = 0 }, utils.ErrInvalidConfig},
		"conditional estimator on learned critic": {
			func(c *utils.Config) { c.Estimation.Estimator = "conditional" }, utils.ErrInvalidConfig,
		},
		"conditional estimator with learned baseline": {
			func(c *utils.Config) {
				c.Estimation.Estimator = "conditional"
				c.Critic.Kind = "conditional"
				c.Estimation.Baseline = "learned"
			}, utils.ErrInvalidConfig,
		},
		"conditional critic on cubic data": {
			func(c *utils.Config) {
				c.Critic.Kind = "conditional"
				c.Data.Cubic = true
			}, utils.ErrInvalidConfig,
		},
	} {
		t.Run(name, func(t *testing.T) {
			cfg := smallConfig()
			tc.mutate(cfg)
			_, err := FromConfig(cfg)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestConditionalDefaultsToGaussianBaseline(t *testing.T) {
	cfg := smallConfig()
	cfg.Estimation.Estimator = "conditional"
	cfg.Critic.Kind = "conditional"
	opts, err := FromConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, critic.GaussianBaseline, opts.Baseline.Kind)
}

func TestStepLifecycle(t *testing.T) {
	cfg := smallConfig()
	cfg.Optimization.Iterations = 3
	tr := newTrainer(t, cfg)
	require.Equal(t, Initializing, tr.State())
	require.Nil(t, tr.Critic())

	for i := 0; i < 3; i++ {
		v, err := tr.Step()
		require.NoError(t, err)
		require.False(t, math.IsNaN(v))
		require.LessOrEqual(t, v, math.Log(16)+1e-9)
	}
	require.Equal(t, Exhausted, tr.State())
	require.Equal(t, 3, tr.Iteration())
	_, err := tr.Step()
	require.ErrorIs(t, err, ErrExhausted)

	trace := tr.Trace()
	require.Equal(t, 3, trace.Len())
	require.Len(t, trace.TrueMI, 3)
	require.Equal(t, "infonce", trace.Estimator)
	require.True(t, tr.Stats().ScoringTime > 0)
}

func TestStepUpdatesCriticAndBaseline(t *testing.T) {
	cfg := smallConfig()
	cfg.Estimation.Estimator = "tuba"
	cfg.Estimation.Baseline = "learned"
	tr := newTrainer(t, cfg)

	learned, ok := tr.baseline.(critic.TrainableBaseline)
	require.True(t, ok)
	beforeBaseline := nn.CloneValues(learned.Params())
	beforeCritic := nn.CloneValues(tr.source.Params())

	_, err := tr.Step()
	require.NoError(t, err)
	require.False(t, mat.Equal(beforeBaseline[0], learned.Params()[0].Value))
	require.False(t, mat.Equal(beforeCritic[0], tr.source.Params()[0].Value))
}

func TestConditionalCriticRebuiltEachStep(t *testing.T) {
	cfg := smallConfig()
	cfg.Estimation.Estimator = "conditional"
	cfg.Critic.Kind = "conditional"
	cfg.Schedule = utils.ScheduleConfig{Kind: utils.ScheduleRamp, MIStart: 0.5, MIEnd: 2}
	cfg.Optimization.Iterations = 4
	tr := newTrainer(t, cfg)

	_, err := tr.Step()
	require.NoError(t, err)
	first, ok := tr.Critic().(*critic.ConditionalCritic)
	require.True(t, ok)

	_, err = tr.Step()
	require.NoError(t, err)
	second, ok := tr.Critic().(*critic.ConditionalCritic)
	require.True(t, ok)

	require.NotSame(t, first, second)
	require.NotEqual(t, first.Rho(), second.Rho())
	require.Less(t, first.Rho(), second.Rho())
}

func TestConditionalEstimateMatchesTruth(t *testing.T) {
	cfg := smallConfig()
	cfg.Data.Dim = 2
	cfg.Data.BatchSize = 64
	cfg.Estimation.Estimator = "conditional"
	cfg.Critic.Kind = "conditional"
	cfg.Optimization.Iterations = 300
	tr := newTrainer(t, cfg)

	trace, err := tr.Run(context.Background())
	require.NoError(t, err)
	s, err := trace.Summarize(0)
	require.NoError(t, err)
	require.InDelta(t, math.Log(4.0/3.0), s.TrueMI, 1e-12)
	require.InDelta(t, s.TrueMI, s.Mean, 0.05)
}

func TestRunHonoursContext(t *testing.T) {
	tr := newTrainer(t, smallConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	trace, err := tr.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, trace.Len())
}

// Dimension 20, batch 64, ρ = 0.5: the true MI is 10·ln(4/3) ≈ 2.88 nats
// and InfoNCE saturates at ln 64 ≈ 4.16.
func TestInfoNCESeparableLearnsGaussianMI(t *testing.T) {
	if testing.Short() {
		t.Skip("end-to-end training run")
	}
	cfg := utils.DefaultConfig()
	cfg.Critic.HiddenDim = 128
	cfg.Critic.Layers = 1
	cfg.Optimization.Iterations = 500
	cfg.Optimization.LearningRate = 1e-3
	cfg.Schedule = utils.ScheduleConfig{Kind: utils.ScheduleConstant, Rho: 0.5}
	cfg.Seed = 42
	tr := newTrainer(t, cfg)

	trace, err := tr.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 500, trace.Len())

	ema, err := trace.EMA(50)
	require.NoError(t, err)
	trueMI := trace.TrueMI[0]
	require.InDelta(t, 10*math.Log(4.0/3.0), trueMI, 1e-9)

	early, final := ema[49], ema[len(ema)-1]
	require.Greater(t, final, early+0.5, "estimate should trend upward")
	require.Greater(t, final, 1.0)
	require.Less(t, final, math.Log(64)+1e-9)
}
