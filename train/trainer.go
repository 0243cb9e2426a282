// Package train drives the critic optimisation loop and records the
// resulting trace of MI estimates.
package train

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"mibound/critic"
	"mibound/dataset"
	"mibound/estimator"
	"mibound/nn"
	"mibound/tensor"
	"mibound/utils"

	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"
)

// ErrExhausted is returned by Step once every scheduled iteration has run.
var ErrExhausted = errors.New("train: iterations exhausted")

// State is the lifecycle of a Trainer.
type State int

const (
	Initializing State = iota
	Stepping
	Exhausted
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Stepping:
		return "stepping"
	case Exhausted:
		return "exhausted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Trainer runs one experiment configuration.
type Trainer struct {
	opts     Options
	compute  *tensor.Context
	sampler  *dataset.Sampler
	schedule dataset.Schedule
	source   critic.Source
	baseline critic.Baseline
	bound    estimator.Bound

	criticOpt   nn.Optimizer
	baselineOpt nn.Optimizer

	state     State
	iter      int
	current   critic.Critic
	estimates []float64
	ema       emaState
	stats     utils.TimingStats
}

// NewTrainer builds every component of the run on the given compute
// context. Critic and baseline get independent optimizers.
func NewTrainer(compute *tensor.Context, opts Options) (*Trainer, error) {
	start := time.Now()
	if compute == nil {
		return nil, errors.New("train: nil compute context")
	}
	if opts.Iterations <= 0 {
		return nil, fmt.Errorf("%w: iterations must be > 0 (got %d)", utils.ErrInvalidConfig, opts.Iterations)
	}
	sampler, err := dataset.NewSampler(opts.Dim, opts.BatchSize, opts.Cubic, opts.Seed)
	if err != nil {
		return nil, err
	}
	schedule, err := buildSchedule(opts)
	if err != nil {
		return nil, err
	}

	// parameters are drawn from a stream independent of the sampler's
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x5deece66d))
	source, err := critic.NewSource(opts.Critic, rng)
	if err != nil {
		return nil, fmt.Errorf("build critic: %w", err)
	}
	baseline, err := critic.NewBaseline(opts.Baseline, rng)
	if err != nil {
		return nil, fmt.Errorf("build baseline: %w", err)
	}
	bound, err := estimator.New(opts.Estimator, opts.Bound)
	if err != nil {
		return nil, err
	}

	t := &Trainer{
		opts:      opts,
		compute:   compute,
		sampler:   sampler,
		schedule:  schedule,
		source:    source,
		baseline:  baseline,
		bound:     bound,
		estimates: make([]float64, 0, opts.Iterations),
		ema:       newEMAState(float64(max(opts.LogEvery, 1))),
	}
	if len(source.Params()) > 0 {
		if t.criticOpt, err = nn.NewOptimizer(opts.Optimizer, opts.LearningRate); err != nil {
			return nil, err
		}
	}
	if _, ok := baseline.(critic.TrainableBaseline); ok {
		if !opts.Estimator.UsesBaseline() {
			klog.Warningf("baseline %v is ignored by the %v estimator and will not be trained", opts.Baseline.Kind, opts.Estimator)
		}
		if t.baselineOpt, err = nn.NewOptimizer(opts.Optimizer, opts.LearningRate); err != nil {
			return nil, err
		}
	}
	t.stats.InitTime = time.Since(start)
	klog.V(2).Infof("trainer ready: estimator=%v critic=%v baseline=%v %s",
		opts.Estimator, opts.Critic.Kind, opts.Baseline.Kind, compute.Describe())
	return t, nil
}

func buildSchedule(opts Options) (dataset.Schedule, error) {
	s := opts.Schedule
	switch s.Kind {
	case utils.ScheduleStaircase, "":
		return dataset.Staircase(opts.Iterations, opts.Dim, s.MIStart, s.MIEnd)
	case utils.ScheduleRamp:
		return dataset.Ramp(opts.Iterations, opts.Dim, s.MIStart, s.MIEnd)
	case utils.ScheduleConstant:
		return dataset.Constant(opts.Iterations, opts.Dim, s.Rho)
	default:
		return nil, fmt.Errorf("%w: unknown schedule %q", utils.ErrInvalidConfig, s.Kind)
	}
}

// State reports where the trainer is in its lifecycle.
func (t *Trainer) State() State { return t.state }

// Iteration is the number of completed steps.
func (t *Trainer) Iteration() int { return t.iter }

// Critic is the critic used by the most recent step, nil before the first.
func (t *Trainer) Critic() critic.Critic { return t.current }

// Stats returns the accumulated phase timings.
func (t *Trainer) Stats() *utils.TimingStats { return &t.stats }

// Step runs one iteration and returns its MI estimate.
func (t *Trainer) Step() (float64, error) {
	if t.state == Exhausted {
		return 0, ErrExhausted
	}
	t.state = Stepping
	v, err := t.step()
	if err != nil {
		return 0, fmt.Errorf("iteration %d: %w", t.iter, err)
	}
	t.estimates = append(t.estimates, v)
	t.iter++
	if t.iter >= t.opts.Iterations {
		t.state = Exhausted
	}
	return v, nil
}

func (t *Trainer) step() (float64, error) {
	start := time.Now()
	st, err := t.schedule.At(t.iter)
	if err != nil {
		return 0, err
	}
	c, err := t.source.ForStep(st.Rho)
	if err != nil {
		return 0, err
	}
	t.current = c

	mark := time.Now()
	batch, err := t.sampler.Sample(st.Rho)
	if err != nil {
		return 0, err
	}
	t.stats.SamplingTime += lap(&mark)

	scores, err := c.Scores(batch.X, batch.Y)
	if err != nil {
		return 0, err
	}
	t.stats.ScoringTime += lap(&mark)

	var logBaseline []float64
	if t.opts.Estimator.UsesBaseline() {
		if logBaseline, err = t.baseline.LogBaseline(batch.Y); err != nil {
			return 0, err
		}
	}
	t.stats.BaselineTime += lap(&mark)

	res, err := t.bound.Evaluate(scores, logBaseline)
	if err != nil {
		return 0, err
	}
	t.stats.EstimateTime += lap(&mark)

	// the loss is the negated surrogate
	var criticParams, baselineParams []*nn.Param
	if tc, ok := c.(critic.Trainable); ok {
		g := mat.NewDense(scores.RawMatrix().Rows, scores.RawMatrix().Cols, nil)
		g.Scale(-1, res.GradScores)
		if err := tc.Backward(g); err != nil {
			return 0, err
		}
		criticParams = tc.Params()
	}
	if tb, ok := t.baseline.(critic.TrainableBaseline); ok && res.GradBaseline != nil {
		g := make([]float64, len(res.GradBaseline))
		for i, v := range res.GradBaseline {
			g[i] = -v
		}
		if err := tb.Backward(g); err != nil {
			return 0, err
		}
		baselineParams = tb.Params()
	}
	t.stats.BackwardTime += lap(&mark)

	if criticParams != nil {
		t.criticOpt.Step(criticParams)
	}
	if baselineParams != nil {
		t.baselineOpt.Step(baselineParams)
	}
	t.stats.UpdateTime += lap(&mark)

	smoothed := t.ema.push(res.Value)
	if t.opts.LogEvery > 0 && (t.iter+1)%t.opts.LogEvery == 0 {
		klog.V(1).Infof("%v iter=%d true_mi=%.3f rho=%.4f estimate=%.4f ema=%.4f loss=%.4f step_us=%.0f",
			t.opts.Estimator, t.iter+1, st.MI, st.Rho, res.Value, smoothed, -res.Surrogate, utils.DurationUS(time.Since(start)))
	}
	return res.Value, nil
}

func lap(mark *time.Time) time.Duration {
	now := time.Now()
	d := now.Sub(*mark)
	*mark = now
	return d
}

// Run steps until the schedule is exhausted or ctx is cancelled. The trace
// recorded so far is returned alongside any error.
func (t *Trainer) Run(ctx context.Context) (*Trace, error) {
	start := time.Now()
	defer func() { t.stats.TotalTime += time.Since(start) }()
	for t.state != Exhausted {
		if err := ctx.Err(); err != nil {
			return t.Trace(), fmt.Errorf("train: stopped after %d iterations: %w", t.iter, err)
		}
		if _, err := t.Step(); err != nil {
			return t.Trace(), err
		}
	}
	klog.V(1).Infof("%v finished %d iterations on %s, final ema=%.4f", t.opts.Estimator, t.iter, t.compute.Device, t.ema.value())
	return t.Trace(), nil
}

// Trace snapshots the estimates recorded so far against the true MI.
func (t *Trainer) Trace() *Trace {
	truth := t.schedule.TrueMI()
	return &Trace{
		Estimator: t.opts.Estimator.String(),
		Estimates: append([]float64(nil), t.estimates...),
		TrueMI:    truth[:len(t.estimates)],
	}
}
