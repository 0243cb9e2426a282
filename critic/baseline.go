package critic

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"mibound/nn"
	"mibound/nn/layers"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// BaselineKind enumerates the variance-reduction baselines a(y).
type BaselineKind int

const (
	NoBaseline BaselineKind = iota
	LearnedBaseline
	GaussianBaseline
)

var baselineNames = map[BaselineKind]string{
	NoBaseline:       "none",
	LearnedBaseline:  "learned",
	GaussianBaseline: "gaussian",
}

// aliases accepted from older experiment configs
var baselineAliases = map[string]BaselineKind{
	"constant":     NoBaseline,
	"unnormalized": LearnedBaseline,
}

func (k BaselineKind) String() string {
	if s, ok := baselineNames[k]; ok {
		return s
	}
	return fmt.Sprintf("BaselineKind(%d)", int(k))
}

// ParseBaseline maps a config name onto a BaselineKind.
func ParseBaseline(name string) (BaselineKind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return NoBaseline, nil
	}
	for k, s := range baselineNames {
		if s == n {
			return k, nil
		}
	}
	if k, ok := baselineAliases[n]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownBaseline, name)
}

// Baseline returns log a(y_j) for every row of y, or nil for no baseline.
type Baseline interface {
	LogBaseline(y *mat.Dense) ([]float64, error)
}

// TrainableBaseline is a baseline with its own parameters, optimised
// independently of the critic.
type TrainableBaseline interface {
	Baseline
	Backward(grad []float64) error
	Params() []*nn.Param
}

// BaselineConfig describes the learned baseline network.
type BaselineConfig struct {
	Kind       BaselineKind
	Dim        int
	HiddenDim  int
	Layers     int
	Activation layers.ActivationKind
}

// NewBaseline builds the baseline for cfg.Kind.
func NewBaseline(cfg BaselineConfig, rng *rand.Rand) (Baseline, error) {
	switch cfg.Kind {
	case NoBaseline:
		return None{}, nil
	case GaussianBaseline:
		return Gaussian{}, nil
	case LearnedBaseline:
		f, err := layers.NewMLP(layers.MLPConfig{
			In:         cfg.Dim,
			Hidden:     cfg.HiddenDim,
			Out:        1,
			Layers:     cfg.Layers,
			Activation: cfg.Activation,
		}, rng)
		if err != nil {
			return nil, err
		}
		return &Learned{f: f}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownBaseline, cfg.Kind)
	}
}

// None is the constant baseline; bounds treat it as log a(y) = 0.
type None struct{}

func (None) LogBaseline(*mat.Dense) ([]float64, error) { return nil, nil }

// Gaussian is the closed-form log density of a standard normal,
// Σ_k log 𝒩(y_k; 0, 1), which is the true marginal of y.
type Gaussian struct{}

func (Gaussian) LogBaseline(y *mat.Dense) ([]float64, error) {
	n, d := y.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		for _, v := range y.RawRowView(i)[:d] {
			out[i] += distuv.UnitNormal.LogProb(v)
		}
	}
	return out, nil
}

// Learned is an MLP y → log a(y).
type Learned struct {
	f *nn.Sequential
}

func (l *Learned) LogBaseline(y *mat.Dense) ([]float64, error) {
	out, err := l.f.Forward(y)
	if err != nil {
		return nil, fmt.Errorf("learned baseline: %w", err)
	}
	return mat.Col(nil, 0, out), nil
}

func (l *Learned) Backward(grad []float64) error {
	_, err := l.f.Backward(mat.NewDense(len(grad), 1, append([]float64(nil), grad...)))
	return err
}

func (l *Learned) Params() []*nn.Param { return l.f.Params() }
