// Package estimator implements variational bounds on mutual information.
//
// Documentation notation: S is the n×n score matrix of a batch with
// S_ij = f(x_i, y_j), so S_ii are the jointly drawn (positive) pairs and
// S_ij, i ≠ j, are draws from the product of marginals. b_j = log a(y_j) is
// the optional baseline, subtracted column-wise. lme_off(S) denotes the
// log-mean-exp over the n(n-1) off-diagonal entries.
//
// Every bound returns its MI estimate together with the gradient of its
// training surrogate. For most bounds the two coincide; the JS and SMILE
// bounds train on the Jensen-Shannon objective but report a
// Donsker-Varadhan style estimate.
package estimator

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"mibound/tensor"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrUnknownEstimator is returned by ParseKind for unsupported names.
	ErrUnknownEstimator = errors.New("estimator: unknown estimator")
	// ErrNonFinite is returned when a bound or its gradient is NaN or ±Inf.
	ErrNonFinite = errors.New("estimator: non-finite bound")
)

// Kind enumerates the supported bounds.
type Kind int

const (
	InfoNCE Kind = iota
	NWJ
	TUBA
	JS
	DV
	SMILE
	Interpolated
	Conditional
)

var kindNames = map[Kind]string{
	InfoNCE:      "infonce",
	NWJ:          "nwj",
	TUBA:         "tuba",
	JS:           "js",
	DV:           "dv",
	SMILE:        "smile",
	Interpolated: "interpolated",
	Conditional:  "conditional",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps an estimator key onto a Kind.
func ParseKind(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for k, s := range kindNames {
		if s == n {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownEstimator, name, strings.Join(Names(), ", "))
}

// Names lists the estimator keys in a stable order.
func Names() []string {
	out := make([]string, 0, len(kindNames))
	for _, s := range kindNames {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// UsesBaseline reports whether the bound consumes log a(y).
func (k Kind) UsesBaseline() bool {
	switch k {
	case TUBA, Interpolated, Conditional:
		return true
	}
	return false
}

// Options carries the per-bound hyperparameters.
type Options struct {
	// Clip is the SMILE clip bound τ. Zero, negative or +Inf disables clipping.
	Clip float64
	// AlphaLogit parameterises α = σ(AlphaLogit) of the interpolated bound.
	AlphaLogit float64
}

// Result is the outcome of evaluating a bound on one batch.
type Result struct {
	// Value is the MI estimate to record.
	Value float64
	// Surrogate is the objective the critic is trained to maximise.
	Surrogate float64
	// GradScores is ∂Surrogate/∂S.
	GradScores *mat.Dense
	// GradBaseline is ∂Surrogate/∂b, nil when the bound ignores the baseline
	// or none was given.
	GradBaseline []float64
}

// Bound evaluates an MI bound on a score matrix and an optional baseline.
type Bound interface {
	Evaluate(scores *mat.Dense, logBaseline []float64) (Result, error)
}

// New returns the bound for kind.
func New(kind Kind, opts Options) (Bound, error) {
	switch kind {
	case InfoNCE:
		return infoNCE{}, nil
	case NWJ:
		return tuba{shift: -1}, nil
	case TUBA:
		return tuba{useBaseline: true}, nil
	case JS:
		return js{}, nil
	case DV:
		return dv{}, nil
	case SMILE:
		if math.IsNaN(opts.Clip) {
			return nil, fmt.Errorf("estimator: smile clip is NaN")
		}
		return smile{clip: opts.Clip}, nil
	case Interpolated:
		if math.IsNaN(opts.AlphaLogit) || math.IsInf(opts.AlphaLogit, 0) {
			return nil, fmt.Errorf("estimator: alpha logit must be finite (got %v)", opts.AlphaLogit)
		}
		return newInterpolated(opts.AlphaLogit), nil
	case Conditional:
		return tuba{useBaseline: true, requireBaseline: true}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownEstimator, kind)
	}
}

func validate(scores *mat.Dense, logBaseline []float64) (int, error) {
	n, m := scores.Dims()
	if n != m {
		return 0, fmt.Errorf("estimator: %w: scores must be square, got %dx%d", tensor.ErrShapeMismatch, n, m)
	}
	if n < 2 {
		return 0, fmt.Errorf("estimator: %w: need at least 2 samples, got %d", tensor.ErrShapeMismatch, n)
	}
	if logBaseline != nil && len(logBaseline) != n {
		return 0, fmt.Errorf("estimator: %w: baseline has %d entries for batch %d", tensor.ErrShapeMismatch, len(logBaseline), n)
	}
	return n, nil
}

func finish(r Result) (Result, error) {
	bad := func(v float64) bool { return math.IsNaN(v) || math.IsInf(v, 0) }
	if bad(r.Value) || bad(r.Surrogate) {
		return Result{}, fmt.Errorf("%w: value %v, surrogate %v", ErrNonFinite, r.Value, r.Surrogate)
	}
	if r.GradScores != nil && !tensor.AllFinite(r.GradScores) {
		return Result{}, fmt.Errorf("%w: score gradient", ErrNonFinite)
	}
	for _, v := range r.GradBaseline {
		if bad(v) {
			return Result{}, fmt.Errorf("%w: baseline gradient", ErrNonFinite)
		}
	}
	return r, nil
}
