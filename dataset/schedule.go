package dataset

import (
	"errors"
	"fmt"
	"math"
)

// RhoToMI is the mutual information, in nats, between x and y for the
// dim-dimensional Gaussian produced by Sampler:
//
//	I(x; y) = -dim/2 · log(1 - ρ²)
func RhoToMI(dim int, rho float64) (float64, error) {
	if dim <= 0 {
		return 0, fmt.Errorf("%w (dim=%d)", ErrInvalidShape, dim)
	}
	if err := ValidateRho(rho); err != nil {
		return 0, err
	}
	return -0.5 * float64(dim) * math.Log1p(-rho*rho), nil
}

// MIToRho inverts RhoToMI, returning the non-negative correlation:
//
//	ρ = √(1 - exp(-2·I/dim))
func MIToRho(dim int, mi float64) (float64, error) {
	if dim <= 0 {
		return 0, fmt.Errorf("%w (dim=%d)", ErrInvalidShape, dim)
	}
	if mi < 0 || math.IsNaN(mi) || math.IsInf(mi, 0) {
		return 0, fmt.Errorf("dataset: mutual information must be finite and >= 0 (got %v)", mi)
	}
	rho := math.Sqrt(-math.Expm1(-2 * mi / float64(dim)))
	if rho >= 1 {
		return 0, fmt.Errorf("%w: mi=%v too large for dim=%d", ErrInvalidCorrelation, mi, dim)
	}
	return rho, nil
}

// Step is the ground truth for one training iteration.
type Step struct {
	Iteration int
	MI        float64
	Rho       float64
}

// Schedule is the ordered, precomputed per-iteration ground truth.
type Schedule []Step

// At returns the step for iteration i.
func (s Schedule) At(i int) (Step, error) {
	if i < 0 || i >= len(s) {
		return Step{}, fmt.Errorf("dataset: iteration %d outside schedule of length %d", i, len(s))
	}
	return s[i], nil
}

// TrueMI returns the MI column of the schedule.
func (s Schedule) TrueMI() []float64 {
	out := make([]float64, len(s))
	for i, st := range s {
		out[i] = st.MI
	}
	return out
}

// Staircase holds MI constant on equal plateaus stepping by 2 nats from
// start to end, the reference experiment curve:
//
//	MI_t = 2·round(linspace(start/2 - ½, end/2 + ½ - 1e-9, iters)_t)
func Staircase(iters, dim int, start, end float64) (Schedule, error) {
	if err := checkRange(iters, start, end); err != nil {
		return nil, err
	}
	lo := start/2 - 0.5
	hi := end/2 + 0.5 - 1e-9
	return build(iters, dim, func(i int) float64 {
		return 2 * math.Round(linspace(lo, hi, iters, i))
	})
}

// Ramp increases MI linearly from start to end.
func Ramp(iters, dim int, start, end float64) (Schedule, error) {
	if err := checkRange(iters, start, end); err != nil {
		return nil, err
	}
	return build(iters, dim, func(i int) float64 {
		return linspace(start, end, iters, i)
	})
}

// Constant holds the correlation fixed at rho.
func Constant(iters, dim int, rho float64) (Schedule, error) {
	if iters <= 0 {
		return nil, errors.New("dataset: schedule needs at least one iteration")
	}
	mi, err := RhoToMI(dim, rho)
	if err != nil {
		return nil, err
	}
	s := make(Schedule, iters)
	for i := range s {
		s[i] = Step{Iteration: i, MI: mi, Rho: rho}
	}
	return s, nil
}

func build(iters, dim int, miAt func(i int) float64) (Schedule, error) {
	s := make(Schedule, iters)
	for i := range s {
		mi := miAt(i)
		rho, err := MIToRho(dim, mi)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", i, err)
		}
		s[i] = Step{Iteration: i, MI: mi, Rho: rho}
	}
	return s, nil
}

func checkRange(iters int, start, end float64) error {
	if iters <= 0 {
		return errors.New("dataset: schedule needs at least one iteration")
	}
	if start < 0 || end < start {
		return fmt.Errorf("dataset: invalid MI range [%v, %v]", start, end)
	}
	return nil
}

func linspace(lo, hi float64, n, i int) float64 {
	if n == 1 {
		return lo
	}
	return lo + (hi-lo)*float64(i)/float64(n-1)
}
