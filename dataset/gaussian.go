// Package dataset draws paired samples from correlated Gaussians and maps
// target mutual information onto correlation coefficients.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInvalidCorrelation is returned for |ρ| ≥ 1 or NaN.
	ErrInvalidCorrelation = errors.New("dataset: correlation must lie in (-1, 1)")
	// ErrInvalidShape is returned for non-positive dimensions or batch sizes.
	ErrInvalidShape = errors.New("dataset: dimension and batch size must be positive")
)

// Batch is one draw of paired samples; X and Y are batch×dim. A Batch is
// never modified after it is returned.
type Batch struct {
	X, Y *mat.Dense
}

// Sampler draws batches from a dim-dimensional Gaussian in which each
// coordinate pair (x_k, y_k) has correlation ρ and coordinates are
// independent of each other.
type Sampler struct {
	dim   int
	batch int
	cubic bool
	rng   *rand.Rand
}

// NewSampler returns a seeded sampler. When cubic is set, y is replaced by
// y³, which keeps the dependence (and the MI) but is no longer Gaussian.
func NewSampler(dim, batch int, cubic bool, seed uint64) (*Sampler, error) {
	if dim <= 0 || batch <= 0 {
		return nil, fmt.Errorf("%w (dim=%d batch=%d)", ErrInvalidShape, dim, batch)
	}
	return &Sampler{
		dim:   dim,
		batch: batch,
		cubic: cubic,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

// Sample draws x, ε ~ N(0, I) and returns y = ρx + √(1-ρ²)ε.
func (s *Sampler) Sample(rho float64) (Batch, error) {
	if err := ValidateRho(rho); err != nil {
		return Batch{}, err
	}
	sigma := math.Sqrt(1 - rho*rho)
	x := mat.NewDense(s.batch, s.dim, nil)
	y := mat.NewDense(s.batch, s.dim, nil)
	for i := 0; i < s.batch; i++ {
		xr := x.RawRowView(i)
		yr := y.RawRowView(i)
		for k := 0; k < s.dim; k++ {
			xv := s.rng.NormFloat64()
			yv := rho*xv + sigma*s.rng.NormFloat64()
			if s.cubic {
				yv = yv * yv * yv
			}
			xr[k] = xv
			yr[k] = yv
		}
	}
	return Batch{X: x, Y: y}, nil
}

// ValidateRho checks that a Gaussian with correlation rho is non-degenerate.
func ValidateRho(rho float64) error {
	if math.IsNaN(rho) || rho <= -1 || rho >= 1 {
		return fmt.Errorf("%w (got %v)", ErrInvalidCorrelation, rho)
	}
	return nil
}
