package critic

import (
	"fmt"
	"math"

	"mibound/dataset"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ConditionalCritic is the ground-truth critic for the correlated Gaussian:
//
//	f(x, y) = log p(y | x) = Σ_k log 𝒩(y_k; ρ·x_k, 1 - ρ²)
//
// It has no learnable parameters; it is parameterised entirely by ρ and is
// rebuilt whenever the scheduled correlation changes.
type ConditionalCritic struct {
	dim   int
	rho   float64
	sigma float64
}

// NewConditional returns the critic for correlation rho.
func NewConditional(dim int, rho float64) (*ConditionalCritic, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("conditional critic: %w", dataset.ErrInvalidShape)
	}
	if err := dataset.ValidateRho(rho); err != nil {
		return nil, fmt.Errorf("conditional critic: %w", err)
	}
	return &ConditionalCritic{dim: dim, rho: rho, sigma: math.Sqrt(1 - rho*rho)}, nil
}

// Rho is the correlation the critic was built for.
func (c *ConditionalCritic) Rho() float64 { return c.rho }

func (c *ConditionalCritic) Scores(x, y *mat.Dense) (*mat.Dense, error) {
	n, dx := x.Dims()
	m, dy := y.Dims()
	if dx != c.dim || dy != c.dim {
		return nil, fmt.Errorf("conditional critic: got x dim %d, y dim %d, want %d", dx, dy, c.dim)
	}
	s := mat.NewDense(n, m, nil)
	for i := 0; i < n; i++ {
		xr := x.RawRowView(i)
		for j := 0; j < m; j++ {
			yr := y.RawRowView(j)
			lp := 0.0
			for k := 0; k < c.dim; k++ {
				lp += distuv.Normal{Mu: c.rho * xr[k], Sigma: c.sigma}.LogProb(yr[k])
			}
			s.Set(i, j, lp)
		}
	}
	return s, nil
}
