package critic

import (
	"fmt"
	"math/rand/v2"

	"mibound/nn"
	"mibound/nn/layers"
	"mibound/tensor"

	"gonum.org/v1/gonum/mat"
)

// ConcatCritic runs a single MLP over every concatenated pair [x_i, y_j].
// It is evaluated as one batched forward pass over n·m rows.
type ConcatCritic struct {
	f *nn.Sequential

	n, m int
}

// NewConcat builds the joint network on 2·Dim inputs.
func NewConcat(cfg Config, rng *rand.Rand) (*ConcatCritic, error) {
	f, err := layers.NewMLP(layers.MLPConfig{
		In:         2 * cfg.Dim,
		Hidden:     cfg.HiddenDim,
		Out:        1,
		Layers:     cfg.Layers,
		Activation: cfg.Activation,
	}, rng)
	if err != nil {
		return nil, err
	}
	return &ConcatCritic{f: f}, nil
}

func (c *ConcatCritic) Scores(x, y *mat.Dense) (*mat.Dense, error) {
	n, _ := x.Dims()
	m, _ := y.Dims()
	out, err := c.f.Forward(tensor.PairConcat(x, y))
	if err != nil {
		return nil, fmt.Errorf("concat critic: %w", err)
	}
	c.n, c.m = n, m
	// row i·m+j of out is f(x_i, y_j); the column is reshaped in place
	return mat.NewDense(n, m, out.RawMatrix().Data), nil
}

func (c *ConcatCritic) Backward(gradScores *mat.Dense) error {
	r, cols := gradScores.Dims()
	if c.n == 0 || r != c.n || cols != c.m {
		return fmt.Errorf("concat critic: %w: gradient %dx%d for scores %dx%d", tensor.ErrShapeMismatch, r, cols, c.n, c.m)
	}
	g := mat.DenseCopyOf(gradScores)
	_, err := c.f.Backward(mat.NewDense(r*cols, 1, g.RawMatrix().Data))
	return err
}

func (c *ConcatCritic) Params() []*nn.Param { return c.f.Params() }
