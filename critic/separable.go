package critic

import (
	"fmt"
	"math/rand/v2"

	"mibound/nn"
	"mibound/nn/layers"
	"mibound/tensor"

	"gonum.org/v1/gonum/mat"
)

// SeparableCritic embeds x and y with independent MLPs g and h and scores
// pairs by inner product, S = g(x)·h(y)ᵀ. The score matrix therefore has
// rank at most EmbedDim.
type SeparableCritic struct {
	g, h *nn.Sequential

	lastG, lastH *mat.Dense
}

// NewSeparable builds the twin embedding networks.
func NewSeparable(cfg Config, rng *rand.Rand) (*SeparableCritic, error) {
	if cfg.EmbedDim <= 0 {
		return nil, fmt.Errorf("critic: embed dim must be positive (got %d)", cfg.EmbedDim)
	}
	mc := layers.MLPConfig{In: cfg.Dim, Hidden: cfg.HiddenDim, Out: cfg.EmbedDim, Layers: cfg.Layers, Activation: cfg.Activation}
	g, err := layers.NewMLP(mc, rng)
	if err != nil {
		return nil, err
	}
	h, err := layers.NewMLP(mc, rng)
	if err != nil {
		return nil, err
	}
	return &SeparableCritic{g: g, h: h}, nil
}

func (c *SeparableCritic) Scores(x, y *mat.Dense) (*mat.Dense, error) {
	gx, err := c.g.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("separable critic g(x): %w", err)
	}
	hy, err := c.h.Forward(y)
	if err != nil {
		return nil, fmt.Errorf("separable critic h(y): %w", err)
	}
	c.lastG, c.lastH = gx, hy
	return tensor.MatMulT(gx, hy)
}

// Backward uses dG = dS·h(y) and dH = dSᵀ·g(x).
func (c *SeparableCritic) Backward(gradScores *mat.Dense) error {
	if c.lastG == nil {
		return fmt.Errorf("separable critic: backward before scores")
	}
	dG, err := tensor.MatMul(gradScores, c.lastH)
	if err != nil {
		return fmt.Errorf("separable critic: %w", err)
	}
	dH, err := tensor.MatMul(gradScores.T(), c.lastG)
	if err != nil {
		return fmt.Errorf("separable critic: %w", err)
	}
	if _, err := c.g.Backward(dG); err != nil {
		return err
	}
	_, err = c.h.Backward(dH)
	return err
}

func (c *SeparableCritic) Params() []*nn.Param {
	return append(c.g.Params(), c.h.Params()...)
}
