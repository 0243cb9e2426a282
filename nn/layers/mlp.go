package layers

import (
	"fmt"
	"math/rand/v2"

	"mibound/nn"
)

// MLPConfig describes a feed-forward stack.
type MLPConfig struct {
	In         int
	Hidden     int
	Out        int
	Layers     int // hidden→hidden blocks after the first hidden layer
	Activation ActivationKind
}

// NewMLP builds Linear(in,hidden)·act·[Linear(hidden,hidden)·act]×Layers·Linear(hidden,out).
func NewMLP(cfg MLPConfig, rng *rand.Rand) (*nn.Sequential, error) {
	if cfg.In <= 0 || cfg.Hidden <= 0 || cfg.Out <= 0 {
		return nil, fmt.Errorf("layers: mlp dimensions must be positive (in=%d hidden=%d out=%d)", cfg.In, cfg.Hidden, cfg.Out)
	}
	if cfg.Layers < 0 {
		return nil, fmt.Errorf("layers: mlp layers must be >= 0 (got %d)", cfg.Layers)
	}
	mods := []nn.Module{
		NewLinear(cfg.In, cfg.Hidden, rng),
		NewActivation(cfg.Activation),
	}
	for i := 0; i < cfg.Layers; i++ {
		mods = append(mods, NewLinear(cfg.Hidden, cfg.Hidden, rng), NewActivation(cfg.Activation))
	}
	mods = append(mods, NewLinear(cfg.Hidden, cfg.Out, rng))
	return &nn.Sequential{Layers: mods}, nil
}
