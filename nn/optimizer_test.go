package nn

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// minimise f(w) = Σ (w - target)^2 with gradient 2(w - target)
func quadraticDescent(t *testing.T, opt Optimizer, steps int) *Param {
	t.Helper()
	target := []float64{3, -2}
	p := NewParam("w", mat.NewDense(1, 2, nil))
	for s := 0; s < steps; s++ {
		for j, tv := range target {
			p.Grad.Set(0, j, 2*(p.Value.At(0, j)-tv))
		}
		opt.Step([]*Param{p})
	}
	return p
}

func TestAdamConverges(t *testing.T) {
	p := quadraticDescent(t, NewAdam(0.05), 2000)
	require.InDelta(t, 3, p.Value.At(0, 0), 1e-2)
	require.InDelta(t, -2, p.Value.At(0, 1), 1e-2)
}

func TestSGDConverges(t *testing.T) {
	p := quadraticDescent(t, &SGD{LR: 0.1}, 200)
	require.InDelta(t, 3, p.Value.At(0, 0), 1e-6)
	require.InDelta(t, -2, p.Value.At(0, 1), 1e-6)
}

func TestAdamFirstStepIsLearningRate(t *testing.T) {
	// bias correction makes the first step exactly lr*sign(g)
	p := NewParam("w", mat.NewDense(1, 1, []float64{0}))
	p.Grad.Set(0, 0, 123)
	NewAdam(0.01).Step([]*Param{p})
	require.InDelta(t, -0.01, p.Value.At(0, 0), 1e-9)
}

func TestNewOptimizer(t *testing.T) {
	opt, err := NewOptimizer("", 1e-3)
	require.NoError(t, err)
	require.Equal(t, "adam", opt.Name())
	opt, err = NewOptimizer("SGD", 1e-3)
	require.NoError(t, err)
	require.Equal(t, "sgd", opt.Name())
	_, err = NewOptimizer("rmsprop", 1e-3)
	require.Error(t, err)
	_, err = NewOptimizer("adam", 0)
	require.Error(t, err)
}
