package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSoftplusStable(t *testing.T) {
	require.InDelta(t, math.Log(2), Softplus(0), 1e-12)
	require.InDelta(t, 1000, Softplus(1000), 1e-9)
	require.InDelta(t, 0, Softplus(-1000), 1e-12)
	require.False(t, math.IsInf(Softplus(1e6), 0))
}

func TestSigmoidStable(t *testing.T) {
	require.InDelta(t, 0.5, Sigmoid(0), 1e-12)
	require.InDelta(t, 1, Sigmoid(800), 1e-12)
	require.InDelta(t, 0, Sigmoid(-800), 1e-12)
	require.False(t, math.IsNaN(Sigmoid(-1e6)))
}
