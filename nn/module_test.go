package nn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// dummy layer: adds a constant, owns one scalar parameter
type addLayer struct {
	c *Param
}

func newAddLayer(c float64) *addLayer {
	return &addLayer{c: NewParam("c", mat.NewDense(1, 1, []float64{c}))}
}

func (l *addLayer) Forward(x *mat.Dense) (*mat.Dense, error) {
	out := mat.DenseCopyOf(x)
	c := l.c.Value.At(0, 0)
	out.Apply(func(_, _ int, v float64) float64 { return v + c }, out)
	return out, nil
}

func (l *addLayer) Backward(grad *mat.Dense) (*mat.Dense, error) {
	l.c.Grad.Set(0, 0, mat.Sum(grad))
	return grad, nil
}

func (l *addLayer) Params() []*Param { return []*Param{l.c} }

// dummy layer: error on forward
type errLayer struct{}

func (l *errLayer) Forward(*mat.Dense) (*mat.Dense, error)  { return nil, errors.New("fail") }
func (l *errLayer) Backward(*mat.Dense) (*mat.Dense, error) { return nil, nil }
func (l *errLayer) Params() []*Param                        { return nil }

func TestSequentialPlain(t *testing.T) {
	a := mat.NewDense(1, 1, []float64{1})
	seq := &Sequential{Layers: []Module{newAddLayer(2), newAddLayer(3)}}
	out, err := seq.Forward(a)
	require.NoError(t, err)
	if out.At(0, 0) != 6 {
		t.Fatalf("expected 6, got %f", out.At(0, 0))
	}
	require.Len(t, seq.Params(), 2)

	g, err := seq.Backward(mat.NewDense(1, 1, []float64{0.5}))
	require.NoError(t, err)
	require.Equal(t, 0.5, g.At(0, 0))
	for _, p := range seq.Params() {
		require.Equal(t, 0.5, p.Grad.At(0, 0))
	}
	ZeroGrad(seq.Params())
	for _, p := range seq.Params() {
		require.Zero(t, p.Grad.At(0, 0))
	}
}

func TestSequentialForwardError(t *testing.T) {
	seq := &Sequential{Layers: []Module{newAddLayer(0), &errLayer{}}}
	_, err := seq.Forward(mat.NewDense(1, 1, nil))
	require.Error(t, err)
}

func TestCloneValuesIsDeep(t *testing.T) {
	p := NewParam("w", mat.NewDense(1, 2, []float64{1, 2}))
	clones := CloneValues([]*Param{p})
	p.Value.Set(0, 0, 9)
	require.Equal(t, 1.0, clones[0].At(0, 0))
}
