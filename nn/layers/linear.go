package layers

import (
	"fmt"
	"math"
	"math/rand/v2"

	"mibound/nn"
	"mibound/tensor"

	"gonum.org/v1/gonum/mat"
)

// Linear is a fully-connected layer computing y = xW + B for a batch x
// with one sample per row.
type Linear struct {
	W, B *nn.Param

	lastInput *mat.Dense
}

// NewLinear(inDim→outDim) sets up W with Glorot-normal weights and a zero bias.
func NewLinear(inDim, outDim int, rng *rand.Rand) *Linear {
	w := mat.NewDense(inDim, outDim, nil)
	scale := math.Sqrt(2.0 / float64(inDim+outDim))
	raw := w.RawMatrix().Data
	for i := range raw {
		raw[i] = rng.NormFloat64() * scale
	}
	return &Linear{
		W: nn.NewParam(fmt.Sprintf("linear_%d_%d.weight", inDim, outDim), w),
		B: nn.NewParam(fmt.Sprintf("linear_%d_%d.bias", inDim, outDim), mat.NewDense(1, outDim, nil)),
	}
}

// Forward computes xW + B and caches x for the backward pass.
func (l *Linear) Forward(x *mat.Dense) (*mat.Dense, error) {
	out, err := tensor.MatMul(x, l.W.Value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Tag(), err)
	}
	bias := l.B.Value.RawRowView(0)
	rows, _ := out.Dims()
	for i := 0; i < rows; i++ {
		row := out.RawRowView(i)
		for j := range row {
			row[j] += bias[j]
		}
	}
	l.lastInput = x
	return out, nil
}

// Backward stores dW = xᵀg and dB = Σ_rows g, and returns gWᵀ.
func (l *Linear) Backward(gradOut *mat.Dense) (*mat.Dense, error) {
	if l.lastInput == nil {
		return nil, fmt.Errorf("%s: no cached input for backward pass", l.Tag())
	}
	gr, gc := gradOut.Dims()
	xr, _ := l.lastInput.Dims()
	_, outDim := l.W.Value.Dims()
	if gr != xr || gc != outDim {
		return nil, fmt.Errorf("%s: %w: gradOut %dx%d for input with %d rows", l.Tag(), tensor.ErrShapeMismatch, gr, gc, xr)
	}
	l.W.Grad.Mul(l.lastInput.T(), gradOut)
	l.B.Grad.Copy(tensor.ColSums(gradOut))

	gradIn := mat.NewDense(xr, l.inDim(), nil)
	gradIn.Mul(gradOut, l.W.Value.T())
	return gradIn, nil
}

func (l *Linear) Params() []*nn.Param { return []*nn.Param{l.W, l.B} }

func (l *Linear) inDim() int {
	r, _ := l.W.Value.Dims()
	return r
}

func (l *Linear) Tag() string {
	inDim, outDim := l.W.Value.Dims()
	return fmt.Sprintf("Linear_%d_%d", inDim, outDim)
}
