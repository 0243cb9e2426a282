package tensor

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is returned when operand dimensions are incompatible.
var ErrShapeMismatch = errors.New("tensor: shape mismatch")

// MatMul returns a×b, or an error if the inner dimensions differ.
func MatMul(a, b mat.Matrix) (*mat.Dense, error) {
	r, k := a.Dims()
	k2, c := b.Dims()
	if k != k2 {
		return nil, fmt.Errorf("%w: inner dimensions %d vs %d", ErrShapeMismatch, k, k2)
	}
	out := mat.NewDense(r, c, nil)
	out.Mul(a, b)
	return out, nil
}

// MatMulT returns a×bᵀ. Both operands must have the same column count.
func MatMulT(a, b mat.Matrix) (*mat.Dense, error) {
	return MatMul(a, b.T())
}

// Apply returns a new matrix holding fn applied to every element of m.
func Apply(fn func(v float64) float64, m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, _ int, v float64) float64 { return fn(v) }, m)
	return out
}

// Diag returns the main diagonal of a square matrix.
func Diag(m mat.Matrix) []float64 {
	r, c := m.Dims()
	n := r
	if c < n {
		n = c
	}
	d := make([]float64, n)
	for i := range d {
		d[i] = m.At(i, i)
	}
	return d
}

// ColSums returns a 1×c matrix with the column sums of m.
func ColSums(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(1, c, nil)
	for j := 0; j < c; j++ {
		s := 0.0
		for i := 0; i < r; i++ {
			s += m.At(i, j)
		}
		out.Set(0, j, s)
	}
	return out
}

// PairConcat builds the (n·m)×(dx+dy) matrix whose row i·m+j is the
// concatenation [x_i, y_j], for x of shape n×dx and y of shape m×dy.
func PairConcat(x, y mat.Matrix) *mat.Dense {
	n, dx := x.Dims()
	m, dy := y.Dims()
	out := mat.NewDense(n*m, dx+dy, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			row := out.RawRowView(i*m + j)
			for k := 0; k < dx; k++ {
				row[k] = x.At(i, k)
			}
			for k := 0; k < dy; k++ {
				row[dx+k] = y.At(j, k)
			}
		}
	}
	return out
}

// Rank counts singular values of m larger than tol times the largest one.
func Rank(m mat.Matrix, tol float64) (int, error) {
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDNone); !ok {
		return 0, errors.New("tensor: SVD factorization failed")
	}
	values := svd.Values(nil)
	if len(values) == 0 || values[0] == 0 {
		return 0, nil
	}
	rank := 0
	for _, v := range values {
		if v > tol*values[0] {
			rank++
		}
	}
	return rank, nil
}

// AllFinite reports whether every element of m is neither NaN nor ±Inf.
func AllFinite(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
