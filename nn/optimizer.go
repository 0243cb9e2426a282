package nn

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Optimizer applies one update to a parameter set from its stored gradients.
// An optimizer instance owns the state of exactly one parameter set.
type Optimizer interface {
	Step(params []*Param)
	Name() string
}

// NewOptimizer returns an optimizer by name ("adam" or "sgd").
func NewOptimizer(name string, lr float64) (Optimizer, error) {
	if lr <= 0 || math.IsNaN(lr) || math.IsInf(lr, 0) {
		return nil, fmt.Errorf("nn: learning rate must be positive and finite (got %g)", lr)
	}
	switch strings.ToLower(name) {
	case "", "adam":
		return NewAdam(lr), nil
	case "sgd":
		return &SGD{LR: lr}, nil
	default:
		return nil, fmt.Errorf("nn: unknown optimizer %q", name)
	}
}

// SGD is plain stochastic gradient descent: w -= lr * grad.
type SGD struct {
	LR float64
}

func (o *SGD) Name() string { return "sgd" }

func (o *SGD) Step(params []*Param) {
	for _, p := range params {
		p.Value.Apply(func(i, j int, v float64) float64 {
			return v - o.LR*p.Grad.At(i, j)
		}, p.Value)
	}
}

type adamState struct {
	m, v *mat.Dense
}

// Adam implements bias-corrected adaptive moment estimation.
type Adam struct {
	LR      float64
	Beta1   float64
	Beta2   float64
	Epsilon float64

	t     int
	state map[*Param]*adamState
}

// NewAdam returns Adam with the usual β1=0.9, β2=0.999, ε=1e-8.
func NewAdam(lr float64) *Adam {
	return &Adam{
		LR:      lr,
		Beta1:   0.9,
		Beta2:   0.999,
		Epsilon: 1e-8,
		state:   make(map[*Param]*adamState),
	}
}

func (o *Adam) Name() string { return "adam" }

func (o *Adam) Step(params []*Param) {
	if len(params) == 0 {
		return
	}
	o.t++
	b1Corr := 1 - math.Pow(o.Beta1, float64(o.t))
	b2Corr := 1 - math.Pow(o.Beta2, float64(o.t))
	for _, p := range params {
		st, ok := o.state[p]
		if !ok {
			r, c := p.Value.Dims()
			st = &adamState{m: mat.NewDense(r, c, nil), v: mat.NewDense(r, c, nil)}
			o.state[p] = st
		}
		w := p.Value.RawMatrix()
		g := p.Grad.RawMatrix()
		m := st.m.RawMatrix()
		v := st.v.RawMatrix()
		for i := 0; i < w.Rows; i++ {
			for j := 0; j < w.Cols; j++ {
				gi := g.Data[i*g.Stride+j]
				mi := &m.Data[i*m.Stride+j]
				vi := &v.Data[i*v.Stride+j]
				*mi = o.Beta1*(*mi) + (1-o.Beta1)*gi
				*vi = o.Beta2*(*vi) + (1-o.Beta2)*gi*gi
				mhat := *mi / b1Corr
				vhat := *vi / b2Corr
				w.Data[i*w.Stride+j] -= o.LR * mhat / (math.Sqrt(vhat) + o.Epsilon)
			}
		}
	}
}
