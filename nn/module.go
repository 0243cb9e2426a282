package nn

import (
	"gonum.org/v1/gonum/mat"
)

// Module defines a single layer/unit in the network. Matrices are
// row-major batches: one sample per row.
type Module interface {
	Forward(input *mat.Dense) (*mat.Dense, error)
	// Backward computes gradients and propagates them.
	// It takes the gradient of the loss with respect to the module's output,
	// stores the gradients of its own parameters, and returns the gradient
	// of the loss with respect to the module's input.
	Backward(gradOut *mat.Dense) (*mat.Dense, error)
	Params() []*Param
}

// Sequential chains multiple Modules in order.
type Sequential struct {
	Layers []Module
}

// Forward applies each layer in sequence.
func (s *Sequential) Forward(x *mat.Dense) (*mat.Dense, error) {
	var err error
	out := x
	for _, layer := range s.Layers {
		out, err = layer.Forward(out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Backward applies Backward in reverse order.
func (s *Sequential) Backward(grad *mat.Dense) (*mat.Dense, error) {
	var err error
	out := grad
	for i := len(s.Layers) - 1; i >= 0; i-- {
		out, err = s.Layers[i].Backward(out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Params collects the parameters of every layer.
func (s *Sequential) Params() []*Param {
	var ps []*Param
	for _, layer := range s.Layers {
		ps = append(ps, layer.Params()...)
	}
	return ps
}
