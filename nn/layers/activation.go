package layers

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"mibound/nn"
	"mibound/tensor"

	"gonum.org/v1/gonum/mat"
)

// ErrUnknownActivation is returned by ParseActivation for unsupported names.
var ErrUnknownActivation = errors.New("layers: unknown activation")

// ActivationKind enumerates the supported elementwise nonlinearities.
type ActivationKind int

const (
	ReLU ActivationKind = iota
	LeakyReLU
	ELU
	Tanh
	Softplus
)

const leakySlope = 0.01

var activationNames = map[ActivationKind]string{
	ReLU:      "relu",
	LeakyReLU: "leaky_relu",
	ELU:       "elu",
	Tanh:      "tanh",
	Softplus:  "softplus",
}

func (k ActivationKind) String() string {
	if s, ok := activationNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ActivationKind(%d)", int(k))
}

// ParseActivation maps a config name onto an ActivationKind.
func ParseActivation(name string) (ActivationKind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for k, s := range activationNames {
		if s == n {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownActivation, name)
}

// Activation is a parameter-free elementwise layer.
type Activation struct {
	kind      ActivationKind
	lastInput *mat.Dense
}

// NewActivation creates a new activation layer.
func NewActivation(kind ActivationKind) *Activation {
	return &Activation{kind: kind}
}

// Forward applies the nonlinearity and caches the pre-activation.
func (a *Activation) Forward(x *mat.Dense) (*mat.Dense, error) {
	a.lastInput = x
	return tensor.Apply(a.apply, x), nil
}

// Backward multiplies gradOut by the derivative at the cached pre-activation.
func (a *Activation) Backward(gradOut *mat.Dense) (*mat.Dense, error) {
	if a.lastInput == nil {
		return nil, fmt.Errorf("%s: no cached input for backward pass", a.Tag())
	}
	r, c := a.lastInput.Dims()
	gr, gc := gradOut.Dims()
	if r != gr || c != gc {
		return nil, fmt.Errorf("%s: %w: input %dx%d, gradOut %dx%d", a.Tag(), tensor.ErrShapeMismatch, r, c, gr, gc)
	}
	gradIn := mat.NewDense(r, c, nil)
	gradIn.Apply(func(i, j int, g float64) float64 {
		return g * a.derivative(a.lastInput.At(i, j))
	}, gradOut)
	return gradIn, nil
}

func (a *Activation) Params() []*nn.Param { return nil }

func (a *Activation) Tag() string {
	return "Activation_" + a.kind.String()
}

func (a *Activation) apply(v float64) float64 {
	switch a.kind {
	case LeakyReLU:
		if v < 0 {
			return leakySlope * v
		}
		return v
	case ELU:
		if v < 0 {
			return math.Expm1(v)
		}
		return v
	case Tanh:
		return math.Tanh(v)
	case Softplus:
		return nn.Softplus(v)
	default:
		if v < 0 {
			return 0
		}
		return v
	}
}

func (a *Activation) derivative(v float64) float64 {
	switch a.kind {
	case LeakyReLU:
		if v < 0 {
			return leakySlope
		}
		return 1
	case ELU:
		if v < 0 {
			return math.Exp(v)
		}
		return 1
	case Tanh:
		t := math.Tanh(v)
		return 1 - t*t
	case Softplus:
		return nn.Sigmoid(v)
	default:
		if v > 0 {
			return 1
		}
		return 0
	}
}
