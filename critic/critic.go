// Package critic implements the scoring functions f(x, y) whose score
// matrices feed the variational MI bounds, and the optional baselines a(y).
//
// Every critic returns an n×m matrix S with S[i][j] = f(x_i, y_j), so the
// diagonal of a square batch holds the positive (jointly drawn) pairs.
package critic

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"mibound/nn"
	"mibound/nn/layers"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrUnknownKind is returned by ParseKind for unsupported critic names.
	ErrUnknownKind = errors.New("critic: unknown critic kind")
	// ErrUnknownBaseline is returned by ParseBaseline for unsupported names.
	ErrUnknownBaseline = errors.New("critic: unknown baseline")
)

// Kind enumerates the critic variants.
type Kind int

const (
	Separable Kind = iota
	Concat
	Conditional
)

var kindNames = map[Kind]string{
	Separable:   "separable",
	Concat:      "concat",
	Conditional: "conditional",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a config name onto a Kind.
func ParseKind(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for k, s := range kindNames {
		if s == n {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Critic scores every (x_i, y_j) pair of a batch.
type Critic interface {
	Scores(x, y *mat.Dense) (*mat.Dense, error)
}

// Trainable is a critic with learnable parameters. Backward takes the
// gradient of the loss with respect to the last score matrix and stores
// the parameter gradients.
type Trainable interface {
	Critic
	Backward(gradScores *mat.Dense) error
	Params() []*nn.Param
}

// Config describes the critic architecture.
type Config struct {
	Kind       Kind
	Dim        int
	HiddenDim  int
	EmbedDim   int
	Layers     int
	Activation layers.ActivationKind
}

// Source hands the training loop the critic to use for one iteration.
type Source interface {
	// ForStep returns the critic for an iteration whose ground-truth
	// correlation is rho.
	ForStep(rho float64) (Critic, error)
	// Params are the parameters optimised across iterations; nil when the
	// source builds a fresh critic every step.
	Params() []*nn.Param
}

// NewSource builds the source for cfg.Kind. Learned critics are built once
// and persist across iterations; the conditional critic is rebuilt from
// the scheduled correlation on every call to ForStep.
func NewSource(cfg Config, rng *rand.Rand) (Source, error) {
	if cfg.Dim <= 0 {
		return nil, fmt.Errorf("critic: dim must be positive (got %d)", cfg.Dim)
	}
	switch cfg.Kind {
	case Separable:
		c, err := NewSeparable(cfg, rng)
		if err != nil {
			return nil, err
		}
		return &persistent{critic: c}, nil
	case Concat:
		c, err := NewConcat(cfg, rng)
		if err != nil {
			return nil, err
		}
		return &persistent{critic: c}, nil
	case Conditional:
		return &conditionalSource{dim: cfg.Dim}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownKind, cfg.Kind)
	}
}

type persistent struct {
	critic Trainable
}

func (p *persistent) ForStep(float64) (Critic, error) { return p.critic, nil }
func (p *persistent) Params() []*nn.Param              { return p.critic.Params() }

type conditionalSource struct {
	dim int
}

func (c *conditionalSource) ForStep(rho float64) (Critic, error) {
	return NewConditional(c.dim, rho)
}

func (c *conditionalSource) Params() []*nn.Param { return nil }
