package nn

import (
	"math"

	"github.com/pkg/errors"

	"pibnn_lib/autograd"
	"pibnn_lib/nn/layers"
)

// Optimizer updates a fixed, ordered set of parameters in place.
type Optimizer interface {
	// Step applies grads[i] to params[i].
	Step(params []*layers.Parameter, grads []*autograd.Var) error

	// Steps is the number of updates applied so far.
	Steps() int
}

// Adam is the Adam optimizer without weight decay. Moment buffers are
// indexed by position, so every Step must receive the same parameter list.
type Adam struct {
	LearningRate float64
	beta1        float64
	beta2        float64
	epsilon      float64
	step         int

	// First moment estimates (momentum)
	m [][]float64

	// Second moment estimates (variance)
	v [][]float64
}

func NewAdam(learningRate float64) *Adam {
	return NewAdamWithBetas(learningRate, 0.9, 0.999, 1e-8)
}

func NewAdamWithBetas(learningRate, beta1, beta2, epsilon float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		beta1:        beta1,
		beta2:        beta2,
		epsilon:      epsilon,
	}
}

func (opt *Adam) Step(params []*layers.Parameter, grads []*autograd.Var) error {
	if len(params) != len(grads) {
		return errors.Errorf("adam: %d parameters but %d gradients", len(params), len(grads))
	}
	if opt.m == nil {
		opt.m = make([][]float64, len(params))
		opt.v = make([][]float64, len(params))
		for i, p := range params {
			opt.m[i] = make([]float64, len(p.Var.Value.Data))
			opt.v[i] = make([]float64, len(p.Var.Value.Data))
		}
	}
	if len(opt.m) != len(params) {
		return errors.Errorf("adam: state holds %d parameters, got %d", len(opt.m), len(params))
	}

	opt.step++

	// Bias correction factors
	biasCorrection1 := 1.0 - math.Pow(opt.beta1, float64(opt.step))
	biasCorrection2 := 1.0 - math.Pow(opt.beta2, float64(opt.step))

	for i, p := range params {
		data := p.Var.Value.Data
		g := grads[i].Value.Data
		if len(g) != len(data) || len(opt.m[i]) != len(data) {
			return errors.Errorf("adam: parameter %s has %d values, gradient %d", p.Name, len(data), len(g))
		}
		for j := range data {
			opt.m[i][j] = opt.beta1*opt.m[i][j] + (1-opt.beta1)*g[j]
			opt.v[i][j] = opt.beta2*opt.v[i][j] + (1-opt.beta2)*g[j]*g[j]

			mHat := opt.m[i][j] / biasCorrection1
			vHat := opt.v[i][j] / biasCorrection2

			data[j] -= opt.LearningRate * mHat / (math.Sqrt(vHat) + opt.epsilon)
		}
	}
	return nil
}

func (opt *Adam) Steps() int { return opt.step }
