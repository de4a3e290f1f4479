// Package physics turns sign expectations on the fatigue-life surface into a
// differentiable penalty on the network's input derivatives.
//
// With W, S and R the three input features, a physically plausible
// prediction has
//
//	∂y/∂W ≤ 0,  ∂y/∂S ≤ 0,  ∂²y/∂S² ≥ 0,  ∂y/∂R ≥ 0
//
// and each violation is charged through a one-sided ReLU. The penalty nudges
// training; it does not enforce the constraints.
package physics

import (
	"github.com/pkg/errors"

	"pibnn_lib/autograd"
	"pibnn_lib/tensor"
)

// Input feature columns.
const (
	FeatureW = 0
	FeatureS = 1
	FeatureR = 2
)

// Derivatives are the per-row input derivatives of a prediction, each n×1.
type Derivatives struct {
	DW  *autograd.Var
	DS  *autograd.Var
	D2S *autograd.Var
	DR  *autograd.Var
}

// Derive differentiates pred with respect to x twice along S, keeping the
// graph so the result can be trained through. x must be a leaf that requires
// grad and pred must have been computed from it with recording enabled;
// otherwise the error wraps autograd.ErrNoGraph or autograd.ErrUnused.
// When ∂y/∂S carries no graph it is constant in x and ∂²y/∂S² is zero.
func Derive(pred, x *autograd.Var) (*Derivatives, error) {
	if len(x.Shape()) != 2 || x.Value.Cols() <= FeatureR {
		return nil, errors.Errorf("physics: expected (batch, 3) input, got %v", x.Shape())
	}
	first, err := autograd.Grad(pred, []*autograd.Var{x}, autograd.CreateGraph())
	if err != nil {
		return nil, errors.Wrap(err, "physics: first derivative")
	}
	dx := first[0]
	dS := autograd.Col(dx, FeatureS)

	d2S := autograd.Constant(tensor.New(dS.Value.Rows(), 1))
	if dS.RequiresGrad() {
		second, err := autograd.Grad(dS, []*autograd.Var{x}, autograd.CreateGraph(), autograd.AllowUnused())
		if err != nil {
			return nil, errors.Wrap(err, "physics: second derivative")
		}
		d2S = autograd.Col(second[0], FeatureS)
	}

	return &Derivatives{
		DW:  autograd.Col(dx, FeatureW),
		DS:  dS,
		D2S: d2S,
		DR:  autograd.Col(dx, FeatureR),
	}, nil
}

// Penalty is mean(relu(∂S)) + mean(relu(-∂²S)) + mean(relu(-∂R)) + mean(relu(∂W)).
func Penalty(d *Derivatives) *autograd.Var {
	terms := []*autograd.Var{
		autograd.Mean(autograd.Relu(d.DS)),
		autograd.Mean(autograd.Relu(autograd.Neg(d.D2S))),
		autograd.Mean(autograd.Relu(autograd.Neg(d.DR))),
		autograd.Mean(autograd.Relu(d.DW)),
	}
	total := terms[0]
	for _, t := range terms[1:] {
		total = autograd.Add(total, t)
	}
	return total
}

// Residual is Penalty(Derive(pred, x)).
func Residual(pred, x *autograd.Var) (*autograd.Var, error) {
	d, err := Derive(pred, x)
	if err != nil {
		return nil, err
	}
	return Penalty(d), nil
}
