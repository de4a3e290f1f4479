package nn

import (
	"github.com/pkg/errors"

	"pibnn_lib/autograd"
	"pibnn_lib/tensor"
)

// MSELoss is mean((pred - target)²).
func MSELoss(pred, target *autograd.Var) (*autograd.Var, error) {
	if !tensor.SameShape(pred.Value, target.Value) {
		return nil, errors.Errorf("mse: prediction shape %v does not match target %v", pred.Shape(), target.Shape())
	}
	return autograd.Mean(autograd.Square(autograd.Sub(pred, target))), nil
}
