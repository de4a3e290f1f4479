package layers

import (
	"fmt"

	"pibnn_lib/autograd"
	"pibnn_lib/tensor"
)

// Activation is a parameter-free element-wise stage.
type Activation struct {
	name string
	fn   func(*autograd.Var) *autograd.Var
}

// SupportedActivations maps names accepted by NewActivation to their functions.
var SupportedActivations = map[string]func(*autograd.Var) *autograd.Var{
	"relu":     autograd.Relu,
	"identity": func(x *autograd.Var) *autograd.Var { return x },
}

// NewActivation looks up an activation by name.
func NewActivation(name string) (*Activation, error) {
	fn, ok := SupportedActivations[name]
	if !ok {
		return nil, fmt.Errorf("unsupported activation: %s", name)
	}
	return &Activation{name: name, fn: fn}, nil
}

// Forward applies the activation; it contributes no KL.
func (a *Activation) Forward(x *autograd.Var) (out, kl *autograd.Var, err error) {
	return a.fn(x), autograd.Constant(tensor.Scalar(0)), nil
}

// ForwardMean is identical to Forward for a deterministic stage.
func (a *Activation) ForwardMean(x *autograd.Var) (*autograd.Var, error) {
	return a.fn(x), nil
}

// Parameters is empty.
func (a *Activation) Parameters() []*Parameter { return nil }

// Tag returns the activation name.
func (a *Activation) Tag() string { return a.name }
