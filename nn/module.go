package nn

import (
	"pibnn_lib/autograd"
	"pibnn_lib/nn/layers"
	"pibnn_lib/tensor"
)

// Module defines a single layer/unit in the network.
type Module interface {
	// Forward draws one sample of the module's weights and returns the
	// output together with the KL term of that same sample.
	Forward(x *autograd.Var) (out, kl *autograd.Var, err error)
	// ForwardMean evaluates with the posterior means only.
	ForwardMean(x *autograd.Var) (*autograd.Var, error)
	Parameters() []*layers.Parameter
}

// Sequential chains multiple Modules in order.
type Sequential struct {
	Layers []Module
}

// Forward applies each layer in sequence and sums their KL terms.
func (s *Sequential) Forward(x *autograd.Var) (out, kl *autograd.Var, err error) {
	out = x
	kl = autograd.Constant(tensor.Scalar(0))
	for _, layer := range s.Layers {
		var layerKL *autograd.Var
		out, layerKL, err = layer.Forward(out)
		if err != nil {
			return nil, nil, err
		}
		kl = autograd.Add(kl, layerKL)
	}
	return out, kl, nil
}

// ForwardMean applies each layer's mean-only forward in sequence.
func (s *Sequential) ForwardMean(x *autograd.Var) (*autograd.Var, error) {
	var err error
	out := x
	for _, layer := range s.Layers {
		out, err = layer.ForwardMean(out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Parameters concatenates the parameters of all layers.
func (s *Sequential) Parameters() []*layers.Parameter {
	var params []*layers.Parameter
	for _, layer := range s.Layers {
		params = append(params, layer.Parameters()...)
	}
	return params
}
