package nn

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"

	"pibnn_lib/autograd"
	"pibnn_lib/nn/layers"
	"pibnn_lib/tensor"
	"pibnn_lib/utils"
)

// Fixed architecture: 3 → 16 → 16 → 1.
const (
	InputDim  = 3
	HiddenDim = 16
	OutputDim = 1
)

// BayesianNetwork is the variational regressor: two ReLU hidden layers and a
// linear output, every weight a learned Gaussian.
type BayesianNetwork struct {
	Hidden1 *layers.VariationalLinear
	Hidden2 *layers.VariationalLinear
	Output  *layers.VariationalLinear

	seq *Sequential
}

// NewBayesianNetwork builds the network. All initialization and weight noise
// is drawn from src; nil means a time-seeded source.
func NewBayesianNetwork(src rand.Source) *BayesianNetwork {
	noise := layers.NewNoise(src)
	n := &BayesianNetwork{
		Hidden1: layers.NewVariationalLinear(InputDim, HiddenDim, noise),
		Hidden2: layers.NewVariationalLinear(HiddenDim, HiddenDim, noise),
		Output:  layers.NewVariationalLinear(HiddenDim, OutputDim, noise),
	}
	n.seq = &Sequential{Layers: []Module{
		n.Hidden1,
		mustAct("relu"),
		n.Hidden2,
		mustAct("relu"),
		n.Output,
	}}
	return n
}

func mustAct(name string) Module {
	act, err := layers.NewActivation(name)
	if err != nil {
		panic(err)
	}
	return act
}

// VariationalLayers returns the three weight layers in order.
func (n *BayesianNetwork) VariationalLayers() []*layers.VariationalLinear {
	return []*layers.VariationalLinear{n.Hidden1, n.Hidden2, n.Output}
}

// Forward is one stochastic pass returning the prediction and the summed KL
// of the three layers for this very sample.
func (n *BayesianNetwork) Forward(x *autograd.Var) (pred, kl *autograd.Var, err error) {
	return n.seq.Forward(x)
}

// ForwardMean is the deterministic pass at the posterior means.
func (n *BayesianNetwork) ForwardMean(x *autograd.Var) (*autograd.Var, error) {
	return n.seq.ForwardMean(x)
}

// Sample runs one stochastic pass with graph recording disabled.
func (n *BayesianNetwork) Sample(x *tensor.Tensor) (*tensor.Tensor, error) {
	var out *autograd.Var
	var err error
	autograd.NoGrad(func() {
		out, _, err = n.seq.Forward(autograd.Constant(x))
	})
	if err != nil {
		return nil, err
	}
	return out.Value, nil
}

// Predict returns the mean-only prediction with graph recording disabled.
func (n *BayesianNetwork) Predict(x *tensor.Tensor) (*tensor.Tensor, error) {
	var out *autograd.Var
	var err error
	autograd.NoGrad(func() {
		out, err = n.seq.ForwardMean(autograd.Constant(x))
	})
	if err != nil {
		return nil, err
	}
	return out.Value, nil
}

// KL recomputes the network divergence from the current parameters.
func (n *BayesianNetwork) KL() *autograd.Var {
	kl := autograd.Constant(tensor.Scalar(0))
	for _, l := range n.VariationalLayers() {
		kl = autograd.Add(kl, l.KL())
	}
	return kl
}

// Parameters lists every parameter; pass kinds to keep only those groups.
func (n *BayesianNetwork) Parameters(kinds ...layers.ParamKind) []*layers.Parameter {
	all := n.seq.Parameters()
	if len(kinds) == 0 {
		return all
	}
	var out []*layers.Parameter
	for _, k := range kinds {
		out = append(out, layers.Filter(all, k)...)
	}
	return out
}

func layerKey(i int) string { return fmt.Sprintf("linear_%d", i) }

// Weights snapshots the parameters into their serializable form.
func (n *BayesianNetwork) Weights() *utils.ModelWeights {
	w := &utils.ModelWeights{
		Version: utils.WeightsVersion,
		Layers:  make(map[string]utils.LayerWeight),
	}
	for i, l := range n.VariationalLayers() {
		w.Layers[layerKey(i)] = utils.LayerWeight{
			WeightMu:  utils.TensorToWeightData("weight_mu", l.WeightMu.Value),
			WeightRho: utils.TensorToWeightData("weight_rho", l.WeightRho.Value),
			BiasMu:    utils.TensorToWeightData("bias_mu", l.BiasMu.Value),
			BiasRho:   utils.TensorToWeightData("bias_rho", l.BiasRho.Value),
		}
	}
	return w
}

// LoadWeights overwrites the parameters from w. Shapes must match the
// fixed architecture; on error no parameter is changed.
func (n *BayesianNetwork) LoadWeights(w *utils.ModelWeights) error {
	type pending struct {
		dst *autograd.Var
		src *tensor.Tensor
	}
	var loads []pending
	for i, l := range n.VariationalLayers() {
		lw, ok := w.Layers[layerKey(i)]
		if !ok {
			return errors.Errorf("weights missing %s", layerKey(i))
		}
		pairs := []struct {
			dst *autograd.Var
			src *utils.WeightData
		}{
			{l.WeightMu, lw.WeightMu},
			{l.WeightRho, lw.WeightRho},
			{l.BiasMu, lw.BiasMu},
			{l.BiasRho, lw.BiasRho},
		}
		for _, p := range pairs {
			t, err := utils.WeightDataToTensor(p.src)
			if err != nil {
				return errors.Wrapf(err, "loading %s", layerKey(i))
			}
			if !tensor.SameShape(t, p.dst.Value) {
				return errors.Errorf("%s %s: shape %v, expected %v", layerKey(i), p.src.Name, t.Shape, p.dst.Shape())
			}
			loads = append(loads, pending{dst: p.dst, src: t})
		}
	}
	for _, l := range loads {
		copy(l.dst.Value.Data, l.src.Data)
	}
	return nil
}
