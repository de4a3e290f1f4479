package nn

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"pibnn_lib/autograd"
	"pibnn_lib/nn/layers"
	"pibnn_lib/tensor"
	"pibnn_lib/utils"
)

func batch(t *testing.T) *tensor.Tensor {
	t.Helper()
	x, err := tensor.FromRows([][]float64{
		{0.1, -0.5, 1.2},
		{-1.0, 0.3, 0.0},
		{0.7, 0.7, -0.4},
	})
	require.NoError(t, err)
	return x
}

func TestBayesianNetworkShapesAndGroups(t *testing.T) {
	net := NewBayesianNetwork(rand.NewSource(1))
	pred, kl, err := net.Forward(autograd.Leaf(batch(t), true))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1}, pred.Shape())
	assert.Greater(t, kl.Item(), 0.0)

	assert.Len(t, net.Parameters(), 12)
	means := net.Parameters(layers.Mean)
	scales := net.Parameters(layers.Scale)
	require.Len(t, means, 6)
	require.Len(t, scales, 6)
	for _, p := range means {
		assert.Equal(t, layers.Mean, p.Kind, p.Name)
	}
	for _, p := range scales {
		assert.Equal(t, layers.Scale, p.Kind, p.Name)
	}
}

func TestForwardKLMatchesRecomputedKL(t *testing.T) {
	net := NewBayesianNetwork(rand.NewSource(2))
	_, kl, err := net.Forward(autograd.Leaf(batch(t), false))
	require.NoError(t, err)
	assert.InDelta(t, net.KL().Item(), kl.Item(), 1e-9)
}

func TestSampleIsStochasticPredictIsNot(t *testing.T) {
	net := NewBayesianNetwork(rand.NewSource(3))
	x := batch(t)

	a, err := net.Sample(x)
	require.NoError(t, err)
	b, err := net.Sample(x)
	require.NoError(t, err)
	assert.NotEqual(t, a.Data, b.Data)

	p1, err := net.Predict(x)
	require.NoError(t, err)
	p2, err := net.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, p1.Data, p2.Data)
	assert.True(t, autograd.GradEnabled())
}

func TestSampleMeanConvergesToMeanForward(t *testing.T) {
	net := NewBayesianNetwork(rand.NewSource(4))
	// Narrow posteriors keep the ReLU bias of the sample mean negligible.
	for _, p := range net.Parameters(layers.Scale) {
		for i := range p.Var.Value.Data {
			p.Var.Value.Data[i] = -6
		}
	}
	x := batch(t)
	const n = 1000
	sum := make([]float64, x.Rows())
	for i := 0; i < n; i++ {
		s, err := net.Sample(x)
		require.NoError(t, err)
		for j, v := range s.Data {
			sum[j] += v
		}
	}
	mean, err := net.Predict(x)
	require.NoError(t, err)
	for j := range sum {
		assert.InDelta(t, mean.Data[j], sum[j]/n, 0.01)
	}
}

func TestWeightsRoundTrip(t *testing.T) {
	net := NewBayesianNetwork(rand.NewSource(5))
	path := filepath.Join(t.TempDir(), "weights.json")
	require.NoError(t, utils.SaveWeights(path, net.Weights()))

	loaded, err := utils.LoadWeights(path)
	require.NoError(t, err)
	other := NewBayesianNetwork(rand.NewSource(6))
	require.NoError(t, other.LoadWeights(loaded))

	want, err := net.Predict(batch(t))
	require.NoError(t, err)
	got, err := other.Predict(batch(t))
	require.NoError(t, err)
	assert.Equal(t, want.Data, got.Data)
}

func TestLoadWeightsRejectsWrongShape(t *testing.T) {
	net := NewBayesianNetwork(rand.NewSource(7))
	before := net.Weights()

	// Layer 0 and the leading tensors of layer 1 are valid and differ from
	// net's own; the bias mean of layer 1 is not.
	w := NewBayesianNetwork(rand.NewSource(8)).Weights()
	lw := w.Layers["linear_1"]
	lw.BiasMu = utils.TensorToWeightData("bias_mu", tensor.New(1, 3))
	w.Layers["linear_1"] = lw
	require.Error(t, net.LoadWeights(w))
	assert.Equal(t, before, net.Weights())

	delete(w.Layers, "linear_2")
	require.Error(t, net.LoadWeights(w))
	assert.Equal(t, before, net.Weights())
}

func TestMSELoss(t *testing.T) {
	pred := autograd.Leaf(tensor.Column([]float64{1, 2, 3}), true)
	target := autograd.Constant(tensor.Column([]float64{1, 0, 6}))
	loss, err := MSELoss(pred, target)
	require.NoError(t, err)
	assert.InDelta(t, (0.0+4+9)/3, loss.Item(), 1e-12)

	_, err = MSELoss(pred, autograd.Constant(tensor.New(1, 3)))
	require.Error(t, err)
}
