package layers

import (
	"github.com/pkg/errors"

	"pibnn_lib/autograd"
	"pibnn_lib/tensor"
)

const (
	// InitMeanStd is the standard deviation of the initial posterior means.
	InitMeanStd = 0.1
	// InitRho is the initial scale code; softplus(-3) ≈ 0.049.
	InitRho = -3.0
)

// VariationalLinear is a fully-connected layer whose weights and biases are
// independent Gaussians N(μ, softplus(ρ)²). Every Forward call draws a new
// weight sample with the reparameterization μ + σ·ε.
type VariationalLinear struct {
	// (out, in) like a dense Linear layer
	WeightMu, WeightRho *autograd.Var
	// (1, out)
	BiasMu, BiasRho *autograd.Var

	noise NoiseSource
}

// NewVariationalLinear initializes the means from
// N(0, InitMeanStd²) and every scale code to InitRho.
func NewVariationalLinear(inDim, outDim int, noise NoiseSource) *VariationalLinear {
	l := &VariationalLinear{noise: noise}

	wMu := tensor.New(outDim, inDim)
	for i := range wMu.Data {
		wMu.Data[i] = noise.Rand() * InitMeanStd
	}
	bMu := tensor.New(1, outDim)
	for i := range bMu.Data {
		bMu.Data[i] = noise.Rand() * InitMeanStd
	}

	l.WeightMu = autograd.Param(wMu)
	l.WeightRho = autograd.Param(tensor.Full(outDim, inDim, InitRho))
	l.BiasMu = autograd.Param(bMu)
	l.BiasRho = autograd.Param(tensor.Full(1, outDim, InitRho))
	return l
}

// InDim is the number of input features.
func (l *VariationalLinear) InDim() int { return l.WeightMu.Value.Cols() }

// OutDim is the number of output features.
func (l *VariationalLinear) OutDim() int { return l.WeightMu.Value.Rows() }

func (l *VariationalLinear) checkInput(x *autograd.Var) error {
	if len(x.Shape()) != 2 || x.Value.Cols() != l.InDim() {
		return errors.Errorf("variational linear expects (batch, %d) input, got %v", l.InDim(), x.Shape())
	}
	return nil
}

// sample realizes μ + softplus(ρ)·ε with fresh noise and returns the sample
// together with σ.
func (l *VariationalLinear) sample(mu, rho *autograd.Var) (w, sigma *autograd.Var) {
	eps := tensor.New(mu.Value.Shape...)
	for i := range eps.Data {
		eps.Data[i] = l.noise.Rand()
	}
	sigma = autograd.Softplus(rho)
	return autograd.Add(mu, autograd.Mul(sigma, autograd.Constant(eps))), sigma
}

// Forward computes x·Wᵀ + b for one weight sample and returns the KL
// divergence of the current posterior from N(0, 1).
func (l *VariationalLinear) Forward(x *autograd.Var) (out, kl *autograd.Var, err error) {
	if err := l.checkInput(x); err != nil {
		return nil, nil, err
	}
	w, wSigma := l.sample(l.WeightMu, l.WeightRho)
	b, bSigma := l.sample(l.BiasMu, l.BiasRho)

	out = autograd.AddRow(autograd.MatMul(x, autograd.Transpose(w)), b)
	kl = autograd.Add(GaussianKL(l.WeightMu, wSigma), GaussianKL(l.BiasMu, bSigma))
	return out, kl, nil
}

// ForwardMean evaluates the layer at the posterior means, without noise.
func (l *VariationalLinear) ForwardMean(x *autograd.Var) (*autograd.Var, error) {
	if err := l.checkInput(x); err != nil {
		return nil, err
	}
	return autograd.AddRow(autograd.MatMul(x, autograd.Transpose(l.WeightMu)), l.BiasMu), nil
}

// KL recomputes the layer's divergence from the current parameters.
func (l *VariationalLinear) KL() *autograd.Var {
	return autograd.Add(
		GaussianKL(l.WeightMu, autograd.Softplus(l.WeightRho)),
		GaussianKL(l.BiasMu, autograd.Softplus(l.BiasRho)),
	)
}

// Parameters lists the four tensors, means first.
func (l *VariationalLinear) Parameters() []*Parameter {
	return []*Parameter{
		{Name: "weight_mu", Kind: Mean, Var: l.WeightMu},
		{Name: "bias_mu", Kind: Mean, Var: l.BiasMu},
		{Name: "weight_rho", Kind: Scale, Var: l.WeightRho},
		{Name: "bias_rho", Kind: Scale, Var: l.BiasRho},
	}
}

// GaussianKL is KL(N(μ, σ²) ‖ N(0, 1)) summed over all elements:
// -0.5 · Σ(1 + ln σ² - μ² - σ²).
func GaussianKL(mu, sigma *autograd.Var) *autograd.Var {
	s2 := autograd.Square(sigma)
	term := autograd.AddScalar(autograd.Sub(autograd.Sub(autograd.Log(s2), autograd.Square(mu)), s2), 1)
	return autograd.Scale(autograd.Sum(term), -0.5)
}
