package layers

import (
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"pibnn_lib/autograd"
)

// ParamKind tags a parameter with the optimizer group that owns it.
type ParamKind int

const (
	// Mean parameters are the posterior means of weights and biases.
	Mean ParamKind = iota
	// Scale parameters are the unconstrained codes ρ with σ = softplus(ρ).
	Scale
)

func (k ParamKind) String() string {
	switch k {
	case Mean:
		return "mean"
	case Scale:
		return "scale"
	default:
		return "unknown"
	}
}

// Parameter is one trainable tensor together with its group tag.
type Parameter struct {
	Name string
	Kind ParamKind
	Var  *autograd.Var
}

// NoiseSource draws standard-normal samples.
type NoiseSource interface {
	Rand() float64
}

// NewNoise returns a standard normal drawing from src. A nil src gets a
// time-seeded source, so weight noise differs between runs.
func NewNoise(src rand.Source) NoiseSource {
	if src == nil {
		src = rand.NewSource(uint64(time.Now().UnixNano()))
	}
	return distuv.Normal{Mu: 0, Sigma: 1, Src: src}
}

// Filter keeps the parameters of the given kind, in order.
func Filter(params []*Parameter, kind ParamKind) []*Parameter {
	var out []*Parameter
	for _, p := range params {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// Vars extracts the graph nodes of params.
func Vars(params []*Parameter) []*autograd.Var {
	out := make([]*autograd.Var, len(params))
	for i, p := range params {
		out[i] = p.Var
	}
	return out
}
