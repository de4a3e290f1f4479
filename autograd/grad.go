package autograd

import (
	"github.com/pkg/errors"

	"pibnn_lib/tensor"
)

var (
	// ErrNoGraph is returned when the differentiated output carries no graph,
	// e.g. it was produced under NoGrad or from a gradient computed without
	// CreateGraph.
	ErrNoGraph = errors.New("autograd: output does not require grad")
	// ErrUnused is returned when an input is not reachable from the output.
	ErrUnused = errors.New("autograd: input was not used in the graph")
)

type gradConfig struct {
	createGraph bool
	allowUnused bool
	seed        *Var
}

// Option configures Grad.
type Option func(*gradConfig)

// CreateGraph records the backward pass so the returned gradients can be
// differentiated again.
func CreateGraph() Option {
	return func(c *gradConfig) { c.createGraph = true }
}

// AllowUnused returns zero gradients for unreachable inputs instead of
// ErrUnused.
func AllowUnused() Option {
	return func(c *gradConfig) { c.allowUnused = true }
}

// WithSeed sets the gradient flowing into the output. The default is a
// tensor of ones shaped like the output.
func WithSeed(seed *Var) Option {
	return func(c *gradConfig) { c.seed = seed }
}

// Grad computes the gradient of the sum of output (weighted by the seed)
// with respect to each input.
func Grad(output *Var, inputs []*Var, opts ...Option) ([]*Var, error) {
	var cfg gradConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if !output.requiresGrad {
		return nil, errors.Wrapf(ErrNoGraph, "differentiating %v", output)
	}

	seed := cfg.seed
	if seed == nil {
		seed = Constant(tensor.Apply(output.Value, func(float64) float64 { return 1 }))
	} else if !tensor.SameShape(seed.Value, output.Value) {
		return nil, errors.Errorf("autograd: seed shape %v does not match output %v", seed.Value.Shape, output.Value.Shape)
	}

	order := topoSort(output)
	grads := map[*Var]*Var{output: seed}

	withGrad(cfg.createGraph, func() {
		for i := len(order) - 1; i >= 0; i-- {
			n := order[i]
			g, ok := grads[n]
			if !ok || n.backward == nil {
				continue
			}
			pg := n.backward(g)
			for k, p := range n.parents {
				if pg[k] == nil || !p.requiresGrad {
					continue
				}
				if acc, seen := grads[p]; seen {
					grads[p] = Add(acc, pg[k])
				} else {
					grads[p] = pg[k]
				}
			}
		}
	})

	out := make([]*Var, len(inputs))
	for i, in := range inputs {
		g, ok := grads[in]
		if !ok {
			if !cfg.allowUnused {
				return nil, errors.Wrapf(ErrUnused, "input %d %v", i, in)
			}
			g = zerosLike(in)
		}
		out[i] = g
	}
	return out, nil
}

// topoSort orders the grad-requiring nodes reachable from root so that
// every node comes after its parents.
func topoSort(root *Var) []*Var {
	var order []*Var
	visited := make(map[*Var]bool)

	var build func(n *Var)
	build = func(n *Var) {
		if visited[n] || !n.requiresGrad {
			return
		}
		visited[n] = true
		for _, p := range n.parents {
			build(p)
		}
		order = append(order, n)
	}
	build(root)
	return order
}
