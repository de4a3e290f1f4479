// Package autograd implements reverse-mode automatic differentiation over
// tensor.Tensor values.
//
// Every operation records its parents and a backward function. Backward
// functions are written in terms of the same operations, so when Grad runs
// with CreateGraph the gradients it returns are graph nodes themselves and
// can be differentiated again. This is what the physics penalty needs for
// d²y/dx².
//
// Graph recording is process-wide state (see NoGrad) and the package is not
// safe for concurrent use.
package autograd

import (
	"fmt"

	"pibnn_lib/tensor"
)

var gradEnabled = true

// GradEnabled reports whether new operations are currently recorded.
func GradEnabled() bool { return gradEnabled }

// NoGrad runs fn with graph recording disabled. Values computed inside are
// plain constants.
func NoGrad(fn func()) {
	withGrad(false, fn)
}

func withGrad(enabled bool, fn func()) {
	prev := gradEnabled
	gradEnabled = enabled
	defer func() { gradEnabled = prev }()
	fn()
}

// Var is a node in the computation graph.
type Var struct {
	Value *tensor.Tensor

	requiresGrad bool
	parents      []*Var
	backward     func(g *Var) []*Var
	op           string
}

// Param wraps t as a trainable leaf.
func Param(t *tensor.Tensor) *Var {
	return &Var{Value: t, requiresGrad: true, op: "param"}
}

// Leaf wraps t as a leaf that optionally takes part in differentiation,
// e.g. an input batch whose derivatives are needed.
func Leaf(t *tensor.Tensor, requiresGrad bool) *Var {
	return &Var{Value: t, requiresGrad: requiresGrad, op: "leaf"}
}

// Constant wraps t as a value that is never differentiated.
func Constant(t *tensor.Tensor) *Var {
	return &Var{Value: t, op: "const"}
}

// RequiresGrad reports whether gradients can flow into v.
func (v *Var) RequiresGrad() bool { return v.requiresGrad }

// Shape of the underlying tensor.
func (v *Var) Shape() []int { return v.Value.Shape }

// Item returns the single value of a 1×1 Var.
func (v *Var) Item() float64 {
	if len(v.Value.Data) != 1 {
		panic(fmt.Sprintf("autograd: Item on %v tensor", v.Value.Shape))
	}
	return v.Value.Data[0]
}

func (v *Var) String() string {
	return fmt.Sprintf("Var(%s %v)", v.op, v.Value.Shape)
}

// record builds the result node of an operation. Parents and backward are
// kept only while recording is enabled and some parent requires grad.
func record(value *tensor.Tensor, op string, backward func(g *Var) []*Var, parents ...*Var) *Var {
	out := &Var{Value: value, op: op}
	if !gradEnabled {
		return out
	}
	for _, p := range parents {
		if p.requiresGrad {
			out.requiresGrad = true
			break
		}
	}
	if out.requiresGrad {
		out.parents = parents
		out.backward = backward
	}
	return out
}
