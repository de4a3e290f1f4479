package autograd

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"pibnn_lib/tensor"
)

func mustSameShape(op string, a, b *Var) {
	if !tensor.SameShape(a.Value, b.Value) {
		panic(errors.Errorf("autograd: %s shape mismatch %v vs %v", op, a.Value.Shape, b.Value.Shape))
	}
}

func zerosLike(v *Var) *Var {
	return Constant(tensor.New(v.Value.Shape...))
}

func elementwise(a, b *tensor.Tensor, fn func(x, y float64) float64) *tensor.Tensor {
	out := tensor.New(a.Shape...)
	for i := range out.Data {
		out.Data[i] = fn(a.Data[i], b.Data[i])
	}
	return out
}

// Add returns a+b.
func Add(a, b *Var) *Var {
	mustSameShape("add", a, b)
	v := elementwise(a.Value, b.Value, func(x, y float64) float64 { return x + y })
	return record(v, "add", func(g *Var) []*Var {
		return []*Var{g, g}
	}, a, b)
}

// Sub returns a-b.
func Sub(a, b *Var) *Var {
	mustSameShape("sub", a, b)
	v := elementwise(a.Value, b.Value, func(x, y float64) float64 { return x - y })
	return record(v, "sub", func(g *Var) []*Var {
		return []*Var{g, Neg(g)}
	}, a, b)
}

// Mul returns the element-wise product a⊙b.
func Mul(a, b *Var) *Var {
	mustSameShape("mul", a, b)
	v := elementwise(a.Value, b.Value, func(x, y float64) float64 { return x * y })
	return record(v, "mul", func(g *Var) []*Var {
		return []*Var{Mul(g, b), Mul(g, a)}
	}, a, b)
}

// Square returns a⊙a.
func Square(a *Var) *Var {
	return Mul(a, a)
}

// Neg returns -a.
func Neg(a *Var) *Var {
	return Scale(a, -1)
}

// Scale returns s·a for a constant s.
func Scale(a *Var, s float64) *Var {
	v := a.Value.Clone()
	floats.Scale(s, v.Data)
	return record(v, "scale", func(g *Var) []*Var {
		return []*Var{Scale(g, s)}
	}, a)
}

// AddScalar returns a+s for a constant s.
func AddScalar(a *Var, s float64) *Var {
	v := a.Value.Clone()
	floats.AddConst(s, v.Data)
	return record(v, "add_scalar", func(g *Var) []*Var {
		return []*Var{g}
	}, a)
}

// MatMul returns the matrix product a×b.
func MatMul(a, b *Var) *Var {
	v, err := tensor.MatMul(a.Value, b.Value)
	if err != nil {
		panic(errors.Wrap(err, "autograd: matmul"))
	}
	return record(v, "matmul", func(g *Var) []*Var {
		return []*Var{MatMul(g, Transpose(b)), MatMul(Transpose(a), g)}
	}, a, b)
}

// Transpose returns aᵀ.
func Transpose(a *Var) *Var {
	return record(tensor.Transpose(a.Value), "transpose", func(g *Var) []*Var {
		return []*Var{Transpose(g)}
	}, a)
}

// AddRow adds the 1×m row b to every row of the n×m matrix a.
func AddRow(a, b *Var) *Var {
	if b.Value.Rows() != 1 || b.Value.Cols() != a.Value.Cols() {
		panic(errors.Errorf("autograd: add_row shape mismatch %v vs %v", a.Value.Shape, b.Value.Shape))
	}
	cols := a.Value.Cols()
	v := a.Value.Clone()
	for i := 0; i < a.Value.Rows(); i++ {
		floats.Add(v.Data[i*cols:(i+1)*cols], b.Value.Data)
	}
	return record(v, "add_row", func(g *Var) []*Var {
		return []*Var{g, SumRows(g)}
	}, a, b)
}

// SumRows collapses an n×m matrix to the 1×m row of column sums.
func SumRows(a *Var) *Var {
	rows, cols := a.Value.Rows(), a.Value.Cols()
	v := tensor.New(1, cols)
	for i := 0; i < rows; i++ {
		floats.Add(v.Data, a.Value.Data[i*cols:(i+1)*cols])
	}
	return record(v, "sum_rows", func(g *Var) []*Var {
		return []*Var{BroadcastRows(g, rows)}
	}, a)
}

// BroadcastRows repeats the 1×m row a n times.
func BroadcastRows(a *Var, n int) *Var {
	cols := a.Value.Cols()
	v := tensor.New(n, cols)
	for i := 0; i < n; i++ {
		copy(v.Data[i*cols:], a.Value.Data)
	}
	return record(v, "broadcast_rows", func(g *Var) []*Var {
		return []*Var{SumRows(g)}
	}, a)
}

// Sum reduces a to a 1×1 total.
func Sum(a *Var) *Var {
	shape := append([]int(nil), a.Value.Shape...)
	return record(tensor.Scalar(floats.Sum(a.Value.Data)), "sum", func(g *Var) []*Var {
		return []*Var{Fill(g, shape...)}
	}, a)
}

// Mean reduces a to its 1×1 average.
func Mean(a *Var) *Var {
	return Scale(Sum(a), 1/float64(len(a.Value.Data)))
}

// Fill broadcasts the 1×1 value a to the given shape.
func Fill(a *Var, shape ...int) *Var {
	v := tensor.New(shape...)
	for i := range v.Data {
		v.Data[i] = a.Value.Data[0]
	}
	return record(v, "fill", func(g *Var) []*Var {
		return []*Var{Sum(g)}
	}, a)
}

// Relu returns max(a, 0).
func Relu(a *Var) *Var {
	return record(tensor.ReluPlain(a.Value), "relu", func(g *Var) []*Var {
		return []*Var{reluBackward(g, a)}
	}, a)
}

// reluBackward passes g where a > 0. Its derivative with respect to a is
// zero everywhere but the edge is kept, so a second differentiation still
// reaches the inputs a depends on.
func reluBackward(g, a *Var) *Var {
	v := elementwise(g.Value, a.Value, func(gv, av float64) float64 {
		if av > 0 {
			return gv
		}
		return 0
	})
	return record(v, "relu_backward", func(gg *Var) []*Var {
		return []*Var{reluBackward(gg, a), zerosLike(a)}
	}, g, a)
}

// Exp returns eᵃ.
func Exp(a *Var) *Var {
	var out *Var
	out = record(tensor.Apply(a.Value, math.Exp), "exp", func(g *Var) []*Var {
		return []*Var{Mul(g, out)}
	}, a)
	return out
}

// Log returns ln(a).
func Log(a *Var) *Var {
	return record(tensor.Apply(a.Value, math.Log), "log", func(g *Var) []*Var {
		return []*Var{Mul(g, Reciprocal(a))}
	}, a)
}

// Reciprocal returns 1/a.
func Reciprocal(a *Var) *Var {
	var out *Var
	out = record(tensor.Apply(a.Value, func(x float64) float64 { return 1 / x }), "reciprocal", func(g *Var) []*Var {
		return []*Var{Neg(Mul(g, Square(out)))}
	}, a)
	return out
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// Sigmoid returns 1/(1+e⁻ᵃ).
func Sigmoid(a *Var) *Var {
	var out *Var
	out = record(tensor.Apply(a.Value, sigmoid), "sigmoid", func(g *Var) []*Var {
		return []*Var{Mul(g, Mul(out, AddScalar(Neg(out), 1)))}
	}, a)
	return out
}

// SoftplusValue is log(1+eˣ) in a form that does not overflow for large x.
func SoftplusValue(x float64) float64 {
	return math.Max(x, 0) + math.Log1p(math.Exp(-math.Abs(x)))
}

// Softplus returns log(1+eᵃ).
func Softplus(a *Var) *Var {
	return record(tensor.Apply(a.Value, SoftplusValue), "softplus", func(g *Var) []*Var {
		return []*Var{Mul(g, Sigmoid(a))}
	}, a)
}

// Col selects column j of a as an n×1 matrix.
func Col(a *Var, j int) *Var {
	cols := a.Value.Cols()
	return record(tensor.Column(a.Value.Col(j)), "col", func(g *Var) []*Var {
		return []*Var{scatterCol(g, j, cols)}
	}, a)
}

// scatterCol places the n×1 matrix a in column j of an n×cols zero matrix.
func scatterCol(a *Var, j, cols int) *Var {
	rows := a.Value.Rows()
	v := tensor.New(rows, cols)
	for i := 0; i < rows; i++ {
		v.Data[i*cols+j] = a.Value.Data[i]
	}
	return record(v, "scatter_col", func(g *Var) []*Var {
		return []*Var{Col(g, j)}
	}, a)
}
