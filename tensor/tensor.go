package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Tensor is a simple n-D array backed by a flat []float64.
// Everything in the model is 2-D (rows, cols); a scalar is 1×1.
type Tensor struct {
	Data  []float64
	Shape []int
}

// New allocates a Tensor of given shape (product of dims = len(Data)).
func New(shape ...int) *Tensor {
	// Compute total size
	total := 1
	for _, d := range shape {
		total *= d
	}
	return &Tensor{
		Data:  make([]float64, total),
		Shape: append([]int(nil), shape...),
	}
}

// NewWithData creates a 1-D tensor from existing data slice.
func NewWithData(data []float64) *Tensor {
	return &Tensor{
		Data:  append([]float64(nil), data...),
		Shape: []int{len(data)},
	}
}

// FromRows builds a rows×cols tensor from a slice of equal-length rows.
func FromRows(rows [][]float64) (*Tensor, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("FromRows requires at least one row")
	}
	cols := len(rows[0])
	out := New(len(rows), cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(r), cols)
		}
		copy(out.Data[i*cols:], r)
	}
	return out, nil
}

// Column wraps a vector as an n×1 tensor.
func Column(v []float64) *Tensor {
	return &Tensor{Data: append([]float64(nil), v...), Shape: []int{len(v), 1}}
}

// Scalar returns a 1×1 tensor.
func Scalar(v float64) *Tensor {
	return &Tensor{Data: []float64{v}, Shape: []int{1, 1}}
}

// Full returns a rows×cols tensor filled with v.
func Full(rows, cols int, v float64) *Tensor {
	out := New(rows, cols)
	for i := range out.Data {
		out.Data[i] = v
	}
	return out
}

// Rows is the leading dimension of a 2-D tensor.
func (t *Tensor) Rows() int { return t.Shape[0] }

// Cols is the trailing dimension of a 2-D tensor (1 for vectors).
func (t *Tensor) Cols() int {
	if len(t.Shape) < 2 {
		return 1
	}
	return t.Shape[1]
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		Data:  append([]float64(nil), t.Data...),
		Shape: append([]int(nil), t.Shape...),
	}
}

// SameShape reports whether a and b have identical shapes.
func SameShape(a, b *Tensor) bool {
	if len(a.Shape) != len(b.Shape) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	return true
}

// Add returns a+b (same shape), or error if shapes differ.
func Add(a, b *Tensor) (*Tensor, error) {
	if !SameShape(a, b) {
		return nil, fmt.Errorf("shape mismatch: %v vs %v", a.Shape, b.Shape)
	}
	out := a.Clone()
	floats.Add(out.Data, b.Data)
	return out, nil
}

// MatMul returns a×b (2-D only), or error if dims mismatch.
func MatMul(a, b *Tensor) (*Tensor, error) {
	// Only 2-D tensors
	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		return nil, fmt.Errorf("MatMul requires 2-D tensors, got %v and %v", a.Shape, b.Shape)
	}
	r, k := a.Shape[0], a.Shape[1]
	k2, c := b.Shape[0], b.Shape[1]
	if k != k2 {
		return nil, fmt.Errorf("inner dimensions must match: %d vs %d", k, k2)
	}
	out := New(r, c)
	dst := mat.NewDense(r, c, out.Data)
	dst.Mul(mat.NewDense(r, k, a.Data), mat.NewDense(k2, c, b.Data))
	return out, nil
}

// Transpose returns the transpose of a 2-D tensor.
func Transpose(a *Tensor) *Tensor {
	r, c := a.Rows(), a.Cols()
	out := New(c, r)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Data[j*r+i] = a.Data[i*c+j]
		}
	}
	return out
}

// Apply maps fn over every element into a new tensor.
func Apply(a *Tensor, fn func(v float64) float64) *Tensor {
	out := New(a.Shape...)
	for i, v := range a.Data {
		out.Data[i] = fn(v)
	}
	return out
}

// ReluPlain applies ReLU to each element in a, returns new Tensor.
func ReluPlain(a *Tensor) *Tensor {
	return Apply(a, func(v float64) float64 {
		if v > 0 {
			return v
		}
		return 0
	})
}

// Col copies column j of a 2-D tensor into a plain slice.
func (t *Tensor) Col(j int) []float64 {
	r, c := t.Rows(), t.Cols()
	if j < 0 || j >= c {
		panic(fmt.Sprintf("Col: index %d out of bounds (shape: %v)", j, t.Shape))
	}
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		out[i] = t.Data[i*c+j]
	}
	return out
}

// Row returns a view of row i of a 2-D tensor.
func (t *Tensor) Row(i int) []float64 {
	c := t.Cols()
	return t.Data[i*c : (i+1)*c]
}

// SelectRows gathers the given rows into a new tensor.
func (t *Tensor) SelectRows(idx []int) *Tensor {
	c := t.Cols()
	out := New(len(idx), c)
	for k, i := range idx {
		copy(out.Data[k*c:], t.Row(i))
	}
	return out
}

// At returns the element at the given indices.
// For a 4D tensor [a, b, c, d], At(i, j, k, l) returns the element at position [i][j][k][l].
func (t *Tensor) At(indices ...int) float64 {
	return t.Data[t.offset("At", indices)]
}

// Set sets the element at the given indices to the given value.
func (t *Tensor) Set(value float64, indices ...int) {
	t.Data[t.offset("Set", indices)] = value
}

func (t *Tensor) offset(op string, indices []int) int {
	if len(indices) != len(t.Shape) {
		panic(fmt.Sprintf("%s: expected %d indices, got %d", op, len(t.Shape), len(indices)))
	}

	// Compute linear index
	idx := 0
	stride := 1
	for i := len(indices) - 1; i >= 0; i-- {
		if indices[i] < 0 || indices[i] >= t.Shape[i] {
			panic(fmt.Sprintf("%s: index %d out of bounds for dimension %d (shape: %v)", op, indices[i], i, t.Shape))
		}
		idx += indices[i] * stride
		stride *= t.Shape[i]
	}
	return idx
}
