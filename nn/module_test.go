package nn

import (
	"errors"
	"testing"

	"pibnn_lib/autograd"
	"pibnn_lib/nn/layers"
	"pibnn_lib/tensor"
)

// dummy layer: adds a constant and reports a fixed KL
type addLayer struct{ c, kl float64 }

func (l *addLayer) Forward(x *autograd.Var) (*autograd.Var, *autograd.Var, error) {
	out, err := l.ForwardMean(x)
	return out, autograd.Constant(tensor.Scalar(l.kl)), err
}
func (l *addLayer) ForwardMean(x *autograd.Var) (*autograd.Var, error) {
	return autograd.AddScalar(x, l.c), nil
}
func (l *addLayer) Parameters() []*layers.Parameter { return nil }

// dummy layer: error on forward
type errLayer struct{}

func (l *errLayer) Forward(x *autograd.Var) (*autograd.Var, *autograd.Var, error) {
	return nil, nil, errors.New("fail")
}
func (l *errLayer) ForwardMean(x *autograd.Var) (*autograd.Var, error) {
	return nil, errors.New("fail")
}
func (l *errLayer) Parameters() []*layers.Parameter { return nil }

func TestSequentialPlain(t *testing.T) {
	a := autograd.Constant(tensor.Scalar(1))
	seq := &Sequential{Layers: []Module{&addLayer{c: 2, kl: 0.5}, &addLayer{c: 3, kl: 0.25}}}
	out, kl, err := seq.Forward(a)
	if err != nil {
		t.Fatal(err)
	}
	if out.Item() != 6 {
		t.Fatalf("expected 6, got %f", out.Item())
	}
	if kl.Item() != 0.75 {
		t.Fatalf("expected KL 0.75, got %f", kl.Item())
	}
	mean, err := seq.ForwardMean(a)
	if err != nil {
		t.Fatal(err)
	}
	if mean.Item() != 6 {
		t.Fatalf("expected mean forward 6, got %f", mean.Item())
	}
}

func TestSequentialError(t *testing.T) {
	seq := &Sequential{Layers: []Module{&addLayer{c: 0}, &errLayer{}}}
	if _, _, err := seq.Forward(autograd.Constant(tensor.Scalar(1))); err == nil {
		t.Errorf("expected forward error")
	}
	if _, err := seq.ForwardMean(autograd.Constant(tensor.Scalar(1))); err == nil {
		t.Errorf("expected mean forward error")
	}
}
