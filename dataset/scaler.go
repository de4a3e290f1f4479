package dataset

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"pibnn_lib/tensor"
	"pibnn_lib/utils"
)

// Scaler standardizes each column to zero mean and unit variance using the
// population standard deviation. Constant columns get a unit scale.
type Scaler struct {
	Mean []float64
	Std  []float64
}

// Fit computes the per-column statistics of x.
func (s *Scaler) Fit(x *tensor.Tensor) error {
	if x.Rows() == 0 {
		return errors.New("scaler: cannot fit empty data")
	}
	cols := x.Cols()
	s.Mean = make([]float64, cols)
	s.Std = make([]float64, cols)
	for j := 0; j < cols; j++ {
		mean, std := stat.PopMeanStdDev(x.Col(j), nil)
		if std == 0 {
			std = 1
		}
		s.Mean[j], s.Std[j] = mean, std
	}
	return nil
}

// Transform returns a standardized copy of x.
func (s *Scaler) Transform(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(s.Mean) == 0 {
		return nil, errors.New("scaler: not fitted")
	}
	if x.Cols() != len(s.Mean) {
		return nil, errors.Errorf("scaler: fitted on %d columns, got %d", len(s.Mean), x.Cols())
	}
	out := x.Clone()
	cols := len(s.Mean)
	for i, v := range out.Data {
		j := i % cols
		out.Data[i] = (v - s.Mean[j]) / s.Std[j]
	}
	return out, nil
}

// FitTransform fits on x and returns its standardized copy.
func (s *Scaler) FitTransform(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := s.Fit(x); err != nil {
		return nil, err
	}
	return s.Transform(x)
}

// Data returns the statistics in their serializable form.
func (s *Scaler) Data() *utils.ScalerData {
	return &utils.ScalerData{
		Mean: append([]float64(nil), s.Mean...),
		Std:  append([]float64(nil), s.Std...),
	}
}

// ScalerFromData restores a fitted scaler.
func ScalerFromData(d *utils.ScalerData) (*Scaler, error) {
	if d == nil || len(d.Mean) == 0 || len(d.Mean) != len(d.Std) {
		return nil, errors.New("scaler: missing or inconsistent statistics")
	}
	for j, v := range d.Std {
		if v <= 0 {
			return nil, errors.Errorf("scaler: non-positive std %g in column %d", v, j)
		}
	}
	return &Scaler{
		Mean: append([]float64(nil), d.Mean...),
		Std:  append([]float64(nil), d.Std...),
	}, nil
}
