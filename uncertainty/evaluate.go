// Package uncertainty estimates predictive intervals by Monte Carlo sampling a
// stochastic model and scores how well those intervals cover held-out data.
package uncertainty

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"pibnn_lib/tensor"
)

// Interval bounds in percent.
const (
	LowerPercentile = 2.5
	UpperPercentile = 97.5
)

// ErrNoSamples is returned when a prediction is requested with n < 1.
var ErrNoSamples = errors.New("uncertainty: at least one sample is required")

// Sampler produces one stochastic forward pass per call. Implementations must
// not record gradients.
type Sampler interface {
	Sample(x *tensor.Tensor) (*tensor.Tensor, error)
}

// Prediction holds per-point summaries over the MC samples.
type Prediction struct {
	Mean  []float64
	Lower []float64
	Upper []float64
}

// Len is the number of points.
func (p *Prediction) Len() int { return len(p.Mean) }

// Predict draws n samples at x and summarizes each point by its mean and the
// 2.5th and 97.5th percentiles.
func Predict(s Sampler, x *tensor.Tensor, n int) (*Prediction, error) {
	if n < 1 {
		return nil, errors.Wrapf(ErrNoSamples, "got %d", n)
	}
	rows := x.Rows()
	// samples[i] holds the n draws for point i
	samples := make([][]float64, rows)
	for i := range samples {
		samples[i] = make([]float64, n)
	}
	for k := 0; k < n; k++ {
		out, err := s.Sample(x)
		if err != nil {
			return nil, errors.Wrapf(err, "sample %d", k)
		}
		if len(out.Data) != rows {
			return nil, errors.Errorf("uncertainty: sample has %d values for %d points", len(out.Data), rows)
		}
		for i, v := range out.Data {
			samples[i][k] = v
		}
	}

	p := &Prediction{
		Mean:  make([]float64, rows),
		Lower: make([]float64, rows),
		Upper: make([]float64, rows),
	}
	for i, draws := range samples {
		p.Mean[i] = stat.Mean(draws, nil)
		sort.Float64s(draws)
		p.Lower[i] = Percentile(draws, LowerPercentile)
		p.Upper[i] = Percentile(draws, UpperPercentile)
	}
	return p, nil
}

// Percentile interpolates linearly between the closest ranks of the sorted
// slice, q in [0, 100]. It matches numpy's default method.
func Percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	pos := q / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo < 0 {
		lo = 0
	}
	if hi > len(sorted)-1 {
		hi = len(sorted) - 1
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// Coverage is the fraction of y lying inside [Lower, Upper], bounds included.
func Coverage(y []float64, p *Prediction) (float64, error) {
	if len(y) != p.Len() {
		return 0, errors.Errorf("uncertainty: %d targets for %d predictions", len(y), p.Len())
	}
	if len(y) == 0 {
		return 0, errors.New("uncertainty: empty evaluation set")
	}
	inside := 0
	for i, v := range y {
		if v >= p.Lower[i] && v <= p.Upper[i] {
			inside++
		}
	}
	return float64(inside) / float64(len(y)), nil
}

// Evaluate predicts at x with n samples and scores the coverage of y.
func Evaluate(s Sampler, x *tensor.Tensor, y []float64, n int) (*Prediction, float64, error) {
	p, err := Predict(s, x, n)
	if err != nil {
		return nil, 0, err
	}
	c, err := Coverage(y, p)
	if err != nil {
		return nil, 0, err
	}
	return p, c, nil
}
