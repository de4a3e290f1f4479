package utils

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"pibnn_lib/tensor"
)

// WeightsVersion is written into every saved weights file.
const WeightsVersion = "1.0"

// WeightData represents serializable weight data for a layer
type WeightData struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// ModelWeights represents all weights in a model plus what inference needs
// to rescale raw inputs.
type ModelWeights struct {
	Version  string                 `json:"version"`
	RunID    string                 `json:"run_id,omitempty"`
	Features []string               `json:"features,omitempty"`
	Target   string                 `json:"target,omitempty"`
	Scaler   *ScalerData            `json:"scaler,omitempty"`
	Layers   map[string]LayerWeight `json:"layers"`
}

// LayerWeight contains the posterior means and scale codes of a variational layer
type LayerWeight struct {
	WeightMu  *WeightData `json:"weight_mu"`
	WeightRho *WeightData `json:"weight_rho"`
	BiasMu    *WeightData `json:"bias_mu"`
	BiasRho   *WeightData `json:"bias_rho"`
}

// ScalerData holds the per-feature standardization fitted on the training data.
type ScalerData struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// SaveWeights saves model weights to a JSON file
func SaveWeights(filepath string, weights *ModelWeights) error {
	data, err := json.MarshalIndent(weights, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal weights")
	}
	return errors.Wrapf(os.WriteFile(filepath, data, 0644), "failed to write %s", filepath)
}

// LoadWeights loads model weights from a JSON file
func LoadWeights(filepath string) (*ModelWeights, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read weights file")
	}
	var weights ModelWeights
	if err := json.Unmarshal(data, &weights); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal weights")
	}
	if weights.Version != WeightsVersion {
		return nil, errors.Errorf("unsupported weights version %q", weights.Version)
	}
	return &weights, nil
}

// TensorToWeightData converts a tensor to serializable weight data
func TensorToWeightData(name string, t *tensor.Tensor) *WeightData {
	return &WeightData{
		Name:  name,
		Shape: append([]int{}, t.Shape...),
		Data:  append([]float64{}, t.Data...), // copy
	}
}

// WeightDataToTensor converts weight data back to a tensor
func WeightDataToTensor(wd *WeightData) (*tensor.Tensor, error) {
	if wd == nil {
		return nil, errors.New("missing weight data")
	}
	t := tensor.New(wd.Shape...)
	if len(t.Data) != len(wd.Data) {
		return nil, errors.Errorf("%s: shape %v needs %d values, got %d", wd.Name, wd.Shape, len(t.Data), len(wd.Data))
	}
	copy(t.Data, wd.Data)
	return t, nil
}
