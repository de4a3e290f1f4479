package utils

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds training configuration
type Config struct {
	DataPath     string   `yaml:"data"`
	Features     []string `yaml:"features"`
	Target       string   `yaml:"target"`
	Epochs       int      `yaml:"epochs"`
	MeanLR       float64  `yaml:"lr_mean"`
	ScaleLR      float64  `yaml:"lr_scale"`
	SplitSeed    uint64   `yaml:"split_seed"`
	TestFraction float64  `yaml:"test_fraction"`
	// NoiseSeed fixes the weight noise; zero means time-seeded.
	NoiseSeed   uint64 `yaml:"noise_seed"`
	WeightsPath string `yaml:"weights"`
	ReportPath  string `yaml:"report"`
	DBPath      string `yaml:"db"`
}

// DefaultConfig returns the reference settings: W,S,R → N, 10000 epochs,
// both learning rates 0.01 and an 80/20 split seeded with 42.
func DefaultConfig() Config {
	return Config{
		Features:     []string{"W", "S", "R"},
		Target:       "N",
		Epochs:       10000,
		MeanLR:       0.01,
		ScaleLR:      0.01,
		SplitSeed:    42,
		TestFraction: 0.2,
		WeightsPath:  "weights.json",
	}
}

// ParseColumns parses a comma separated column list
func ParseColumns(s string) ([]string, error) {
	parts := strings.Split(s, ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, errors.Errorf("empty column name in %q", s)
		}
		cols = append(cols, p)
	}
	return cols, nil
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading config")
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}

// ValidateConfig validates training configuration
func ValidateConfig(config *Config) error {
	if config.DataPath == "" {
		return errors.New("data path is required")
	}

	if len(config.Features) != 3 {
		return errors.Errorf("exactly 3 feature columns (W, S, R) are required, got %d", len(config.Features))
	}

	if config.Target == "" {
		return errors.New("target column is required")
	}

	if config.Epochs <= 0 {
		return errors.New("epochs must be positive")
	}

	if config.MeanLR <= 0 || config.ScaleLR <= 0 {
		return errors.New("learning rates must be positive")
	}

	if config.TestFraction <= 0 || config.TestFraction >= 1 {
		return errors.Errorf("test fraction must be in (0, 1), got %g", config.TestFraction)
	}

	return nil
}
