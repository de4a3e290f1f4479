package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColumns(t *testing.T) {
	cols, err := ParseColumns(" W, S ,R")
	require.NoError(t, err)
	assert.Equal(t, []string{"W", "S", "R"}, cols)

	_, err = ParseColumns("W,,R")
	require.Error(t, err)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data: fatigue.csv
epochs: 3000
lr_scale: 0.005
noise_seed: 11
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "fatigue.csv", cfg.DataPath)
	assert.Equal(t, 3000, cfg.Epochs)
	assert.Equal(t, 0.005, cfg.ScaleLR)
	assert.Equal(t, uint64(11), cfg.NoiseSeed)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.01, cfg.MeanLR)
	assert.Equal(t, uint64(42), cfg.SplitSeed)
	assert.Equal(t, []string{"W", "S", "R"}, cfg.Features)
	require.NoError(t, ValidateConfig(&cfg))
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("epochs: [1, 2"), 0o644))
	_, err = LoadConfig(path)
	require.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := DefaultConfig()
	valid.DataPath = "data.csv"
	require.NoError(t, ValidateConfig(&valid))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no data", func(c *Config) { c.DataPath = "" }},
		{"two features", func(c *Config) { c.Features = []string{"W", "S"} }},
		{"no target", func(c *Config) { c.Target = "" }},
		{"zero epochs", func(c *Config) { c.Epochs = 0 }},
		{"negative lr", func(c *Config) { c.MeanLR = -1 }},
		{"zero scale lr", func(c *Config) { c.ScaleLR = 0 }},
		{"full test split", func(c *Config) { c.TestFraction = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			cfg.Features = append([]string(nil), valid.Features...)
			tt.mutate(&cfg)
			assert.Error(t, ValidateConfig(&cfg))
		})
	}
}
