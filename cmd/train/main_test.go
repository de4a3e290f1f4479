package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pibnn_lib/runstore"
	"pibnn_lib/utils"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestResolveConfig(t *testing.T) {
	yamlPath := writeFile(t, "run.yaml", `
data: from_yaml.csv
target: Life
epochs: 500
lr_mean: 0.05
db: runs.db
`)

	tests := []struct {
		name    string
		flags   map[string]string
		check   func(t *testing.T, cfg utils.Config)
		wantErr bool
	}{
		{
			name:  "flags only",
			flags: map[string]string{"data": "fatigue.csv", "epochs": "20"},
			check: func(t *testing.T, cfg utils.Config) {
				want := utils.DefaultConfig()
				want.DataPath = "fatigue.csv"
				want.Epochs = 20
				assert.Equal(t, want, cfg)
			},
		},
		{
			name:  "yaml only",
			flags: map[string]string{"config": yamlPath},
			check: func(t *testing.T, cfg utils.Config) {
				assert.Equal(t, "from_yaml.csv", cfg.DataPath)
				assert.Equal(t, "Life", cfg.Target)
				assert.Equal(t, 500, cfg.Epochs)
				assert.Equal(t, 0.05, cfg.MeanLR)
				assert.Equal(t, "runs.db", cfg.DBPath)
				assert.Equal(t, []string{"W", "S", "R"}, cfg.Features)
			},
		},
		{
			name: "explicit flags override yaml",
			flags: map[string]string{
				"config":   yamlPath,
				"epochs":   "42",
				"features": "width,stress,ratio",
				"db":       "",
			},
			check: func(t *testing.T, cfg utils.Config) {
				assert.Equal(t, 42, cfg.Epochs)
				assert.Equal(t, []string{"width", "stress", "ratio"}, cfg.Features)
				assert.Empty(t, cfg.DBPath)
				// Untouched flags keep the yaml values.
				assert.Equal(t, "from_yaml.csv", cfg.DataPath)
				assert.Equal(t, 0.05, cfg.MeanLR)
			},
		},
		{
			name:    "missing data",
			flags:   map[string]string{"epochs": "20"},
			wantErr: true,
		},
		{
			name:    "two features",
			flags:   map[string]string{"data": "fatigue.csv", "features": "W,S"},
			wantErr: true,
		},
		{
			name:    "missing config file",
			flags:   map[string]string{"config": filepath.Join(t.TempDir(), "nope.yaml")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := newOptions()
			cmd := newRootCmd(opts)
			for name, value := range tt.flags {
				require.NoError(t, cmd.Flags().Set(name, value))
			}
			cfg, err := resolveConfig(cmd, opts)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func fatigueCSV(t *testing.T, rows int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("W,S,R,N\n")
	for i := 0; i < rows; i++ {
		w, s, r := 5+float64(i%5), 100+10*float64(i), 0.05*float64(i%10)
		fmt.Fprintf(&b, "%g,%g,%g,%g\n", w, s, r, 8-0.1*w-0.01*s+0.5*r)
	}
	return writeFile(t, "fatigue.csv", b.String())
}

func TestRunWritesArtifacts(t *testing.T) {
	prev := utils.Verbose
	defer func() { utils.Verbose = prev }()
	utils.Verbose = false

	dir := t.TempDir()
	cfg := utils.DefaultConfig()
	cfg.DataPath = fatigueCSV(t, 20)
	cfg.Epochs = 5
	cfg.NoiseSeed = 3
	cfg.WeightsPath = filepath.Join(dir, "weights.json")
	cfg.ReportPath = filepath.Join(dir, "report.csv")
	cfg.DBPath = filepath.Join(dir, "runs.db")
	require.NoError(t, run(context.Background(), cfg))

	weights, err := utils.LoadWeights(cfg.WeightsPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"W", "S", "R"}, weights.Features)
	assert.Equal(t, "N", weights.Target)
	require.NotNil(t, weights.Scaler)

	report, err := os.ReadFile(cfg.ReportPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(report)), "\n")
	assert.Equal(t, "true,mean,lower,upper", lines[0])
	// ceil(0.2 · 20) test rows.
	assert.Len(t, lines, 1+4)

	store, err := runstore.Open(cfg.DBPath)
	require.NoError(t, err)
	defer store.Close()
	stored, err := store.GetRun(context.Background(), weights.RunID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Epochs)
	assert.Equal(t, "exhausted", stored.StopReason)
}

func TestRunRejectsMissingColumn(t *testing.T) {
	prev := utils.Verbose
	defer func() { utils.Verbose = prev }()
	utils.Verbose = false

	cfg := utils.DefaultConfig()
	cfg.DataPath = fatigueCSV(t, 20)
	cfg.Target = "Life"
	cfg.WeightsPath = ""
	require.Error(t, run(context.Background(), cfg))
}
