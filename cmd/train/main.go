// pibnn-train: trains the physics-constrained Bayesian fatigue-life regressor
//
// Usage:
//
//	pibnn-train --data=fatigue.csv --features=W,S,R --target=N --epochs=10000
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"

	"pibnn_lib/dataset"
	"pibnn_lib/nn"
	"pibnn_lib/runstore"
	"pibnn_lib/train"
	"pibnn_lib/uncertainty"
	"pibnn_lib/utils"
)

// options are the flag values of one command.
type options struct {
	configPath string
	features   string
	verbose    bool
	cfg        utils.Config
}

func newOptions() *options {
	return &options{cfg: utils.DefaultConfig()}
}

// newRootCmd binds the flags to opts.
func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pibnn-train",
		Short: "Train the physics-constrained Bayesian fatigue-life regressor",
		Long: `Trains a 3→16→16→1 variational network on W, S, R → N data with a
physics penalty on the input derivatives, reports Monte Carlo interval
coverage every 1000 epochs and stops early when coverage stalls.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			utils.Verbose = opts.verbose
			return run(cmd.Context(), resolved)
		},
	}

	cfg := &opts.cfg
	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "YAML config file; explicit flags override it")
	f.StringVar(&cfg.DataPath, "data", "", "CSV dataset with a header row")
	f.StringVar(&opts.features, "features", "W,S,R", "Feature columns in W,S,R order")
	f.StringVar(&cfg.Target, "target", cfg.Target, "Target column")
	f.IntVar(&cfg.Epochs, "epochs", cfg.Epochs, "Maximum number of epochs")
	f.Float64Var(&cfg.MeanLR, "lr-mean", cfg.MeanLR, "Learning rate for the posterior means")
	f.Float64Var(&cfg.ScaleLR, "lr-scale", cfg.ScaleLR, "Learning rate for the scale codes")
	f.Uint64Var(&cfg.SplitSeed, "split-seed", cfg.SplitSeed, "Train/test split seed")
	f.Float64Var(&cfg.TestFraction, "test-fraction", cfg.TestFraction, "Held-out fraction")
	f.Uint64Var(&cfg.NoiseSeed, "noise-seed", 0, "Weight noise seed (0 = time-seeded)")
	f.StringVar(&cfg.WeightsPath, "output", cfg.WeightsPath, "Output weights file (JSON)")
	f.StringVar(&cfg.ReportPath, "report", "", "Write true/mean/lower/upper for the test set to this CSV")
	f.StringVar(&cfg.DBPath, "db", "", "SQLite run history database")
	f.BoolVar(&opts.verbose, "verbose", true, "Verbose output")
	return cmd
}

// resolveConfig layers explicitly set flags over the YAML file, if any.
func resolveConfig(cmd *cobra.Command, opts *options) (utils.Config, error) {
	flagCfg := opts.cfg
	cols, err := utils.ParseColumns(opts.features)
	if err != nil {
		return flagCfg, err
	}
	flagCfg.Features = cols

	resolved := flagCfg
	if opts.configPath != "" {
		if resolved, err = utils.LoadConfig(opts.configPath); err != nil {
			return resolved, err
		}
		overrides := map[string]func(){
			"data":          func() { resolved.DataPath = flagCfg.DataPath },
			"features":      func() { resolved.Features = flagCfg.Features },
			"target":        func() { resolved.Target = flagCfg.Target },
			"epochs":        func() { resolved.Epochs = flagCfg.Epochs },
			"lr-mean":       func() { resolved.MeanLR = flagCfg.MeanLR },
			"lr-scale":      func() { resolved.ScaleLR = flagCfg.ScaleLR },
			"split-seed":    func() { resolved.SplitSeed = flagCfg.SplitSeed },
			"test-fraction": func() { resolved.TestFraction = flagCfg.TestFraction },
			"noise-seed":    func() { resolved.NoiseSeed = flagCfg.NoiseSeed },
			"output":        func() { resolved.WeightsPath = flagCfg.WeightsPath },
			"report":        func() { resolved.ReportPath = flagCfg.ReportPath },
			"db":            func() { resolved.DBPath = flagCfg.DBPath },
		}
		for name, apply := range overrides {
			if cmd.Flags().Changed(name) {
				apply()
			}
		}
	}
	return resolved, utils.ValidateConfig(&resolved)
}

func run(ctx context.Context, cfg utils.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	stats := &utils.TimingStats{}
	totalStart := time.Now()

	logf("Configuration:\n")
	logf("  Data:          %s\n", cfg.DataPath)
	logf("  Columns:       %v → %s\n", cfg.Features, cfg.Target)
	logf("  Epochs:        %d\n", cfg.Epochs)
	logf("  Learning Rate: mean %.4f, scale %.4f\n", cfg.MeanLR, cfg.ScaleLR)
	logf("  Split:         %.0f%% test, seed %d\n\n", cfg.TestFraction*100, cfg.SplitSeed)

	start := time.Now()
	tab, err := dataset.Load(cfg.DataPath, cfg.Features, cfg.Target)
	if err != nil {
		return err
	}
	trainTab, testTab, err := dataset.SplitTable(tab, cfg.TestFraction, cfg.SplitSeed)
	if err != nil {
		return err
	}
	var scaler dataset.Scaler
	xTrain, err := scaler.FitTransform(trainTab.X)
	if err != nil {
		return err
	}
	xTest, err := scaler.Transform(testTab.X)
	if err != nil {
		return err
	}
	stats.DataLoadingTime = time.Since(start)
	logf("Loaded %d rows: %d train, %d test\n", tab.Rows(), trainTab.Rows(), testTab.Rows())

	start = time.Now()
	var src rand.Source
	if cfg.NoiseSeed != 0 {
		src = rand.NewSource(cfg.NoiseSeed)
	}
	net := nn.NewBayesianNetwork(src)
	stats.ModelInitTime = time.Since(start)

	trainer := train.NewTrainer(train.Config{NumEpochs: cfg.Epochs, MeanLR: cfg.MeanLR, ScaleLR: cfg.ScaleLR})
	trainer.Timing = stats

	var (
		store *runstore.Store
		runID string
	)
	if cfg.DBPath != "" {
		if store, err = runstore.Open(cfg.DBPath); err != nil {
			return err
		}
		defer store.Close()
		if runID, err = store.CreateRun(ctx, cfg); err != nil {
			return err
		}
		logf("Run ID: %s\n", runID)
		trainer.OnCheckpoint = func(cp train.Checkpoint) error {
			return store.RecordCheckpoint(ctx, runID, cp)
		}
	}

	logf("\nStarting training...\n")
	data := &train.Data{XTrain: xTrain, YTrain: trainTab.Y, XTest: xTest, YTest: testTab.Y}
	state, trainErr := trainer.Run(net, data)
	if store != nil && state != nil {
		if err := store.FinishRun(ctx, runID, state); err != nil && trainErr == nil {
			return err
		}
	}
	if trainErr != nil {
		return trainErr
	}

	// Final report-only pass; the stopping policy does not see it.
	start = time.Now()
	pred, coverage, err := uncertainty.Evaluate(net, xTest, testTab.Y.Data, train.MCSamples)
	if err != nil {
		return errors.Wrap(err, "final evaluation")
	}
	stats.EvaluationTime += time.Since(start)
	logf("\nFinal test coverage: %.2f%% over %d points (%d epochs)\n", coverage*100, pred.Len(), state.Epochs)
	logf("Optimizer steps: %d mean, %d scale\n", state.MeanUpdates, state.ScaleUpdates)

	if cfg.ReportPath != "" {
		if err := writeReport(cfg.ReportPath, testTab.Y.Data, pred); err != nil {
			return err
		}
		logf("Report saved to: %s\n", cfg.ReportPath)
	}

	if cfg.WeightsPath != "" {
		weights := net.Weights()
		weights.RunID = runID
		weights.Features = cfg.Features
		weights.Target = cfg.Target
		weights.Scaler = scaler.Data()
		if err := utils.SaveWeights(cfg.WeightsPath, weights); err != nil {
			return err
		}
		logf("Weights saved to: %s\n", cfg.WeightsPath)
	}

	stats.TotalTime = time.Since(totalStart)
	utils.PrintTimingStats(stats, state.Epochs)
	return nil
}

func writeReport(path string, truth []float64, pred *uncertainty.Prediction) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating report")
	}
	if err := dataset.WriteReport(f, truth, pred.Mean, pred.Lower, pred.Upper); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "closing report")
}

func logf(format string, args ...interface{}) {
	if utils.Verbose {
		fmt.Fprintf(utils.Output, format, args...)
	}
}

func main() {
	if err := newRootCmd(newOptions()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
