// pibnn-infer: Monte Carlo prediction intervals from saved weights
//
// Usage:
//
//	pibnn-infer --weights=weights.json --input=new_points.csv --output=intervals.csv
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"

	"pibnn_lib/dataset"
	"pibnn_lib/nn"
	"pibnn_lib/train"
	"pibnn_lib/uncertainty"
	"pibnn_lib/utils"
)

// options are the flag values of one command.
type options struct {
	weightsFile string
	inputFile   string
	outputFile  string
	samples     int
	noiseSeed   uint64
	verbose     bool
}

// newRootCmd binds the flags to opts.
func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pibnn-infer",
		Short: "Predict fatigue life with 95% intervals from trained weights",
		Long: `Loads weights written by pibnn-train, standardizes the input features
with the saved scaler and draws Monte Carlo samples to report the mean and
the 2.5/97.5 percentile bounds per point. When the input also has the target
column, the true values and the coverage are reported too.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			utils.Verbose = opts.verbose
			return infer(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.weightsFile, "weights", "weights.json", "Weights JSON file")
	f.StringVar(&opts.inputFile, "input", "", "CSV with the feature columns (header required)")
	f.StringVar(&opts.outputFile, "output", "", "Output CSV (default stdout)")
	f.IntVar(&opts.samples, "samples", train.MCSamples, "Monte Carlo samples per point")
	f.Uint64Var(&opts.noiseSeed, "noise-seed", 0, "Weight noise seed (0 = time-seeded)")
	f.BoolVar(&opts.verbose, "verbose", true, "Verbose output")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// infer writes the report to stdout unless an output file is set; the
// coverage line goes to stderr.
func infer(opts *options, stdout, stderr io.Writer) error {
	weights, err := utils.LoadWeights(opts.weightsFile)
	if err != nil {
		return err
	}
	if len(weights.Features) == 0 {
		return errors.Errorf("%s has no feature column names", opts.weightsFile)
	}
	scaler, err := dataset.ScalerFromData(weights.Scaler)
	if err != nil {
		return errors.Wrap(err, opts.weightsFile)
	}

	var src rand.Source
	if opts.noiseSeed != 0 {
		src = rand.NewSource(opts.noiseSeed)
	}
	net := nn.NewBayesianNetwork(src)
	if err := net.LoadWeights(weights); err != nil {
		return err
	}

	// The target column is optional here.
	tab, err := dataset.Load(opts.inputFile, weights.Features, weights.Target)
	hasTruth := err == nil
	if errors.Is(err, dataset.ErrColumnNotFound) && weights.Target != "" {
		tab, err = dataset.Load(opts.inputFile, weights.Features, "")
	}
	if err != nil {
		return err
	}
	x, err := scaler.Transform(tab.X)
	if err != nil {
		return err
	}

	pred, err := uncertainty.Predict(net, x, opts.samples)
	if err != nil {
		return err
	}

	var truth []float64
	if hasTruth && weights.Target != "" {
		truth = tab.Y.Data
		coverage, err := uncertainty.Coverage(truth, pred)
		if err != nil {
			return err
		}
		if utils.Verbose {
			fmt.Fprintf(stderr, "Coverage: %.2f%% over %d points\n", coverage*100, pred.Len())
		}
	}

	out := stdout
	if opts.outputFile != "" {
		f, err := os.Create(opts.outputFile)
		if err != nil {
			return errors.Wrap(err, "creating output")
		}
		defer f.Close()
		out = f
	}
	return dataset.WriteReport(out, truth, pred.Mean, pred.Lower, pred.Upper)
}

func main() {
	if err := newRootCmd(&options{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
