// Package train fits a BayesianNetwork with a data-fit, KL and physics loss,
// checking Monte Carlo interval coverage on held-out data as it goes.
package train

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"

	"pibnn_lib/autograd"
	"pibnn_lib/nn"
	"pibnn_lib/nn/layers"
	"pibnn_lib/physics"
	"pibnn_lib/tensor"
	"pibnn_lib/uncertainty"
	"pibnn_lib/utils"
)

// Fixed loss weights and schedule.
const (
	KLWeight             = 0.01
	PhysicsWeight        = 0.1
	ScaleUpdateEvery     = 100
	EvalEvery            = 1000
	MCSamples            = 100
	CoverageTarget       = 0.95
	LowCoverageThreshold = 0.90
	MSEPlateau           = 0.001
	Patience             = 5
)

// Config holds the tunable part of a run.
type Config struct {
	NumEpochs int
	MeanLR    float64
	ScaleLR   float64
}

// DefaultConfig returns 10000 epochs with both learning rates at 0.01.
func DefaultConfig() Config {
	return Config{NumEpochs: 10000, MeanLR: 0.01, ScaleLR: 0.01}
}

// Validate checks the config is usable.
func (c Config) Validate() error {
	if c.NumEpochs <= 0 {
		return errors.New("number of epochs must be positive")
	}
	if c.MeanLR <= 0 || c.ScaleLR <= 0 {
		return errors.New("learning rates must be positive")
	}
	return nil
}

// Data is the scaled, split dataset. Targets are column tensors.
type Data struct {
	XTrain *tensor.Tensor
	YTrain *tensor.Tensor
	XTest  *tensor.Tensor
	YTest  *tensor.Tensor
}

func (d *Data) validate() error {
	if d == nil || d.XTrain == nil || d.YTrain == nil || d.XTest == nil || d.YTest == nil {
		return errors.New("train: missing data")
	}
	if d.XTrain.Rows() == 0 || d.XTest.Rows() == 0 {
		return errors.New("train: empty train or test split")
	}
	if d.XTrain.Cols() != nn.InputDim || d.XTest.Cols() != nn.InputDim {
		return errors.Errorf("train: expected %d features, got %d/%d", nn.InputDim, d.XTrain.Cols(), d.XTest.Cols())
	}
	if len(d.YTrain.Data) != d.XTrain.Rows() || len(d.YTest.Data) != d.XTest.Rows() {
		return errors.New("train: feature and target row counts differ")
	}
	return nil
}

// Trainer runs the training loop.
type Trainer struct {
	Config Config
	// Out receives the checkpoint lines; nil means utils.Output. Nothing is
	// written when utils.Verbose is false.
	Out io.Writer
	// Timing, when set, accumulates per-phase durations.
	Timing *utils.TimingStats
	// OnCheckpoint is called after every evaluation; an error aborts the run.
	OnCheckpoint func(Checkpoint) error
}

// NewTrainer returns a Trainer with cfg and the default writer.
func NewTrainer(cfg Config) *Trainer {
	return &Trainer{Config: cfg, Out: utils.Output}
}

type run struct {
	net      *nn.BayesianNetwork
	data     *Data
	means    []*layers.Parameter
	scales   []*layers.Parameter
	meanOpt  nn.Optimizer
	scaleOpt nn.Optimizer
	target   *autograd.Var
	state    *State
	timing   *utils.TimingStats
}

// Run trains net on data until the epoch limit or an early stop and returns
// the accumulated state.
func (t *Trainer) Run(net *nn.BayesianNetwork, data *Data) (*State, error) {
	if err := t.Config.Validate(); err != nil {
		return nil, err
	}
	if err := data.validate(); err != nil {
		return nil, err
	}
	timing := t.Timing
	if timing == nil {
		timing = &utils.TimingStats{}
	}
	r := &run{
		net:      net,
		data:     data,
		means:    net.Parameters(layers.Mean),
		scales:   net.Parameters(layers.Scale),
		meanOpt:  nn.NewAdam(t.Config.MeanLR),
		scaleOpt: nn.NewAdam(t.Config.ScaleLR),
		target:   autograd.Constant(data.YTrain),
		state:    newState(t.Config.NumEpochs),
		timing:   timing,
	}

	start := time.Now()
	defer utils.Track(&timing.TotalTime, start)

	for epoch := 0; epoch < t.Config.NumEpochs; epoch++ {
		if err := r.step(epoch); err != nil {
			return r.state, errors.Wrapf(err, "epoch %d", epoch)
		}
		if (epoch+1)%EvalEvery != 0 {
			continue
		}
		cp, err := r.evaluate(epoch)
		if err != nil {
			return r.state, errors.Wrapf(err, "evaluating epoch %d", epoch+1)
		}
		t.printf("Epoch %d | MSE: %.4f | KL: %.4f | Physics: %.4f | Coverage: %.2f%%\n",
			cp.Epoch, cp.MSE, cp.KL, cp.Physics, cp.Coverage*100)
		if t.OnCheckpoint != nil {
			if err := t.OnCheckpoint(cp); err != nil {
				return r.state, errors.Wrap(err, "checkpoint hook")
			}
		}
		if reason := r.state.Stopper.Observe(cp.Coverage, r.state.MSELoss); reason != StopNone {
			r.state.StopReason = reason
			t.printf("%s\n", reason.Message())
			return r.state, nil
		}
	}
	r.state.StopReason = StopExhausted
	t.printf("%s\n", StopExhausted.Message())
	return r.state, nil
}

func (t *Trainer) printf(format string, args ...interface{}) {
	if !utils.Verbose {
		return
	}
	out := t.Out
	if out == nil {
		out = utils.Output
	}
	fmt.Fprintf(out, format, args...)
}

// step runs one epoch: loss, gradients for both groups, mean update and, on
// every ScaleUpdateEvery-th epoch, the scale update.
func (r *run) step(epoch int) error {
	x := autograd.Leaf(r.data.XTrain, true)

	start := time.Now()
	pred, kl, err := r.net.Forward(x)
	if err != nil {
		return err
	}
	mse, err := nn.MSELoss(pred, r.target)
	if err != nil {
		return err
	}
	klNorm := autograd.Scale(kl, 1/float64(r.data.XTrain.Rows()))
	utils.Track(&r.timing.ForwardPassTime, start)

	start = time.Now()
	phys, err := physics.Residual(pred, x)
	if err != nil {
		return err
	}
	utils.Track(&r.timing.PhysicsTime, start)

	total := autograd.Add(mse, autograd.Add(autograd.Scale(klNorm, KLWeight), autograd.Scale(phys, PhysicsWeight)))

	start = time.Now()
	params := append(append([]*layers.Parameter{}, r.means...), r.scales...)
	grads, err := autograd.Grad(total, layers.Vars(params))
	if err != nil {
		return err
	}
	utils.Track(&r.timing.BackwardPassTime, start)

	start = time.Now()
	if err := r.meanOpt.Step(r.means, grads[:len(r.means)]); err != nil {
		return errors.Wrap(err, "mean update")
	}
	if epoch%ScaleUpdateEvery == 0 {
		if err := r.scaleOpt.Step(r.scales, grads[len(r.means):]); err != nil {
			return errors.Wrap(err, "scale update")
		}
	}
	utils.Track(&r.timing.UpdateTime, start)
	r.state.MeanUpdates = r.meanOpt.Steps()
	r.state.ScaleUpdates = r.scaleOpt.Steps()

	r.state.append(total.Item(), klNorm.Item(), mse.Item(), phys.Item())
	return nil
}

func (r *run) evaluate(epoch int) (Checkpoint, error) {
	start := time.Now()
	defer utils.Track(&r.timing.EvaluationTime, start)

	_, coverage, err := uncertainty.Evaluate(r.net, r.data.XTest, r.data.YTest.Data, MCSamples)
	if err != nil {
		return Checkpoint{}, err
	}
	last := len(r.state.TotalLoss) - 1
	cp := Checkpoint{
		Epoch:    epoch + 1,
		Total:    r.state.TotalLoss[last],
		MSE:      r.state.MSELoss[last],
		KL:       r.state.KLLoss[last],
		Physics:  r.state.PhysicsLoss[last],
		Coverage: coverage,
	}
	r.state.Checkpoints = append(r.state.Checkpoints, cp)
	return cp, nil
}
