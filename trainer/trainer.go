package trainer

import (
	"path/filepath"

	"github.com/montanaflynn/stats"
	"github.com/neurlang/pseudolabel/checkpoint"
	"github.com/neurlang/pseudolabel/features"
	"github.com/neurlang/pseudolabel/inference"
	"github.com/neurlang/pseudolabel/learning"
	"github.com/neurlang/pseudolabel/logging"
	"github.com/neurlang/pseudolabel/net/sequence"
	"github.com/neurlang/pseudolabel/optimizer"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Config wires the collaborators of one run.
type Config struct {
	HP     *learning.HyperParameters
	Labels []string

	Model *sequence.DataParallel
	Opt   *optimizer.BertAdam // nil when not training
	Saver *checkpoint.Saver   // defaults to the output directory

	Train []features.Feature
	Eval  []features.Feature

	FS  afero.Fs
	Log *zap.Logger
}

// Report summarises a run.
type Report struct {
	Epochs         []int
	TrainLosses    []float64
	TrainAccuracy  []float64
	EvalLosses     []float64
	EvalAccuracy   []float64
	GlobalStep     int
	SkippedUpdates int
	LossScale      float64
}

// Trainer runs the epoch loop, evaluation and checkpointing of one run.
type Trainer struct {
	Config

	trainLoader features.DataLoader
	evaluate    func(savePreds bool) (EvalResult, error)
	scaler      LossScaler
	best        *checkpoint.BestTracker
	report      Report
}

// New checks the wiring and prepares the data loaders.
func New(c Config) (*Trainer, error) {
	if c.HP == nil || c.Model == nil {
		return nil, errors.New("trainer needs hyperparameters and a model")
	}
	if c.HP.DoTrain && c.Opt == nil {
		return nil, errors.New("training needs an optimizer")
	}
	if c.FS == nil {
		c.FS = afero.NewOsFs()
	}
	c.Log = logging.OrNop(c.Log)
	if c.Saver == nil {
		c.Saver = checkpoint.NewSaver(c.FS, c.HP.OutputDir, c.Log)
	}
	hp := c.HP
	t := &Trainer{
		Config: c,
		scaler: LossScaler{Scale: hp.LossScale, Enabled: hp.HalfPrecision()},
		best:   checkpoint.NewBestTracker(nil),
	}

	var sampler features.Sampler = features.RandomSampler{N: len(c.Train), Seed: hp.Seed}
	if hp.Distributed() {
		sampler = features.DistributedSampler{N: len(c.Train), Rank: hp.LocalRank, WorldSize: hp.WorldSize, Seed: hp.Seed}
	}
	t.trainLoader = features.DataLoader{Features: c.Train, Sampler: sampler, BatchSize: hp.StepBatchSize()}

	evalLoader := features.DataLoader{
		Features:  c.Eval,
		Sampler:   features.SequentialSampler{N: len(c.Eval)},
		BatchSize: hp.EvalBatchSize,
	}
	t.evaluate = NewEvaluateFunc(c.Model, evalLoader, !hp.NoProgress)
	return t, nil
}

// GlobalStep is the number of optimizer updates applied in this run.
func (t *Trainer) GlobalStep() int {
	return t.report.GlobalStep
}

// LossScale is the current loss scale factor.
func (t *Trainer) LossScale() float64 {
	return t.scaler.Scale
}

// Run trains the remaining epochs and evaluates as configured. With do_eval,
// every trained epoch is followed by an evaluation and the last one saves the
// probability table; without training a single evaluation runs.
func (t *Trainer) Run() (Report, error) {
	hp := t.HP
	last := hp.FirstEpoch() - 1
	if hp.DoTrain {
		for epoch := hp.FirstEpoch(); epoch <= hp.Epochs(); epoch++ {
			if err := t.TrainEpoch(epoch); err != nil {
				return t.Report(), err
			}
			last = epoch
			if hp.DoEval {
				if _, err := t.Tune(epoch, epoch == hp.Epochs()); err != nil {
					return t.Report(), err
				}
			} else if err := t.Saver.Save(t.Model.Network(), t.Opt, checkpoint.Name(hp.RunName, epoch)); err != nil {
				return t.Report(), err
			}
		}
	}
	if hp.DoEval && last < hp.FirstEpoch() {
		if _, err := t.Tune(last, true); err != nil {
			return t.Report(), err
		}
	}
	return t.Report(), nil
}

// Report returns a copy of the metrics so far.
func (t *Trainer) Report() Report {
	r := t.report
	r.Epochs = append([]int(nil), r.Epochs...)
	r.TrainLosses = append([]float64(nil), r.TrainLosses...)
	r.TrainAccuracy = append([]float64(nil), r.TrainAccuracy...)
	r.EvalLosses = append([]float64(nil), r.EvalLosses...)
	r.EvalAccuracy = append([]float64(nil), r.EvalAccuracy...)
	r.LossScale = t.scaler.Scale
	return r
}

// TrainEpoch runs one pass over the training set. The optimizer steps every
// gradient_accumulation_steps batches; gradients of a trailing partial window
// are discarded.
func (t *Trainer) TrainEpoch(epoch int) error {
	hp := t.HP
	net := t.Model.Network()
	k := hp.GradientAccumulationSteps
	if t.Opt == nil {
		return errors.New("training needs an optimizer")
	}
	batches := t.trainLoader.Batches(epoch)
	if len(batches) == 0 {
		return errors.New("training set is empty")
	}

	losses := make([]float64, 0, len(batches))
	accs := make([]float64, 0, len(batches))
	pending := 0
	err := each(len(batches), "Iteration", !hp.NoProgress, func(step int) error {
		b := batches[step]
		scale := t.scaler.Factor()
		if k > 1 {
			scale /= float64(k)
		}
		out, err := t.Model.ForwardBackward(b, scale)
		if err != nil {
			return errors.Wrapf(err, "epoch %d step %d", epoch, step)
		}
		losses = append(losses, out.Loss)
		accs = append(accs, sequence.Accuracy(b, out))
		pending++
		if (step+1)%k == 0 {
			t.update()
			pending = 0
		}
		return nil
	})
	if err != nil {
		return err
	}
	if pending > 0 {
		net.ZeroGrad()
		t.Log.Debug("discarded partial accumulation window", zap.Int("batches", pending))
	}

	loss, _ := stats.Mean(losses)
	acc, _ := stats.Mean(accs)
	t.report.Epochs = append(t.report.Epochs, epoch)
	t.report.TrainLosses = append(t.report.TrainLosses, loss)
	t.report.TrainAccuracy = append(t.report.TrainAccuracy, acc)
	t.Log.Info("epoch",
		zap.Int("epoch", epoch),
		zap.Float64("train_loss", loss),
		zap.Float64("train_acc", acc),
		zap.Int("global_step", t.report.GlobalStep),
		zap.Float64("lr", t.Opt.ScheduledLR()),
		zap.Float64("loss_scale", t.scaler.Scale))
	return nil
}

// update applies one optimizer step from the accumulated gradients. With
// master parameters, non-finite gradients halve the loss scale and skip the step.
func (t *Trainer) update() {
	net := t.Model.Network()
	if t.Opt.Master() {
		if f := t.scaler.Factor(); f != 1 {
			for _, p := range net.Parameters() {
				floats.Scale(1/f, p.GradData())
			}
		}
		if t.Opt.SetGrads(true) {
			t.scaler.Backoff()
			t.Log.Warn("non-finite gradients, reducing loss scale", zap.Float64("loss_scale", t.scaler.Scale))
			net.ZeroGrad()
			t.report.SkippedUpdates++
			return
		}
		t.Opt.Step()
		t.Opt.CopyToModel()
	} else {
		t.Opt.Step()
	}
	net.ZeroGrad()
	t.report.GlobalStep++
}

// Tune evaluates the dev set, saves the epoch checkpoint and, on a new
// minimum loss, the best checkpoint. With savePreds it writes the probability table.
func (t *Trainer) Tune(epoch int, savePreds bool) (EvalResult, error) {
	res, err := t.evaluate(savePreds)
	if err != nil {
		return res, err
	}
	isBest := t.best.Observe(res.Loss)
	t.report.EvalLosses = append(t.report.EvalLosses, res.Loss)
	t.report.EvalAccuracy = append(t.report.EvalAccuracy, res.Accuracy)
	t.Log.Info("dev results",
		zap.Int("epoch", epoch),
		zap.Float64("dev_loss", res.Loss),
		zap.Float64("dev_acc", res.Accuracy),
		zap.Bool("best", isBest))

	net := t.Model.Network()
	name := checkpoint.Name(t.HP.RunName, epoch)
	if err := t.Saver.Save(net, t.Opt, name); err != nil {
		return res, err
	}
	if isBest {
		m := checkpoint.Marker{Name: name, Epoch: epoch, Loss: res.Loss, History: t.best.History()}
		if err := t.Saver.SaveBest(net, t.HP.RunName, m); err != nil {
			return res, err
		}
	}
	if savePreds {
		if err := t.writePreds(res.Probs); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (t *Trainer) writePreds(probs *mat.Dense) error {
	if len(t.Labels) != len(inference.Columns) {
		t.Log.Warn("probability table needs 3 classes, skipping", zap.Int("labels", len(t.Labels)))
		return nil
	}
	path := t.HP.Preds()
	if err := t.FS.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "unable to create %s", filepath.Dir(path))
	}
	if err := inference.WriteTable(t.FS, path, probs); err != nil {
		return err
	}
	t.Log.Info("wrote predictions", zap.String("path", path))
	return nil
}
