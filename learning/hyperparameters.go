// Package learning holds the run configuration of the fine-tuning pipeline
package learning

import (
	"math"
	"path/filepath"

	"github.com/neurlang/pseudolabel/datasets"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// HyperParametersFile is the name of the effective configuration dump inside the output directory.
const HyperParametersFile = "hparams.yaml"

// HyperParameters is the complete configuration of one run, filled from the command line.
type HyperParameters struct {
	RunName string `arg:"positional,required" yaml:"run_name" help:"name under which checkpoints are saved"`

	DataDir   string `arg:"--data_dir,required" yaml:"data_dir" help:"directory holding the task data files"`
	BertModel string `arg:"--bert_model,required" yaml:"bert_model" help:"pretrained model directory (vocab.txt, config.json)"`
	TaskName  string `arg:"--task_name" default:"wsdm_pseudo" yaml:"task_name" help:"name of the task to train"`
	OutputDir string `arg:"--output_dir,required" yaml:"output_dir" help:"directory for checkpoints and predictions"`

	Resume      bool `arg:"--resume" yaml:"resume" help:"resume training from a saved epoch"`
	ResumeEpoch int  `arg:"--resume_epoch" default:"1" yaml:"resume_epoch" help:"the epoch from which to resume"`

	Subset    int `arg:"--subset" yaml:"subset" help:"use only the first N training examples (0 = all)"`
	DevSubset int `arg:"--dev_subset" yaml:"dev_subset" help:"use only the first N dev examples (0 = all)"`

	MaxSeqLength int  `arg:"--max_seq_length" default:"128" yaml:"max_seq_length" help:"maximum total input length after tokenization"`
	DoLowerCase  bool `arg:"--do_lower_case" yaml:"do_lower_case" help:"lower case the input text"`

	DoTrain bool `arg:"--do_train" yaml:"do_train" help:"run training"`
	DoEval  bool `arg:"--do_eval" yaml:"do_eval" help:"run evaluation on the dev set"`

	TrainBatchSize   int     `arg:"--train_batch_size" default:"32" yaml:"train_batch_size" help:"total batch size for training"`
	EvalBatchSize    int     `arg:"--eval_batch_size" default:"8" yaml:"eval_batch_size" help:"total batch size for eval"`
	LearningRate     float64 `arg:"--learning_rate" default:"5e-5" yaml:"learning_rate" help:"initial learning rate for Adam"`
	NumTrainEpochs   float64 `arg:"--num_train_epochs" default:"3" yaml:"num_train_epochs" help:"total number of training epochs"`
	WarmupProportion float64 `arg:"--warmup_proportion" default:"0.1" yaml:"warmup_proportion" help:"proportion of training to perform linear warmup for"`

	NoCuda    bool  `arg:"--no_cuda" yaml:"no_cuda" help:"do not use CUDA devices even when available"`
	LocalRank int   `arg:"--local_rank" default:"-1" yaml:"local_rank" help:"rank for distributed training (-1 = off)"`
	WorldSize int   `arg:"--world_size" default:"1" yaml:"world_size" help:"number of distributed processes"`
	Seed      int64 `arg:"--seed" default:"42" yaml:"seed" help:"random seed for initialization"`

	GradientAccumulationSteps int `arg:"--gradient_accumulation_steps" default:"1" yaml:"gradient_accumulation_steps" help:"updates steps to accumulate before a backward/update pass"`

	OptimizeOnCPU bool    `arg:"--optimize_on_cpu" yaml:"optimize_on_cpu" help:"keep float64 master weights in the optimizer"`
	FP16          bool    `arg:"--fp16" yaml:"fp16" help:"use 16-bit float precision instead of 32-bit"`
	LossScale     float64 `arg:"--loss_scale" default:"128" yaml:"loss_scale" help:"loss scaling for fp16, positive power of 2 values improve convergence"`

	InitCheckpointDir string `arg:"--init_checkpoint_dir" yaml:"init_checkpoint_dir" help:"directory of a checkpoint to bootstrap network weights from"`
	InitCheckpoint    string `arg:"--init_checkpoint" yaml:"init_checkpoint" help:"name of the bootstrap checkpoint"`

	PredsFile  string `arg:"--preds_file" yaml:"preds_file" help:"probability table path (default <output_dir>/fine_tuned_bert.csv)"`
	NoProgress bool   `arg:"--no_progress" yaml:"no_progress" help:"disable progress bars"`
	Verbose    bool   `arg:"--verbose" yaml:"verbose" help:"debug logging"`
}

// Configuration errors, matchable with errors.Cause.
var (
	ErrAccumulationSteps = errors.New("invalid gradient_accumulation_steps, should be >= 1")
	ErrNoMode            = errors.New("at least one of do_train or do_eval must be set")
	ErrOutputDirNotEmpty = errors.New("output directory already exists and is not empty")
	ErrUnknownTask       = datasets.ErrUnknownTask
	ErrBatchSize         = errors.New("invalid batch size")
	ErrSeqLength         = errors.New("max_seq_length must be at least 3")
	ErrLossScale         = errors.New("loss_scale must be positive")
	ErrEpochs            = errors.New("num_train_epochs must not be negative")
	ErrWarmup            = errors.New("warmup_proportion must be in [0, 1)")
	ErrRank              = errors.New("local_rank must be below world_size")
	ErrResumeEpoch       = errors.New("resume_epoch must not be negative")
)

// Validate checks the configuration before any data is loaded.
// The only filesystem access is the listing of the output directory.
func (h *HyperParameters) Validate(fs afero.Fs) error {
	if h.GradientAccumulationSteps < 1 {
		return errors.Wrapf(ErrAccumulationSteps, "got %d", h.GradientAccumulationSteps)
	}
	if !h.DoTrain && !h.DoEval {
		return ErrNoMode
	}
	if h.Resume && h.ResumeEpoch < 0 {
		return errors.Wrapf(ErrResumeEpoch, "got %d", h.ResumeEpoch)
	}
	if !h.Resume {
		empty, err := afero.IsEmpty(fs, h.OutputDir)
		if err == nil && !empty {
			return errors.Wrapf(ErrOutputDirNotEmpty, "%s", h.OutputDir)
		}
	}
	if _, err := datasets.Lookup(h.TaskName); err != nil {
		return err
	}
	if h.TrainBatchSize < 1 || h.EvalBatchSize < 1 {
		return errors.Wrapf(ErrBatchSize, "train %d, eval %d", h.TrainBatchSize, h.EvalBatchSize)
	}
	if h.TrainBatchSize < h.GradientAccumulationSteps {
		return errors.Wrapf(ErrBatchSize, "train batch %d is smaller than %d accumulation steps",
			h.TrainBatchSize, h.GradientAccumulationSteps)
	}
	if h.MaxSeqLength < 3 {
		return errors.Wrapf(ErrSeqLength, "got %d", h.MaxSeqLength)
	}
	if !(h.LossScale > 0) || math.IsInf(h.LossScale, 0) {
		return errors.Wrapf(ErrLossScale, "got %v", h.LossScale)
	}
	if h.NumTrainEpochs < 0 {
		return errors.Wrapf(ErrEpochs, "got %v", h.NumTrainEpochs)
	}
	if h.WarmupProportion < 0 || h.WarmupProportion >= 1 {
		return errors.Wrapf(ErrWarmup, "got %v", h.WarmupProportion)
	}
	if h.Distributed() && (h.WorldSize < 1 || h.LocalRank >= h.WorldSize) {
		return errors.Wrapf(ErrRank, "rank %d of %d", h.LocalRank, h.WorldSize)
	}
	return nil
}

// Distributed reports whether the run is one rank of a distributed job.
func (h *HyperParameters) Distributed() bool {
	return h.LocalRank != -1
}

// HalfPrecision reports whether fp16 emulation is active. Distributed runs always use full precision.
func (h *HyperParameters) HalfPrecision() bool {
	return h.FP16 && !h.Distributed()
}

// MasterWeights reports whether the optimizer keeps separate float64 master parameters.
func (h *HyperParameters) MasterWeights() bool {
	return h.HalfPrecision() || h.OptimizeOnCPU
}

// StepBatchSize is the number of examples in one forward/backward pass.
func (h *HyperParameters) StepBatchSize() int {
	return h.TrainBatchSize / h.GradientAccumulationSteps
}

// Epochs is the whole number of configured training epochs.
func (h *HyperParameters) Epochs() int {
	return int(h.NumTrainEpochs)
}

// FirstEpoch is the number of the first epoch this run trains; epochs are counted from 1.
func (h *HyperParameters) FirstEpoch() int {
	if h.Resume {
		return h.ResumeEpoch + 1
	}
	return 1
}

// NumTrainSteps is the optimizer schedule length for n training examples.
func (h *HyperParameters) NumTrainSteps(n int) int {
	steps := int(float64(n) / float64(h.StepBatchSize()) / float64(h.GradientAccumulationSteps) * h.NumTrainEpochs)
	if h.Distributed() && h.WorldSize > 0 {
		steps /= h.WorldSize
	}
	return steps
}

// Preds is the path of the probability table.
func (h *HyperParameters) Preds() string {
	if h.PredsFile != "" {
		return h.PredsFile
	}
	return filepath.Join(h.OutputDir, "fine_tuned_bert.csv")
}

// WriteYAML dumps the effective configuration into the output directory.
func (h *HyperParameters) WriteYAML(fs afero.Fs) error {
	data, err := yaml.Marshal(h)
	if err != nil {
		return errors.Wrapf(err, "unable to marshal hyperparameters")
	}
	path := filepath.Join(h.OutputDir, HyperParametersFile)
	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		return errors.Wrapf(err, "unable to write %s", path)
	}
	return nil
}

// ReadYAML loads a configuration written by WriteYAML.
func ReadYAML(fs afero.Fs, path string) (*HyperParameters, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", path)
	}
	var h HyperParameters
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, errors.Wrapf(err, "unable to parse %s", path)
	}
	return &h, nil
}

// Fields renders the configuration as structured log fields.
func (h *HyperParameters) Fields() []zap.Field {
	return []zap.Field{
		zap.String("run", h.RunName),
		zap.String("task", h.TaskName),
		zap.Bool("train", h.DoTrain),
		zap.Bool("eval", h.DoEval),
		zap.Int("batch", h.TrainBatchSize),
		zap.Int("step_batch", h.StepBatchSize()),
		zap.Int("accumulation", h.GradientAccumulationSteps),
		zap.Float64("lr", h.LearningRate),
		zap.Float64("epochs", h.NumTrainEpochs),
		zap.Bool("fp16", h.HalfPrecision()),
		zap.Bool("optimize_on_cpu", h.OptimizeOnCPU),
		zap.Float64("loss_scale", h.LossScale),
		zap.Int("local_rank", h.LocalRank),
	}
}
