package main

import (
	"os"
	"path/filepath"

	"github.com/alexflint/go-arg"
	"github.com/neurlang/pseudolabel/checkpoint"
	"github.com/neurlang/pseudolabel/datasets"
	"github.com/neurlang/pseudolabel/device"
	"github.com/neurlang/pseudolabel/features"
	"github.com/neurlang/pseudolabel/inference"
	"github.com/neurlang/pseudolabel/learning"
	"github.com/neurlang/pseudolabel/logging"
	"github.com/neurlang/pseudolabel/net/sequence"
	"github.com/neurlang/pseudolabel/tokenizer"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	defaultTask         = "wsdm_pseudo"
	defaultMaxSeqLength = 128
)

type args struct {
	DataDir       string `arg:"--data_dir,required" help:"directory holding the task data files"`
	BertModel     string `arg:"--bert_model" help:"pretrained model directory (default: the one the checkpoint was trained from)"`
	CheckpointDir string `arg:"--checkpoint_dir,required" help:"directory of the fine-tuned checkpoint"`
	Checkpoint    string `arg:"--checkpoint,required" help:"checkpoint name, e.g. <run>_best or <run><epoch>"`
	TaskName      string `arg:"--task_name" help:"name of the task (default: from the training run, else wsdm_pseudo)"`
	PredsFile     string `arg:"--preds_file" default:"fine_tuned_bert.csv" help:"probability table path"`
	MaxSeqLength  int    `arg:"--max_seq_length" help:"maximum total input length (default: from the training run, else 128)"`
	EvalBatchSize int    `arg:"--eval_batch_size" default:"8" help:"batch size"`
	DevSubset     int    `arg:"--dev_subset" help:"use only the first N dev examples (0 = all)"`
	DoLowerCase   bool   `arg:"--do_lower_case" help:"lower case the input text"`
	NoCuda        bool   `arg:"--no_cuda" help:"do not use CUDA devices even when available"`
	Verbose       bool   `arg:"--verbose" help:"debug logging"`
}

func main() {
	var a args
	arg.MustParse(&a)

	log := logging.New(a.Verbose)
	defer log.Sync()

	if err := run(afero.NewOsFs(), a, log); err != nil {
		log.Error("inference failed", zap.Error(err))
		os.Exit(1)
	}
}

// withRunDefaults fills the flags left unset from the hparams.yaml the
// training run wrote next to its checkpoints.
func withRunDefaults(fs afero.Fs, a args, log *zap.Logger) (args, error) {
	path := filepath.Join(a.CheckpointDir, learning.HyperParametersFile)
	if ok, _ := afero.Exists(fs, path); ok {
		hp, err := learning.ReadYAML(fs, path)
		if err != nil {
			return a, err
		}
		if a.BertModel == "" {
			a.BertModel = hp.BertModel
		}
		if a.TaskName == "" {
			a.TaskName = hp.TaskName
		}
		if a.MaxSeqLength == 0 {
			a.MaxSeqLength = hp.MaxSeqLength
		}
		a.DoLowerCase = a.DoLowerCase || hp.DoLowerCase
		log.Debug("training configuration", zap.String("path", path), zap.String("run", hp.RunName))
	}
	if a.TaskName == "" {
		a.TaskName = defaultTask
	}
	if a.MaxSeqLength == 0 {
		a.MaxSeqLength = defaultMaxSeqLength
	}
	if a.BertModel == "" {
		return a, errors.New("--bert_model is required when the checkpoint directory has no hparams.yaml")
	}
	return a, nil
}

func run(fs afero.Fs, a args, log *zap.Logger) error {
	log = logging.OrNop(log)
	a, err := withRunDefaults(fs, a, log)
	if err != nil {
		return err
	}
	if a.EvalBatchSize < 1 {
		return errors.Wrapf(learning.ErrBatchSize, "eval %d", a.EvalBatchSize)
	}
	if a.MaxSeqLength < 3 {
		return errors.Wrapf(learning.ErrSeqLength, "got %d", a.MaxSeqLength)
	}

	processor, err := datasets.Lookup(a.TaskName)
	if err != nil {
		return err
	}
	labels := processor.Labels()
	if len(labels) != len(inference.Columns) {
		return errors.Wrapf(inference.ErrColumns, "task %s has %d labels", a.TaskName, len(labels))
	}

	tok, err := tokenizer.FromPretrained(fs, a.BertModel, a.DoLowerCase)
	if err != nil {
		return err
	}
	net, err := sequence.FromPretrained(fs, a.BertModel, len(labels), 0)
	if err != nil {
		return err
	}
	if err := net.Config.FitsVocab(tok.Vocab().Size()); err != nil {
		return err
	}
	if err := checkpoint.NewSaver(fs, a.CheckpointDir, log).Load(net, nil, a.Checkpoint, false); err != nil {
		return err
	}

	examples, err := processor.DevExamples(fs, a.DataDir, a.DevSubset)
	if err != nil {
		return err
	}
	feats, err := features.ConvertExamplesToFeatures(examples, labels, a.MaxSeqLength, tok, log)
	if err != nil {
		return err
	}
	loader := features.DataLoader{
		Features:  feats,
		Sampler:   features.SequentialSampler{N: len(feats)},
		BatchSize: a.EvalBatchSize,
	}

	placement := device.Select(a.NoCuda, -1, log)
	probs, err := inference.Predict(sequence.NewDataParallel(net, placement.Devices), loader)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(a.PredsFile); dir != "" {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "unable to create %s", dir)
		}
	}
	if err := inference.WriteTable(fs, a.PredsFile, probs); err != nil {
		return err
	}
	log.Info("wrote predictions", zap.String("path", a.PredsFile), zap.Int("rows", len(examples)))
	return nil
}
