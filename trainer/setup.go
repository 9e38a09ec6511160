package trainer

import (
	"github.com/dustin/go-humanize"
	"github.com/neurlang/pseudolabel/datasets"
	"github.com/neurlang/pseudolabel/device"
	"github.com/neurlang/pseudolabel/features"
	"github.com/neurlang/pseudolabel/learning"
	"github.com/neurlang/pseudolabel/logging"
	"github.com/neurlang/pseudolabel/net/sequence"
	"github.com/neurlang/pseudolabel/optimizer"
	"github.com/neurlang/pseudolabel/tokenizer"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Setup loads the data, tokenizer, network and optimizer of a validated
// configuration and restores any checkpoint it names.
func Setup(fs afero.Fs, hp *learning.HyperParameters, placement device.Placement, log *zap.Logger) (*Trainer, error) {
	log = logging.OrNop(log)
	processor, err := datasets.Lookup(hp.TaskName)
	if err != nil {
		return nil, err
	}
	labels := processor.Labels()

	tok, err := tokenizer.FromPretrained(fs, hp.BertModel, hp.DoLowerCase)
	if err != nil {
		return nil, err
	}

	net, err := sequence.FromPretrained(fs, hp.BertModel, len(labels), hp.Seed)
	if err != nil {
		return nil, err
	}
	if err := net.Config.FitsVocab(tok.Vocab().Size()); err != nil {
		return nil, err
	}
	if hp.HalfPrecision() {
		net.Half()
	}
	log.Info("network",
		zap.Int("hidden", net.Config.HiddenSize),
		zap.Int("labels", net.NumLabels),
		zap.String("params", humanize.Comma(int64(net.NumParams()))),
		zap.Bool("fp16", net.IsHalf()))

	var train []features.Feature
	var opt *optimizer.BertAdam
	if hp.DoTrain {
		examples, err := processor.TrainExamples(fs, hp.DataDir, hp.Subset)
		if err != nil {
			return nil, err
		}
		train, err = features.ConvertExamplesToFeatures(examples, labels, hp.MaxSeqLength, tok, log)
		if err != nil {
			return nil, err
		}
		tTotal := hp.NumTrainSteps(len(examples))
		opt = optimizer.NewBertAdam(net.Parameters(), optimizer.DefaultConfig(hp.LearningRate, hp.WarmupProportion, tTotal), hp.MasterWeights())
		log.Info("training data",
			zap.Int("examples", len(examples)),
			zap.Int("batch", hp.TrainBatchSize),
			zap.Int("steps", tTotal))
	}

	var eval []features.Feature
	if hp.DoEval {
		examples, err := processor.DevExamples(fs, hp.DataDir, hp.DevSubset)
		if err != nil {
			return nil, err
		}
		eval, err = features.ConvertExamplesToFeatures(examples, labels, hp.MaxSeqLength, tok, log)
		if err != nil {
			return nil, err
		}
		log.Info("eval data", zap.Int("examples", len(examples)), zap.Int("batch", hp.EvalBatchSize))
	}

	t, err := New(Config{
		HP:     hp,
		Labels: labels,
		Model:  sequence.NewDataParallel(net, placement.Devices),
		Opt:    opt,
		Train:  train,
		Eval:   eval,
		FS:     fs,
		Log:    log,
	})
	if err != nil {
		return nil, err
	}
	if err := t.Resume(); err != nil {
		return nil, err
	}
	return t, nil
}
