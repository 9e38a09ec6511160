package main

import (
	"os"

	"github.com/alexflint/go-arg"
	"github.com/neurlang/pseudolabel/device"
	"github.com/neurlang/pseudolabel/learning"
	"github.com/neurlang/pseudolabel/logging"
	"github.com/neurlang/pseudolabel/trainer"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

type args struct {
	learning.HyperParameters
	Pgo bool `arg:"--pgo" help:"write a cpu profile to default.pgo until interrupted"`
}

func main() {
	var a args
	arg.MustParse(&a)

	log := logging.New(a.Verbose)
	defer log.Sync()

	if err := run(afero.NewOsFs(), &a.HyperParameters, log); err != nil {
		log.Error("run failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(fs afero.Fs, hp *learning.HyperParameters, log *zap.Logger) error {
	if err := hp.Validate(fs); err != nil {
		return errors.Wrapf(err, "invalid configuration")
	}
	log.Info("configuration", hp.Fields()...)
	if hp.FP16 && hp.Distributed() {
		log.Warn("fp16 is not supported with distributed training, using full precision")
	}

	if err := fs.MkdirAll(hp.OutputDir, 0755); err != nil {
		return errors.Wrapf(err, "unable to create %s", hp.OutputDir)
	}
	if err := hp.WriteYAML(fs); err != nil {
		return err
	}

	placement := device.Select(hp.NoCuda, hp.LocalRank, log)
	t, err := trainer.Setup(fs, hp, placement, log)
	if err != nil {
		return err
	}
	report, err := t.Run()
	if err != nil {
		return err
	}
	log.Info("finished",
		zap.Int("global_step", report.GlobalStep),
		zap.Int("skipped_updates", report.SkippedUpdates),
		zap.Float64s("train_loss", report.TrainLosses),
		zap.Float64s("dev_loss", report.EvalLosses),
		zap.Float64("loss_scale", report.LossScale))
	return nil
}
