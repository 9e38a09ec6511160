package learning

import (
	"testing"

	"github.com/alexflint/go-arg"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) *HyperParameters {
	var h HyperParameters
	p, err := arg.NewParser(arg.Config{}, &h)
	require.NoError(t, err)
	require.NoError(t, p.Parse(args))
	return &h
}

func TestDefaults(t *testing.T) {
	h := parse(t, "run", "--data_dir", "/data", "--bert_model", "/bert", "--output_dir", "/out", "--do_train")

	assert.Equal(t, "run", h.RunName)
	assert.Equal(t, "wsdm_pseudo", h.TaskName)
	assert.Equal(t, 128, h.MaxSeqLength)
	assert.Equal(t, 32, h.TrainBatchSize)
	assert.Equal(t, 8, h.EvalBatchSize)
	assert.Equal(t, 5e-5, h.LearningRate)
	assert.Equal(t, 3.0, h.NumTrainEpochs)
	assert.Equal(t, 0.1, h.WarmupProportion)
	assert.Equal(t, -1, h.LocalRank)
	assert.Equal(t, int64(42), h.Seed)
	assert.Equal(t, 1, h.GradientAccumulationSteps)
	assert.Equal(t, 128.0, h.LossScale)
	assert.Equal(t, "/out/fine_tuned_bert.csv", h.Preds())

	require.NoError(t, h.Validate(afero.NewMemMapFs()))
}

func TestValidate(t *testing.T) {
	base := func() *HyperParameters {
		return parse(t, "run", "--data_dir", "/data", "--bert_model", "/bert", "--output_dir", "/out", "--do_train", "--do_eval")
	}

	for _, tc := range []struct {
		name   string
		modify func(h *HyperParameters)
		want   error
	}{
		{"accumulation", func(h *HyperParameters) { h.GradientAccumulationSteps = 0 }, ErrAccumulationSteps},
		{"no mode", func(h *HyperParameters) { h.DoTrain, h.DoEval = false, false }, ErrNoMode},
		{"task", func(h *HyperParameters) { h.TaskName = "squad" }, ErrUnknownTask},
		{"batch", func(h *HyperParameters) { h.TrainBatchSize, h.GradientAccumulationSteps = 2, 4 }, ErrBatchSize},
		{"seq", func(h *HyperParameters) { h.MaxSeqLength = 2 }, ErrSeqLength},
		{"loss scale", func(h *HyperParameters) { h.LossScale = 0 }, ErrLossScale},
		{"epochs", func(h *HyperParameters) { h.NumTrainEpochs = -1 }, ErrEpochs},
		{"warmup", func(h *HyperParameters) { h.WarmupProportion = 1 }, ErrWarmup},
		{"rank", func(h *HyperParameters) { h.LocalRank, h.WorldSize = 2, 2 }, ErrRank},
		{"resume epoch", func(h *HyperParameters) { h.Resume, h.ResumeEpoch = true, -1 }, ErrResumeEpoch},
		{"resume epoch zero", func(h *HyperParameters) { h.Resume, h.ResumeEpoch = true, 0 }, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := base()
			tc.modify(h)
			assert.Equal(t, tc.want, errors.Cause(h.Validate(afero.NewMemMapFs())))
		})
	}
}

func TestValidateOutputDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/out/run1.model.sz", []byte("x"), 0644))

	h := parse(t, "run", "--data_dir", "/data", "--bert_model", "/bert", "--output_dir", "/out", "--do_eval")
	assert.Equal(t, ErrOutputDirNotEmpty, errors.Cause(h.Validate(fs)))

	h.Resume = true
	assert.NoError(t, h.Validate(fs))

	// accumulation is checked first
	h.Resume = false
	h.GradientAccumulationSteps = 0
	assert.Equal(t, ErrAccumulationSteps, errors.Cause(h.Validate(fs)))
}

func TestDerived(t *testing.T) {
	h := &HyperParameters{
		TrainBatchSize:            32,
		GradientAccumulationSteps: 4,
		NumTrainEpochs:            3,
		LocalRank:                 -1,
		FP16:                      true,
		ResumeEpoch:               2,
	}
	assert.Equal(t, 8, h.StepBatchSize())
	assert.Equal(t, 9, h.NumTrainSteps(100)) // 100 / 8 / 4 * 3 = 9.375
	assert.True(t, h.HalfPrecision())
	assert.True(t, h.MasterWeights())
	assert.Equal(t, 1, h.FirstEpoch())

	h.Resume = true
	assert.Equal(t, 3, h.FirstEpoch())

	h.LocalRank, h.WorldSize = 0, 2
	assert.False(t, h.HalfPrecision())
	assert.False(t, h.MasterWeights())
	assert.Equal(t, 4, h.NumTrainSteps(100))
}

func TestYAMLRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	h := parse(t, "run", "--data_dir", "/data", "--bert_model", "/bert", "--output_dir", "/out", "--do_train", "--fp16")
	require.NoError(t, h.WriteYAML(fs))

	got, err := ReadYAML(fs, "/out/"+HyperParametersFile)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}
