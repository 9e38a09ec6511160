package trainer

import (
	"github.com/montanaflynn/stats"
	"github.com/neurlang/pseudolabel/features"
	"github.com/neurlang/pseudolabel/inference"
	"github.com/neurlang/pseudolabel/net/sequence"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// EvalResult holds the metrics of one evaluation pass.
type EvalResult struct {
	Loss     float64
	Accuracy float64

	// Probs has one softmax row per example; nil unless predictions were requested.
	Probs *mat.Dense
}

// ErrEmptyEval is returned when the evaluation set has no examples.
var ErrEmptyEval = errors.New("evaluation set is empty")

// NewEvaluateFunc returns a pass over the evaluation set in sequential order.
// Loss and accuracy are averaged over batches.
func NewEvaluateFunc(model inference.Model, loader features.DataLoader, progress bool) func(savePreds bool) (EvalResult, error) {
	return func(savePreds bool) (EvalResult, error) {
		batches := loader.Batches(0)
		if len(batches) == 0 {
			return EvalResult{}, ErrEmptyEval
		}
		losses := make([]float64, 0, len(batches))
		accs := make([]float64, 0, len(batches))
		var data []float64
		var rows, cols int

		err := each(len(batches), "Eval", progress, func(i int) error {
			out, err := model.Forward(batches[i])
			if err != nil {
				return errors.Wrapf(err, "unable to evaluate batch %d", i)
			}
			losses = append(losses, out.Loss)
			accs = append(accs, sequence.Accuracy(batches[i], out))
			if savePreds {
				r, c := inference.Append(&data, out)
				rows += r
				cols = c
			}
			return nil
		})
		if err != nil {
			return EvalResult{}, err
		}

		var res EvalResult
		res.Loss, _ = stats.Mean(losses)
		res.Accuracy, _ = stats.Mean(accs)
		if savePreds {
			res.Probs = mat.NewDense(rows, cols, data)
		}
		return res, nil
	}
}
