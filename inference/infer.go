// Package inference turns network outputs into class probability tables
package inference

import (
	"github.com/neurlang/pseudolabel/features"
	"github.com/neurlang/pseudolabel/net/sequence"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Model evaluates batches without gradients.
type Model interface {
	Forward(b features.Batch) (sequence.Output, error)
}

// Predict returns the softmax probabilities of every example, one row each, in sampler order.
func Predict(m Model, loader features.DataLoader) (*mat.Dense, error) {
	var rows, cols int
	var data []float64
	for i, b := range loader.Batches(0) {
		out, err := m.Forward(b)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to predict batch %d", i)
		}
		r, c := Append(&data, out)
		rows += r
		cols = c
	}
	if rows == 0 {
		return nil, errors.New("nothing to predict")
	}
	return mat.NewDense(rows, cols, data), nil
}

// Append adds the softmax rows of out to data and returns their shape.
func Append(data *[]float64, out sequence.Output) (rows, cols int) {
	probs := out.Probabilities()
	rows, cols = probs.Dims()
	for i := 0; i < rows; i++ {
		*data = append(*data, probs.RawRowView(i)...)
	}
	return
}
