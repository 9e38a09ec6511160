// Package datasets implements the task processors that parse data files into examples
package datasets

import (
	"math"

	"github.com/pkg/errors"
)

// Example is one raw labeled text instance.
type Example struct {
	GUID  string
	TextA string
	TextB string // empty for single sentence tasks

	// Label is the class name of a hard labeled example.
	Label string

	// Probs is the pseudo label distribution in the processor's label order.
	// It takes precedence over Label when set.
	Probs []float64
}

// ErrUnknownLabel is returned for a class name missing from the label list.
var ErrUnknownLabel = errors.New("unknown label")

// Distribution encodes the example's label as a distribution over labels.
// Hard labels become one-hot vectors, pseudo labels are normalised to sum to one.
func (e Example) Distribution(labels []string) ([]float64, error) {
	out := make([]float64, len(labels))
	if e.Probs != nil {
		if len(e.Probs) != len(labels) {
			return nil, errors.Errorf("example %s: %d probabilities for %d labels", e.GUID, len(e.Probs), len(labels))
		}
		var sum float64
		for _, p := range e.Probs {
			if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
				return nil, errors.Errorf("example %s: invalid probability %v", e.GUID, p)
			}
			sum += p
		}
		if sum == 0 {
			return nil, errors.Errorf("example %s: all probabilities are zero", e.GUID)
		}
		for i, p := range e.Probs {
			out[i] = p / sum
		}
		return out, nil
	}
	for i, l := range labels {
		if l == e.Label {
			out[i] = 1
			return out, nil
		}
	}
	return nil, errors.Wrapf(ErrUnknownLabel, "example %s: %q", e.GUID, e.Label)
}

func subsetOf(examples []Example, subset int) []Example {
	if subset > 0 && subset < len(examples) {
		return examples[:subset]
	}
	return examples
}
