package checkpoint

import "math"

// BestTracker keeps the evaluation losses of a run and reports new strict minima.
type BestTracker struct {
	losses []float64
}

// NewBestTracker resumes from an earlier loss history.
func NewBestTracker(history []float64) *BestTracker {
	return &BestTracker{losses: append([]float64(nil), history...)}
}

// Observe records a loss and reports whether it is strictly below every earlier loss.
// A NaN loss is never best and is not recorded.
func (b *BestTracker) Observe(loss float64) bool {
	if math.IsNaN(loss) {
		return false
	}
	best := true
	for _, l := range b.losses {
		if loss >= l {
			best = false
			break
		}
	}
	b.losses = append(b.losses, loss)
	return best
}

// History returns a copy of the recorded losses.
func (b *BestTracker) History() []float64 {
	return append([]float64(nil), b.losses...)
}
