package trainer

// LossScaler holds the loss scale factor of half precision training.
// It is halved every time the gradients overflow.
type LossScaler struct {
	Scale   float64
	Enabled bool
}

// Factor is the multiplier applied to the loss before the backward pass.
func (s *LossScaler) Factor() float64 {
	if !s.Enabled || s.Scale == 1 {
		return 1
	}
	return s.Scale
}

// Backoff halves the scale.
func (s *LossScaler) Backoff() {
	s.Scale /= 2
}
