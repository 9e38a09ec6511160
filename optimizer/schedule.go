package optimizer

// WarmupLinear rises linearly to 1 over the warmup fraction of training and
// then decays linearly, reaching 0 at the end of training.
func WarmupLinear(x, warmup float64) float64 {
	if x < warmup {
		return x / warmup
	}
	return 1.0 - x
}
