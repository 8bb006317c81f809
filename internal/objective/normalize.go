package objective

// Normalize maps v from the historical range [lo, hi] to [0, 1], linearly
// extrapolating outside it. A degenerate range (lo == hi) normalizes to 0,
// so a signal with no observed variation contributes nothing to the score.
func Normalize(v, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}
