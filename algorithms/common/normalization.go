package common

// NormalizationType defines normalization method
type NormalizationType int

const (
	PeakNorm NormalizationType = iota
	RMSNorm
)

// Normalizer scales a signal to a target level
type Normalizer struct {
	method NormalizationType
	target float64
}

// NewNormalizer creates a new normalizer aiming at target (peak or RMS level)
func NewNormalizer(method NormalizationType, target float64) *Normalizer {
	if target <= 0 {
		target = 1.0
	}
	return &Normalizer{
		method: method,
		target: target,
	}
}

// Normalize returns a scaled copy of signal. Silent signals are returned unchanged.
func (n *Normalizer) Normalize(signal []float64) []float64 {
	switch n.method {
	case RMSNorm:
		return n.scale(signal, RMS(signal))
	default:
		return n.scale(signal, Peak(signal))
	}
}

func (n *Normalizer) scale(signal []float64, level float64) []float64 {
	if len(signal) == 0 || level < 1e-10 {
		return signal
	}

	gain := n.target / level
	normalized := make([]float64, len(signal))
	for i, val := range signal {
		normalized[i] = val * gain
	}

	return normalized
}
