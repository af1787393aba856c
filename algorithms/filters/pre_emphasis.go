package filters

import (
	"fmt"
)

// PreEmphasis implements a first-order pre-emphasis filter
//
// The filter implements the transfer function:
// H(z) = 1 - α*z^-1
//
// With the difference equation:
// y[n] = x[n] - α*x[n-1]
//
// References:
//   - L.R. Rabiner, R.W. Schafer, "Digital Processing of Speech Signals",
//     Prentice-Hall, 1978, Chapter 4
type PreEmphasis struct {
	coefficient float64 // Pre-emphasis coefficient α
	lastSample  float64 // Previous input sample x[n-1]
}

// NewPreEmphasis creates a pre-emphasis filter. A coefficient of 0 makes the
// filter an identity.
func NewPreEmphasis(coefficient float64) (*PreEmphasis, error) {
	if coefficient < 0.0 || coefficient >= 1.0 {
		return nil, fmt.Errorf("coefficient must be in [0, 1), got %f", coefficient)
	}
	return &PreEmphasis{coefficient: coefficient}, nil
}

// Process applies pre-emphasis filtering to a single sample
func (pe *PreEmphasis) Process(input float64) float64 {
	output := input - pe.coefficient*pe.lastSample
	pe.lastSample = input
	return output
}

// ProcessBuffer filters a whole buffer into a new slice, starting from a
// cleared state so the same input always yields the same output
func (pe *PreEmphasis) ProcessBuffer(input []float64) []float64 {
	pe.Reset()

	output := make([]float64, len(input))
	for i, sample := range input {
		output[i] = pe.Process(sample)
	}
	return output
}

// Reset clears the filter's internal state
func (pe *PreEmphasis) Reset() {
	pe.lastSample = 0.0
}

// GetCoefficient returns the current coefficient
func (pe *PreEmphasis) GetCoefficient() float64 {
	return pe.coefficient
}
