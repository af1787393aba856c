package spectral

// PowerSpectrum converts complex spectra to one-sided power spectra
type PowerSpectrum struct{}

// NewPowerSpectrum creates a new power spectrum calculator
func NewPowerSpectrum() *PowerSpectrum {
	return &PowerSpectrum{}
}

// Compute returns |X[k]|² for the non-negative frequency bins 0..n/2 of a
// full-length spectrum of n bins
func (ps *PowerSpectrum) Compute(spectrum []complex128) []float64 {
	if len(spectrum) == 0 {
		return []float64{}
	}

	bins := len(spectrum)/2 + 1
	power := make([]float64, bins)
	ps.ComputeInto(power, spectrum)
	return power
}

// ComputeInto writes the one-sided power spectrum into dst, which must hold
// len(spectrum)/2+1 values
func (ps *PowerSpectrum) ComputeInto(dst []float64, spectrum []complex128) {
	for i := range dst {
		re, im := real(spectrum[i]), imag(spectrum[i])
		dst[i] = re*re + im*im
	}
}
