package spectral

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Slaney mel scale constants: linear below 1 kHz, logarithmic above
const (
	slaneyLinearStep = 200.0 / 3
	slaneyMinLogHz   = 1000.0
	slaneyMinLogMel  = slaneyMinLogHz / slaneyLinearStep
)

var slaneyLogStep = math.Log(6.4) / 27.0

// MelScale provides mel frequency conversion and triangular filter banks on
// either the HTK or the Slaney (Auditory Toolbox) mel scale
type MelScale struct {
	slaney bool
}

// NewMelScale creates a new HTK mel scale converter
func NewMelScale() *MelScale {
	return &MelScale{}
}

// NewSlaneyMelScale creates a mel scale converter matching librosa's default
func NewSlaneyMelScale() *MelScale {
	return &MelScale{slaney: true}
}

// HzToMel converts frequency in Hz to mel scale
func (ms *MelScale) HzToMel(hz float64) float64 {
	if !ms.slaney {
		return 2595.0 * math.Log10(1.0+hz/700.0)
	}
	if hz < slaneyMinLogHz {
		return hz / slaneyLinearStep
	}
	return slaneyMinLogMel + math.Log(hz/slaneyMinLogHz)/slaneyLogStep
}

// MelToHz converts mel scale to frequency in Hz
func (ms *MelScale) MelToHz(mel float64) float64 {
	if !ms.slaney {
		return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
	}
	if mel < slaneyMinLogMel {
		return mel * slaneyLinearStep
	}
	return slaneyMinLogHz * math.Exp(slaneyLogStep*(mel-slaneyMinLogMel))
}

// CreateMelFilterBank creates numFilters triangular filters over the
// fftSize/2+1 one-sided bins. Filter edges are evaluated at the exact bin
// frequencies and each filter is scaled to unit area (Slaney normalization),
// so narrow low-frequency filters never collapse to zero.
func (ms *MelScale) CreateMelFilterBank(numFilters int, fftSize int, sampleRate int, lowFreq, highFreq float64) [][]float64 {
	if numFilters <= 0 || fftSize <= 0 || sampleRate <= 0 {
		return nil
	}

	bins := fftSize/2 + 1
	binFreqs := make([]float64, bins)
	floats.Span(binFreqs, 0, float64(sampleRate)/2)

	// Equally spaced mel points, back in Hz
	melPoints := make([]float64, numFilters+2)
	floats.Span(melPoints, ms.HzToMel(lowFreq), ms.HzToMel(highFreq))
	hzPoints := make([]float64, len(melPoints))
	for i, mel := range melPoints {
		hzPoints[i] = ms.MelToHz(mel)
	}

	filterBank := make([][]float64, numFilters)
	for m := range filterBank {
		left, center, right := hzPoints[m], hzPoints[m+1], hzPoints[m+2]
		norm := 2.0 / (right - left)

		filter := make([]float64, bins)
		for k, f := range binFreqs {
			rising := (f - left) / (center - left)
			falling := (right - f) / (right - center)
			if w := math.Min(rising, falling); w > 0 {
				filter[k] = w * norm
			}
		}
		filterBank[m] = filter
	}

	return filterBank
}

// ApplyFilterBank applies mel filter bank to power spectrum
func (ms *MelScale) ApplyFilterBank(powerSpectrum []float64, filterBank [][]float64) []float64 {
	if len(filterBank) == 0 || len(powerSpectrum) == 0 {
		return []float64{}
	}

	melSpectrum := make([]float64, len(filterBank))
	for i, filter := range filterBank {
		n := min(len(filter), len(powerSpectrum))
		melSpectrum[i] = floats.Dot(powerSpectrum[:n], filter[:n])
	}

	return melSpectrum
}
