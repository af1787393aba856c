package spectral

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// amin is the power floor applied before the decibel conversion
const amin = 1e-10

// MFCC computes Mel-Frequency Cepstral Coefficients from power spectrograms.
// An MFCC is fully initialized at construction and safe for concurrent use.
type MFCC struct {
	numCoefficients int
	numMelFilters   int
	sampleRate      int
	fftSize         int
	lowFreq         float64
	highFreq        float64
	topDB           float64
	lifterCoeff     float64

	melScale   *MelScale
	filterBank [][]float64
	dctMatrix  [][]float64
}

// MFCCParams contains parameters for MFCC computation
type MFCCParams struct {
	NumCoefficients int     `json:"num_coefficients"` // Number of MFCC coefficients (default: 13)
	NumMelFilters   int     `json:"num_mel_filters"`  // Number of mel filter bank filters (default: 40)
	LowFreq         float64 `json:"low_freq"`         // Low frequency bound (default: 0)
	HighFreq        float64 `json:"high_freq"`        // High frequency bound (default: sampleRate/2)
	TopDB           float64 `json:"top_db"`           // Dynamic range kept below the loudest mel bin (default: 80, negative disables)
	LifterCoeff     float64 `json:"lifter_coeff"`     // Sinusoidal liftering coefficient (0 disables)
	MelScale        string  `json:"mel_scale"`        // "htk" (default) or "slaney"
}

// Mel scale names accepted by MFCCParams.MelScale
const (
	MelScaleHTK    = "htk"
	MelScaleSlaney = "slaney"
)

// DefaultMFCCParams returns the parameters used for pronunciation features
func DefaultMFCCParams() MFCCParams {
	return MFCCParams{
		NumCoefficients: 13,
		NumMelFilters:   40,
		TopDB:           80,
	}
}

// NewMFCC creates a new MFCC computer with default parameters
func NewMFCC(sampleRate, fftSize int) (*MFCC, error) {
	return NewMFCCWithParams(sampleRate, fftSize, DefaultMFCCParams())
}

// NewMFCCWithParams creates a new MFCC computer for frames of fftSize samples
func NewMFCCWithParams(sampleRate, fftSize int, params MFCCParams) (*MFCC, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	if fftSize <= 0 {
		return nil, fmt.Errorf("invalid FFT size: %d", fftSize)
	}

	if params.NumCoefficients <= 0 {
		params.NumCoefficients = 13
	}
	if params.NumMelFilters <= 0 {
		params.NumMelFilters = 40
	}
	if params.HighFreq <= 0 {
		params.HighFreq = float64(sampleRate) / 2.0
	}
	var melScale *MelScale
	switch params.MelScale {
	case "", MelScaleHTK:
		melScale = NewMelScale()
	case MelScaleSlaney:
		melScale = NewSlaneyMelScale()
	default:
		return nil, fmt.Errorf("unknown mel scale: %q", params.MelScale)
	}
	if params.NumCoefficients > params.NumMelFilters {
		return nil, fmt.Errorf("cannot keep %d coefficients from %d mel filters",
			params.NumCoefficients, params.NumMelFilters)
	}

	mfcc := &MFCC{
		numCoefficients: params.NumCoefficients,
		numMelFilters:   params.NumMelFilters,
		sampleRate:      sampleRate,
		fftSize:         fftSize,
		lowFreq:         params.LowFreq,
		highFreq:        params.HighFreq,
		topDB:           params.TopDB,
		lifterCoeff:     params.LifterCoeff,
		melScale:        melScale,
	}

	mfcc.filterBank = mfcc.melScale.CreateMelFilterBank(
		mfcc.numMelFilters,
		fftSize,
		sampleRate,
		mfcc.lowFreq,
		mfcc.highFreq,
	)
	if len(mfcc.filterBank) == 0 {
		return nil, fmt.Errorf("failed to create mel filter bank")
	}

	mfcc.createDCTMatrix()

	return mfcc, nil
}

// ComputeFrames converts a power spectrogram (one spectrum of fftSize/2+1
// bins per frame) into one coefficient vector per frame. The decibel floor
// is relative to the loudest mel bin of the whole spectrogram.
func (mfcc *MFCC) ComputeFrames(powerSpectrogram [][]float64) ([][]float64, error) {
	if len(powerSpectrogram) == 0 {
		return [][]float64{}, nil
	}

	bins := mfcc.fftSize/2 + 1
	logMel := make([][]float64, len(powerSpectrogram))
	maxDB := math.Inf(-1)

	for t, power := range powerSpectrogram {
		if len(power) != bins {
			return nil, fmt.Errorf("frame %d has %d bins, expected %d", t, len(power), bins)
		}

		mel := mfcc.melScale.ApplyFilterBank(power, mfcc.filterBank)
		for i, v := range mel {
			mel[i] = 10 * math.Log10(math.Max(v, amin))
		}
		maxDB = math.Max(maxDB, floats.Max(mel))
		logMel[t] = mel
	}

	if mfcc.topDB >= 0 {
		floor := maxDB - mfcc.topDB
		for _, mel := range logMel {
			for i, v := range mel {
				mel[i] = math.Max(v, floor)
			}
		}
	}

	frames := make([][]float64, len(logMel))
	for t, mel := range logMel {
		coeffs := mfcc.applyDCT(mel)
		if mfcc.lifterCoeff > 0 {
			coeffs = mfcc.applyLiftering(coeffs)
		}
		frames[t] = coeffs
	}

	return frames, nil
}

// createDCTMatrix creates the orthonormal DCT-II matrix
func (mfcc *MFCC) createDCTMatrix() {
	mfcc.dctMatrix = make([][]float64, mfcc.numCoefficients)

	for k := 0; k < mfcc.numCoefficients; k++ {
		mfcc.dctMatrix[k] = make([]float64, mfcc.numMelFilters)

		for n := 0; n < mfcc.numMelFilters; n++ {
			mfcc.dctMatrix[k][n] = math.Cos(math.Pi * float64(k) * (float64(n) + 0.5) / float64(mfcc.numMelFilters))

			if k == 0 {
				mfcc.dctMatrix[k][n] *= math.Sqrt(1.0 / float64(mfcc.numMelFilters))
			} else {
				mfcc.dctMatrix[k][n] *= math.Sqrt(2.0 / float64(mfcc.numMelFilters))
			}
		}
	}
}

func (mfcc *MFCC) applyDCT(logMelSpectrum []float64) []float64 {
	mfccCoeffs := make([]float64, mfcc.numCoefficients)
	for k, row := range mfcc.dctMatrix {
		mfccCoeffs[k] = floats.Dot(logMelSpectrum, row)
	}
	return mfccCoeffs
}

// applyLiftering applies liftering to enhance higher-order coefficients
func (mfcc *MFCC) applyLiftering(mfccCoeffs []float64) []float64 {
	liftered := make([]float64, len(mfccCoeffs))

	for i, coeff := range mfccCoeffs {
		if i == 0 {
			// Don't lifter C0
			liftered[i] = coeff
		} else {
			lifter := 1.0 + (mfcc.lifterCoeff/2.0)*math.Sin(math.Pi*float64(i)/mfcc.lifterCoeff)
			liftered[i] = coeff * lifter
		}
	}

	return liftered
}

// NumCoefficients returns the number of coefficients per frame
func (mfcc *MFCC) NumCoefficients() int {
	return mfcc.numCoefficients
}

// GetFilterBank returns the mel filter bank
func (mfcc *MFCC) GetFilterBank() [][]float64 {
	return mfcc.filterBank
}
