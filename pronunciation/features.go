package pronunciation

import (
	"github.com/RyanBlaney/sonido-pronounce/algorithms/common"
	"github.com/RyanBlaney/sonido-pronounce/algorithms/filters"
	"github.com/RyanBlaney/sonido-pronounce/algorithms/spectral"
	"github.com/RyanBlaney/sonido-pronounce/pronunciation/config"
)

// FeatureExtractor converts samples into MFCC frames. Extract is a pure
// function of its input and the configuration.
type FeatureExtractor struct {
	cfg config.FeatureConfig
}

// NewFeatureExtractor creates a new feature extractor
func NewFeatureExtractor(cfg config.FeatureConfig) *FeatureExtractor {
	return &FeatureExtractor{cfg: cfg}
}

// Dim returns the number of coefficients per frame
func (fx *FeatureExtractor) Dim() int {
	return fx.cfg.NumCoefficients
}

// Extract computes one cepstral vector per centered frame
func (fx *FeatureExtractor) Extract(samples []float64, sampleRate int) (FeatureMatrix, error) {
	if len(samples) == 0 {
		return nil, NewError(KindInput, "cannot extract features from an empty signal", nil)
	}
	if sampleRate <= 0 {
		return nil, NewError(KindInput, "invalid sample rate", nil)
	}

	if fx.cfg.PreEmphasis > 0 {
		pe, err := filters.NewPreEmphasis(fx.cfg.PreEmphasis)
		if err != nil {
			return nil, NewError(KindInternal, "invalid pre-emphasis", err)
		}
		samples = pe.ProcessBuffer(samples)
	}

	frameSize, hopSize := fx.frameSizes(sampleRate)

	stft, err := spectral.NewSTFT(frameSize, hopSize)
	if err != nil {
		return nil, NewError(KindInternal, "failed to create STFT", err)
	}
	power, err := stft.PowerSpectrogram(samples)
	if err != nil {
		return nil, NewError(KindInternal, "failed to compute spectrogram", err)
	}

	mfcc, err := spectral.NewMFCCWithParams(sampleRate, frameSize, spectral.MFCCParams{
		NumCoefficients: fx.cfg.NumCoefficients,
		NumMelFilters:   fx.cfg.NumMelFilters,
		TopDB:           fx.cfg.TopDB,
		LifterCoeff:     fx.cfg.LifterCoeff,
		MelScale:        fx.cfg.MelScale,
	})
	if err != nil {
		return nil, NewError(KindInternal, "failed to create MFCC", err)
	}

	frames, err := mfcc.ComputeFrames(power)
	if err != nil {
		return nil, NewError(KindInternal, "failed to compute MFCC", err)
	}

	for _, frame := range frames {
		if !common.AllFinite(frame) {
			return nil, NewError(KindInternal, "feature vector contains non-finite values", nil)
		}
	}

	return FeatureMatrix(frames), nil
}

// frameSizes uses the fixed frame size when configured, otherwise the next
// power of two of the frame duration at sampleRate
func (fx *FeatureExtractor) frameSizes(sampleRate int) (frameSize, hopSize int) {
	if fx.cfg.FrameSize <= 0 {
		return spectral.FrameSizes(sampleRate, fx.cfg.FrameDuration.Seconds(), fx.cfg.HopDivisor)
	}
	hopDivisor := fx.cfg.HopDivisor
	if hopDivisor <= 0 {
		hopDivisor = 4
	}
	return fx.cfg.FrameSize, max(fx.cfg.FrameSize/hopDivisor, 1)
}
