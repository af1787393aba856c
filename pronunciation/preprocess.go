package pronunciation

import (
	"fmt"

	"github.com/RyanBlaney/sonido-pronounce/algorithms/common"
	"github.com/RyanBlaney/sonido-pronounce/algorithms/spectral"
	"github.com/RyanBlaney/sonido-pronounce/algorithms/temporal"
	"github.com/RyanBlaney/sonido-pronounce/logging"
	"github.com/RyanBlaney/sonido-pronounce/pronunciation/config"
)

// Preprocessor trims silence, normalizes amplitude and reconciles sample rates
type Preprocessor struct {
	cfg        config.PreprocessConfig
	resampler  *common.Resampler
	normalizer *common.Normalizer
	logger     logging.Logger
}

// NewPreprocessor creates a new preprocessor
func NewPreprocessor(cfg config.PreprocessConfig, resample config.ResampleConfig, logger logging.Logger) *Preprocessor {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &Preprocessor{
		cfg:        cfg,
		resampler:  common.NewResampler(common.ResampleQuality(resample.Quality)),
		normalizer: common.NewNormalizer(common.PeakNorm, cfg.TargetPeak),
		logger:     logger.WithFields(logging.Fields{"component": "preprocessor"}),
	}
}

// Process guards against silent input, trims leading and trailing silence
// and normalizes the peak. The input samples are never modified.
func (p *Preprocessor) Process(sig AudioSignal) (AudioSignal, error) {
	if err := sig.Validate(); err != nil {
		return AudioSignal{}, err
	}
	if !common.AllFinite(sig.Samples) {
		return AudioSignal{}, NewError(KindInput, "audio contains non-finite samples", nil)
	}

	if peak := common.Peak(sig.Samples); peak < p.cfg.PeakEpsilon {
		return AudioSignal{}, NewError(KindInput, fmt.Sprintf("no voice detected (peak %.4f)", peak), nil)
	}

	frameSize, hopSize := spectral.FrameSizes(sig.SampleRate, p.cfg.FrameDuration.Seconds(), p.cfg.HopDivisor)
	voiced := temporal.NewSilenceDetection(frameSize, hopSize).Trim(sig.Samples, p.cfg.TrimTopDB)
	trimmed := AudioSignal{
		Samples:    sig.Samples[voiced.Start:voiced.End],
		SampleRate: sig.SampleRate,
	}

	if len(trimmed.Samples) == 0 || common.Peak(trimmed.Samples) < p.cfg.PeakEpsilon {
		return AudioSignal{}, NewError(KindInput, "no voice detected after trimming", nil)
	}
	if trimmed.Duration() < p.cfg.MinVoicedDuration {
		return AudioSignal{}, NewError(KindInput,
			fmt.Sprintf("voiced audio too short: %v < %v", trimmed.Duration(), p.cfg.MinVoicedDuration), nil)
	}

	p.logger.Debug("Trimmed recording", logging.Fields{
		"original_samples": len(sig.Samples),
		"trimmed_samples":  len(trimmed.Samples),
		"sample_rate":      sig.SampleRate,
	})

	return AudioSignal{
		Samples:    p.normalizer.Normalize(trimmed.Samples),
		SampleRate: sig.SampleRate,
	}, nil
}

// Reconcile brings two signals to a common sample rate, the lower of the
// two. Signals that already share a rate are returned unchanged.
func (p *Preprocessor) Reconcile(a, b AudioSignal) (AudioSignal, AudioSignal, error) {
	if a.SampleRate == b.SampleRate {
		return a, b, nil
	}

	target := min(a.SampleRate, b.SampleRate)

	ra, err := p.resample(a, target)
	if err != nil {
		return AudioSignal{}, AudioSignal{}, err
	}
	rb, err := p.resample(b, target)
	if err != nil {
		return AudioSignal{}, AudioSignal{}, err
	}

	return ra, rb, nil
}

func (p *Preprocessor) resample(sig AudioSignal, target int) (AudioSignal, error) {
	if sig.SampleRate == target {
		return sig, nil
	}

	samples, err := p.resampler.Resample(sig.Samples, sig.SampleRate, target)
	if err != nil {
		return AudioSignal{}, NewError(KindInternal, "resampling failed", err)
	}

	p.logger.Debug("Resampled signal", logging.Fields{
		"from": sig.SampleRate,
		"to":   target,
	})

	return AudioSignal{Samples: samples, SampleRate: target}, nil
}
