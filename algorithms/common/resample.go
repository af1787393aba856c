package common

import (
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"
)

// ResampleQuality selects the resampling backend
type ResampleQuality string

const (
	// ResampleHigh uses a band-limited polyphase resampler
	ResampleHigh ResampleQuality = "high"
	// ResampleLinear uses linear interpolation between neighbouring samples
	ResampleLinear ResampleQuality = "linear"
)

// Resampler converts mono signals between sample rates
type Resampler struct {
	quality ResampleQuality
}

// NewResampler creates a resampler; unknown qualities fall back to ResampleHigh
func NewResampler(quality ResampleQuality) *Resampler {
	switch quality {
	case ResampleLinear, ResampleHigh:
	default:
		quality = ResampleHigh
	}
	return &Resampler{quality: quality}
}

// OutputLength is the number of samples a signal of n samples has after
// conversion from originalRate to targetRate
func OutputLength(n, originalRate, targetRate int) int {
	return int(math.Round(float64(n) * float64(targetRate) / float64(originalRate)))
}

// Resample converts signal from originalRate to targetRate. Equal rates return
// the input slice itself. The output always has OutputLength samples.
func (r *Resampler) Resample(signal []float64, originalRate, targetRate int) ([]float64, error) {
	if originalRate <= 0 || targetRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: %d -> %d", originalRate, targetRate)
	}
	if originalRate == targetRate || len(signal) == 0 {
		return signal, nil
	}

	n := OutputLength(len(signal), originalRate, targetRate)
	if n <= 0 {
		return []float64{}, nil
	}

	switch r.quality {
	case ResampleLinear:
		return linearResample(signal, originalRate, targetRate, n), nil
	default:
		out, err := polyphaseResample(signal, originalRate, targetRate)
		if err != nil {
			return nil, err
		}
		// The filter may hold back a tail; pad or cut to the nominal length
		return FitLength(out, n), nil
	}
}

func polyphaseResample(signal []float64, originalRate, targetRate int) ([]float64, error) {
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(originalRate),
		OutputRate: float64(targetRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	out, err := rs.Process(signal)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}
	return out, nil
}

func linearResample(signal []float64, originalRate, targetRate, n int) []float64 {
	ratio := float64(originalRate) / float64(targetRate)
	resampled := make([]float64, n)
	last := len(signal) - 1

	for i := range resampled {
		index := float64(i) * ratio
		j := int(index)
		if j >= last {
			resampled[i] = signal[last]
			continue
		}
		frac := index - float64(j)
		resampled[i] = signal[j] + frac*(signal[j+1]-signal[j])
	}

	return resampled
}
