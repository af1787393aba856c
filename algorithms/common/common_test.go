package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeakAndRMS(t *testing.T) {
	data := []float64{0.1, -0.8, 0.5, 0.0}
	assert.Equal(t, 0.8, Peak(data))
	assert.InDelta(t, math.Sqrt((0.01+0.64+0.25)/4), RMS(data), 1e-12)
	assert.Equal(t, 0.0, Peak(nil))
}

func TestRoundTo(t *testing.T) {
	assert.Equal(t, 85.0, RoundTo(84.999999, 2))
	assert.Equal(t, 12.35, RoundTo(12.3456, 2))
	assert.Equal(t, 100.0, RoundTo(100, 2))
}

func TestFitLength(t *testing.T) {
	src := []float64{1, 2, 3, 4}

	assert.Equal(t, []float64{1, 2}, FitLength(src, 2))
	assert.Equal(t, []float64{1, 2, 3, 4, 0, 0}, FitLength(src, 6))

	out := FitLength(src, 4)
	out[0] = 9
	assert.Equal(t, 1.0, src[0], "FitLength must not alias its input")
}

func TestAllFinite(t *testing.T) {
	assert.True(t, AllFinite([]float64{0, 1, -2}))
	assert.False(t, AllFinite([]float64{0, math.NaN()}))
	assert.False(t, AllFinite([]float64{math.Inf(-1)}))
}

func TestPeakNormalizer(t *testing.T) {
	n := NewNormalizer(PeakNorm, 1.0)

	out := n.Normalize([]float64{0.25, -0.5, 0.1})
	assert.InDelta(t, 1.0, Peak(out), 1e-12)
	assert.InDelta(t, 0.5, out[0], 1e-12)

	silent := []float64{0, 0, 0}
	assert.Equal(t, silent, n.Normalize(silent))
}

func TestResampleIdentity(t *testing.T) {
	r := NewResampler(ResampleHigh)
	signal := []float64{0.1, 0.2, 0.3}

	out, err := r.Resample(signal, 16000, 16000)
	require.NoError(t, err)
	assert.Equal(t, &signal[0], &out[0], "equal rates must not copy")
}

func TestResampleLength(t *testing.T) {
	signal := make([]float64, 44100)
	for i := range signal {
		signal[i] = math.Sin(2 * math.Pi * 440 * float64(i) / 44100)
	}

	for _, quality := range []ResampleQuality{ResampleHigh, ResampleLinear} {
		out, err := NewResampler(quality).Resample(signal, 44100, 16000)
		require.NoError(t, err, quality)
		assert.Len(t, out, 16000, quality)
	}
}

func TestLinearResampleInterpolates(t *testing.T) {
	out, err := NewResampler(ResampleLinear).Resample([]float64{0, 1, 2, 3}, 4, 8)
	require.NoError(t, err)
	require.Len(t, out, 8)
	assert.InDelta(t, 0.5, out[1], 1e-12)
	assert.InDelta(t, 1.5, out[3], 1e-12)
	assert.InDelta(t, 3.0, out[7], 1e-12)
}

func TestResampleRejectsBadRates(t *testing.T) {
	_, err := NewResampler(ResampleHigh).Resample([]float64{1}, 0, 16000)
	assert.Error(t, err)
}
