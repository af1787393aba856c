package temporal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 16000

// bursts builds alternating silence and 300 Hz tone regions, durations in seconds
func bursts(durations ...float64) []float64 {
	var out []float64
	for i, d := range durations {
		n := int(d * testRate)
		for j := range n {
			v := 0.0
			if i%2 == 1 {
				v = 0.5 * math.Sin(2*math.Pi*300*float64(j)/testRate)
			}
			out = append(out, v)
		}
	}
	return out
}

func TestComputeRMSCenteredFrameCount(t *testing.T) {
	e := NewEnergy(1024, 256)
	assert.Len(t, e.ComputeRMS(make([]float64, 16000)), 63)
	assert.Empty(t, e.ComputeRMS(nil))
}

func TestComputeRelativeDB(t *testing.T) {
	e := NewEnergy(4, 2)
	db := e.ComputeRelativeDB([]float64{1, 0.1, 0})

	assert.InDelta(t, 0, db[0], 1e-12)
	assert.InDelta(t, -20, db[1], 1e-9)
	assert.InDelta(t, -100, db[2], 1e-9)
}

func TestTrimRemovesLeadingAndTrailingSilence(t *testing.T) {
	sd := NewSilenceDetection(1024, 256)
	signal := bursts(0.5, 1.0, 0.5)

	iv := sd.Trim(signal, 20)
	assert.InDelta(t, 8000, iv.Start, 600)
	assert.InDelta(t, 24000, iv.End, 600)
	assert.LessOrEqual(t, iv.End, len(signal))
}

func TestTrimSilenceIsEmpty(t *testing.T) {
	sd := NewSilenceDetection(1024, 256)
	assert.Equal(t, 0, sd.Trim(make([]float64, 8000), 20).Len())

	quiet := make([]float64, 8000)
	for i := range quiet {
		quiet[i] = 1e-6 * math.Sin(2*math.Pi*300*float64(i)/testRate)
	}
	assert.Equal(t, 0, sd.Trim(quiet, 20).Len())
}

func TestSplitSilenceHasNoIntervals(t *testing.T) {
	sd := NewSilenceDetection(1024, 256)
	assert.Empty(t, sd.Split(make([]float64, 16000), 15))
	assert.NotContains(t, sd.NonSilentFrames(make([]float64, 4000), 60), true)
}

func TestSplitFindsEachBurst(t *testing.T) {
	sd := NewSilenceDetection(1024, 256)
	signal := bursts(0.3, 0.4, 0.3, 0.4, 0.3, 0.4, 0.3)

	intervals := sd.Split(signal, 15)
	require.Len(t, intervals, 3)

	for i := 1; i < len(intervals); i++ {
		assert.LessOrEqual(t, intervals[i-1].End, intervals[i].Start, "intervals must be ordered and disjoint")
	}
	for _, iv := range intervals {
		assert.Greater(t, iv.Len(), 0)
	}
}

func TestSplitContinuousToneIsOneInterval(t *testing.T) {
	sd := NewSilenceDetection(1024, 256)
	signal := bursts(0, 1.0)

	intervals := sd.Split(signal, 15)
	require.Len(t, intervals, 1)
	assert.Equal(t, 0, intervals[0].Start)
	assert.Equal(t, len(signal), intervals[0].End)
}
