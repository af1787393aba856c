package temporal

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Interval is a half-open sample range [Start, End)
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of samples in the interval
func (iv Interval) Len() int {
	return iv.End - iv.Start
}

// SilenceDetection finds voiced regions by comparing frame energy with the
// loudest frame of the same signal
type SilenceDetection struct {
	energy *Energy
}

// NewSilenceDetection creates a new silence detector
func NewSilenceDetection(frameSize, hopSize int) *SilenceDetection {
	return &SilenceDetection{
		energy: NewEnergy(frameSize, hopSize),
	}
}

// NonSilentFrames marks frames whose energy is within topDB of the loudest
// frame. Digital silence has no voiced frame.
func (sd *SilenceDetection) NonSilentFrames(signal []float64, topDB float64) []bool {
	energies := sd.energy.ComputeRMS(signal)
	voiced := make([]bool, len(energies))
	if len(energies) == 0 || math.Pow(floats.Max(energies), 2) <= powerFloor {
		return voiced
	}

	db := sd.energy.ComputeRelativeDB(energies)
	for i, v := range db {
		voiced[i] = v > -topDB
	}
	return voiced
}

// Trim returns the interval spanning the first to the last voiced frame. A
// signal with no voiced frame yields an empty interval.
func (sd *SilenceDetection) Trim(signal []float64, topDB float64) Interval {
	voiced := sd.NonSilentFrames(signal, topDB)

	first, last := -1, -1
	for i, v := range voiced {
		if !v {
			continue
		}
		if first == -1 {
			first = i
		}
		last = i
	}

	if first == -1 {
		return Interval{}
	}

	return sd.framesToInterval(first, last+1, len(signal))
}

// Split returns the voiced intervals of signal in order. Intervals never
// overlap; adjacent voiced frames are merged into one interval.
func (sd *SilenceDetection) Split(signal []float64, topDB float64) []Interval {
	voiced := sd.NonSilentFrames(signal, topDB)

	var intervals []Interval
	currentStart := -1

	for i, isVoiced := range voiced {
		if isVoiced && currentStart == -1 {
			currentStart = i
		} else if !isVoiced && currentStart != -1 {
			intervals = sd.appendInterval(intervals, currentStart, i, len(signal))
			currentStart = -1
		}
	}

	// Handle region that extends to end
	if currentStart != -1 {
		intervals = sd.appendInterval(intervals, currentStart, len(voiced), len(signal))
	}

	return intervals
}

func (sd *SilenceDetection) appendInterval(intervals []Interval, startFrame, endFrame, n int) []Interval {
	iv := sd.framesToInterval(startFrame, endFrame, n)
	if iv.Len() <= 0 {
		return intervals
	}
	return append(intervals, iv)
}

// framesToInterval maps frame indices [startFrame, endFrame) to samples
func (sd *SilenceDetection) framesToInterval(startFrame, endFrame, n int) Interval {
	hop := sd.energy.HopSize()
	return Interval{
		Start: min(startFrame*hop, n),
		End:   min(endFrame*hop, n),
	}
}
