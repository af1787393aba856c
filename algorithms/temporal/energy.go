package temporal

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// powerFloor keeps the decibel conversion finite for digital silence
const powerFloor = 1e-10

// Energy computes frame-level energy on centered frames
type Energy struct {
	frameSize int
	hopSize   int
}

// NewEnergy creates a new energy calculator
func NewEnergy(frameSize, hopSize int) *Energy {
	return &Energy{
		frameSize: max(frameSize, 1),
		hopSize:   max(hopSize, 1),
	}
}

// HopSize returns the hop between frame centers in samples
func (e *Energy) HopSize() int {
	return e.hopSize
}

// ComputeRMS calculates RMS energy for frames centered on multiples of the
// hop size. The signal is zero-padded by frameSize/2 on both sides.
func (e *Energy) ComputeRMS(signal []float64) []float64 {
	if len(signal) == 0 {
		return []float64{}
	}

	half := e.frameSize / 2
	padded := make([]float64, len(signal)+2*half)
	copy(padded[half:], signal)

	numFrames := 1 + (len(padded)-e.frameSize)/e.hopSize
	energies := make([]float64, numFrames)

	for i := range numFrames {
		frame := padded[i*e.hopSize : i*e.hopSize+e.frameSize]
		energies[i] = floats.Norm(frame, 2) / math.Sqrt(float64(e.frameSize))
	}

	return energies
}

// ComputeRelativeDB converts frame RMS values to decibels relative to the
// loudest frame, so the loudest frame is 0 dB and all others are negative
func (e *Energy) ComputeRelativeDB(energies []float64) []float64 {
	if len(energies) == 0 {
		return []float64{}
	}

	ref := 10 * math.Log10(math.Max(powerFloor, math.Pow(floats.Max(energies), 2)))

	db := make([]float64, len(energies))
	for i, rms := range energies {
		db[i] = 10*math.Log10(math.Max(powerFloor, rms*rms)) - ref
	}

	return db
}
