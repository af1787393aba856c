package spectral

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-pronounce/algorithms/common"
	"github.com/mjibson/go-dsp/window"
)

// FrameSizes derives the analysis frame length (next power of two of
// frameDuration seconds) and hop size for a sample rate
func FrameSizes(sampleRate int, frameDuration float64, hopDivisor int) (frameSize, hopSize int) {
	frameSize = common.NextPowerOfTwo(int(math.Round(frameDuration * float64(sampleRate))))
	if hopDivisor <= 0 {
		hopDivisor = 4
	}
	hopSize = max(frameSize/hopDivisor, 1)
	return frameSize, hopSize
}

// STFT computes centered short-time power spectra with a periodic Hann window
type STFT struct {
	fft       *FFT
	power     *PowerSpectrum
	window    []float64
	frameSize int
	hopSize   int
}

// NewSTFT creates a new STFT calculator
func NewSTFT(frameSize, hopSize int) (*STFT, error) {
	if frameSize <= 1 {
		return nil, fmt.Errorf("frame size must be greater than 1, got %d", frameSize)
	}
	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive, got %d", hopSize)
	}

	// go-dsp's Hann is symmetric; one extra point and dropping it gives the periodic form
	return &STFT{
		fft:       NewFFT(),
		power:     NewPowerSpectrum(),
		window:    window.Hann(frameSize + 1)[:frameSize],
		frameSize: frameSize,
		hopSize:   hopSize,
	}, nil
}

// FrameSize returns the analysis frame length in samples
func (s *STFT) FrameSize() int { return s.frameSize }

// HopSize returns the hop between frame starts in samples
func (s *STFT) HopSize() int { return s.hopSize }

// NumFrames returns the number of centered frames for a signal of n samples
func (s *STFT) NumFrames(n int) int {
	padded := n + 2*(s.frameSize/2)
	if padded < s.frameSize {
		return 0
	}
	return 1 + (padded-s.frameSize)/s.hopSize
}

// PowerSpectrogram returns one power spectrum (frameSize/2+1 bins) per frame.
// The signal is zero-padded by frameSize/2 on both sides so frame t is
// centered on sample t*hopSize.
func (s *STFT) PowerSpectrogram(signal []float64) ([][]float64, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	half := s.frameSize / 2
	padded := make([]float64, len(signal)+2*half)
	copy(padded[half:], signal)

	numFrames := s.NumFrames(len(signal))
	freqBins := s.frameSize/2 + 1

	spectrogram := make([][]float64, numFrames)
	for i := range spectrogram {
		spectrogram[i] = make([]float64, freqBins)
	}

	numWorkers := s.getOptimalWorkerCount(numFrames)
	jobs := make(chan int, numFrames)

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Reuse frame buffer for this worker
			frameBuffer := make([]float64, s.frameSize)

			for frameIdx := range jobs {
				start := frameIdx * s.hopSize
				for i, w := range s.window {
					frameBuffer[i] = padded[start+i] * w
				}
				s.power.ComputeInto(spectrogram[frameIdx], s.fft.Compute(frameBuffer))
			}
		}()
	}

	for frameIdx := range numFrames {
		jobs <- frameIdx
	}
	close(jobs)

	wg.Wait()

	return spectrogram, nil
}

// getOptimalWorkerCount determines the number of workers based on workload
func (s *STFT) getOptimalWorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	// For small workloads, don't over-parallelize
	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}

	if numFrames < 1000 {
		return min(numCPU, 8)
	}

	return numCPU
}
