package pronunciation

import (
	"github.com/RyanBlaney/sonido-pronounce/algorithms/spectral"
	"github.com/RyanBlaney/sonido-pronounce/algorithms/temporal"
	"github.com/RyanBlaney/sonido-pronounce/pronunciation/config"
)

// Segmenter splits a preprocessed signal into voiced sub-parts
type Segmenter struct {
	topDB         float64
	frameDuration float64
	hopDivisor    int
}

// NewSegmenter creates a segmenter that frames audio like the preprocessor
func NewSegmenter(cfg config.SegmenterConfig, pre config.PreprocessConfig) *Segmenter {
	return &Segmenter{
		topDB:         cfg.TopDB,
		frameDuration: pre.FrameDuration.Seconds(),
		hopDivisor:    pre.HopDivisor,
	}
}

// Split returns the ordered, non-overlapping voiced segments of sig. Few or
// no segments is not an error.
func (s *Segmenter) Split(sig AudioSignal) []Segment {
	if len(sig.Samples) == 0 || sig.SampleRate <= 0 {
		return nil
	}

	frameSize, hopSize := spectral.FrameSizes(sig.SampleRate, s.frameDuration, s.hopDivisor)
	intervals := temporal.NewSilenceDetection(frameSize, hopSize).Split(sig.Samples, s.topDB)

	segments := make([]Segment, len(intervals))
	for i, iv := range intervals {
		segments[i] = Segment{Start: iv.Start, End: iv.End}
	}
	return segments
}
