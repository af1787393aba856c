package pronunciation

import (
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-pronounce/pronunciation/config"
)

// Mode selects the aggregation and calibration policy
type Mode string

const (
	// ModeSingleItem scores the best of several references for one letter
	ModeSingleItem Mode = config.ModeSingleItem
	// ModePhrase averages scores over every reference of a phrase
	ModePhrase Mode = config.ModePhrase
)

// ParseMode maps a mode name to a Mode
func ParseMode(name string) (Mode, error) {
	switch m := Mode(name); m {
	case ModeSingleItem, ModePhrase:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode: %q", name)
	}
}

// AudioSignal is a mono recording
type AudioSignal struct {
	Samples    []float64 `json:"samples"`
	SampleRate int       `json:"sample_rate"`
}

// Validate rejects empty signals and non-positive sample rates
func (s AudioSignal) Validate() error {
	if len(s.Samples) == 0 {
		return NewError(KindInput, "empty audio signal", nil)
	}
	if s.SampleRate <= 0 {
		return NewError(KindInput, fmt.Sprintf("invalid sample rate: %d", s.SampleRate), nil)
	}
	return nil
}

// Duration returns the signal length in time
func (s AudioSignal) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(s.Samples)) / float64(s.SampleRate) * float64(time.Second))
}

// Segment is a half-open sample range [Start, End) of a signal
type Segment struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of samples covered
func (s Segment) Len() int {
	return s.End - s.Start
}

// FeatureMatrix holds one feature vector per frame
type FeatureMatrix [][]float64

// Frames returns the number of frames
func (m FeatureMatrix) Frames() int {
	return len(m)
}

// Dim returns the vector dimension, 0 for an empty matrix
func (m FeatureMatrix) Dim() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// TemplateInfo identifies a reference recording
type TemplateInfo struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Variant string `json:"variant"`
	// SegmentLabels names the expected sub-parts of a phrase in order
	SegmentLabels []string `json:"segment_labels,omitempty"`
}

// Template is a preprocessed reference recording with its precomputed
// features. Templates are built once and shared read-only between
// concurrent evaluations; no field may be modified after construction.
type Template struct {
	TemplateInfo

	Signal          AudioSignal     `json:"-"`
	Features        FeatureMatrix   `json:"-"`
	Segments        []Segment       `json:"segments"`
	SegmentFeatures []FeatureMatrix `json:"-"`
}

// SegmentLabel returns the name of sub-part i, "segment N" when unnamed
func (t *Template) SegmentLabel(i int) string {
	if i < len(t.SegmentLabels) && t.SegmentLabels[i] != "" {
		return t.SegmentLabels[i]
	}
	return fmt.Sprintf("segment %d", i+1)
}

// ExpectedSegments is the number of sub-parts a complete recording of this
// phrase should contain
func (t *Template) ExpectedSegments() int {
	if len(t.SegmentLabels) > 0 {
		return len(t.SegmentLabels)
	}
	return len(t.Segments)
}

// ScoreResult is the outcome of one evaluation
type ScoreResult struct {
	Score           float64         `json:"score"`
	Band            Band            `json:"band"`
	Feedback        string          `json:"feedback"`
	Notes           []string        `json:"notes,omitempty"`
	PerSegment      []SegmentScore  `json:"per_segment,omitempty"`
	LowSegmentCount bool            `json:"low_segment_count,omitempty"`
	TemplateScores  []TemplateScore `json:"template_scores,omitempty"`
	Mode            Mode            `json:"mode"`
	Language        string          `json:"language"`
	RequestID       string          `json:"request_id,omitempty"`
}

// SegmentScore is the alignment distance of one phrase sub-part
type SegmentScore struct {
	Label      string  `json:"label"`
	Distance   float64 `json:"distance"`
	TemplateID string  `json:"template_id"`
}

// TemplateScore reports how the user recording compared with one template.
// Failed templates carry Error and are excluded from aggregation.
type TemplateScore struct {
	TemplateID      string  `json:"template_id"`
	Distance        float64 `json:"distance"`
	Score           float64 `json:"score"`
	SegmentCount    int     `json:"segment_count,omitempty"`
	SegmentEligible bool    `json:"segment_eligible,omitempty"`
	Error           string  `json:"error,omitempty"`
}
