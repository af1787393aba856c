package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode names accepted by ModeConfig
const (
	ModeSingleItem = "single"
	ModePhrase     = "phrase"
)

// Config holds every tunable of the scoring engine. Values are passed
// explicitly to the components; nothing reads global state.
type Config struct {
	Preprocess PreprocessConfig `json:"preprocess" yaml:"preprocess" mapstructure:"preprocess"`
	Resample   ResampleConfig   `json:"resample" yaml:"resample" mapstructure:"resample"`
	Segmenter  SegmenterConfig  `json:"segmenter" yaml:"segmenter" mapstructure:"segmenter"`
	Features   FeatureConfig    `json:"features" yaml:"features" mapstructure:"features"`
	Alignment  AlignmentConfig  `json:"alignment" yaml:"alignment" mapstructure:"alignment"`
	SingleItem ModeConfig       `json:"single_item" yaml:"single_item" mapstructure:"single_item"`
	Phrase     ModeConfig       `json:"phrase" yaml:"phrase" mapstructure:"phrase"`
	Feedback   FeedbackConfig   `json:"feedback" yaml:"feedback" mapstructure:"feedback"`

	// Timeout bounds a whole evaluation call
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	// MaxParallel caps concurrently aligned phrase templates
	MaxParallel int `json:"max_parallel" yaml:"max_parallel" mapstructure:"max_parallel"`
}

// PreprocessConfig controls silence guards, trimming and normalization
type PreprocessConfig struct {
	PeakEpsilon       float64       `json:"peak_epsilon" yaml:"peak_epsilon" mapstructure:"peak_epsilon"`                      // Raw peak below this is treated as no sound
	TrimTopDB         float64       `json:"trim_top_db" yaml:"trim_top_db" mapstructure:"trim_top_db"`                         // Frames quieter than this below the loudest are trimmed
	MinVoicedDuration time.Duration `json:"min_voiced_duration" yaml:"min_voiced_duration" mapstructure:"min_voiced_duration"` // Shortest accepted trimmed recording
	TargetPeak        float64       `json:"target_peak" yaml:"target_peak" mapstructure:"target_peak"`
	FrameDuration     time.Duration `json:"frame_duration" yaml:"frame_duration" mapstructure:"frame_duration"` // Energy frame length, rounded up to a power of two in samples
	HopDivisor        int           `json:"hop_divisor" yaml:"hop_divisor" mapstructure:"hop_divisor"`
}

// ResampleConfig selects the sample-rate conversion backend
type ResampleConfig struct {
	Quality string `json:"quality" yaml:"quality" mapstructure:"quality"` // "high" or "linear"
}

// SegmenterConfig controls phrase segmentation
type SegmenterConfig struct {
	TopDB float64 `json:"top_db" yaml:"top_db" mapstructure:"top_db"`
}

// FeatureConfig controls MFCC extraction. The defaults reproduce librosa's
// mfcc framing, which the calibration constants were derived with.
type FeatureConfig struct {
	// FrameSize is the analysis frame in samples at any rate; when zero the
	// frame is the next power of two of FrameDuration
	FrameSize       int           `json:"frame_size" yaml:"frame_size" mapstructure:"frame_size"`
	FrameDuration   time.Duration `json:"frame_duration" yaml:"frame_duration" mapstructure:"frame_duration"`
	HopDivisor      int           `json:"hop_divisor" yaml:"hop_divisor" mapstructure:"hop_divisor"`
	NumMelFilters   int           `json:"num_mel_filters" yaml:"num_mel_filters" mapstructure:"num_mel_filters"`
	MelScale        string        `json:"mel_scale" yaml:"mel_scale" mapstructure:"mel_scale"` // "slaney" or "htk"
	NumCoefficients int           `json:"num_coefficients" yaml:"num_coefficients" mapstructure:"num_coefficients"`
	TopDB           float64       `json:"top_db" yaml:"top_db" mapstructure:"top_db"`
	PreEmphasis     float64       `json:"pre_emphasis" yaml:"pre_emphasis" mapstructure:"pre_emphasis"` // 0 disables
	LifterCoeff     float64       `json:"lifter_coeff" yaml:"lifter_coeff" mapstructure:"lifter_coeff"` // 0 disables
}

// AlignmentConfig controls DTW
type AlignmentConfig struct {
	Strategy       string `json:"strategy" yaml:"strategy" mapstructure:"strategy"` // "auto", "exact", "approximate"
	ExactMaxFrames int    `json:"exact_max_frames" yaml:"exact_max_frames" mapstructure:"exact_max_frames"`
	Radius         int    `json:"radius" yaml:"radius" mapstructure:"radius"`
	Metric         string `json:"metric" yaml:"metric" mapstructure:"metric"` // "euclidean", "manhattan"
}

// ModeConfig holds per-mode scoring parameters
type ModeConfig struct {
	// Calibration is K in score = 100*exp(-distance/K)
	Calibration float64 `json:"calibration" yaml:"calibration" mapstructure:"calibration"`
	// Strategy overrides Alignment.Strategy when set
	Strategy string `json:"strategy,omitempty" yaml:"strategy,omitempty" mapstructure:"strategy"`
}

// FeedbackConfig controls bands and targeted notes
type FeedbackConfig struct {
	ExcellentMin             float64 `json:"excellent_min" yaml:"excellent_min" mapstructure:"excellent_min"`
	GoodMin                  float64 `json:"good_min" yaml:"good_min" mapstructure:"good_min"`
	AverageMin               float64 `json:"average_min" yaml:"average_min" mapstructure:"average_min"`
	SegmentDistanceThreshold float64 `json:"segment_distance_threshold" yaml:"segment_distance_threshold" mapstructure:"segment_distance_threshold"`
	DefaultLanguage          string  `json:"default_language" yaml:"default_language" mapstructure:"default_language"`
}

// DefaultConfig returns the calibrated defaults
func DefaultConfig() *Config {
	return &Config{
		Preprocess: PreprocessConfig{
			PeakEpsilon:       0.01,
			TrimTopDB:         20,
			MinVoicedDuration: 60 * time.Millisecond,
			TargetPeak:        1.0,
			FrameDuration:     40 * time.Millisecond,
			HopDivisor:        4,
		},
		Resample: ResampleConfig{
			Quality: "high",
		},
		Segmenter: SegmenterConfig{
			TopDB: 15,
		},
		Features: FeatureConfig{
			FrameSize:       2048,
			HopDivisor:      4,
			NumMelFilters:   128,
			MelScale:        "slaney",
			NumCoefficients: 13,
			TopDB:           80,
		},
		Alignment: AlignmentConfig{
			Strategy:       "auto",
			ExactMaxFrames: 400,
			Radius:         1,
			Metric:         "euclidean",
		},
		SingleItem: ModeConfig{
			Calibration: 30000,
		},
		Phrase: ModeConfig{
			Calibration: 150000,
		},
		Feedback: FeedbackConfig{
			ExcellentMin:             90,
			GoodMin:                  75,
			AverageMin:               50,
			SegmentDistanceThreshold: 50,
			DefaultLanguage:          "en",
		},
		Timeout:     30 * time.Second,
		MaxParallel: 4,
	}
}

// ModeConfig returns the scoring parameters of a mode, with the alignment
// strategy resolved
func (c *Config) ModeConfig(mode string) (ModeConfig, error) {
	var mc ModeConfig
	switch mode {
	case ModeSingleItem:
		mc = c.SingleItem
	case ModePhrase:
		mc = c.Phrase
	default:
		return ModeConfig{}, fmt.Errorf("unknown mode: %q", mode)
	}

	if mc.Strategy == "" {
		mc.Strategy = c.Alignment.Strategy
	}
	return mc, nil
}

// Validate checks ranges and orderings
func (c *Config) Validate() error {
	if c.Preprocess.PeakEpsilon < 0 {
		return fmt.Errorf("preprocess peak epsilon cannot be negative")
	}
	if c.Preprocess.TrimTopDB <= 0 {
		return fmt.Errorf("preprocess trim top dB must be positive")
	}
	if c.Preprocess.MinVoicedDuration < 0 {
		return fmt.Errorf("preprocess minimum voiced duration cannot be negative")
	}
	if c.Preprocess.TargetPeak <= 0 {
		return fmt.Errorf("preprocess target peak must be positive")
	}
	if c.Preprocess.FrameDuration <= 0 || c.Preprocess.HopDivisor <= 0 {
		return fmt.Errorf("preprocess frame duration and hop divisor must be positive")
	}

	switch c.Resample.Quality {
	case "high", "linear":
	default:
		return fmt.Errorf("unknown resample quality: %q", c.Resample.Quality)
	}

	if c.Segmenter.TopDB <= 0 {
		return fmt.Errorf("segmenter top dB must be positive")
	}

	if c.Features.FrameSize < 0 || c.Features.FrameDuration < 0 {
		return fmt.Errorf("feature frame size and duration cannot be negative")
	}
	if (c.Features.FrameSize == 0 && c.Features.FrameDuration == 0) || c.Features.HopDivisor <= 0 {
		return fmt.Errorf("feature frame length and hop divisor must be positive")
	}
	switch c.Features.MelScale {
	case "slaney", "htk":
	default:
		return fmt.Errorf("unknown mel scale: %q", c.Features.MelScale)
	}
	if c.Features.NumMelFilters <= 0 || c.Features.NumCoefficients <= 0 {
		return fmt.Errorf("feature filter and coefficient counts must be positive")
	}
	if c.Features.NumCoefficients > c.Features.NumMelFilters {
		return fmt.Errorf("cannot keep %d coefficients from %d mel filters",
			c.Features.NumCoefficients, c.Features.NumMelFilters)
	}
	if c.Features.PreEmphasis < 0 || c.Features.PreEmphasis >= 1 {
		return fmt.Errorf("pre-emphasis must be in [0, 1)")
	}

	if err := validateStrategy(c.Alignment.Strategy); err != nil {
		return err
	}
	if c.Alignment.ExactMaxFrames < 0 || c.Alignment.Radius < 0 {
		return fmt.Errorf("alignment frame limit and radius cannot be negative")
	}
	switch c.Alignment.Metric {
	case "euclidean", "manhattan":
	default:
		return fmt.Errorf("unknown alignment metric: %q", c.Alignment.Metric)
	}

	for name, mc := range map[string]ModeConfig{ModeSingleItem: c.SingleItem, ModePhrase: c.Phrase} {
		if mc.Calibration <= 0 {
			return fmt.Errorf("%s calibration must be positive", name)
		}
		if mc.Strategy != "" {
			if err := validateStrategy(mc.Strategy); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}

	fb := c.Feedback
	if !(fb.ExcellentMin >= fb.GoodMin && fb.GoodMin >= fb.AverageMin && fb.AverageMin >= 0 && fb.ExcellentMin <= 100) {
		return fmt.Errorf("feedback cutoffs must satisfy 100 >= excellent >= good >= average >= 0")
	}
	if fb.SegmentDistanceThreshold < 0 {
		return fmt.Errorf("segment distance threshold cannot be negative")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxParallel <= 0 {
		return fmt.Errorf("max parallel must be positive")
	}

	return nil
}

func validateStrategy(strategy string) error {
	switch strategy {
	case "auto", "exact", "approximate":
		return nil
	default:
		return fmt.Errorf("unknown alignment strategy: %q", strategy)
	}
}

// LoadFile reads a YAML file over the defaults and validates the result
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return cfg, nil
}
