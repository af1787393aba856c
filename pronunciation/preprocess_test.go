package pronunciation

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-pronounce/algorithms/common"
	"github.com/RyanBlaney/sonido-pronounce/pronunciation/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPreprocessor(cfg *config.Config) *Preprocessor {
	return NewPreprocessor(cfg.Preprocess, cfg.Resample, nil)
}

func TestProcessTrimsAndNormalizes(t *testing.T) {
	p := newTestPreprocessor(config.DefaultConfig())

	var samples []float64
	samples = append(samples, silence(0.5, 16000)...)
	samples = append(samples, tone(220, 0.5, 16000, 0.3)...)
	samples = append(samples, silence(0.5, 16000)...)
	original := append([]float64(nil), samples...)

	out, err := p.Process(AudioSignal{Samples: samples, SampleRate: 16000})
	require.NoError(t, err)

	assert.Equal(t, 16000, out.SampleRate)
	assert.InDelta(t, 8000, len(out.Samples), 1100)
	assert.InDelta(t, 1.0, common.Peak(out.Samples), 1e-9)
	assert.Equal(t, original, samples)
}

func TestProcessRejectsBadInput(t *testing.T) {
	p := newTestPreprocessor(config.DefaultConfig())

	tests := []struct {
		name string
		sig  AudioSignal
	}{
		{"empty", AudioSignal{SampleRate: 16000}},
		{"zero rate", AudioSignal{Samples: tone(220, 0.5, 16000, 0.5)}},
		{"silence", AudioSignal{Samples: silence(1, 16000), SampleRate: 16000}},
		{"too quiet", AudioSignal{Samples: tone(220, 1, 16000, 0.005), SampleRate: 16000}},
		{"nan", AudioSignal{Samples: []float64{0.5, math.NaN(), 0.5}, SampleRate: 16000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Process(tt.sig)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInput), err.Error())
		})
	}
}

func TestProcessRejectsShortVoicedAudio(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Preprocess.MinVoicedDuration = 2 * time.Second
	p := newTestPreprocessor(cfg)

	_, err := p.Process(AudioSignal{Samples: tone(220, 1, 16000, 0.5), SampleRate: 16000})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInput))
}

func TestReconcile(t *testing.T) {
	p := newTestPreprocessor(config.DefaultConfig())

	a := AudioSignal{Samples: tone(220, 0.5, 16000, 0.5), SampleRate: 16000}
	b := AudioSignal{Samples: tone(220, 0.25, 16000, 0.5), SampleRate: 16000}

	ra, rb, err := p.Reconcile(a, b)
	require.NoError(t, err)
	assert.Same(t, &a.Samples[0], &ra.Samples[0])
	assert.Same(t, &b.Samples[0], &rb.Samples[0])

	c := AudioSignal{Samples: tone(220, 0.5, 8000, 0.5), SampleRate: 8000}
	ra, rc, err := p.Reconcile(a, c)
	require.NoError(t, err)
	assert.Equal(t, 8000, ra.SampleRate)
	assert.Equal(t, 8000, rc.SampleRate)
	assert.Len(t, ra.Samples, 4000)
	assert.Same(t, &c.Samples[0], &rc.Samples[0])
}

func TestSegmenterSplitsBursts(t *testing.T) {
	cfg := config.DefaultConfig()
	s := NewSegmenter(cfg.Segmenter, cfg.Preprocess)

	segments := s.Split(AudioSignal{Samples: bursts(3, 0.3, 0.2, 16000), SampleRate: 16000})
	require.Len(t, segments, 3)
	for i := 1; i < len(segments); i++ {
		assert.Less(t, segments[i-1].End, segments[i].Start)
	}
	for _, seg := range segments {
		assert.Greater(t, seg.Len(), 0)
	}

	assert.Empty(t, s.Split(AudioSignal{}))
}

func TestFeatureExtractorShape(t *testing.T) {
	cfg := config.DefaultConfig()
	fx := NewFeatureExtractor(cfg.Features)

	// 2048-sample frames with a 512-sample hop, centered
	features, err := fx.Extract(tone(220, 1, 16000, 0.5), 16000)
	require.NoError(t, err)
	assert.Equal(t, 32, features.Frames())
	assert.Equal(t, 13, features.Dim())

	features, err = fx.Extract(tone(220, 1, 8000, 0.5), 8000)
	require.NoError(t, err)
	assert.Equal(t, 16, features.Frames())

	byDuration := cfg.Features
	byDuration.FrameSize = 0
	byDuration.FrameDuration = 40 * time.Millisecond
	features, err = NewFeatureExtractor(byDuration).Extract(tone(220, 1, 16000, 0.5), 16000)
	require.NoError(t, err)
	assert.Equal(t, 63, features.Frames())

	_, err = fx.Extract(nil, 16000)
	assert.True(t, errors.Is(err, ErrInput))
}
