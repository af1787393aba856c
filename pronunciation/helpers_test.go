package pronunciation

import (
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-pronounce/pronunciation/config"
	"github.com/stretchr/testify/require"
)

// tone returns a two-partial voiced-like tone
func tone(freq float64, duration float64, sampleRate int, amplitude float64) []float64 {
	n := int(duration * float64(sampleRate))
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		out[i] = amplitude * (0.7*math.Sin(2*math.Pi*freq*t) + 0.3*math.Sin(2*math.Pi*2*freq*t))
	}
	return out
}

// bursts concatenates count tones separated by digital silence
func bursts(count int, toneDur, gapDur float64, sampleRate int) []float64 {
	var out []float64
	gap := make([]float64, int(gapDur*float64(sampleRate)))
	for i := 0; i < count; i++ {
		if i > 0 {
			out = append(out, gap...)
		}
		out = append(out, tone(220+float64(i)*110, toneDur, sampleRate, 0.6)...)
	}
	return out
}

func silence(duration float64, sampleRate int) []float64 {
	return make([]float64, int(duration*float64(sampleRate)))
}

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(config.DefaultConfig(), nil)
	require.NoError(t, err)
	return e
}

func newTestTemplate(t *testing.T, e *Evaluator, id string, sig AudioSignal) *Template {
	t.Helper()
	tmpl, err := e.NewTemplate(TemplateInfo{ID: id, Label: "item"}, sig)
	require.NoError(t, err)
	return tmpl
}
