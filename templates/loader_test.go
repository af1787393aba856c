package templates

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/RyanBlaney/sonido-pronounce/pronunciation"
	"github.com/RyanBlaney/sonido-pronounce/transcode"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDecoder struct {
	*transcode.Decoder
	calls atomic.Int32
}

func (d *countingDecoder) DecodeFile(ctx context.Context, path string) (*transcode.AudioData, error) {
	d.calls.Add(1)
	return d.Decoder.DecodeFile(ctx, path)
}

func writeTone(t *testing.T, path string, freq, amplitude float64) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	const sampleRate = 16000
	data := make([]int, sampleRate/2)
	for i := range data {
		data[i] = int(amplitude * 32767 * math.Sin(2*math.Pi*freq*float64(i)/sampleRate))
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

func newTestLoader(t *testing.T, root string, cache Cache) (*Loader, *countingDecoder) {
	t.Helper()
	evaluator, err := pronunciation.NewEvaluator(nil, nil)
	require.NoError(t, err)

	decoder := &countingDecoder{Decoder: transcode.NewDecoder(nil)}
	loader, err := NewLoader(root, decoder, evaluator, cache, nil)
	require.NoError(t, err)
	return loader, decoder
}

func TestResolveOrdersAndSkipsSilent(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "single", "default")
	writeTone(t, filepath.Join(dir, "ba_2.wav"), 330, 0.5)
	writeTone(t, filepath.Join(dir, "ba_1.wav"), 220, 0.5)
	writeTone(t, filepath.Join(dir, "ba_3.wav"), 220, 0)
	writeTone(t, filepath.Join(dir, "ta_1.wav"), 440, 0.5)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ba_notes.txt"), []byte("x"), 0o644))

	loader, _ := newTestLoader(t, root, nil)

	templates, err := loader.Resolve(context.Background(), pronunciation.ModeSingleItem, "default", "ba")
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, "single/default/ba_1.wav", templates[0].ID)
	assert.Equal(t, "single/default/ba_2.wav", templates[1].ID)
	assert.Equal(t, "ba", templates[0].Label)
	assert.NotEmpty(t, templates[0].Features)
}

func TestResolveIgnoresItemsSharingPrefix(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "single", "male")
	writeTone(t, filepath.Join(dir, "ha_1.wav"), 220, 0.5)
	writeTone(t, filepath.Join(dir, "ha.wav"), 247, 0.5)
	writeTone(t, filepath.Join(dir, "hamza_1.wav"), 330, 0.5)

	loader, _ := newTestLoader(t, root, nil)

	templates, err := loader.Resolve(context.Background(), pronunciation.ModeSingleItem, "male", "ha")
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, "single/male/ha.wav", templates[0].ID)
	assert.Equal(t, "single/male/ha_1.wav", templates[1].ID)

	templates, err = loader.Resolve(context.Background(), pronunciation.ModeSingleItem, "male", "hamza")
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "single/male/hamza_1.wav", templates[0].ID)
}

func TestResolveMissingItem(t *testing.T) {
	loader, _ := newTestLoader(t, t.TempDir(), nil)

	_, err := loader.Resolve(context.Background(), pronunciation.ModePhrase, "default", "bismillah")
	require.Error(t, err)
	assert.True(t, errors.Is(err, pronunciation.ErrNoTemplate))

	_, err = loader.Resolve(context.Background(), pronunciation.ModePhrase, "..", "bismillah")
	assert.True(t, errors.Is(err, pronunciation.ErrInput))
}

func TestResolveAppliesSegmentLabels(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "phrase", "default")
	writeTone(t, filepath.Join(dir, "bismillah_1.wav"), 220, 0.5)
	require.NoError(t, os.WriteFile(filepath.Join(dir, LabelsFile),
		[]byte("bismillah: [Bism, Allah, Rahman, Rahim]\n"), 0o644))

	loader, _ := newTestLoader(t, root, nil)

	templates, err := loader.Resolve(context.Background(), pronunciation.ModePhrase, "default", "bismillah")
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, []string{"Bism", "Allah", "Rahman", "Rahim"}, templates[0].SegmentLabels)
	assert.Equal(t, 4, templates[0].ExpectedSegments())
}

func TestResolveUsesCache(t *testing.T) {
	root := t.TempDir()
	writeTone(t, filepath.Join(root, "single", "default", "ba_1.wav"), 220, 0.5)

	cache := NewMemoryCache()
	loader, decoder := newTestLoader(t, root, cache)

	first, err := loader.Resolve(context.Background(), pronunciation.ModeSingleItem, "default", "ba")
	require.NoError(t, err)
	second, err := loader.Resolve(context.Background(), pronunciation.ModeSingleItem, "default", "ba")
	require.NoError(t, err)

	assert.Equal(t, int32(1), decoder.calls.Load())
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, first[0].Features, second[0].Features)
}

func TestWarm(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "single", "default")
	writeTone(t, filepath.Join(dir, "ba_1.wav"), 220, 0.5)
	writeTone(t, filepath.Join(dir, "ta_1.wav"), 440, 0.5)

	cache := NewMemoryCache()
	loader, _ := newTestLoader(t, root, cache)

	n, err := loader.Warm(context.Background(), pronunciation.ModeSingleItem, "default")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, cache.Len())
}

func TestBadgerCacheStoresTemplates(t *testing.T) {
	cache, err := NewBadgerCache(BadgerOptions{InMemory: true})
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	_, ok, err := cache.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	evaluator, err := pronunciation.NewEvaluator(nil, nil)
	require.NoError(t, err)

	samples := make([]float64, 8000)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*220*float64(i)/16000)
	}
	tmpl, err := evaluator.NewTemplate(pronunciation.TemplateInfo{ID: "ba_1", Label: "ba", Variant: "default"},
		pronunciation.AudioSignal{Samples: samples, SampleRate: 16000})
	require.NoError(t, err)

	require.NoError(t, cache.Put(ctx, "k", tmpl))
	got, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, tmpl.TemplateInfo, got.TemplateInfo)
	assert.Equal(t, tmpl.Signal, got.Signal)
	assert.Equal(t, tmpl.Features, got.Features)
	assert.Equal(t, tmpl.Segments, got.Segments)
	assert.Equal(t, tmpl.SegmentFeatures, got.SegmentFeatures)
}

func TestItemName(t *testing.T) {
	assert.Equal(t, "ba", itemName("ba_1.wav"))
	assert.Equal(t, "alif", itemName("alif.mp3"))
	assert.Equal(t, "long_vowel", itemName("long_vowel_2.wav"))
	assert.Equal(t, "al_fatiha", itemName("al_fatiha.wav"))
}

func TestMatchesItem(t *testing.T) {
	assert.True(t, matchesItem("ha.wav", "ha"))
	assert.True(t, matchesItem("ha_2.mp3", "ha"))
	assert.False(t, matchesItem("hamza_1.wav", "ha"))
	assert.False(t, matchesItem("h.wav", "ha"))
}
