package transcode

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWAV(t *testing.T, path string, sampleRate, channels int, data []int) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

func TestDecodeWAVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alif.wav")
	data := make([]int, 1600)
	for i := range data {
		data[i] = int(16384 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	writeWAV(t, path, 16000, 1, data)

	d := NewDecoder(nil)
	out, err := d.DecodeFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 16000, out.SampleRate)
	assert.Equal(t, 1, out.Channels)
	assert.Len(t, out.PCM, 1600)
	assert.Equal(t, 100*time.Millisecond, out.Duration)
	assert.Equal(t, path, out.Source)
	for i, v := range out.PCM {
		assert.InDelta(t, float64(data[i])/32768, v, 1e-12)
	}
}

func TestDecodeWAVDownmixesStereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	writeWAV(t, path, 8000, 2, []int{16384, 0, -16384, -16384, 8192, 8192})

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	out, err := NewDecoder(nil).DecodeBytes(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, 8000, out.SampleRate)
	assert.Equal(t, 2, out.Channels)
	assert.Equal(t, []float64{0.25, -0.5, 0.25}, out.PCM)
}

func TestDecodeFileRejectsUnknownExtension(t *testing.T) {
	_, err := NewDecoder(nil).DecodeFile(context.Background(), "notes.txt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodeBytesRejectsEmpty(t *testing.T) {
	_, err := NewDecoder(nil).DecodeBytes(context.Background(), nil)
	assert.Error(t, err)
}

func TestIsSupported(t *testing.T) {
	d := NewDecoder(nil)
	assert.True(t, d.IsSupported("a/b/ba.WAV"))
	assert.True(t, d.IsSupported("ba.mp3"))
	assert.False(t, d.IsSupported("ba.txt"))
}

func TestParseFFprobeOutput(t *testing.T) {
	meta, err := parseFFprobeOutput([]byte(`{"streams":[{"codec_type":"audio","codec_name":"mp3",
		"sample_rate":"44100","channels":2,"duration":"1.500","bit_rate":"128000"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 44100, meta.SampleRate)
	assert.Equal(t, 2, meta.Channels)
	assert.Equal(t, "mp3", meta.Codec)
	assert.Equal(t, 1.5, meta.Duration)

	_, err = parseFFprobeOutput([]byte(`{"streams":[]}`))
	assert.Error(t, err)
	_, err = parseFFprobeOutput([]byte(`{"streams":[{"codec_type":"video"}]}`))
	assert.Error(t, err)
}

func TestBytesToFloat64(t *testing.T) {
	raw := make([]byte, 8*2+3)
	binary.LittleEndian.PutUint64(raw[0:], math.Float64bits(0.5))
	binary.LittleEndian.PutUint64(raw[8:], math.Float64bits(-1))

	assert.Equal(t, []float64{0.5, -1}, bytesToFloat64(raw))
	assert.Nil(t, bytesToFloat64([]byte{1, 2}))
}
