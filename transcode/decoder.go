package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-pronounce/logging"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrUnsupportedFormat is returned for files whose extension no decoder handles
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// AudioData is a decoded mono recording
type AudioData struct {
	PCM        []float64      `json:"-"`
	SampleRate int            `json:"sample_rate"`
	Channels   int            `json:"channels"` // Channel count of the source before downmixing
	Duration   time.Duration  `json:"duration"`
	Source     string         `json:"source,omitempty"`
	Metadata   *AudioMetadata `json:"metadata,omitempty"`
}

// AudioMetadata holds audio properties detected by ffprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	// TargetSampleRate resamples ffmpeg output; 0 keeps the native rate.
	// WAV files are always returned at their native rate.
	TargetSampleRate int           `json:"target_sample_rate" yaml:"target_sample_rate" mapstructure:"target_sample_rate"`
	FFmpegPath       string        `json:"ffmpeg_path" yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	FFprobePath      string        `json:"ffprobe_path" yaml:"ffprobe_path" mapstructure:"ffprobe_path"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"` // Timeout for ffmpeg operations
	MaxDuration      time.Duration `json:"max_duration" yaml:"max_duration" mapstructure:"max_duration"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 0,
		FFmpegPath:       "ffmpeg",  // Assume in PATH
		FFprobePath:      "ffprobe", // Assume in PATH
		Timeout:          30 * time.Second,
		MaxDuration:      0, // No limit
	}
}

// Decoder turns recordings into mono float64 PCM. WAV is decoded in-process;
// every other container goes through ffmpeg.
type Decoder struct {
	config *DecoderConfig
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{config: config}
}

// SupportedExtensions lists the file extensions DecodeFile accepts
func (d *Decoder) SupportedExtensions() []string {
	return []string{".wav", ".mp3", ".m4a", ".ogg", ".opus", ".flac", ".webm", ".aac"}
}

// IsSupported reports whether path has a decodable extension
func (d *Decoder) IsSupported(path string) bool {
	return slices.Contains(d.SupportedExtensions(), strings.ToLower(filepath.Ext(path)))
}

// DecodeFile decodes an audio file into mono PCM
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "DecodeFile",
		"filename":  filename,
	})

	if !d.IsSupported(filename) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}

	if strings.EqualFold(filepath.Ext(filename), ".wav") {
		f, err := os.Open(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", filename, err)
		}
		defer f.Close()

		data, err := decodeWAV(f)
		if err != nil {
			logger.Error(err, "Failed to decode WAV file")
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		data.Source = filename
		return data, nil
	}

	logger.Debug("Decoding with ffmpeg")

	metadata, err := d.probe(ctx, []string{filename}, nil)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, err
	}

	data, err := d.runFFmpeg(ctx, append([]string{"-i", filename}, d.outputArgs(metadata)...), nil, metadata)
	if err != nil {
		return nil, err
	}
	data.Source = filename
	return data, nil
}

// DecodeBytes decodes an in-memory recording, detecting WAV by its RIFF header
func (d *Decoder) DecodeBytes(ctx context.Context, data []byte) (*AudioData, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio data")
	}

	if isWAV(data) {
		return decodeWAV(bytes.NewReader(data))
	}

	metadata, err := d.probe(ctx, []string{"-i", "pipe:0"}, data)
	if err != nil {
		return nil, err
	}
	return d.runFFmpeg(ctx, append([]string{"-i", "pipe:0"}, d.outputArgs(metadata)...), data, metadata)
}

// DecodeReader decodes audio from an io.Reader
func (d *Decoder) DecodeReader(ctx context.Context, reader io.Reader) (*AudioData, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	return d.DecodeBytes(ctx, data)
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// decodeWAV reads integer PCM and downmixes it to mono in [-1, 1]
func decodeWAV(r io.ReadSeeker) (*AudioData, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV samples: %w", err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 || buf.Format.NumChannels <= 0 {
		return nil, fmt.Errorf("WAV file has no usable format")
	}

	bitDepth := int(buf.SourceBitDepth)
	if bitDepth <= 0 {
		bitDepth = int(decoder.BitDepth)
	}

	pcm := downmix(buf, bitDepth)
	return &AudioData{
		PCM:        pcm,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		Duration:   samplesDuration(len(pcm), buf.Format.SampleRate),
	}, nil
}

// downmix averages interleaved channels and scales by the integer full range
func downmix(buf *audio.IntBuffer, bitDepth int) []float64 {
	channels := buf.Format.NumChannels
	scale := 1.0
	if bitDepth > 1 {
		scale = math.Pow(2, float64(bitDepth-1))
	}

	frames := len(buf.Data) / channels
	pcm := make([]float64, frames)
	for i := range frames {
		sum := 0
		for c := range channels {
			sum += buf.Data[i*channels+c]
		}
		pcm[i] = float64(sum) / float64(channels) / scale
	}
	return pcm
}

func samplesDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}

// outputArgs builds the ffmpeg output options for mono float64 PCM on stdout
func (d *Decoder) outputArgs(metadata *AudioMetadata) []string {
	sampleRate := metadata.SampleRate
	if d.config.TargetSampleRate > 0 {
		sampleRate = d.config.TargetSampleRate
	}

	args := []string{
		"-vn",
		"-f", "f64le", // Raw float64 little-endian
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
	}
	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.2f", d.config.MaxDuration.Seconds()))
	}

	return append(args, "-v", "error", "pipe:1")
}

func (d *Decoder) runFFmpeg(ctx context.Context, args []string, stdin []byte, metadata *AudioMetadata) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "runFFmpeg",
	})

	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	startTime := time.Now()
	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			logger.Error(err, "FFmpeg decode failed", logging.Fields{
				"stderr": string(exitError.Stderr),
			})
			return nil, fmt.Errorf("ffmpeg decode failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio samples decoded")
	}

	sampleRate := metadata.SampleRate
	if d.config.TargetSampleRate > 0 {
		sampleRate = d.config.TargetSampleRate
	}

	logger.Debug("FFmpeg decode completed", logging.Fields{
		"samples":     len(samples),
		"decode_time": time.Since(startTime).Seconds(),
	})

	return &AudioData{
		PCM:        samples,
		SampleRate: sampleRate,
		Channels:   metadata.Channels,
		Duration:   samplesDuration(len(samples), sampleRate),
		Metadata:   metadata,
	}, nil
}

// probe runs ffprobe on the given input and returns the first audio stream
func (d *Decoder) probe(ctx context.Context, input []string, stdin []byte) (*AudioMetadata, error) {
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0", // First audio stream only
	}
	args = append(args, input...)

	cmd := exec.CommandContext(ctx, d.config.FFprobePath, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseFFprobeOutput(output)
}

// parseFFprobeOutput extracts the first audio stream from ffprobe JSON
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no audio streams found")
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("stream is not audio type: %s", stream.CodecType)
	}

	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %q", stream.SampleRate)
	}
	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	duration, _ := strconv.ParseFloat(stream.Duration, 64)
	bitrate, _ := strconv.Atoi(stream.BitRate)

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

// bytesToFloat64 converts raw little-endian float64 bytes, dropping a
// trailing partial sample
func bytesToFloat64(data []byte) []float64 {
	sampleCount := len(data) / 8
	if sampleCount == 0 {
		return nil
	}

	samples := make([]float64, sampleCount)
	for i := range sampleCount {
		samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8 : i*8+8]))
	}
	return samples
}

// ValidateConfig checks that the configured ffmpeg tools can be found
func (d *Decoder) ValidateConfig() error {
	if d.config.TargetSampleRate < 0 {
		return fmt.Errorf("target sample rate cannot be negative")
	}
	if _, err := exec.LookPath(d.config.FFmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found at %s: %w", d.config.FFmpegPath, err)
	}
	if _, err := exec.LookPath(d.config.FFprobePath); err != nil {
		return fmt.Errorf("ffprobe not found at %s: %w", d.config.FFprobePath, err)
	}
	return nil
}
