package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"github.com/RyanBlaney/sonido-beat/logging"
)

var (
	// ErrUnsupportedFormat is returned for containers other than WAV and MP3
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrInvalidAudio is returned when a file cannot be decoded or holds no samples
	ErrInvalidAudio = errors.New("invalid audio data")
)

// Format is an audio container the decoder understands
type Format string

const (
	FormatWAV Format = "wav"
	FormatMP3 Format = "mp3"
)

// go-mp3 always produces interleaved 16-bit little-endian stereo
const (
	mp3Channels       = 2
	mp3BytesPerSample = 2
)

// AudioData is a decoded, mono waveform
type AudioData struct {
	PCM        []float64     `json:"-"` // samples in [-1, 1]
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"` // channel count of the source before mixdown
	BitDepth   int           `json:"bit_depth"`
	Duration   time.Duration `json:"duration"`
	Format     Format        `json:"format"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	// MaxDuration truncates decoded audio; zero means no limit
	MaxDuration time.Duration `json:"max_duration"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		MaxDuration: 0,
	}
}

// Decoder reads WAV and MP3 files into mono float samples
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

// ValidateConfig checks the decoder configuration
func (d *Decoder) ValidateConfig() error {
	if d.config.MaxDuration < 0 {
		return fmt.Errorf("max duration must be non-negative, got %s", d.config.MaxDuration)
	}
	return nil
}

// GetSupportedFormats returns the file extensions DecodeFile accepts
func (d *Decoder) GetSupportedFormats() []string {
	return []string{string(FormatWAV), string(FormatMP3)}
}

// FormatFromPath returns the container format implied by a file extension
func FormatFromPath(path string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch Format(ext) {
	case FormatWAV, FormatMP3:
		return Format(ext), nil
	default:
		return "", fmt.Errorf("%q: %w", ext, ErrUnsupportedFormat)
	}
}

// DecodeFile decodes an audio file and returns mono PCM data
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	logger := logging.WithContext(ctx).WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "DecodeFile",
		"filename":  filename,
	})

	format, err := FormatFromPath(filename)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}

	logger.Debug("Starting audio file decode", logging.Fields{
		"format": format,
		"bytes":  len(data),
	})

	audioData, err := d.DecodeBytes(ctx, data, format)
	if err != nil {
		logger.Error(err, "Failed to decode audio file")
		return nil, err
	}

	logger.Debug("Audio decoded", logging.Fields{
		"sample_rate": audioData.SampleRate,
		"channels":    audioData.Channels,
		"samples":     len(audioData.PCM),
		"duration":    audioData.Duration.String(),
	})

	return audioData, nil
}

// DecodeBytes decodes an in-memory WAV or MP3 stream
func (d *Decoder) DecodeBytes(ctx context.Context, data []byte, format Format) (*AudioData, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio data: %w", ErrInvalidAudio)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		audioData *AudioData
		err       error
	)
	switch format {
	case FormatWAV:
		audioData, err = d.decodeWAV(bytes.NewReader(data))
	case FormatMP3:
		audioData, err = d.decodeMP3(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%q: %w", format, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, err
	}

	if len(audioData.PCM) == 0 {
		return nil, fmt.Errorf("no samples decoded: %w", ErrInvalidAudio)
	}

	d.truncate(audioData)
	audioData.Duration = time.Duration(float64(len(audioData.PCM)) / float64(audioData.SampleRate) * float64(time.Second))

	return audioData, nil
}

func (d *Decoder) decodeWAV(r io.ReadSeeker) (*AudioData, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file: %w", ErrInvalidAudio)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("could not read PCM buffer: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("missing WAV format: %w", ErrInvalidAudio)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(decoder.BitDepth)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, fmt.Errorf("bit depth %d: %w", bitDepth, ErrInvalidAudio)
	}

	return &AudioData{
		PCM:        mixDown(buf, bitDepth),
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		BitDepth:   bitDepth,
		Format:     FormatWAV,
	}, nil
}

func (d *Decoder) decodeMP3(r io.Reader) (*AudioData, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("invalid MP3 stream: %w: %w", ErrInvalidAudio, err)
	}

	raw, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("could not read MP3 frames: %w", err)
	}

	ints := make([]int, len(raw)/mp3BytesPerSample)
	for i := range ints {
		ints[i] = int(int16(binary.LittleEndian.Uint16(raw[i*mp3BytesPerSample:])))
	}

	buf := &audio.IntBuffer{
		Data:           ints,
		Format:         &audio.Format{NumChannels: mp3Channels, SampleRate: decoder.SampleRate()},
		SourceBitDepth: 16,
	}

	return &AudioData{
		PCM:        mixDown(buf, buf.SourceBitDepth),
		SampleRate: decoder.SampleRate(),
		Channels:   mp3Channels,
		BitDepth:   buf.SourceBitDepth,
		Format:     FormatMP3,
	}, nil
}

// mixDown averages interleaved channels into one and scales integer
// samples by the bit depth into [-1, 1]. 8-bit WAV samples are unsigned
// and centred on 128.
func mixDown(buf *audio.IntBuffer, bitDepth int) []float64 {
	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels
	scale := float64(int64(1) << (bitDepth - 1))
	offset := 0.0
	if bitDepth == 8 {
		offset = scale
	}

	mono := make([]float64, frames)
	for i := range mono {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c]) - offset
		}
		mono[i] = sum / float64(channels) / scale
	}

	return mono
}

func (d *Decoder) truncate(audioData *AudioData) {
	if d.config.MaxDuration <= 0 {
		return
	}
	limit := int(d.config.MaxDuration.Seconds() * float64(audioData.SampleRate))
	if limit < len(audioData.PCM) {
		audioData.PCM = audioData.PCM[:limit]
	}
}
