package transcription

import (
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// SampleRate is the rate the worker expects its audio at
const SampleRate = 16000

var (
	// ErrUnsupportedChannels is returned for buffers that are not mono or stereo
	ErrUnsupportedChannels = errors.New("only mono and stereo audio are supported")
	// ErrEmptyAudio is returned for buffers without samples
	ErrEmptyAudio = errors.New("audio buffer has no samples")
)

// AudioBuffer is decoded PCM audio, one float32 slice per channel
type AudioBuffer struct {
	SampleRate int
	Channels   [][]float32
	Name       string
	Hash       string
}

// Len returns the number of frames
func (a *AudioBuffer) Len() int {
	if a == nil || len(a.Channels) == 0 {
		return 0
	}
	return len(a.Channels[0])
}

// Downmix produces the single-channel signal sent to the worker. Stereo is
// averaged and scaled by √2, mono is returned as is.
func Downmix(audio *AudioBuffer) ([]float32, error) {
	if audio == nil || audio.Len() == 0 {
		return nil, ErrEmptyAudio
	}

	switch len(audio.Channels) {
	case 1:
		return audio.Channels[0], nil
	case 2:
		left, right := audio.Channels[0], audio.Channels[1]
		n := len(left)
		if len(right) < n {
			n = len(right)
		}

		scale := float32(math.Sqrt2)
		mono := make([]float32, n)
		for i := 0; i < n; i++ {
			mono[i] = scale * (left[i] + right[i]) / 2
		}
		return mono, nil
	default:
		return nil, fmt.Errorf("%w: got %d channels", ErrUnsupportedChannels, len(audio.Channels))
	}
}

// ConvertToWAV converts any audio file to 16kHz 16-bit PCM WAV, keeping the
// channel count so stereo is downmixed by Downmix rather than ffmpeg
func ConvertToWAV(inputPath, tempDir string) (string, error) {
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create temp directory: %v", err)
	}
	outputPath := filepath.Join(tempDir, fmt.Sprintf("converted_%s.wav", uuid.New().String()))

	cmd := exec.Command("ffmpeg",
		"-i", inputPath,
		"-ar", fmt.Sprintf("%d", SampleRate),
		"-c:a", "pcm_s16le",
		"-y",
		outputPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg failed: %v\nOutput: %s", err, string(output))
	}

	return outputPath, nil
}

// DecodeWAV reads a PCM WAV file into an AudioBuffer with samples in [-1, 1]
func DecodeWAV(path string) (*AudioBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav file: %s", filepath.Base(path))
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode wav: %v", err)
	}

	numChannels := buf.Format.NumChannels
	if numChannels < 1 || numChannels > 2 {
		return nil, fmt.Errorf("%w: got %d channels", ErrUnsupportedChannels, numChannels)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	scale := float32(int64(1) << uint(bitDepth-1))

	frames := len(buf.Data) / numChannels
	channels := make([][]float32, numChannels)
	for c := range channels {
		channels[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < numChannels; c++ {
			channels[c][i] = float32(buf.Data[i*numChannels+c]) / scale
		}
	}

	if frames == 0 {
		return nil, ErrEmptyAudio
	}

	return &AudioBuffer{
		SampleRate: buf.Format.SampleRate,
		Channels:   channels,
	}, nil
}

// ValidateAudioFormat checks if the file format is supported
func ValidateAudioFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	supportedFormats := []string{".mp3", ".wav", ".m4a", ".ogg", ".flac", ".webm", ".aac", ".wma"}

	for _, format := range supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}
