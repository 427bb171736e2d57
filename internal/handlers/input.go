package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/whisper-session/internal/transcription"
	"github.com/codebuildervaibhav/whisper-session/internal/types"
)

// Session is the part of the session coordinator the HTTP layer drives
type Session interface {
	Start(ctx context.Context, audio *transcription.AudioBuffer) error
	ClearInput(ctx context.Context) error
	UpdateSettings(ctx context.Context, s types.Settings) error
	Snapshot() types.Snapshot
	Subscribe() (<-chan types.Snapshot, func())
}

// InputSlot holds the audio that the next transcription will use
type InputSlot struct {
	mu     sync.RWMutex
	audio  *transcription.AudioBuffer
	source string
}

// Set replaces the current input
func (s *InputSlot) Set(audio *transcription.AudioBuffer, source string) {
	s.mu.Lock()
	s.audio = audio
	s.source = source
	s.mu.Unlock()
}

// Get returns the current input, or nil if nothing is loaded
func (s *InputSlot) Get() *transcription.AudioBuffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.audio
}

// Info describes the loaded input without its samples
func (s *InputSlot) Info() fiber.Map {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.audio == nil {
		return nil
	}
	return fiber.Map{
		"name":     s.audio.Name,
		"hash":     s.audio.Hash,
		"source":   s.source,
		"channels": len(s.audio.Channels),
		"samples":  s.audio.Len(),
		"seconds":  float64(s.audio.Len()) / float64(transcription.SampleRate),
	}
}

// DecodeFunc turns a stored upload into audio samples
type DecodeFunc func(path, tempDir string) (*transcription.AudioBuffer, error)

// DecodeFile converts path with ffmpeg and decodes the resulting WAV. The
// buffer is named after the file and carries the fingerprint of its bytes.
func DecodeFile(path, tempDir string) (*transcription.AudioBuffer, error) {
	wavPath, err := transcription.ConvertToWAV(path, tempDir)
	if err != nil {
		return nil, err
	}
	defer removeTemp(wavPath)

	audio, err := transcription.DecodeWAV(wavPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to reopen input: %v", err)
	}
	defer f.Close()

	hash, err := transcription.Fingerprint(f)
	if err != nil {
		return nil, err
	}
	audio.Hash = hash
	return audio, nil
}

// InputHandler loads audio into the input slot
type InputHandler struct {
	session   Session
	slot      *InputSlot
	tempDir   string
	maxSizeMB int
	decode    DecodeFunc

	// downloadURL builds the direct download link for a Drive file id
	downloadURL func(fileID string) string
}

// NewInputHandler creates a new input handler
func NewInputHandler(session Session, slot *InputSlot, tempDir string, maxSizeMB int) *InputHandler {
	return &InputHandler{
		session:     session,
		slot:        slot,
		tempDir:     tempDir,
		maxSizeMB:   maxSizeMB,
		decode:      DecodeFile,
		downloadURL: driveDownloadURL,
	}
}

// Upload handles multipart uploads in the "file" field
func (h *InputHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "No file uploaded",
			"code":  "ERR_NO_FILE",
		})
	}

	maxSize := int64(h.maxSizeMB) * 1024 * 1024
	if file.Size > maxSize {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("File too large (max %dMB)", h.maxSizeMB),
			"code":  "ERR_FILE_TOO_LARGE",
		})
	}

	if !transcription.ValidateAudioFormat(file.Filename) {
		return c.Status(400).JSON(fiber.Map{
			"error": "Unsupported audio format",
			"code":  "ERR_INVALID_FORMAT",
		})
	}

	tempPath := filepath.Join(h.tempDir, fmt.Sprintf("upload_%s%s", uuid.New().String(), filepath.Ext(file.Filename)))
	if err := c.SaveFile(file, tempPath); err != nil {
		log.Printf("Failed to save uploaded file: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to save file",
			"code":  "ERR_SAVE_FAILED",
		})
	}
	defer removeTemp(tempPath)

	return h.loadFile(c, tempPath, file.Filename, types.SourceUpload)
}

// SamplesRequest is raw 16 kHz audio, one slice per channel
type SamplesRequest struct {
	Name       string      `json:"name"`
	SampleRate int         `json:"sample_rate"`
	Channels   [][]float32 `json:"channels"`
}

// Samples loads already decoded audio sent as JSON
func (h *InputHandler) Samples(c *fiber.Ctx) error {
	var req SamplesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
			"code":  "ERR_INVALID_BODY",
		})
	}

	if req.SampleRate != 0 && req.SampleRate != transcription.SampleRate {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("Sample rate must be %d", transcription.SampleRate),
			"code":  "ERR_SAMPLE_RATE",
		})
	}

	audio := &transcription.AudioBuffer{
		SampleRate: transcription.SampleRate,
		Channels:   req.Channels,
		Name:       req.Name,
	}
	if _, err := transcription.Downmix(audio); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_INVALID_AUDIO",
		})
	}

	hash, err := transcription.Fingerprint(bytes.NewReader(c.Body()))
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to fingerprint input",
			"code":  "ERR_FINGERPRINT",
		})
	}
	audio.Hash = hash

	return h.setInput(c, audio, types.SourceJSON)
}

func (h *InputHandler) loadFile(c *fiber.Ctx, path, name, source string) error {
	audio, err := h.decode(path, h.tempDir)
	if err != nil {
		log.Printf("Failed to decode %s: %v", name, err)
		code := "ERR_DECODE_FAILED"
		if errors.Is(err, transcription.ErrUnsupportedChannels) || errors.Is(err, transcription.ErrEmptyAudio) {
			code = "ERR_INVALID_AUDIO"
		}
		return c.Status(422).JSON(fiber.Map{
			"error": "Failed to decode audio",
			"code":  code,
		})
	}
	audio.Name = name

	return h.setInput(c, audio, source)
}

func (h *InputHandler) setInput(c *fiber.Ctx, audio *transcription.AudioBuffer, source string) error {
	h.slot.Set(audio, source)
	if err := h.session.ClearInput(c.UserContext()); err != nil {
		return c.Status(503).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_SESSION_UNAVAILABLE",
		})
	}

	log.Printf("Input loaded: %s (%s, %d channels, %d samples)", audio.Name, source, len(audio.Channels), audio.Len())
	return c.JSON(fiber.Map{
		"message": "Input loaded",
		"input":   h.slot.Info(),
	})
}

func removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to cleanup temp file %s: %v", path, err)
	}
}
