package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/whisper-session/internal/completion"
	"github.com/codebuildervaibhav/whisper-session/internal/transcription"
	"github.com/codebuildervaibhav/whisper-session/internal/types"
	"github.com/codebuildervaibhav/whisper-session/internal/worker"
)

// SessionHandler exposes the transcription session over HTTP
type SessionHandler struct {
	session Session
	slot    *InputSlot
	sink    *completion.Client
}

// NewSessionHandler creates a new session handler. sink may be nil when the
// completion sink is disabled.
func NewSessionHandler(session Session, slot *InputSlot, sink *completion.Client) *SessionHandler {
	return &SessionHandler{
		session: session,
		slot:    slot,
		sink:    sink,
	}
}

// Transcribe starts a session with the loaded input
func (h *SessionHandler) Transcribe(c *fiber.Ctx) error {
	audio := h.slot.Get()
	if audio == nil {
		return c.Status(202).JSON(fiber.Map{
			"started": false,
			"message": "No input loaded",
		})
	}

	err := h.session.Start(c.UserContext(), audio)
	switch {
	case err == nil:
	case errors.Is(err, transcription.ErrUnsupportedChannels), errors.Is(err, transcription.ErrEmptyAudio):
		return c.Status(422).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_INVALID_AUDIO",
		})
	case errors.Is(err, worker.ErrQueueFull):
		return c.Status(429).JSON(fiber.Map{
			"error": "Worker is busy, try again",
			"code":  "ERR_WORKER_BUSY",
		})
	default:
		log.Printf("Failed to start session: %v", err)
		return c.Status(503).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_SESSION_UNAVAILABLE",
		})
	}

	snap := h.session.Snapshot()
	return c.Status(202).JSON(fiber.Map{
		"started": true,
		"session": snap.Session,
	})
}

// Clear drops the current result
func (h *SessionHandler) Clear(c *fiber.Ctx) error {
	if err := h.session.ClearInput(c.UserContext()); err != nil {
		return c.Status(503).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_SESSION_UNAVAILABLE",
		})
	}
	return c.JSON(h.session.Snapshot())
}

// Get returns the latest snapshot and the loaded input
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"snapshot": h.session.Snapshot(),
		"input":    h.slot.Info(),
	})
}

// PutSettings replaces the model and language settings for later sessions
func (h *SessionHandler) PutSettings(c *fiber.Ctx) error {
	var s types.Settings
	if err := c.BodyParser(&s); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
			"code":  "ERR_INVALID_BODY",
		})
	}

	if err := h.session.UpdateSettings(c.UserContext(), s); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_INVALID_SETTINGS",
		})
	}
	return c.JSON(h.session.Snapshot().Settings)
}

// Completion returns the last completion sink reply
func (h *SessionHandler) Completion(c *fiber.Ctx) error {
	if h.sink == nil {
		return c.Status(404).JSON(fiber.Map{
			"error": "Completion sink disabled",
			"code":  "ERR_COMPLETION_DISABLED",
		})
	}

	reply, ok := h.sink.Last()
	if !ok {
		return c.Status(204).Send(nil)
	}
	return c.JSON(reply)
}
