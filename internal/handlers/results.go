package handlers

import (
	"database/sql"
	"errors"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/whisper-session/internal/storage"
)

// ResultsHandler serves the archived result history
type ResultsHandler struct {
	db *storage.MetadataDB
}

// NewResultsHandler creates a new results handler
func NewResultsHandler(db *storage.MetadataDB) *ResultsHandler {
	return &ResultsHandler{db: db}
}

// List returns recent results, optionally only those for one input hash
func (h *ResultsHandler) List(c *fiber.Ctx) error {
	var (
		records []storage.ResultRecord
		err     error
	)
	if hash := c.Query("input_hash"); hash != "" {
		records, err = h.db.FindByInputHash(hash)
	} else {
		limit := c.QueryInt("limit", 50)
		if limit < 1 || limit > 500 {
			limit = 50
		}
		records, err = h.db.ListResults(limit)
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_DB",
		})
	}
	return c.JSON(fiber.Map{"results": records})
}

// Text returns the saved transcript text of one result
func (h *ResultsHandler) Text(c *fiber.Ctx) error {
	rec, err := h.db.GetResult(c.Params("id"))
	if errors.Is(err, sql.ErrNoRows) {
		return c.Status(404).JSON(fiber.Map{
			"error": "Result not found",
			"code":  "ERR_NOT_FOUND",
		})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_DB",
		})
	}

	text, err := os.ReadFile(rec.LocalPath)
	if err != nil {
		return c.Status(410).JSON(fiber.Map{
			"error": "Transcript file no longer available",
			"code":  "ERR_FILE_GONE",
		})
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Send(text)
}
