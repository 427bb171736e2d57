package handlers

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/codebuildervaibhav/whisper-session/internal/types"
)

var (
	driveFilePath   = regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)
	driveIDParam    = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
	driveBareID     = regexp.MustCompile(`^([a-zA-Z0-9_-]{25,40})$`)
	errNotShared    = errors.New("file not accessible")
	errTooLarge     = errors.New("file too large")
	downloadTimeout = 5 * time.Minute
)

// GDriveRequest represents the request body
type GDriveRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// GDrive loads a publicly shared Google Drive file as the input
func (h *InputHandler) GDrive(c *fiber.Ctx) error {
	var req GDriveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
			"code":  "ERR_INVALID_BODY",
		})
	}

	if req.URL == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "URL is required",
			"code":  "ERR_NO_URL",
		})
	}

	fileID := extractGDriveFileID(req.URL)
	if fileID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid Google Drive URL",
			"code":  "ERR_INVALID_URL",
		})
	}

	if req.Name == "" {
		req.Name = "gdrive_" + fileID
	}

	log.Printf("Downloading from Google Drive: %s", fileID)

	tempPath := filepath.Join(h.tempDir, fmt.Sprintf("gdrive_%s", uuid.New().String()))
	err := h.download(h.downloadURL(fileID), tempPath)
	switch {
	case errors.Is(err, errNotShared):
		return c.Status(400).JSON(fiber.Map{
			"error": "File not accessible (may be private or doesn't exist)",
			"code":  "ERR_FILE_NOT_ACCESSIBLE",
		})
	case errors.Is(err, errTooLarge):
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("File too large (max %dMB)", h.maxSizeMB),
			"code":  "ERR_FILE_TOO_LARGE",
		})
	case err != nil:
		log.Printf("Failed to download from Google Drive: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to download file from Google Drive",
			"code":  "ERR_DOWNLOAD_FAILED",
		})
	}
	defer removeTemp(tempPath)

	return h.loadFile(c, tempPath, req.Name, types.SourceGDrive)
}

// download fetches url into path, following Drive's redirects
func (h *InputHandler) download(url, path string) error {
	limit := h.maxSizeMB * 1024 * 1024

	agent := fiber.Get(url)
	agent.MaxRedirectsCount(5)
	agent.Timeout(downloadTimeout)
	if agent.HostClient != nil {
		// refuse oversized files while reading instead of after buffering
		agent.MaxResponseBodySize = limit
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		err := errors.Join(errs...)
		if errors.Is(err, fasthttp.ErrBodyTooLarge) {
			return errTooLarge
		}
		return err
	}
	if code != 200 {
		return fmt.Errorf("%w: http %d", errNotShared, code)
	}
	if len(body) > limit {
		return errTooLarge
	}

	if err := os.WriteFile(path, body, 0644); err != nil {
		return fmt.Errorf("failed to save downloaded file: %v", err)
	}
	return nil
}

func driveDownloadURL(fileID string) string {
	return fmt.Sprintf("https://drive.google.com/uc?export=download&id=%s", fileID)
}

// extractGDriveFileID extracts the file ID from various Google Drive URL formats
func extractGDriveFileID(url string) string {
	// https://drive.google.com/file/d/{ID}/view
	if matches := driveFilePath.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1]
	}

	// https://drive.google.com/open?id={ID}
	if matches := driveIDParam.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1]
	}

	// Bare ID (25-40 characters)
	if matches := driveBareID.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1]
	}

	return ""
}
