package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/codebuildervaibhav/whisper-session/internal/types"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// LocalStorage saves completed results to the local filesystem
type LocalStorage struct {
	outputDir string
}

// NewLocalStorage creates a new local storage handler
func NewLocalStorage(outputDir string) *LocalStorage {
	return &LocalStorage{
		outputDir: outputDir,
	}
}

// SaveResult writes the transcript text and a metadata JSON next to it, in a
// dated directory, and returns the text file path
func (ls *LocalStorage) SaveResult(result *types.TranscriptionResult) (string, error) {
	at := result.CompletedAt
	dateDir := filepath.Join(ls.outputDir,
		fmt.Sprintf("%d", at.Year()),
		fmt.Sprintf("%02d", at.Month()),
		fmt.Sprintf("%02d", at.Day()))

	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create date directory: %v", err)
	}

	// 20250123_143022_session-3_podcast.wav.txt
	baseFilename := baseName(result)
	txtPath := filepath.Join(dateDir, baseFilename+".txt")
	metaPath := filepath.Join(dateDir, baseFilename+"_meta.json")

	if err := os.WriteFile(txtPath, []byte(result.Text), 0644); err != nil {
		return "", fmt.Errorf("failed to save transcript: %v", err)
	}

	metaJSON, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %v", err)
	}

	if err := os.WriteFile(metaPath, metaJSON, 0644); err != nil {
		return "", fmt.Errorf("failed to save metadata: %v", err)
	}

	return txtPath, nil
}

func baseName(result *types.TranscriptionResult) string {
	name := fmt.Sprintf("%s_session-%d", result.CompletedAt.Format("20060102_150405"), result.Session)
	if input := sanitizeFilename(result.InputName); input != "" {
		name += "_" + input
	}
	return name
}

// sanitizeFilename keeps a short, path-free version of name
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	name = unsafeName.ReplaceAllString(name, "_")
	if len(name) > 100 {
		name = name[:100]
	}
	return name
}
