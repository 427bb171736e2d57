package queue

import (
	"time"

	"github.com/codebuildervaibhav/whisper-session/internal/types"
)

// Job status values
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Job represents one completed result moving through the archive pipeline
type Job struct {
	ID        string
	Status    string
	Error     error
	Result    *types.TranscriptionResult
	LocalPath string
	GDriveURL string
	CreatedAt time.Time
}

// NewJob creates a new job for result
func NewJob(result types.TranscriptionResult) *Job {
	return &Job{
		ID:        result.ID,
		Status:    StatusQueued,
		Result:    &result,
		CreatedAt: time.Now(),
	}
}
