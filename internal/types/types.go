package types

import "time"

// Worker status constants
const (
	StatusInitiate = "initiate"
	StatusProgress = "progress"
	StatusDone     = "done"
	StatusReady    = "ready"
	StatusUpdate   = "update"
	StatusComplete = "complete"
	StatusError    = "error"
)

// Input source constants
const (
	SourceUpload = "upload"
	SourceGDrive = "gdrive"
	SourceJSON   = "json"
)

// ProgressEntry tracks one resource the worker is downloading while it loads a model
type ProgressEntry struct {
	ResourceID string  `json:"resource_id"`
	Loaded     float64 `json:"loaded"`
	Total      float64 `json:"total"`
	Progress   float64 `json:"progress"`
	Name       string  `json:"name"`
	Status     string  `json:"status"`
}

// Chunk is a timestamped piece of the transcript. Timestamp[1] is nil while
// the worker has not closed the range.
type Chunk struct {
	Text      string      `json:"text"`
	Timestamp [2]*float64 `json:"timestamp"`
}

// TranscriptionResult is the outcome of one completed session
type TranscriptionResult struct {
	ID              string    `json:"id"`
	Session         uint64    `json:"session"`
	Text            string    `json:"text"`
	Chunks          []Chunk   `json:"chunks"`
	TokensPerSecond float64   `json:"tps"`
	ModelLoadMs     *float64  `json:"model_load_ms,omitempty"`
	TranscriptionMs *float64  `json:"transcription_ms,omitempty"`
	InputName       string    `json:"input_name,omitempty"`
	InputHash       string    `json:"input_hash,omitempty"`
	CompletedAt     time.Time `json:"completed_at"`
}

// Settings are the caller-selected parameters sent with every request
type Settings struct {
	Model        string `json:"model" yaml:"model"`
	Multilingual bool   `json:"multilingual" yaml:"multilingual"`
	Subtask      string `json:"subtask" yaml:"subtask"`
	Language     string `json:"language" yaml:"language"`
}

// Snapshot is the externally visible session state
type Snapshot struct {
	Session        uint64               `json:"session"`
	IsBusy         bool                 `json:"is_busy"`
	IsModelLoading bool                 `json:"is_model_loading"`
	ProgressItems  []ProgressEntry      `json:"progress_items"`
	Result         *TranscriptionResult `json:"result,omitempty"`
	Settings       Settings             `json:"settings"`
	LastError      string               `json:"last_error,omitempty"`
}
