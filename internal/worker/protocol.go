package worker

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codebuildervaibhav/whisper-session/internal/types"
)

// Request is the message posted to the worker for one transcription session.
// Nil Subtask or Language tells the worker to use its own defaults.
type Request struct {
	Session      uint64    `json:"session"`
	Audio        []float32 `json:"audio"`
	Model        string    `json:"model"`
	Multilingual bool      `json:"multilingual"`
	Subtask      *string   `json:"subtask"`
	Language     *string   `json:"language"`
}

// Event is one status message received from the worker
type Event struct {
	Status   string          `json:"status"`
	Session  uint64          `json:"session,omitempty"`
	File     string          `json:"file,omitempty"`
	Name     string          `json:"name,omitempty"`
	Loaded   *float64        `json:"loaded,omitempty"`
	Total    *float64        `json:"total,omitempty"`
	Progress *float64        `json:"progress,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// CompleteData is the payload of a "complete" event
type CompleteData struct {
	Text   string        `json:"text"`
	Chunks []types.Chunk `json:"chunks"`
	TPS    float64       `json:"tps"`
}

// ErrorData is the payload of an "error" event
type ErrorData struct {
	Message string `json:"message"`
}

// Complete decodes the payload of a "complete" event
func (e Event) Complete() (CompleteData, error) {
	var data CompleteData
	if len(e.Data) == 0 {
		return data, fmt.Errorf("complete event has no data")
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return data, fmt.Errorf("failed to decode complete data: %v", err)
	}
	return data, nil
}

// ErrorMessage extracts a human-readable message from an "error" event.
// Workers that send a bare string instead of {message} are tolerated.
func (e Event) ErrorMessage() string {
	if len(e.Data) == 0 {
		return "unknown worker error"
	}

	var data ErrorData
	if err := json.Unmarshal(e.Data, &data); err == nil && data.Message != "" {
		return data.Message
	}

	var s string
	if err := json.Unmarshal(e.Data, &s); err == nil && s != "" {
		return s
	}

	return strings.TrimSpace(string(e.Data))
}

// DecodeEvent parses one wire message
func DecodeEvent(line []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return ev, fmt.Errorf("malformed worker message: %v", err)
	}
	if ev.Status == "" {
		return ev, fmt.Errorf("worker message has no status")
	}
	return ev, nil
}
