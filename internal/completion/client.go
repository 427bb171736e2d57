package completion

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/whisper-session/internal/types"
)

// Message is one chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the chat-completion request body
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type response struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Reply is the sink response for the newest result
type Reply struct {
	ResultID          string    `json:"result_id"`
	ResultCompletedAt time.Time `json:"result_completed_at"`
	Text              string    `json:"text"`
	ExecutionMs       float64   `json:"execution_ms"`
	ReceivedAt        time.Time `json:"received_at"`
}

// Config configures a Client
type Config struct {
	URL         string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Client forwards finished transcripts to a chat-completion API. Failures
// are logged and never retried.
type Client struct {
	cfg Config

	mu   sync.RWMutex
	last *Reply
}

// NewClient creates a completion sink
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{cfg: cfg}
}

// Complete sends text as a single user message and returns the first
// choice's content
func (c *Client) Complete(text string) (string, error) {
	body := Request{
		Model:       c.cfg.Model,
		Messages:    []Message{{Role: "user", Content: text}},
		Temperature: c.cfg.Temperature,
	}

	agent := fiber.Post(c.cfg.URL)
	agent.Set(fiber.HeaderAuthorization, "Bearer "+c.cfg.APIKey)
	agent.JSON(body)
	agent.Timeout(c.cfg.Timeout)

	code, respBody, errs := agent.Bytes()
	if len(errs) > 0 {
		return "", fmt.Errorf("completion request failed: %w", errors.Join(errs...))
	}
	if code < 200 || code >= 300 {
		return "", fmt.Errorf("completion http %d: %s", code, strings.TrimSpace(string(respBody)))
	}

	var parsed response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %v", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

// Handle runs the sink for a completed result. Empty transcripts are
// skipped and failures leave the last reply untouched. Handle may run
// concurrently; a reply for a result older than the stored one is dropped.
func (c *Client) Handle(result types.TranscriptionResult) {
	if strings.TrimSpace(result.Text) == "" {
		return
	}

	start := time.Now()
	content, err := c.Complete(result.Text)
	if err != nil {
		log.Printf("Completion for result %s failed: %v", result.ID, err)
		return
	}
	elapsed := time.Since(start)

	c.mu.Lock()
	if c.last != nil && result.CompletedAt.Before(c.last.ResultCompletedAt) {
		c.mu.Unlock()
		log.Printf("Completion for result %s superseded by %s, dropped", result.ID, c.last.ResultID)
		return
	}
	c.last = &Reply{
		ResultID:          result.ID,
		ResultCompletedAt: result.CompletedAt,
		Text:              content,
		ExecutionMs:       float64(elapsed) / float64(time.Millisecond),
		ReceivedAt:        time.Now(),
	}
	c.mu.Unlock()

	log.Printf("Completion for result %s received in %s", result.ID, elapsed.Round(time.Millisecond))
}

// Last returns the most recent successful reply
func (c *Client) Last() (Reply, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return Reply{}, false
	}
	return *c.last, true
}
