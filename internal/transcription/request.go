package transcription

import (
	"encoding/hex"
	"fmt"
	"io"

	"lukechampine.com/blake3"

	"github.com/codebuildervaibhav/whisper-session/internal/types"
	"github.com/codebuildervaibhav/whisper-session/internal/worker"
)

// LanguageAuto lets the worker detect the spoken language
const LanguageAuto = "auto"

// RequestParams returns the subtask and language sent to the worker. Both
// are nil unless the model is multilingual, and language is nil for auto
// detection, so the worker falls back to its own defaults.
func RequestParams(s types.Settings) (subtask, language *string) {
	if !s.Multilingual {
		return nil, nil
	}

	st := s.Subtask
	subtask = &st
	if s.Language != LanguageAuto {
		lang := s.Language
		language = &lang
	}
	return subtask, language
}

// NewRequest builds the worker request for already downmixed audio
func NewRequest(session uint64, mono []float32, s types.Settings) worker.Request {
	subtask, language := RequestParams(s)
	return worker.Request{
		Session:      session,
		Audio:        mono,
		Model:        s.Model,
		Multilingual: s.Multilingual,
		Subtask:      subtask,
		Language:     language,
	}
}

// BuildRequest downmixes the audio and builds the worker request
func BuildRequest(session uint64, audio *AudioBuffer, s types.Settings) (worker.Request, error) {
	mono, err := Downmix(audio)
	if err != nil {
		return worker.Request{}, err
	}
	return NewRequest(session, mono, s), nil
}

// Fingerprint returns the hex blake3 hash of an input file
func Fingerprint(r io.Reader) (string, error) {
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash input: %v", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
