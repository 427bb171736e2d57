package session

import "time"

// Phase identifies one of the timed stages of a session
type Phase int

const (
	PhaseModelLoad Phase = iota
	PhaseTranscription
)

func (p Phase) String() string {
	switch p {
	case PhaseModelLoad:
		return "model_load"
	case PhaseTranscription:
		return "transcription"
	default:
		return "unknown"
	}
}

type slot struct {
	start, end time.Time
}

// Tracker records start and end instants per phase. Every mark is first
// write wins.
type Tracker struct {
	slots [2]slot
}

// MarkStart stamps the phase start. It is a no-op when already marked.
func (t *Tracker) MarkStart(p Phase, at time.Time) bool {
	s := &t.slots[p]
	if !s.start.IsZero() {
		return false
	}
	s.start = at
	return true
}

// MarkEnd stamps the phase end. It is a no-op when already marked or when
// the phase never started.
func (t *Tracker) MarkEnd(p Phase, at time.Time) bool {
	s := &t.slots[p]
	if s.start.IsZero() || !s.end.IsZero() {
		return false
	}
	if at.Before(s.start) {
		at = s.start
	}
	s.end = at
	return true
}

// Started reports whether the phase start has been stamped
func (t *Tracker) Started(p Phase) bool {
	return !t.slots[p].start.IsZero()
}

// DurationOf returns the elapsed time of a phase. ok is false until both
// instants are known.
func (t *Tracker) DurationOf(p Phase) (d time.Duration, ok bool) {
	s := t.slots[p]
	if s.start.IsZero() || s.end.IsZero() {
		return 0, false
	}
	return s.end.Sub(s.start), true
}

// Reset clears both instants of a phase
func (t *Tracker) Reset(p Phase) {
	t.slots[p] = slot{}
}

// millis converts a phase duration for the result, nil when unknown
func (t *Tracker) millis(p Phase) *float64 {
	d, ok := t.DurationOf(p)
	if !ok {
		return nil
	}
	ms := float64(d) / float64(time.Millisecond)
	return &ms
}
