package session

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// TestTrackerDurationUnknownUntilBothMarks verifies duration availability.
func TestTrackerDurationUnknownUntilBothMarks(t *testing.T) {
	var tr Tracker
	if _, ok := tr.DurationOf(PhaseModelLoad); ok {
		t.Fatal("duration should be unknown before any mark")
	}

	tr.MarkStart(PhaseModelLoad, t0)
	if _, ok := tr.DurationOf(PhaseModelLoad); ok {
		t.Fatal("duration should be unknown with only a start")
	}

	tr.MarkEnd(PhaseModelLoad, t0.Add(1500*time.Millisecond))
	d, ok := tr.DurationOf(PhaseModelLoad)
	if !ok || d != 1500*time.Millisecond {
		t.Fatalf("duration = %v (%v), want 1.5s", d, ok)
	}
}

// TestTrackerIdempotentMarks verifies first write wins for both marks.
func TestTrackerIdempotentMarks(t *testing.T) {
	var tr Tracker
	if !tr.MarkStart(PhaseTranscription, t0) {
		t.Fatal("first MarkStart should apply")
	}
	if tr.MarkStart(PhaseTranscription, t0.Add(time.Second)) {
		t.Fatal("second MarkStart should be a no-op")
	}
	if !tr.MarkEnd(PhaseTranscription, t0.Add(2*time.Second)) {
		t.Fatal("first MarkEnd should apply")
	}
	if tr.MarkEnd(PhaseTranscription, t0.Add(5*time.Second)) {
		t.Fatal("second MarkEnd should be a no-op")
	}

	if d, _ := tr.DurationOf(PhaseTranscription); d != 2*time.Second {
		t.Fatalf("duration = %v, want 2s", d)
	}
}

// TestTrackerEndWithoutStart checks MarkEnd is ignored before MarkStart.
func TestTrackerEndWithoutStart(t *testing.T) {
	var tr Tracker
	if tr.MarkEnd(PhaseModelLoad, t0) {
		t.Fatal("MarkEnd without start should be a no-op")
	}
	tr.MarkStart(PhaseModelLoad, t0)
	if _, ok := tr.DurationOf(PhaseModelLoad); ok {
		t.Fatal("earlier ignored end must not have been recorded")
	}
}

// TestTrackerNeverNegative verifies a clock step backwards yields zero.
func TestTrackerNeverNegative(t *testing.T) {
	var tr Tracker
	tr.MarkStart(PhaseModelLoad, t0)
	tr.MarkEnd(PhaseModelLoad, t0.Add(-time.Second))
	if d, ok := tr.DurationOf(PhaseModelLoad); !ok || d < 0 {
		t.Fatalf("duration = %v (%v), want non-negative", d, ok)
	}
}

// TestTrackerPhasesIndependent verifies reset only affects one phase.
func TestTrackerPhasesIndependent(t *testing.T) {
	var tr Tracker
	tr.MarkStart(PhaseModelLoad, t0)
	tr.MarkEnd(PhaseModelLoad, t0.Add(time.Second))
	tr.MarkStart(PhaseTranscription, t0)

	tr.Reset(PhaseTranscription)
	if tr.Started(PhaseTranscription) {
		t.Fatal("transcription phase should be reset")
	}
	if _, ok := tr.DurationOf(PhaseModelLoad); !ok {
		t.Fatal("model load phase should be untouched")
	}
}
