package session

import (
	"testing"
	"time"

	"github.com/codebuildervaibhav/whisper-session/internal/types"
	"github.com/codebuildervaibhav/whisper-session/internal/worker"
)

func f(v float64) *float64 { return &v }

func completeEvent(text string) worker.Event {
	return worker.Event{
		Status: types.StatusComplete,
		Data:   []byte(`{"text":"` + text + `","chunks":[{"text":"` + text + `","timestamp":[0,null]}],"tps":12}`),
	}
}

// TestReduceFullScenario walks model load, start, update and complete.
func TestReduceFullScenario(t *testing.T) {
	var st State
	now := t0

	step := func(ev worker.Event) Outcome {
		t.Helper()
		now = now.Add(100 * time.Millisecond)
		var out Outcome
		st, out = Reduce(st, ev, now)
		return out
	}

	step(worker.Event{Status: types.StatusInitiate, File: "a", Name: "Xenova/whisper-tiny", Total: f(2048)})
	if !st.IsModelLoading || st.Ledger.Len() != 1 {
		t.Fatalf("after initiate: loading=%v len=%d", st.IsModelLoading, st.Ledger.Len())
	}
	step(worker.Event{Status: types.StatusProgress, File: "a", Progress: f(0.5), Loaded: f(1024)})
	if e := st.Ledger.Entries()[0]; e.Progress != 0.5 || e.Loaded != 1024 || e.Total != 2048 {
		t.Fatalf("entry after progress = %+v", e)
	}
	step(worker.Event{Status: types.StatusDone, File: "a"})
	step(worker.Event{Status: types.StatusReady})

	now = now.Add(time.Second)
	st = BeginSession(st, now)
	if !st.IsBusy || st.Session != 1 {
		t.Fatalf("after start: busy=%v session=%d", st.IsBusy, st.Session)
	}

	step(worker.Event{Status: types.StatusUpdate})
	out := step(completeEvent("hello"))

	if out.Kind != OutcomeCompleted {
		t.Fatalf("outcome = %v, want completed", out.Kind)
	}
	if st.Ledger.Len() != 0 || st.IsModelLoading || st.IsBusy {
		t.Fatalf("final flags: len=%d loading=%v busy=%v", st.Ledger.Len(), st.IsModelLoading, st.IsBusy)
	}
	if st.Result == nil || st.Result.Text != "hello" {
		t.Fatalf("result = %+v, want text hello", st.Result)
	}
	if st.Result.ModelLoadMs == nil || *st.Result.ModelLoadMs != 300 {
		t.Fatalf("model load ms = %v, want 300", st.Result.ModelLoadMs)
	}
	if st.Result.TranscriptionMs == nil || *st.Result.TranscriptionMs != 200 {
		t.Fatalf("transcription ms = %v, want 200", st.Result.TranscriptionMs)
	}
	if st.Result.TokensPerSecond != 12 || len(st.Result.Chunks) != 1 {
		t.Fatalf("unexpected result payload: %+v", st.Result)
	}
}

// TestReduceDoesNotMutateInput verifies the reducer is pure.
func TestReduceDoesNotMutateInput(t *testing.T) {
	var st State
	st, _ = Reduce(st, worker.Event{Status: types.StatusInitiate, File: "a"}, t0)

	before := st.Ledger.Len()
	_, _ = Reduce(st, worker.Event{Status: types.StatusDone, File: "a"}, t0)
	_, _ = Reduce(st, worker.Event{Status: types.StatusInitiate, File: "b"}, t0)

	if st.Ledger.Len() != before {
		t.Fatalf("input ledger len = %d, want %d", st.Ledger.Len(), before)
	}
}

// TestReduceRepeatedReadyKeepsFirstStamp checks first-write-wins timing.
func TestReduceRepeatedReadyKeepsFirstStamp(t *testing.T) {
	var st State
	st, _ = Reduce(st, worker.Event{Status: types.StatusInitiate, File: "a"}, t0)
	st, _ = Reduce(st, worker.Event{Status: types.StatusReady}, t0.Add(time.Second))
	st, _ = Reduce(st, worker.Event{Status: types.StatusInitiate, File: "b"}, t0.Add(2*time.Second))
	st, _ = Reduce(st, worker.Event{Status: types.StatusReady}, t0.Add(10*time.Second))

	if d, ok := st.Timing.DurationOf(PhaseModelLoad); !ok || d != time.Second {
		t.Fatalf("model load = %v (%v), want 1s", d, ok)
	}
}

// TestReduceErrorKeepsResult verifies error clears busy but not the result.
func TestReduceErrorKeepsResult(t *testing.T) {
	var st State
	st = BeginSession(st, t0)
	st, _ = Reduce(st, completeEvent("first"), t0.Add(time.Second))
	st = BeginSession(st, t0.Add(2*time.Second))
	st.Result = &types.TranscriptionResult{Text: "kept"}

	next, out := Reduce(st, worker.Event{Status: types.StatusError, Data: []byte(`{"message":"oom"}`)}, t0.Add(3*time.Second))
	if out.Kind != OutcomeFailed || out.Message != "oom" {
		t.Fatalf("outcome = %+v, want failed oom", out)
	}
	if next.IsBusy {
		t.Fatal("busy should be cleared by error")
	}
	if next.Result != st.Result {
		t.Fatal("result should be unchanged by error")
	}
	if next.LastError != "oom" {
		t.Fatalf("last error = %q, want oom", next.LastError)
	}
}

// TestReduceUnknownStatusIgnored checks forward compatibility.
func TestReduceUnknownStatusIgnored(t *testing.T) {
	st := BeginSession(State{}, t0)
	next, out := Reduce(st, worker.Event{Status: "telemetry"}, t0)
	if out.Kind != OutcomeIgnored {
		t.Fatalf("outcome = %v, want ignored", out.Kind)
	}
	if next.IsBusy != st.IsBusy || next.Session != st.Session {
		t.Fatal("unknown status must not change state")
	}
}

// TestReduceTolerantOfUnknownResources verifies stray progress and done.
func TestReduceTolerantOfUnknownResources(t *testing.T) {
	var st State
	for _, ev := range []worker.Event{
		{Status: types.StatusProgress, File: "ghost", Progress: f(10)},
		{Status: types.StatusDone, File: "ghost"},
		{Status: types.StatusProgress},
	} {
		next, out := Reduce(st, ev, t0)
		if out.Kind != OutcomeIgnored {
			t.Fatalf("%s outcome = %v, want ignored", ev.Status, out.Kind)
		}
		if next.Ledger.Len() != 0 {
			t.Fatal("ledger should stay empty")
		}
	}
}

// TestReduceFencesStaleSessions verifies superseded events are discarded.
func TestReduceFencesStaleSessions(t *testing.T) {
	st := BeginSession(State{}, t0)
	st = BeginSession(st, t0.Add(time.Second))

	stale := completeEvent("old")
	stale.Session = 1
	next, out := Reduce(st, stale, t0.Add(2*time.Second))
	if out.Kind != OutcomeStale {
		t.Fatalf("outcome = %v, want stale", out.Kind)
	}
	if next.Result != nil || !next.IsBusy {
		t.Fatal("stale complete must not publish a result or clear busy")
	}

	current := completeEvent("new")
	current.Session = 2
	next, out = Reduce(st, current, t0.Add(3*time.Second))
	if out.Kind != OutcomeCompleted || next.Result.Text != "new" {
		t.Fatalf("current session outcome = %+v", out)
	}

	untagged := completeEvent("untagged")
	if _, out = Reduce(st, untagged, t0); out.Kind != OutcomeCompleted {
		t.Fatalf("untagged outcome = %v, want completed", out.Kind)
	}
}

// TestReduceMalformedComplete treats an undecodable payload as a failure.
func TestReduceMalformedComplete(t *testing.T) {
	st := BeginSession(State{}, t0)
	next, out := Reduce(st, worker.Event{Status: types.StatusComplete, Data: []byte(`[1,2]`)}, t0)
	if out.Kind != OutcomeFailed {
		t.Fatalf("outcome = %v, want failed", out.Kind)
	}
	if next.IsBusy || next.Result != nil {
		t.Fatalf("busy=%v result=%v, want false/nil", next.IsBusy, next.Result)
	}
}

// TestReduceCompleteWithoutModelLoad leaves model load duration unknown.
func TestReduceCompleteWithoutModelLoad(t *testing.T) {
	st := BeginSession(State{}, t0)
	next, _ := Reduce(st, completeEvent("x"), t0.Add(time.Second))
	if next.Result.ModelLoadMs != nil {
		t.Fatalf("model load ms = %v, want nil", *next.Result.ModelLoadMs)
	}
	if next.Result.TranscriptionMs == nil {
		t.Fatal("transcription ms should be set")
	}
}

// TestBeginSessionResetsTranscriptionTiming checks per-session timing.
func TestBeginSessionResetsTranscriptionTiming(t *testing.T) {
	st := BeginSession(State{}, t0)
	st, _ = Reduce(st, completeEvent("a"), t0.Add(time.Second))
	st = BeginSession(st, t0.Add(10*time.Second))

	if st.Result != nil {
		t.Fatal("start should clear the result")
	}
	if _, ok := st.Timing.DurationOf(PhaseTranscription); ok {
		t.Fatal("transcription duration should be unknown right after start")
	}

	st, _ = Reduce(st, completeEvent("b"), t0.Add(13*time.Second))
	if *st.Result.TranscriptionMs != 3000 {
		t.Fatalf("transcription ms = %v, want 3000", *st.Result.TranscriptionMs)
	}
}

// TestClearResultOnlyTouchesResult verifies flags and ledger survive.
func TestClearResultOnlyTouchesResult(t *testing.T) {
	st := BeginSession(State{}, t0)
	st, _ = Reduce(st, worker.Event{Status: types.StatusInitiate, File: "a"}, t0)
	st.Result = &types.TranscriptionResult{Text: "x"}

	cleared := ClearResult(st)
	if cleared.Result != nil {
		t.Fatal("result should be cleared")
	}
	if !cleared.IsBusy || !cleared.IsModelLoading || cleared.Ledger.Len() != 1 {
		t.Fatal("flags and ledger should be untouched")
	}
}
