package session

import (
	"fmt"
	"time"

	"github.com/codebuildervaibhav/whisper-session/internal/types"
	"github.com/codebuildervaibhav/whisper-session/internal/worker"
)

// State is everything the coordinator knows about the current session
type State struct {
	Session        uint64
	IsBusy         bool
	IsModelLoading bool
	Ledger         Ledger
	Timing         Tracker
	Result         *types.TranscriptionResult
	LastError      string
}

// OutcomeKind classifies what Reduce did with an event
type OutcomeKind int

const (
	OutcomeApplied OutcomeKind = iota
	OutcomeCompleted
	OutcomeFailed
	OutcomeIgnored
	OutcomeStale
)

// Outcome carries the side effects the owner of the state must perform
type Outcome struct {
	Kind    OutcomeKind
	Result  *types.TranscriptionResult
	Message string
}

func (s State) clone() State {
	s.Ledger = s.Ledger.Clone()
	return s
}

// Reduce applies one worker event and returns the next state. The input
// state is never modified. now is the instant the event was observed.
func Reduce(st State, ev worker.Event, now time.Time) (State, Outcome) {
	if isSessionScoped(ev.Status) && ev.Session != 0 && ev.Session < st.Session {
		return st, Outcome{
			Kind:    OutcomeStale,
			Message: fmt.Sprintf("%s event for session %d superseded by session %d", ev.Status, ev.Session, st.Session),
		}
	}

	next := st.clone()

	switch ev.Status {
	case types.StatusInitiate:
		next.Timing.MarkStart(PhaseModelLoad, now)
		next.IsModelLoading = true
		entry := types.ProgressEntry{
			ResourceID: ev.File,
			Name:       ev.Name,
			Status:     types.StatusInitiate,
		}
		if ev.Loaded != nil {
			entry.Loaded = *ev.Loaded
		}
		if ev.Total != nil {
			entry.Total = *ev.Total
		}
		if ev.Progress != nil {
			entry.Progress = *ev.Progress
		}
		if !next.Ledger.UpsertOnInitiate(entry) {
			return next, Outcome{Kind: OutcomeIgnored, Message: fmt.Sprintf("initiate for %q not added to ledger", ev.File)}
		}

	case types.StatusProgress:
		var progress float64
		if ev.Progress != nil {
			progress = *ev.Progress
		}
		if !next.Ledger.UpdateProgress(ev.File, progress, ev.Loaded) {
			return st, Outcome{Kind: OutcomeIgnored, Message: fmt.Sprintf("progress for unknown resource %q", ev.File)}
		}

	case types.StatusDone:
		if !next.Ledger.RemoveOnDone(ev.File) {
			return st, Outcome{Kind: OutcomeIgnored, Message: fmt.Sprintf("done for unknown resource %q", ev.File)}
		}

	case types.StatusReady:
		next.IsModelLoading = false
		next.Timing.MarkEnd(PhaseModelLoad, now)
		next.Ledger.EndCycle()

	case types.StatusUpdate:
		next.IsBusy = true

	case types.StatusComplete:
		next.IsBusy = false
		data, err := ev.Complete()
		if err != nil {
			next.LastError = err.Error()
			return next, Outcome{Kind: OutcomeFailed, Message: err.Error()}
		}

		next.Timing.MarkEnd(PhaseTranscription, now)
		result := &types.TranscriptionResult{
			Session:         next.Session,
			Text:            data.Text,
			Chunks:          data.Chunks,
			TokensPerSecond: data.TPS,
			ModelLoadMs:     next.Timing.millis(PhaseModelLoad),
			TranscriptionMs: next.Timing.millis(PhaseTranscription),
			CompletedAt:     now,
		}
		if result.Chunks == nil {
			result.Chunks = []types.Chunk{}
		}
		next.Result = result
		next.LastError = ""
		return next, Outcome{Kind: OutcomeCompleted, Result: result}

	case types.StatusError:
		next.IsBusy = false
		next.LastError = ev.ErrorMessage()
		return next, Outcome{Kind: OutcomeFailed, Message: next.LastError}

	default:
		return st, Outcome{Kind: OutcomeIgnored, Message: fmt.Sprintf("unhandled worker status %q", ev.Status)}
	}

	return next, Outcome{Kind: OutcomeApplied}
}

// BeginSession moves the state into a new transcription session
func BeginSession(st State, now time.Time) State {
	next := st.clone()
	next.Session++
	next.Result = nil
	next.LastError = ""
	next.IsBusy = true
	next.Timing.Reset(PhaseTranscription)
	next.Timing.MarkStart(PhaseTranscription, now)
	return next
}

// ClearResult drops the published result and nothing else
func ClearResult(st State) State {
	st.Result = nil
	return st
}

// SnapshotOf renders the externally visible view of the state
func SnapshotOf(st State, settings types.Settings) types.Snapshot {
	return types.Snapshot{
		Session:        st.Session,
		IsBusy:         st.IsBusy,
		IsModelLoading: st.IsModelLoading,
		ProgressItems:  st.Ledger.Entries(),
		Result:         st.Result,
		Settings:       settings,
		LastError:      st.LastError,
	}
}

func isSessionScoped(status string) bool {
	switch status {
	case types.StatusUpdate, types.StatusComplete, types.StatusError:
		return true
	default:
		return false
	}
}
