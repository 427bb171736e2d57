package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/whisper-session/internal/transcription"
	"github.com/codebuildervaibhav/whisper-session/internal/types"
	"github.com/codebuildervaibhav/whisper-session/internal/worker"
)

// ErrClosed is returned by commands issued after Close
var ErrClosed = errors.New("coordinator closed")

// Options configures a Coordinator
type Options struct {
	Settings types.Settings
	// Clock defaults to time.Now
	Clock func() time.Time
	// Notify surfaces worker failures to the operator
	Notify func(message string)
	// OnResult receives every completed result, on the event loop
	OnResult func(result types.TranscriptionResult)
}

type command struct {
	fn    func() error
	reply chan error
}

// Coordinator owns the session state. All commands and worker events are
// applied by a single event loop goroutine.
type Coordinator struct {
	channel  worker.Channel
	clock    func() time.Time
	notify   func(string)
	onResult func(types.TranscriptionResult)

	commands  chan command
	events    chan worker.Event
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// owned by the loop
	state    State
	settings types.Settings
	input    *transcription.AudioBuffer

	mu       sync.RWMutex
	snapshot types.Snapshot

	subsMu  sync.Mutex
	subs    map[int]chan types.Snapshot
	nextSub int
}

// NewCoordinator subscribes to the channel and starts the event loop
func NewCoordinator(channel worker.Channel, opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	c := &Coordinator{
		channel:  channel,
		clock:    opts.Clock,
		notify:   opts.Notify,
		onResult: opts.OnResult,
		commands: make(chan command),
		events:   make(chan worker.Event, 64),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		settings: opts.Settings,
		subs:     make(map[int]chan types.Snapshot),
	}
	c.snapshot = SnapshotOf(c.state, c.settings)

	channel.OnMessage(func(ev worker.Event) {
		select {
		case c.events <- ev:
		case <-c.done:
		}
	})

	go c.loop()
	return c
}

func (c *Coordinator) loop() {
	defer close(c.stopped)

	for {
		select {
		case cmd := <-c.commands:
			cmd.reply <- cmd.fn()
		case ev := <-c.events:
			c.handleEvent(ev)
		case <-c.done:
			return
		}
	}
}

// Start begins a new session for the audio. A nil buffer is a no-op.
func (c *Coordinator) Start(ctx context.Context, audio *transcription.AudioBuffer) error {
	if audio == nil {
		return nil
	}

	mono, err := transcription.Downmix(audio)
	if err != nil {
		return err
	}

	return c.do(ctx, func() error {
		c.state = BeginSession(c.state, c.clock())
		c.input = audio

		req := transcription.NewRequest(c.state.Session, mono, c.settings)
		if err := c.channel.Send(req); err != nil {
			c.state.IsBusy = false
			c.state.LastError = fmt.Sprintf("failed to dispatch request: %v", err)
			c.publish()
			return fmt.Errorf("dispatch session %d: %w", c.state.Session, err)
		}

		log.Printf("Session %d dispatched (%d samples, model %s)", c.state.Session, len(mono), c.settings.Model)
		c.publish()
		return nil
	})
}

// ClearInput drops the current result, typically because the caller loaded
// a different input
func (c *Coordinator) ClearInput(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.state = ClearResult(c.state)
		c.publish()
		return nil
	})
}

// UpdateSettings replaces the parameters used by later sessions
func (c *Coordinator) UpdateSettings(ctx context.Context, s types.Settings) error {
	if s.Model == "" {
		return fmt.Errorf("model is required")
	}
	return c.do(ctx, func() error {
		c.settings = s
		c.publish()
		return nil
	})
}

// Snapshot returns the latest published state
func (c *Coordinator) Snapshot() types.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Subscribe returns a channel that always holds the most recent snapshot.
// Slow readers skip intermediate snapshots. The cancel func must be called
// to release the subscription.
func (c *Coordinator) Subscribe() (<-chan types.Snapshot, func()) {
	ch := make(chan types.Snapshot, 1)

	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.Snapshot()
	c.subsMu.Unlock()

	cancel := func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Close stops the event loop and releases the worker channel
func (c *Coordinator) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		<-c.stopped
		err = c.channel.Close()

		c.subsMu.Lock()
		for id, ch := range c.subs {
			delete(c.subs, id)
			close(ch)
		}
		c.subsMu.Unlock()
	})
	return err
}

func (c *Coordinator) do(ctx context.Context, fn func() error) error {
	cmd := command{fn: fn, reply: make(chan error, 1)}

	select {
	case c.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-c.done:
		return ErrClosed
	}
}

func (c *Coordinator) handleEvent(ev worker.Event) {
	next, out := Reduce(c.state, ev, c.clock())
	c.state = next

	switch out.Kind {
	case OutcomeCompleted:
		result := *out.Result
		result.ID = uuid.New().String()
		if c.input != nil {
			result.InputName = c.input.Name
			result.InputHash = c.input.Hash
		}
		c.state.Result = &result
		log.Printf("Session %d complete: %d chunks, %.1f tok/s", result.Session, len(result.Chunks), result.TokensPerSecond)
		c.publish()
		if c.onResult != nil {
			c.safeCall("result listener", func() { c.onResult(result) })
		}
		return

	case OutcomeFailed:
		log.Printf("Session %d failed: %s", c.state.Session, out.Message)
		c.publish()
		if c.notify != nil {
			msg := fmt.Sprintf("An error occurred: %q. Please file a bug report.", out.Message)
			c.safeCall("notifier", func() { c.notify(msg) })
		}
		return

	case OutcomeIgnored, OutcomeStale:
		log.Printf("Worker event ignored: %s", out.Message)
	}

	c.publish()
}

func (c *Coordinator) publish() {
	snap := SnapshotOf(c.state, c.settings)

	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()

	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// safeCall keeps a panicking listener from taking down the event loop
func (c *Coordinator) safeCall(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC in %s: %v\n%s", name, r, string(debug.Stack()))
		}
	}()
	fn()
}
