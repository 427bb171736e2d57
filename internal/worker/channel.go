package worker

import (
	"errors"
	"sync"
)

var (
	// ErrQueueFull is returned by Send when the outbound queue is saturated
	ErrQueueFull = errors.New("worker queue full")
	// ErrClosed is returned by Send after the channel has been closed
	ErrClosed = errors.New("worker channel closed")
)

// Channel is the single bidirectional link to a worker. Send never blocks.
// OnMessage registers the handler that receives every inbound event in
// arrival order; registering again replaces the previous handler.
type Channel interface {
	Send(req Request) error
	OnMessage(handler func(Event))
	Close() error
}

// dispatcher holds inbound events until a handler is registered, then
// delivers them one at a time.
type dispatcher struct {
	mu      sync.Mutex
	handler func(Event)
	ready   chan struct{}
	once    sync.Once
}

func newDispatcher() *dispatcher {
	return &dispatcher{ready: make(chan struct{})}
}

func (d *dispatcher) setHandler(handler func(Event)) {
	d.mu.Lock()
	d.handler = handler
	d.mu.Unlock()
	d.once.Do(func() { close(d.ready) })
}

// deliver blocks until a handler exists or done is closed. It reports false
// when the event was dropped because the channel shut down first.
func (d *dispatcher) deliver(ev Event, done <-chan struct{}) bool {
	select {
	case <-d.ready:
	case <-done:
		return false
	}

	d.mu.Lock()
	handler := d.handler
	d.mu.Unlock()

	if handler != nil {
		handler(ev)
	}
	return true
}
