package worker

import "sync"

// MemoryChannel is an in-process Channel. The coordinator side uses the
// Channel methods, the worker side reads Requests and calls Emit.
type MemoryChannel struct {
	*dispatcher
	requests  chan Request
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryChannel creates a channel with the given buffer on each direction
func NewMemoryChannel(buffer int) *MemoryChannel {
	if buffer <= 0 {
		buffer = 16
	}

	mc := &MemoryChannel{
		dispatcher: newDispatcher(),
		requests:   make(chan Request, buffer),
		events:     make(chan Event, buffer),
		done:       make(chan struct{}),
	}
	go mc.pump()
	return mc
}

func (mc *MemoryChannel) pump() {
	for {
		select {
		case ev := <-mc.events:
			if !mc.deliver(ev, mc.done) {
				return
			}
		case <-mc.done:
			return
		}
	}
}

// Send queues a request for the worker side
func (mc *MemoryChannel) Send(req Request) error {
	select {
	case <-mc.done:
		return ErrClosed
	default:
	}

	select {
	case mc.requests <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

// OnMessage registers the inbound event handler
func (mc *MemoryChannel) OnMessage(handler func(Event)) {
	mc.setHandler(handler)
}

// Close releases the channel. Pending events are discarded.
func (mc *MemoryChannel) Close() error {
	mc.closeOnce.Do(func() { close(mc.done) })
	return nil
}

// Requests is the worker-side view of outbound requests
func (mc *MemoryChannel) Requests() <-chan Request {
	return mc.requests
}

// Emit sends an event from the worker side. It blocks while the inbound
// buffer is full and fails once the channel is closed.
func (mc *MemoryChannel) Emit(ev Event) error {
	select {
	case <-mc.done:
		return ErrClosed
	default:
	}

	select {
	case mc.events <- ev:
		return nil
	case <-mc.done:
		return ErrClosed
	}
}
