package handlers

import (
	"log"

	"github.com/gofiber/websocket/v2"
)

// StreamHandler pushes session snapshots over WebSocket
type StreamHandler struct {
	session Session
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(session Session) *StreamHandler {
	return &StreamHandler{
		session: session,
	}
}

// Handle sends the current snapshot, then one message per change until the
// client disconnects or the session shuts down
func (h *StreamHandler) Handle(c *websocket.Conn) {
	snapshots, cancel := h.session.Subscribe()
	defer cancel()

	// Incoming messages are ignored; reading detects the disconnect.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// The conn goes back to a pool once Handle returns, so the reader must
	// be gone by then. Closing unblocks its pending ReadMessage.
	defer func() {
		c.Close()
		<-closed
	}()

	log.Printf("Snapshot stream opened: %s", c.RemoteAddr())

	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				log.Printf("Snapshot stream closed by server: %s", c.RemoteAddr())
				return
			}
			if err := c.WriteJSON(snap); err != nil {
				log.Printf("WebSocket write error: %v", err)
				return
			}
		case <-closed:
			log.Printf("Snapshot stream closed by client: %s", c.RemoteAddr())
			return
		}
	}
}
