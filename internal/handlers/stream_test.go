package handlers

import (
	"context"
	"net"
	"testing"
	"time"

	fws "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/whisper-session/internal/types"
)

// TestStreamPushesSnapshots verifies a WebSocket client sees the initial
// snapshot and later changes.
func TestStreamPushesSnapshots(t *testing.T) {
	s := newTestServer(t)
	s.app.Get("/ws/session", websocket.New(NewStreamHandler(s.coord).Handle))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go s.app.Listener(ln)
	defer s.app.Shutdown()

	conn, _, err := fws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/session", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snap types.Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if snap.Settings.Model != "Xenova/whisper-tiny" {
		t.Fatalf("initial settings = %+v", snap.Settings)
	}

	next := types.Settings{Model: "Xenova/whisper-base", Subtask: "transcribe", Language: "en"}
	if err := s.coord.UpdateSettings(context.Background(), next); err != nil {
		t.Fatal(err)
	}
	for snap.Settings.Model != next.Model {
		if err := conn.ReadJSON(&snap); err != nil {
			t.Fatalf("read update: %v", err)
		}
	}
}

// TestStreamServerCloseWhileClientSends verifies the handler finishes its
// read loop before returning while the client is still sending frames.
func TestStreamServerCloseWhileClientSends(t *testing.T) {
	s := newTestServer(t)
	s.app.Get("/ws/session", websocket.New(NewStreamHandler(s.coord).Handle))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go s.app.Listener(ln)
	defer s.app.Shutdown()

	url := "ws://" + ln.Addr().String() + "/ws/session"
	conn, _, err := fws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var snap types.Snapshot
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}

	stop := make(chan struct{})
	sent := make(chan struct{})
	go func() {
		defer close(sent)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if err := conn.WriteMessage(fws.TextMessage, []byte("ping")); err != nil {
				return
			}
		}
	}()

	// Closing the coordinator closes every subscription, ending the handler.
	s.coord.Close()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(stop)
	<-sent

	// The server keeps serving new clients.
	second, _, err := fws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("second dial: %v", err)
	}
	defer second.Close()
	second.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := second.ReadJSON(&snap); err != nil {
		t.Fatalf("read snapshot on second conn: %v", err)
	}
}

// TestStreamRequiresUpgrade verifies plain HTTP requests are refused.
func TestStreamRequiresUpgrade(t *testing.T) {
	s := newTestServer(t)
	s.app.Get("/ws/session", websocket.New(NewStreamHandler(s.coord).Handle))

	resp, err := s.app.Test(jsonRequest("GET", "/ws/session", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Fatalf("status = %d, want %d", resp.StatusCode, fiber.StatusUpgradeRequired)
	}
}
