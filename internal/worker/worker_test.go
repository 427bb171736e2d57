package worker

import (
	"testing"
	"time"
)

func receive(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

// TestDecodeEvent verifies parsing of the wire message kinds.
func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"status":"initiate","file":"encoder.onnx","name":"Xenova/whisper-tiny","loaded":0,"total":1024}`))
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	if ev.Status != "initiate" || ev.File != "encoder.onnx" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Total == nil || *ev.Total != 1024 {
		t.Fatalf("total = %v, want 1024", ev.Total)
	}

	if _, err := DecodeEvent([]byte(`{"file":"x"}`)); err == nil {
		t.Fatal("expected error for message without status")
	}
	if _, err := DecodeEvent([]byte(`{not-json`)); err == nil {
		t.Fatal("expected error for malformed message")
	}
}

// TestEventComplete verifies decoding of complete payloads with open ranges.
func TestEventComplete(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"status":"complete","data":{"text":"hello world","chunks":[{"text":"hello","timestamp":[0,1.5]},{"text":" world","timestamp":[1.5,null]}],"tps":42.5}}`))
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}

	data, err := ev.Complete()
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if data.Text != "hello world" || data.TPS != 42.5 {
		t.Fatalf("unexpected data: %+v", data)
	}
	if len(data.Chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(data.Chunks))
	}
	if data.Chunks[1].Timestamp[1] != nil {
		t.Fatalf("open range end = %v, want nil", *data.Chunks[1].Timestamp[1])
	}
	if *data.Chunks[0].Timestamp[1] != 1.5 {
		t.Fatalf("first chunk end = %v, want 1.5", *data.Chunks[0].Timestamp[1])
	}

	if _, err := (Event{Status: "complete"}).Complete(); err == nil {
		t.Fatal("expected error for complete without data")
	}
}

// TestEventErrorMessage verifies both object and string error payloads.
func TestEventErrorMessage(t *testing.T) {
	tests := []struct {
		data string
		want string
	}{
		{`{"message":"out of memory"}`, "out of memory"},
		{`"boom"`, "boom"},
		{``, "unknown worker error"},
	}

	for _, tt := range tests {
		ev := Event{Status: "error"}
		if tt.data != "" {
			ev.Data = []byte(tt.data)
		}
		if got := ev.ErrorMessage(); got != tt.want {
			t.Fatalf("ErrorMessage(%s) = %q, want %q", tt.data, got, tt.want)
		}
	}
}

// TestMemoryChannelOrder verifies FIFO delivery and events emitted before a
// handler is registered.
func TestMemoryChannelOrder(t *testing.T) {
	mc := NewMemoryChannel(8)
	defer mc.Close()

	for _, status := range []string{"initiate", "progress", "done", "ready"} {
		if err := mc.Emit(Event{Status: status}); err != nil {
			t.Fatalf("Emit(%s): %v", status, err)
		}
	}

	got := make(chan Event, 8)
	mc.OnMessage(func(ev Event) { got <- ev })

	for _, want := range []string{"initiate", "progress", "done", "ready"} {
		if ev := receive(t, got); ev.Status != want {
			t.Fatalf("status = %s, want %s", ev.Status, want)
		}
	}
}

// TestMemoryChannelSend verifies non-blocking send semantics.
func TestMemoryChannelSend(t *testing.T) {
	mc := NewMemoryChannel(1)

	if err := mc.Send(Request{Session: 1}); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := mc.Send(Request{Session: 2}); err != ErrQueueFull {
		t.Fatalf("second send error = %v, want %v", err, ErrQueueFull)
	}

	req := <-mc.Requests()
	if req.Session != 1 {
		t.Fatalf("session = %d, want 1", req.Session)
	}

	mc.Close()
	if err := mc.Send(Request{Session: 3}); err != ErrClosed {
		t.Fatalf("send after close error = %v, want %v", err, ErrClosed)
	}
	if err := mc.Emit(Event{Status: "ready"}); err != ErrClosed {
		t.Fatalf("emit after close error = %v, want %v", err, ErrClosed)
	}
}

// TestProcessChannelRoundTrip runs a shell worker that announces a resource
// and answers every request with a complete event.
func TestProcessChannelRoundTrip(t *testing.T) {
	script := `echo '{"status":"initiate","file":"model.onnx"}'
echo 'garbage'
while read -r line; do
  echo '{"status":"complete","session":7,"data":{"text":"hi","chunks":[],"tps":1}}'
done`

	pc, err := StartProcess(ProcessConfig{Command: "sh", Args: []string{"-c", script}})
	if err != nil {
		t.Fatalf("StartProcess() error = %v", err)
	}
	defer pc.Close()

	got := make(chan Event, 8)
	pc.OnMessage(func(ev Event) { got <- ev })

	if ev := receive(t, got); ev.Status != "initiate" || ev.File != "model.onnx" {
		t.Fatalf("unexpected first event: %+v", ev)
	}

	lang := "en"
	if err := pc.Send(Request{Session: 7, Audio: []float32{0.1, 0.2}, Model: "tiny", Language: &lang}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	ev := receive(t, got)
	if ev.Status != "complete" || ev.Session != 7 {
		t.Fatalf("unexpected event: %+v", ev)
	}
	data, err := ev.Complete()
	if err != nil || data.Text != "hi" {
		t.Fatalf("complete data = %+v, err = %v", data, err)
	}
}

// TestStartProcessRequiresCommand checks configuration validation.
func TestStartProcessRequiresCommand(t *testing.T) {
	if _, err := StartProcess(ProcessConfig{}); err == nil {
		t.Fatal("expected error for empty command")
	}
}
