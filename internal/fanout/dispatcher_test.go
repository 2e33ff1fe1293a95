package fanout

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func newDispatchTestConnection(r *Registry, id string) (*Connection, *recordingSink) {
	sink := &recordingSink{}
	conn, err := r.AddConnection(id, TransportWS, sink.sendRaw, noopCloseRaw, "", "")
	if err != nil {
		panic(err)
	}
	return conn, sink
}

func lastFrame(t *testing.T, sink *recordingSink) string {
	t.Helper()
	if sink.count() == 0 {
		t.Fatal("expected at least one frame to have been sent back")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	return string(sink.frames[len(sink.frames)-1])
}

func errorPayload(t *testing.T, frame string) string {
	t.Helper()
	var env struct {
		Payload struct {
			Error string `json:"error"`
		} `json:"payload"`
	}
	if err := json.Unmarshal([]byte(frame), &env); err != nil {
		t.Fatalf("failed to decode error frame: %v", err)
	}
	return env.Payload.Error
}

func TestHandleMessageUnknownConnectionIsSilent(t *testing.T) {
	r := NewRegistry(testOptions())
	defer r.CloseAll(0, "")

	// Must not panic.
	r.HandleMessage("missing", []byte(`{"type":"ping"}`))
}

func TestHandleMessageOversizedFrameEmitsError(t *testing.T) {
	r := NewRegistry(testOptions())
	defer r.CloseAll(0, "")

	conn, sink := newDispatchTestConnection(r, "c1")
	oversized := make([]byte, r.opts.MaxMessageSize+1)
	r.HandleMessage(conn.ID, oversized)

	frame := lastFrame(t, sink)
	if !strings.Contains(frame, `"type":"error"`) {
		t.Errorf("expected an error frame, got %s", frame)
	}
	want := "Message size exceeds maximum allowed size"
	if got := errorPayload(t, frame); got != want {
		t.Errorf("payload.error = %q, want %q", got, want)
	}
}

func TestHandleMessageMalformedJSONEmitsError(t *testing.T) {
	r := NewRegistry(testOptions())
	defer r.CloseAll(0, "")

	conn, sink := newDispatchTestConnection(r, "c1")
	r.HandleMessage(conn.ID, []byte(`not json`))

	frame := lastFrame(t, sink)
	if !strings.Contains(frame, `"type":"error"`) {
		t.Errorf("expected an error frame, got %s", frame)
	}
}

func TestHandleMessageMissingTypeEmitsError(t *testing.T) {
	r := NewRegistry(testOptions())
	defer r.CloseAll(0, "")

	conn, sink := newDispatchTestConnection(r, "c1")
	r.HandleMessage(conn.ID, []byte(`{"payload":{}}`))

	frame := lastFrame(t, sink)
	if !strings.Contains(frame, `"type":"error"`) {
		t.Errorf("expected an error frame, got %s", frame)
	}
}

func TestHandleMessageUnknownTypeEmitsError(t *testing.T) {
	r := NewRegistry(testOptions())
	defer r.CloseAll(0, "")

	conn, sink := newDispatchTestConnection(r, "c1")
	r.HandleMessage(conn.ID, []byte(`{"type":"chat:sned"}`))

	frame := lastFrame(t, sink)
	if !strings.Contains(frame, `"type":"error"`) {
		t.Errorf("expected an error frame, got %s", frame)
	}
	want := "No handler found for message type: chat:sned"
	if got := errorPayload(t, frame); got != want {
		t.Errorf("payload.error = %q, want %q", got, want)
	}
}

func TestHandleMessageHandlerErrorEmitsErrorFrame(t *testing.T) {
	r := NewRegistry(testOptions())
	defer r.CloseAll(0, "")

	r.OnMessage("boom", func(conn *Connection, msg InboundMessage) error {
		return errors.New("handler exploded")
	})

	conn, sink := newDispatchTestConnection(r, "c1")
	r.HandleMessage(conn.ID, []byte(`{"type":"boom"}`))

	frame := lastFrame(t, sink)
	if !strings.Contains(frame, `"type":"error"`) {
		t.Errorf("expected an error frame, got %s", frame)
	}
}

func TestHandleMessageHandlerPanicIsRecovered(t *testing.T) {
	r := NewRegistry(testOptions())
	defer r.CloseAll(0, "")

	r.OnMessage("panics", func(conn *Connection, msg InboundMessage) error {
		panic("unexpected")
	})

	conn, sink := newDispatchTestConnection(r, "c1")
	r.HandleMessage(conn.ID, []byte(`{"type":"panics"}`))

	frame := lastFrame(t, sink)
	if !strings.Contains(frame, `"type":"error"`) {
		t.Errorf("expected an error frame after a recovered panic, got %s", frame)
	}
}

func TestHandleMessageSuccessfulDispatch(t *testing.T) {
	r := NewRegistry(testOptions())
	defer r.CloseAll(0, "")

	var received InboundMessage
	r.OnMessage("greet", func(conn *Connection, msg InboundMessage) error {
		received = msg
		return conn.Send(Message{Type: "greet-ack"})
	})

	conn, sink := newDispatchTestConnection(r, "c1")
	r.HandleMessage(conn.ID, []byte(`{"type":"greet","payload":{"name":"ada"},"id":"req-1"}`))

	if received.Type != "greet" || received.ID != "req-1" {
		t.Errorf("handler did not receive the expected envelope: %+v", received)
	}
	var payload map[string]string
	if err := json.Unmarshal(received.Payload, &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload["name"] != "ada" {
		t.Errorf("expected payload name 'ada', got %q", payload["name"])
	}

	frame := lastFrame(t, sink)
	if !strings.Contains(frame, `"type":"greet-ack"`) {
		t.Errorf("expected a greet-ack frame, got %s", frame)
	}
}
