package fanout

import (
	"strings"
	"testing"
)

func TestEncodeSSEFieldOrderAndTermination(t *testing.T) {
	frame, err := EncodeSSE(Message{ID: "42", Type: "greeting", Data: map[string]string{"hello": "world"}, Retry: 3000})
	if err != nil {
		t.Fatalf("EncodeSSE returned error: %v", err)
	}

	text := string(frame)
	lines := strings.Split(strings.TrimSuffix(text, "\n\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines before the terminator, got %d: %q", len(lines), text)
	}
	if lines[0] != "id: 42" {
		t.Errorf("expected id line first, got %q", lines[0])
	}
	if lines[1] != "event: greeting" {
		t.Errorf("expected event line second, got %q", lines[1])
	}
	if lines[2] != `data: {"hello":"world"}` {
		t.Errorf("expected data line third, got %q", lines[2])
	}
	if lines[3] != "retry: 3000" {
		t.Errorf("expected retry line fourth, got %q", lines[3])
	}
	if !strings.HasSuffix(text, "\n\n") {
		t.Errorf("expected frame to terminate with a blank line, got %q", text)
	}
}

func TestEncodeSSEOmitsAbsentFieldsButNeverData(t *testing.T) {
	frame, err := EncodeSSE(Message{Data: nil})
	if err != nil {
		t.Fatalf("EncodeSSE returned error: %v", err)
	}
	text := string(frame)
	if strings.Contains(text, "id:") || strings.Contains(text, "event:") || strings.Contains(text, "retry:") {
		t.Errorf("expected only a data line, got %q", text)
	}
	if !strings.Contains(text, "data: null") {
		t.Errorf("expected a data line even for nil data, got %q", text)
	}
}

func TestEncodeSSERawStringData(t *testing.T) {
	frame, err := EncodeSSE(Message{Data: "plain text"})
	if err != nil {
		t.Fatalf("EncodeSSE returned error: %v", err)
	}
	if string(frame) != "data: plain text\n\n" {
		t.Errorf("expected raw string data to pass through unquoted, got %q", string(frame))
	}
}

func TestEncodeWSEnvelopeShape(t *testing.T) {
	frame, err := EncodeWS(Message{Type: "chat", ID: "abc", Data: map[string]int{"count": 1}, Timestamp: 123456})
	if err != nil {
		t.Fatalf("EncodeWS returned error: %v", err)
	}
	want := `{"type":"chat","payload":{"count":1},"id":"abc","timestamp":123456}`
	if string(frame) != want {
		t.Errorf("unexpected envelope:\n got  %s\n want %s", frame, want)
	}
}

func TestEncodeWSFillsTimestampWhenZero(t *testing.T) {
	frame, err := EncodeWS(Message{Type: "ping"})
	if err != nil {
		t.Fatalf("EncodeWS returned error: %v", err)
	}
	if strings.Contains(string(frame), `"timestamp":0`) || !strings.Contains(string(frame), `"timestamp":`) {
		t.Errorf("expected a non-zero filled timestamp, got %s", frame)
	}
}
