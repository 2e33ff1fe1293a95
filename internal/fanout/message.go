package fanout

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alwianggoro/excore/internal/apperrors"
)

// Message is the transport-agnostic value handed to a Publisher
// operation. Each Connection encodes it into its own wire format:
// an SSE connection reads Type/ID/Data/Retry as the event name, id,
// data, and retry hint; a WS connection reads Type/ID/Data/Timestamp
// as the envelope's type, id, payload, and timestamp.
type Message struct {
	// Type is the SSE event name (optional) or the WS message type
	// (required, non-empty).
	Type string

	// ID is an optional SSE id / WS id field.
	ID string

	// Data is the SSE data value (used raw if already a string,
	// otherwise canonically serialized) or the WS payload.
	Data interface{}

	// Retry is an SSE-only retry hint in milliseconds; 0 means omit.
	Retry int

	// Timestamp is a WS-only field; if zero, the encoder fills it
	// with the current wall clock in epoch milliseconds.
	Timestamp int64
}

// InboundMessage is the envelope shape parsed from a raw inbound WS
// frame by the Inbound Dispatcher. Payload is left as raw JSON so
// each handler can decode it into its own schema.
type InboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	ID      string          `json:"id,omitempty"`
}

type wsEnvelope struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	ID        string      `json:"id,omitempty"`
	Timestamp int64       `json:"timestamp,omitempty"`
}

// EncodeWS produces the canonical serialization of a WS message
// envelope, filling Timestamp with the current wall clock if the
// message omits it.
func EncodeWS(msg Message) ([]byte, error) {
	ts := msg.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	env := wsEnvelope{Type: msg.Type, Payload: msg.Data, ID: msg.ID, Timestamp: ts}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, apperrors.EncodingFailed(err)
	}
	return data, nil
}

// EncodeSSE produces an SSE frame: id/event/data/retry lines, in that
// order when present, terminated by a blank line. data is the raw
// string when msg.Data is already a string, otherwise a canonical
// single-line serialization of the structured value. No frame ever
// omits the data line.
func EncodeSSE(msg Message) ([]byte, error) {
	var buf bytes.Buffer

	if msg.ID != "" {
		fmt.Fprintf(&buf, "id: %s\n", msg.ID)
	}
	if msg.Type != "" {
		fmt.Fprintf(&buf, "event: %s\n", msg.Type)
	}

	data, err := encodeSSEData(msg.Data)
	if err != nil {
		return nil, apperrors.EncodingFailed(err)
	}
	fmt.Fprintf(&buf, "data: %s\n", data)

	if msg.Retry > 0 {
		fmt.Fprintf(&buf, "retry: %d\n", msg.Retry)
	}

	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func encodeSSEData(data interface{}) (string, error) {
	if s, ok := data.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
