package fanout

import (
	"encoding/json"
	"fmt"

	"github.com/alwianggoro/excore/internal/apperrors"
)

// Handler processes one parsed inbound WS message for conn. Handlers
// must not assume serialization: handleMessage may dispatch several
// inbound frames for the same connection concurrently.
type Handler func(conn *Connection, msg InboundMessage) error

// OnMessage registers handler for msgType, replacing any handler
// previously registered for the same type. WS-only: SSE connections
// never have inbound frames to dispatch.
func (r *Registry) OnMessage(msgType string, handler Handler) {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()
	r.handlers[msgType] = handler
}

// HandleMessage parses and dispatches one raw inbound WS frame for
// connectionID. It never panics or returns an error to the caller:
// every failure mode (unknown connection, oversized frame, malformed
// JSON, missing type, unknown type, handler failure or panic) either
// silently returns or writes an "error" frame back to the connection.
func (r *Registry) HandleMessage(connectionID string, rawFrame []byte) {
	conn, ok := r.GetConnection(connectionID)
	if !ok {
		return
	}

	if len(rawFrame) > r.opts.MaxMessageSize {
		r.emitError(conn, apperrors.InboundValidationFailed("Message size exceeds maximum allowed size"))
		return
	}

	var msg InboundMessage
	if err := json.Unmarshal(rawFrame, &msg); err != nil {
		r.emitError(conn, apperrors.InboundValidationFailed("malformed message: "+err.Error()))
		return
	}

	if msg.Type == "" {
		r.emitError(conn, apperrors.InboundValidationFailed("message is missing a type"))
		return
	}

	r.handlersMu.RLock()
	handler, ok := r.handlers[msg.Type]
	r.handlersMu.RUnlock()
	if !ok {
		r.emitError(conn, apperrors.InboundValidationFailed(fmt.Sprintf("No handler found for message type: %s", msg.Type)))
		return
	}

	r.invokeHandler(conn, msg, handler)
}

func (r *Registry) invokeHandler(conn *Connection, msg InboundMessage, handler Handler) {
	defer func() {
		if rec := recover(); rec != nil {
			r.emitError(conn, apperrors.HandlerFailed(msg.Type, fmt.Errorf("%v", rec)))
		}
	}()

	if err := handler(conn, msg); err != nil {
		r.emitError(conn, apperrors.HandlerFailed(msg.Type, err))
	}
}

// emitError writes an "error" frame whose payload is exactly
// {"error": <human message>} — the wire contract callers parse, not
// the full AppError/ErrorResponse shape an HTTP adapter would use.
func (r *Registry) emitError(conn *Connection, appErr *apperrors.AppError) {
	_ = conn.Send(Message{
		Type: "error",
		Data: map[string]string{"error": appErr.Message},
	})
}
