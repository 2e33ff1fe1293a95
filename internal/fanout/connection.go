package fanout

import (
	"errors"
	"sync"
	"time"

	"github.com/alwianggoro/excore/internal/apperrors"
)

// TransportKind distinguishes the two wire protocols a Connection can
// speak. Both share the same Connection Record shape; only encoding
// and the presence of inbound dispatch differ.
type TransportKind int

const (
	TransportSSE TransportKind = iota
	TransportWS
)

func (k TransportKind) String() string {
	switch k {
	case TransportSSE:
		return "sse"
	case TransportWS:
		return "ws"
	default:
		return "unknown"
	}
}

var errConnectionClosed = errors.New("connection closed")

// deregistrar is the single-method capability a Connection holds back
// onto its owning Registry. It exists so a Connection never needs a
// direct pointer to the Registry type, avoiding the registry <-> record
// cyclic reference spec.md §9 calls out by name.
type deregistrar interface {
	deindex(id string)
}

// Connection is a live channel to one client, reachable over exactly
// one transport. sendRaw and closeRaw are supplied by the transport
// layer (an HTTP ResponseWriter flush, a *websocket.Conn write) at
// registration time; the registry and publisher never see them.
type Connection struct {
	ID          string
	UserID      string
	Channel     string
	Transport   TransportKind
	ConnectedAt time.Time

	sendRaw  func([]byte) error
	closeRaw func(code int, reason string) error

	sendLock  sync.Mutex
	closeOnce sync.Once
	aliveMu   sync.RWMutex
	alive     bool

	registry deregistrar
}

func newConnection(
	id, userID, channel string,
	transport TransportKind,
	sendRaw func([]byte) error,
	closeRaw func(code int, reason string) error,
	reg deregistrar,
) *Connection {
	return &Connection{
		ID:          id,
		UserID:      userID,
		Channel:     channel,
		Transport:   transport,
		ConnectedAt: time.Now(),
		sendRaw:     sendRaw,
		closeRaw:    closeRaw,
		alive:       true,
		registry:    reg,
	}
}

// IsAlive reports whether the connection has not yet been closed.
func (c *Connection) IsAlive() bool {
	c.aliveMu.RLock()
	defer c.aliveMu.RUnlock()
	return c.alive
}

// Send encodes msg for this connection's transport and writes it,
// serialized against any concurrent Send on the same connection.
// A write failure marks the connection dead and removes it from the
// registry before returning the error; the caller never needs to
// call Close itself on a failed Send.
func (c *Connection) Send(msg Message) error {
	var frame []byte
	var err error
	switch c.Transport {
	case TransportSSE:
		frame, err = EncodeSSE(msg)
	default:
		frame, err = EncodeWS(msg)
	}
	if err != nil {
		return err // already an *apperrors.AppError from the encoder
	}

	c.sendLock.Lock()
	defer c.sendLock.Unlock()

	if !c.IsAlive() {
		return apperrors.TransportWriteFailed(c.ID, errConnectionClosed)
	}

	if err := c.sendRaw(frame); err != nil {
		// sendLock is already held here, so close directly against
		// closeRaw rather than re-entering through Close.
		c.closeLocked(0, "")
		return apperrors.TransportWriteFailed(c.ID, err)
	}
	return nil
}

// Close marks the connection dead, invokes closeRaw at most once, and
// deregisters it. Safe to call any number of times, concurrently, from
// any goroutine (the transport's read loop, a failed Send, or an
// explicit registry removal) — only the first call has any effect.
// Serialized against Send so closeRaw never races a concurrent
// transport write on the same underlying connection.
func (c *Connection) Close(code int, reason string) {
	c.sendLock.Lock()
	defer c.sendLock.Unlock()
	c.closeLocked(code, reason)
}

// closeLocked does the actual work; callers must already hold sendLock.
func (c *Connection) closeLocked(code int, reason string) {
	c.closeOnce.Do(func() {
		c.aliveMu.Lock()
		c.alive = false
		c.aliveMu.Unlock()

		if c.closeRaw != nil {
			_ = c.closeRaw(code, reason) // best-effort, errors swallowed
		}
		if c.registry != nil {
			c.registry.deindex(c.ID)
		}
	})
}
