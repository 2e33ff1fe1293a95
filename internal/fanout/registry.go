// Package fanout implements the connection fan-out registry shared by
// the SSE and WS brokers: one set of indices, one admission policy, one
// heartbeat scheduler, serving both transports identically.
package fanout

import (
	"sync"

	"github.com/alwianggoro/excore/internal/apperrors"
	"github.com/alwianggoro/excore/internal/logger"
	"github.com/alwianggoro/excore/internal/mirror"
	"github.com/rs/zerolog"
)

// Registry is the single shared index of live connections. It is safe
// for concurrent use; all exported methods may be called from any
// number of goroutines.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	byUser      map[string]map[string]struct{}
	byChannel   map[string]map[string]struct{}

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	opts      Options
	heartbeat *heartbeatScheduler
	mirror    *mirror.Mirror

	log *zerolog.Logger
}

// NewRegistry constructs a Registry and starts its heartbeat scheduler.
// Call CloseAll when done to stop the scheduler and close every
// connection.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		connections: make(map[string]*Connection),
		byUser:      make(map[string]map[string]struct{}),
		byChannel:   make(map[string]map[string]struct{}),
		handlers:    make(map[string]Handler),
		opts:        opts,
		log:         logger.Registry(),
	}
	r.heartbeat = newHeartbeatScheduler(r, opts.HeartbeatInterval)
	r.heartbeat.start()
	return r
}

// SetMirror attaches an optional broadcast mirror. Intended to be
// called once, before the registry starts serving traffic; it is not
// safe to swap mirrors concurrently with Broadcast/SendToChannel calls.
func (r *Registry) SetMirror(m *mirror.Mirror) {
	r.mirror = m
}

// AddConnection admits a new connection under id, userID (optional),
// and channel (optional). Rejects a duplicate id or a userID already
// at MaxConnectionsPerUser atomically — no connection is registered and
// no index is touched on rejection.
func (r *Registry) AddConnection(
	id string,
	transport TransportKind,
	sendRaw func([]byte) error,
	closeRaw func(code int, reason string) error,
	userID, channel string,
) (*Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[id]; exists {
		return nil, apperrors.DuplicateID(id)
	}

	if userID != "" && len(r.byUser[userID]) >= r.opts.MaxConnectionsPerUser {
		return nil, apperrors.QuotaExceeded(userID, r.opts.MaxConnectionsPerUser)
	}

	conn := newConnection(id, userID, channel, transport, sendRaw, closeRaw, r)
	r.connections[id] = conn

	if userID != "" {
		if r.byUser[userID] == nil {
			r.byUser[userID] = make(map[string]struct{})
		}
		r.byUser[userID][id] = struct{}{}
	}
	if channel != "" {
		if r.byChannel[channel] == nil {
			r.byChannel[channel] = make(map[string]struct{})
		}
		r.byChannel[channel][id] = struct{}{}
	}

	r.log.Debug().
		Str("connection_id", id).
		Str("user_id", userID).
		Str("channel", channel).
		Str("transport", transport.String()).
		Msg("connection registered")

	return conn, nil
}

// RemoveConnection deregisters id, invoking its Close so closeRaw fires
// exactly once. Idempotent and never fails: removing an unknown or
// already-removed id is a silent no-op.
func (r *Registry) RemoveConnection(id string) {
	r.mu.RLock()
	conn, exists := r.connections[id]
	r.mu.RUnlock()
	if !exists {
		return
	}
	conn.Close(0, "")
}

// deindex implements deregistrar; only a Connection's own close path
// calls this, after closeRaw has already run.
func (r *Registry) deindex(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, exists := r.connections[id]
	if !exists {
		return
	}
	delete(r.connections, id)

	if conn.UserID != "" {
		if set, ok := r.byUser[conn.UserID]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(r.byUser, conn.UserID)
			}
		}
	}
	if conn.Channel != "" {
		if set, ok := r.byChannel[conn.Channel]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(r.byChannel, conn.Channel)
			}
		}
	}

	r.log.Debug().Str("connection_id", id).Msg("connection deregistered")
}

// GetConnection looks up a connection by id.
func (r *Registry) GetConnection(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.connections[id]
	return conn, ok
}

// GetConnectionCount returns the total number of live connections.
func (r *Registry) GetConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// GetUserConnectionCount returns the number of live connections for userID.
func (r *Registry) GetUserConnectionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}

// GetChannelConnectionCount returns the number of live connections subscribed
// to channel.
func (r *Registry) GetChannelConnectionCount(channel string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byChannel[channel])
}

// CloseAll closes every live connection and stops the heartbeat
// scheduler. Intended for process shutdown; safe to call once.
func (r *Registry) CloseAll(code int, reason string) {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.connections))
	for _, c := range r.connections {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		c.Close(code, reason)
	}

	if r.heartbeat != nil {
		r.heartbeat.stop()
		r.heartbeat = nil
	}
}
