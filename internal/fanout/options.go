package fanout

import "time"

// Options is the immutable configuration for a Registry. The zero value
// is not useful; construct with DefaultOptions and override fields.
type Options struct {
	// HeartbeatInterval is the period of the keep-alive broadcast.
	HeartbeatInterval time.Duration

	// ConnectionTimeout is an advisory idle ceiling reported to callers;
	// the registry does not enforce it.
	ConnectionTimeout time.Duration

	// MaxConnectionsPerUser is the admission quota per non-empty userId.
	MaxConnectionsPerUser int

	// MaxMessageSize is the upper bound, in bytes, on an inbound WS frame.
	MaxMessageSize int
}

// DefaultOptions returns the registry's documented defaults.
func DefaultOptions() Options {
	return Options{
		HeartbeatInterval:     30 * time.Second,
		ConnectionTimeout:     300 * time.Second,
		MaxConnectionsPerUser: 10,
		MaxMessageSize:        1048576,
	}
}
