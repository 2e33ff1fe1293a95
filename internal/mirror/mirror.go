// Package mirror optionally republishes fan-out registry broadcast and
// channel frames onto NATS, letting an external layer observe or
// cross-process fan out what the registry already delivered in-process.
// It is a passive write-only hook: the registry never reads back from
// NATS, and a disabled or unreachable mirror never affects delivery.
package mirror

import (
	"fmt"
	"time"

	"github.com/alwianggoro/excore/internal/logger"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Config configures the broadcast mirror. A zero-value URL (the
// default) disables the mirror entirely.
type Config struct {
	URL           string
	SubjectPrefix string
}

// DefaultConfig returns a disabled mirror configuration with the
// documented subject prefix.
func DefaultConfig() Config {
	return Config{SubjectPrefix: "fanout"}
}

type frame struct {
	subject string
	data    []byte
}

// Mirror republishes frames onto NATS. The zero-value-safe disabled
// case (empty URL, or a failed connection) makes every method a no-op,
// so callers never need to nil-check before using one.
type Mirror struct {
	conn   *nats.Conn
	cfg    Config
	frames chan frame

	stopCh chan struct{}
	log    *zerolog.Logger
}

// New connects to NATS per cfg. If cfg.URL is empty or the connection
// attempt fails, New logs a warning and returns a disabled Mirror whose
// methods are all no-ops — it never returns an error, because an
// unavailable mirror must never block the registry's construction.
func New(cfg Config) *Mirror {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "fanout"
	}
	log := logger.Mirror()

	if cfg.URL == "" {
		return &Mirror{cfg: cfg, log: log}
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("excore-fanout-mirror"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(10),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats mirror connection error")
			}
		}),
	)
	if err != nil {
		log.Warn().Err(err).Str("url", cfg.URL).Msg("failed to connect broadcast mirror, mirror disabled")
		return &Mirror{cfg: cfg, log: log}
	}

	m := &Mirror{
		conn:   conn,
		cfg:    cfg,
		frames: make(chan frame, 256),
		stopCh: make(chan struct{}),
		log:    log,
	}
	go m.run()
	return m
}

func (m *Mirror) run() {
	for {
		select {
		case f := <-m.frames:
			if err := m.conn.Publish(f.subject, f.data); err != nil {
				m.log.Warn().Err(err).Str("subject", f.subject).Msg("failed to mirror frame")
			}
		case <-m.stopCh:
			return
		}
	}
}

// MirrorBroadcast best-effort republishes a broadcast frame. Never
// blocks the caller: a full buffer drops the frame and logs a warning.
func (m *Mirror) MirrorBroadcast(data []byte) {
	m.publish(m.cfg.SubjectPrefix+".broadcast", data)
}

// MirrorChannel best-effort republishes a channel frame.
func (m *Mirror) MirrorChannel(channel string, data []byte) {
	m.publish(fmt.Sprintf("%s.channel.%s", m.cfg.SubjectPrefix, channel), data)
}

func (m *Mirror) publish(subject string, data []byte) {
	if m.conn == nil {
		return
	}
	select {
	case m.frames <- frame{subject: subject, data: data}:
	default:
		m.log.Warn().Str("subject", subject).Msg("mirror buffer full, dropping frame")
	}
}

// Close stops the mirror and closes its NATS connection. A no-op on a
// disabled mirror.
func (m *Mirror) Close() {
	if m.conn == nil {
		return
	}
	close(m.stopCh)
	m.conn.Close()
}
