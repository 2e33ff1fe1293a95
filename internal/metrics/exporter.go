// Package metrics periodically exports read-only registry counts to
// Redis so an external dashboard or alerting layer can observe fan-out
// load without touching the registry itself. It never feeds back into
// delivery: every tick only reads already-public registry methods.
package metrics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/alwianggoro/excore/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Config configures the snapshot exporter. A zero-value Addr (the
// default) disables the exporter entirely.
type Config struct {
	Addr     string
	Password string
	DB       int
	Interval time.Duration
	Key      string
}

// DefaultConfig returns a disabled exporter configuration with the
// documented tick interval and key.
func DefaultConfig() Config {
	return Config{
		Interval: 10 * time.Second,
		Key:      "excore:registry:snapshot",
	}
}

// Source is the read-only subset of *fanout.Registry the exporter
// needs. Defined here rather than imported so this package never
// depends on internal/fanout.
type Source interface {
	GetConnectionCount() int
}

// Snapshot is the JSON blob written to Redis on each tick.
type Snapshot struct {
	Connections int   `json:"connections"`
	Timestamp   int64 `json:"timestamp"`
}

// Exporter pushes periodic Snapshots of a Source's connection count to
// Redis. The zero-Addr disabled case makes Start/Stop safe no-ops.
type Exporter struct {
	client *redis.Client
	cfg    Config
	source Source

	stopCh chan struct{}
	log    *zerolog.Logger
}

// New constructs an Exporter for cfg. If cfg.Addr is empty the
// exporter is disabled: Start is a no-op and no Redis connection is
// ever attempted.
func New(cfg Config, source Source) *Exporter {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Key == "" {
		cfg.Key = "excore:registry:snapshot"
	}
	log := logger.Metrics()

	if cfg.Addr == "" {
		return &Exporter{cfg: cfg, source: source, log: log}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	})

	return &Exporter{
		client: client,
		cfg:    cfg,
		source: source,
		stopCh: make(chan struct{}),
		log:    log,
	}
}

// Start begins the periodic export loop on its own goroutine. A no-op
// on a disabled exporter.
func (e *Exporter) Start() {
	if e.client == nil {
		return
	}
	go e.run()
}

func (e *Exporter) run() {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.tick()
		case <-e.stopCh:
			return
		}
	}
}

func (e *Exporter) tick() {
	snap := Snapshot{
		Connections: e.source.GetConnectionCount(),
		Timestamp:   time.Now().UnixMilli(),
	}

	data, err := json.Marshal(snap)
	if err != nil {
		e.log.Warn().Err(err).Msg("failed to marshal registry snapshot")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ttl := e.cfg.Interval + 5*time.Second
	if err := e.client.Set(ctx, e.cfg.Key, data, ttl).Err(); err != nil {
		e.log.Warn().Err(err).Msg("failed to push registry snapshot to redis, skipping tick")
	}
}

// Stop halts the export loop and closes the Redis client. A no-op on a
// disabled exporter.
func (e *Exporter) Stop() {
	if e.client == nil {
		return
	}
	close(e.stopCh)
	_ = e.client.Close()
}
