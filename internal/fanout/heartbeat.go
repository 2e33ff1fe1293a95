package fanout

import (
	"sync"
	"time"

	"github.com/alwianggoro/excore/internal/logger"
	"github.com/rs/zerolog"
)

// heartbeatScheduler broadcasts a keep-alive frame on a fixed interval.
// Each tick is an independent snapshot broadcast — a slow or stuck tick
// never delays or skips the next one; ticks that overlap simply run
// concurrently.
type heartbeatScheduler struct {
	registry *Registry
	interval time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	log *zerolog.Logger
}

func newHeartbeatScheduler(r *Registry, interval time.Duration) *heartbeatScheduler {
	return &heartbeatScheduler{
		registry: r,
		interval: interval,
		stopCh:   make(chan struct{}),
		log:      logger.Heartbeat(),
	}
}

func (h *heartbeatScheduler) start() {
	h.wg.Add(1)
	go h.run()
}

func (h *heartbeatScheduler) run() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			go h.tick()
		case <-h.stopCh:
			return
		}
	}
}

func (h *heartbeatScheduler) tick() {
	msg := Message{
		Type: "heartbeat",
		Data: map[string]int64{"timestamp": time.Now().UnixMilli()},
	}
	count := h.registry.Broadcast(msg)
	h.log.Debug().Int("delivered", count).Msg("heartbeat broadcast")
}

func (h *heartbeatScheduler) stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
	h.wg.Wait()
}
