// Command demo wires the connection fan-out registry behind a gin HTTP
// server. It is example wiring, not part of the core: the accept loop,
// TLS termination, and auth all live here rather than in internal/fanout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alwianggoro/excore/internal/fanout"
	"github.com/alwianggoro/excore/internal/logger"
	"github.com/alwianggoro/excore/internal/metrics"
	"github.com/alwianggoro/excore/internal/mirror"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type server struct {
	registry *fanout.Registry
	metrics  *metrics.Exporter
	mirror   *mirror.Mirror
	opts     fanout.Options
	log      *zerolog.Logger
}

func main() {
	configPath := flag.String("config", "", "path to a demo config YAML file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	logger.Initialize(*logLevel, true)
	log := logger.GetLogger()

	cfg, err := loadDemoConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("failed to load demo config")
	}

	opts := cfg.registryOptions()
	registry := fanout.NewRegistry(opts)

	mir := mirror.New(cfg.mirrorConfig())
	registry.SetMirror(mir)

	exporter := metrics.New(cfg.metricsConfig(), registry)
	exporter.Start()

	s := &server{
		registry: registry,
		metrics:  exporter,
		mirror:   mir,
		opts:     opts,
		log:      log,
	}
	s.registerHandlers()

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/sse/:channel", s.handleSSE)
	router.GET("/ws/:channel", s.handleWS)
	router.GET("/healthz", s.handleHealth)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      0, // SSE/WS connections are long-lived
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("demo server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("demo server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server forced to shutdown")
	}

	registry.CloseAll(1001, "server shutting down")
	exporter.Stop()
	mir.Close()
}

// registerHandlers wires a couple of example inbound WS message types
// so the demo is runnable end to end without a caller bringing its own
// handler set.
func (s *server) registerHandlers() {
	s.registry.OnMessage("ping", func(conn *fanout.Connection, msg fanout.InboundMessage) error {
		return conn.Send(fanout.Message{Type: "pong", ID: msg.ID})
	})

	s.registry.OnMessage("echo", func(conn *fanout.Connection, msg fanout.InboundMessage) error {
		var payload interface{}
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				return err
			}
		}
		return conn.Send(fanout.Message{Type: "echo", ID: msg.ID, Data: payload})
	})
}

func (s *server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connections": s.registry.GetConnectionCount(),
	})
}
