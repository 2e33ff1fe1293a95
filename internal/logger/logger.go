package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log is the global logger instance.
var Log zerolog.Logger

// Initialize sets up the global logger with configuration.
func Initialize(level string, pretty bool) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	Log = log.With().
		Str("service", "excore").
		Logger()

	Log.Info().
		Str("level", logLevel.String()).
		Bool("pretty", pretty).
		Msg("Logger initialized")
}

// GetLogger returns the global logger instance.
func GetLogger() *zerolog.Logger {
	return &Log
}

// Registry creates a logger for registry admission/lifecycle events.
func Registry() *zerolog.Logger {
	l := Log.With().Str("component", "registry").Logger()
	return &l
}

// Heartbeat creates a logger for heartbeat scheduler events.
func Heartbeat() *zerolog.Logger {
	l := Log.With().Str("component", "heartbeat").Logger()
	return &l
}

// Metrics creates a logger for the metrics snapshot exporter.
func Metrics() *zerolog.Logger {
	l := Log.With().Str("component", "metrics").Logger()
	return &l
}

// Mirror creates a logger for the broadcast mirror.
func Mirror() *zerolog.Logger {
	l := Log.With().Str("component", "mirror").Logger()
	return &l
}
