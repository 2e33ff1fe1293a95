package main

import (
	"os"
	"time"

	"github.com/alwianggoro/excore/internal/fanout"
	"github.com/alwianggoro/excore/internal/metrics"
	"github.com/alwianggoro/excore/internal/mirror"
	"gopkg.in/yaml.v3"
)

// demoConfig is the YAML shape the demo binary loads at startup.
// Durations are expressed in milliseconds to sidestep yaml.v3's lack
// of native time.Duration string parsing.
type demoConfig struct {
	Addr string `yaml:"addr"`

	HeartbeatIntervalMs   int `yaml:"heartbeatIntervalMs"`
	ConnectionTimeoutMs   int `yaml:"connectionTimeoutMs"`
	MaxConnectionsPerUser int `yaml:"maxConnectionsPerUser"`
	MaxMessageSize        int `yaml:"maxMessageSize"`

	MetricsRedisAddr  string `yaml:"metricsRedisAddr"`
	MetricsIntervalMs int    `yaml:"metricsIntervalMs"`

	MirrorNATSURL       string `yaml:"mirrorNatsUrl"`
	MirrorSubjectPrefix string `yaml:"mirrorSubjectPrefix"`
}

func defaultDemoConfig() demoConfig {
	opts := fanout.DefaultOptions()
	m := metrics.DefaultConfig()
	mr := mirror.DefaultConfig()
	return demoConfig{
		Addr:                  ":8080",
		HeartbeatIntervalMs:   int(opts.HeartbeatInterval / time.Millisecond),
		ConnectionTimeoutMs:   int(opts.ConnectionTimeout / time.Millisecond),
		MaxConnectionsPerUser: opts.MaxConnectionsPerUser,
		MaxMessageSize:        opts.MaxMessageSize,
		MetricsIntervalMs:     int(m.Interval / time.Millisecond),
		MirrorSubjectPrefix:   mr.SubjectPrefix,
	}
}

// loadDemoConfig reads YAML from path over top of the defaults. A
// missing file is not an error — the demo runs fine unconfigured.
func loadDemoConfig(path string) (demoConfig, error) {
	cfg := defaultDemoConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c demoConfig) registryOptions() fanout.Options {
	return fanout.Options{
		HeartbeatInterval:     time.Duration(c.HeartbeatIntervalMs) * time.Millisecond,
		ConnectionTimeout:     time.Duration(c.ConnectionTimeoutMs) * time.Millisecond,
		MaxConnectionsPerUser: c.MaxConnectionsPerUser,
		MaxMessageSize:        c.MaxMessageSize,
	}
}

func (c demoConfig) metricsConfig() metrics.Config {
	cfg := metrics.DefaultConfig()
	cfg.Addr = c.MetricsRedisAddr
	if c.MetricsIntervalMs > 0 {
		cfg.Interval = time.Duration(c.MetricsIntervalMs) * time.Millisecond
	}
	return cfg
}

func (c demoConfig) mirrorConfig() mirror.Config {
	cfg := mirror.DefaultConfig()
	cfg.URL = c.MirrorNATSURL
	if c.MirrorSubjectPrefix != "" {
		cfg.SubjectPrefix = c.MirrorSubjectPrefix
	}
	return cfg
}
