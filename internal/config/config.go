// Package config loads the lattice server configuration from YAML or JSON,
// with environment overrides for the values that differ per deployment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/dispatch"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/session"
)

// Environment variables that override file values.
const (
	EnvLogLevel  = "LATTICE_LOG_LEVEL"
	EnvHTTPAddr  = "LATTICE_HTTP_ADDR"
	EnvRedisAddr = "LATTICE_REDIS_ADDR"
)

// Transport kinds.
const (
	TransportWebsocket = "websocket"
	TransportRedis     = "redis"
	TransportStdio     = "stdio"
)

// Duration is a time.Duration that decodes from strings like "2s" in YAML and JSON.
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) set(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML accepts a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.set(node.Value)
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalJSON accepts a duration string.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	return d.set(s)
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Redis holds the Redis connection used by the redis transport and the session locker.
type Redis struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	Prefix   string `yaml:"prefix" json:"prefix"`
}

// Transport selects how sessions reach their peer.
type Transport struct {
	Kind  string `yaml:"kind" json:"kind"`
	Redis Redis  `yaml:"redis" json:"redis"`
}

// HTTP configures the HTTP listener.
type HTTP struct {
	Addr string `yaml:"addr" json:"addr"`
}

// Session configures session ownership.
type Session struct {
	LockTTL Duration `yaml:"lock_ttl" json:"lock_ttl"`
}

// Config is the server configuration.
type Config struct {
	LogLevel         string    `yaml:"log_level" json:"log_level"`
	LogFormat        string    `yaml:"log_format" json:"log_format"`
	RequestTimeout   Duration  `yaml:"request_timeout" json:"request_timeout"`
	QueueSize        int       `yaml:"queue_size" json:"queue_size"`
	MaxEnvelopeBytes int       `yaml:"max_envelope_bytes" json:"max_envelope_bytes"`
	RemoteKinds      []string  `yaml:"remote_kinds" json:"remote_kinds"`
	HTTP             HTTP      `yaml:"http" json:"http"`
	Transport        Transport `yaml:"transport" json:"transport"`
	Session          Session   `yaml:"session" json:"session"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        logging.FormatText,
		RequestTimeout:   Duration(dispatch.DefaultRequestTimeout),
		QueueSize:        dispatch.DefaultQueueSize,
		MaxEnvelopeBytes: domain.DefaultMaxEnvelopeBytes,
		RemoteKinds:      append([]string(nil), session.DefaultRemoteKinds...),
		HTTP:             HTTP{Addr: ":8080"},
		Transport: Transport{
			Kind:  TransportWebsocket,
			Redis: Redis{Addr: "localhost:6379", Prefix: "lattice:"},
		},
		Session: Session{LockTTL: Duration(session.DefaultLockTTL)},
	}
}

// Load reads a configuration file (YAML or JSON) on top of the defaults and applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := decode(path, data, cfg); err != nil {
				return nil, err
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvHTTPAddr); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Transport.Redis.Addr = v
	}
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive, got %d", c.QueueSize)
	}
	if c.MaxEnvelopeBytes <= 0 {
		return fmt.Errorf("max_envelope_bytes must be positive, got %d", c.MaxEnvelopeBytes)
	}
	if c.Session.LockTTL <= 0 {
		return fmt.Errorf("session.lock_ttl must be positive, got %s", c.Session.LockTTL)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("unknown log_format %q", c.LogFormat)
	}
	switch c.Transport.Kind {
	case TransportWebsocket, TransportStdio:
	case TransportRedis:
		if c.Transport.Redis.Addr == "" {
			return fmt.Errorf("transport.redis.addr is required for the redis transport")
		}
	default:
		return fmt.Errorf("unknown transport kind %q", c.Transport.Kind)
	}
	return nil
}
