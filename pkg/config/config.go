// Package config loads node settings from defaults and MASAAR_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/masaar/masaar-node/pkg/reliability"
)

var (
	ErrInvalidConfig = errors.New("invalid config")
)

// Config holds every runtime setting of a node
type Config struct {
	NodeID string `env:"MASAAR_NODE_ID" json:"node_id,omitempty"`

	API APIConfig `json:"api"`

	Reliability ReliabilityConfig `json:"reliability"`
}

// APIConfig configures the HTTP bridge
type APIConfig struct {
	Host       string `env:"MASAAR_API_HOST"       json:"host"`
	Port       int    `env:"MASAAR_API_PORT"       json:"port"`
	EnableCORS bool   `env:"MASAAR_CORS"           json:"enable_cors"`
	RateLimit  int    `env:"MASAAR_RATE_LIMIT"     json:"rate_limit"` // Requests per minute per client IP
}

// ReliabilityConfig configures acknowledgement tracking and dedup
type ReliabilityConfig struct {
	AckTimeout    time.Duration `env:"MASAAR_ACK_TIMEOUT"     json:"ack_timeout"`
	RetryBase     time.Duration `env:"MASAAR_RETRY_BASE"      json:"retry_base"`
	RetryMax      time.Duration `env:"MASAAR_RETRY_MAX"       json:"retry_max"`
	MaxAttempts   int           `env:"MASAAR_MAX_ATTEMPTS"    json:"max_attempts"`
	RetryInterval time.Duration `env:"MASAAR_RETRY_INTERVAL"  json:"retry_interval"` // Resend scan period
	DedupEntries  int           `env:"MASAAR_DEDUP_ENTRIES"   json:"dedup_entries"`
}

// DefaultConfig returns the built-in settings
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Host:       "",
			Port:       8080,
			EnableCORS: true,
			RateLimit:  100,
		},
		Reliability: ReliabilityConfig{
			AckTimeout:    reliability.DefaultAckTimeout,
			RetryBase:     reliability.DefaultBaseDelay,
			RetryMax:      reliability.DefaultMaxDelay,
			MaxAttempts:   reliability.DefaultMaxAttempts,
			RetryInterval: time.Second,
			DedupEntries:  reliability.DefaultDedupEntries,
		},
	}
}

// Load returns the defaults overridden by the process environment
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom is Load with an explicit environment instead of the process one
func LoadFrom(environ map[string]string) (*Config, error) {
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	cfg := DefaultConfig()

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the node cannot run with
func (c *Config) Validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("%w: api port %d out of range", ErrInvalidConfig, c.API.Port)
	}
	if c.API.RateLimit <= 0 {
		return fmt.Errorf("%w: rate limit must be positive", ErrInvalidConfig)
	}

	r := c.Reliability
	switch {
	case r.AckTimeout <= 0:
		return fmt.Errorf("%w: ack timeout must be positive", ErrInvalidConfig)
	case r.RetryBase <= 0:
		return fmt.Errorf("%w: retry base delay must be positive", ErrInvalidConfig)
	case r.RetryMax < r.RetryBase:
		return fmt.Errorf("%w: retry max delay %v below base %v", ErrInvalidConfig, r.RetryMax, r.RetryBase)
	case r.MaxAttempts <= 0:
		return fmt.Errorf("%w: max attempts must be positive", ErrInvalidConfig)
	case r.RetryInterval <= 0:
		return fmt.Errorf("%w: retry interval must be positive", ErrInvalidConfig)
	case r.DedupEntries <= 0:
		return fmt.Errorf("%w: dedup entries must be positive", ErrInvalidConfig)
	}

	return nil
}

// Addr returns the API listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// TrackerConfig converts the reliability settings for reliability.NewTracker
func (c *Config) TrackerConfig() reliability.TrackerConfig {
	return reliability.TrackerConfig{
		AckTimeout:  c.Reliability.AckTimeout,
		BaseDelay:   c.Reliability.RetryBase,
		MaxDelay:    c.Reliability.RetryMax,
		MaxAttempts: c.Reliability.MaxAttempts,
	}
}
