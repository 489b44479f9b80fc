package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Terminal  TerminalConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8040"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// TerminalConfig holds PTY session configuration.
type TerminalConfig struct {
	Shell           string        `envconfig:"TERM_SHELL" default:""`
	MaxSessions     int           `envconfig:"TERM_MAX_SESSIONS" default:"10"`
	IdleTimeout     time.Duration `envconfig:"TERM_IDLE_TIMEOUT" default:"30m"`
	SweepInterval   time.Duration `envconfig:"TERM_SWEEP_INTERVAL" default:"60s"`
	RetryAttempts   int           `envconfig:"TERM_RETRY_ATTEMPTS" default:"3"`
	RetryBaseDelay  time.Duration `envconfig:"TERM_RETRY_BASE_DELAY" default:"100ms"`
	OutputBufferLen int           `envconfig:"TERM_OUTPUT_BUFFER_LEN" default:"1000"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8040",
			Host: "0.0.0.0",
		},
		Terminal: TerminalConfig{
			Shell:           "",
			MaxSessions:     10,
			IdleTimeout:     30 * time.Minute,
			SweepInterval:   60 * time.Second,
			RetryAttempts:   3,
			RetryBaseDelay:  100 * time.Millisecond,
			OutputBufferLen: 1000,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
