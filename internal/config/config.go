package config

import (
	"fmt"
	"os"
	"time"
)

const (
	defaultHTTPAddr        = "127.0.0.1:8080"
	defaultShutdownTimeout = 5 * time.Second
	defaultLedgerPath      = "mcpbridge.db"
)

// Config controls HTTP boot, shutdown, and stream behavior.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
	AuthToken       string
	LedgerPath      string

	// StreamIdleTimeout bounds how long an open stream session waits
	// between published messages. Zero disables the bound.
	StreamIdleTimeout time.Duration
}

// Load reads runtime configuration from environment variables.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:        defaultHTTPAddr,
		ShutdownTimeout: defaultShutdownTimeout,
		LedgerPath:      defaultLedgerPath,
	}

	if addr := os.Getenv("MCPBRIDGE_HTTP_ADDR"); addr != "" {
		cfg.HTTPAddr = addr
	}

	if timeout := os.Getenv("MCPBRIDGE_SHUTDOWN_TIMEOUT"); timeout != "" {
		parsed, err := time.ParseDuration(timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse MCPBRIDGE_SHUTDOWN_TIMEOUT: %w", err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("parse MCPBRIDGE_SHUTDOWN_TIMEOUT: value must be > 0")
		}
		cfg.ShutdownTimeout = parsed
	}

	if token := os.Getenv("MCPBRIDGE_AUTH_TOKEN"); token != "" {
		cfg.AuthToken = token
	}

	if path := os.Getenv("MCPBRIDGE_LEDGER_PATH"); path != "" {
		cfg.LedgerPath = path
	}

	if timeout := os.Getenv("MCPBRIDGE_STREAM_IDLE_TIMEOUT"); timeout != "" {
		parsed, err := time.ParseDuration(timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse MCPBRIDGE_STREAM_IDLE_TIMEOUT: %w", err)
		}
		if parsed < 0 {
			return Config{}, fmt.Errorf("parse MCPBRIDGE_STREAM_IDLE_TIMEOUT: value must be >= 0")
		}
		cfg.StreamIdleTimeout = parsed
	}

	return cfg, nil
}

// Validate checks invariants the app layer depends on.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("config: empty HTTPAddr")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("config: shutdown timeout must be > 0")
	}
	if c.LedgerPath == "" {
		return fmt.Errorf("config: empty LedgerPath")
	}
	if c.StreamIdleTimeout < 0 {
		return fmt.Errorf("config: stream idle timeout must be >= 0")
	}
	return nil
}
