// Package config loads the process configuration from PRODCON_*
// environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	log "github.com/helinwang/log15"
	"github.com/helinwang/prodcon/pkg/ledger"
)

// Config is the process configuration. Command line flags override
// the values read from the environment.
type Config struct {
	Signer           string        `env:"PRODCON_SIGNER"          envDefault:"secp256k1"`
	Credential       string        `env:"PRODCON_CREDENTIAL"`
	DataDir          string        `env:"PRODCON_DATA_DIR"`
	ExecutionTimeout time.Duration `env:"PRODCON_TIMEOUT"         envDefault:"30s"`
	LogLevel         string        `env:"PRODCON_LOG_LEVEL"       envDefault:"info"`
	StateCacheSize   int           `env:"PRODCON_STATE_CACHE"     envDefault:"128"`
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Scheme returns the configured signature scheme.
func (c Config) Scheme() ledger.Scheme {
	return ledger.Scheme(c.Signer)
}

// Level returns the configured log level.
func (c Config) Level() (log.Lvl, error) {
	return log.LvlFromString(c.LogLevel)
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	switch c.Scheme() {
	case ledger.Secp256k1, ledger.BLS:
	default:
		return fmt.Errorf("unknown signer scheme %q", c.Signer)
	}

	if c.ExecutionTimeout <= 0 {
		return fmt.Errorf("execution timeout must be positive, got %v", c.ExecutionTimeout)
	}

	if c.StateCacheSize <= 0 {
		return fmt.Errorf("state cache size must be positive, got %d", c.StateCacheSize)
	}

	if _, err := c.Level(); err != nil {
		return err
	}

	return nil
}
