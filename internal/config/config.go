// Package config loads server configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime settings for the server process.
type Config struct {
	// Addr is the listen address for the HTTP server.
	Addr string `env:"ADDR" envDefault:":8080"`

	// DBPath is the path to the SQLite database file.
	DBPath string `env:"DB_PATH" envDefault:"./data/comanda.db"`

	// JWTSecret signs member, staff and pay-link tokens.
	JWTSecret string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`

	// TokenTTL is how long member and staff access tokens stay valid.
	TokenTTL time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	// PayLinkTTL is how long a split-payment link stays valid after the
	// split is finalized.
	PayLinkTTL time.Duration `env:"PAY_LINK_TTL" envDefault:"2h"`

	// RedisAddr, when set, enables publishing fan-out events to Redis so
	// other instances (or a websocket gateway) can deliver them.
	RedisAddr string `env:"REDIS_ADDR"`
}

// Load parses the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
