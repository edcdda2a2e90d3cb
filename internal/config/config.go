// Package config loads client-binding configuration from the
// environment. A .env file is honored in development; real environment
// variables always win.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config carries everything a process embedding the bindings needs:
// where the session server lives, how cookies and storage keys are
// namespaced, and which durable storage backend to use.
type Config struct {
	// APIURL is the base URL of the session server, e.g.
	// https://app.example.com.
	APIURL string `env:"BLITZ_API_URL" envDefault:"http://localhost:3000"`

	// CookiePrefix namespaces cookies and storage keys. Empty means
	// the default prefix.
	CookiePrefix string `env:"BLITZ_COOKIE_PREFIX"`

	// Storage selects the durable storage backend: memory, file, or
	// redis.
	Storage string `env:"BLITZ_STORAGE" envDefault:"memory"`

	// StoragePath is the backing directory for the file backend.
	StoragePath string `env:"BLITZ_STORAGE_PATH" envDefault:".blitz-session"`

	// PollInterval is the file backend's change-detection interval.
	PollInterval time.Duration `env:"BLITZ_POLL_INTERVAL" envDefault:"250ms"`

	Redis RedisConfig `envPrefix:"BLITZ_REDIS_"`
}

// RedisConfig configures the redis storage backend.
type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// Load reads a .env file when present, then parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate applies guardrails to values loaded from the environment.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BLITZ_API_URL %q is not an absolute URL", c.APIURL)
	}
	switch c.Storage {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("BLITZ_STORAGE %q is not one of memory, file, redis", c.Storage)
	}
	if c.Storage == "file" && c.StoragePath == "" {
		return errors.New("BLITZ_STORAGE_PATH is required for file storage")
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	return nil
}
