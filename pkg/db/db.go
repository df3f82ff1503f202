// Package db provides PostgreSQL connection, health and migration utilities
// for the skyfeed stores.
package db

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/otherjamesbrown/skyfeed/config"
	sferrors "github.com/otherjamesbrown/skyfeed/pkg/errors"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	// URL, when set, is used verbatim and the discrete fields are ignored.
	URL string

	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultConfig returns a Config for a local development database.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5432,
		Database:        "skyfeed",
		User:            "skyfeed",
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// ConfigFromEnv returns DefaultConfig with the environment applied.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overlays environment variables onto c.
// Environment variables:
//   - SKYFEED_DATABASE_URL: full connection URL, overrides everything below
//   - SKYFEED_DB_HOST, SKYFEED_DB_PORT, SKYFEED_DB_NAME, SKYFEED_DB_USER
//   - SKYFEED_DB_PASSWORD
//   - SKYFEED_DB_SSLMODE (default: disable)
//   - SKYFEED_DB_MAX_CONNS, SKYFEED_DB_MIN_CONNS
func (c *Config) ApplyEnv() {
	if u := os.Getenv("SKYFEED_DATABASE_URL"); u != "" {
		c.URL = u
	}
	if host := os.Getenv("SKYFEED_DB_HOST"); host != "" {
		c.Host = host
	}
	if port := os.Getenv("SKYFEED_DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Port = p
		}
	}
	if database := os.Getenv("SKYFEED_DB_NAME"); database != "" {
		c.Database = database
	}
	if user := os.Getenv("SKYFEED_DB_USER"); user != "" {
		c.User = user
	}
	if password := os.Getenv("SKYFEED_DB_PASSWORD"); password != "" {
		c.Password = password
	}
	if sslmode := os.Getenv("SKYFEED_DB_SSLMODE"); sslmode != "" {
		c.SSLMode = sslmode
	}
	if v := os.Getenv("SKYFEED_DB_MAX_CONNS"); v != "" {
		if mc, err := strconv.ParseInt(v, 10, 32); err == nil {
			c.MaxConns = int32(mc)
		}
	}
	if v := os.Getenv("SKYFEED_DB_MIN_CONNS"); v != "" {
		if mc, err := strconv.ParseInt(v, 10, 32); err == nil {
			c.MinConns = int32(mc)
		}
	}
}

// ConfigFromSettings merges connection settings: defaults, then the YAML
// postgres section, then SKYFEED_DB_* from the environment.
func ConfigFromSettings(pc config.PostgresConfig) *Config {
	cfg := DefaultConfig()
	if pc.Host != "" {
		cfg.Host = pc.Host
	}
	if pc.Port != 0 {
		cfg.Port = pc.Port
	}
	if pc.Database != "" {
		cfg.Database = pc.Database
	}
	if pc.User != "" {
		cfg.User = pc.User
	}
	if pc.SSLMode != "" {
		cfg.SSLMode = pc.SSLMode
	}
	cfg.ApplyEnv()
	return cfg
}

// ConnectionString builds a PostgreSQL connection URL from the config.
func (c *Config) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Validate checks that the config can produce a usable connection string.
func (c *Config) Validate() error {
	if c.MaxConns < c.MinConns {
		return fmt.Errorf("%w: max connections (%d) must be >= min connections (%d)", sferrors.ErrValidation, c.MaxConns, c.MinConns)
	}
	if c.URL != "" {
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("%w: database host is required", sferrors.ErrValidation)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid database port: %d", sferrors.ErrValidation, c.Port)
	}
	if c.Database == "" {
		return fmt.Errorf("%w: database name is required", sferrors.ErrValidation)
	}
	if c.User == "" {
		return fmt.Errorf("%w: database user is required", sferrors.ErrValidation)
	}
	return nil
}

// Connect creates a connection pool and verifies it with a ping.
// The caller is responsible for calling pool.Close() when done.
func Connect(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// ConnectWithRetry calls Connect up to maxAttempts times, waiting retryDelay between attempts.
func ConnectWithRetry(ctx context.Context, cfg *Config, maxAttempts int, retryDelay time.Duration) (*pgxpool.Pool, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		pool, err := Connect(ctx, cfg)
		if err == nil {
			return pool, nil
		}
		lastErr = err

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxAttempts, lastErr)
}

// Close closes pool if it is not nil.
func Close(pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
	}
}
