package db

import (
	"context"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/skyfeed/config"
	sferrors "github.com/otherjamesbrown/skyfeed/pkg/errors"
)

// testPool connects to SKYFEED_TEST_DATABASE_URL or skips the test.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("SKYFEED_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SKYFEED_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := Connect(ctx, &Config{URL: dsn})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "skyfeed", cfg.Database)
	assert.Equal(t, "skyfeed", cfg.User)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.NoError(t, cfg.Validate())
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("SKYFEED_DATABASE_URL", "")
	t.Setenv("SKYFEED_DB_HOST", "db.internal")
	t.Setenv("SKYFEED_DB_PORT", "5433")
	t.Setenv("SKYFEED_DB_NAME", "feeds")
	t.Setenv("SKYFEED_DB_USER", "bot")
	t.Setenv("SKYFEED_DB_PASSWORD", "s3cret")
	t.Setenv("SKYFEED_DB_SSLMODE", "require")
	t.Setenv("SKYFEED_DB_MAX_CONNS", "20")
	t.Setenv("SKYFEED_DB_MIN_CONNS", "2")

	cfg := ConfigFromEnv()

	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 5433, cfg.Port)
	assert.Equal(t, "feeds", cfg.Database)
	assert.Equal(t, "bot", cfg.User)
	assert.Equal(t, "s3cret", cfg.Password)
	assert.Equal(t, "require", cfg.SSLMode)
	assert.Equal(t, int32(20), cfg.MaxConns)
	assert.Equal(t, int32(2), cfg.MinConns)
}

func TestConfigFromEnv_InvalidNumbersIgnored(t *testing.T) {
	t.Setenv("SKYFEED_DB_PORT", "not-a-port")
	t.Setenv("SKYFEED_DB_MAX_CONNS", "lots")

	cfg := ConfigFromEnv()
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, DefaultConfig().MaxConns, cfg.MaxConns)
}

func TestConnectionString(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "p@ss word"

	u, err := url.Parse(cfg.ConnectionString())
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "localhost:5432", u.Host)
	assert.Equal(t, "/skyfeed", u.Path)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss word", pw)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
	assert.Equal(t, "10", u.Query().Get("connect_timeout"))

	cfg.URL = "postgres://x@y/z"
	assert.Equal(t, "postgres://x@y/z", cfg.ConnectionString())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"missing host", func(c *Config) { c.Host = "" }},
		{"port zero", func(c *Config) { c.Port = 0 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"missing database", func(c *Config) { c.Database = "" }},
		{"missing user", func(c *Config) { c.User = "" }},
		{"min above max", func(c *Config) { c.MinConns = 50 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, sferrors.IsValidation(err))
		})
	}

	t.Run("url skips discrete fields", func(t *testing.T) {
		cfg := &Config{URL: "postgres://localhost/skyfeed"}
		assert.NoError(t, cfg.Validate())
	})
}

func TestConnect_InvalidConfig(t *testing.T) {
	_, err := Connect(context.Background(), &Config{})
	require.Error(t, err)
	assert.True(t, sferrors.IsValidation(err))
}

func TestConnectWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := DefaultConfig()
	cfg.Port = 1
	cfg.ConnectTimeout = time.Second
	_, err := ConnectWithRetry(ctx, cfg, 3, time.Hour)
	assert.Error(t, err)
}

func TestClose_Nil(t *testing.T) {
	assert.NotPanics(t, func() { Close(nil) })
}

func TestConfigFromSettings_EnvWins(t *testing.T) {
	t.Setenv("SKYFEED_DATABASE_URL", "")
	t.Setenv("SKYFEED_DB_HOST", "")
	t.Setenv("SKYFEED_DB_USER", "from-env")

	cfg := ConfigFromSettings(config.PostgresConfig{
		Host:     "yaml-host",
		Port:     6543,
		Database: "yaml-db",
		User:     "yaml-user",
	})
	assert.Equal(t, "yaml-host", cfg.Host)
	assert.Equal(t, 6543, cfg.Port)
	assert.Equal(t, "yaml-db", cfg.Database)
	assert.Equal(t, "from-env", cfg.User)
}
