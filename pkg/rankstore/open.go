package rankstore

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/otherjamesbrown/skyfeed/config"
	"github.com/otherjamesbrown/skyfeed/pkg/db"
	"github.com/otherjamesbrown/skyfeed/pkg/observability"
)

// Options carries the optional collaborators Open wires in.
type Options struct {
	Metrics  *observability.Metrics
	Tracer   *observability.Tracer
	Registry prometheus.Registerer
}

// Conn is an opened store plus the hooks to check and release its backend.
type Conn struct {
	Store

	ping      func(context.Context) error
	close     func() error
	freshness Freshness
}

// Ping reports whether the backend is reachable.
func (c *Conn) Ping(ctx context.Context) error {
	if c.ping == nil {
		return nil
	}
	return c.ping(ctx)
}

// UpdatedAt reports when window was last written. ok is false when the
// backend does not track write times or has no record for window.
func (c *Conn) UpdatedAt(ctx context.Context, window string) (t time.Time, ok bool, err error) {
	f := c.freshness
	if f == nil {
		f, _ = c.Store.(Freshness)
	}
	if f == nil {
		return time.Time{}, false, nil
	}
	times, err := f.UpdatedAt(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	t, ok = times[window]
	return t, ok, nil
}

// Close releases the backend connection.
func (c *Conn) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

// Open builds the store described by cfg: the backend, wrapped with
// instrumentation, wrapped with the read cache when cfg.CacheTTL > 0.
func Open(ctx context.Context, cfg config.StoreConfig, opts Options) (*Conn, error) {
	conn := &Conn{}
	var backend Store

	switch cfg.Backend {
	case config.BackendRedis:
		client, err := NewRedisClient(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		redisStore := NewRedisStore(client, cfg.KeyPrefix, cfg.KeyTTL)
		backend = redisStore
		conn.freshness = redisStore
		conn.ping = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		conn.close = client.Close

	case config.BackendPostgres:
		pool, err := db.ConnectWithRetry(ctx, db.ConfigFromSettings(cfg.Postgres), 3, 2*time.Second)
		if err != nil {
			return nil, err
		}
		if opts.Registry != nil {
			if _, err := db.RegisterPoolStats(opts.Registry, pool, "ranked_items"); err != nil {
				pool.Close()
				return nil, fmt.Errorf("registering pool metrics: %w", err)
			}
		}
		backend = NewPostgresStore(pool)
		conn.ping = func(ctx context.Context) error { return db.Ping(ctx, pool) }
		conn.close = func() error { pool.Close(); return nil }

	case config.BackendMemory:
		if cfg.SeedFile == "" {
			backend = NewMemoryStore()
			break
		}
		path, err := config.ExpandPath(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		mem, err := LoadSeedFile(path)
		if err != nil {
			return nil, err
		}
		backend = mem

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	conn.Store = Instrument(backend, opts.Metrics, opts.Tracer)
	if cfg.CacheTTL > 0 {
		conn.Store = NewCachedStore(conn.Store, cfg.CacheSize, cfg.CacheTTL, opts.Metrics)
	}
	return conn, nil
}
