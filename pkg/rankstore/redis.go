package rankstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each list as a JSON array under "<prefix>:<window>".
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps client. A zero ttl writes keys without expiry.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}

	return client, nil
}

// Backend implements Named.
func (s *RedisStore) Backend() string { return "redis" }

// Key returns the Redis key for window.
func (s *RedisStore) Key(window string) string {
	if s.prefix == "" {
		return window
	}
	return s.prefix + ":" + window
}

// updatedKey holds the per-window write times. Window names cannot contain
// ':', so it never collides with a list key.
func (s *RedisStore) updatedKey() string {
	return s.Key("meta:updated")
}

// Fetch implements Store.
func (s *RedisStore) Fetch(ctx context.Context, window string) ([]string, error) {
	if err := CheckWindow(window); err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, s.Key(window)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.Key(window), err)
	}

	return decodeList(window, data)
}

// Put implements Store. The list and its updated-at stamp are written in one
// MULTI/EXEC so readers never see one without the other.
func (s *RedisStore) Put(ctx context.Context, window string, items []string) error {
	if err := CheckWindow(window); err != nil {
		return err
	}

	data, err := encodeList(items)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", window, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.Key(window), data, s.ttl)
	pipe.HSet(ctx, s.updatedKey(), window, time.Now().UTC().Format(time.RFC3339))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set %s: %w", s.Key(window), err)
	}

	return nil
}

// UpdatedAt returns when each window was last written.
func (s *RedisStore) UpdatedAt(ctx context.Context) (map[string]time.Time, error) {
	raw, err := s.client.HGetAll(ctx, s.updatedKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", s.updatedKey(), err)
	}

	out := make(map[string]time.Time, len(raw))
	for w, v := range raw {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			continue
		}
		out[w] = t
	}
	return out, nil
}
