package rankstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/otherjamesbrown/skyfeed/pkg/observability"
)

// DefaultFetchTimeout bounds a shared backend fetch. It runs detached from
// the callers' contexts so one caller giving up does not fail the others.
const DefaultFetchTimeout = 10 * time.Second

// CachedStore serves repeated fetches from an expiring in-process LRU and
// collapses concurrent misses for the same window into one backend call.
type CachedStore struct {
	next    Store
	cache   *expirable.LRU[string, []string]
	group   singleflight.Group
	metrics *observability.Metrics
	timeout time.Duration

	// generation counts writes per window. A fetch that started before a
	// write must not repopulate the cache.
	mu         sync.Mutex
	generation map[string]uint64
}

// NewCachedStore wraps next. Entries live for ttl; at most size windows are kept.
func NewCachedStore(next Store, size int, ttl time.Duration, metrics *observability.Metrics) *CachedStore {
	if size <= 0 {
		size = 16
	}
	return &CachedStore{
		next:       next,
		cache:      expirable.NewLRU[string, []string](size, nil, ttl),
		metrics:    metrics,
		timeout:    DefaultFetchTimeout,
		generation: make(map[string]uint64),
	}
}

// Backend implements Named.
func (c *CachedStore) Backend() string { return BackendName(c.next) }

// Fetch implements Store. Callers waiting on a shared miss return as soon
// as their own ctx is done; the backend call itself carries on for the rest.
func (c *CachedStore) Fetch(ctx context.Context, window string) ([]string, error) {
	if items, ok := c.cache.Get(window); ok {
		c.metrics.RecordCacheLookup(true)
		return slices.Clone(items), nil
	}
	c.metrics.RecordCacheLookup(false)

	gen := c.currentGeneration(window)
	ch := c.group.DoChan(window, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		items, err := c.next.Fetch(fetchCtx, window)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.generation[window] == gen {
			c.cache.Add(window, items)
		}
		c.mu.Unlock()
		return items, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]string)), nil
	}
}

// Put implements Store. The cached copy is dropped after a successful write,
// and fetches already in flight neither repopulate the cache nor are joined
// by later callers.
func (c *CachedStore) Put(ctx context.Context, window string, items []string) error {
	if err := c.next.Put(ctx, window, items); err != nil {
		return err
	}

	c.mu.Lock()
	c.generation[window]++
	c.cache.Remove(window)
	c.mu.Unlock()
	c.group.Forget(window)
	return nil
}

func (c *CachedStore) currentGeneration(window string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation[window]
}
