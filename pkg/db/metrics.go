package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStatsCollector exports pgxpool statistics. It reads the pool on every
// scrape rather than caching values.
type PoolStatsCollector struct {
	pool *pgxpool.Pool

	totalConns    *prometheus.Desc
	idleConns     *prometheus.Desc
	acquiredConns *prometheus.Desc
	maxConns      *prometheus.Desc
}

// NewPoolStatsCollector creates a collector for pool. The store label
// distinguishes pools when more than one is open (ranked lists, feed entries).
func NewPoolStatsCollector(pool *pgxpool.Pool, store string) *PoolStatsCollector {
	constLabels := prometheus.Labels{"store": store}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("skyfeed", "db_pool", name), help, nil, constLabels)
	}

	return &PoolStatsCollector{
		pool:          pool,
		totalConns:    desc("total_conns", "Total number of connections currently open in the pool"),
		idleConns:     desc("idle_conns", "Number of idle connections in the pool"),
		acquiredConns: desc("acquired_conns", "Number of connections currently acquired from the pool"),
		maxConns:      desc("max_conns", "Maximum number of connections allowed in the pool"),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalConns
	ch <- c.idleConns
	ch <- c.acquiredConns
	ch <- c.maxConns
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	if c.pool == nil {
		return
	}

	stats := c.pool.Stat()
	for _, m := range []struct {
		desc *prometheus.Desc
		v    int32
	}{
		{c.totalConns, stats.TotalConns()},
		{c.idleConns, stats.IdleConns()},
		{c.acquiredConns, stats.AcquiredConns()},
		{c.maxConns, stats.MaxConns()},
	} {
		ch <- prometheus.MustNewConstMetric(m.desc, prometheus.GaugeValue, float64(m.v))
	}
}

// RegisterPoolStats registers a collector for pool on reg. Registering the
// same store twice is not an error.
func RegisterPoolStats(reg prometheus.Registerer, pool *pgxpool.Pool, store string) (*PoolStatsCollector, error) {
	collector := NewPoolStatsCollector(pool, store)
	if err := reg.Register(collector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
	}
	return collector, nil
}
