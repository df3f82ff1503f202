// Package observability holds the Prometheus metrics and OpenTelemetry
// spans shared by the feed generator, the ranked-list stores and the bot.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Metrics holds all Prometheus metrics for skyfeed.
type Metrics struct {
	// Feed serving
	FeedRequestsTotal *prometheus.CounterVec
	FeedItems         *prometheus.HistogramVec
	FeedSeconds       *prometheus.HistogramVec

	// Ranked-list store
	StoreFetchSeconds *prometheus.HistogramVec
	StoreCacheTotal   *prometheus.CounterVec

	// Bot
	PostsPublishedTotal *prometheus.CounterVec

	// Config reloads
	ReloadsTotal *prometheus.CounterVec
}

// NewMetrics registers the metric set on reg. Pass a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FeedRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skyfeed_feed_requests_total",
				Help: "Feed skeleton requests by feed and HTTP status",
			},
			[]string{"feed", "status"},
		),
		FeedItems: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "skyfeed_feed_items",
				Help:    "Number of posts in each served skeleton",
				Buckets: []float64{0, 1, 5, 10, 15, 20, 25, 30, 50, 100},
			},
			[]string{"feed"},
		),
		FeedSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "skyfeed_feed_seconds",
				Help:    "Time to build a feed skeleton",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"feed"},
		),
		StoreFetchSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "skyfeed_store_fetch_seconds",
				Help:    "Ranked-list fetch latency by backend and outcome",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
			},
			[]string{"backend", "outcome"},
		),
		StoreCacheTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skyfeed_store_cache_total",
				Help: "Ranked-list cache lookups by result (hit or miss)",
			},
			[]string{"result"},
		),
		PostsPublishedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skyfeed_posts_published_total",
				Help: "Posts sent to Bluesky by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		ReloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skyfeed_config_reloads_total",
				Help: "Feed definition reloads by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// RecordFeedRequest records one skeleton response.
func (m *Metrics) RecordFeedRequest(feed, status string) {
	if m == nil {
		return
	}
	m.FeedRequestsTotal.WithLabelValues(feed, status).Inc()
}

// RecordFeedServed records the size of a served skeleton and how long it took.
func (m *Metrics) RecordFeedServed(feed string, items int, d time.Duration) {
	if m == nil {
		return
	}
	m.FeedItems.WithLabelValues(feed).Observe(float64(items))
	m.FeedSeconds.WithLabelValues(feed).Observe(d.Seconds())
}

// RecordStoreFetch records a store fetch.
func (m *Metrics) RecordStoreFetch(backend string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.StoreFetchSeconds.WithLabelValues(backend, outcome(err)).Observe(d.Seconds())
}

// RecordCacheLookup records a cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.StoreCacheTotal.WithLabelValues(result).Inc()
}

// RecordPost records a post attempt. Outcome is one of the Outcome constants.
func (m *Metrics) RecordPost(kind, outcome string) {
	if m == nil {
		return
	}
	m.PostsPublishedTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordReload records a feed definition reload.
func (m *Metrics) RecordReload(err error) {
	if m == nil {
		return
	}
	m.ReloadsTotal.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}
