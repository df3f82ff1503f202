package rankstore

import (
	"context"
	"time"

	"github.com/otherjamesbrown/skyfeed/pkg/observability"
)

// InstrumentedStore records latency metrics and a trace span for every fetch.
type InstrumentedStore struct {
	next    Store
	backend string
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// Instrument wraps next. Either metrics or tracer may be nil.
func Instrument(next Store, metrics *observability.Metrics, tracer *observability.Tracer) *InstrumentedStore {
	if tracer == nil {
		tracer = observability.NewTracer()
	}
	return &InstrumentedStore{
		next:    next,
		backend: BackendName(next),
		metrics: metrics,
		tracer:  tracer,
	}
}

// Backend implements Named.
func (s *InstrumentedStore) Backend() string { return s.backend }

// Fetch implements Store.
func (s *InstrumentedStore) Fetch(ctx context.Context, window string) ([]string, error) {
	ctx, span := s.tracer.StartStoreSpan(ctx, s.backend, window)
	start := time.Now()

	items, err := s.next.Fetch(ctx, window)

	s.metrics.RecordStoreFetch(s.backend, err, time.Since(start))
	observability.EndSpan(span, err)
	return items, err
}

// Put implements Store.
func (s *InstrumentedStore) Put(ctx context.Context, window string, items []string) error {
	return s.next.Put(ctx, window, items)
}
