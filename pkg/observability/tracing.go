package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name for skyfeed spans.
const TracerName = "github.com/otherjamesbrown/skyfeed"

// Span attribute keys
const (
	AttrFeed      = "skyfeed.feed"
	AttrLimit     = "skyfeed.limit"
	AttrItems     = "skyfeed.items"
	AttrWindow    = "skyfeed.window"
	AttrBackend   = "skyfeed.store.backend"
	AttrKind      = "skyfeed.post.kind"
	AttrURLHash   = "skyfeed.entry.url_hash"
	AttrRequestID = "request_id"
)

// Span names
const (
	SpanHTTPRequest = "skyfeed.http"
	SpanServeFeed   = "skyfeed.feed.serve"
	SpanStoreFetch  = "skyfeed.store.fetch"
	SpanPublish     = "skyfeed.bot.publish"
)

// Tracer wraps an OpenTelemetry tracer with skyfeed span constructors.
// It uses the global provider, which is a no-op unless one is installed.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer returns a Tracer backed by the global provider.
func NewTracer() *Tracer {
	return NewTracerFromProvider(otel.GetTracerProvider())
}

// NewTracerFromProvider returns a Tracer backed by tp.
func NewTracerFromProvider(tp trace.TracerProvider) *Tracer {
	return &Tracer{tracer: tp.Tracer(TracerName)}
}

// StartRequestSpan starts the root span for an inbound HTTP request.
func (t *Tracer) StartRequestSpan(ctx context.Context, method, path, requestID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanHTTPRequest,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", path),
			attribute.String(AttrRequestID, requestID),
		),
	)
}

// StartFeedSpan starts a span for building one feed skeleton.
func (t *Tracer) StartFeedSpan(ctx context.Context, feed string, limit int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanServeFeed,
		trace.WithAttributes(
			attribute.String(AttrFeed, feed),
			attribute.Int(AttrLimit, limit),
		),
	)
}

// StartStoreSpan starts a span for fetching one ranked list.
func (t *Tracer) StartStoreSpan(ctx context.Context, backend, window string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanStoreFetch,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrBackend, backend),
			attribute.String(AttrWindow, window),
		),
	)
}

// StartPublishSpan starts a span for sending one post.
func (t *Tracer) StartPublishSpan(ctx context.Context, kind, urlHash string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, SpanPublish,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String(AttrKind, kind)),
	)
	if urlHash != "" {
		span.SetAttributes(attribute.String(AttrURLHash, urlHash))
	}
	return ctx, span
}

// EndSpan records err (if any) and ends span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
