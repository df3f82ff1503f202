// Package feedgen serves ranked feeds over the feed generator XRPC surface:
// getFeedSkeleton, describeFeedGenerator and the did:web document.
package feedgen

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/otherjamesbrown/skyfeed/config"
	"github.com/otherjamesbrown/skyfeed/pkg/buildinfo"
	"github.com/otherjamesbrown/skyfeed/pkg/logging"
	"github.com/otherjamesbrown/skyfeed/pkg/observability"
	"github.com/otherjamesbrown/skyfeed/pkg/rankstore"
)

// ServiceName identifies the feed generator in logs and /version.
const ServiceName = "skyfeed-feedgen"

// Default server settings.
const (
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultReadHeaderTimeout = 5 * time.Second
)

// Pinger is implemented by stores that can report backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options carries the server's optional collaborators.
type Options struct {
	Logger   logging.Logger
	Metrics  *observability.Metrics
	Tracer   *observability.Tracer
	Gatherer prometheus.Gatherer
	Pinger   Pinger

	ShutdownTimeout time.Duration
}

// Server is the feed generator HTTP service.
type Server struct {
	addr     string
	store    rankstore.Store
	registry atomic.Pointer[Registry]

	logger   logging.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	gatherer prometheus.Gatherer
	pinger   Pinger
	shutdown time.Duration
}

// New builds a server for cfg that reads lists from store.
func New(cfg config.FeedgenConfig, store rankstore.Store, opts Options) (*Server, error) {
	reg, err := NewRegistry(cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		addr:     cfg.ListenAddress,
		store:    store,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
		gatherer: opts.Gatherer,
		pinger:   opts.Pinger,
		shutdown: opts.ShutdownTimeout,
	}
	if s.logger == nil {
		s.logger = logging.NewNopLogger()
	}
	if s.tracer == nil {
		s.tracer = observability.NewTracer()
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.shutdown <= 0 {
		s.shutdown = DefaultShutdownTimeout
	}
	s.registry.Store(reg)
	return s, nil
}

// Registry returns the feed definitions currently served.
func (s *Server) Registry() *Registry {
	return s.registry.Load()
}

// Reload swaps in new feed definitions. On error the current ones stay.
func (s *Server) Reload(cfg config.FeedgenConfig) error {
	reg, err := NewRegistry(cfg)
	s.metrics.RecordReload(err)
	if err != nil {
		return fmt.Errorf("reloading feeds: %w", err)
	}
	if cfg.ListenAddress != s.addr {
		s.logger.Warn("Listen address change needs a restart",
			logging.F("current", s.addr), logging.F("configured", cfg.ListenAddress))
	}
	s.registry.Store(reg)
	s.logger.Info("Feeds reloaded", logging.F("feeds", reg.Names()))
	return nil
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /xrpc/app.bsky.feed.getFeedSkeleton", s.handleFeedSkeleton)
	mux.HandleFunc("GET /xrpc/app.bsky.feed.describeFeedGenerator", s.handleDescribe)
	mux.HandleFunc("GET /.well-known/did.json", s.handleDIDDocument)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /version", buildinfo.Handler(ServiceName))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return s.withRequestID(s.withTracing(s.withAccessLog(mux)))
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then drains in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Feed generator listening", logging.F("address", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Feed generator shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
