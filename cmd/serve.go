package cmd

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/otherjamesbrown/skyfeed/config"
	"github.com/otherjamesbrown/skyfeed/pkg/feedgen"
	"github.com/otherjamesbrown/skyfeed/pkg/logging"
	"github.com/otherjamesbrown/skyfeed/pkg/observability"
	"github.com/otherjamesbrown/skyfeed/pkg/rankstore"
)

// NewServeCommand creates the 'serve' command.
func NewServeCommand(deps *Deps) *cobra.Command {
	deps = orDefault(deps)
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the feed generator",
		Long: `Run the feed generator HTTP service.

Serves getFeedSkeleton, describeFeedGenerator and the did:web document for the
feeds defined in the configuration file, plus /healthz, /version and /metrics.

Feed definitions are reloaded when the configuration file changes. Changes to
the listen address or the store section need a restart.

Examples:
  skyfeed serve
  skyfeed serve --config /etc/skyfeed/config.yaml
  SKYFEED_STORE_BACKEND=memory SKYFEED_STORE_SEED_FILE=lists.json skyfeed serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, deps, !noWatch)
		},
	}

	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not reload feeds when the config file changes")
	return cmd
}

func runServe(cmd *cobra.Command, deps *Deps, watch bool) error {
	cfg, err := loadConfig(cmd, deps)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, feedgen.ServiceName)
	logging.SetGlobal(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)
	tracer := observability.NewTracer()

	ctx := commandContext(cmd)

	conn, err := deps.OpenStore(ctx, cfg.Store, rankstore.Options{Metrics: metrics, Tracer: tracer, Registry: reg})
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}
	defer conn.Close()

	srv, err := feedgen.New(cfg.Feedgen, conn, feedgen.Options{
		Logger:   logger,
		Metrics:  metrics,
		Tracer:   tracer,
		Gatherer: reg,
		Pinger:   conn,
	})
	if err != nil {
		return err
	}
	logger.Info("Starting feed generator",
		logging.F("store", cfg.Store.Backend),
		logging.F("feeds", srv.Registry().Names()),
		logging.F("did", srv.Registry().DID()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })

	if path := configPathForWatch(cmd); watch && path != "" {
		g.Go(func() error {
			err := srv.WatchConfig(gctx, path, func(p string) (*config.Config, error) {
				return deps.LoadConfig(p)
			})
			if err != nil {
				logger.Warn("Feed reload disabled", logging.F("path", path), logging.Err(err))
			}
			return nil
		})
	}

	return g.Wait()
}

// configPathForWatch returns the file serve should watch: --config when set,
// otherwise the default path.
func configPathForWatch(cmd *cobra.Command) string {
	if p := rootString(cmd, "config"); p != "" {
		return p
	}
	p, err := config.ConfigPath()
	if err != nil {
		return ""
	}
	return p
}
