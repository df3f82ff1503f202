package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/skyfeed/pkg/db"
)

// MigrateStatus is the output of 'migrate --status'.
type MigrateStatus struct {
	Database   *db.HealthStatus    `json:"database" yaml:"database"`
	Migrations *db.MigrationStatus `json:"migrations" yaml:"migrations"`
}

// NewMigrateCommand creates the 'migrate' command.
func NewMigrateCommand(deps *Deps) *cobra.Command {
	deps = orDefault(deps)
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply the schema migrations shipped with skyfeed to the Postgres
database in the store.postgres section (or SKYFEED_DB_* variables).

Migrations create the ranked_items table for the postgres store backend and
the feed_entries table the bot publishes from. Each migration runs in its own
transaction and is recorded in schema_migrations. The run stops at the first
failure.

Examples:
  skyfeed migrate
  skyfeed migrate --status
  skyfeed migrate --status --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, deps)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)

			pool, err := deps.ConnectDB(ctx, cfg)
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer pool.Close()

			out := cmd.OutOrStdout()
			if status {
				st, err := db.GetMigrationStatus(ctx, pool, db.Migrations())
				if err != nil {
					return fmt.Errorf("getting migration status: %w", err)
				}
				report := MigrateStatus{Database: db.Check(ctx, pool), Migrations: st}
				return WriteOutput(out, cfg.OutputFormat, report, func(w io.Writer) error {
					return writeMigrationStatus(w, report)
				})
			}

			res, err := db.RunMigrations(ctx, pool, db.Migrations())
			if err != nil {
				if res != nil && len(res.Applied) > 0 {
					fmt.Fprintln(out, "Applied before failure:")
					for _, v := range res.Applied {
						fmt.Fprintf(out, "  ✓ %s\n", v)
					}
				}
				return err
			}
			return WriteOutput(out, cfg.OutputFormat, res, func(w io.Writer) error {
				if len(res.Applied) == 0 {
					fmt.Fprintln(w, "No pending migrations.")
					return nil
				}
				fmt.Fprintf(w, "Applied %d migration(s):\n", len(res.Applied))
				for _, v := range res.Applied {
					fmt.Fprintf(w, "  ✓ %s\n", v)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "Show applied and pending migrations without applying")
	return cmd
}

func writeMigrationStatus(w io.Writer, report MigrateStatus) error {
	if h := report.Database; h != nil {
		if h.Healthy {
			fmt.Fprintf(w, "Database: healthy (%s, %d/%d connections in use)\n\n",
				h.Latency.Round(time.Millisecond), h.AcquiredConns, h.TotalConns)
		} else {
			fmt.Fprintf(w, "Database: unhealthy (%s)\n\n", h.Error)
		}
	}

	st := report.Migrations
	fmt.Fprintf(w, "Applied Migrations (%d):\n", len(st.Applied))
	for _, m := range st.Applied {
		at := "-"
		if m.AppliedAt != nil {
			at = m.AppliedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "  %-30s %s\n", m.Version, at)
	}
	fmt.Fprintf(w, "\nPending Migrations (%d):\n", len(st.Pending))
	for _, m := range st.Pending {
		fmt.Fprintf(w, "  %s\n", m.Version)
	}
	return nil
}
