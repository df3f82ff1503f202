package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/skyfeed/config"
	"github.com/otherjamesbrown/skyfeed/pkg/rankstore"
)

// ListResult is the output of 'lists get'.
type ListResult struct {
	Window  string     `json:"window" yaml:"window"`
	Items   []string   `json:"items" yaml:"items"`
	Updated *time.Time `json:"updated,omitempty" yaml:"updated,omitempty"`
}

// ImportResult is the output of 'lists import'.
type ImportResult struct {
	Backend string         `json:"backend" yaml:"backend"`
	Counts  map[string]int `json:"counts" yaml:"counts"`
}

// NewListsCommand creates the 'lists' command group.
func NewListsCommand(deps *Deps) *cobra.Command {
	deps = orDefault(deps)

	cmd := &cobra.Command{
		Use:   "lists",
		Short: "Read and write ranked lists in the configured store",
		Long: `Read and write the ranked lists the feed generator blends.

Each list is keyed by a window (hour, day, week) and holds post identifiers,
best first. The store backend comes from the store section of the config.

Commands:
  get     Print one window
  put     Replace one window
  import  Load every window from a top-links snapshot

Examples:
  skyfeed lists get hour
  skyfeed lists put day at://did:plc:a/app.bsky.feed.post/1 at://did:plc:b/app.bsky.feed.post/2
  skyfeed lists import top-links.json`,
		Aliases: []string{"list"},
	}

	cmd.AddCommand(newListsGetCommand(deps))
	cmd.AddCommand(newListsPutCommand(deps))
	cmd.AddCommand(newListsImportCommand(deps))
	return cmd
}

func newListsGetCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "get <window>",
		Short: "Print the list for a window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, deps, func(ctx context.Context, cfg *config.Config, store *rankstore.Conn) error {
				items, err := store.Fetch(ctx, args[0])
				if err != nil {
					return err
				}
				res := ListResult{Window: args[0], Items: items}
				updated, ok, err := store.UpdatedAt(ctx, args[0])
				if err != nil {
					return fmt.Errorf("reading update time: %w", err)
				}
				if ok {
					res.Updated = &updated
				}
				return WriteOutput(cmd.OutOrStdout(), cfg.OutputFormat, res, func(w io.Writer) error {
					if res.Updated != nil {
						fmt.Fprintf(w, "Updated %s\n", res.Updated.Format(time.RFC3339))
					}
					if len(items) == 0 {
						fmt.Fprintf(w, "No items in %s.\n", args[0])
						return nil
					}
					for i, item := range items {
						fmt.Fprintf(w, "%3d  %s\n", i+1, item)
					}
					return nil
				})
			})
		},
	}
}

func newListsPutCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "put <window> [item...]",
		Short: "Replace the list for a window",
		Long: `Replace the list for a window with the given items, in order.
With no items the window is cleared.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, deps, func(ctx context.Context, cfg *config.Config, store *rankstore.Conn) error {
				items := args[1:]
				if err := store.Put(ctx, args[0], items); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored %d item(s) in %s.\n", len(items), args[0])
				return nil
			})
		},
	}
}

func newListsImportCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "import <snapshot.json>",
		Short: "Load every window from a top-links snapshot",
		Long: `Load the hour, day and week lists from a top-links snapshot.

The snapshot carries top_hour, top_day and top_week arrays of links, each with
recommended_posts. Every window is replaced by the at:// URIs of its
recommended posts, in link rank order. Use - to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := readSnapshot(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			return withStore(cmd, deps, func(ctx context.Context, cfg *config.Config, store *rankstore.Conn) error {
				counts, err := rankstore.Import(ctx, store, snap)
				if err != nil {
					return err
				}
				res := ImportResult{Backend: cfg.Store.Backend, Counts: counts}
				return WriteOutput(cmd.OutOrStdout(), cfg.OutputFormat, res, func(w io.Writer) error {
					windows := make([]string, 0, len(counts))
					for name := range counts {
						windows = append(windows, name)
					}
					sort.Strings(windows)
					fmt.Fprintf(w, "Imported into %s:\n", cfg.Store.Backend)
					for _, name := range windows {
						fmt.Fprintf(w, "  %-5s %d\n", name, counts[name])
					}
					return nil
				})
			})
		},
	}
}

// withStore loads the config, opens the store without a read cache and runs fn.
func withStore(cmd *cobra.Command, deps *Deps, fn func(context.Context, *config.Config, *rankstore.Conn) error) error {
	cfg, err := loadConfig(cmd, deps)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	storeCfg := cfg.Store
	storeCfg.CacheTTL = 0
	store, err := deps.OpenStore(ctx, storeCfg, rankstore.Options{})
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}
	defer store.Close()

	return fn(ctx, cfg, store)
}

// readSnapshot parses a snapshot from path, or from stdin when path is "-".
func readSnapshot(stdin io.Reader, path string) (*rankstore.Snapshot, error) {
	if path == "-" {
		return rankstore.ParseSnapshot(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()
	return rankstore.ParseSnapshot(f)
}
