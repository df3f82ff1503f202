package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/skyfeed/config"
	"github.com/otherjamesbrown/skyfeed/pkg/bot"
	"github.com/otherjamesbrown/skyfeed/pkg/rankstore"
)

// QueueResult is the output of 'post queue'.
type QueueResult struct {
	Window  string `json:"window" yaml:"window"`
	Added   int    `json:"added" yaml:"added"`
	Existed int    `json:"existed" yaml:"existed"`
}

// NewPostCommand creates the 'post' command group.
func NewPostCommand(deps *Deps) *cobra.Command {
	deps = orDefault(deps)

	cmd := &cobra.Command{
		Use:   "post",
		Short: "Publish bot posts to Bluesky",
		Long: `Publish bot posts to Bluesky.

The bot account is bluesky.identifier from the configuration. Its app password
comes from SKYFEED_APP_PASSWORD or the system keyring (see 'skyfeed auth login').

Commands:
  announce  Post the account introduction
  queue     Queue trending links from a snapshot as entries
  pending   Post every queued entry that has not been published

Use --dry-run to print the composed records instead of posting them.

Examples:
  skyfeed post announce --dry-run
  skyfeed post queue top-links.json --window day --top 5
  skyfeed post pending`,
	}

	cmd.AddCommand(newPostAnnounceCommand(deps))
	cmd.AddCommand(newPostQueueCommand(deps))
	cmd.AddCommand(newPostPendingCommand(deps))
	return cmd
}

func newPostAnnounceCommand(deps *Deps) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "announce",
		Short: "Post the account introduction",
		Long: `Post the account introduction configured under bluesky.announcement:
the linked site title, the intro text, one line per feed and the footer link,
with the configured feed generator record embedded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, deps)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)

			pub, err := newPublisher(ctx, cmd, deps, cfg, nil, dryRun)
			if err != nil {
				return err
			}
			ref, err := pub.Announce(ctx, cfg.Bluesky.Announcement)
			if err != nil {
				return fmt.Errorf("posting announcement: %w", err)
			}
			if ref != nil {
				return WriteOutput(cmd.OutOrStdout(), cfg.OutputFormat, ref, func(w io.Writer) error {
					fmt.Fprintf(w, "Posted announcement: %s\n", ref.URI)
					return nil
				})
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the record instead of posting it")
	return cmd
}

func newPostQueueCommand(deps *Deps) *cobra.Command {
	var (
		window string
		top    int
	)

	cmd := &cobra.Command{
		Use:   "queue <snapshot.json>",
		Short: "Queue trending links from a snapshot",
		Long: `Queue the top links of one snapshot window as bot entries.

Each link becomes an entry keyed by its URL hash. Links already queued, posted
or not, are left untouched. Use - to read the snapshot from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := readSnapshot(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			links, err := snapshotWindow(snap, window)
			if err != nil {
				return err
			}
			if top > 0 && len(links) > top {
				links = links[:top]
			}

			cfg, err := loadConfig(cmd, deps)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			entries, closeFn, err := deps.OpenEntries(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			res := QueueResult{Window: window}
			for _, l := range links {
				added, err := entries.Add(ctx, bot.EntryContent{
					Title:            l.Title,
					URL:              l.URL,
					RecommendedPosts: l.RecommendedPosts,
				})
				if err != nil {
					return fmt.Errorf("queueing %s: %w", l.URL, err)
				}
				if added {
					res.Added++
				} else {
					res.Existed++
				}
			}

			return WriteOutput(cmd.OutOrStdout(), cfg.OutputFormat, res, func(w io.Writer) error {
				fmt.Fprintf(w, "Queued %d new entr%s from %s (%d already queued).\n",
					res.Added, plural(res.Added, "y", "ies"), window, res.Existed)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&window, "window", "w", rankstore.WindowDay, "Snapshot window: hour, day or week")
	cmd.Flags().IntVarP(&top, "top", "n", 0, "Queue only the top n links (0 for all)")
	return cmd
}

func newPostPendingCommand(deps *Deps) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Post every queued entry not yet published",
		Long: `Post every queued entry that has not been published, oldest first,
waiting bluesky.post_interval between posts. Each posted entry is marked
published. An entry that fails is logged and retried on the next run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, deps)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)

			entries, closeFn, err := deps.OpenEntries(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			pub, err := newPublisher(ctx, cmd, deps, cfg, entries, dryRun)
			if err != nil {
				return err
			}
			res, err := pub.PublishPending(ctx)
			if err != nil {
				return fmt.Errorf("publishing entries: %w", err)
			}

			out := cmd.OutOrStdout()
			if dryRun {
				out = cmd.ErrOrStderr()
			}
			if err := WriteOutput(out, cfg.OutputFormat, res, func(w io.Writer) error {
				fmt.Fprintf(w, "Published %d, failed %d, skipped %d.\n", res.Published, res.Failed, res.Skipped)
				return nil
			}); err != nil {
				return err
			}
			if res.Failed > 0 {
				return fmt.Errorf("%d entr%s failed to publish", res.Failed, plural(res.Failed, "y", "ies"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the records instead of posting them")
	return cmd
}

// newPublisher logs in unless dryRun is set. Dry runs write records to the
// command's stdout.
func newPublisher(ctx context.Context, cmd *cobra.Command, deps *Deps, cfg *config.Config, entries bot.EntrySource, dryRun bool) (*bot.Publisher, error) {
	var poster bot.Poster
	if !dryRun {
		p, err := deps.NewPoster(ctx, cfg, deps.Credentials())
		if err != nil {
			return nil, err
		}
		poster = p
	}
	return bot.NewPublisher(poster, entries, bot.Options{
		DryRun:   dryRun,
		Out:      cmd.OutOrStdout(),
		Interval: cfg.Bluesky.PostInterval,
		Logger:   newLogger(cfg, "skyfeed-bot"),
	}), nil
}

func snapshotWindow(snap *rankstore.Snapshot, window string) ([]rankstore.Link, error) {
	switch window {
	case rankstore.WindowHour:
		return snap.TopHour, nil
	case rankstore.WindowDay:
		return snap.TopDay, nil
	case rankstore.WindowWeek:
		return snap.TopWeek, nil
	}
	return nil, fmt.Errorf("unknown window %q (must be hour, day, or week)", window)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
