// Package main provides the skyfeed CLI entry point.
// skyfeed serves Bluesky feed skeletons blended from ranked link lists and
// runs the bot that posts trending links.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	skycmd "github.com/otherjamesbrown/skyfeed/cmd"
	"github.com/otherjamesbrown/skyfeed/config"
	"github.com/otherjamesbrown/skyfeed/pkg/buildinfo"
)

// Global flags.
var (
	cfgFile      string
	outputFormat string
	debug        bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "skyfeed",
	Short: "Bluesky feed generator and link bot",
	Long: `skyfeed serves Bluesky custom feeds built from ranked lists of posts and
runs the bot account that announces them.

The feed generator blends hour, day and week lists of posts into one skeleton
per feed. The lists live in Redis, Postgres or memory and are written by the
link aggregation (or 'skyfeed lists import').

COMMON WORKFLOWS:
  Run the feeds:     skyfeed serve
  Try a blend:       skyfeed blend --lists lists.json --pattern "hour0,day0,hour1"
  Load lists:        skyfeed lists import top-links.json
  Post as the bot:   skyfeed auth login  ->  skyfeed post announce --dry-run

Configuration is read from ~/.skyfeed/config.yaml (or --config) and
SKYFEED_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if outputFormat != "" && !config.OutputFormat(outputFormat).IsValid() {
			return fmt.Errorf("invalid --output %q (must be text, json, or yaml)", outputFormat)
		}
		return nil
	},
}

// Version command flags.
var versionServer string

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash, and build time of skyfeed.

Use --server to also query a running feed generator's /version endpoint.

Examples:
  skyfeed version
  skyfeed version --output json
  skyfeed version --server https://feedgen.theblue.report`,
	RunE: func(cmd *cobra.Command, args []string) error {
		infos := []buildinfo.Info{buildinfo.Get("skyfeed")}
		var serverErr error
		if versionServer != "" {
			info, err := fetchVersion(cmd.Context(), versionServer)
			if err != nil {
				serverErr = err
				info = buildinfo.Info{ServiceName: versionServer, Version: "unreachable"}
			}
			infos = append(infos, info)
		}

		out := cmd.OutOrStdout()
		format := config.OutputFormat(outputFormat)
		if format == config.OutputFormatJSON || format == config.OutputFormatYAML {
			var v any = infos
			if len(infos) == 1 {
				v = infos[0]
			}
			return skycmd.WriteOutput(out, format, v, nil)
		}

		if len(infos) == 1 {
			info := infos[0]
			fmt.Fprintf(out, "skyfeed version %s\n", info.Version)
			fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
			fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
			fmt.Fprintf(out, "  go:         %s\n", info.GoVersion)
			return nil
		}

		fmt.Fprintf(out, "%-25s %-12s %-10s %s\n", "SERVICE", "VERSION", "COMMIT", "BUILT")
		for _, info := range infos {
			commit, built := info.Commit, info.BuildTime
			if len(commit) > 10 {
				commit = commit[:10]
			}
			if len(built) > 20 {
				built = built[:20]
			}
			fmt.Fprintf(out, "%-25s %-12s %-10s %s\n", info.ServiceName, info.Version, commit, built)
		}
		if serverErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "\n%s: %v\n", versionServer, serverErr)
		}
		return nil
	},
}

// fetchVersion queries a running service's /version endpoint.
func fetchVersion(ctx context.Context, server string) (buildinfo.Info, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(server, "/")+"/version", nil)
	if err != nil {
		return buildinfo.Info{}, err
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return buildinfo.Info{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return buildinfo.Info{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var info buildinfo.Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return buildinfo.Info{}, fmt.Errorf("decoding version: %w", err)
	}
	return info, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.skyfeed/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "Output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddGroup(
		&cobra.Group{ID: "feeds", Title: "Feeds:"},
		&cobra.Group{ID: "bot", Title: "Bot:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	deps := skycmd.DefaultDeps()

	// Feeds
	serveCmd := skycmd.NewServeCommand(deps)
	serveCmd.GroupID = "feeds"
	rootCmd.AddCommand(serveCmd)

	blendCmd := skycmd.NewBlendCommand(deps)
	blendCmd.GroupID = "feeds"
	rootCmd.AddCommand(blendCmd)

	listsCmd := skycmd.NewListsCommand(deps)
	listsCmd.GroupID = "feeds"
	rootCmd.AddCommand(listsCmd)

	// Bot
	postCmd := skycmd.NewPostCommand(deps)
	postCmd.GroupID = "bot"
	rootCmd.AddCommand(postCmd)

	facetsCmd := skycmd.NewFacetsCommand()
	facetsCmd.GroupID = "bot"
	rootCmd.AddCommand(facetsCmd)

	authCmd := skycmd.NewAuthCommand(deps)
	authCmd.GroupID = "bot"
	rootCmd.AddCommand(authCmd)

	// Setup
	configCmd := skycmd.NewConfigCommand(deps)
	configCmd.GroupID = "setup"
	rootCmd.AddCommand(configCmd)

	migrateCmd := skycmd.NewMigrateCommand(deps)
	migrateCmd.GroupID = "setup"
	rootCmd.AddCommand(migrateCmd)

	versionCmd.GroupID = "setup"
	versionCmd.Flags().StringVar(&versionServer, "server", "", "Also query a running feed generator at this base URL")
	rootCmd.AddCommand(versionCmd)

	rootCmd.SetHelpCommandGroupID("setup")
	rootCmd.SetCompletionCommandGroupID("setup")
}

func main() {
	// serve drains in-flight requests when this context is cancelled.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
