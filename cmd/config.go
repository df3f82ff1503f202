package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/skyfeed/config"
)

// NewConfigCommand creates the 'config' command group.
func NewConfigCommand(deps *Deps) *cobra.Command {
	deps = orDefault(deps)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage skyfeed configuration",
		Long:  `View and modify the skyfeed configuration file.`,
	}

	cmd.AddCommand(newConfigShowCommand(deps))
	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigSetCommand(deps))
	return cmd
}

// configFilePath returns --config, or the default location.
func configFilePath(cmd *cobra.Command) (string, error) {
	if p := rootString(cmd, "config"); p != "" {
		return p, nil
	}
	p, err := config.ConfigPath()
	if err != nil {
		return "", fmt.Errorf("getting config path: %w", err)
	}
	return p, nil
}

func newConfigShowCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long: `Display the effective configuration: defaults, then the config file,
then SKYFEED_* environment variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, deps)
			if err != nil {
				return err
			}
			path, _ := configFilePath(cmd)

			return WriteOutput(cmd.OutOrStdout(), cfg.OutputFormat, cfg, func(w io.Writer) error {
				fmt.Fprintln(w, "Current configuration:")
				fmt.Fprintf(w, "  Config file:    %s\n", path)
				fmt.Fprintf(w, "  Log level:      %s\n", cfg.LogLevel)
				fmt.Fprintf(w, "  Environment:    %s\n", cfg.Environment)
				fmt.Fprintf(w, "  Output format:  %s\n", cfg.OutputFormat)
				fmt.Fprintln(w, "\nFeed generator:")
				fmt.Fprintf(w, "  Listen address: %s\n", cfg.Feedgen.ListenAddress)
				fmt.Fprintf(w, "  Hostname:       %s\n", valueOrDefault(cfg.Feedgen.Hostname, "(not set)"))
				fmt.Fprintf(w, "  Service DID:    %s\n", valueOrDefault(cfg.Feedgen.DID(), "(not set)"))
				fmt.Fprintf(w, "  Publisher DID:  %s\n", valueOrDefault(cfg.Feedgen.PublisherDID, "(not set)"))
				fmt.Fprintf(w, "  Default feed:   %s\n", cfg.Feedgen.DefaultFeed)
				fmt.Fprintf(w, "  Feeds:          %v\n", cfg.Feedgen.FeedNames())
				fmt.Fprintf(w, "  Cache max age:  %s\n", cfg.Feedgen.CacheMaxAge)
				fmt.Fprintln(w, "\nStore:")
				fmt.Fprintf(w, "  Backend:        %s\n", cfg.Store.Backend)
				fmt.Fprintf(w, "  Cache TTL:      %s\n", cfg.Store.CacheTTL)
				fmt.Fprintln(w, "\nBluesky:")
				fmt.Fprintf(w, "  Service:        %s\n", cfg.Bluesky.Service)
				fmt.Fprintf(w, "  Identifier:     %s\n", valueOrDefault(cfg.Bluesky.Identifier, "(not set)"))
				fmt.Fprintf(w, "  Post interval:  %s\n", cfg.Bluesky.PostInterval)
				return nil
			})
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file",
		Long:  `Create a new configuration file with default values if one doesn't exist.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configFilePath(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if _, err := os.Stat(path); err == nil {
				fmt.Fprintf(out, "Configuration file already exists: %s\n", path)
				fmt.Fprintln(out, "Use 'skyfeed config show' to view current settings.")
				return nil
			}

			defaultCfg := config.DefaultConfig()
			if err := config.SaveConfig(defaultCfg, path); err != nil {
				return fmt.Errorf("saving configuration: %w", err)
			}

			fmt.Fprintf(out, "Created configuration file: %s\n", path)
			fmt.Fprintln(out, "\nDefault settings:")
			fmt.Fprintf(out, "  Listen address: %s\n", defaultCfg.Feedgen.ListenAddress)
			fmt.Fprintf(out, "  Default feed:   %s\n", defaultCfg.Feedgen.DefaultFeed)
			fmt.Fprintf(out, "  Store backend:  %s\n", defaultCfg.Store.Backend)
			return nil
		},
	}
}

func newConfigSetCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in the config file.

Available keys:
  log_level               - debug, info, warn, error
  environment             - Deployment environment name
  output_format           - Default output format (text, json, yaml)
  feedgen.listen_address  - Feed generator listen address (host:port)
  feedgen.hostname        - Public hostname for did:web
  feedgen.publisher_did   - DID of the account that publishes the feeds
  feedgen.default_feed    - Feed served when none is named
  feedgen.cache_max_age   - Skeleton Cache-Control max-age (e.g. 10m)
  store.backend           - redis, postgres, or memory
  store.redis.address     - Redis host:port
  store.redis.db          - Redis database number
  bluesky.service         - PDS base URL
  bluesky.identifier      - Bot account handle or DID
  bluesky.post_interval   - Wait between bot posts (e.g. 30s)

Examples:
  skyfeed config set feedgen.hostname feedgen.theblue.report
  skyfeed config set store.backend redis
  skyfeed config set bluesky.post_interval 1m`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			path, err := configFilePath(cmd)
			if err != nil {
				return err
			}
			current, err := deps.LoadConfig(rootString(cmd, "config"))
			if err != nil {
				// If config doesn't exist, start with defaults.
				current = config.DefaultConfig()
			}

			if err := setConfigValue(current, key, value); err != nil {
				return err
			}
			if err := current.Validate(); err != nil {
				return err
			}
			if err := config.SaveConfig(current, path); err != nil {
				return fmt.Errorf("saving configuration: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	}
}

func setConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "log_level":
		cfg.LogLevel = value
	case "environment":
		cfg.Environment = value
	case "output_format":
		format := config.OutputFormat(value)
		if !format.IsValid() {
			return fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", value)
		}
		cfg.OutputFormat = format
	case "feedgen.listen_address":
		cfg.Feedgen.ListenAddress = value
	case "feedgen.hostname":
		cfg.Feedgen.Hostname = value
	case "feedgen.publisher_did":
		cfg.Feedgen.PublisherDID = value
	case "feedgen.default_feed":
		cfg.Feedgen.DefaultFeed = value
	case "feedgen.cache_max_age":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid cache_max_age value: %w", err)
		}
		cfg.Feedgen.CacheMaxAge = d
	case "store.backend":
		cfg.Store.Backend = value
	case "store.redis.address":
		cfg.Store.Redis.Address = value
	case "store.redis.db":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid redis db value: %w", err)
		}
		cfg.Store.Redis.DB = n
	case "bluesky.service":
		cfg.Bluesky.Service = value
	case "bluesky.identifier":
		cfg.Bluesky.Identifier = value
	case "bluesky.post_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid post_interval value: %w", err)
		}
		cfg.Bluesky.PostInterval = d
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
