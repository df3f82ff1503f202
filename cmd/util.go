// Package cmd provides CLI commands for the skyfeed tool.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/skyfeed/client"
	"github.com/otherjamesbrown/skyfeed/config"
	"github.com/otherjamesbrown/skyfeed/credentials"
	"github.com/otherjamesbrown/skyfeed/pkg/bot"
	"github.com/otherjamesbrown/skyfeed/pkg/db"
	"github.com/otherjamesbrown/skyfeed/pkg/logging"
	"github.com/otherjamesbrown/skyfeed/pkg/rankstore"
)

// Deps holds the collaborators commands reach for. Tests replace individual
// fields with fakes.
type Deps struct {
	LoadConfig   func(path string) (*config.Config, error)
	OpenStore    func(ctx context.Context, cfg config.StoreConfig, opts rankstore.Options) (*rankstore.Conn, error)
	ConnectDB    func(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error)
	Credentials  func() *credentials.Store
	NewPoster    func(ctx context.Context, cfg *config.Config, creds *credentials.Store) (bot.Poster, error)
	OpenEntries  func(ctx context.Context, cfg *config.Config) (EntryQueue, func(), error)
	VerifyLogin  func(ctx context.Context, cfg *config.Config, password string) error
	ReadPassword func(prompt string) (string, error)
}

// EntryQueue is the feed_entries table as the post commands use it.
type EntryQueue interface {
	bot.EntrySource
	Add(ctx context.Context, content bot.EntryContent) (bool, error)
}

// DefaultDeps returns the dependencies for production use.
func DefaultDeps() *Deps {
	return &Deps{
		LoadConfig:   config.LoadConfig,
		OpenStore:    rankstore.Open,
		ConnectDB:    connectToDatabase,
		Credentials:  credentials.NewStore,
		NewPoster:    newSessionClient,
		OpenEntries:  openEntryStore,
		VerifyLogin:  verifyLogin,
		ReadPassword: readPassword,
	}
}

// orDefault fills nil fields of deps from DefaultDeps.
func orDefault(deps *Deps) *Deps {
	def := DefaultDeps()
	if deps == nil {
		return def
	}
	d := *deps
	if d.LoadConfig == nil {
		d.LoadConfig = def.LoadConfig
	}
	if d.OpenStore == nil {
		d.OpenStore = def.OpenStore
	}
	if d.ConnectDB == nil {
		d.ConnectDB = def.ConnectDB
	}
	if d.Credentials == nil {
		d.Credentials = def.Credentials
	}
	if d.NewPoster == nil {
		d.NewPoster = def.NewPoster
	}
	if d.OpenEntries == nil {
		d.OpenEntries = def.OpenEntries
	}
	if d.VerifyLogin == nil {
		d.VerifyLogin = def.VerifyLogin
	}
	if d.ReadPassword == nil {
		d.ReadPassword = def.ReadPassword
	}
	return &d
}

// rootString reads a persistent string flag from the root command.
func rootString(cmd *cobra.Command, name string) string {
	if f := cmd.Root().PersistentFlags().Lookup(name); f != nil {
		return f.Value.String()
	}
	return ""
}

// rootBool reads a persistent bool flag from the root command.
func rootBool(cmd *cobra.Command, name string) bool {
	v, _ := cmd.Root().PersistentFlags().GetBool(name)
	return v
}

// loadConfig loads the configuration named by --config and applies the
// --output and --debug overrides.
func loadConfig(cmd *cobra.Command, deps *Deps) (*config.Config, error) {
	cfg, err := deps.LoadConfig(rootString(cmd, "config"))
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if v := rootString(cmd, "output"); v != "" {
		cfg.OutputFormat = config.OutputFormat(v)
		if !cfg.OutputFormat.IsValid() {
			return nil, fmt.Errorf("invalid --output %q (must be text, json, or yaml)", v)
		}
	}
	if rootBool(cmd, "debug") {
		cfg.Debug = true
		cfg.LogLevel = string(logging.LevelDebug)
	}
	return cfg, nil
}

// newLogger builds the process logger from cfg. Logs go to stderr so that
// command output on stdout stays machine-readable.
func newLogger(cfg *config.Config, service string) logging.Logger {
	return logging.NewLogger(&logging.Config{
		Level:       logging.ParseLevel(cfg.LogLevel),
		ServiceName: service,
		Environment: cfg.Environment,
		JSONFormat:  cfg.LogJSON,
		Output:      os.Stderr,
	})
}

// WriteOutput renders v as JSON or YAML, or calls text for the text format.
func WriteOutput(w io.Writer, format config.OutputFormat, v any, text func(io.Writer) error) error {
	switch format {
	case config.OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return text(w)
	}
}

// connectToDatabase opens the Postgres pool described by the store section.
func connectToDatabase(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.Connect(ctx, db.ConfigFromSettings(cfg.Store.Postgres))
}

// newSessionClient logs in to the configured PDS with the stored app password.
func newSessionClient(ctx context.Context, cfg *config.Config, creds *credentials.Store) (bot.Poster, error) {
	if cfg.Bluesky.Identifier == "" {
		return nil, fmt.Errorf("%w: set bluesky.identifier or SKYFEED_BLUESKY_IDENTIFIER", credentials.ErrNoIdentifier)
	}
	password, _, err := creds.AppPassword(cfg.Bluesky.Identifier)
	if err != nil {
		return nil, fmt.Errorf("looking up app password: %w", err)
	}
	return login(ctx, cfg, password)
}

// verifyLogin checks password by opening a session.
func verifyLogin(ctx context.Context, cfg *config.Config, password string) error {
	_, err := login(ctx, cfg, password)
	return err
}

func login(ctx context.Context, cfg *config.Config, password string) (*client.Client, error) {
	opts := client.DefaultOptions()
	opts.Logger = newLogger(cfg, "skyfeed-bot")
	c := client.New(cfg.Bluesky.Service, opts)
	if _, err := c.CreateSession(ctx, cfg.Bluesky.Identifier, password); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return c, nil
}

// openEntryStore connects to Postgres for the feed_entries table.
func openEntryStore(ctx context.Context, cfg *config.Config) (EntryQueue, func(), error) {
	pool, err := connectToDatabase(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	return bot.NewEntryStore(pool), pool.Close, nil
}

// readPassword prompts on stderr and reads a line without echo. When stdin is
// not a terminal it reads a plain line instead.
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(syscall.Stdin)
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	var line string
	if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// splitPair splits "key=value" at the first '='.
func splitPair(s string) (string, string, error) {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" || v == "" {
		return "", "", fmt.Errorf("expected key=value, got %q", s)
	}
	return k, v, nil
}
