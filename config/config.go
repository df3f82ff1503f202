// Package config provides configuration management for skyfeed.
// It supports loading configuration from YAML files, environment variables, and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/skyfeed/pkg/blend"
	sferrors "github.com/otherjamesbrown/skyfeed/pkg/errors"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Store backends.
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Default configuration values.
const (
	DefaultConfigDir     = ".skyfeed"
	DefaultConfigFile    = "config.yaml"
	DefaultListenAddress = ":3000"
	DefaultFeedName      = "toplinks"
	DefaultCacheMaxAge   = 10 * time.Minute
	DefaultKeyPrefix     = "skyfeed"
	DefaultCacheTTL      = time.Minute
	DefaultCacheSize     = 64
	DefaultBlueskyURL    = "https://bsky.social"
	DefaultPostInterval  = 2 * time.Second
	DefaultOutputFormat  = OutputFormatText
)

// FeedConfig describes how one feed blends the ranked lists.
type FeedConfig struct {
	// Mode is "pattern" (default) or "flatten".
	Mode string `yaml:"mode,omitempty"`

	// Pattern lists compact slots such as "hour0". Empty means the default pattern.
	Pattern []string `yaml:"pattern,omitempty"`

	// Order lists window names for flatten mode.
	Order []string `yaml:"order,omitempty"`
}

// Blender converts the feed definition into a blend.Blender.
func (f FeedConfig) Blender() (blend.Blender, error) {
	mode, err := blend.ParseMode(f.Mode)
	if err != nil {
		return blend.Blender{}, err
	}
	if mode == blend.ModeFlatten {
		if len(f.Order) == 0 {
			return blend.Blender{}, fmt.Errorf("%w: flatten feed needs an order", sferrors.ErrValidation)
		}
		return blend.NewFlattenBlender(f.Order...), nil
	}
	if len(f.Pattern) == 0 {
		return blend.NewPatternBlender(blend.DefaultPattern()), nil
	}
	p, err := blend.ParsePattern(f.Pattern)
	if err != nil {
		return blend.Blender{}, err
	}
	return blend.NewPatternBlender(p), nil
}

// FeedgenConfig holds settings for the feed generator service.
type FeedgenConfig struct {
	// ListenAddress is the host:port the HTTP server binds.
	ListenAddress string `yaml:"listen_address"`

	// Hostname is the public host used to build the did:web identity.
	Hostname string `yaml:"hostname,omitempty"`

	// ServiceDID overrides the did:web derived from Hostname.
	ServiceDID string `yaml:"service_did,omitempty"`

	// PublisherDID owns the feed generator records (at://<publisher>/app.bsky.feed.generator/<name>).
	PublisherDID string `yaml:"publisher_did,omitempty"`

	// DefaultFeed is served when a request names no feed.
	DefaultFeed string `yaml:"default_feed"`

	// CacheMaxAge sets the Cache-Control max-age of skeleton responses.
	CacheMaxAge time.Duration `yaml:"cache_max_age"`

	// Feeds maps a feed record key to its blend definition.
	Feeds map[string]FeedConfig `yaml:"feeds,omitempty"`
}

// DID returns the service DID, deriving did:web:<hostname> when unset.
func (c FeedgenConfig) DID() string {
	if c.ServiceDID != "" {
		return c.ServiceDID
	}
	if c.Hostname != "" {
		return "did:web:" + c.Hostname
	}
	return ""
}

// FeedNames returns the configured feed names in sorted order.
func (c FeedgenConfig) FeedNames() []string {
	names := make([]string, 0, len(c.Feeds))
	for name := range c.Feeds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Blenders converts every feed definition.
func (c FeedgenConfig) Blenders() (map[string]blend.Blender, error) {
	out := make(map[string]blend.Blender, len(c.Feeds))
	for name, f := range c.Feeds {
		b, err := f.Blender()
		if err != nil {
			return nil, fmt.Errorf("feed %q: %w", name, err)
		}
		out[name] = b
	}
	return out, nil
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// PostgresConfig holds PostgreSQL connection settings. The password is only
// read from SKYFEED_DB_PASSWORD.
type PostgresConfig struct {
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Database string `yaml:"database,omitempty"`
	User     string `yaml:"user,omitempty"`
	SSLMode  string `yaml:"sslmode,omitempty"`
}

// IsConfigured returns true if the required connection fields are set.
func (c PostgresConfig) IsConfigured() bool {
	return c.Host != "" && c.Database != "" && c.User != ""
}

// StoreConfig selects and configures the ranked-list store.
type StoreConfig struct {
	// Backend is redis, postgres or memory.
	Backend string `yaml:"backend"`

	// KeyPrefix namespaces Redis keys (<prefix>:<window>).
	KeyPrefix string `yaml:"key_prefix,omitempty"`

	// KeyTTL expires lists written to Redis. Zero keeps them forever.
	KeyTTL time.Duration `yaml:"key_ttl,omitempty"`

	// CacheTTL and CacheSize configure the in-process read cache. A zero TTL disables it.
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	CacheSize int           `yaml:"cache_size"`

	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres,omitempty"`

	// SeedFile preloads the memory backend from a JSON object of lists.
	SeedFile string `yaml:"seed_file,omitempty"`
}

// FeedLink is one linked bullet in the announcement post.
type FeedLink struct {
	Label string `yaml:"label"`
	URL   string `yaml:"url"`
}

// AnnouncementConfig is the content of the account introduction post.
type AnnouncementConfig struct {
	Title      string     `yaml:"title"`
	URL        string     `yaml:"url"`
	Intro      string     `yaml:"intro"`
	Feeds      []FeedLink `yaml:"feeds"`
	FooterText string     `yaml:"footer_text,omitempty"`
	FooterLink FeedLink   `yaml:"footer_link,omitempty"`
	EmbedURI   string     `yaml:"embed_uri,omitempty"`
	EmbedCID   string     `yaml:"embed_cid,omitempty"`
}

// BlueskyConfig holds settings for posting to Bluesky.
type BlueskyConfig struct {
	// Service is the PDS base URL.
	Service string `yaml:"service"`

	// Identifier is the handle or DID used to log in.
	Identifier string `yaml:"identifier,omitempty"`

	// PostInterval spaces consecutive outbound requests.
	PostInterval time.Duration `yaml:"post_interval"`

	Announcement AnnouncementConfig `yaml:"announcement"`
}

// Config holds the complete skyfeed configuration.
type Config struct {
	LogLevel     string       `yaml:"log_level"`
	LogJSON      bool         `yaml:"log_json,omitempty"`
	Environment  string       `yaml:"environment"`
	Debug        bool         `yaml:"debug,omitempty"`
	OutputFormat OutputFormat `yaml:"output_format"`

	Feedgen FeedgenConfig `yaml:"feedgen"`
	Store   StoreConfig   `yaml:"store"`
	Bluesky BlueskyConfig `yaml:"bluesky"`
}

// DefaultAnnouncement returns the stock introduction post.
func DefaultAnnouncement() AnnouncementConfig {
	return AnnouncementConfig{
		Title: "The Blue Report",
		URL:   "https://theblue.report",
		Intro: " is a site that rounds up the most popular links on Bluesky. This account hosts feeds to view them in-app:",
		Feeds: []FeedLink{
			{Label: "Top Links (past day)", URL: "https://bsky.app/profile/theblue.report/feed/toplinksday"},
			{Label: "Trending Links (past hour)", URL: "https://bsky.app/profile/theblue.report/feed/toplinkshour"},
			{Label: "Best Links (past week)", URL: "https://bsky.app/profile/theblue.report/feed/toplinksweek"},
		},
		FooterText: "For the nerds, Atom/JSON feeds are also available! ",
		FooterLink: FeedLink{Label: "More info here", URL: "https://theblue.report/about"},
		EmbedURI:   "at://did:plc:zrcqicmkxum6tir6ahthppif/app.bsky.feed.generator/toplinksday",
		EmbedCID:   "bafyreia3jwwvzrqkm32nausivhhe7do7zukub3ht32skf2tvw6iq4e44o4",
	}
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:     "info",
		Environment:  "development",
		OutputFormat: DefaultOutputFormat,
		Feedgen: FeedgenConfig{
			ListenAddress: DefaultListenAddress,
			DefaultFeed:   DefaultFeedName,
			CacheMaxAge:   DefaultCacheMaxAge,
			Feeds: map[string]FeedConfig{
				DefaultFeedName: {Mode: string(blend.ModePattern)},
			},
		},
		Store: StoreConfig{
			Backend:   BackendRedis,
			KeyPrefix: DefaultKeyPrefix,
			CacheTTL:  DefaultCacheTTL,
			CacheSize: DefaultCacheSize,
			Redis:     RedisConfig{Address: "localhost:6379"},
		},
		Bluesky: BlueskyConfig{
			Service:      DefaultBlueskyURL,
			PostInterval: DefaultPostInterval,
			Announcement: DefaultAnnouncement(),
		},
	}
}

// ConfigDir returns the configuration directory path.
// Uses $SKYFEED_CONFIG_DIR if set, otherwise ~/.skyfeed
func ConfigDir() (string, error) {
	if dir := os.Getenv("SKYFEED_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the default configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads configuration in this order (later sources override earlier):
//  1. Default values
//  2. Config file (path, or ~/.skyfeed/config.yaml when path is empty)
//  3. Environment variables (SKYFEED_*)
//
// A missing default file is not an error; a missing explicit path is.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		p, err := ConfigPath()
		if err != nil {
			return nil, fmt.Errorf("getting config path: %w", err)
		}
		path = p
	}

	if _, err := os.Stat(path); err == nil || explicit {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromFile decodes YAML over cfg. Keys absent from the file keep their
// current values. A feeds section replaces the default feeds wholesale.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	defaultFeeds := cfg.Feedgen.Feeds
	cfg.Feedgen.Feeds = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	if cfg.Feedgen.Feeds == nil {
		cfg.Feedgen.Feeds = defaultFeeds
	}

	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *Config) {
	if v := os.Getenv("SKYFEED_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SKYFEED_LOG_JSON"); v != "" {
		cfg.LogJSON = isTrue(v)
	}
	if v := os.Getenv("SKYFEED_ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	if isTrue(os.Getenv("SKYFEED_DEBUG")) {
		cfg.Debug = true
	}
	if v := os.Getenv("SKYFEED_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}

	// Feed generator.
	if v := os.Getenv("SKYFEED_LISTEN_ADDRESS"); v != "" {
		cfg.Feedgen.ListenAddress = v
	}
	if v := os.Getenv("SKYFEED_HOSTNAME"); v != "" {
		cfg.Feedgen.Hostname = v
	}
	if v := os.Getenv("SKYFEED_SERVICE_DID"); v != "" {
		cfg.Feedgen.ServiceDID = v
	}
	if v := os.Getenv("SKYFEED_PUBLISHER_DID"); v != "" {
		cfg.Feedgen.PublisherDID = v
	}
	if v := os.Getenv("SKYFEED_DEFAULT_FEED"); v != "" {
		cfg.Feedgen.DefaultFeed = v
	}
	if v := os.Getenv("SKYFEED_CACHE_MAX_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Feedgen.CacheMaxAge = d
		}
	}

	// Store.
	if v := os.Getenv("SKYFEED_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("SKYFEED_STORE_KEY_PREFIX"); v != "" {
		cfg.Store.KeyPrefix = v
	}
	if v := os.Getenv("SKYFEED_STORE_SEED_FILE"); v != "" {
		cfg.Store.SeedFile = v
	}
	if v := os.Getenv("SKYFEED_REDIS_ADDRESS"); v != "" {
		cfg.Store.Redis.Address = v
	}
	if v := os.Getenv("SKYFEED_REDIS_PASSWORD"); v != "" {
		cfg.Store.Redis.Password = v
	}
	if v := os.Getenv("SKYFEED_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Store.Redis.DB = db
		}
	}

	// Bluesky.
	if v := os.Getenv("SKYFEED_BLUESKY_SERVICE"); v != "" {
		cfg.Bluesky.Service = v
	}
	if v := os.Getenv("SKYFEED_BLUESKY_IDENTIFIER"); v != "" {
		cfg.Bluesky.Identifier = v
	}
}

func isTrue(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("%w: invalid output_format %q (must be text, json, or yaml)", sferrors.ErrValidation, c.OutputFormat)
	}

	switch c.Store.Backend {
	case BackendRedis:
		if c.Store.Redis.Address == "" {
			return fmt.Errorf("%w: store.redis.address is required for the redis backend", sferrors.ErrValidation)
		}
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("%w: unknown store backend %q (must be redis, postgres, or memory)", sferrors.ErrValidation, c.Store.Backend)
	}
	if c.Store.CacheTTL < 0 || c.Store.KeyTTL < 0 {
		return fmt.Errorf("%w: store ttl values must not be negative", sferrors.ErrValidation)
	}
	if c.Store.CacheTTL > 0 && c.Store.CacheSize <= 0 {
		return fmt.Errorf("%w: store.cache_size must be positive when caching is enabled", sferrors.ErrValidation)
	}

	if c.Feedgen.CacheMaxAge < 0 {
		return fmt.Errorf("%w: feedgen.cache_max_age must not be negative", sferrors.ErrValidation)
	}
	if _, err := c.Feedgen.Blenders(); err != nil {
		return fmt.Errorf("%w: %v", sferrors.ErrValidation, err)
	}
	if _, ok := c.Feedgen.Feeds[c.Feedgen.DefaultFeed]; !ok {
		return fmt.Errorf("%w: default_feed %q is not a configured feed", sferrors.ErrValidation, c.Feedgen.DefaultFeed)
	}

	if c.Bluesky.PostInterval <= 0 {
		return fmt.Errorf("%w: bluesky.post_interval must be positive", sferrors.ErrValidation)
	}

	return nil
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// SaveConfig writes cfg to path, or to the default location when path is empty.
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return fmt.Errorf("getting config path: %w", err)
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
