package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/kerbaras/reader/pkg/pager"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Reader  ReaderConfig  `mapstructure:"reader"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Library LibraryConfig `mapstructure:"library"`
	Display DisplayConfig `mapstructure:"display"`
	Sources SourcesConfig `mapstructure:"sources"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ReaderConfig holds the reading preferences snapshotted into every session
type ReaderConfig struct {
	PrefetchRadius      int    `mapstructure:"prefetch_radius"`
	ReadingDirection    string `mapstructure:"reading_direction"` // "ltr", "rtl" or "vertical"
	AutoAdvance         bool   `mapstructure:"auto_advance"`
	PrefetchConcurrency int    `mapstructure:"prefetch_concurrency"`
}

// SyncConfig holds the remote progress service configuration
type SyncConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	URL      string        `mapstructure:"url"`
	Token    string        `mapstructure:"token"`
	Interval time.Duration `mapstructure:"interval"`
}

// LibraryConfig holds local storage paths
type LibraryConfig struct {
	DBPath    string `mapstructure:"db_path"`
	ExportDir string `mapstructure:"export_dir"`
}

// DisplayConfig selects how downloaded pages are decoded
type DisplayConfig struct {
	Profile string `mapstructure:"profile"`
}

// SourcesConfig holds content provider endpoints
type SourcesConfig struct {
	MangaDexURL    string `mapstructure:"mangadex_url"`
	Language       string `mapstructure:"language"`
	StreamIndexURL string `mapstructure:"stream_index_url"`
	TextDir        string `mapstructure:"text_dir"`
	LinesPerPage   int    `mapstructure:"lines_per_page"`
}

// HTTPConfig holds transport settings shared by every client
type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	Rate      float64       `mapstructure:"rate"` // requests per second
	Burst     int           `mapstructure:"burst"`
	UserAgent string        `mapstructure:"user_agent"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	dataDir := defaultDataPath()
	return &Config{
		Reader: ReaderConfig{
			PrefetchRadius:      pager.DefaultPrefetchRadius,
			ReadingDirection:    string(pager.LeftToRight),
			AutoAdvance:         true,
			PrefetchConcurrency: 3,
		},
		Sync: SyncConfig{
			Enabled:  false,
			Interval: 15 * time.Second,
		},
		Library: LibraryConfig{
			DBPath:    filepath.Join(dataDir, "reader.db"),
			ExportDir: filepath.Join(dataDir, "exports"),
		},
		Display: DisplayConfig{
			Profile: "tablet",
		},
		Sources: SourcesConfig{
			MangaDexURL:  "https://api.mangadex.org",
			Language:     "en",
			LinesPerPage: 40,
		},
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			Rate:      2,
			Burst:     4,
			UserAgent: "reader/1.0",
		},
		Logging: LoggingConfig{
			File:  filepath.Join(dataDir, "reader.log"),
			Level: "info",
		},
	}
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "reader")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "reader")
	}
}

// DefaultConfigPath returns the default config directory for the current OS
func DefaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "reader")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "reader")
	}
}

func newViper(cfg *Config) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("READER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default so env overrides are picked up by Unmarshal
	for key, value := range flatten(cfg) {
		v.SetDefault(key, value)
	}
	return v
}

// Load reads configuration from file and environment. An empty path searches
// the default config directory and the working directory for config.yaml.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	v := newViper(cfg)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultConfigPath())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML to path, creating the directory if needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	for key, value := range flatten(cfg) {
		v.Set(key, value)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks values that would otherwise fail later at session start.
func (c *Config) Validate() error {
	if _, err := pager.ParseReadingDirection(c.Reader.ReadingDirection); err != nil {
		return fmt.Errorf("reader.reading_direction: %w", err)
	}
	if c.Reader.PrefetchRadius < 0 {
		return fmt.Errorf("reader.prefetch_radius must not be negative, got %d", c.Reader.PrefetchRadius)
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive, got %s", c.Sync.Interval)
	}
	if c.Sync.Enabled && c.Sync.URL == "" {
		return errors.New("sync.url is required when sync is enabled")
	}
	if c.Sources.LinesPerPage <= 0 {
		return fmt.Errorf("sources.lines_per_page must be positive, got %d", c.Sources.LinesPerPage)
	}
	return nil
}

// PagerConfig snapshots the reader section into an immutable pager config.
func (c *Config) PagerConfig() pager.Config {
	direction, err := pager.ParseReadingDirection(c.Reader.ReadingDirection)
	if err != nil {
		direction = pager.LeftToRight
	}
	return pager.Config{
		PrefetchRadius:   c.Reader.PrefetchRadius,
		ReadingDirection: direction,
		AutoAdvance:      c.Reader.AutoAdvance,
	}
}

// IsSyncConfigured returns true if the remote progress service can be used
func (c *Config) IsSyncConfigured() bool {
	return c.Sync.Enabled && c.Sync.URL != ""
}

func flatten(cfg *Config) map[string]any {
	return map[string]any{
		"reader.prefetch_radius":      cfg.Reader.PrefetchRadius,
		"reader.reading_direction":    cfg.Reader.ReadingDirection,
		"reader.auto_advance":         cfg.Reader.AutoAdvance,
		"reader.prefetch_concurrency": cfg.Reader.PrefetchConcurrency,
		"sync.enabled":                cfg.Sync.Enabled,
		"sync.url":                    cfg.Sync.URL,
		"sync.token":                  cfg.Sync.Token,
		"sync.interval":               cfg.Sync.Interval.String(),
		"library.db_path":             cfg.Library.DBPath,
		"library.export_dir":          cfg.Library.ExportDir,
		"display.profile":             cfg.Display.Profile,
		"sources.mangadex_url":        cfg.Sources.MangaDexURL,
		"sources.language":            cfg.Sources.Language,
		"sources.stream_index_url":    cfg.Sources.StreamIndexURL,
		"sources.text_dir":            cfg.Sources.TextDir,
		"sources.lines_per_page":      cfg.Sources.LinesPerPage,
		"http.timeout":                cfg.HTTP.Timeout.String(),
		"http.rate":                   cfg.HTTP.Rate,
		"http.burst":                  cfg.HTTP.Burst,
		"http.user_agent":             cfg.HTTP.UserAgent,
		"logging.file":                cfg.Logging.File,
		"logging.level":               cfg.Logging.Level,
	}
}
