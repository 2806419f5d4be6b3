package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort            = 8080
	DefaultSourcesFile     = "./config/rss-sources.yaml"
	DefaultNetworkID       = "550e8400-e29b-41d4-a716-446655440000"
	DefaultCacheWindow     = 5 * time.Minute
	DefaultFetchTimeout    = 10 * time.Second
	DefaultUserAgent       = "COMNet RSS Reader/1.0"
	DefaultMaxTotalItems   = 100
	DefaultMaxItems        = 20
	DefaultIngestBatchSize = 10
	DefaultConvertBatch    = 50
	DefaultFetchWorkers    = 4
	DefaultRSSHubInstance  = "https://rsshub.app"
)

// Config is the root configuration.
type Config struct {
	Port             int
	LogLevel         zerolog.Level
	SessionSecret    string
	DefaultNetworkID uuid.UUID
	SourcesFile      string
	RSSHubInstance   string
	Database         DatabaseConfig
	News             NewsConfig
}

// DatabaseConfig selects the gorm dialector.
type DatabaseConfig struct {
	Driver string // postgres or sqlite
	DSN    string
}

// NewsConfig is the content of the sources YAML file.
type NewsConfig struct {
	Settings NewsSettings `yaml:"settings"`
	Sources  []FeedSource `yaml:"sources"`
}

type NewsSettings struct {
	MaxTotalItems    int           `yaml:"max_total_items"`
	CacheWindow      time.Duration `yaml:"cache_window"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
	UserAgent        string        `yaml:"user_agent"`
	IngestBatchSize  int           `yaml:"ingest_batch_size"`
	ConvertBatchSize int           `yaml:"convert_batch_size"`
	FetchWorkers     int           `yaml:"fetch_workers"`
}

// FeedSource is a configured external syndication feed.
type FeedSource struct {
	ID              string `yaml:"id" json:"id"`
	Name            string `yaml:"name" json:"name"`
	Description     string `yaml:"description" json:"description"`
	ProfileImage    string `yaml:"profile_image" json:"profileImage"`
	RSSURL          string `yaml:"rss_url" json:"rssUrl"`
	Category        string `yaml:"category" json:"category"`
	Language        string `yaml:"language" json:"language"`
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	MaxItems        int    `yaml:"max_items" json:"maxItems"`
	RefreshInterval int    `yaml:"refresh_interval" json:"refreshInterval"` // minutes, informational
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Port:             DefaultPort,
		LogLevel:         zerolog.InfoLevel,
		SessionSecret:    "secret_key_change_me",
		DefaultNetworkID: uuid.MustParse(DefaultNetworkID),
		SourcesFile:      DefaultSourcesFile,
		RSSHubInstance:   DefaultRSSHubInstance,
		Database: DatabaseConfig{
			Driver: "postgres",
			DSN:    "host=localhost user=postgres password=postgres dbname=comnet port=5432 sslmode=disable",
		},
		News: NewsConfig{Settings: DefaultNewsSettings()},
	}
}

func DefaultNewsSettings() NewsSettings {
	return NewsSettings{
		MaxTotalItems:    DefaultMaxTotalItems,
		CacheWindow:      DefaultCacheWindow,
		FetchTimeout:     DefaultFetchTimeout,
		UserAgent:        DefaultUserAgent,
		IngestBatchSize:  DefaultIngestBatchSize,
		ConvertBatchSize: DefaultConvertBatch,
		FetchWorkers:     DefaultFetchWorkers,
	}
}

// Load reads .env, applies environment overrides and then loads the news
// sources file. A missing sources file leaves the source list empty.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	news, err := LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}
	cfg.News = *news
	return cfg, nil
}

// LoadSources parses the YAML sources file. Zero-valued settings fall back to
// defaults and sources without max_items get DefaultMaxItems.
func LoadSources(path string) (*NewsConfig, error) {
	news := &NewsConfig{Settings: DefaultNewsSettings()}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return news, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sources %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, news); err != nil {
		return nil, fmt.Errorf("parse sources %s: %w", path, err)
	}

	news.Settings.fillDefaults()
	for i := range news.Sources {
		if news.Sources[i].MaxItems <= 0 {
			news.Sources[i].MaxItems = DefaultMaxItems
		}
	}
	return news, nil
}

func (s *NewsSettings) fillDefaults() {
	d := DefaultNewsSettings()
	if s.MaxTotalItems <= 0 {
		s.MaxTotalItems = d.MaxTotalItems
	}
	if s.CacheWindow <= 0 {
		s.CacheWindow = d.CacheWindow
	}
	if s.FetchTimeout <= 0 {
		s.FetchTimeout = d.FetchTimeout
	}
	if s.UserAgent == "" {
		s.UserAgent = d.UserAgent
	}
	if s.IngestBatchSize <= 0 {
		s.IngestBatchSize = d.IngestBatchSize
	}
	if s.ConvertBatchSize <= 0 {
		s.ConvertBatchSize = d.ConvertBatchSize
	}
	if s.FetchWorkers <= 0 {
		s.FetchWorkers = d.FetchWorkers
	}
}

// EnabledSources returns the sources with Enabled set, in file order.
func (n *NewsConfig) EnabledSources() []FeedSource {
	var out []FeedSource
	for _, s := range n.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// FindEnabled looks up an enabled source by id.
func (n *NewsConfig) FindEnabled(id string) (FeedSource, bool) {
	for _, s := range n.Sources {
		if s.ID == id && s.Enabled {
			return s, true
		}
	}
	return FeedSource{}, false
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if level, err := zerolog.ParseLevel(v); err == nil {
			cfg.LogLevel = level
		}
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		cfg.SessionSecret = v
	}
	if v := os.Getenv("DEFAULT_NETWORK_ID"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return fmt.Errorf("invalid DEFAULT_NETWORK_ID %q: %w", v, err)
		}
		cfg.DefaultNetworkID = id
	}
	if v := os.Getenv("RSS_SOURCES_FILE"); v != "" {
		cfg.SourcesFile = v
	}
	if v := os.Getenv("RSSHUB_INSTANCE_URL"); v != "" {
		cfg.RSSHubInstance = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	return nil
}
