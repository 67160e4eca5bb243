// Package config loads and validates scanner configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/seo-scanner/internal/relevance"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageLocal  = "local"
	StorageGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Crawl      CrawlConfig      `mapstructure:"crawl"`
	Render     RenderConfig     `mapstructure:"render"`
	Scan       ScanConfig       `mapstructure:"scan"`
	Rules      RulesConfig      `mapstructure:"rules"`
	Relevance  RelevanceConfig  `mapstructure:"relevance"`
	Embeddings EmbeddingsConfig `mapstructure:"embeddings"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Database   DatabaseConfig   `mapstructure:"database"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Storage    StorageConfig    `mapstructure:"storage"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// CrawlConfig bounds the site graph crawl.
type CrawlConfig struct {
	UserAgent             string  `mapstructure:"user_agent"`
	MaxDepth              int     `mapstructure:"max_depth"`
	MaxPages              int     `mapstructure:"max_pages"`
	MaxInFlight           int     `mapstructure:"max_in_flight"`
	RequestsPerSecond     float64 `mapstructure:"requests_per_second"`
	RequestTimeoutSeconds int     `mapstructure:"request_timeout_seconds"`
	RespectRobots         bool    `mapstructure:"respect_robots"`
}

// RenderConfig configures the headless browser.
type RenderConfig struct {
	Headless     bool   `mapstructure:"headless"`
	Stealth      bool   `mapstructure:"stealth"`
	UserAgent    string `mapstructure:"user_agent"`
	MaxTabs      int    `mapstructure:"max_tabs"`
	WindowWidth  int    `mapstructure:"window_width"`
	WindowHeight int    `mapstructure:"window_height"`
	ExecPath     string `mapstructure:"exec_path"`
}

// ScanConfig drives the per-website scan.
type ScanConfig struct {
	Keywords             []string     `mapstructure:"keywords"`
	MaxKeyPages          int          `mapstructure:"max_key_pages"`
	Workers              int          `mapstructure:"workers"`
	PageTimeoutSeconds   int          `mapstructure:"page_timeout_seconds"`
	ContentIdleTimeoutMs int          `mapstructure:"content_idle_timeout_ms"`
	ScanTimeoutSeconds   int          `mapstructure:"scan_timeout_seconds"`
	Scroll               ScrollConfig `mapstructure:"scroll"`
}

// ScrollConfig tunes the infinite scroll routine.
type ScrollConfig struct {
	DelayMs     int     `mapstructure:"delay_ms"`
	Step        int     `mapstructure:"step"`
	MaxAttempts int     `mapstructure:"max_attempts"`
	GrowAfter   int     `mapstructure:"grow_after"`
	StepGrowth  int     `mapstructure:"step_growth"`
	MaxStep     int     `mapstructure:"max_step"`
	Tolerance   float64 `mapstructure:"tolerance"`
}

// RulesConfig holds the rule engine thresholds.
type RulesConfig struct {
	TitleOptimalLength int     `mapstructure:"title_optimal_length"`
	TitleDelta         int     `mapstructure:"title_delta"`
	MetaMinLength      int     `mapstructure:"meta_min_length"`
	MetaMaxLength      int     `mapstructure:"meta_max_length"`
	MetaIdealMaxLength int     `mapstructure:"meta_ideal_max_length"`
	RelevanceLow       float64 `mapstructure:"relevance_low"`
	RelevanceHigh      float64 `mapstructure:"relevance_high"`
	SemanticGreatCount int     `mapstructure:"semantic_great_count"`
}

// RelevanceConfig selects the comparison strategy.
type RelevanceConfig struct {
	Method       string `mapstructure:"method"`
	Aggregation  string `mapstructure:"aggregation"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	MaxFeatures  int    `mapstructure:"max_features"`
	MaxNGram     int    `mapstructure:"max_ngram"`
}

// EmbeddingsConfig points at an OpenAI-compatible embeddings server.
type EmbeddingsConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	BatchSize      int    `mapstructure:"batch_size"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// QueueConfig sizes the scan queue and its worker pool.
type QueueConfig struct {
	Capacity int `mapstructure:"capacity"`
	Workers  int `mapstructure:"workers"`
}

// DatabaseConfig enables the Postgres website store when DSN is set.
type DatabaseConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
	EnsureSchema           bool   `mapstructure:"ensure_schema"`
}

// PubSubConfig enables completion events when both fields are set.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// StorageConfig selects where JSON reports are archived.
type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	LocalDir    string `mapstructure:"local_dir"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SEOSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("logging.development", true)

	v.SetDefault("crawl.user_agent", "seo-scanner/0.1")
	v.SetDefault("crawl.max_depth", 2)
	v.SetDefault("crawl.max_pages", 200)
	v.SetDefault("crawl.max_in_flight", 4)
	v.SetDefault("crawl.requests_per_second", 5.0)
	v.SetDefault("crawl.request_timeout_seconds", 15)
	v.SetDefault("crawl.respect_robots", true)

	v.SetDefault("render.headless", true)
	v.SetDefault("render.stealth", true)
	v.SetDefault("render.max_tabs", 4)
	v.SetDefault("render.window_width", 1366)
	v.SetDefault("render.window_height", 900)

	v.SetDefault("scan.max_key_pages", 15)
	v.SetDefault("scan.workers", 1)
	v.SetDefault("scan.page_timeout_seconds", 60)
	v.SetDefault("scan.content_idle_timeout_ms", 5000)
	v.SetDefault("scan.scan_timeout_seconds", 0)
	v.SetDefault("scan.scroll.delay_ms", 1000)
	v.SetDefault("scan.scroll.step", 300)
	v.SetDefault("scan.scroll.max_attempts", 100)
	v.SetDefault("scan.scroll.grow_after", 10)
	v.SetDefault("scan.scroll.step_growth", 100)
	v.SetDefault("scan.scroll.max_step", 1000)
	v.SetDefault("scan.scroll.tolerance", 10.0)

	v.SetDefault("rules.title_optimal_length", 55)
	v.SetDefault("rules.title_delta", 10)
	v.SetDefault("rules.meta_min_length", 120)
	v.SetDefault("rules.meta_max_length", 160)
	v.SetDefault("rules.meta_ideal_max_length", 120)
	v.SetDefault("rules.relevance_low", 0.3)
	v.SetDefault("rules.relevance_high", 0.5)
	v.SetDefault("rules.semantic_great_count", 4)

	v.SetDefault("relevance.method", string(relevance.MethodTFIDF))
	v.SetDefault("relevance.aggregation", string(relevance.AggregateMax))
	v.SetDefault("relevance.chunk_size", relevance.DefaultChunkSize)
	v.SetDefault("relevance.chunk_overlap", relevance.DefaultChunkOverlap)
	v.SetDefault("relevance.max_features", relevance.DefaultMaxFeatures)
	v.SetDefault("relevance.max_ngram", relevance.DefaultMaxNGram)

	v.SetDefault("embeddings.base_url", "http://127.0.0.1:8000")
	v.SetDefault("embeddings.model", "text-embedding-3-small")
	v.SetDefault("embeddings.batch_size", 64)
	v.SetDefault("embeddings.timeout_seconds", 30)

	v.SetDefault("queue.capacity", 64)
	v.SetDefault("queue.workers", 1)

	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime_minutes", 30)
	v.SetDefault("database.ensure_schema", true)

	v.SetDefault("storage.backend", StorageMemory)
	v.SetDefault("storage.local_dir", "data/reports")
	v.SetDefault("storage.prefix", "reports")
	v.SetDefault("storage.content_type", "application/json")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return errors.New("auth.api_key must be set when auth is enabled")
	}
	if c.Render.MaxTabs < 0 {
		return errors.New("render.max_tabs must be >= 0")
	}
	if c.Scan.MaxKeyPages <= 0 {
		return errors.New("scan.max_key_pages must be > 0")
	}
	if c.Scan.Workers <= 0 {
		return errors.New("scan.workers must be > 0")
	}
	if c.Queue.Capacity <= 0 {
		return errors.New("queue.capacity must be > 0")
	}
	if c.Queue.Workers <= 0 {
		return errors.New("queue.workers must be > 0")
	}
	if c.Rules.MetaMinLength > c.Rules.MetaMaxLength {
		return errors.New("rules.meta_min_length must be <= rules.meta_max_length")
	}
	if c.Rules.RelevanceLow > c.Rules.RelevanceHigh {
		return errors.New("rules.relevance_low must be <= rules.relevance_high")
	}
	method, err := relevance.ParseMethod(c.Relevance.Method)
	if err != nil {
		return fmt.Errorf("relevance.method: %w", err)
	}
	if _, err := relevance.ParseAggregation(c.Relevance.Aggregation); err != nil {
		return fmt.Errorf("relevance.aggregation: %w", err)
	}
	if method == relevance.MethodEmbeddings && c.Embeddings.BaseURL == "" {
		return errors.New("embeddings.base_url must be set for the embeddings method")
	}
	switch c.Storage.Backend {
	case StorageMemory:
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			return errors.New("storage.local_dir must be set for the local backend")
		}
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			return errors.New("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return errors.New("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

// PageTimeout bounds one key page.
func (c ScanConfig) PageTimeout() time.Duration {
	return time.Duration(c.PageTimeoutSeconds) * time.Second
}

// ContentIdleTimeout bounds the network idle wait before text extraction.
func (c ScanConfig) ContentIdleTimeout() time.Duration {
	return time.Duration(c.ContentIdleTimeoutMs) * time.Millisecond
}

// ScanTimeout bounds a whole website scan, 0 means unlimited.
func (c ScanConfig) ScanTimeout() time.Duration {
	return time.Duration(c.ScanTimeoutSeconds) * time.Second
}

// RequestTimeout bounds one API request.
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful HTTP shutdown.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}
