package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Scan.MaxKeyPages != 15 || cfg.Scan.ContentIdleTimeout() != 5*time.Second {
		t.Fatalf("unexpected scan defaults: %+v", cfg.Scan)
	}
	if cfg.Scan.Scroll.Step != 300 || cfg.Scan.Scroll.MaxAttempts != 100 {
		t.Fatalf("unexpected scroll defaults: %+v", cfg.Scan.Scroll)
	}
	if cfg.Relevance.Method != "tf-idf" || cfg.Relevance.Aggregation != "max" {
		t.Fatalf("unexpected relevance defaults: %+v", cfg.Relevance)
	}
	if cfg.Relevance.ChunkSize != 1024 || cfg.Relevance.ChunkOverlap != 10 {
		t.Fatalf("unexpected chunk defaults: %+v", cfg.Relevance)
	}
	if cfg.Rules.MetaMinLength != 120 || cfg.Rules.MetaMaxLength != 160 || cfg.Rules.TitleOptimalLength != 55 {
		t.Fatalf("unexpected rule defaults: %+v", cfg.Rules)
	}
	if cfg.Storage.Backend != StorageMemory || cfg.Storage.Prefix != "reports" {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.Embeddings.BaseURL != "http://127.0.0.1:8000" {
		t.Fatalf("unexpected embeddings base url %q", cfg.Embeddings.BaseURL)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
crawl:
  max_depth: 3
  requests_per_second: 1.5
scan:
  keywords: ["about", "pricing"]
  max_key_pages: 5
  workers: 3
  page_timeout_seconds: 20
  scroll:
    step: 500
relevance:
  method: embeddings
  aggregation: median
embeddings:
  base_url: http://embed:9000
  model: mini
storage:
  backend: local
  local_dir: /tmp/reports
pubsub:
  project_id: proj
  topic_name: scans
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Crawl.MaxDepth != 3 || cfg.Crawl.RequestsPerSecond != 1.5 {
		t.Fatalf("expected crawl overrides to apply: %+v", cfg.Crawl)
	}
	if len(cfg.Scan.Keywords) != 2 || cfg.Scan.Keywords[1] != "pricing" {
		t.Fatalf("expected keywords to load: %+v", cfg.Scan.Keywords)
	}
	if cfg.Scan.PageTimeout() != 20*time.Second || cfg.Scan.Workers != 3 {
		t.Fatalf("expected scan overrides to apply: %+v", cfg.Scan)
	}
	if cfg.Scan.Scroll.Step != 500 || cfg.Scan.Scroll.DelayMs != 1000 {
		t.Fatalf("expected scroll step override with default delay: %+v", cfg.Scan.Scroll)
	}
	if cfg.Relevance.Method != "embeddings" || cfg.Embeddings.Model != "mini" {
		t.Fatalf("expected relevance overrides: %+v %+v", cfg.Relevance, cfg.Embeddings)
	}
	if cfg.Storage.Backend != StorageLocal || cfg.Storage.LocalDir != "/tmp/reports" {
		t.Fatalf("expected storage overrides: %+v", cfg.Storage)
	}
	if cfg.Logging.Development {
		t.Fatalf("expected production logging")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SEOSCAN_SERVER_PORT", "7070")
	t.Setenv("SEOSCAN_SCAN_MAX_KEY_PAGES", "3")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 || cfg.Scan.MaxKeyPages != 3 {
		t.Fatalf("expected env overrides, got port=%d pages=%d", cfg.Server.Port, cfg.Scan.MaxKeyPages)
	}
}

func validConfig() Config {
	return Config{
		Server:    ServerConfig{Port: 8080},
		Scan:      ScanConfig{MaxKeyPages: 15, Workers: 1},
		Queue:     QueueConfig{Capacity: 8, Workers: 1},
		Rules:     RulesConfig{MetaMinLength: 120, MetaMaxLength: 160, RelevanceLow: 0.3, RelevanceHigh: 0.5},
		Relevance: RelevanceConfig{Method: "tf-idf", Aggregation: "max"},
		Storage:   StorageConfig{Backend: StorageMemory},
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected base config to be valid, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "auth missing api key", mutate: func(c *Config) { c.Auth.Enabled = true }, want: "auth.api_key"},
		{name: "negative tabs", mutate: func(c *Config) { c.Render.MaxTabs = -1 }, want: "render.max_tabs"},
		{name: "no key pages", mutate: func(c *Config) { c.Scan.MaxKeyPages = 0 }, want: "scan.max_key_pages"},
		{name: "no scan workers", mutate: func(c *Config) { c.Scan.Workers = 0 }, want: "scan.workers"},
		{name: "no queue capacity", mutate: func(c *Config) { c.Queue.Capacity = 0 }, want: "queue.capacity"},
		{name: "no queue workers", mutate: func(c *Config) { c.Queue.Workers = 0 }, want: "queue.workers"},
		{name: "meta window inverted", mutate: func(c *Config) { c.Rules.MetaMinLength = 200 }, want: "rules.meta_min_length"},
		{name: "relevance inverted", mutate: func(c *Config) { c.Rules.RelevanceLow = 0.9 }, want: "rules.relevance_low"},
		{name: "unknown method", mutate: func(c *Config) { c.Relevance.Method = "bm25" }, want: "relevance.method"},
		{name: "unknown aggregation", mutate: func(c *Config) { c.Relevance.Aggregation = "sum" }, want: "relevance.aggregation"},
		{
			name: "embeddings without url",
			mutate: func(c *Config) {
				c.Relevance.Method = "embeddings"
				c.Embeddings.BaseURL = ""
			},
			want: "embeddings.base_url",
		},
		{name: "local without dir", mutate: func(c *Config) { c.Storage.Backend = StorageLocal }, want: "storage.local_dir"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Storage.Backend = StorageGCS }, want: "storage.gcs_bucket"},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "s3" }, want: "storage.backend"},
		{name: "half pubsub", mutate: func(c *Config) { c.PubSub.ProjectID = "proj" }, want: "pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
