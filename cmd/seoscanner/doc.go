// Package main hosts the SEO scanner service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, scan submission and website read endpoints. POST
//     /v1/scans normalizes the URL, allocates a UUIDv7 website ID and enqueues a scan request.
//   - Dispatcher & queue: requests flow through a bounded in-memory queue sized by queue.capacity and are consumed by
//     a fixed worker pool sized by queue.workers. Context cancellation stops workers cleanly on shutdown.
//   - Scan pipeline: the colly-based site graph crawler maps same-host links from the seed, key pages are picked by
//     keyword, and each key page is rendered in its own chromedp tab, scrolled to the bottom, evaluated by the rule
//     engine and reduced to cleaned text. Slow or broken pages are skipped.
//   - Persistence & fanout: the aggregated website is saved to the website store (memory or Postgres), a JSON report
//     is archived to the blob store (memory/local/GCS) and a ScanCompleted event is published when a Pub/Sub topic is
//     configured.
//   - Configuration & plumbing: Viper populates config from env/files with the SEOSCAN prefix; zap provides structured
//     logging; Prometheus collectors are exported via /metrics.
//
// Quick checklist:
//   - Run the service: go run ./cmd/seoscanner -config config.yaml (or rely solely on env overrides such as
//     SEOSCAN_SERVER_PORT, SEOSCAN_DATABASE_DSN, SEOSCAN_STORAGE_BACKEND).
//   - One-off scan: go run ./cmd/seoscanner -scan https://example.com prints the report JSON to stdout.
//   - A Chrome or Chromium binary must be on PATH, or set render.exec_path.
package main
