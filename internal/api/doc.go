// Package api hosts the HTTP server, middleware, and REST handlers of the
// scanner. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/scans to queue a website scan.
//   - GET /v1/websites, /v1/websites/{id} and
//     /v1/websites/{id}/seo-logs/distribution to read stored results.
package api
