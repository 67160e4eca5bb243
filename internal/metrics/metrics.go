// Package metrics exposes Prometheus collectors for the scanner service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Page outcomes.
const (
	PageScanned = "scanned"
	PageTimeout = "timeout"
	PageFailed  = "failed"
)

// Scan outcomes.
const (
	ScanSucceeded  = "succeeded"
	ScanFailed     = "failed"
	ScanCrawlError = "crawl_error"
)

// Enqueue outcomes.
const (
	EnqueueAccepted = "accepted"
	EnqueueRejected = "rejected"
)

var (
	scansTotal                 *prometheus.CounterVec
	pagesTotal                 *prometheus.CounterVec
	pageRenderSeconds          *prometheus.HistogramVec
	findingsTotal              *prometheus.CounterVec
	crawlNodes                 *prometheus.HistogramVec
	crawlRateLimitDelay        prometheus.Histogram
	robotsFallbacks            *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	activeWorkers              prometheus.Gauge
	scansEnqueued              *prometheus.CounterVec
	queueDepth                 prometheus.Gauge
	dispatcherWorkers          prometheus.Gauge

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scansTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seoscan_scans_total",
				Help: "Total number of website scans, labeled by status.",
			},
			[]string{"status"},
		)

		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seoscan_pages_total",
				Help: "Total number of key pages processed, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		pageRenderSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seoscan_page_render_seconds",
				Help:    "Time until DOMContentLoaded for scanned pages.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"site"},
		)

		findingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seoscan_findings_total",
				Help: "Total number of rule findings, labeled by level.",
			},
			[]string{"level"},
		)

		crawlNodes = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seoscan_crawl_nodes",
				Help:    "Number of nodes discovered per site graph.",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 200, 500},
			},
			[]string{"site"},
		)

		crawlRateLimitDelay = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "seoscan_crawl_rate_limit_delay_seconds",
				Help:    "Time crawl requests spent waiting on the rate limiter.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5},
			},
		)

		robotsFallbacks = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seoscan_robots_fallback_total",
				Help: "Number of unreachable robots.txt files treated as allow-all, labeled by site.",
			},
			[]string{"site"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seoscan_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seoscan_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "seoscan_active_workers",
				Help: "Number of workers currently scanning a website.",
			},
		)

		scansEnqueued = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seoscan_scans_enqueued_total",
				Help: "Total number of scan requests offered to the queue, labeled by result.",
			},
			[]string{"result"},
		)

		queueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "seoscan_queue_depth",
				Help: "Number of scan requests waiting for a worker.",
			},
		)

		dispatcherWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "seoscan_dispatcher_workers",
				Help: "Number of workers started by the dispatcher.",
			},
		)
	})
}

// SanitizeSite reduces a URL to its lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveScan counts a finished scan.
func ObserveScan(status string) {
	Init()
	scansTotal.WithLabelValues(status).Inc()
}

// ObservePage counts one key page and, for scanned pages, its render time.
func ObservePage(pageURL, status string, renderSeconds float64) {
	Init()
	site := SanitizeSite(pageURL)
	pagesTotal.WithLabelValues(site, status).Inc()
	if status == PageScanned {
		pageRenderSeconds.WithLabelValues(site).Observe(renderSeconds)
	}
}

// ObserveFindings adds count findings of the given level.
func ObserveFindings(level string, count int) {
	Init()
	if count > 0 {
		findingsTotal.WithLabelValues(level).Add(float64(count))
	}
}

// ObserveCrawl records the size of a built site graph.
func ObserveCrawl(seed string, nodes int) {
	Init()
	crawlNodes.WithLabelValues(SanitizeSite(seed)).Observe(float64(nodes))
}

// ObserveRateLimitDelay records the time a crawl request waited on the limiter.
func ObserveRateLimitDelay(d time.Duration) {
	Init()
	crawlRateLimitDelay.Observe(d.Seconds())
}

// ObserveRobotsFallback counts a robots.txt that was replaced by an allow-all file.
func ObserveRobotsFallback(robotsURL string) {
	Init()
	robotsFallbacks.WithLabelValues(SanitizeSite(robotsURL)).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveEnqueue counts one enqueue attempt.
func ObserveEnqueue(result string) {
	Init()
	scansEnqueued.WithLabelValues(result).Inc()
}

// SetQueueDepth records the current queue length.
func SetQueueDepth(n int) {
	Init()
	queueDepth.Set(float64(n))
}

// SetDispatcherWorkers records the size of the worker pool.
func SetDispatcherWorkers(n int) {
	Init()
	dispatcherWorkers.Set(float64(n))
}
