// Package worker runs queued scan requests through the scanner and stores,
// archives and announces the results.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-scanner/internal/metrics"
	"github.com/JakeFAU/seo-scanner/internal/seo"
)

// Scanner scans one website.
type Scanner interface {
	ScanWebsite(ctx context.Context, id, url string) (seo.Website, error)
}

// Config controls Worker behavior.
type Config struct {
	ReportPrefix string
	ContentType  string
	Topic        string
	// ScanTimeout bounds a whole website scan, 0 means no limit.
	ScanTimeout time.Duration
}

// Worker consumes scan requests one at a time.
type Worker struct {
	queue     seo.Queue
	scanner   Scanner
	store     seo.WebsiteStore
	blobStore seo.BlobStore
	publisher seo.Publisher
	clock     seo.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker. blobStore and publisher may be nil.
func New(
	queue seo.Queue,
	scanner Scanner,
	store seo.WebsiteStore,
	blobStore seo.BlobStore,
	publisher seo.Publisher,
	clock seo.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.ContentType == "" {
		cfg.ContentType = "application/json"
	}
	if cfg.ReportPrefix == "" {
		cfg.ReportPrefix = "reports"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:     queue,
		scanner:   scanner,
		store:     store,
		blobStore: blobStore,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming scan requests until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		req, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			if !sleepCtx(ctx, 100*time.Millisecond) {
				return
			}
			continue
		}
		w.logger.Debug("dequeued scan", zap.String("website_id", req.ID), zap.String("url", req.URL))
		status := w.process(ctx, req)
		metrics.ObserveScan(status)
	}
}

func (w *Worker) process(ctx context.Context, req seo.ScanRequest) string {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	logger := w.logger.With(zap.String("website_id", req.ID), zap.String("url", req.URL))
	start := w.clock.Now()

	scanCtx := ctx
	if w.cfg.ScanTimeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, w.cfg.ScanTimeout)
		defer cancel()
	}
	site, err := w.scanner.ScanWebsite(scanCtx, req.ID, req.URL)
	if err != nil {
		if errors.Is(err, seo.ErrCrawl) {
			logger.Error("site could not be crawled", zap.Error(err))
			return metrics.ScanCrawlError
		}
		logger.Error("scan failed", zap.Error(err))
		return metrics.ScanFailed
	}

	if err := w.persistAndPublish(ctx, site); err != nil {
		logger.Error("persist scan failed", zap.Error(err))
		return metrics.ScanFailed
	}

	dist := site.Distribution()
	for _, level := range seo.Severities {
		metrics.ObserveFindings(string(level), dist[level])
	}
	logger.Info("scan completed",
		zap.Int("page_count", site.PageCount),
		zap.Float64("seo_score", site.SEOScore),
		zap.Duration("duration", w.clock.Now().Sub(start)),
	)
	return metrics.ScanSucceeded
}

func (w *Worker) persistAndPublish(ctx context.Context, site seo.Website) error {
	if err := w.store.SaveWebsite(ctx, site); err != nil {
		return fmt.Errorf("save website: %w", err)
	}

	uri, err := w.archive(ctx, site)
	if err != nil {
		return err
	}
	if uri != "" {
		w.logger.Debug("report archived", zap.String("website_id", site.ID), zap.String("blob_uri", uri))
	}
	return w.publishResult(ctx, site)
}

func (w *Worker) buildReportPath(websiteID string) string {
	prefix := strings.Trim(w.cfg.ReportPrefix, "/")
	if prefix == "" {
		return websiteID + ".json"
	}
	return fmt.Sprintf("%s/%s.json", prefix, websiteID)
}

func (w *Worker) archive(ctx context.Context, site seo.Website) (string, error) {
	if w.blobStore == nil {
		return "", nil
	}
	data, err := json.Marshal(seo.NewReport(site))
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	uri, err := w.blobStore.PutObject(ctx, w.buildReportPath(site.ID), w.cfg.ContentType, data)
	if err != nil {
		return "", fmt.Errorf("put report: %w", err)
	}
	return uri, nil
}

func (w *Worker) publishResult(ctx context.Context, site seo.Website) error {
	if w.cfg.Topic == "" || w.publisher == nil {
		return nil
	}
	payload := seo.ScanCompleted{WebsiteID: site.ID, URL: site.URL, PageCount: site.PageCount}
	msgID, err := w.publisher.Publish(ctx, w.cfg.Topic, payload)
	if err != nil {
		return fmt.Errorf("publish scan completed: %w", err)
	}
	w.logger.Info("scan published",
		zap.String("website_id", site.ID),
		zap.String("topic", w.cfg.Topic),
		zap.String("message_id", msgID),
	)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
