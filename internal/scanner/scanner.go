// Package scanner drives a full website scan: it maps the site, picks the key
// pages, renders each one and runs the rule engine over the live DOM.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/seo-scanner/internal/metrics"
	"github.com/JakeFAU/seo-scanner/internal/seo"
	"github.com/JakeFAU/seo-scanner/internal/sitegraph"
)

// ReadySelector is awaited before the rule engine reads the DOM.
const ReadySelector = "body:not(:empty)"

// SiteMapper discovers the same-origin link graph of a site.
type SiteMapper interface {
	BuildSiteGraph(ctx context.Context, seedURL string) (*sitegraph.Graph, error)
}

// RuleEngine evaluates a parsed page.
type RuleEngine interface {
	Evaluate(ctx context.Context, doc *goquery.Document) ([]seo.Finding, error)
}

// TextExtractor produces the cleaned body text of a document.
type TextExtractor interface {
	Text(doc *goquery.Document) string
}

// Config tunes a scan.
type Config struct {
	Keywords    []string
	MaxKeyPages int
	// Workers is the number of tabs scanning pages concurrently.
	Workers int
	// PageTimeout bounds all work on one page.
	PageTimeout time.Duration
	// ContentIdleTimeout bounds the network-idle wait before text extraction.
	ContentIdleTimeout time.Duration
	Scroll             ScrollConfig
}

// DefaultConfig returns the stock scan settings.
func DefaultConfig() Config {
	return Config{
		Keywords:           sitegraph.DefaultKeywords,
		MaxKeyPages:        15,
		Workers:            1,
		PageTimeout:        60 * time.Second,
		ContentIdleTimeout: 5 * time.Second,
		Scroll:             DefaultScrollConfig(),
	}
}

// Scanner is safe for concurrent use when its collaborators are.
type Scanner struct {
	mapper    SiteMapper
	renderer  seo.Renderer
	rules     RuleEngine
	extractor TextExtractor
	clock     seo.Clock
	ids       seo.IDGenerator
	cfg       Config
	logger    *zap.Logger
}

// New wires a Scanner. Zero config fields fall back to DefaultConfig values.
func New(
	mapper SiteMapper,
	renderer seo.Renderer,
	rules RuleEngine,
	extractor TextExtractor,
	clock seo.Clock,
	ids seo.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Scanner {
	def := DefaultConfig()
	if cfg.Keywords == nil {
		cfg.Keywords = def.Keywords
	}
	if cfg.MaxKeyPages <= 0 {
		cfg.MaxKeyPages = def.MaxKeyPages
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = def.PageTimeout
	}
	if cfg.ContentIdleTimeout <= 0 {
		cfg.ContentIdleTimeout = def.ContentIdleTimeout
	}
	cfg.Scroll = cfg.Scroll.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		mapper:    mapper,
		renderer:  renderer,
		rules:     rules,
		extractor: extractor,
		clock:     clock,
		ids:       ids,
		cfg:       cfg,
		logger:    logger,
	}
}

// ScanWebsite scans the key pages of siteURL and returns the aggregated
// Website with the given id. Pages that fail or time out are left out. A seed
// that cannot be crawled or a canceled ctx fails the whole scan.
func (s *Scanner) ScanWebsite(ctx context.Context, id, siteURL string) (seo.Website, error) {
	graph, err := s.mapper.BuildSiteGraph(ctx, siteURL)
	if err != nil {
		return seo.Website{}, fmt.Errorf("build site graph: %w", err)
	}
	urls := sitegraph.SelectKeyPages(graph, s.cfg.Keywords, s.cfg.MaxKeyPages)
	s.logger.Info("key pages selected",
		zap.String("website_id", id),
		zap.String("url", siteURL),
		zap.Int("graph_nodes", graph.Len()),
		zap.Int("key_pages", len(urls)),
	)

	results := make([]*seo.Page, len(urls))
	jobs := make(chan int)
	workers := min(s.cfg.Workers, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := range urls {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})
	for w := range workers {
		g.Go(func() error {
			return s.work(gctx, w, urls, jobs, results)
		})
	}
	if err := g.Wait(); err != nil {
		return seo.Website{}, err
	}
	if err := ctx.Err(); err != nil {
		return seo.Website{}, fmt.Errorf("scan %s: %w", siteURL, err)
	}

	pages := make([]seo.Page, 0, len(results))
	for _, p := range results {
		if p != nil {
			pages = append(pages, *p)
		}
	}
	return seo.NewWebsite(id, siteURL, pages, s.clock.Now()), nil
}

// work owns one tab for its lifetime so a tab never serves two pages at once.
func (s *Scanner) work(ctx context.Context, index int, urls []string, jobs <-chan int, results []*seo.Page) error {
	logger := s.logger.With(zap.Int("tab", index))
	tab, err := s.renderer.NewTab(ctx)
	if err != nil {
		return fmt.Errorf("open tab: %w", err)
	}
	defer func() {
		if cerr := tab.Close(); cerr != nil {
			logger.Debug("close tab", zap.Error(cerr))
		}
	}()

	for i := range jobs {
		pageURL := urls[i]
		page, err := s.scanPageWithTimeout(ctx, tab, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			pageErr := seo.NewPageError(pageURL, err)
			status := metrics.PageFailed
			if errors.Is(pageErr, seo.ErrPageTimeout) {
				status = metrics.PageTimeout
			}
			metrics.ObservePage(pageURL, status, 0)
			logger.Warn("page skipped", zap.String("url", pageURL), zap.Error(pageErr))
			continue
		}
		metrics.ObservePage(pageURL, metrics.PageScanned, page.RenderingTime)
		results[i] = &page
	}
	return nil
}

func (s *Scanner) scanPageWithTimeout(ctx context.Context, tab seo.Tab, pageURL string) (seo.Page, error) {
	pageCtx, cancel := context.WithTimeout(ctx, s.cfg.PageTimeout)
	defer cancel()
	return s.scanPage(pageCtx, tab, pageURL)
}

// scanPage measures rendering time, scrolls, lints, then extracts content.
func (s *Scanner) scanPage(ctx context.Context, tab seo.Tab, pageURL string) (seo.Page, error) {
	if err := tab.Navigate(ctx, pageURL); err != nil {
		return seo.Page{}, err
	}
	renderingTime, err := measureRenderingTime(ctx, tab)
	if err != nil {
		return seo.Page{}, err
	}
	if err := scrollToBottom(ctx, tab, s.cfg.Scroll); err != nil {
		return seo.Page{}, fmt.Errorf("scroll: %w", err)
	}

	if err := tab.WaitSelector(ctx, ReadySelector); err != nil {
		return seo.Page{}, err
	}
	doc, err := s.snapshot(ctx, tab)
	if err != nil {
		return seo.Page{}, err
	}
	findings, err := s.rules.Evaluate(ctx, doc)
	if err != nil {
		if ctx.Err() != nil {
			return seo.Page{}, err
		}
		s.logger.Warn("relevance check failed", zap.String("url", pageURL), zap.Error(err))
	}

	meta, err := readMeta(ctx, tab)
	if err != nil {
		return seo.Page{}, err
	}
	text, err := s.readText(ctx, tab, pageURL)
	if err != nil {
		return seo.Page{}, err
	}

	id, err := s.ids.NewID()
	if err != nil {
		return seo.Page{}, fmt.Errorf("page id: %w", err)
	}
	finalURL := pageURL
	var href string
	if err := tab.Evaluate(ctx, "window.location.href", &href); err == nil && href != "" {
		finalURL = href
	}
	if findings == nil {
		findings = []seo.Finding{}
	}
	return seo.Page{
		ID:            id,
		URL:           finalURL,
		RenderingTime: renderingTime,
		Findings:      findings,
		Content:       seo.PageContent{Meta: meta, Text: text},
	}, nil
}

func (s *Scanner) snapshot(ctx context.Context, tab seo.Tab) (*goquery.Document, error) {
	raw, err := tab.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

func readMeta(ctx context.Context, tab seo.Tab) (seo.PageMeta, error) {
	title, err := tab.Title(ctx)
	if err != nil {
		return seo.PageMeta{}, err
	}
	desc, _, err := tab.Attribute(ctx, "meta[name='description']", "content")
	if err != nil {
		return seo.PageMeta{}, err
	}
	return seo.PageMeta{Title: title, Description: desc}, nil
}

// readText waits briefly for network idle and falls back to the DOM as it is.
func (s *Scanner) readText(ctx context.Context, tab seo.Tab, pageURL string) (string, error) {
	if err := tab.WaitForLoad(ctx, seo.MilestoneNetworkIdle, s.cfg.ContentIdleTimeout); err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		s.logger.Debug("network idle not reached", zap.String("url", pageURL), zap.Error(err))
	}
	doc, err := s.snapshot(ctx, tab)
	if err != nil {
		return "", err
	}
	return s.extractor.Text(doc), nil
}
