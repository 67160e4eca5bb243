package sitegraph

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/seo-scanner/internal/metrics"
	"github.com/JakeFAU/seo-scanner/internal/seo"
)

// Config bounds a crawl.
type Config struct {
	UserAgent string
	// MaxDepth is the link distance from the seed that is still fetched.
	MaxDepth int
	// MaxPages caps the number of fetched pages.
	MaxPages int
	// MaxInFlight caps concurrent requests to the site.
	MaxInFlight int
	// RequestsPerSecond throttles request starts, 0 disables throttling.
	RequestsPerSecond float64
	RequestTimeout    time.Duration
	RespectRobots     bool
	// Transport replaces http.DefaultTransport for crawl requests.
	Transport http.RoundTripper
}

// Crawler builds site graphs with colly.
type Crawler struct {
	cfg    Config
	logger *zap.Logger
}

// NewCrawler fills zero limits with conservative defaults.
func NewCrawler(cfg Config, logger *zap.Logger) *Crawler {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 2
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 200
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 4
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{cfg: cfg, logger: logger}
}

// crawlState tracks one BuildSiteGraph call.
type crawlState struct {
	builder  *Builder
	requests sync.Map // colly request id -> normalized URL
	visits   atomic.Int64

	mu      sync.Mutex
	seed    *url.URL
	landing string // normalized final URL of a redirected seed
	seedErr error
}

// origin is the URL links are matched against. It starts as the seed and
// moves to wherever the seed request finally landed.
func (s *crawlState) origin() *url.URL {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seed
}

func (s *crawlState) reanchor(final *url.URL) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.EqualFold(s.seed.Hostname(), final.Hostname()) {
		return
	}
	u := *final
	s.seed = &u
	if norm, err := NormalizeURL(final.String()); err == nil {
		s.landing = norm
	}
}

// canonical folds the redirected seed's landing URL back onto the seed node.
func (s *crawlState) canonical(u string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.landing != "" && u == s.landing {
		return s.builder.seed
	}
	return u
}

func (s *crawlState) setSeedErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seedErr = err
}

func (s *crawlState) seedError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seedErr
}

func (s *crawlState) requestURL(r *colly.Request) string {
	if v, ok := s.requests.Load(r.ID); ok {
		return v.(string)
	}
	if norm, err := NormalizeURL(r.URL.String()); err == nil {
		return norm
	}
	return r.URL.String()
}

// BuildSiteGraph crawls same-host links reachable from seedURL. It returns a
// *seo.CrawlError when the seed is invalid or cannot be fetched.
func (c *Crawler) BuildSiteGraph(ctx context.Context, seedURL string) (*Graph, error) {
	seed, err := NormalizeURL(seedURL)
	if err != nil {
		return nil, &seo.CrawlError{Seed: seedURL, Err: err}
	}
	parsed, err := url.Parse(seed)
	if err != nil {
		return nil, &seo.CrawlError{Seed: seedURL, Err: err}
	}
	state := &crawlState{builder: NewBuilder(seed), seed: parsed}

	collector, err := c.newCollector(ctx, state)
	if err != nil {
		return nil, &seo.CrawlError{Seed: seed, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, &seo.CrawlError{Seed: seed, Err: err}
	}
	start := time.Now()
	state.visits.Add(1)
	if err := collector.Visit(seed); err != nil {
		return nil, &seo.CrawlError{Seed: seed, Err: err}
	}
	collector.Wait()

	if err := ctx.Err(); err != nil {
		return nil, &seo.CrawlError{Seed: seed, Err: err}
	}
	if !state.builder.Fetched(seed) {
		cause := errors.New("seed was not fetched")
		if seedErr := state.seedError(); seedErr != nil {
			cause = seedErr
		}
		return nil, &seo.CrawlError{Seed: seed, Err: cause}
	}
	graph := state.builder.Build()
	metrics.ObserveCrawl(seed, graph.Len())
	c.logger.Info("site graph built",
		zap.String("seed", seed),
		zap.Int("nodes", graph.Len()),
		zap.Int64("visits", state.visits.Load()),
		zap.Duration("duration", time.Since(start)),
	)
	return graph, nil
}

func (c *Crawler) newCollector(ctx context.Context, state *crawlState) (*colly.Collector, error) {
	opts := []colly.CollectorOption{
		colly.AllowedDomains(state.seed.Hostname(), wwwTwin(state.seed.Hostname())),
		colly.MaxDepth(c.cfg.MaxDepth + 1),
		colly.Async(true),
	}
	if c.cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(c.cfg.UserAgent))
	}
	collector := colly.NewCollector(opts...)
	collector.IgnoreRobotsTxt = !c.cfg.RespectRobots
	if c.cfg.RespectRobots {
		collector.WithTransport(newRobotsTransport(c.cfg.Transport, c.logger))
	} else if c.cfg.Transport != nil {
		collector.WithTransport(c.cfg.Transport)
	}
	collector.SetRequestTimeout(c.cfg.RequestTimeout)
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: c.cfg.MaxInFlight,
	}); err != nil {
		return nil, fmt.Errorf("set collector limits: %w", err)
	}

	var limiter *rate.Limiter
	if c.cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.cfg.RequestsPerSecond), 1)
	}

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		if norm, err := NormalizeURL(r.URL.String()); err == nil {
			state.requests.Store(r.ID, norm)
		}
		if limiter != nil {
			waitStart := time.Now()
			if err := limiter.Wait(ctx); err != nil {
				r.Abort()
				return
			}
			metrics.ObserveRateLimitDelay(time.Since(waitStart))
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		u := state.requestURL(r.Request)
		if u == state.builder.seed && r.Request.URL != nil {
			state.reanchor(r.Request.URL)
		}
		state.builder.MarkFetched(u)
	})

	collector.OnHTML("title", func(e *colly.HTMLElement) {
		state.builder.SetTitle(state.requestURL(e.Request), strings.TrimSpace(e.Text))
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		c.handleLink(ctx, state, e)
	})

	collector.OnError(func(r *colly.Response, err error) {
		u := state.requestURL(r.Request)
		state.builder.MarkFailed(u)
		if u == state.builder.seed {
			state.setSeedErr(fmt.Errorf("status %d: %w", r.StatusCode, err))
		}
		c.logger.Warn("crawl request failed",
			zap.String("url", u),
			zap.Int("status_code", r.StatusCode),
			zap.Error(err),
		)
	})
	return collector, nil
}

func (c *Crawler) handleLink(ctx context.Context, state *crawlState, e *colly.HTMLElement) {
	abs := e.Request.AbsoluteURL(e.Attr("href"))
	if abs == "" {
		return
	}
	target, err := url.Parse(abs)
	if err != nil || !sameHost(state.origin(), target) || !looksLikePage(target) {
		return
	}
	to, err := NormalizeURL(abs)
	if err != nil {
		return
	}
	to = state.canonical(to)
	from := state.requestURL(e.Request)
	anchor := strings.Join(strings.Fields(e.Text), " ")
	if anchor == "" {
		anchor = strings.TrimSpace(e.Attr("title"))
	}
	if !state.builder.AddLink(from, to, anchor) {
		return
	}
	if ctx.Err() != nil || e.Request.Depth > c.cfg.MaxDepth {
		return
	}
	if state.visits.Add(1) > int64(c.cfg.MaxPages) {
		return
	}
	if err := e.Request.Visit(to); err != nil {
		c.logger.Debug("link not visited", zap.String("url", to), zap.Error(err))
	}
}
