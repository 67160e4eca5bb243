// Package render drives headless Chrome through chromedp and hands out
// stealth-patched tabs to the scan workers.
package render

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/JakeFAU/seo-scanner/internal/seo"
)

// Config controls the browser process and its tabs.
type Config struct {
	Headless bool
	// Stealth injects evasion scripts into every document before page scripts run.
	Stealth   bool
	UserAgent string
	// MaxTabs caps concurrently open tabs, 0 means unbounded.
	MaxTabs      int
	WindowWidth  int
	WindowHeight int
	// ExecPath overrides browser discovery.
	ExecPath string
}

// Chromedp implements seo.Renderer with a single shared browser.
type Chromedp struct {
	cfg           Config
	limiter       chan struct{}
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	startOnce     sync.Once
	startErr      error
	logger        *zap.Logger
}

// NewChromedp prepares the allocator. The browser starts on the first NewTab.
func NewChromedp(cfg Config, logger *zap.Logger) (*Chromedp, error) {
	if cfg.MaxTabs < 0 {
		return nil, errors.New("max tabs must be >= 0")
	}
	if cfg.WindowWidth <= 0 || cfg.WindowHeight <= 0 {
		cfg.WindowWidth, cfg.WindowHeight = 1366, 900
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter chan struct{}
	if cfg.MaxTabs > 0 {
		limiter = make(chan struct{}, cfg.MaxTabs)
	}

	headless := any(false)
	if cfg.Headless {
		headless = "new"
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	return &Chromedp{
		cfg:           cfg,
		limiter:       limiter,
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		logger:        logger,
	}, nil
}

func (r *Chromedp) start() error {
	r.startOnce.Do(func() {
		if err := chromedp.Run(r.browserCtx); err != nil {
			r.startErr = fmt.Errorf("start browser: %w", err)
			return
		}
		r.logger.Info("browser started", zap.Bool("headless", r.cfg.Headless), zap.Bool("stealth", r.cfg.Stealth))
	})
	return r.startErr
}

// NewTab opens a tab in the shared browser. The tab holds one MaxTabs slot
// until it is closed.
func (r *Chromedp) NewTab(ctx context.Context) (seo.Tab, error) {
	if err := r.start(); err != nil {
		return nil, err
	}
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(r.browserCtx)
	t := &Tab{
		ctx:       tabCtx,
		cancel:    cancel,
		lifecycle: newLifecycle(),
		meta:      newResponseMeta(),
		release:   r.release,
	}
	chromedp.ListenTarget(tabCtx, t.handleEvent)

	runCtx, done := t.bind(ctx)
	defer done()
	if err := chromedp.Run(runCtx, r.setupAction(t)); err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return t, nil
}

func (r *Chromedp) setupAction(t *Tab) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return fmt.Errorf("enable lifecycle events: %w", err)
		}
		if r.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if r.cfg.Stealth {
			if _, err := page.AddScriptToEvaluateOnNewDocument(stealth.JS).Do(ctx); err != nil {
				return fmt.Errorf("inject stealth script: %w", err)
			}
		}
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return fmt.Errorf("get frame tree: %w", err)
		}
		if tree != nil && tree.Frame != nil {
			t.lifecycle.setFrame(tree.Frame.ID)
		}
		return nil
	})
}

// Close shuts the browser down.
func (r *Chromedp) Close() error {
	r.browserCancel()
	r.allocCancel()
	return nil
}

func (r *Chromedp) acquire(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("tab slot wait canceled: %w", ctx.Err())
	}
}

func (r *Chromedp) release() {
	if r.limiter == nil {
		return
	}
	select {
	case <-r.limiter:
	default:
	}
}

// forwardCancel cancels when parent is done, until the returned stop is called.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
