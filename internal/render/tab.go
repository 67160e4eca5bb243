package render

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/seo-scanner/internal/seo"
)

// Tab is one browser target. It is not safe for concurrent use.
type Tab struct {
	ctx       context.Context
	cancel    context.CancelFunc
	lifecycle *lifecycle
	meta      *responseMeta
	release   func()
	closeOnce sync.Once
}

var _ seo.Tab = (*Tab)(nil)

func (t *Tab) handleEvent(ev any) {
	switch e := ev.(type) {
	case *page.EventLifecycleEvent:
		t.lifecycle.observe(e.FrameID, e.Name)
	case *network.EventResponseReceived:
		if e.Type == network.ResourceTypeDocument && e.Response != nil {
			t.meta.record(e.Response.URL, int(e.Response.Status))
		}
	}
}

// bind derives a run context from the tab that also honors ctx's deadline
// and cancellation.
func (t *Tab) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(t.ctx)
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		parentCancel := cancel
		cancel = func() {
			cancelDeadline()
			parentCancel()
		}
	}
	stop := forwardCancel(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (t *Tab) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, done := t.bind(ctx)
	defer done()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ctxErr, err)
		}
		return err
	}
	return nil
}

// Navigate loads url. A document response of 400 or above is an error.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	t.lifecycle.reset()
	t.meta.reset()
	if err := t.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if final, status := t.meta.first(); status >= 400 {
		return fmt.Errorf("navigate %s: %s returned status %d", url, final, status)
	}
	return nil
}

// WaitForLoad blocks until the main frame reaches m or timeout elapses.
func (t *Tab) WaitForLoad(ctx context.Context, m seo.Milestone, timeout time.Duration) error {
	ch, err := t.lifecycle.wait(m)
	if err != nil {
		return err
	}
	var timer <-chan time.Time
	if timeout > 0 {
		tm := time.NewTimer(timeout)
		defer tm.Stop()
		timer = tm.C
	}
	select {
	case <-ch:
		return nil
	case <-timer:
		return fmt.Errorf("wait for %s: %w", m, context.DeadlineExceeded)
	case <-ctx.Done():
		return fmt.Errorf("wait for %s: %w", m, ctx.Err())
	case <-t.ctx.Done():
		return fmt.Errorf("wait for %s: tab closed: %w", m, t.ctx.Err())
	}
}

// WaitSelector waits for the first element matching selector to be ready.
func (t *Tab) WaitSelector(ctx context.Context, selector string) error {
	if err := t.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait selector %q: %w", selector, err)
	}
	return nil
}

// HTML returns the serialized live DOM.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	var out string
	if err := t.run(ctx, chromedp.OuterHTML("html", &out, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return out, nil
}

// Evaluate runs script and decodes its result into out.
func (t *Tab) Evaluate(ctx context.Context, script string, out any) error {
	if out == nil {
		var discard any
		out = &discard
	}
	if err := t.run(ctx, chromedp.Evaluate(script, out)); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

// Title returns document.title.
func (t *Tab) Title(ctx context.Context) (string, error) {
	var title string
	if err := t.run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("read title: %w", err)
	}
	return title, nil
}

type attributeResult struct {
	Found bool   `json:"found"`
	Value string `json:"value"`
}

// Attribute reads attr from the first element matching selector. found is
// false when no element matches or the attribute is absent.
func (t *Tab) Attribute(ctx context.Context, selector, attr string) (string, bool, error) {
	script, err := attributeScript(selector, attr)
	if err != nil {
		return "", false, err
	}
	var res attributeResult
	if err := t.Evaluate(ctx, script, &res); err != nil {
		return "", false, fmt.Errorf("read attribute %s[%s]: %w", selector, attr, err)
	}
	return res.Value, res.Found, nil
}

func attributeScript(selector, attr string) (string, error) {
	sel, err := json.Marshal(selector)
	if err != nil {
		return "", fmt.Errorf("encode selector: %w", err)
	}
	name, err := json.Marshal(attr)
	if err != nil {
		return "", fmt.Errorf("encode attribute: %w", err)
	}
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el || !el.hasAttribute(%s)) { return {found: false, value: ""}; }
  return {found: true, value: el.getAttribute(%s) || ""};
})()`, sel, name, name), nil
}

// Close releases the tab and its slot. Safe to call more than once.
func (t *Tab) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
		if t.release != nil {
			t.release()
		}
	})
	return nil
}
