package render

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/seo-scanner/internal/seo"
)

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestLifecycleObserveMainFrameOnly(t *testing.T) {
	t.Parallel()

	l := newLifecycle()
	l.setFrame(cdp.FrameID("main"))

	l.observe(cdp.FrameID("iframe"), "load")
	ch, err := l.wait(seo.MilestoneLoad)
	require.NoError(t, err)
	require.False(t, closed(ch))

	l.observe(cdp.FrameID("main"), "load")
	require.True(t, closed(ch))

	// A repeated event must not panic on the closed channel.
	l.observe(cdp.FrameID("main"), "load")
}

func TestLifecycleInitClearsMilestones(t *testing.T) {
	t.Parallel()

	l := newLifecycle()
	l.observe("", "DOMContentLoaded")
	ch, err := l.wait(seo.MilestoneDOMContentLoaded)
	require.NoError(t, err)
	require.True(t, closed(ch))

	l.observe("", "init")
	ch, err = l.wait(seo.MilestoneDOMContentLoaded)
	require.NoError(t, err)
	require.False(t, closed(ch))
}

func TestLifecycleUnknownMilestone(t *testing.T) {
	t.Parallel()

	l := newLifecycle()
	l.observe("", "firstPaint")
	_, err := l.wait(seo.Milestone("firstPaint"))
	require.Error(t, err)
}

func TestResponseMetaKeepsFirstDocument(t *testing.T) {
	t.Parallel()

	m := newResponseMeta()
	m.record("https://example.com/", 301)
	m.record("https://example.com/home", 200)
	u, status := m.first()
	require.Equal(t, "https://example.com/", u)
	require.Equal(t, 301, status)

	m.reset()
	_, status = m.first()
	require.Zero(t, status)
}

func TestTabWaitForLoadTimeout(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tab := &Tab{ctx: ctx, cancel: cancel, lifecycle: newLifecycle(), meta: newResponseMeta()}

	err := tab.WaitForLoad(context.Background(), seo.MilestoneNetworkIdle, 20*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	tab.lifecycle.observe("", "networkIdle")
	require.NoError(t, tab.WaitForLoad(context.Background(), seo.MilestoneNetworkIdle, time.Second))
}

func TestTabBindForwardsCallerCancel(t *testing.T) {
	t.Parallel()

	tabCtx, tabCancel := context.WithCancel(context.Background())
	defer tabCancel()
	tab := &Tab{ctx: tabCtx, cancel: tabCancel}

	callCtx, callCancel := context.WithCancel(context.Background())
	runCtx, done := tab.bind(callCtx)
	defer done()

	callCancel()
	require.Eventually(t, func() bool { return runCtx.Err() != nil }, time.Second, 5*time.Millisecond)
	require.NoError(t, tabCtx.Err())
}

func TestTabBindHonorsDeadline(t *testing.T) {
	t.Parallel()

	tabCtx, tabCancel := context.WithCancel(context.Background())
	defer tabCancel()
	tab := &Tab{ctx: tabCtx, cancel: tabCancel}

	callCtx, callCancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer callCancel()
	runCtx, done := tab.bind(callCtx)
	defer done()

	<-runCtx.Done()
	require.True(t, errors.Is(runCtx.Err(), context.DeadlineExceeded))
}

func TestTabCloseReleasesSlotOnce(t *testing.T) {
	t.Parallel()

	r, err := NewChromedp(Config{MaxTabs: 1, Headless: true}, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.acquire(context.Background()))
	ctx, cancel := context.WithCancel(context.Background())
	tab := &Tab{ctx: ctx, cancel: cancel, release: r.release}

	blocked, blockCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer blockCancel()
	require.Error(t, r.acquire(blocked))

	require.NoError(t, tab.Close())
	require.NoError(t, tab.Close())
	require.NoError(t, r.acquire(context.Background()))
	require.Len(t, r.limiter, 1)
}

func TestNewChromedpRejectsNegativeTabs(t *testing.T) {
	t.Parallel()

	_, err := NewChromedp(Config{MaxTabs: -1}, nil)
	require.Error(t, err)
}

func TestNewChromedpDefaultsWindow(t *testing.T) {
	t.Parallel()

	r, err := NewChromedp(Config{}, nil)
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, 1366, r.cfg.WindowWidth)
	require.Equal(t, 900, r.cfg.WindowHeight)
	require.Nil(t, r.limiter)
}

func TestAttributeScriptQuotesInput(t *testing.T) {
	t.Parallel()

	script, err := attributeScript(`meta[name="description"]`, "content")
	require.NoError(t, err)
	require.Contains(t, script, `document.querySelector("meta[name=\"description\"]")`)
	require.Contains(t, script, `el.hasAttribute("content")`)
}

func findBrowser() string {
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

func TestChromedpRendersPage(t *testing.T) {
	if testing.Short() {
		t.Skip("browser test")
	}
	execPath := findBrowser()
	if execPath == "" {
		t.Skip("no chrome binary available")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Hello</title>
<meta name="description" content="A test page"></head>
<body><main><h1>Hi</h1><script>document.body.dataset.ready = "yes"</script></main></body></html>`)
	}))
	defer srv.Close()

	r, err := NewChromedp(Config{Headless: true, Stealth: true, MaxTabs: 2, ExecPath: execPath}, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tab, err := r.NewTab(ctx)
	require.NoError(t, err)
	defer tab.Close()

	require.NoError(t, tab.Navigate(ctx, srv.URL+"/"))
	require.NoError(t, tab.WaitForLoad(ctx, seo.MilestoneDOMContentLoaded, 10*time.Second))
	require.NoError(t, tab.WaitSelector(ctx, "body:not(:empty)"))

	title, err := tab.Title(ctx)
	require.NoError(t, err)
	require.Equal(t, "Hello", title)

	desc, found, err := tab.Attribute(ctx, `meta[name="description"]`, "content")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "A test page", desc)

	_, found, err = tab.Attribute(ctx, `link[rel="canonical"]`, "href")
	require.NoError(t, err)
	require.False(t, found)

	var ready string
	require.NoError(t, tab.Evaluate(ctx, `document.body.dataset.ready`, &ready))
	require.Equal(t, "yes", ready)

	var webdriver bool
	require.NoError(t, tab.Evaluate(ctx, `!!navigator.webdriver`, &webdriver))
	require.False(t, webdriver)

	html, err := tab.HTML(ctx)
	require.NoError(t, err)
	require.True(t, strings.Contains(html, "<h1>Hi</h1>"))

	err = tab.Navigate(ctx, srv.URL+"/missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
}
