package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JakeFAU/seo-scanner/internal/relevance"
	"github.com/JakeFAU/seo-scanner/internal/seo"
	"github.com/JakeFAU/seo-scanner/internal/sitegraph"
)

type fakeMapper struct {
	graph *sitegraph.Graph
	err   error
}

func (m *fakeMapper) BuildSiteGraph(context.Context, string) (*sitegraph.Graph, error) {
	return m.graph, m.err
}

func newGraph(seed string, links map[string]string) *sitegraph.Graph {
	b := sitegraph.NewBuilder(seed)
	b.MarkFetched(seed)
	for to, anchor := range links {
		b.AddLink(seed, to, anchor)
	}
	return b.Build()
}

type fakePage struct {
	html     string
	title    string
	desc     string
	timingMS float64
	hang     bool
	navErr   error
}

type fakeRenderer struct {
	mu        sync.Mutex
	pages     map[string]fakePage
	tabErr    error
	opened    atomic.Int32
	closed    atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
	navigated []string
}

func (r *fakeRenderer) NewTab(context.Context) (seo.Tab, error) {
	if r.tabErr != nil {
		return nil, r.tabErr
	}
	r.opened.Add(1)
	return &fakeTab{r: r}, nil
}

func (r *fakeRenderer) Close() error { return nil }

func (r *fakeRenderer) page(url string) (fakePage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.navigated = append(r.navigated, url)
	p, ok := r.pages[url]
	return p, ok
}

type fakeTab struct {
	r       *fakeRenderer
	url     string
	current fakePage
	busy    atomic.Bool
}

func (t *fakeTab) enter() func() {
	if !t.busy.CompareAndSwap(false, true) {
		panic("tab used concurrently")
	}
	n := t.r.active.Add(1)
	for {
		peak := t.r.maxActive.Load()
		if n <= peak || t.r.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}
	return func() {
		t.r.active.Add(-1)
		t.busy.Store(false)
	}
}

func (t *fakeTab) Navigate(ctx context.Context, url string) error {
	defer t.enter()()
	p, ok := t.r.page(url)
	if !ok {
		return fmt.Errorf("navigate %s: status 404", url)
	}
	if p.navErr != nil {
		return p.navErr
	}
	if p.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	// Give concurrent workers a chance to overlap.
	time.Sleep(2 * time.Millisecond)
	t.url, t.current = url, p
	return nil
}

func (t *fakeTab) WaitForLoad(ctx context.Context, _ seo.Milestone, _ time.Duration) error {
	return ctx.Err()
}

func (t *fakeTab) WaitSelector(ctx context.Context, _ string) error { return ctx.Err() }

func (t *fakeTab) HTML(context.Context) (string, error) { return t.current.html, nil }

func (t *fakeTab) Evaluate(_ context.Context, script string, out any) error {
	switch {
	case script == navigationTimingScript:
		return assign(out, t.current.timingMS)
	case script == scrollHeightScript, script == pageHeightScript:
		return assign(out, 800.0)
	case script == positionScript:
		return assign(out, 800.0)
	case strings.Contains(script, "scrollBy"):
		return assign(out, false)
	case script == scrollFinalScript:
		return assign(out, true)
	case script == "window.location.href":
		return assign(out, t.url)
	}
	return fmt.Errorf("unexpected script %q", script)
}

func (t *fakeTab) Title(context.Context) (string, error) { return t.current.title, nil }

func (t *fakeTab) Attribute(context.Context, string, string) (string, bool, error) {
	return t.current.desc, t.current.desc != "", nil
}

func (t *fakeTab) Close() error {
	t.r.closed.Add(1)
	return nil
}

func assign(out any, v any) error {
	switch dst := out.(type) {
	case *float64:
		f, ok := v.(float64)
		if !ok {
			return errors.New("want float64")
		}
		*dst = f
	case *bool:
		b, ok := v.(bool)
		if !ok {
			return errors.New("want bool")
		}
		*dst = b
	case *string:
		s, ok := v.(string)
		if !ok {
			return errors.New("want string")
		}
		*dst = s
	default:
		return fmt.Errorf("unsupported out %T", out)
	}
	return nil
}

type stubScorer struct {
	score float64
	err   error
}

func (s stubScorer) CompareTexts(context.Context, string, string, relevance.Method, relevance.Aggregation) (float64, error) {
	return s.score, s.err
}

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type seqIDs struct{ n atomic.Int32 }

func (s *seqIDs) NewID() (string, error) {
	return fmt.Sprintf("page-%d", s.n.Add(1)), nil
}
