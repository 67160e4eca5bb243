package render

import (
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/cdp"

	"github.com/JakeFAU/seo-scanner/internal/seo"
)

// lifecycle tracks which load milestones the main frame reached for the
// current navigation.
type lifecycle struct {
	mu      sync.Mutex
	frameID cdp.FrameID
	fired   map[seo.Milestone]chan struct{}
}

func newLifecycle() *lifecycle {
	return &lifecycle{fired: freshMilestones()}
}

func freshMilestones() map[seo.Milestone]chan struct{} {
	return map[seo.Milestone]chan struct{}{
		seo.MilestoneDOMContentLoaded: make(chan struct{}),
		seo.MilestoneLoad:             make(chan struct{}),
		seo.MilestoneNetworkIdle:      make(chan struct{}),
	}
}

func (l *lifecycle) setFrame(id cdp.FrameID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frameID = id
}

func (l *lifecycle) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fired = freshMilestones()
}

// observe records a Page.lifecycleEvent. "init" starts a new document and
// clears earlier milestones.
func (l *lifecycle) observe(frameID cdp.FrameID, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.frameID != "" && frameID != l.frameID {
		return
	}
	if name == "init" {
		l.fired = freshMilestones()
		return
	}
	ch, ok := l.fired[seo.Milestone(name)]
	if !ok {
		return
	}
	select {
	case <-ch:
	default:
		close(ch)
	}
}

func (l *lifecycle) wait(m seo.Milestone) (<-chan struct{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.fired[m]
	if !ok {
		return nil, fmt.Errorf("unknown milestone %q", m)
	}
	return ch, nil
}

// responseMeta keeps the first document response of a navigation.
type responseMeta struct {
	mu     sync.Mutex
	url    string
	status int
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.url, m.status = "", 0
}

func (m *responseMeta) record(url string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != 0 {
		return
	}
	m.url, m.status = url, status
}

func (m *responseMeta) first() (string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.url, m.status
}
