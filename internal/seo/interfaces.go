package seo

import (
	"context"
	"time"
)

// Milestone is a renderer-defined load point.
type Milestone string

// Supported load milestones.
const (
	MilestoneDOMContentLoaded Milestone = "DOMContentLoaded"
	MilestoneLoad             Milestone = "load"
	MilestoneNetworkIdle      Milestone = "networkIdle"
)

// Renderer hands out browsing tabs. Each tab must be used by one goroutine at a time.
type Renderer interface {
	NewTab(ctx context.Context) (Tab, error)
	Close() error
}

// Tab is a single renderable page handle that can be navigated repeatedly.
type Tab interface {
	Navigate(ctx context.Context, url string) error
	WaitForLoad(ctx context.Context, milestone Milestone, timeout time.Duration) error
	WaitSelector(ctx context.Context, selector string) error
	HTML(ctx context.Context) (string, error)
	// Evaluate runs script and decodes its JSON result into out.
	Evaluate(ctx context.Context, script string, out any) error
	Title(ctx context.Context) (string, error)
	// Attribute returns the attribute of the first element matching selector.
	// ok is false when no element matches or the attribute is absent.
	Attribute(ctx context.Context, selector, attr string) (value string, ok bool, err error)
	Close() error
}

// WebsiteStore persists completed scans.
type WebsiteStore interface {
	SaveWebsite(ctx context.Context, site Website) error
	GetWebsite(ctx context.Context, id string) (Website, error)
	// ListWebsites returns one 1-based page of websites, newest first.
	ListWebsites(ctx context.Context, page, limit int) ([]Website, error)
}

// BlobStore writes opaque objects and returns their URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher emits events to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Queue moves scan requests from the API to the workers.
type Queue interface {
	Enqueue(ctx context.Context, req ScanRequest) error
	Dequeue(ctx context.Context) (ScanRequest, error)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
