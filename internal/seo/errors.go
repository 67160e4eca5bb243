package seo

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrCrawl marks failures that prevent a site graph from being built.
	ErrCrawl = errors.New("crawl failed")
	// ErrPageTimeout marks pages whose render budget was exhausted.
	ErrPageTimeout = errors.New("page timed out")
	// ErrExtraction marks pages that loaded but could not be read.
	ErrExtraction = errors.New("extraction failed")
	// ErrComparatorBackend marks similarity backend failures.
	ErrComparatorBackend = errors.New("comparator backend failed")
	// ErrNotFound is returned by stores for unknown ids.
	ErrNotFound = errors.New("not found")
)

// CrawlError is fatal to a whole scan.
type CrawlError struct {
	Seed string
	Err  error
}

func (e *CrawlError) Error() string {
	return fmt.Sprintf("crawl %s: %v", e.Seed, e.Err)
}

func (e *CrawlError) Unwrap() error { return e.Err }

// Is matches ErrCrawl.
func (e *CrawlError) Is(target error) bool { return target == ErrCrawl }

// PageError describes a page that was dropped from a scan.
// Kind is ErrPageTimeout or ErrExtraction.
type PageError struct {
	URL  string
	Kind error
	Err  error
}

// NewPageError classifies err for url. Deadline errors become timeouts,
// everything else is an extraction failure.
func NewPageError(url string, err error) *PageError {
	kind := ErrExtraction
	if errors.Is(err, context.DeadlineExceeded) {
		kind = ErrPageTimeout
	}
	return &PageError{URL: url, Kind: kind, Err: err}
}

func (e *PageError) Error() string {
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// Is matches the error's Kind.
func (e *PageError) Is(target error) bool { return target == e.Kind }

// ComparatorBackendError wraps a failing similarity backend call.
type ComparatorBackendError struct {
	Backend string
	Err     error
}

func (e *ComparatorBackendError) Error() string {
	return fmt.Sprintf("comparator backend %s: %v", e.Backend, e.Err)
}

func (e *ComparatorBackendError) Unwrap() error { return e.Err }

// Is matches ErrComparatorBackend.
func (e *ComparatorBackendError) Is(target error) bool { return target == ErrComparatorBackend }
