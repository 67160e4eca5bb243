// Package memory keeps scan completion events in process memory. It backs
// the service when no Pub/Sub topic is configured.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/seo-scanner/internal/seo"
)

// ErrUnsupportedPayload is returned for payloads that are not scan completions.
var ErrUnsupportedPayload = errors.New("unsupported payload")

// Event is one recorded scan completion.
type Event struct {
	MessageID string
	Topic     string
	Scan      seo.ScanCompleted
}

// Publisher records scan completions in publish order and indexes the latest
// one per website.
type Publisher struct {
	mu        sync.RWMutex
	events    []Event
	byWebsite map[string]int
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{byWebsite: make(map[string]int)}
}

// Publish records a seo.ScanCompleted payload and returns its message ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	if topic == "" {
		return "", errors.New("topic is required")
	}
	var scan seo.ScanCompleted
	switch v := payload.(type) {
	case seo.ScanCompleted:
		scan = v
	case *seo.ScanCompleted:
		if v == nil {
			return "", fmt.Errorf("%w: nil scan completion", ErrUnsupportedPayload)
		}
		scan = *v
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedPayload, payload)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ev := Event{
		MessageID: fmt.Sprintf("%s-%d", topic, len(p.events)+1),
		Topic:     topic,
		Scan:      scan,
	}
	p.byWebsite[scan.WebsiteID] = len(p.events)
	p.events = append(p.events, ev)
	return ev.MessageID, nil
}

// Completed returns the latest event published for websiteID.
func (p *Publisher) Completed(websiteID string) (Event, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	i, ok := p.byWebsite[websiteID]
	if !ok {
		return Event{}, false
	}
	return p.events[i], true
}

// Events returns a copy of every recorded event.
func (p *Publisher) Events() []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Len reports the number of recorded events.
func (p *Publisher) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.events)
}
