// Package memory provides the in-process scan request queue.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/seo-scanner/internal/seo"
)

// ErrClosed is returned by Dequeue after Close once the queue has drained.
var ErrClosed = errors.New("queue closed")

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch        chan seo.ScanRequest
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch:   make(chan seo.ScanRequest, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue pushes a request into the queue or returns if the context ends or
// the queue is closed while waiting for room.
func (q *Queue) Enqueue(ctx context.Context, req seo.ScanRequest) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case <-q.done:
		return ErrClosed
	case q.ch <- req:
		return nil
	}
}

// Dequeue pops the next request, respecting context cancellation. After Close
// it keeps returning buffered requests until the queue is empty.
func (q *Queue) Dequeue(ctx context.Context) (seo.ScanRequest, error) {
	select {
	case <-ctx.Done():
		return seo.ScanRequest{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case req := <-q.ch:
		return req, nil
	case <-q.done:
		select {
		case req := <-q.ch:
			return req, nil
		default:
			return seo.ScanRequest{}, ErrClosed
		}
	}
}

// Len reports the number of queued requests.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops accepting requests and wakes blocked producers.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}
