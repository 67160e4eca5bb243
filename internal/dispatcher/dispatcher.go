// Package dispatcher fans queued scan requests out to a worker pool and
// reports the queue's depth while it runs.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-scanner/internal/metrics"
	"github.com/JakeFAU/seo-scanner/internal/seo"
	"github.com/JakeFAU/seo-scanner/internal/worker"
)

// DefaultDepthInterval is how often Run samples the queue depth.
const DefaultDepthInterval = 5 * time.Second

// lengther is implemented by queues that can report their backlog.
type lengther interface {
	Len() int
}

// Dispatcher owns the scan queue and the workers draining it.
type Dispatcher struct {
	queue         seo.Queue
	workers       []*worker.Worker
	logger        *zap.Logger
	depthInterval time.Duration
}

// New creates a Dispatcher. A nil logger is replaced with a no-op logger.
func New(queue seo.Queue, workers []*worker.Worker, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:         queue,
		workers:       workers,
		logger:        logger,
		depthInterval: DefaultDepthInterval,
	}
}

// Run starts all workers and blocks until the context finishes and every
// worker has returned.
func (d *Dispatcher) Run(ctx context.Context) {
	metrics.SetDispatcherWorkers(len(d.workers))
	d.logger.Info("dispatcher started",
		zap.Int("workers", len(d.workers)),
		zap.Int("queue_depth", d.depth()),
	)

	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.sampleDepth(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	metrics.SetDispatcherWorkers(0)
	d.logger.Info("dispatcher stopped", zap.Int("queue_depth", d.depth()))
}

// Enqueue queues a scan request.
func (d *Dispatcher) Enqueue(ctx context.Context, req seo.ScanRequest) error {
	if err := d.queue.Enqueue(ctx, req); err != nil {
		metrics.ObserveEnqueue(metrics.EnqueueRejected)
		d.logger.Warn("scan not queued",
			zap.String("website_id", req.ID),
			zap.String("url", req.URL),
			zap.Error(err),
		)
		return fmt.Errorf("queue enqueue: %w", err)
	}
	metrics.ObserveEnqueue(metrics.EnqueueAccepted)
	depth := d.depth()
	d.recordDepth(depth)
	d.logger.Debug("scan queued",
		zap.String("website_id", req.ID),
		zap.Int("queue_depth", depth),
	)
	return nil
}

func (d *Dispatcher) sampleDepth(ctx context.Context) {
	if d.depthInterval <= 0 {
		return
	}
	ticker := time.NewTicker(d.depthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.recordDepth(d.depth())
		}
	}
}

// depth returns the queue backlog, or -1 when the queue cannot report it.
func (d *Dispatcher) depth() int {
	if l, ok := d.queue.(lengther); ok {
		return l.Len()
	}
	return -1
}

func (d *Dispatcher) recordDepth(n int) {
	if n >= 0 {
		metrics.SetQueueDepth(n)
	}
}
