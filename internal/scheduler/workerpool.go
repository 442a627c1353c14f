package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pgsynclabs/syncengine/internal/metrics"
)

// WorkerPool bounds how many job runs execute concurrently. Fired job IDs
// are pushed onto a channel; a fixed number of goroutines drain it and
// invoke the runFunc. A full channel means the pool is saturated — Submit
// then drops the tick and logs instead of blocking the cron callback.
type WorkerPool struct {
	queue   chan string
	runFunc func(ctx context.Context, jobID string)
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewWorkerPool(size int, queueDepth int, runFunc func(ctx context.Context, jobID string), logger *slog.Logger) *WorkerPool {
	if size <= 0 {
		size = 20
	}
	if queueDepth <= 0 {
		queueDepth = size * 2
	}
	return &WorkerPool{
		queue:   make(chan string, queueDepth),
		runFunc: runFunc,
		logger:  logger.With("component", "workerpool"),
	}
}

func (p *WorkerPool) Start(ctx context.Context, size int) {
	if size <= 0 {
		size = 20
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case jobID, ok := <-p.queue:
			if !ok {
				return
			}
			p.runFunc(ctx, jobID)
		}
	}
}

// Submit enqueues jobID for execution. It never blocks: if the queue is
// saturated the tick is dropped and logged, matching the at-least-one-tick
// semantics the original engine's in-process scheduler already assumed.
func (p *WorkerPool) Submit(jobID string) {
	select {
	case p.queue <- jobID:
	default:
		metrics.WorkerPoolSaturatedTotal.Inc()
		p.logger.Warn("worker pool saturated, dropping scheduled tick", "job_id", jobID)
	}
}

func (p *WorkerPool) Shutdown() {
	close(p.queue)
	p.wg.Wait()
}
