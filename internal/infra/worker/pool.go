package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"payment-reconciliation-engine/internal/infra/metrics"
)

// Pool runs reconciliation attempts off the request path: HTTP handlers
// return right after the handoff while polling proceeds on these runners.
// The queue is bounded; a full queue rejects the submit rather than blocking
// the caller (the sweeper will pick the order up later regardless).
type Task func(ctx context.Context) error

var ErrQueueFull = errors.New("worker queue full")

type Pool struct {
	wg      sync.WaitGroup
	jobs    chan Task
	quit    chan struct{}
	workers int
	log     *zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{
		jobs:    make(chan Task, workers*4),
		quit:    make(chan struct{}),
		workers: workers,
		log:     logger,
	}
}

// Start launches the runners. They drain until ctx is cancelled or Stop is
// called, whichever comes first.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.runner(ctx, i)
	}
}

func (p *Pool) runner(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			return
		case task := <-p.jobs:
			if task == nil {
				continue
			}
			metrics.SetWorkerQueueDepth(len(p.jobs))
			if err := task(ctx); err != nil {
				p.log.Warn().Int("worker", id).Err(err).Msg("task failed")
			}
		}
	}
}

// Stop waits for the runners to exit. Queued tasks that no runner picked up
// are dropped.
func (p *Pool) Stop() {
	close(p.quit)
	p.wg.Wait()
}

func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case p.jobs <- task:
		metrics.SetWorkerQueueDepth(len(p.jobs))
		return nil
	default:
		return ErrQueueFull
	}
}
