package jobs

import (
	"context"
	"errors"
	"sync"

	"github.com/reqforge/backend/internal/metrics"
	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrClosed    = errors.New("job pool is shut down")
)

type TaskFunc func(ctx context.Context)

// Pool runs background AI jobs on a fixed number of workers. Jobs receive a
// context that is cancelled on Shutdown.
type Pool struct {
	maxWorkers int
	taskQueue  chan TaskFunc
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

func NewPool(maxWorkers, queueSize int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize < 1 {
		queueSize = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		maxWorkers: maxWorkers,
		taskQueue:  make(chan TaskFunc, queueSize),
		ctx:        ctx,
		cancel:     cancel,
	}
	p.start()
	return p
}

func (p *Pool) start() {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for task := range p.taskQueue {
				metrics.JobsQueued.Dec()
				p.run(task)
			}
		}()
	}
}

func (p *Pool) run(task TaskFunc) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("job panicked", zap.Any("panic", r))
		}
	}()
	task(p.ctx)
}

// Submit enqueues task without blocking.
func (p *Pool) Submit(task TaskFunc) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.taskQueue <- task:
		metrics.JobsQueued.Inc()
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) QueueSize() int {
	return len(p.taskQueue)
}

// Shutdown stops accepting jobs, cancels running ones and waits for workers.
// Jobs still queued are run with the cancelled context so they can record failure.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.taskQueue)
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

// Drain stops accepting jobs and waits for queued ones to finish normally.
func (p *Pool) Drain() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.taskQueue)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
}
