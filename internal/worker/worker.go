package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("worker queue full")
	ErrStopped   = errors.New("worker pool stopped")
)

type ProcessFunc[J any] func(ctx context.Context, job J) error

type WorkerPool[J any] struct {
	name       string
	numWorkers int
	jobs       chan J
	processor  ProcessFunc[J]
	wg         sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func NewWorkerPool[J any](name string, numWorkers int, bufferSize int, processor ProcessFunc[J]) *WorkerPool[J] {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &WorkerPool[J]{
		name:       name,
		numWorkers: numWorkers,
		jobs:       make(chan J, bufferSize),
		processor:  processor,
	}
}

func (wp *WorkerPool[J]) Start(ctx context.Context) {
	for i := 1; i <= wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
	zap.L().Info("worker pool started", zap.String("pool", wp.name), zap.Int("workers", wp.numWorkers))
}

func (wp *WorkerPool[J]) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			if err := wp.processor(ctx, job); err != nil {
				zap.L().Error("job failed", zap.String("pool", wp.name), zap.Int("worker", id), zap.Error(err))
			}
		}
	}
}

// Submit blocks until the job is queued or ctx is done.
func (wp *WorkerPool[J]) Submit(ctx context.Context, job J) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		return ErrStopped
	}

	select {
	case wp.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit queues the job or fails with ErrQueueFull without waiting.
func (wp *WorkerPool[J]) TrySubmit(job J) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		return ErrStopped
	}

	select {
	case wp.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (wp *WorkerPool[J]) Pending() int {
	return len(wp.jobs)
}

// Stop closes the queue and waits for workers. Queued jobs are drained unless
// the start context was cancelled.
func (wp *WorkerPool[J]) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobs)
	wp.mu.Unlock()

	wp.wg.Wait()
	zap.L().Info("worker pool stopped", zap.String("pool", wp.name))
}
