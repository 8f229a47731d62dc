package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mr1hm/go-vitatrack/internal/clock"
)

// Task is a unit of periodic work.
type Task struct {
	Name     string
	Interval time.Duration
	// Immediate runs the task once before waiting for the first tick.
	Immediate bool
	Run       func(ctx context.Context, now time.Time)
}

// Handle owns one running task. Stop must be called when the owner is torn down.
type Handle struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop cancels the task and waits for its goroutine to exit. Safe to call more
// than once.
func (h *Handle) Stop() {
	h.once.Do(func() {
		h.cancel()
		<-h.done
	})
}

func (h *Handle) Name() string { return h.name }

// Done is closed once the task goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

type Scheduler struct {
	clock   clock.Clock
	mu      sync.Mutex
	handles map[*Handle]struct{}
}

func New(c clock.Clock) *Scheduler {
	if c == nil {
		c = clock.Real{}
	}
	return &Scheduler{
		clock:   c,
		handles: make(map[*Handle]struct{}),
	}
}

func (s *Scheduler) Clock() clock.Clock { return s.clock }

// Schedule starts t on its own goroutine. The task stops when ctx is cancelled
// or the returned handle is stopped.
func (s *Scheduler) Schedule(ctx context.Context, t Task) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		name:   t.Name,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.handles[h] = struct{}{}
	s.mu.Unlock()

	// Created before the goroutine starts so a fake clock sees the ticker
	// as soon as Schedule returns.
	ticker := s.clock.NewTicker(t.Interval)

	go s.run(ctx, h, t, ticker)
	return h
}

func (s *Scheduler) run(ctx context.Context, h *Handle, t Task, ticker clock.Ticker) {
	defer func() {
		ticker.Stop()
		s.mu.Lock()
		delete(s.handles, h)
		s.mu.Unlock()
		close(h.done)
	}()

	zap.L().Debug("starting task", zap.String("task", t.Name), zap.Duration("interval", t.Interval))

	if t.Immediate {
		t.Run(ctx, s.clock.Now())
	}

	for {
		select {
		case <-ctx.Done():
			zap.L().Debug("task shutting down", zap.String("task", t.Name))
			return
		case now := <-ticker.C():
			t.Run(ctx, now)
		}
	}
}

// Running reports the number of live tasks.
func (s *Scheduler) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Stop stops every task started by this scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	handles := make([]*Handle, 0, len(s.handles))
	for h := range s.handles {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
}
