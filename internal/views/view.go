// Package views owns the per-connection dashboard state. A view builds its
// state containers on Mount, runs its periodic tasks until Unmount, and emits
// one Snapshot for every state change.
package views

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mr1hm/go-vitatrack/internal/alerts"
	"github.com/mr1hm/go-vitatrack/internal/broadcast"
	"github.com/mr1hm/go-vitatrack/internal/clock"
	"github.com/mr1hm/go-vitatrack/internal/fleet"
	"github.com/mr1hm/go-vitatrack/internal/models"
	"github.com/mr1hm/go-vitatrack/internal/notifications"
	"github.com/mr1hm/go-vitatrack/internal/scheduler"
	"github.com/mr1hm/go-vitatrack/internal/seed"
)

const DefaultClockRefresh = time.Minute

type Intervals struct {
	Alerts    time.Duration
	Jitter    time.Duration
	Countdown time.Duration
	Clock     time.Duration
}

func DefaultIntervals() Intervals {
	return Intervals{
		Alerts:    alerts.DefaultInterval,
		Jitter:    fleet.DefaultJitterPeriod,
		Countdown: fleet.DefaultCountdown,
		Clock:     DefaultClockRefresh,
	}
}

type Deps struct {
	Seed  *seed.Data
	Clock clock.Clock
	Rand  clock.Rand
	// Store backs the admin notification bridge. Nil disables it.
	Store             notifications.Store
	NotificationLimit int
	Retry             notifications.RetryPolicy
	Sounder           alerts.Sounder
	AlertProbability  float64
	MaxDelta          float64
	Intervals         Intervals
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	if d.Rand == nil {
		d.Rand = clock.NewLockedRand(clock.NewRand())
	}
	if d.MaxDelta <= 0 {
		d.MaxDelta = fleet.DefaultMaxDelta
	}
	def := DefaultIntervals()
	if d.Intervals.Alerts <= 0 {
		d.Intervals.Alerts = def.Alerts
	}
	if d.Intervals.Jitter <= 0 {
		d.Intervals.Jitter = def.Jitter
	}
	if d.Intervals.Countdown <= 0 {
		d.Intervals.Countdown = def.Countdown
	}
	if d.Intervals.Clock <= 0 {
		d.Intervals.Clock = def.Clock
	}
	return d
}

// View is one mounted dashboard.
type View interface {
	Role() models.Role
	Mount(ctx context.Context) error
	// Unmount stops every task and releases every subscription. Safe to call
	// more than once.
	Unmount()
	Mounted() bool
	Subscribe() (uint64, <-chan Snapshot)
	Unsubscribe(id uint64)
	Snapshot() Snapshot
	Handle(ctx context.Context, cmd Command) error
}

// New builds the view for role.
func New(role models.Role, deps Deps) (View, error) {
	if deps.Seed == nil {
		return nil, fmt.Errorf("view %s: seed data is required", role)
	}
	deps = deps.withDefaults()

	switch role {
	case models.RoleAdmin:
		return NewAdmin(deps), nil
	case models.RoleDriver:
		return NewDriver(deps), nil
	case models.RoleFamily:
		return NewFamily(deps), nil
	}
	return nil, models.NewValidationError("role", fmt.Sprintf("unknown role %q", role))
}

func newBase(role models.Role, deps Deps) base {
	return base{role: role, deps: deps, wake: make(chan struct{}, 1)}
}

// base carries the mount lifecycle shared by every view.
type base struct {
	role  models.Role
	deps  Deps
	build func(now time.Time) Snapshot

	mu      sync.Mutex
	mounted bool
	sched   *scheduler.Scheduler
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	wake    chan struct{}
	out     *broadcast.Broadcaster[Snapshot]
	cleanup []func()
	seq     atomic.Uint64
}

func (b *base) Role() models.Role { return b.role }

func (b *base) Mounted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mounted
}

// begin marks the view mounted. Callers hold b.mu.
func (b *base) begin(ctx context.Context) (context.Context, error) {
	if b.mounted {
		return nil, fmt.Errorf("%s view already mounted: %w", b.role, models.ErrInvalidState)
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.sched = scheduler.New(b.deps.Clock)
	b.out = broadcast.New[Snapshot](1)
	b.cleanup = nil
	b.mounted = true
	return ctx, nil
}

// run publishes the first snapshot and starts the pump. Callers hold b.mu.
func (b *base) run(ctx context.Context) {
	b.publish()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.wake:
				b.publish()
			}
		}
	}()

	zap.L().Info("view mounted", zap.String("role", string(b.role)))
}

func (b *base) schedule(ctx context.Context, t scheduler.Task) {
	b.sched.Schedule(ctx, t)
}

func (b *base) onStop(fn func()) {
	b.cleanup = append(b.cleanup, fn)
}

// poke asks the pump for a fresh snapshot. Pokes coalesce.
func (b *base) poke() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *base) publish() {
	s := b.build(b.deps.Clock.Now())
	s.Role = b.role
	s.Seq = b.seq.Add(1)
	b.out.Replace(s)
}

// watch pokes the pump for every value on ch until ctx ends or ch closes.
func watch[T any](ctx context.Context, b *base, ch <-chan T) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				b.poke()
			}
		}
	}()
}

func (b *base) Unmount() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mounted {
		return
	}

	b.sched.Stop()
	b.cancel()
	b.wg.Wait()
	for i := len(b.cleanup) - 1; i >= 0; i-- {
		b.cleanup[i]()
	}
	b.cleanup = nil
	b.out.Close()
	b.mounted = false

	zap.L().Info("view unmounted", zap.String("role", string(b.role)))
}

// Subscribe returns a closed channel when the view is not mounted.
func (b *base) Subscribe() (uint64, <-chan Snapshot) {
	b.mu.Lock()
	out := b.out
	mounted := b.mounted
	b.mu.Unlock()

	if !mounted {
		ch := make(chan Snapshot)
		close(ch)
		return 0, ch
	}
	id, ch := out.Subscribe()
	// new subscribers start from the current state
	b.poke()
	return id, ch
}

func (b *base) Unsubscribe(id uint64) {
	b.mu.Lock()
	out := b.out
	b.mu.Unlock()
	if out != nil {
		out.Unsubscribe(id)
	}
}

func (b *base) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mounted {
		return Snapshot{Role: b.role}
	}
	s := b.build(b.deps.Clock.Now())
	s.Role = b.role
	s.Seq = b.seq.Load()
	return s
}

// requireMounted rejects commands sent to an unmounted view.
func (b *base) requireMounted() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mounted {
		return fmt.Errorf("%s view not mounted: %w", b.role, models.ErrInvalidState)
	}
	return nil
}
