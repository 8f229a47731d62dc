package notifications

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mr1hm/go-vitatrack/internal/broadcast"
	"github.com/mr1hm/go-vitatrack/internal/models"
)

type State int

const (
	StateUnsubscribed State = iota
	StateSubscribed
	// StateFailed keeps the last good mirror after the subscription broke.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnsubscribed:
		return "unsubscribed"
	case StateSubscribed:
		return "subscribed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// RetryPolicy bounds retries of transient append failures.
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
}

var DefaultRetry = RetryPolicy{Attempts: 3, Base: 100 * time.Millisecond}

// Bridge mirrors the newest records of a Store into view state. Each pushed
// snapshot replaces the mirror wholesale.
type Bridge struct {
	store Store
	k     int
	retry RetryPolicy

	mu     sync.Mutex
	state  State
	gen    uint64
	sub    Subscription
	mirror []models.Notification
	err    error

	updates *broadcast.Broadcaster[[]models.Notification]
}

func NewBridge(store Store, k int, retry RetryPolicy) *Bridge {
	if k <= 0 {
		k = DefaultLimit
	}
	if retry.Attempts <= 0 {
		retry = DefaultRetry
	}
	return &Bridge{
		store:   store,
		k:       k,
		retry:   retry,
		updates: broadcast.New[[]models.Notification](1),
	}
}

func (b *Bridge) Limit() int { return b.k }

// Mount opens the live query. Mounting twice without Unmount is an error.
func (b *Bridge) Mount(ctx context.Context) error {
	b.mu.Lock()
	if b.state == StateSubscribed {
		b.mu.Unlock()
		return fmt.Errorf("bridge already subscribed: %w", models.ErrInvalidState)
	}
	// a failed subscription is still open on the store side
	stale := b.sub
	b.sub = nil
	b.gen++
	gen := b.gen
	b.mu.Unlock()

	if stale != nil {
		if err := stale.Close(); err != nil {
			zap.L().Warn("error closing failed notification subscription", zap.Error(err))
		}
	}

	sub, err := b.store.SubscribeLatest(ctx, b.k,
		func(records []models.Notification) { b.apply(gen, records) },
		func(err error) { b.fail(gen, err) },
	)
	if err != nil {
		b.mu.Lock()
		if b.gen == gen {
			b.state = StateFailed
			b.err = err
		}
		b.mu.Unlock()
		zap.L().Error("notification subscription failed", zap.Error(err))
		return fmt.Errorf("error subscribing to notifications: %w", err)
	}

	b.mu.Lock()
	if b.gen != gen {
		// Unmounted while subscribing
		b.mu.Unlock()
		_ = sub.Close()
		return nil
	}
	b.sub = sub
	b.state = StateSubscribed
	b.err = nil
	b.mu.Unlock()

	zap.L().Debug("notification bridge mounted", zap.Int("limit", b.k))
	return nil
}

// Unmount releases the live query. Safe to call in any state.
func (b *Bridge) Unmount() {
	b.mu.Lock()
	sub := b.sub
	b.sub = nil
	b.gen++
	b.state = StateUnsubscribed
	b.mu.Unlock()

	if sub != nil {
		if err := sub.Close(); err != nil {
			zap.L().Warn("error closing notification subscription", zap.Error(err))
		}
	}
}

// Close unmounts and releases every update subscriber.
func (b *Bridge) Close() {
	b.Unmount()
	b.updates.Close()
}

func (b *Bridge) apply(gen uint64, records []models.Notification) {
	mirror := Sanitize(records, b.k)

	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		return
	}
	b.mirror = mirror
	out := clone(mirror)
	b.mu.Unlock()

	b.updates.Replace(out)
}

func (b *Bridge) fail(gen uint64, err error) {
	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		return
	}
	b.state = StateFailed
	b.err = err
	b.mu.Unlock()

	zap.L().Error("notification subscription lost, keeping last snapshot", zap.Error(err))
}

func (b *Bridge) Mirror() []models.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return clone(b.mirror)
}

func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Err is the failure that moved the bridge to StateFailed, if any.
func (b *Bridge) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func (b *Bridge) Subscribe() (uint64, <-chan []models.Notification) {
	return b.updates.Subscribe()
}

func (b *Bridge) Unsubscribe(id uint64) {
	b.updates.Unsubscribe(id)
}

// Submit appends a record to the store. The mirror only changes when the
// store pushes the next snapshot.
func (b *Bridge) Submit(ctx context.Context, message string, typ models.NotificationType) (models.Notification, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return models.Notification{}, models.NewValidationError("message", "must not be empty")
	}
	if !typ.Valid() {
		typ = models.NotificationInfo
	}

	return AppendWithRetry(ctx, b.store, models.NewNotification{Message: message, Type: typ}, b.retry)
}

// AppendWithRetry retries transient append failures with exponential backoff.
func AppendWithRetry(ctx context.Context, store Store, n models.NewNotification, p RetryPolicy) (models.Notification, error) {
	delay := p.Base
	var lastErr error

	for attempt := 1; attempt <= p.Attempts; attempt++ {
		rec, err := store.Append(ctx, n)
		if err == nil {
			return rec, nil
		}
		lastErr = err
		if !errors.Is(err, models.ErrTransient) || attempt == p.Attempts {
			break
		}

		zap.L().Warn("append failed, retrying", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return models.Notification{}, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}

	return models.Notification{}, fmt.Errorf("error appending notification: %w", lastErr)
}

// Sanitize drops malformed records, coerces unknown types to info, orders the
// rest newest first and keeps at most k.
func Sanitize(records []models.Notification, k int) []models.Notification {
	out := make([]models.Notification, 0, min(len(records), k))
	for _, r := range records {
		if r.ID == "" || r.CreatedAt.IsZero() {
			zap.L().Warn("dropping malformed notification", zap.String("id", r.ID))
			continue
		}
		if !r.Type.Valid() {
			r.Type = models.NotificationInfo
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func clone(list []models.Notification) []models.Notification {
	if list == nil {
		return nil
	}
	out := make([]models.Notification, len(list))
	copy(out, list)
	return out
}
