package notifications

import (
	"context"

	"github.com/mr1hm/go-vitatrack/internal/models"
)

// DefaultLimit is how many of the newest records a bridge mirrors.
const DefaultLimit = 5

// Subscription is a live query. Close releases it and is safe to call twice.
type Subscription interface {
	Close() error
}

// Store is the external record store the bridge mirrors.
type Store interface {
	// SubscribeLatest calls onSnapshot with the newest k records, ordered by
	// creation time descending, once immediately and again after every change.
	// Callbacks for one subscription never run concurrently. onError, when not
	// nil, reports failures after the subscription was established.
	SubscribeLatest(ctx context.Context, k int, onSnapshot func([]models.Notification), onError func(error)) (Subscription, error)
	// Append stores n. The store assigns ID and CreatedAt.
	Append(ctx context.Context, n models.NewNotification) (models.Notification, error)
	// Latest returns the newest k records without subscribing.
	Latest(ctx context.Context, k int) ([]models.Notification, error)
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func() error

func (f SubscriptionFunc) Close() error { return f() }
