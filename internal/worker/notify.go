package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mr1hm/go-vitatrack/internal/models"
	"github.com/mr1hm/go-vitatrack/internal/notifications"
)

// NotificationJob is an accepted append waiting for the store.
type NotificationJob struct {
	RequestID string
	Message   string
	Type      models.NotificationType
}

// NewNotificationPool appends queued notifications with the transient-retry
// policy. Results reach views through store subscriptions.
func NewNotificationPool(store notifications.Store, retry notifications.RetryPolicy, numWorkers, bufferSize int) *WorkerPool[NotificationJob] {
	process := func(ctx context.Context, job NotificationJob) error {
		rec, err := notifications.AppendWithRetry(ctx, store, models.NewNotification{
			Message: job.Message,
			Type:    job.Type,
		}, retry)
		if err != nil {
			return fmt.Errorf("request %s: %w", job.RequestID, err)
		}
		zap.L().Debug("notification stored", zap.String("request_id", job.RequestID), zap.String("id", rec.ID))
		return nil
	}
	return NewWorkerPool("notifications", numWorkers, bufferSize, process)
}
