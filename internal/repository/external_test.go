package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mr1hm/go-vitatrack/internal/models"
)

// Exercises a networked store against a live server.
func exerciseStore(t *testing.T, repo NotificationRepository) {
	ctx := context.Background()

	snapshots := make(chan []models.Notification, 8)
	sub, err := repo.SubscribeLatest(ctx, 3, func(list []models.Notification) {
		snapshots <- list
	}, nil)
	if err != nil {
		t.Fatalf("SubscribeLatest failed: %v", err)
	}
	defer sub.Close()
	<-snapshots

	msg := "ambulance dispatched " + uuid.NewString()
	rec, err := repo.Append(ctx, models.NewNotification{Message: msg, Type: models.NotificationInfo})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case list := <-snapshots:
			if len(list) > 3 {
				t.Fatalf("expected at most 3 notifications, got %d", len(list))
			}
			if len(list) > 0 && list[0].ID == rec.ID {
				return
			}
		case <-deadline:
			t.Fatal("appended notification never reached subscriber")
		}
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	store, err := NewRedisStore(context.Background(), addr, "", 0, "vitatrack-test-"+uuid.NewString())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()
	defer store.client.Del(context.Background(), store.key)

	exerciseStore(t, store)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	store, err := NewPostgresStore(context.Background(), dsn)
	if err != nil {
		t.Fatalf("NewPostgresStore failed: %v", err)
	}
	defer store.Close()

	exerciseStore(t, store)
}
