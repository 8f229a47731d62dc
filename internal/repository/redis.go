package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mr1hm/go-vitatrack/internal/models"
	"github.com/mr1hm/go-vitatrack/internal/notifications"
)

const (
	defaultRedisPrefix  = "vitatrack"
	redisConnectTimeout = 5 * time.Second
	// redisKeep bounds the sorted set; views only ever read the head.
	redisKeep = 500
)

// RedisStore keeps notifications in a sorted set scored by creation time and
// announces every append on a pub/sub channel.
type RedisStore struct {
	client  *goredis.Client
	key     string
	channel string
	now     func() time.Time
}

func NewRedisStore(ctx context.Context, addr, password string, db int, prefix string) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	if prefix == "" {
		prefix = defaultRedisPrefix
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client:  client,
		key:     prefix + ":notifications",
		channel: prefix + ":notifications:changed",
		now:     time.Now,
	}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Append(ctx context.Context, n models.NewNotification) (models.Notification, error) {
	rec := models.Notification{
		ID:        uuid.NewString(),
		Message:   n.Message,
		Type:      n.Type,
		CreatedAt: r.now().UTC(),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return models.Notification{}, fmt.Errorf("error encoding notification: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZAdd(ctx, r.key, goredis.Z{Score: float64(rec.CreatedAt.UnixMilli()), Member: raw})
		pipe.ZRemRangeByRank(ctx, r.key, 0, -redisKeep-1)
		pipe.Publish(ctx, r.channel, rec.ID)
		return nil
	})
	if err != nil {
		return models.Notification{}, fmt.Errorf("error appending notification: %w: %w", models.ErrTransient, err)
	}
	return rec, nil
}

func (r *RedisStore) Latest(ctx context.Context, k int) ([]models.Notification, error) {
	if k <= 0 {
		k = notifications.DefaultLimit
	}

	members, err := r.client.ZRevRange(ctx, r.key, 0, int64(k-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("error reading notifications: %w: %w", models.ErrTransient, err)
	}

	out := make([]models.Notification, 0, len(members))
	for _, m := range members {
		var n models.Notification
		if err := json.Unmarshal([]byte(m), &n); err != nil {
			// the bridge drops records without an id
			zap.L().Warn("skipping undecodable notification", zap.Error(err))
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// SubscribeLatest listens on the change channel and re-reads the set head
// after every message.
func (r *RedisStore) SubscribeLatest(ctx context.Context, k int, onSnapshot func([]models.Notification), onError func(error)) (notifications.Subscription, error) {
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	initial, err := r.Latest(ctx, k)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	onSnapshot(initial)

	var (
		wg   sync.WaitGroup
		quit = make(chan struct{})
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		ch := pubsub.Channel()
		for {
			select {
			case <-quit:
				return
			case _, ok := <-ch:
				if !ok {
					select {
					case <-quit:
						return
					default:
					}
					if onError != nil {
						onError(errors.New("redis pubsub channel closed"))
					}
					return
				}
				list, err := r.Latest(context.Background(), k)
				if err != nil {
					zap.L().Error("error refreshing notification subscription", zap.Error(err))
					if onError != nil {
						onError(err)
					}
					return
				}
				onSnapshot(list)
			}
		}
	}()

	var once sync.Once
	return notifications.SubscriptionFunc(func() error {
		var err error
		once.Do(func() {
			close(quit)
			err = pubsub.Close()
			wg.Wait()
		})
		return err
	}), nil
}
