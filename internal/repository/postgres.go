package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mr1hm/go-vitatrack/internal/models"
	"github.com/mr1hm/go-vitatrack/internal/notifications"
)

const pgChannel = "vitatrack_notifications"

// PostgresStore keeps notifications in a table and wakes subscribers with
// LISTEN/NOTIFY.
type PostgresStore struct {
	Pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, errors.New("postgres dsn is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error opening postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while pinging postgres: %w", err)
	}

	s := &PostgresStore{Pool: pool, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while migrating postgres: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			message TEXT NOT NULL,
			type TEXT NOT NULL,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_notifications_created_at ON notifications(created_at DESC);
	`)
	return err
}

func (s *PostgresStore) Close() error {
	s.Pool.Close()
	return nil
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Append(ctx context.Context, n models.NewNotification) (models.Notification, error) {
	rec := models.Notification{
		ID:        uuid.NewString(),
		Message:   n.Message,
		Type:      n.Type,
		CreatedAt: s.now().UTC(),
	}

	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO notifications (id, message, type, is_read, created_at) VALUES ($1, $2, $3, FALSE, $4)`,
			rec.ID, rec.Message, string(rec.Type), rec.CreatedAt); err != nil {
			return err
		}
		// delivered on commit
		_, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, pgChannel, rec.ID)
		return err
	})
	if err != nil {
		return models.Notification{}, classifyPG("error inserting notification", err)
	}
	return rec, nil
}

func (s *PostgresStore) Latest(ctx context.Context, k int) ([]models.Notification, error) {
	if k <= 0 {
		k = notifications.DefaultLimit
	}

	rows, err := s.Pool.Query(ctx,
		`SELECT id, message, type, is_read, created_at FROM notifications
		ORDER BY created_at DESC, id DESC LIMIT $1`, k)
	if err != nil {
		return nil, classifyPG("error querying notifications", err)
	}
	defer rows.Close()

	out := make([]models.Notification, 0, k)
	for rows.Next() {
		var (
			n   models.Notification
			typ string
		)
		if err := rows.Scan(&n.ID, &n.Message, &typ, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning notification: %w", err)
		}
		n.Type = models.NotificationType(typ)
		n.CreatedAt = n.CreatedAt.UTC()
		out = append(out, n)
	}
	return out, rows.Err()
}

// SubscribeLatest holds one pooled connection in LISTEN mode for the life of
// the subscription.
func (s *PostgresStore) SubscribeLatest(ctx context.Context, k int, onSnapshot func([]models.Notification), onError func(error)) (notifications.Subscription, error) {
	conn, err := s.Pool.Acquire(ctx)
	if err != nil {
		return nil, classifyPG("error acquiring listen connection", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgChannel); err != nil {
		conn.Release()
		return nil, classifyPG("error listening for notifications", err)
	}

	initial, err := s.Latest(ctx, k)
	if err != nil {
		s.release(conn)
		return nil, err
	}
	onSnapshot(initial)

	listenCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer s.release(conn)

		for {
			if _, err := conn.Conn().WaitForNotification(listenCtx); err != nil {
				if listenCtx.Err() != nil {
					return
				}
				zap.L().Error("postgres listener stopped", zap.Error(err))
				if onError != nil {
					onError(err)
				}
				return
			}
			list, err := s.Latest(listenCtx, k)
			if err != nil {
				if listenCtx.Err() != nil {
					return
				}
				zap.L().Error("error refreshing notification subscription", zap.Error(err))
				if onError != nil {
					onError(err)
				}
				return
			}
			onSnapshot(list)
		}
	}()

	var once sync.Once
	return notifications.SubscriptionFunc(func() error {
		once.Do(func() {
			cancel()
			<-done
		})
		return nil
	}), nil
}

func (s *PostgresStore) release(conn *pgxpool.Conn) {
	if !conn.Conn().IsClosed() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, _ = conn.Exec(ctx, "UNLISTEN *")
		cancel()
	}
	conn.Release()
}

func classifyPG(msg string, err error) error {
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return fmt.Errorf("%s: %w: %w", msg, models.ErrTransient, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w: %w", msg, models.ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
