package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mr1hm/go-vitatrack/internal/broadcast"
	"github.com/mr1hm/go-vitatrack/internal/models"
	"github.com/mr1hm/go-vitatrack/internal/notifications"
)

type SQLiteDB struct {
	db      *sql.DB
	now     func() time.Time
	changes *broadcast.Broadcaster[struct{}]
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// :memory: databases are per connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db:      db,
		now:     time.Now,
		changes: broadcast.New[struct{}](1),
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			message TEXT NOT NULL,
			type TEXT NOT NULL,
			is_read INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_notifications_created_at ON notifications(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	s.changes.Close()
	return s.db.Close()
}

func (s *SQLiteDB) Append(ctx context.Context, n models.NewNotification) (models.Notification, error) {
	rec := models.Notification{
		ID:        uuid.NewString(),
		Message:   n.Message,
		Type:      n.Type,
		CreatedAt: s.now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, message, type, is_read, created_at) VALUES (?, ?, ?, 0, ?)`,
		rec.ID, rec.Message, string(rec.Type), rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return models.Notification{}, classify("error inserting notification", err)
	}

	s.changes.Replace(struct{}{})
	return rec, nil
}

func (s *SQLiteDB) Latest(ctx context.Context, k int) ([]models.Notification, error) {
	if k <= 0 {
		k = notifications.DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message, type, is_read, created_at FROM notifications
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, k)
	if err != nil {
		return nil, classify("error querying notifications", err)
	}
	defer rows.Close()

	out := make([]models.Notification, 0, k)
	for rows.Next() {
		var (
			n       models.Notification
			typ     string
			created int64
		)
		if err := rows.Scan(&n.ID, &n.Message, &typ, &n.IsRead, &created); err != nil {
			return nil, fmt.Errorf("error scanning notification: %w", err)
		}
		n.Type = models.NotificationType(typ)
		n.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, n)
	}
	return out, rows.Err()
}

// SubscribeLatest re-reads the newest k rows after every Append on this handle.
func (s *SQLiteDB) SubscribeLatest(ctx context.Context, k int, onSnapshot func([]models.Notification), onError func(error)) (notifications.Subscription, error) {
	id, changes := s.changes.Subscribe()

	initial, err := s.Latest(ctx, k)
	if err != nil {
		s.changes.Unsubscribe(id)
		return nil, err
	}

	done := make(chan struct{})
	onSnapshot(initial)

	go func() {
		defer close(done)
		for range changes {
			list, err := s.Latest(context.Background(), k)
			if err != nil {
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
			s.changes.Unsubscribe(id)
			<-done
		})
		return nil
	}), nil
}

func (s *SQLiteDB) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, strings.ToLower(u.Email), u.PasswordHash, string(u.Role), u.CreatedAt.UnixNano(),
	)
	if err != nil {
		return classify("error inserting user", err)
	}
	return nil
}

func (s *SQLiteDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, created_at FROM users WHERE email = ?`,
		strings.ToLower(email))
	return scanUser(row)
}

func (s *SQLiteDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u       models.User
		role    string
		created int64
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, classify("error scanning user", err)
	}
	u.Role = models.Role(role)
	u.CreatedAt = time.Unix(0, created).UTC()
	return &u, nil
}

// classify tags sqlite busy and constraint failures with the matching
// domain sentinel.
func classify(msg string, err error) error {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%s: %w: %w", msg, models.ErrTransient, err)
		case sqlite3.SQLITE_CONSTRAINT:
			return fmt.Errorf("%s: %w: %w", msg, models.ErrConflict, err)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
