package repository

import (
	"context"
	"fmt"

	"github.com/mr1hm/go-vitatrack/internal/models"
	"github.com/mr1hm/go-vitatrack/internal/notifications"
)

const (
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// NotificationRepository is a notification store that owns a connection.
type NotificationRepository interface {
	notifications.Store
	Close() error
}

type UserRepository interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Options carries the connection settings for every store driver.
type Options struct {
	Driver      string
	RedisAddr   string
	RedisPass   string
	RedisDB     int
	RedisPrefix string
	PostgresDSN string
}

// OpenNotifications picks the notification store for driver. The sqlite
// store is reused when it is selected so users and notifications share a file.
func OpenNotifications(ctx context.Context, opts Options, db *SQLiteDB) (NotificationRepository, error) {
	switch opts.Driver {
	case "", DriverSQLite:
		return nopCloser{db}, nil
	case DriverRedis:
		return NewRedisStore(ctx, opts.RedisAddr, opts.RedisPass, opts.RedisDB, opts.RedisPrefix)
	case DriverPostgres:
		return NewPostgresStore(ctx, opts.PostgresDSN)
	}
	return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
}

// nopCloser keeps the shared sqlite handle open until its owner closes it.
type nopCloser struct {
	*SQLiteDB
}

func (nopCloser) Close() error { return nil }
