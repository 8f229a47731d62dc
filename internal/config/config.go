package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
)

type Config struct {
	Server   ServerConfig
	Worker   WorkerConfig
	Store    StoreConfig
	DB       DatabaseConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Auth     AuthConfig
	Views    ViewsConfig
	Socket   SocketConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host        string   `env:"SERVER_HOST" envDefault:"localhost"`
	Port        int      `env:"SERVER_PORT" envDefault:"8080"`
	RateLimit   int      `env:"RATE_LIMIT" envDefault:"5"`
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

type WorkerConfig struct {
	Count      int `env:"WORKER_COUNT" envDefault:"2"`
	BufferSize int `env:"WORKER_BUFFER_SIZE" envDefault:"20"`
}

// StoreConfig picks the notification backend: sqlite, redis or postgres.
// Users always live in SQLite.
type StoreConfig struct {
	Driver string `env:"STORE_DRIVER" envDefault:"sqlite"`
}

type DatabaseConfig struct {
	Path string `env:"DB_PATH" envDefault:"./data/vitatrack.db"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	Prefix   string `env:"REDIS_PREFIX" envDefault:"vitatrack"`
}

type PostgresConfig struct {
	DSN string `env:"POSTGRES_DSN"`
}

type AuthConfig struct {
	Secret string        `env:"JWT_SECRET"`
	TTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`
	Issuer string        `env:"JWT_ISSUER" envDefault:"vitatrack"`
}

type ViewsConfig struct {
	SeedPath          string        `env:"SEED_PATH"`
	AlertProbability  float64       `env:"ALERT_PROBABILITY" envDefault:"0.2"`
	AlertInterval     time.Duration `env:"ALERT_INTERVAL" envDefault:"30s"`
	JitterInterval    time.Duration `env:"JITTER_INTERVAL" envDefault:"5s"`
	CountdownInterval time.Duration `env:"COUNTDOWN_INTERVAL" envDefault:"30s"`
	ClockInterval     time.Duration `env:"CLOCK_INTERVAL" envDefault:"1m"`
	NotificationLimit int           `env:"NOTIFICATION_LIMIT" envDefault:"5"`
	RetryAttempts     int           `env:"NOTIFICATION_RETRY_ATTEMPTS" envDefault:"3"`
	RetryBase         time.Duration `env:"NOTIFICATION_RETRY_BASE" envDefault:"100ms"`
}

type SocketConfig struct {
	WriteWait      time.Duration `env:"WS_WRITE_WAIT" envDefault:"10s"`
	PongWait       time.Duration `env:"WS_PONG_WAIT" envDefault:"60s"`
	PingPeriod     time.Duration `env:"WS_PING_INTERVAL" envDefault:"54s"`
	MaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"4096"`
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("error parsing environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// RequireAuth reports whether the config can sign session tokens. Only the
// server needs it.
func (c *Config) RequireAuth() error {
	if c.Auth.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	return nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.RateLimit < 1 {
		return fmt.Errorf("rate limit must be positive: %d", c.Server.RateLimit)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	switch c.Store.Driver {
	case "sqlite":
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("REDIS_ADDR is required for the redis store")
		}
	case "postgres":
		if c.Postgres.DSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store driver: %s", c.Store.Driver)
	}

	if c.Auth.TTL <= 0 {
		return fmt.Errorf("invalid token ttl: %s", c.Auth.TTL)
	}

	if c.Views.AlertProbability < 0 || c.Views.AlertProbability > 1 {
		return fmt.Errorf("alert probability must be within [0, 1]: %v", c.Views.AlertProbability)
	}
	if c.Views.NotificationLimit < 1 {
		return fmt.Errorf("notification limit must be positive: %d", c.Views.NotificationLimit)
	}
	for name, d := range map[string]time.Duration{
		"alert":     c.Views.AlertInterval,
		"jitter":    c.Views.JitterInterval,
		"countdown": c.Views.CountdownInterval,
		"clock":     c.Views.ClockInterval,
	} {
		if d < time.Second {
			return fmt.Errorf("%s interval must be at least 1 second", name)
		}
	}

	if c.Socket.PingPeriod >= c.Socket.PongWait {
		return errors.New("websocket ping interval must be shorter than the pong wait")
	}
	if c.Worker.Count < 1 || c.Worker.BufferSize < 1 {
		return errors.New("worker count and buffer size must be positive")
	}

	return nil
}
