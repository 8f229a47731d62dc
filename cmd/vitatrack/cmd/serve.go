package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mr1hm/go-vitatrack/internal/api"
	"github.com/mr1hm/go-vitatrack/internal/auth"
	"github.com/mr1hm/go-vitatrack/internal/config"
	"github.com/mr1hm/go-vitatrack/internal/logging"
	"github.com/mr1hm/go-vitatrack/internal/models"
	"github.com/mr1hm/go-vitatrack/internal/notifications"
	"github.com/mr1hm/go-vitatrack/internal/repository"
	"github.com/mr1hm/go-vitatrack/internal/seed"
	"github.com/mr1hm/go-vitatrack/internal/views"
	"github.com/mr1hm/go-vitatrack/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server.",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		serve(loadConfig())
	},
}

func serve(cfg *config.Config) {
	if err := cfg.RequireAuth(); err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	zap.L().Info("Server starting", zap.String("host", cfg.Server.Host), zap.Int("port", cfg.Server.Port))

	data, err := seed.Load(cfg.Views.SeedPath)
	if err != nil {
		logging.Fatalf("Failed to load seed data: %v", err)
	}

	if cfg.DB.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DB.Path), 0o755); err != nil {
			logging.Fatalf("Failed to create data directory: %v", err)
		}
	}
	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := repository.OpenNotifications(ctx, repository.Options{
		Driver:      cfg.Store.Driver,
		RedisAddr:   cfg.Redis.Addr,
		RedisPass:   cfg.Redis.Password,
		RedisDB:     cfg.Redis.DB,
		RedisPrefix: cfg.Redis.Prefix,
		PostgresDSN: cfg.Postgres.DSN,
	}, db)
	if err != nil {
		logging.Fatalf("Failed to open notification store: %v", err)
	}
	defer store.Close()

	authSvc, err := auth.NewService(db, auth.Config{
		Secret: cfg.Auth.Secret,
		TTL:    cfg.Auth.TTL,
		Issuer: cfg.Auth.Issuer,
	})
	if err != nil {
		logging.Fatalf("Failed to initialize auth: %v", err)
	}
	stopAudit := authSvc.OnChange(func(ev auth.Event) {
		zap.L().Info("auth state changed", zap.String("event", string(ev.Type)), zap.String("user_id", ev.UserID))
	})
	defer stopAudit()

	retry := notifications.RetryPolicy{Attempts: cfg.Views.RetryAttempts, Base: cfg.Views.RetryBase}
	pool := worker.NewNotificationPool(store, retry, cfg.Worker.Count, cfg.Worker.BufferSize)
	pool.Start(ctx)

	handler := api.NewHandler(api.Options{
		Auth:              authSvc,
		Store:             store,
		Queue:             pool,
		Views:             viewFactory(cfg, data, store, retry),
		NotificationLimit: cfg.Views.NotificationLimit,
		Socket: api.SocketConfig{
			WriteWait:      cfg.Socket.WriteWait,
			PongWait:       cfg.Socket.PongWait,
			PingPeriod:     cfg.Socket.PingPeriod,
			MaxMessageSize: cfg.Socket.MaxMessageSize,
			AllowedOrigins: cfg.Server.CORSOrigins,
		},
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(api.RequestID())
	router.Use(api.Logger(zap.L()))
	router.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))
	router.Use(api.RateLimitMiddleware(cfg.Server.RateLimit))
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	go func() {
		zap.L().Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zap.L().Info("shutting down...")

	// websocket sessions are hijacked and invisible to Shutdown
	handler.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("server shutdown error", zap.Error(err))
	}

	pool.Stop()
	cancel()

	zap.L().Info("shutdown complete")
	_ = zap.L().Sync()
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", api.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", api.RequestIDHeader},
	}
	for _, o := range origins {
		if o == "*" {
			// credentials cannot be combined with a wildcard origin
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func viewFactory(cfg *config.Config, data *seed.Data, store notifications.Store, retry notifications.RetryPolicy) api.ViewFactory {
	return func(role models.Role) (views.View, error) {
		return views.New(role, views.Deps{
			Seed:              data,
			Store:             store,
			NotificationLimit: cfg.Views.NotificationLimit,
			Retry:             retry,
			AlertProbability:  cfg.Views.AlertProbability,
			Intervals: views.Intervals{
				Alerts:    cfg.Views.AlertInterval,
				Jitter:    cfg.Views.JitterInterval,
				Countdown: cfg.Views.CountdownInterval,
				Clock:     cfg.Views.ClockInterval,
			},
		})
	}
}
