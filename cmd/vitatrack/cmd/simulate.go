package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mr1hm/go-vitatrack/internal/models"
	"github.com/mr1hm/go-vitatrack/internal/seed"
	"github.com/mr1hm/go-vitatrack/internal/views"
)

var (
	simulateRole     string
	simulateDuration time.Duration

	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Mount one view headless and print its snapshots as JSON lines.",
		Long: `Mounts a single view with the seed fixtures and the configured timers,
then writes every snapshot it publishes to stdout until the duration elapses
or the process is interrupted. No server or store is started.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()

			role, ok := models.ParseRole(simulateRole)
			if !ok {
				return fmt.Errorf("unknown role %q", simulateRole)
			}
			data, err := seed.Load(cfg.Views.SeedPath)
			if err != nil {
				return fmt.Errorf("error loading seed data: %w", err)
			}

			view, err := views.New(role, views.Deps{
				Seed:             data,
				AlertProbability: cfg.Views.AlertProbability,
				Intervals: views.Intervals{
					Alerts:    cfg.Views.AlertInterval,
					Jitter:    cfg.Views.JitterInterval,
					Countdown: cfg.Views.CountdownInterval,
					Clock:     cfg.Views.ClockInterval,
				},
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()
			if simulateDuration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, simulateDuration)
				defer cancel()
			}

			return runSimulation(ctx, view, json.NewEncoder(cmd.OutOrStdout()))
		},
	}
)

func runSimulation(ctx context.Context, view views.View, enc *json.Encoder) error {
	if err := view.Mount(ctx); err != nil {
		return fmt.Errorf("error mounting view: %w", err)
	}
	defer view.Unmount()

	id, snaps := view.Subscribe()
	defer view.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("simulation finished", zap.String("role", string(view.Role())))
			return nil
		case s, ok := <-snaps:
			if !ok {
				return nil
			}
			if err := enc.Encode(s); err != nil {
				return fmt.Errorf("error writing snapshot: %w", err)
			}
		}
	}
}

//nolint:gochecknoinits // cobra wires flags at init time.
func init() {
	simulateCmd.Flags().StringVarP(&simulateRole, "role", "r", string(models.RoleAdmin), "view to mount: admin, driver or family")
	simulateCmd.Flags().DurationVarP(&simulateDuration, "duration", "d", time.Minute, "how long to run; zero runs until interrupted")
}
