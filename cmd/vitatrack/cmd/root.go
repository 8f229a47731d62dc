package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mr1hm/go-vitatrack/internal/config"
	"github.com/mr1hm/go-vitatrack/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "vitatrack",
	Short: "Ambulance dispatch dashboards over HTTP and websockets.",
	Long: `VitaTrack serves the admin, driver and family dispatch views.

Configuration is read from the environment, optionally seeded from a .env file
in the working directory.`,
	SilenceUsage: true,
}

// Execute runs the CLI and exits with non-zero status on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // cobra wires subcommands at init time.
func init() {
	rootCmd.AddCommand(serveCmd, simulateCmd)
}

// loadConfig reads .env and the environment, then installs the logger.
func loadConfig() *config.Config {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg
}
