// Package cli provides the floodetl command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/couchcryptid/flood-data-etl/internal/config"
	"github.com/couchcryptid/flood-data-etl/internal/observability"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "0.1.0"

var (
	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
)

var rootCmd = &cobra.Command{
	Use:   "floodetl",
	Short: "PublicInfoBanjir flood telemetry ingestion",
	Long: `floodetl collects rainfall and river-level telemetry from the PublicInfoBanjir
portal, reconciles it into a station registry and a readings store, and
serves the results over HTTP.

Configuration is read from the environment and an optional .env file.`,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "help" {
			return nil
		}
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		logger, closeLog = observability.NewLogger(cfg)
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if closeLog == nil {
			return
		}
		if err := closeLog(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
	},
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(migrateCmd)
}
