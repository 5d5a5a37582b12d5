package cli

import (
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/flood-data-etl/internal/scheduler"
	"github.com/spf13/cobra"
)

var (
	ingestRegion  string
	ingestMigrate bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest one region now and print the result",
	Long: `Run a single ingestion for one region outside the queue. The result
counts are printed as JSON on stdout.`,
	Example: "  floodetl ingest --region KEL",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if ingestRegion == "" {
			return scheduler.ErrEmptyRegion
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger, ingestMigrate)
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck // process is exiting

		result, err := a.ingestor.Ingest(ctx, ingestRegion)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestRegion, "region", "r", "", "region code, for example KEL")
	ingestCmd.Flags().BoolVar(&ingestMigrate, "migrate", false, "apply the schema first")
}
