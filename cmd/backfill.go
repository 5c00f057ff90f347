package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/narrativelab/dramatis/internal/app"
	"github.com/narrativelab/dramatis/internal/config"
)

var backfillBatchSize int

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Embed facts that are missing vectors",
	Long: `backfill sweeps the fact table in batches and embeds every fact
whose vector is missing, until no further progress can be made. Facts
whose embedding fails stay pending for a later run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBackfill(cmd.Context(), backfillBatchSize)
	},
}

func init() {
	backfillCmd.Flags().IntVar(&backfillBatchSize, "batch-size", 50, "facts per embedding batch")
	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(ctx context.Context, batchSize int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	var totalEmbedded, totalFailed int
	for {
		embedded, failed, err := a.Search.Backfill(ctx, batchSize)
		if err != nil {
			return fmt.Errorf("backfill batch: %w", err)
		}
		totalEmbedded += embedded
		totalFailed += failed

		if embedded+failed == 0 {
			break // drained
		}
		if embedded == 0 {
			// Every fact in the batch failed; retrying now would just
			// hit the same provider errors.
			slog.Warn("backfill stopped without progress", "failed_in_batch", failed)
			break
		}
	}

	fmt.Printf("Backfill complete: %d embedded, %d still pending\n", totalEmbedded, totalFailed)
	return nil
}
