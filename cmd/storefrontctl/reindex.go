package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/app"
	"github.com/utafrali/storefront/internal/service"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the search index from the primary store",
	Args:  cobra.NoArgs,
	RunE:  runReindex,
}

var resyncCmd = &cobra.Command{
	Use:   "resync <pid>...",
	Short: "Copy the stored state of the given products into the search index",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResync,
}

func init() {
	reindexCmd.Flags().Int("batch-size", 0, "Documents per bulk request (default REINDEX_BATCH_SIZE)")
	reindexCmd.Flags().Int("concurrency", 0, "Bulk requests in flight (default REINDEX_CONCURRENCY)")
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(resyncCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	opts := app.ReindexOptions(cfg)
	if v, _ := cmd.Flags().GetInt("batch-size"); v > 0 {
		opts.BatchSize = v
	}
	if v, _ := cmd.Flags().GetInt("concurrency"); v > 0 {
		opts.Concurrency = v
	}

	return withCatalog(cmd.Context(), func(ctx context.Context, _ *app.Backends, svc *service.CatalogService) error {
		res, err := svc.Reindex(ctx, opts)
		if err != nil {
			return fmt.Errorf("reindex failed: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), res)
	})
}

func runResync(cmd *cobra.Command, args []string) error {
	return withCatalog(cmd.Context(), func(ctx context.Context, _ *app.Backends, svc *service.CatalogService) error {
		for _, pid := range args {
			if err := svc.Resync(ctx, pid); err != nil {
				return fmt.Errorf("resync %s: %w", pid, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s synced\n", pid)
		}
		return nil
	})
}
