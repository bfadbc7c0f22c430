package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/app"
	"github.com/utafrali/storefront/internal/service"
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect and drain pending index writes",
}

var outboxStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count pending and dead-lettered tasks",
	Args:  cobra.NoArgs,
	RunE:  runOutboxStats,
}

var outboxDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Replay every due task once",
	Args:  cobra.NoArgs,
	RunE:  runOutboxDrain,
}

func init() {
	outboxCmd.AddCommand(outboxStatsCmd)
	outboxCmd.AddCommand(outboxDrainCmd)
	rootCmd.AddCommand(outboxCmd)
}

func runOutboxStats(cmd *cobra.Command, args []string) error {
	return withCatalog(cmd.Context(), func(ctx context.Context, b *app.Backends, svc *service.CatalogService) error {
		relay := service.NewRelay(b.Outbox, svc, app.RelayConfig(cfg), log)
		stats, err := relay.Stats(ctx)
		if err != nil {
			return fmt.Errorf("outbox stats: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), stats)
	})
}

func runOutboxDrain(cmd *cobra.Command, args []string) error {
	return withCatalog(cmd.Context(), func(ctx context.Context, b *app.Backends, svc *service.CatalogService) error {
		relay := service.NewRelay(b.Outbox, svc, app.RelayConfig(cfg), log)
		n, err := relay.Drain(ctx)
		if err != nil {
			return fmt.Errorf("outbox drain: %w", err)
		}
		stats, err := relay.Stats(ctx)
		if err != nil {
			return fmt.Errorf("outbox stats: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"replayed": n,
			"pending":  stats,
		})
	})
}
