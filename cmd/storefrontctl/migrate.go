package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/app"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/migrations"
	"github.com/utafrali/storefront/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the PostgreSQL schema or create the MongoDB indexes",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().Bool("list", false, "Only list the bundled PostgreSQL migrations")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	names, err := database.PendingMigrations(migrations.FS)
	if err != nil {
		return err
	}
	if list, _ := cmd.Flags().GetBool("list"); list {
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	}

	// Opening the store applies migrations or ensures indexes.
	b, err := app.OpenBackends(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer b.Close(context.Background())

	switch cfg.StoreBackend {
	case config.StorePostgres:
		fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%d migrations)\n", len(names))
	case config.StoreMongo:
		fmt.Fprintln(cmd.OutOrStdout(), "mongo indexes ensured")
	default:
		fmt.Fprintln(cmd.OutOrStdout(), "nothing to migrate for the memory store")
	}
	return nil
}
