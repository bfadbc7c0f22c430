package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/app"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/logger"
)

var (
	cfg *config.Config
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "storefrontctl",
	Short:         "Storefront catalog administration",
	Long:          "Maintenance commands for the storefront catalog: reindexing, outbox inspection and schema migration.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

// Execute runs the root command.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("store", "", "Primary store backend: postgres, mongo, memory (overrides STORE_BACKEND)")
	rootCmd.PersistentFlags().String("engine", "", "Search engine: meilisearch, elasticsearch, memory (overrides SEARCH_ENGINE)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (overrides LOG_LEVEL)")
}

func initConfig(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if v, _ := flags.GetString("store"); v != "" {
		if err := os.Setenv("STORE_BACKEND", v); err != nil {
			return fmt.Errorf("set STORE_BACKEND: %w", err)
		}
	}
	if v, _ := flags.GetString("engine"); v != "" {
		if err := os.Setenv("SEARCH_ENGINE", v); err != nil {
			return fmt.Errorf("set SEARCH_ENGINE: %w", err)
		}
	}

	loaded, err := config.Load()
	if err != nil {
		return err
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		loaded.LogLevel = v
	}
	cfg = loaded
	log = logger.NewWithWriter(config.ServiceName+"-ctl", cfg.LogLevel, cmd.ErrOrStderr())
	return nil
}

// withCatalog opens the configured backends, runs fn and closes them again.
func withCatalog(ctx context.Context, fn func(ctx context.Context, b *app.Backends, svc *service.CatalogService) error) error {
	b, err := app.OpenBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(context.Background()); err != nil {
			log.Warn("closing backends", slog.String("error", err.Error()))
		}
	}()
	return fn(ctx, b, app.NewCatalog(cfg, b, nil, log))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
