package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/yungbote/kgsummary/internal/app"
	"github.com/yungbote/kgsummary/internal/platform/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "kgsummary",
	Short: "Build summary edges over the entity graph from document abstracts",
	Long: `kgsummary claims unprocessed documents from the catalog, resolves the
entities their lead sections link to, picks one existing relation per entity
pair and records it in the graph as a SUMMARY edge for the document.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command; SIGINT and SIGTERM cancel the command context.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (defaults to $CONFIG_FILE)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(requeueCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(migrateCmd)
}

// loadApp reads configuration, applies overrides and opens the catalog.
func loadApp(cmd *cobra.Command, override func(*app.Config)) (*app.App, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(&cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return app.New(cmd.Context(), cfg, log)
}
