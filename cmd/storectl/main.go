package main

import (
	"context"
	"fmt"
	"os"

	"storefront/internal/app"
	"storefront/internal/config"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "storectl",
	Short:         "Operator commands for the storefront backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(couponsCmd)
	rootCmd.AddCommand(cartsCmd)
	rootCmd.AddCommand(stockCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(jobsCmd)
}

// loadConfig reads the environment and builds the logger.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, config.NewLogger(cfg.Logger), nil
}

// boot builds the full application container. Callers must Close it.
func boot(ctx context.Context) (*app.App, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger)
}
