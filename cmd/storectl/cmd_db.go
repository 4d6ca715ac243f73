package main

import (
	"fmt"
	"strconv"
	"time"

	"storefront/internal/database"

	"github.com/spf13/cobra"
)

// storectl migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Database.AutoMigrate = false

		pool, err := database.NewPool(cmd.Context(), cfg.Database, logger)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := database.Migrate(cmd.Context(), pool, logger); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

var couponsCmd = &cobra.Command{
	Use:   "coupons",
	Short: "Manage coupons",
}

// storectl coupons import <path>
var couponsImportCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Import a CSV coupon file from S3 or the local file system",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := boot(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.CouponImporter(cmd.Context()).Import(cmd.Context(), args[0])
		if result != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "source=%s parsed=%d skipped=%d rejected=%d upserted=%d\n",
				result.Source, result.Parsed, result.Skipped, result.Rejected, result.Upserted)
		}
		return err
	},
}

var cartsCmd = &cobra.Command{
	Use:   "carts",
	Short: "Manage carts",
}

var reapOlderThan time.Duration

// storectl carts reap
var cartsReapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Delete carts untouched for longer than the cart TTL",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := boot(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		olderThan := reapOlderThan
		if olderThan <= 0 {
			olderThan = a.Config.Cart.TTL()
		}

		n, err := a.Services.Carts.ReapAbandoned(cmd.Context(), olderThan)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reaped %d carts older than %s\n", n, olderThan)
		return nil
	},
}

var stockCmd = &cobra.Command{
	Use:   "stock",
	Short: "Adjust product stock",
}

// storectl stock add <productId> <qty>
var stockAddCmd = &cobra.Command{
	Use:   "add <productId> <qty>",
	Short: "Return units of a product to stock",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		qty, err := strconv.Atoi(args[1])
		if err != nil || qty <= 0 {
			return fmt.Errorf("quantity must be a positive integer, got %q", args[1])
		}

		a, err := boot(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Restock(cmd.Context(), args[0], qty); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added %d units to %s\n", qty, args[0])
		return nil
	},
}

func init() {
	couponsCmd.AddCommand(couponsImportCmd)
	cartsCmd.AddCommand(cartsReapCmd)
	cartsReapCmd.Flags().DurationVar(&reapOlderThan, "older-than", 0, "Age threshold (defaults to CART_TTL_HOURS)")
	stockCmd.AddCommand(stockAddCmd)
}
