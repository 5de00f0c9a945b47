package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"docledger/internal/config"
	"docledger/internal/infrastructure/storage/postgres"
	"docledger/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the postgres schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is not set")
		}

		ctx := cmd.Context()
		pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL, 2))
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := migrations.Apply(ctx, pool.Pool); err != nil {
			return err
		}
		names, _ := migrations.Names()
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(names))
		return nil
	},
}
