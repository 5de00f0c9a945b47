package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docledger/internal/app"
	appctx "docledger/internal/core/context"
	"docledger/internal/config"
	"docledger/pkg/logger"
)

var version = "0.1.0"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "docctl",
	Short: "docctl - operator CLI for the docledger engine",
	Long: `docctl talks to the same store as the server. Set DATABASE_URL to work
against postgres; without it commands run against a throwaway in-memory store,
which is only useful for totals previews.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if verbose {
			level = "debug"
		}
		log, err := logger.New(logger.Config{
			Level:       level,
			Development: true,
			OutputPaths: []string{"stderr"},
		})
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		logger.SetDefault(log)
		cmd.SetContext(appctx.StartTrace(cmd.Context(), appctx.OriginCLI))
		return nil
	},
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(totalsCmd)
	rootCmd.AddCommand(numberCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(migrateCmd)
}

// openApp loads configuration and wires the engine for one command.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}
