package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/diewo77/billflow/internal/app"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "billflowctl",
	Short: "Operate billflow batch jobs from the command line",
	Long: `billflowctl runs the billflow batch jobs against the configured database:
bank reconciliation, recurring invoice generation and client health refresh.

Configuration is read from the same environment variables (and optional
CONFIG_FILE) as the HTTP server.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

// openRuntime loads configuration and connects to the database.
func openRuntime(ctx context.Context) (*app.Runtime, error) {
	cfg, err := app.Setup()
	if err != nil {
		return nil, err
	}
	return app.Open(ctx, cfg)
}

// printJSON writes v to the command's output as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
