package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate invoices from due recurring templates",
	Long: `Generate one invoice for every active recurring template whose next due
date is on or before the given date, and advance each template's schedule.`,
	Example: `  # Generate everything due today
  billflowctl generate

  # Catch up as of a specific date
  billflowctl generate --as-of 2024-06-30`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().String("as-of", "", "Generate templates due on or before this date (format: YYYY-MM-DD, default: today)")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	asOfStr, _ := cmd.Flags().GetString("as-of")
	asOf := time.Now().UTC()
	if asOfStr != "" {
		parsed, err := time.Parse("2006-01-02", asOfStr)
		if err != nil {
			return fmt.Errorf("invalid as-of date format. Use YYYY-MM-DD: %w", err)
		}
		asOf = parsed
	}

	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.Router.Recurring.GenerateDue(cmd.Context(), asOf)
	if res != nil {
		_ = printJSON(cmd, res)
	}
	return err
}
