package main

import (
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Recompute cached client health scores",
	Example: `  # Refresh every client of every account
  billflowctl health

  # Refresh one account
  billflowctl health --account 11111111-1111-1111-1111-111111111111`,
	RunE: runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().String("account", "", "Account id to refresh (default: all accounts)")
}

func runHealth(cmd *cobra.Command, _ []string) error {
	account, _ := cmd.Flags().GetString("account")

	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	svc := rt.Router.Health
	if account != "" {
		res, err := svc.RefreshAll(cmd.Context(), account)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	}
	n, err := svc.RefreshAccounts(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]int{"refreshed": n})
}
