package main

import (
	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Match pending bank transactions to open invoices",
	Long: `Match pending bank transactions to the open invoices they pay and mark
both sides as settled.

With --account only that account is reconciled; otherwise every account with
pending transactions is.`,
	Example: `  # Reconcile every account
  billflowctl reconcile

  # Reconcile a single account
  billflowctl reconcile --account 11111111-1111-1111-1111-111111111111`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().String("account", "", "Account id to reconcile (default: all accounts)")
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	account, _ := cmd.Flags().GetString("account")

	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	svc := rt.Router.Reconciliation
	if account != "" {
		res, err := svc.Run(cmd.Context(), account)
		if res != nil {
			_ = printJSON(cmd, res)
		}
		return err
	}
	batch, err := svc.RunAll(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd, batch)
}
