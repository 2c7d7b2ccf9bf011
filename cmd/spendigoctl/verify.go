package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"spendigo/internal/core"
	"spendigo/internal/ledger"
)

// ─── verify ─────────────────────────────────────────────────────────────────

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check every source balance against its expenses",
		Long: `Recomputes each source's balance as its initial balance (deposits
included) minus the expenses recorded against it and compares the result
with the stored balance. Exits non-zero when any source drifted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			sources, err := l.ListSources(cmd.Context(), a.user)
			if err != nil {
				return err
			}
			expenses, err := l.ListExpenses(cmd.Context(), a.user, core.AllSources())
			if err != nil {
				return err
			}

			drift := ledger.Verify(sources, expenses)
			if drift == nil {
				drift = []ledger.Drift{}
			}
			err = a.emit(cmd.OutOrStdout(), drift, func(w io.Writer) error {
				if len(drift) == 0 {
					_, err := fmt.Fprintf(w, "OK: %d sources, %d expenses, no drift\n", len(sources), len(expenses))
					return err
				}
				for _, d := range drift {
					if _, err := fmt.Fprintln(w, "DRIFT", d); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			if len(drift) > 0 {
				return fmt.Errorf("%d source(s) drifted from their expenses", len(drift))
			}
			return nil
		},
	}
}
