package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"spendigo/internal/core"
	"spendigo/internal/ledger"
)

// ─── sources ────────────────────────────────────────────────────────────────

func newSourcesCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List payment sources with balances and status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			list := l.ListActiveSources
			if all {
				list = l.ListSources
			}
			sources, err := list(cmd.Context(), a.user)
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), sources, func(w io.Writer) error {
				return printSources(w, sources)
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include deactivated sources")
	cmd.AddCommand(newSourceAddCmd(a), newSourceDeactivateCmd(a))
	return cmd
}

func printSources(w io.Writer, sources []core.PaymentSource) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tNAME\tBALANCE\tSTATUS\tACTIVE")
	for _, s := range sources {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\n",
			s.ID, s.Type, s.Name, core.FormatINR(s.CurrentBalance), s.Status(), s.IsActive)
	}
	fmt.Fprintf(tw, "\t\tTotal\t%s\t\t\n", core.FormatINR(core.TotalBalance(sources)))
	return tw.Flush()
}

func newSourceAddCmd(a *app) *cobra.Command {
	var (
		typ, name, description, color string
		initial, threshold            string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a payment source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := core.ParseSourceType(typ)
			if err != nil {
				return err
			}
			spec := ledger.SourceSpec{Type: t, Name: name, Description: description, Color: color}
			if spec.InitialBalance, err = parseOptionalAmount(initial); err != nil {
				return err
			}
			if spec.AlertThreshold, err = parseOptionalAmount(threshold); err != nil {
				return err
			}

			l, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			src, err := l.CreateSource(cmd.Context(), a.user, spec)
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), src, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Created %s (%s) with %s\n", src.ID, src.Name, core.FormatINR(src.CurrentBalance))
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&typ, "type", "t", "", "Source type: cash, bank or upi")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name (defaults from the type)")
	cmd.Flags().StringVar(&description, "description", "", "Description")
	cmd.Flags().StringVar(&color, "color", "", "Display colour, e.g. #10b981")
	cmd.Flags().StringVar(&initial, "initial", "", "Initial balance in rupees")
	cmd.Flags().StringVar(&threshold, "threshold", "", "Low-balance alert threshold in rupees")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newSourceDeactivateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate SOURCE_ID",
		Short: "Deactivate a payment source; its history is kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			src, err := l.DeactivateSource(cmd.Context(), a.user, args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), src, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Deactivated %s\n", src.ID)
				return err
			})
		},
	}
}

// ─── deposit ────────────────────────────────────────────────────────────────

func newDepositCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit SOURCE_ID AMOUNT",
		Short: "Add money to a payment source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseAmount(args[1])
			if err != nil {
				return err
			}
			l, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			src, err := l.Deposit(cmd.Context(), a.user, args[0], amount)
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), src, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s balance is now %s\n", src.ID, core.FormatINR(src.CurrentBalance))
				return err
			})
		},
	}
}

// ─── history ────────────────────────────────────────────────────────────────

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history SOURCE_ID",
		Short: "Show the balance history of a payment source, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			history, err := l.History(cmd.Context(), a.user, args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), history, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "TIME\tTYPE\tCHANGE\tBEFORE\tAFTER\tEXPENSE")
				for _, h := range history {
					expense := ""
					if h.ExpenseID != 0 {
						expense = fmt.Sprint(h.ExpenseID)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
						h.Timestamp.Format("2006-01-02 15:04"), h.TransactionType,
						core.FormatINR(h.AmountChange), core.FormatINR(h.BalanceBefore),
						core.FormatINR(h.BalanceAfter), expense)
				}
				return tw.Flush()
			})
		},
	}
}

func parseOptionalAmount(s string) (core.Money, error) {
	if s == "" {
		return core.Money{}, nil
	}
	return core.ParseAmount(s)
}
