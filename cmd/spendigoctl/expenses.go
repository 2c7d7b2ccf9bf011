package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"spendigo/internal/core"
	"spendigo/internal/ledger"
)

// expenseFlags are the fields shared by add and edit.
type expenseFlags struct {
	amount, vendor, date, category, description, source string
}

func (f *expenseFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.amount, "amount", "a", "", "Amount in rupees")
	cmd.Flags().StringVarP(&f.vendor, "vendor", "v", "", "Vendor")
	cmd.Flags().StringVarP(&f.date, "date", "d", "", "Date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVarP(&f.category, "category", "c", "", "Category name")
	cmd.Flags().StringVar(&f.description, "description", "", "Description")
	cmd.Flags().StringVarP(&f.source, "source", "s", "", "Payment source id")
}

// ─── add ────────────────────────────────────────────────────────────────────

func newAddCmd(a *app) *cobra.Command {
	var f expenseFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an expense against a payment source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseAmount(f.amount)
			if err != nil {
				return err
			}
			draft := core.ExpenseDraft{
				Amount:      amount,
				Vendor:      f.vendor,
				Category:    core.ByName(f.category),
				Description: f.description,
				SourceID:    f.source,
			}
			if f.date != "" {
				if draft.Date, err = core.ParseDate(f.date); err != nil {
					return err
				}
			}

			l, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			commit, err := l.CreateExpense(cmd.Context(), a.user, draft)
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), commit, func(w io.Writer) error {
				return printCommit(w, "Recorded", commit)
			})
		},
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

// ─── edit ───────────────────────────────────────────────────────────────────

func newEditCmd(a *app) *cobra.Command {
	var f expenseFlags
	cmd := &cobra.Command{
		Use:   "edit EXPENSE_ID",
		Short: "Change fields of an expense; only the given flags are changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid expense id %q", args[0])
			}

			var patch core.ExpensePatch
			changed := cmd.Flags().Changed
			if changed("amount") {
				m, err := core.ParseAmount(f.amount)
				if err != nil {
					return err
				}
				patch.Amount = &m
			}
			if changed("vendor") {
				patch.Vendor = &f.vendor
			}
			if changed("date") {
				d, err := core.ParseDate(f.date)
				if err != nil {
					return err
				}
				patch.Date = &d
			}
			if changed("category") {
				ref := core.ByName(f.category)
				patch.Category = &ref
			}
			if changed("description") {
				patch.Description = &f.description
			}
			if changed("source") {
				patch.SourceID = &f.source
			}
			if patch.IsEmpty() {
				return fmt.Errorf("nothing to change: pass at least one field flag")
			}

			l, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			commit, err := l.UpdateExpense(cmd.Context(), a.user, id, patch)
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), commit, func(w io.Writer) error {
				return printCommit(w, "Updated", commit)
			})
		},
	}
	f.register(cmd)
	return cmd
}

// ─── delete ─────────────────────────────────────────────────────────────────

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete EXPENSE_ID",
		Short: "Delete an expense and refund its source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid expense id %q", args[0])
			}
			l, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			if err := l.DeleteExpense(cmd.Context(), a.user, id); err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), map[string]int64{"deleted": id}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Deleted expense %d\n", id)
				return err
			})
		},
	}
}

// ─── list ───────────────────────────────────────────────────────────────────

func newListCmd(a *app) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List expenses, newest first, with a per-category summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			expenses, err := l.ListExpenses(cmd.Context(), a.user, core.ParseFilter(source))
			if err != nil {
				return err
			}
			summary := core.Summarize(expenses)
			out := struct {
				Expenses []core.Expense `json:"expenses"`
				Summary  core.Summary   `json:"summary"`
			}{expenses, summary}

			return a.emit(cmd.OutOrStdout(), out, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tDATE\tVENDOR\tCATEGORY\tSOURCE\tAMOUNT")
				for _, e := range expenses {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
						e.ID, e.Date, e.Vendor, e.Category, e.SourceID, core.FormatINR(e.Amount))
				}
				fmt.Fprintln(tw)
				for _, c := range summary.ByCategory {
					fmt.Fprintf(tw, "\t\t\t%s\t\t%s\n", c.Name, core.FormatINR(c.Amount))
				}
				fmt.Fprintf(tw, "\t\t\tTotal (%d)\t\t%s\n", summary.Count, core.FormatINR(summary.Total))
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", core.AllSourcesToken, `Source filter: "all" or comma separated ids`)
	return cmd
}

func printCommit(w io.Writer, verb string, c ledger.Commit) error {
	e := c.Expense
	if _, err := fmt.Fprintf(w, "%s expense %d: %s at %s on %s from %s\n",
		verb, e.ID, core.FormatINR(e.Amount), e.Vendor, e.Date, e.SourceID); err != nil {
		return err
	}
	switch c.Advice.Level {
	case core.SufficiencyZeroBalance:
		_, err := fmt.Fprintf(w, "warning: %s had a zero balance\n", e.SourceID)
		return err
	case core.SufficiencyInsufficient:
		_, err := fmt.Fprintf(w, "warning: %s was short by %s\n", e.SourceID, core.FormatINR(c.Advice.Shortfall))
		return err
	}
	return nil
}
