package google

import (
	"fmt"
	"strings"
	"time"

	"spendigo/internal/core"
	"spendigo/internal/sheets"
)

var (
	sourceHeader  = []any{"Source ID", "Type", "Name", "Active", "Initial Balance", "Current Balance", "Alert Threshold", "Status"}
	expenseHeader = []any{"Expense ID", "Date", "Vendor", "Category", "Amount", "Source ID", "Description", "Voice", "Confidence"}
)

// maxTabTitle is the Sheets limit on a tab title.
const maxTabTitle = 100

// renderRows lays the snapshot out as one grid: a stamp line, the source
// table, a blank row, then the expense table newest first. Amounts are
// written as plain rupee numbers so the sheet can sum them.
func renderRows(snap sheets.Snapshot) [][]any {
	rows := make([][]any, 0, len(snap.Sources)+len(snap.Expenses)+5)
	rows = append(rows, []any{"Generated", snap.GeneratedAt.UTC().Format(time.RFC3339), "User", snap.UserID})
	rows = append(rows, sourceHeader)
	for _, s := range snap.Sources {
		rows = append(rows, []any{
			s.ID,
			string(s.Type),
			s.Name,
			s.IsActive,
			amountCell(s.InitialBalance),
			amountCell(s.CurrentBalance),
			amountCell(s.AlertThreshold),
			string(s.Status()),
		})
	}
	rows = append(rows, []any{})
	rows = append(rows, expenseHeader)

	expenses := make([]core.Expense, len(snap.Expenses))
	copy(expenses, snap.Expenses)
	core.SortNewestFirst(expenses)
	for _, e := range expenses {
		confidence := any("")
		if e.IsVoiceInput {
			confidence = e.AIConfidenceScore
		}
		rows = append(rows, []any{
			e.ID,
			e.Date.String(),
			e.Vendor,
			e.Category,
			amountCell(e.Amount),
			e.SourceID,
			e.Description,
			e.IsVoiceInput,
			confidence,
		})
	}
	return rows
}

func amountCell(m core.Money) float64 {
	return m.Float()
}

// tabName returns "<prefix> - <userID>" with characters Sheets refuses in
// titles replaced, truncated to the title limit.
func tabName(prefix, userID string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "Spendigo"
	}
	name := fmt.Sprintf("%s - %s", prefix, strings.TrimSpace(userID))
	name = strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', '*', '?', '/', '\\', ':', '\'':
			return '_'
		}
		return r
	}, name)
	if r := []rune(name); len(r) > maxTabTitle {
		name = string(r[:maxTabTitle])
	}
	return name
}

// quoteRange quotes a tab title for use in A1 notation.
func quoteRange(tab, cells string) string {
	return fmt.Sprintf("'%s'!%s", tab, cells)
}
