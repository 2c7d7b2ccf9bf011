package http

import (
	"net/http"

	"spendigo/internal/core"
)

// dashboardDays is the length of the daily spending series.
const dashboardDays = 30

const recentExpenses = 5

type dashboardResponse struct {
	TotalBalance core.Money        `json:"totalBalance"`
	Sources      []sourceView      `json:"sources"`
	Summary      core.Summary      `json:"summary"`
	Daily        []core.DailyTotal `json:"dailyTotals"`
	Recent       []core.Expense    `json:"recentExpenses"`
}

// handleDashboard aggregates the active sources and the expenses selected
// by ?source. The total balance always covers every active source.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	sources, err := sess.Ledger().ListActiveSources(ctx, sess.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter := core.ParseFilter(r.URL.Query().Get("source"))
	expenses, err := sess.Ledger().ListExpenses(ctx, sess.UserID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	recent := expenses
	if len(recent) > recentExpenses {
		recent = recent[:recentExpenses]
	}
	if recent == nil {
		recent = []core.Expense{}
	}

	NewJSONResponse().Body(dashboardResponse{
		TotalBalance: core.TotalBalance(sources),
		Sources:      viewSources(sources),
		Summary:      core.Summarize(expenses),
		Daily:        core.DailyTotals(expenses, core.DateOf(s.clock()), dashboardDays),
		Recent:       recent,
	}).Write(w)
}
