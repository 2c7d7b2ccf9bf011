package http

import (
	"fmt"
	"net/http"

	"spendigo/internal/core"
)

type expenseListResponse struct {
	Expenses []core.Expense `json:"expenses"`
	Summary  core.Summary   `json:"summary"`
}

// handleListExpenses lists expenses newest first. ?source=all or a comma
// separated list of source ids narrows the view.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	filter := core.ParseFilter(r.URL.Query().Get("source"))
	expenses, err := sess.Ledger().ListExpenses(r.Context(), sess.UserID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	NewJSONResponse().Body(expenseListResponse{
		Expenses: expenses,
		Summary:  core.Summarize(expenses),
	}).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	commit, err := sess.Ledger().CreateExpense(r.Context(), sess.UserID, req.Draft())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", fmt.Sprintf("/api/expenses/%d", commit.Expense.ID)).
		Body(commit).
		Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	id, err := expenseIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req expensePatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	commit, err := sess.Ledger().UpdateExpense(r.Context(), sess.UserID, id, req.Patch())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(commit).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	id, err := expenseIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := sess.Ledger().DeleteExpense(r.Context(), sess.UserID, id); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
