package http

import (
	"net/http"
	"strconv"

	"spendigo/internal/core"
)

// sourceView is a payment source with its balance status tier.
type sourceView struct {
	core.PaymentSource
	Status core.BalanceStatus `json:"status"`
}

func viewSources(sources []core.PaymentSource) []sourceView {
	out := make([]sourceView, len(sources))
	for i, src := range sources {
		out[i] = sourceView{PaymentSource: src, Status: src.Status()}
	}
	return out
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.ledger.Categories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"categories": cats}).Write(w)
}

// handleListSources lists active sources; ?inactive=true includes
// deactivated ones.
func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	list := sess.Ledger().ListActiveSources
	if inactive, _ := strconv.ParseBool(r.URL.Query().Get("inactive")); inactive {
		list = sess.Ledger().ListSources
	}
	sources, err := list(r.Context(), sess.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(map[string]any{
		"sources":      viewSources(sources),
		"totalBalance": core.TotalBalance(sources),
	}).Write(w)
}

func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req sourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	spec, err := req.Spec()
	if err != nil {
		writeError(w, r, err)
		return
	}
	src, err := sess.Ledger().CreateSource(r.Context(), sess.UserID, spec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/sources/"+src.ID).
		Body(sourceView{PaymentSource: src, Status: src.Status()}).
		Write(w)
}

func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	id, err := sourceIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	src, err := sess.Ledger().GetSource(r.Context(), sess.UserID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(sourceView{PaymentSource: src, Status: src.Status()}).Write(w)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	id, err := sourceIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req depositRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	src, err := sess.Ledger().Deposit(r.Context(), sess.UserID, id, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(sourceView{PaymentSource: src, Status: src.Status()}).Write(w)
}

func (s *Server) handleDeactivateSource(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	id, err := sourceIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	src, err := sess.Ledger().DeactivateSource(r.Context(), sess.UserID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(sourceView{PaymentSource: src, Status: src.Status()}).Write(w)
}

func (s *Server) handleSourceHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	id, err := sourceIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	history, err := sess.Ledger().History(r.Context(), sess.UserID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if history == nil {
		history = []core.BalanceHistory{}
	}
	NewJSONResponse().Body(map[string]any{"history": history}).Write(w)
}
