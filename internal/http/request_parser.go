// Package http provides HTTP server and handler implementations.
//
// This file holds the JSON request bodies the API accepts and their
// conversion into ledger inputs.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"spendigo/internal/core"
	"spendigo/internal/ledger"
)

const maxBodyBytes = 64 << 10

// errBadRequest marks malformed requests, as opposed to well-formed ones
// the ledger rejects.
var errBadRequest = errors.New("bad request")

type sourceRequest struct {
	Type           string     `json:"type"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Color          string     `json:"color"`
	InitialBalance core.Money `json:"initialBalance"`
	AlertThreshold core.Money `json:"alertThreshold"`
}

func (req sourceRequest) Spec() (ledger.SourceSpec, error) {
	t, err := core.ParseSourceType(req.Type)
	if err != nil {
		return ledger.SourceSpec{}, err
	}
	return ledger.SourceSpec{
		Type:           t,
		Name:           sanitizeInput(req.Name),
		Description:    sanitizeInput(req.Description),
		Color:          sanitizeInput(req.Color),
		InitialBalance: req.InitialBalance,
		AlertThreshold: req.AlertThreshold,
	}, nil
}

type depositRequest struct {
	Amount core.Money `json:"amount"`
}

type expenseRequest struct {
	Amount      core.Money            `json:"amount"`
	Vendor      string                `json:"vendor"`
	Date        core.Date             `json:"date"`
	Category    string                `json:"category"`
	CategoryID  int64                 `json:"categoryId"`
	Description string                `json:"description"`
	SourceID    string                `json:"sourceId"`
	Voice       *core.VoiceProvenance `json:"voice"`
}

// Draft converts the body into a ledger draft. A category id wins over a
// category name when both are present.
func (req expenseRequest) Draft() core.ExpenseDraft {
	d := core.ExpenseDraft{
		Amount:      req.Amount,
		Vendor:      sanitizeInput(req.Vendor),
		Date:        req.Date,
		Category:    core.ByName(sanitizeInput(req.Category)),
		Description: sanitizeInput(req.Description),
		SourceID:    strings.TrimSpace(req.SourceID),
		Voice:       req.Voice,
	}
	if req.CategoryID != 0 {
		d.Category = core.ByID(req.CategoryID)
	}
	return d
}

// expensePatchRequest mirrors expenseRequest with every field optional.
type expensePatchRequest struct {
	Amount      *core.Money `json:"amount"`
	Vendor      *string     `json:"vendor"`
	Date        *core.Date  `json:"date"`
	Category    *string     `json:"category"`
	CategoryID  *int64      `json:"categoryId"`
	Description *string     `json:"description"`
	SourceID    *string     `json:"sourceId"`
}

func (req expensePatchRequest) Patch() core.ExpensePatch {
	p := core.ExpensePatch{
		Amount:   req.Amount,
		Date:     req.Date,
		SourceID: trimmedPtr(req.SourceID),
	}
	if req.Vendor != nil {
		v := sanitizeInput(*req.Vendor)
		p.Vendor = &v
	}
	if req.Description != nil {
		v := sanitizeInput(*req.Description)
		p.Description = &v
	}
	switch {
	case req.CategoryID != nil && *req.CategoryID != 0:
		ref := core.ByID(*req.CategoryID)
		p.Category = &ref
	case req.Category != nil:
		ref := core.ByName(sanitizeInput(*req.Category))
		p.Category = &ref
	}
	return p
}

type voiceRequest struct {
	Text string `json:"text"`
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// decodeJSON reads one JSON object from the body into dst. Unknown fields
// and trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", errBadRequest)
	}
	return nil
}

// expenseIDParam reads the {id} path segment as an expense id.
func expenseIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid expense id %q", errBadRequest, raw)
	}
	return id, nil
}

// sourceIDParam reads the {id} path segment as a source id.
func sourceIDParam(r *http.Request) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		return "", fmt.Errorf("%w: missing source id", errBadRequest)
	}
	return id, nil
}
