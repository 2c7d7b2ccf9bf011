// Package feed turns change notifications into full ledger re-fetches.
//
// A notification never carries state. Whoever receives one reads the
// user's whole ledger again, so a consumer can never drift from what the
// ledger committed. Concurrent refreshes for the same user share a single
// read.
package feed

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"spendigo/internal/core"
	"spendigo/internal/log"
	"spendigo/internal/sheets"
)

// Reader is the read side of a ledger.
type Reader interface {
	ListSources(ctx context.Context, userID string) ([]core.PaymentSource, error)
	ListExpenses(ctx context.Context, userID string, filter core.ExpenseFilter) ([]core.Expense, error)
}

type Refresher struct {
	reader Reader
	logger *log.Logger
	now    func() time.Time
	group  singleflight.Group
}

func NewRefresher(reader Reader, logger *log.Logger, now func() time.Time) *Refresher {
	if logger == nil {
		logger = log.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return &Refresher{
		reader: reader,
		logger: logger.WithComponent(log.ComponentFeed),
		now:    now,
	}
}

// Fetch reads the full ledger of userID. Callers arriving while a read for
// the same user is in flight receive that read's result.
func (r *Refresher) Fetch(ctx context.Context, userID string) (sheets.Snapshot, error) {
	if userID == "" {
		return sheets.Snapshot{}, core.ErrNoUser
	}
	v, err, shared := r.group.Do(userID, func() (any, error) {
		return r.fetch(ctx, userID)
	})
	if err != nil {
		return sheets.Snapshot{}, err
	}
	if shared {
		r.logger.DebugContext(ctx, "Coalesced ledger refresh", log.FieldUserID, userID)
	}
	return v.(sheets.Snapshot), nil
}

func (r *Refresher) fetch(ctx context.Context, userID string) (sheets.Snapshot, error) {
	sources, err := r.reader.ListSources(ctx, userID)
	if err != nil {
		return sheets.Snapshot{}, fmt.Errorf("list sources for %s: %w", userID, err)
	}
	expenses, err := r.reader.ListExpenses(ctx, userID, core.AllSources())
	if err != nil {
		return sheets.Snapshot{}, fmt.Errorf("list expenses for %s: %w", userID, err)
	}
	return sheets.Snapshot{
		UserID:      userID,
		Sources:     sources,
		Expenses:    expenses,
		GeneratedAt: r.now(),
	}, nil
}
