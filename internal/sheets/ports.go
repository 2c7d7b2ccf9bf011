package sheets

import (
	"context"
	"time"

	"spendigo/internal/core"
)

// Snapshot is everything mirrored for one user: the full source registry
// and every expense, as read from the ledger at GeneratedAt.
type Snapshot struct {
	UserID      string
	Sources     []core.PaymentSource
	Expenses    []core.Expense
	GeneratedAt time.Time
}

// LedgerMirror replaces a user's mirrored ledger with a fresh snapshot.
// Mirrors are overwritten wholesale, never patched.
type LedgerMirror interface {
	WriteSnapshot(ctx context.Context, snap Snapshot) error
}
