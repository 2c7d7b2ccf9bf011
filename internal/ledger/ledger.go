// Package ledger keeps payment source balances consistent with the
// expenses and deposits applied to them.
//
// Two implementations exist, one per persistence tier. SnapshotLedger
// derives every balance from the initial balances and the expense list on
// each mutation and persists the full snapshot to a key-value store.
// AuditedLedger applies signed deltas inside a store transaction and
// appends one immutable BalanceHistory record per balance change.
//
// Both satisfy, after every completed operation and for every source:
//
//	currentBalance == initialBalance - sum(amount of expenses on the source)
//
// where initialBalance already includes all deposits.
package ledger

import (
	"context"
	"time"

	"spendigo/internal/core"
)

// Ledger is the registry, expense store and balance engine for one tier.
// Every method rejects an empty userID with core.ErrNoUser and leaves
// state untouched.
type Ledger interface {
	// EnsureDefaultSources seeds the CASH/BANK/UPI triple if, and only if,
	// the user has no sources at all. It returns the user's sources.
	EnsureDefaultSources(ctx context.Context, userID string) ([]core.PaymentSource, error)
	ListSources(ctx context.Context, userID string) ([]core.PaymentSource, error)
	ListActiveSources(ctx context.Context, userID string) ([]core.PaymentSource, error)
	GetSource(ctx context.Context, userID, sourceID string) (core.PaymentSource, error)
	CreateSource(ctx context.Context, userID string, spec SourceSpec) (core.PaymentSource, error)
	DeactivateSource(ctx context.Context, userID, sourceID string) (core.PaymentSource, error)
	Deposit(ctx context.Context, userID, sourceID string, amount core.Money) (core.PaymentSource, error)
	History(ctx context.Context, userID, sourceID string) ([]core.BalanceHistory, error)

	CreateExpense(ctx context.Context, userID string, draft core.ExpenseDraft) (Commit, error)
	UpdateExpense(ctx context.Context, userID string, id int64, patch core.ExpensePatch) (Commit, error)
	DeleteExpense(ctx context.Context, userID string, id int64) error
	// ListExpenses returns the filtered expenses, newest first.
	ListExpenses(ctx context.Context, userID string, filter core.ExpenseFilter) ([]core.Expense, error)

	Categories(ctx context.Context) ([]core.Category, error)
}

// Commit is the result of a successful expense create or edit.
type Commit struct {
	Expense core.Expense `json:"expense"`
	// Advice classifies the amount against the target source balance as it
	// stood before the commit. It is informational only.
	Advice core.Advice `json:"advice"`
}

// SourceSpec describes an explicitly created payment source.
type SourceSpec struct {
	Type           core.SourceType
	Name           string
	Description    string
	Color          string
	InitialBalance core.Money
	AlertThreshold core.Money
}

// Change kinds published to a Notifier.
const (
	ChangeSourceCreated     = "source.created"
	ChangeSourceDeactivated = "source.deactivated"
	ChangeDeposit           = "source.deposit"
	ChangeExpenseCreated    = "expense.created"
	ChangeExpenseUpdated    = "expense.updated"
	ChangeExpenseDeleted    = "expense.deleted"
)

// Notifier receives a notification after every committed mutation.
// Failures are logged and never undo the mutation.
type Notifier interface {
	NotifyChange(ctx context.Context, userID, kind, entityID string) error
}

// Options configures either ledger implementation.
type Options struct {
	Clock    func() time.Time
	Required core.RequiredFields
	Notifier Notifier
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Required == (core.RequiredFields{}) {
		o.Required = core.AllRequired
	}
	return o
}
