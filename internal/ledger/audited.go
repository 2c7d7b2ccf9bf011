package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"spendigo/internal/core"
	"spendigo/internal/log"
	"spendigo/internal/metrics"
)

// AuditStore is the relational tier. Every ledger operation runs inside a
// single InTx call so a failure part way leaves no trace.
type AuditStore interface {
	InTx(ctx context.Context, fn func(tx AuditTx) error) error
	Categories(ctx context.Context) ([]core.Category, error)
}

// AuditTx is the per-transaction view of the relational tier. Lookups of
// missing rows return core.ErrSourceNotFound or core.ErrExpenseNotFound.
type AuditTx interface {
	ListSources(ctx context.Context, userID string) ([]core.PaymentSource, error)
	GetSource(ctx context.Context, userID, sourceID string) (core.PaymentSource, error)
	InsertSource(ctx context.Context, userID string, src core.PaymentSource) error
	SetSourceActive(ctx context.Context, userID, sourceID string, active bool) error
	SetBalances(ctx context.Context, userID, sourceID string, initial, current core.Money) error

	ResolveCategory(ctx context.Context, ref core.CategoryRef) (core.Category, error)

	InsertExpense(ctx context.Context, userID string, e core.Expense) (int64, error)
	GetExpense(ctx context.Context, userID string, id int64) (core.Expense, error)
	UpdateExpense(ctx context.Context, userID string, e core.Expense) error
	DeleteExpense(ctx context.Context, userID string, id int64) error
	// ListExpenses returns all of the user's expenses, newest first.
	ListExpenses(ctx context.Context, userID string) ([]core.Expense, error)

	AppendHistory(ctx context.Context, h core.BalanceHistory) error
	// ListHistory returns history newest first; an empty sourceID means all.
	ListHistory(ctx context.Context, userID, sourceID string) ([]core.BalanceHistory, error)
}

// AuditedLedger applies incremental deltas and records each one in the
// append-only balance history.
type AuditedLedger struct {
	store  AuditStore
	opts   Options
	logger *log.Logger
}

var _ Ledger = (*AuditedLedger)(nil)

func NewAuditedLedger(store AuditStore, logger *log.Logger, opts Options) *AuditedLedger {
	if logger == nil {
		logger = log.Wrap(nil, log.ComponentLedger)
	}
	return &AuditedLedger{
		store:  store,
		opts:   opts.withDefaults(),
		logger: logger.WithComponent(log.ComponentLedger).With(log.FieldStrategy, "audited"),
	}
}

// apply moves one source balance by d.Change and appends the matching
// EXPENSE history record.
func (l *AuditedLedger) apply(ctx context.Context, tx AuditTx, userID string, d Delta) error {
	src, err := tx.GetSource(ctx, userID, d.SourceID)
	if err != nil {
		return fmt.Errorf("load source for delta: %w", err)
	}
	after := src.CurrentBalance.Add(d.Change)
	if err := tx.SetBalances(ctx, userID, src.ID, src.InitialBalance, after); err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return tx.AppendHistory(ctx, core.BalanceHistory{
		ID:              uuid.NewString(),
		UserID:          userID,
		SourceID:        src.ID,
		TransactionType: core.TxExpense,
		AmountChange:    d.Change,
		BalanceBefore:   src.CurrentBalance,
		BalanceAfter:    after,
		ExpenseID:       d.ExpenseID,
		Timestamp:       l.opts.Clock(),
	})
}

func (l *AuditedLedger) EnsureDefaultSources(ctx context.Context, userID string) ([]core.PaymentSource, error) {
	if userID == "" {
		return nil, core.ErrNoUser
	}
	var out []core.PaymentSource
	seeded := false
	err := l.store.InTx(ctx, func(tx AuditTx) error {
		existing, err := tx.ListSources(ctx, userID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			out = existing
			return nil
		}
		for _, src := range DefaultSources(l.opts.Clock()) {
			if err := tx.InsertSource(ctx, userID, src); err != nil {
				return fmt.Errorf("seed %s: %w", src.ID, err)
			}
		}
		seeded = true
		out, err = tx.ListSources(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if seeded {
		l.logger.InfoContext(ctx, "Seeded default payment sources", log.FieldUserID, userID, log.FieldOperation, log.OpSeed)
	}
	return out, nil
}

func (l *AuditedLedger) ListSources(ctx context.Context, userID string) ([]core.PaymentSource, error) {
	if userID == "" {
		return nil, core.ErrNoUser
	}
	var out []core.PaymentSource
	err := l.store.InTx(ctx, func(tx AuditTx) error {
		var err error
		out, err = tx.ListSources(ctx, userID)
		return err
	})
	return out, err
}

func (l *AuditedLedger) ListActiveSources(ctx context.Context, userID string) ([]core.PaymentSource, error) {
	all, err := l.ListSources(ctx, userID)
	if err != nil {
		return nil, err
	}
	return activeOnly(all), nil
}

func (l *AuditedLedger) GetSource(ctx context.Context, userID, sourceID string) (core.PaymentSource, error) {
	if userID == "" {
		return core.PaymentSource{}, core.ErrNoUser
	}
	var out core.PaymentSource
	err := l.store.InTx(ctx, func(tx AuditTx) error {
		var err error
		out, err = tx.GetSource(ctx, userID, sourceID)
		return err
	})
	return out, err
}

func (l *AuditedLedger) CreateSource(ctx context.Context, userID string, spec SourceSpec) (core.PaymentSource, error) {
	if userID == "" {
		return core.PaymentSource{}, core.ErrNoUser
	}
	src, err := newSource(spec, l.opts.Clock())
	if err != nil {
		return core.PaymentSource{}, err
	}
	err = l.store.InTx(ctx, func(tx AuditTx) error {
		if err := tx.InsertSource(ctx, userID, src); err != nil {
			return err
		}
		if opening, ok := openingDeposit(userID, src); ok {
			return tx.AppendHistory(ctx, opening)
		}
		return nil
	})
	if err != nil {
		return core.PaymentSource{}, err
	}
	l.logger.InfoContext(ctx, "Payment source created",
		log.FieldUserID, userID,
		log.FieldSourceID, src.ID,
		log.FieldBalance, src.CurrentBalance.Paise)
	l.notify(ctx, userID, ChangeSourceCreated, src.ID)
	return src, nil
}

func (l *AuditedLedger) DeactivateSource(ctx context.Context, userID, sourceID string) (core.PaymentSource, error) {
	if userID == "" {
		return core.PaymentSource{}, core.ErrNoUser
	}
	var out core.PaymentSource
	err := l.store.InTx(ctx, func(tx AuditTx) error {
		if _, err := tx.GetSource(ctx, userID, sourceID); err != nil {
			return err
		}
		if err := tx.SetSourceActive(ctx, userID, sourceID, false); err != nil {
			return err
		}
		var err error
		out, err = tx.GetSource(ctx, userID, sourceID)
		return err
	})
	if err != nil {
		return core.PaymentSource{}, err
	}
	l.logMutation(ctx, log.OpDeactivate, userID, sourceID, 0, core.Money{})
	l.notify(ctx, userID, ChangeSourceDeactivated, sourceID)
	return out, nil
}

func (l *AuditedLedger) Deposit(ctx context.Context, userID, sourceID string, amount core.Money) (core.PaymentSource, error) {
	if userID == "" {
		return core.PaymentSource{}, core.ErrNoUser
	}
	if err := amount.Validate(); err != nil {
		return core.PaymentSource{}, err
	}
	var out core.PaymentSource
	err := l.store.InTx(ctx, func(tx AuditTx) error {
		src, err := tx.GetSource(ctx, userID, sourceID)
		if err != nil {
			return err
		}
		initial := src.InitialBalance.Add(amount)
		current := src.CurrentBalance.Add(amount)
		if err := tx.SetBalances(ctx, userID, sourceID, initial, current); err != nil {
			return fmt.Errorf("set balance: %w", err)
		}
		if err := tx.AppendHistory(ctx, core.BalanceHistory{
			ID:              uuid.NewString(),
			UserID:          userID,
			SourceID:        sourceID,
			TransactionType: core.TxDeposit,
			AmountChange:    amount,
			BalanceBefore:   src.CurrentBalance,
			BalanceAfter:    current,
			Timestamp:       l.opts.Clock(),
		}); err != nil {
			return err
		}
		src.InitialBalance, src.CurrentBalance = initial, current
		out = src
		return nil
	})
	if err != nil {
		return core.PaymentSource{}, err
	}
	l.logMutation(ctx, log.OpDeposit, userID, sourceID, 0, amount)
	l.logger.DebugContext(ctx, "Source balance after deposit", log.FieldSourceID, sourceID, log.FieldBalance, out.CurrentBalance.Paise)
	l.notify(ctx, userID, ChangeDeposit, sourceID)
	return out, nil
}

func (l *AuditedLedger) History(ctx context.Context, userID, sourceID string) ([]core.BalanceHistory, error) {
	if userID == "" {
		return nil, core.ErrNoUser
	}
	var out []core.BalanceHistory
	err := l.store.InTx(ctx, func(tx AuditTx) error {
		if sourceID != "" {
			if _, err := tx.GetSource(ctx, userID, sourceID); err != nil {
				return err
			}
		}
		var err error
		out, err = tx.ListHistory(ctx, userID, sourceID)
		return err
	})
	return out, err
}

func (l *AuditedLedger) CreateExpense(ctx context.Context, userID string, draft core.ExpenseDraft) (Commit, error) {
	if userID == "" {
		return Commit{}, core.ErrNoUser
	}
	if err := core.ValidateDraft(draft, l.opts.Required); err != nil {
		return Commit{}, err
	}
	var c Commit
	err := l.store.InTx(ctx, func(tx AuditTx) error {
		src, err := l.targetSource(ctx, tx, userID, draft.SourceID)
		if err != nil {
			return err
		}
		if !src.IsActive {
			return fmt.Errorf("%w: %q", core.ErrSourceInactive, src.ID)
		}
		now := l.opts.Clock()
		draft = fillDefaults(draft, now)
		cat, err := tx.ResolveCategory(ctx, draft.Category)
		if err != nil {
			return err
		}

		e := core.NewExpense(0, draft, cat, now)
		id, err := tx.InsertExpense(ctx, userID, e)
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		e.ID = id
		for _, d := range PlanCreate(e) {
			if err := l.apply(ctx, tx, userID, d); err != nil {
				return err
			}
		}
		c = Commit{Expense: e, Advice: core.CheckSufficiency(src.CurrentBalance, e.Amount)}
		return nil
	})
	if err != nil {
		return Commit{}, err
	}
	l.logMutation(ctx, log.OpCreate, userID, c.Expense.SourceID, c.Expense.ID, c.Expense.Amount)
	l.notify(ctx, userID, ChangeExpenseCreated, fmt.Sprint(c.Expense.ID))
	return c, nil
}

func (l *AuditedLedger) UpdateExpense(ctx context.Context, userID string, id int64, patch core.ExpensePatch) (Commit, error) {
	if userID == "" {
		return Commit{}, core.ErrNoUser
	}
	var c Commit
	err := l.store.InTx(ctx, func(tx AuditTx) error {
		old, err := tx.GetExpense(ctx, userID, id)
		if err != nil {
			return err
		}
		draft := patch.Draft(old)
		if err := core.ValidateDraft(draft, l.opts.Required); err != nil {
			return err
		}
		src, err := l.targetSource(ctx, tx, userID, draft.SourceID)
		if err != nil {
			return err
		}
		if !src.IsActive && src.ID != old.SourceID {
			return fmt.Errorf("%w: %q", core.ErrSourceInactive, src.ID)
		}
		draft = fillDefaults(draft, l.opts.Clock())
		cat, err := tx.ResolveCategory(ctx, draft.Category)
		if err != nil {
			return err
		}

		available := src.CurrentBalance
		if src.ID == old.SourceID {
			available = available.Add(old.Amount)
		}
		updated := core.Apply(old, draft, cat)
		if err := tx.UpdateExpense(ctx, userID, updated); err != nil {
			return fmt.Errorf("update expense: %w", err)
		}
		for _, d := range PlanEdit(old, updated) {
			if err := l.apply(ctx, tx, userID, d); err != nil {
				return err
			}
		}
		c = Commit{Expense: updated, Advice: core.CheckSufficiency(available, updated.Amount)}
		return nil
	})
	if err != nil {
		return Commit{}, err
	}
	l.logMutation(ctx, log.OpUpdate, userID, c.Expense.SourceID, c.Expense.ID, c.Expense.Amount)
	l.notify(ctx, userID, ChangeExpenseUpdated, fmt.Sprint(id))
	return c, nil
}

func (l *AuditedLedger) DeleteExpense(ctx context.Context, userID string, id int64) error {
	if userID == "" {
		return core.ErrNoUser
	}
	var removed core.Expense
	err := l.store.InTx(ctx, func(tx AuditTx) error {
		var err error
		removed, err = tx.GetExpense(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteExpense(ctx, userID, id); err != nil {
			return fmt.Errorf("delete expense: %w", err)
		}
		for _, d := range PlanDelete(removed) {
			if err := l.apply(ctx, tx, userID, d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	l.logMutation(ctx, log.OpDelete, userID, removed.SourceID, removed.ID, removed.Amount)
	l.notify(ctx, userID, ChangeExpenseDeleted, fmt.Sprint(id))
	return nil
}

func (l *AuditedLedger) ListExpenses(ctx context.Context, userID string, filter core.ExpenseFilter) ([]core.Expense, error) {
	if userID == "" {
		return nil, core.ErrNoUser
	}
	var all []core.Expense
	err := l.store.InTx(ctx, func(tx AuditTx) error {
		var err error
		all, err = tx.ListExpenses(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return filter.Apply(all), nil
}

func (l *AuditedLedger) Categories(ctx context.Context) ([]core.Category, error) {
	return l.store.Categories(ctx)
}

// targetSource resolves the source an expense is being attributed to. An
// unknown id is a validation failure of the draft.
func (l *AuditedLedger) targetSource(ctx context.Context, tx AuditTx, userID, sourceID string) (core.PaymentSource, error) {
	src, err := tx.GetSource(ctx, userID, sourceID)
	if core.IsNotFound(err) {
		return core.PaymentSource{}, unknownSource(sourceID)
	}
	return src, err
}

func (l *AuditedLedger) logMutation(ctx context.Context, op, userID, sourceID string, expenseID int64, amount core.Money) {
	log.NewStructuredLogger(l.logger).LogLedgerMutation(ctx, op, userID, sourceID, expenseID, amount.Paise)
	metrics.LedgerMutations.WithLabelValues(op, "audited").Inc()
}

func (l *AuditedLedger) notify(ctx context.Context, userID, kind, entityID string) {
	notify(ctx, l.opts.Notifier, l.logger, userID, kind, entityID)
}
