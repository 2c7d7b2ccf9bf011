package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"spendigo/internal/core"
)

// fakeAuditStore is an in-memory AuditStore. Each InTx works on a copy of
// the state that is only swapped in when fn succeeds.
type fakeAuditStore struct {
	mu      sync.Mutex
	state   fakeState
	catalog *core.Catalog
	// failHistoryAfter makes the n-th AppendHistory call of a tx fail
	// (1-based); zero disables the fault.
	failHistoryAfter int
}

type fakeState struct {
	sources  map[string][]core.PaymentSource
	expenses map[string][]core.Expense
	history  []core.BalanceHistory
	nextID   int64
}

func newFakeAuditStore() *fakeAuditStore {
	return &fakeAuditStore{
		state: fakeState{
			sources:  map[string][]core.PaymentSource{},
			expenses: map[string][]core.Expense{},
		},
		catalog: core.NewCatalog(),
	}
}

func (s fakeState) clone() fakeState {
	c := fakeState{
		sources:  map[string][]core.PaymentSource{},
		expenses: map[string][]core.Expense{},
		history:  append([]core.BalanceHistory(nil), s.history...),
		nextID:   s.nextID,
	}
	for k, v := range s.sources {
		c.sources[k] = append([]core.PaymentSource(nil), v...)
	}
	for k, v := range s.expenses {
		c.expenses[k] = append([]core.Expense(nil), v...)
	}
	return c
}

func (f *fakeAuditStore) InTx(ctx context.Context, fn func(tx AuditTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx := &fakeTx{state: f.state.clone(), catalog: f.catalog, failHistoryAt: f.failHistoryAfter}
	if err := fn(tx); err != nil {
		return err
	}
	f.state = tx.state
	return nil
}

func (f *fakeAuditStore) Categories(context.Context) ([]core.Category, error) {
	return f.catalog.All(), nil
}

func (f *fakeAuditStore) historyLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.state.history)
}

var errInjected = errors.New("injected failure")

type fakeTx struct {
	state         fakeState
	catalog       *core.Catalog
	failHistoryAt int
	historyCalls  int
}

func (t *fakeTx) ListSources(_ context.Context, userID string) ([]core.PaymentSource, error) {
	return append([]core.PaymentSource(nil), t.state.sources[userID]...), nil
}

func (t *fakeTx) GetSource(_ context.Context, userID, sourceID string) (core.PaymentSource, error) {
	for _, s := range t.state.sources[userID] {
		if s.ID == sourceID {
			return s, nil
		}
	}
	return core.PaymentSource{}, fmt.Errorf("%w: %q", core.ErrSourceNotFound, sourceID)
}

func (t *fakeTx) InsertSource(_ context.Context, userID string, src core.PaymentSource) error {
	src.CurrentBalance = src.InitialBalance
	t.state.sources[userID] = append(t.state.sources[userID], src)
	return nil
}

func (t *fakeTx) mutateSource(userID, sourceID string, fn func(*core.PaymentSource)) error {
	list := t.state.sources[userID]
	for i := range list {
		if list[i].ID == sourceID {
			fn(&list[i])
			return nil
		}
	}
	return core.ErrSourceNotFound
}

func (t *fakeTx) SetSourceActive(_ context.Context, userID, sourceID string, active bool) error {
	return t.mutateSource(userID, sourceID, func(s *core.PaymentSource) { s.IsActive = active })
}

func (t *fakeTx) SetBalances(_ context.Context, userID, sourceID string, initial, current core.Money) error {
	return t.mutateSource(userID, sourceID, func(s *core.PaymentSource) {
		s.InitialBalance, s.CurrentBalance = initial, current
	})
}

func (t *fakeTx) ResolveCategory(_ context.Context, ref core.CategoryRef) (core.Category, error) {
	return t.catalog.Resolve(ref)
}

func (t *fakeTx) InsertExpense(_ context.Context, userID string, e core.Expense) (int64, error) {
	t.state.nextID++
	e.ID = t.state.nextID
	t.state.expenses[userID] = append(t.state.expenses[userID], e)
	return e.ID, nil
}

func (t *fakeTx) GetExpense(_ context.Context, userID string, id int64) (core.Expense, error) {
	for _, e := range t.state.expenses[userID] {
		if e.ID == id {
			return e, nil
		}
	}
	return core.Expense{}, fmt.Errorf("%w: %d", core.ErrExpenseNotFound, id)
}

func (t *fakeTx) UpdateExpense(_ context.Context, userID string, e core.Expense) error {
	list := t.state.expenses[userID]
	for i := range list {
		if list[i].ID == e.ID {
			list[i] = e
			return nil
		}
	}
	return core.ErrExpenseNotFound
}

func (t *fakeTx) DeleteExpense(_ context.Context, userID string, id int64) error {
	list := t.state.expenses[userID]
	for i := range list {
		if list[i].ID == id {
			t.state.expenses[userID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return core.ErrExpenseNotFound
}

func (t *fakeTx) ListExpenses(_ context.Context, userID string) ([]core.Expense, error) {
	out := append([]core.Expense(nil), t.state.expenses[userID]...)
	core.SortNewestFirst(out)
	return out, nil
}

func (t *fakeTx) AppendHistory(_ context.Context, h core.BalanceHistory) error {
	t.historyCalls++
	if t.failHistoryAt > 0 && t.historyCalls >= t.failHistoryAt {
		return errInjected
	}
	t.state.history = append(t.state.history, h)
	return nil
}

func (t *fakeTx) ListHistory(_ context.Context, userID, sourceID string) ([]core.BalanceHistory, error) {
	var out []core.BalanceHistory
	for _, h := range t.state.history {
		if h.UserID == userID && (sourceID == "" || h.SourceID == sourceID) {
			out = append(out, h)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
