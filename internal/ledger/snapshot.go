package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"spendigo/internal/core"
	"spendigo/internal/log"
	"spendigo/internal/metrics"
)

// KV is the local snapshot store: JSON blobs by string key. A missing key
// is reported with ok=false, never as an error.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Blob names under each user's key prefix.
const (
	KeyExpenses        = "expenses"
	KeySourceBalances  = "sourceBalances"
	KeyInitialBalances = "initialBalances"
	KeySources         = "sources"
	KeyBalanceHistory  = "balanceHistory"
)

// SnapshotKey is the storage key of one of a user's blobs.
func SnapshotKey(userID, blob string) string {
	return userID + "/" + blob
}

// SnapshotLedger derives balances by recomputation and persists the whole
// snapshot after each mutation. Mutations are serialized by a mutex so
// they apply in arrival order.
type SnapshotLedger struct {
	mu      sync.Mutex
	kv      KV
	catalog *core.Catalog
	opts    Options
	logger  *log.Logger
	lastID  int64
}

var _ Ledger = (*SnapshotLedger)(nil)

func NewSnapshotLedger(kv KV, catalog *core.Catalog, logger *log.Logger, opts Options) *SnapshotLedger {
	if catalog == nil {
		catalog = core.NewCatalog()
	}
	if logger == nil {
		logger = log.Wrap(nil, log.ComponentLedger)
	}
	return &SnapshotLedger{
		kv:      kv,
		catalog: catalog,
		opts:    opts.withDefaults(),
		logger:  logger.WithComponent(log.ComponentLedger).With(log.FieldStrategy, "snapshot"),
	}
}

type snapshot struct {
	expenses []core.Expense
	initial  map[string]core.Money
	sources  []core.PaymentSource
	history  []core.BalanceHistory
}

func (l *SnapshotLedger) load(ctx context.Context, userID string) (*snapshot, error) {
	s := &snapshot{initial: map[string]core.Money{}}
	if err := l.read(ctx, userID, KeyExpenses, &s.expenses); err != nil {
		return nil, err
	}
	if err := l.read(ctx, userID, KeyInitialBalances, &s.initial); err != nil {
		return nil, err
	}
	if err := l.read(ctx, userID, KeySources, &s.sources); err != nil {
		return nil, err
	}
	if err := l.read(ctx, userID, KeyBalanceHistory, &s.history); err != nil {
		return nil, err
	}
	if s.initial == nil {
		s.initial = map[string]core.Money{}
	}
	core.SortNewestFirst(s.expenses)
	return s, nil
}

func (l *SnapshotLedger) read(ctx context.Context, userID, blob string, dst any) error {
	raw, ok, err := l.kv.Get(ctx, SnapshotKey(userID, blob))
	if err != nil {
		return fmt.Errorf("load %s: %w", blob, err)
	}
	if !ok || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", blob, err)
	}
	return nil
}

func (l *SnapshotLedger) write(ctx context.Context, userID, blob string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", blob, err)
	}
	if err := l.kv.Set(ctx, SnapshotKey(userID, blob), raw); err != nil {
		return fmt.Errorf("store %s: %w", blob, err)
	}
	return nil
}

// saveOrder puts the audit trail ahead of the blobs balances derive from.
var saveOrder = []string{KeyBalanceHistory, KeySources, KeyExpenses, KeyInitialBalances}

// save writes the named blobs followed by the recomputed sourceBalances.
// If any write fails, the blobs already written get their previous
// contents back, so a failed mutation leaves the stored snapshot as it
// was loaded.
func (l *SnapshotLedger) save(ctx context.Context, userID string, s *snapshot, blobs ...string) error {
	want := make(map[string]bool, len(blobs))
	for _, b := range blobs {
		if !slices.Contains(saveOrder, b) {
			return fmt.Errorf("unknown blob %q", b)
		}
		want[b] = true
	}
	order := make([]string, 0, len(blobs)+1)
	for _, b := range saveOrder {
		if want[b] {
			order = append(order, b)
		}
	}
	order = append(order, KeySourceBalances)

	var written []priorBlob
	for _, b := range order {
		prev, _, err := l.kv.Get(ctx, SnapshotKey(userID, b))
		if err != nil {
			l.restore(ctx, userID, written)
			return fmt.Errorf("load %s: %w", b, err)
		}
		if err := l.write(ctx, userID, b, s.blob(b)); err != nil {
			l.restore(ctx, userID, written)
			return err
		}
		written = append(written, priorBlob{name: b, raw: prev})
	}
	return nil
}

type priorBlob struct {
	name string
	raw  []byte
}

// restore puts back blobs in reverse write order. A blob that did not
// exist before is reset to JSON null, which reads back as empty.
func (l *SnapshotLedger) restore(ctx context.Context, userID string, written []priorBlob) {
	ctx = context.WithoutCancel(ctx)
	for i := len(written) - 1; i >= 0; i-- {
		raw := written[i].raw
		if raw == nil {
			raw = []byte("null")
		}
		if err := l.kv.Set(ctx, SnapshotKey(userID, written[i].name), raw); err != nil {
			l.logger.ErrorContext(ctx, "Failed to restore snapshot blob",
				log.FieldUserID, userID, log.FieldBlob, written[i].name, log.FieldError, err)
		}
	}
}

func (s *snapshot) blob(name string) any {
	switch name {
	case KeyExpenses:
		return s.expenses
	case KeyInitialBalances:
		return s.initial
	case KeySources:
		return s.sources
	case KeyBalanceHistory:
		return s.history
	default:
		return s.balances()
	}
}

func (s *snapshot) balances() map[string]core.Money {
	return Recompute(s.initial, s.expenses)
}

// view returns the registry with balances filled in, in registry order.
func (s *snapshot) view() []core.PaymentSource {
	cur := s.balances()
	out := make([]core.PaymentSource, len(s.sources))
	for i, src := range s.sources {
		src.InitialBalance = s.initial[src.ID]
		src.CurrentBalance = cur[src.ID]
		out[i] = src
	}
	return out
}

func (s *snapshot) source(id string) (core.PaymentSource, bool) {
	for _, src := range s.view() {
		if src.ID == id {
			return src, true
		}
	}
	return core.PaymentSource{}, false
}

func (s *snapshot) expenseIndex(id int64) int {
	for i, e := range s.expenses {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// nextID returns a creation-time id strictly greater than any id issued
// before, even when the clock stalls or steps back.
func (l *SnapshotLedger) nextID(s *snapshot, now time.Time) int64 {
	id := now.UnixMilli()
	floor := l.lastID
	for _, e := range s.expenses {
		if e.ID > floor {
			floor = e.ID
		}
	}
	if id <= floor {
		id = floor + 1
	}
	l.lastID = id
	return id
}

func (l *SnapshotLedger) EnsureDefaultSources(ctx context.Context, userID string) ([]core.PaymentSource, error) {
	if userID == "" {
		return nil, core.ErrNoUser
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(s.sources) > 0 {
		return s.view(), nil
	}

	s.sources = DefaultSources(l.opts.Clock())
	for _, src := range s.sources {
		if _, ok := s.initial[src.ID]; !ok {
			s.initial[src.ID] = core.Money{}
		}
	}
	if err := l.save(ctx, userID, s, KeySources, KeyInitialBalances); err != nil {
		return nil, err
	}
	l.logger.InfoContext(ctx, "Seeded default payment sources", log.FieldUserID, userID, log.FieldOperation, log.OpSeed)
	return s.view(), nil
}

func (l *SnapshotLedger) ListSources(ctx context.Context, userID string) ([]core.PaymentSource, error) {
	if userID == "" {
		return nil, core.ErrNoUser
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.view(), nil
}

func (l *SnapshotLedger) ListActiveSources(ctx context.Context, userID string) ([]core.PaymentSource, error) {
	all, err := l.ListSources(ctx, userID)
	if err != nil {
		return nil, err
	}
	return activeOnly(all), nil
}

func (l *SnapshotLedger) GetSource(ctx context.Context, userID, sourceID string) (core.PaymentSource, error) {
	all, err := l.ListSources(ctx, userID)
	if err != nil {
		return core.PaymentSource{}, err
	}
	for _, src := range all {
		if src.ID == sourceID {
			return src, nil
		}
	}
	return core.PaymentSource{}, fmt.Errorf("%w: %q", core.ErrSourceNotFound, sourceID)
}

func (l *SnapshotLedger) CreateSource(ctx context.Context, userID string, spec SourceSpec) (core.PaymentSource, error) {
	if userID == "" {
		return core.PaymentSource{}, core.ErrNoUser
	}
	src, err := newSource(spec, l.opts.Clock())
	if err != nil {
		return core.PaymentSource{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.load(ctx, userID)
	if err != nil {
		return core.PaymentSource{}, err
	}
	s.sources = append(s.sources, src)
	s.initial[src.ID] = src.InitialBalance
	if opening, ok := openingDeposit(userID, src); ok {
		s.history = append(s.history, opening)
	}
	if err := l.save(ctx, userID, s, KeyBalanceHistory, KeySources, KeyInitialBalances); err != nil {
		return core.PaymentSource{}, err
	}
	l.logger.InfoContext(ctx, "Payment source created",
		log.FieldUserID, userID,
		log.FieldSourceID, src.ID,
		log.FieldBalance, src.CurrentBalance.Paise)
	l.notify(ctx, userID, ChangeSourceCreated, src.ID)
	created, _ := s.source(src.ID)
	return created, nil
}

func (l *SnapshotLedger) DeactivateSource(ctx context.Context, userID, sourceID string) (core.PaymentSource, error) {
	if userID == "" {
		return core.PaymentSource{}, core.ErrNoUser
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.load(ctx, userID)
	if err != nil {
		return core.PaymentSource{}, err
	}
	found := false
	for i := range s.sources {
		if s.sources[i].ID == sourceID {
			s.sources[i].IsActive = false
			found = true
		}
	}
	if !found {
		return core.PaymentSource{}, fmt.Errorf("%w: %q", core.ErrSourceNotFound, sourceID)
	}
	if err := l.save(ctx, userID, s, KeySources); err != nil {
		return core.PaymentSource{}, err
	}
	l.logMutation(ctx, log.OpDeactivate, userID, sourceID, 0, core.Money{})
	l.notify(ctx, userID, ChangeSourceDeactivated, sourceID)
	src, _ := s.source(sourceID)
	return src, nil
}

func (l *SnapshotLedger) Deposit(ctx context.Context, userID, sourceID string, amount core.Money) (core.PaymentSource, error) {
	if userID == "" {
		return core.PaymentSource{}, core.ErrNoUser
	}
	if err := amount.Validate(); err != nil {
		return core.PaymentSource{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.load(ctx, userID)
	if err != nil {
		return core.PaymentSource{}, err
	}
	before, ok := s.source(sourceID)
	if !ok {
		return core.PaymentSource{}, fmt.Errorf("%w: %q", core.ErrSourceNotFound, sourceID)
	}

	s.initial[sourceID] = s.initial[sourceID].Add(amount)
	s.history = append(s.history, core.BalanceHistory{
		ID:              uuid.NewString(),
		UserID:          userID,
		SourceID:        sourceID,
		TransactionType: core.TxDeposit,
		AmountChange:    amount,
		BalanceBefore:   before.CurrentBalance,
		BalanceAfter:    before.CurrentBalance.Add(amount),
		Timestamp:       l.opts.Clock(),
	})
	if err := l.save(ctx, userID, s, KeyInitialBalances, KeyBalanceHistory); err != nil {
		return core.PaymentSource{}, err
	}

	after, _ := s.source(sourceID)
	l.logMutation(ctx, log.OpDeposit, userID, sourceID, 0, amount)
	l.logger.DebugContext(ctx, "Source balance after deposit", log.FieldSourceID, sourceID, log.FieldBalance, after.CurrentBalance.Paise)
	l.notify(ctx, userID, ChangeDeposit, sourceID)
	return after, nil
}

func (l *SnapshotLedger) History(ctx context.Context, userID, sourceID string) ([]core.BalanceHistory, error) {
	if userID == "" {
		return nil, core.ErrNoUser
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sourceID != "" {
		if _, ok := s.source(sourceID); !ok {
			return nil, fmt.Errorf("%w: %q", core.ErrSourceNotFound, sourceID)
		}
	}
	var out []core.BalanceHistory
	for i := len(s.history) - 1; i >= 0; i-- {
		if h := s.history[i]; sourceID == "" || h.SourceID == sourceID {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (l *SnapshotLedger) CreateExpense(ctx context.Context, userID string, draft core.ExpenseDraft) (Commit, error) {
	if userID == "" {
		return Commit{}, core.ErrNoUser
	}
	if err := core.ValidateDraft(draft, l.opts.Required); err != nil {
		return Commit{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.load(ctx, userID)
	if err != nil {
		return Commit{}, err
	}
	src, ok := s.source(draft.SourceID)
	if !ok {
		return Commit{}, unknownSource(draft.SourceID)
	}
	if !src.IsActive {
		return Commit{}, fmt.Errorf("%w: %q", core.ErrSourceInactive, src.ID)
	}
	now := l.opts.Clock()
	draft = fillDefaults(draft, now)
	cat, err := l.catalog.Resolve(draft.Category)
	if err != nil {
		return Commit{}, err
	}

	advice := core.CheckSufficiency(src.CurrentBalance, draft.Amount)
	e := core.NewExpense(l.nextID(s, now), draft, cat, now)
	s.expenses = append([]core.Expense{e}, s.expenses...)
	if err := l.save(ctx, userID, s, KeyExpenses); err != nil {
		return Commit{}, err
	}

	l.logMutation(ctx, log.OpCreate, userID, e.SourceID, e.ID, e.Amount)
	l.notify(ctx, userID, ChangeExpenseCreated, fmt.Sprint(e.ID))
	return Commit{Expense: e, Advice: advice}, nil
}

func (l *SnapshotLedger) UpdateExpense(ctx context.Context, userID string, id int64, patch core.ExpensePatch) (Commit, error) {
	if userID == "" {
		return Commit{}, core.ErrNoUser
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.load(ctx, userID)
	if err != nil {
		return Commit{}, err
	}
	i := s.expenseIndex(id)
	if i < 0 {
		return Commit{}, fmt.Errorf("%w: %d", core.ErrExpenseNotFound, id)
	}
	old := s.expenses[i]
	draft := patch.Draft(old)
	if err := core.ValidateDraft(draft, l.opts.Required); err != nil {
		return Commit{}, err
	}
	src, ok := s.source(draft.SourceID)
	if !ok {
		return Commit{}, unknownSource(draft.SourceID)
	}
	if !src.IsActive && draft.SourceID != old.SourceID {
		return Commit{}, fmt.Errorf("%w: %q", core.ErrSourceInactive, src.ID)
	}
	draft = fillDefaults(draft, l.opts.Clock())
	cat, err := l.catalog.Resolve(draft.Category)
	if err != nil {
		return Commit{}, err
	}

	available := src.CurrentBalance
	if old.SourceID == src.ID {
		available = available.Add(old.Amount)
	}
	advice := core.CheckSufficiency(available, draft.Amount)

	updated := core.Apply(old, draft, cat)
	s.expenses[i] = updated
	if err := l.save(ctx, userID, s, KeyExpenses); err != nil {
		return Commit{}, err
	}

	l.logMutation(ctx, log.OpUpdate, userID, updated.SourceID, updated.ID, updated.Amount)
	l.notify(ctx, userID, ChangeExpenseUpdated, fmt.Sprint(id))
	return Commit{Expense: updated, Advice: advice}, nil
}

func (l *SnapshotLedger) DeleteExpense(ctx context.Context, userID string, id int64) error {
	if userID == "" {
		return core.ErrNoUser
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.load(ctx, userID)
	if err != nil {
		return err
	}
	i := s.expenseIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %d", core.ErrExpenseNotFound, id)
	}
	removed := s.expenses[i]
	s.expenses = append(s.expenses[:i:i], s.expenses[i+1:]...)
	if err := l.save(ctx, userID, s, KeyExpenses); err != nil {
		return err
	}

	l.logMutation(ctx, log.OpDelete, userID, removed.SourceID, removed.ID, removed.Amount)
	l.notify(ctx, userID, ChangeExpenseDeleted, fmt.Sprint(id))
	return nil
}

func (l *SnapshotLedger) ListExpenses(ctx context.Context, userID string, filter core.ExpenseFilter) ([]core.Expense, error) {
	if userID == "" {
		return nil, core.ErrNoUser
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return filter.Apply(s.expenses), nil
}

func (l *SnapshotLedger) Categories(context.Context) ([]core.Category, error) {
	return l.catalog.All(), nil
}

func (l *SnapshotLedger) logMutation(ctx context.Context, op, userID, sourceID string, expenseID int64, amount core.Money) {
	log.NewStructuredLogger(l.logger).LogLedgerMutation(ctx, op, userID, sourceID, expenseID, amount.Paise)
	metrics.LedgerMutations.WithLabelValues(op, "snapshot").Inc()
}

func (l *SnapshotLedger) notify(ctx context.Context, userID, kind, entityID string) {
	notify(ctx, l.opts.Notifier, l.logger, userID, kind, entityID)
}

// fillDefaults gives optional fields their defaults once validation has
// accepted their absence.
func fillDefaults(d core.ExpenseDraft, now time.Time) core.ExpenseDraft {
	if d.Date.IsZero() {
		d.Date = core.DateOf(now)
	}
	if d.Category.IsZero() {
		d.Category = core.ByName(core.OtherCategory)
	}
	return d
}

func notify(ctx context.Context, n Notifier, logger *log.Logger, userID, kind, entityID string) {
	if n == nil {
		return
	}
	if err := n.NotifyChange(ctx, userID, kind, entityID); err != nil {
		logger.WarnContext(ctx, "Failed to publish ledger change",
			log.FieldUserID, userID,
			"kind", kind,
			log.FieldError, err)
	}
}
