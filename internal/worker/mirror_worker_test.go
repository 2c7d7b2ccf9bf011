package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendigo/internal/amqp"
	"spendigo/internal/cache"
	"spendigo/internal/core"
	"spendigo/internal/feed"
	"spendigo/internal/log"
	"spendigo/internal/sheets"
)

type fakeLedger struct {
	mu       sync.Mutex
	expenses map[string][]core.Expense
}

func (f *fakeLedger) ListSources(ctx context.Context, userID string) ([]core.PaymentSource, error) {
	return []core.PaymentSource{{ID: "cash_001", Type: core.SourceCash, IsActive: true}}, nil
}

func (f *fakeLedger) ListExpenses(ctx context.Context, userID string, filter core.ExpenseFilter) ([]core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Expense(nil), f.expenses[userID]...), nil
}

func (f *fakeLedger) Users(ctx context.Context) ([]string, error) {
	return []string{"alice", "bob"}, nil
}

func (f *fakeLedger) add(userID string, e core.Expense) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expenses == nil {
		f.expenses = map[string][]core.Expense{}
	}
	f.expenses[userID] = append(f.expenses[userID], e)
}

type recordingMirror struct {
	mu     sync.Mutex
	writes []sheets.Snapshot
	fail   map[string]bool
}

func (m *recordingMirror) WriteSnapshot(ctx context.Context, snap sheets.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[snap.UserID] {
		return errors.New("sheets unavailable")
	}
	m.writes = append(m.writes, snap)
	return nil
}

type scriptedChanges struct {
	msgs []*amqp.ChangeMessage
	errs []error
}

func (s *scriptedChanges) ConsumeChanges(ctx context.Context, handler func(context.Context, *amqp.ChangeMessage) error) error {
	for _, m := range s.msgs {
		s.errs = append(s.errs, handler(ctx, m))
	}
	<-ctx.Done()
	return ctx.Err()
}

func newWorker(l *fakeLedger, m *recordingMirror, changes ChangeSource) *MirrorWorker {
	clock := func() time.Time { return time.Date(2025, 6, 24, 10, 0, 0, 0, time.UTC) }
	return NewMirrorWorker(changes, l, feed.NewRefresher(l, log.Nop(), clock), m,
		cache.NewLRUCache[string](16, time.Hour), 0, log.Nop())
}

func TestSyncUser_SkipsUnchangedLedger(t *testing.T) {
	l := &fakeLedger{}
	m := &recordingMirror{}
	w := newWorker(l, m, nil)
	ctx := context.Background()

	result, err := w.SyncUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, ResultWritten, result)

	result, err = w.SyncUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, ResultUnchanged, result)

	l.add("alice", core.Expense{ID: 1, Amount: core.Rupees(20), SourceID: "cash_001"})
	result, err = w.SyncUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, ResultWritten, result)

	require.Len(t, m.writes, 2)
	assert.Len(t, m.writes[1].Expenses, 1)
}

func TestSyncUser_FailureIsRetriedNextTime(t *testing.T) {
	l := &fakeLedger{}
	m := &recordingMirror{fail: map[string]bool{"alice": true}}
	w := newWorker(l, m, nil)
	ctx := context.Background()

	result, err := w.SyncUser(ctx, "alice")
	require.Error(t, err)
	assert.Equal(t, ResultError, result)

	m.fail = nil
	result, err = w.SyncUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, ResultWritten, result)
}

func TestSyncAll_ContinuesPastFailures(t *testing.T) {
	l := &fakeLedger{}
	m := &recordingMirror{fail: map[string]bool{"alice": true}}
	w := newWorker(l, m, nil)

	require.NoError(t, w.SyncAll(context.Background()))
	require.Len(t, m.writes, 1)
	assert.Equal(t, "bob", m.writes[0].UserID)
}

func TestRun_MirrorsNotifiedUsers(t *testing.T) {
	l := &fakeLedger{}
	m := &recordingMirror{}
	changes := &scriptedChanges{msgs: []*amqp.ChangeMessage{
		{UserID: "alice", Kind: "expense.created", EntityID: "1"},
		{UserID: "alice", Kind: "expense.created", EntityID: "1"},
		{UserID: "bob", Kind: "source.deposit", EntityID: "cash_001"},
	}}
	w := newWorker(l, m, changes)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := w.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.Len(t, changes.errs, 3)
	for _, e := range changes.errs {
		assert.NoError(t, e)
	}
	// The duplicate alice notification found nothing new to write.
	assert.Len(t, m.writes, 2)
}

func TestSnapshotDigest_IgnoresGenerationTime(t *testing.T) {
	a := sheets.Snapshot{UserID: "alice", GeneratedAt: time.Unix(1, 0)}
	b := sheets.Snapshot{UserID: "alice", GeneratedAt: time.Unix(2, 0)}
	da, err := snapshotDigest(a)
	require.NoError(t, err)
	db, err := snapshotDigest(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
}
