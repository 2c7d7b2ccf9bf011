package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendigo/internal/core"
	"spendigo/internal/log"
	"spendigo/internal/storage/memory"
)

func TestSnapshotPersistsThreeBlobs(t *testing.T) {
	kv := memory.New()
	l := NewSnapshotLedger(kv, nil, log.Nop(), Options{Clock: stepClock()})
	ctx := context.Background()
	seeded(t, l)

	_, err := l.Deposit(ctx, user, DefaultCashID, core.Rupees(900))
	require.NoError(t, err)
	_, err = l.CreateExpense(ctx, user, draft(DefaultCashID, 150))
	require.NoError(t, err)

	raw, ok, err := kv.Get(ctx, SnapshotKey(user, KeySourceBalances))
	require.NoError(t, err)
	require.True(t, ok)
	var balances map[string]float64
	require.NoError(t, json.Unmarshal(raw, &balances))
	assert.Equal(t, 750.0, balances[DefaultCashID])
	assert.Equal(t, 0.0, balances[DefaultBankID])

	raw, _, _ = kv.Get(ctx, SnapshotKey(user, KeyInitialBalances))
	var initial map[string]float64
	require.NoError(t, json.Unmarshal(raw, &initial))
	assert.Equal(t, 900.0, initial[DefaultCashID])

	raw, _, _ = kv.Get(ctx, SnapshotKey(user, KeyExpenses))
	var expenses []map[string]any
	require.NoError(t, json.Unmarshal(raw, &expenses))
	require.Len(t, expenses, 1)
	assert.Equal(t, 150.0, expenses[0]["amount"])
	assert.Equal(t, DefaultCashID, expenses[0]["sourceId"])
	assert.Equal(t, "2024-03-01", expenses[0]["date"])
}

func TestSnapshotReadsLegacyBlobsWithoutRegistry(t *testing.T) {
	kv := memory.New()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, SnapshotKey(user, KeyInitialBalances), []byte(`{"cash_001": 1000, "upi_001": 250.5}`)))
	require.NoError(t, kv.Set(ctx, SnapshotKey(user, KeyExpenses), []byte(`[
		{"id": 1800000000000, "amount": 100, "vendor": "Chai", "date": "2024-01-01", "category": "Food & Drink", "sourceId": "cash_001"},
		{"id": 1800000000500, "amount": "20.25", "vendor": "Auto", "date": "2024-01-02", "category": "Transportation", "sourceId": "upi_001"}
	]`)))
	// a stale derived blob is ignored in favour of recomputation
	require.NoError(t, kv.Set(ctx, SnapshotKey(user, KeySourceBalances), []byte(`{"cash_001": 1}`)))

	l := NewSnapshotLedger(kv, nil, log.Nop(), Options{Clock: stepClock()})
	sources, err := l.EnsureDefaultSources(ctx, user)
	require.NoError(t, err)
	require.Len(t, sources, 3)

	assert.Equal(t, core.Rupees(900), balanceOf(t, l, DefaultCashID))
	assert.Equal(t, core.Money{Paise: 23025}, balanceOf(t, l, DefaultUPIID))
	assert.True(t, balanceOf(t, l, DefaultBankID).IsZero())

	list, err := l.ListExpenses(ctx, user, core.AllSources())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(1800000000500), list[0].ID)

	// new ids stay above legacy ids even with an older clock
	c, err := l.CreateExpense(ctx, user, draft(DefaultCashID, 1))
	require.NoError(t, err)
	assert.Greater(t, c.Expense.ID, int64(1800000000500))
	requireConsistent(t, l)
}

func TestSnapshotMissingKeysAreEmpty(t *testing.T) {
	l := NewSnapshotLedger(memory.New(), nil, log.Nop(), Options{})
	ctx := context.Background()

	sources, err := l.ListSources(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, sources)
	list, err := l.ListExpenses(ctx, user, core.AllSources())
	require.NoError(t, err)
	assert.Empty(t, list)
	hist, err := l.History(ctx, user, "")
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestSnapshotOptionalFieldsDefault(t *testing.T) {
	now := time.Date(2024, time.June, 15, 23, 30, 0, 0, time.UTC)
	l := NewSnapshotLedger(memory.New(), nil, log.Nop(), Options{
		Clock:    func() time.Time { return now },
		Required: core.RequiredFields{Vendor: true},
	})
	ctx := context.Background()
	seeded(t, l)

	d := draft(DefaultCashID, 10)
	d.Date = core.Date{}
	d.Category = core.CategoryRef{}
	c, err := l.CreateExpense(ctx, user, d)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-15", c.Expense.Date.String())
	assert.Equal(t, core.OtherCategory, c.Expense.Category)
}

func TestSnapshotVoiceProvenanceIsInformational(t *testing.T) {
	l := NewSnapshotLedger(memory.New(), nil, log.Nop(), Options{Clock: stepClock()})
	ctx := context.Background()
	seeded(t, l)

	d := draft(DefaultCashID, 60)
	d.Voice = &core.VoiceProvenance{Transcript: "paid 60 cash for chai", Confidence: 40, Reasoning: "basic"}
	c, err := l.CreateExpense(ctx, user, d)
	require.NoError(t, err)
	assert.True(t, c.Expense.IsVoiceInput)
	assert.Equal(t, 40, c.Expense.AIConfidenceScore)
	assert.Equal(t, core.Rupees(-60), balanceOf(t, l, DefaultCashID))
}

// failingKV refuses writes to one blob name.
type failingKV struct {
	*memory.Store
	failBlob string
}

func (f *failingKV) Set(ctx context.Context, key string, value []byte) error {
	if f.failBlob != "" && strings.HasSuffix(key, "/"+f.failBlob) {
		return errors.New("disk full")
	}
	return f.Store.Set(ctx, key, value)
}

func TestSnapshotFailedDepositLeavesNoTrace(t *testing.T) {
	for _, blob := range []string{KeyBalanceHistory, KeyInitialBalances, KeySourceBalances} {
		t.Run(blob, func(t *testing.T) {
			kv := &failingKV{Store: memory.New()}
			l := NewSnapshotLedger(kv, nil, log.Nop(), Options{Clock: stepClock()})
			ctx := context.Background()
			seeded(t, l)
			_, err := l.Deposit(ctx, user, DefaultCashID, core.Rupees(100))
			require.NoError(t, err)

			kv.failBlob = blob
			_, err = l.Deposit(ctx, user, DefaultCashID, core.Rupees(50))
			require.Error(t, err)
			kv.failBlob = ""

			assert.Equal(t, core.Rupees(100), balanceOf(t, l, DefaultCashID))
			history, err := l.History(ctx, user, DefaultCashID)
			require.NoError(t, err)
			assert.Len(t, history, 1)

			raw, ok, err := kv.Get(ctx, SnapshotKey(user, KeySourceBalances))
			require.NoError(t, err)
			require.True(t, ok)
			var balances map[string]float64
			require.NoError(t, json.Unmarshal(raw, &balances))
			assert.Equal(t, 100.0, balances[DefaultCashID])

			// a retry applies exactly once
			_, err = l.Deposit(ctx, user, DefaultCashID, core.Rupees(50))
			require.NoError(t, err)
			assert.Equal(t, core.Rupees(150), balanceOf(t, l, DefaultCashID))
			history, err = l.History(ctx, user, DefaultCashID)
			require.NoError(t, err)
			assert.Len(t, history, 2)
		})
	}
}

func TestSnapshotFailedCreateRestoresMissingBlob(t *testing.T) {
	kv := &failingKV{Store: memory.New()}
	l := NewSnapshotLedger(kv, nil, log.Nop(), Options{Clock: stepClock()})
	ctx := context.Background()
	seeded(t, l)

	kv.failBlob = KeySourceBalances
	_, err := l.CreateExpense(ctx, user, draft(DefaultCashID, 40))
	require.Error(t, err)
	kv.failBlob = ""

	expenses, err := l.ListExpenses(ctx, user, core.AllSources())
	require.NoError(t, err)
	assert.Empty(t, expenses)
	assert.True(t, balanceOf(t, l, DefaultCashID).IsZero())
	requireConsistent(t, l)
}
