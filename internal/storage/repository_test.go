package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendigo/internal/core"
	"spendigo/internal/ledger"
	"spendigo/internal/log"
)

const testUser = "user-1"

func newTestRepo(t *testing.T, extra ...string) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "spendigo.db"), extra...)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestLedger(t *testing.T, repo *SQLiteRepository) *ledger.AuditedLedger {
	t.Helper()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	l := ledger.NewAuditedLedger(repo, log.Nop(), ledger.Options{Clock: clock})
	_, err := l.EnsureDefaultSources(context.Background(), testUser)
	require.NoError(t, err)
	return l
}

func expenseDraft(sourceID string, rupees int64) core.ExpenseDraft {
	return core.ExpenseDraft{
		Amount:   core.Rupees(rupees),
		Vendor:   "Chai Point",
		Date:     core.NewDate(2025, time.March, 10),
		Category: core.ByName("food & drink"),
		SourceID: sourceID,
	}
}

func TestMigrationsSeedCategories(t *testing.T) {
	repo := newTestRepo(t, "Pets", "travel")

	cats, err := repo.Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, len(core.DefaultCategoryNames)+1)
	for i, name := range core.DefaultCategoryNames {
		assert.Equal(t, name, cats[i].Name)
	}
	assert.Equal(t, "Pets", cats[len(cats)-1].Name)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spendigo.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	l := newTestLedger(t, repo)
	_, err = l.Deposit(context.Background(), testUser, ledger.DefaultBankID, core.Rupees(500))
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()
	l = ledger.NewAuditedLedger(repo, log.Nop(), ledger.Options{})
	src, err := l.GetSource(context.Background(), testUser, ledger.DefaultBankID)
	require.NoError(t, err)
	assert.Equal(t, core.Rupees(500), src.CurrentBalance)

	users, err := repo.Users(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{testUser}, users)
}

func TestLedgerRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	l := newTestLedger(t, repo)
	ctx := context.Background()

	_, err := l.Deposit(ctx, testUser, ledger.DefaultCashID, core.Rupees(1200))
	require.NoError(t, err)

	d := expenseDraft(ledger.DefaultCashID, 200)
	d.Voice = &core.VoiceProvenance{Transcript: "spent 200 on chai", Confidence: 40, Reasoning: "basic"}
	c, err := l.CreateExpense(ctx, testUser, d)
	require.NoError(t, err)
	assert.Equal(t, "Food & Drink", c.Expense.Category)
	assert.True(t, c.Expense.IsVoiceInput)

	got, err := l.ListExpenses(ctx, testUser, core.AllSources())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c.Expense.ID, got[0].ID)
	assert.Equal(t, "spent 200 on chai", got[0].VoiceTranscript)
	assert.Equal(t, 40, got[0].AIConfidenceScore)
	assert.Equal(t, core.NewDate(2025, time.March, 10), got[0].Date)

	target, amount := ledger.DefaultBankID, core.Rupees(300)
	_, err = l.UpdateExpense(ctx, testUser, c.Expense.ID, core.ExpensePatch{SourceID: &target, Amount: &amount})
	require.NoError(t, err)

	cash, err := l.GetSource(ctx, testUser, ledger.DefaultCashID)
	require.NoError(t, err)
	bank, err := l.GetSource(ctx, testUser, ledger.DefaultBankID)
	require.NoError(t, err)
	assert.Equal(t, core.Rupees(1200), cash.CurrentBalance)
	assert.Equal(t, core.Rupees(-300), bank.CurrentBalance)

	history, err := l.History(ctx, testUser, "")
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, ledger.DefaultBankID, history[0].SourceID)
	assert.Equal(t, core.TxDeposit, history[3].TransactionType)
	assert.Equal(t, c.Expense.ID, history[0].ExpenseID)
	assert.Zero(t, history[3].ExpenseID)

	require.NoError(t, l.DeleteExpense(ctx, testUser, c.Expense.ID))
	err = l.DeleteExpense(ctx, testUser, c.Expense.ID)
	assert.ErrorIs(t, err, core.ErrExpenseNotFound)
}

func TestUnknownReferencesMapToDomainErrors(t *testing.T) {
	repo := newTestRepo(t)
	l := newTestLedger(t, repo)
	ctx := context.Background()

	_, err := l.GetSource(ctx, testUser, "nope")
	assert.ErrorIs(t, err, core.ErrSourceNotFound)

	_, err = l.CreateExpense(ctx, testUser, expenseDraft("nope", 10))
	assert.ErrorIs(t, err, core.ErrInvalidSource)

	d := expenseDraft(ledger.DefaultCashID, 10)
	d.Category = core.ByID(999)
	_, err = l.CreateExpense(ctx, testUser, d)
	assert.ErrorIs(t, err, core.ErrUnknownCategory)

	expenses, err := l.ListExpenses(ctx, testUser, core.AllSources())
	require.NoError(t, err)
	assert.Empty(t, expenses)
}

func TestBalanceHistoryIsAppendOnly(t *testing.T) {
	repo := newTestRepo(t)
	l := newTestLedger(t, repo)
	ctx := context.Background()
	_, err := l.Deposit(ctx, testUser, ledger.DefaultUPIID, core.Rupees(50))
	require.NoError(t, err)

	_, err = repo.db.ExecContext(ctx, `UPDATE balance_history SET amount_change_paise = 0`)
	assert.Error(t, err)
	_, err = repo.db.ExecContext(ctx, `DELETE FROM balance_history`)
	assert.Error(t, err)

	var n int
	require.NoError(t, repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM balance_history`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSchemaRejectsNonPositiveAmounts(t *testing.T) {
	repo := newTestRepo(t)
	newTestLedger(t, repo)

	err := repo.InTx(context.Background(), func(tx ledger.AuditTx) error {
		_, err := tx.InsertExpense(context.Background(), testUser, core.Expense{
			Amount:     core.Money{},
			Vendor:     "x",
			Date:       core.NewDate(2025, time.March, 1),
			CategoryID: 1,
			SourceID:   ledger.DefaultCashID,
		})
		return err
	})
	assert.Error(t, err)
}

func TestInTxRollsBack(t *testing.T) {
	repo := newTestRepo(t)
	newTestLedger(t, repo)
	ctx := context.Background()

	err := repo.InTx(ctx, func(tx ledger.AuditTx) error {
		if err := tx.SetBalances(ctx, testUser, ledger.DefaultCashID, core.Rupees(1), core.Rupees(1)); err != nil {
			return err
		}
		return sql.ErrConnDone
	})
	require.ErrorIs(t, err, sql.ErrConnDone)

	require.NoError(t, repo.InTx(ctx, func(tx ledger.AuditTx) error {
		src, err := tx.GetSource(ctx, testUser, ledger.DefaultCashID)
		require.NoError(t, err)
		assert.True(t, src.CurrentBalance.IsZero())
		return nil
	}))
}
