package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"spendigo/internal/core"
	"spendigo/internal/ledger"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the relational tier behind the audited ledger.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ ledger.AuditStore = (*SQLiteRepository)(nil)

// DSN returns the connection string used for dbPath. Foreign keys are off
// by default in SQLite and must be enabled per connection.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(dbPath string, extraCategories ...string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; the ledger serialises through transactions.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
	}

	for _, name := range extraCategories {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if err := repo.queries.InsertCategory(context.Background(), name); err != nil {
			db.Close()
			return nil, fmt.Errorf("insert category %q: %w", name, err)
		}
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Users lists every user that owns at least one payment source.
func (r *SQLiteRepository) Users(ctx context.Context) ([]string, error) {
	users, err := r.queries.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *SQLiteRepository) Categories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, len(rows))
	for i, row := range rows {
		out[i] = core.Category{ID: row.ID, Name: row.Name}
	}
	return out, nil
}

// InTx runs fn in one transaction, committing only when fn returns nil.
func (r *SQLiteRepository) InTx(ctx context.Context, fn func(tx ledger.AuditTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&sqliteTx{q: r.queries.WithTx(tx)}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type sqliteTx struct {
	q *Queries
}

func (t *sqliteTx) ListSources(ctx context.Context, userID string) ([]core.PaymentSource, error) {
	rows, err := t.q.ListPaymentSources(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list payment sources: %w", err)
	}
	out := make([]core.PaymentSource, len(rows))
	for i, row := range rows {
		out[i] = sourceFromRow(row)
	}
	return out, nil
}

func (t *sqliteTx) GetSource(ctx context.Context, userID, sourceID string) (core.PaymentSource, error) {
	row, err := t.q.GetPaymentSource(ctx, userID, sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.PaymentSource{}, fmt.Errorf("%w: %q", core.ErrSourceNotFound, sourceID)
	}
	if err != nil {
		return core.PaymentSource{}, fmt.Errorf("get payment source: %w", err)
	}
	return sourceFromRow(row), nil
}

func (t *sqliteTx) InsertSource(ctx context.Context, userID string, src core.PaymentSource) error {
	err := t.q.InsertPaymentSource(ctx, InsertPaymentSourceParams{
		UserID:              userID,
		ID:                  src.ID,
		Type:                string(src.Type),
		Name:                src.Name,
		Description:         src.Description,
		Color:               src.Color,
		IsActive:            src.IsActive,
		InitialBalancePaise: src.InitialBalance.Paise,
		CurrentBalancePaise: src.CurrentBalance.Paise,
		AlertThresholdPaise: src.AlertThreshold.Paise,
		CreatedAtMs:         src.CreatedAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("insert payment source: %w", err)
	}
	return nil
}

func (t *sqliteTx) SetSourceActive(ctx context.Context, userID, sourceID string, active bool) error {
	n, err := t.q.SetPaymentSourceActive(ctx, active, userID, sourceID)
	if err != nil {
		return fmt.Errorf("set payment source active: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", core.ErrSourceNotFound, sourceID)
	}
	return nil
}

func (t *sqliteTx) SetBalances(ctx context.Context, userID, sourceID string, initial, current core.Money) error {
	n, err := t.q.SetPaymentSourceBalances(ctx, SetPaymentSourceBalancesParams{
		InitialBalancePaise: initial.Paise,
		CurrentBalancePaise: current.Paise,
		UserID:              userID,
		ID:                  sourceID,
	})
	if err != nil {
		return fmt.Errorf("set payment source balances: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", core.ErrSourceNotFound, sourceID)
	}
	return nil
}

func (t *sqliteTx) ResolveCategory(ctx context.Context, ref core.CategoryRef) (core.Category, error) {
	if ref.IsZero() {
		return core.Category{}, core.ErrMissingCategory
	}
	var (
		row Category
		err error
	)
	if ref.IsByID() {
		row, err = t.q.GetCategoryByID(ctx, ref.ID())
	} else {
		row, err = t.q.GetCategoryByName(ctx, ref.Name())
	}
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("%w: %s", core.ErrUnknownCategory, ref)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("resolve category: %w", err)
	}
	return core.Category{ID: row.ID, Name: row.Name}, nil
}

func (t *sqliteTx) InsertExpense(ctx context.Context, userID string, e core.Expense) (int64, error) {
	id, err := t.q.InsertExpense(ctx, InsertExpenseParams{
		UserID:          userID,
		SourceID:        e.SourceID,
		CategoryID:      e.CategoryID,
		AmountPaise:     e.Amount.Paise,
		Vendor:          e.Vendor,
		Date:            e.Date.String(),
		Description:     e.Description,
		IsVoiceInput:    e.IsVoiceInput,
		VoiceTranscript: e.VoiceTranscript,
		AiConfidence:    int64(e.AIConfidenceScore),
		AiReasoning:     e.AIReasoning,
		CreatedAtMs:     e.CreatedAt.UnixMilli(),
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (t *sqliteTx) GetExpense(ctx context.Context, userID string, id int64) (core.Expense, error) {
	row, err := t.q.GetExpense(ctx, userID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("%w: %d", core.ErrExpenseNotFound, id)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return expenseFromRow(row)
}

func (t *sqliteTx) UpdateExpense(ctx context.Context, userID string, e core.Expense) error {
	n, err := t.q.UpdateExpense(ctx, UpdateExpenseParams{
		SourceID:    e.SourceID,
		CategoryID:  e.CategoryID,
		AmountPaise: e.Amount.Paise,
		Vendor:      e.Vendor,
		Date:        e.Date.String(),
		Description: e.Description,
		UserID:      userID,
		ID:          e.ID,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", core.ErrExpenseNotFound, e.ID)
	}
	return nil
}

func (t *sqliteTx) DeleteExpense(ctx context.Context, userID string, id int64) error {
	n, err := t.q.DeleteExpense(ctx, userID, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", core.ErrExpenseNotFound, id)
	}
	return nil
}

func (t *sqliteTx) ListExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	rows, err := t.q.ListExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	out := make([]core.Expense, 0, len(rows))
	for _, row := range rows {
		e, err := expenseFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (t *sqliteTx) AppendHistory(ctx context.Context, h core.BalanceHistory) error {
	row := BalanceHistory{
		ID:                 h.ID,
		UserID:             h.UserID,
		SourceID:           h.SourceID,
		TransactionType:    string(h.TransactionType),
		AmountChangePaise:  h.AmountChange.Paise,
		BalanceBeforePaise: h.BalanceBefore.Paise,
		BalanceAfterPaise:  h.BalanceAfter.Paise,
		CreatedAtMs:        h.Timestamp.UnixMilli(),
	}
	if h.ExpenseID != 0 {
		id := h.ExpenseID
		row.ExpenseID = &id
	}
	if err := t.q.InsertBalanceHistory(ctx, row); err != nil {
		return fmt.Errorf("append balance history: %w", err)
	}
	return nil
}

func (t *sqliteTx) ListHistory(ctx context.Context, userID, sourceID string) ([]core.BalanceHistory, error) {
	rows, err := t.q.ListBalanceHistory(ctx, userID, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list balance history: %w", err)
	}
	out := make([]core.BalanceHistory, len(rows))
	for i, row := range rows {
		h := core.BalanceHistory{
			ID:              row.ID,
			UserID:          row.UserID,
			SourceID:        row.SourceID,
			TransactionType: core.TransactionType(row.TransactionType),
			AmountChange:    core.Money{Paise: row.AmountChangePaise},
			BalanceBefore:   core.Money{Paise: row.BalanceBeforePaise},
			BalanceAfter:    core.Money{Paise: row.BalanceAfterPaise},
			Timestamp:       time.UnixMilli(row.CreatedAtMs).UTC(),
		}
		if row.ExpenseID != nil {
			h.ExpenseID = *row.ExpenseID
		}
		out[i] = h
	}
	return out, nil
}

func sourceFromRow(row PaymentSource) core.PaymentSource {
	return core.PaymentSource{
		ID:             row.ID,
		Type:           core.SourceType(row.Type),
		Name:           row.Name,
		Description:    row.Description,
		Color:          row.Color,
		IsActive:       row.IsActive,
		InitialBalance: core.Money{Paise: row.InitialBalancePaise},
		CurrentBalance: core.Money{Paise: row.CurrentBalancePaise},
		AlertThreshold: core.Money{Paise: row.AlertThresholdPaise},
		CreatedAt:      time.UnixMilli(row.CreatedAtMs).UTC(),
	}
}

func expenseFromRow(row Expense) (core.Expense, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d: %w", row.ID, err)
	}
	return core.Expense{
		ID:                row.ID,
		Amount:            core.Money{Paise: row.AmountPaise},
		Vendor:            row.Vendor,
		Date:              date,
		Category:          row.CategoryName,
		CategoryID:        row.CategoryID,
		Description:       row.Description,
		SourceID:          row.SourceID,
		IsVoiceInput:      row.IsVoiceInput,
		VoiceTranscript:   row.VoiceTranscript,
		AIConfidenceScore: int(row.AiConfidence),
		AIReasoning:       row.AiReasoning,
		CreatedAt:         time.UnixMilli(row.CreatedAtMs).UTC(),
	}, nil
}
