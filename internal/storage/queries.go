package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const listCategories = `
SELECT id, name, position FROM categories ORDER BY position, id
`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var i Category
		if err := rows.Scan(&i.ID, &i.Name, &i.Position); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getCategoryByID = `
SELECT id, name, position FROM categories WHERE id = ?
`

func (q *Queries) GetCategoryByID(ctx context.Context, id int64) (Category, error) {
	row := q.db.QueryRowContext(ctx, getCategoryByID, id)
	var i Category
	err := row.Scan(&i.ID, &i.Name, &i.Position)
	return i, err
}

const getCategoryByName = `
SELECT id, name, position FROM categories WHERE name = ? COLLATE NOCASE
`

func (q *Queries) GetCategoryByName(ctx context.Context, name string) (Category, error) {
	row := q.db.QueryRowContext(ctx, getCategoryByName, name)
	var i Category
	err := row.Scan(&i.ID, &i.Name, &i.Position)
	return i, err
}

const insertCategory = `
INSERT OR IGNORE INTO categories (name, position)
VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM categories))
`

func (q *Queries) InsertCategory(ctx context.Context, name string) error {
	_, err := q.db.ExecContext(ctx, insertCategory, name)
	return err
}

const paymentSourceColumns = `user_id, id, type, name, description, color, is_active,
       initial_balance_paise, current_balance_paise, alert_threshold_paise,
       position, created_at_ms`

func scanPaymentSource(row interface{ Scan(...interface{}) error }) (PaymentSource, error) {
	var i PaymentSource
	err := row.Scan(
		&i.UserID,
		&i.ID,
		&i.Type,
		&i.Name,
		&i.Description,
		&i.Color,
		&i.IsActive,
		&i.InitialBalancePaise,
		&i.CurrentBalancePaise,
		&i.AlertThresholdPaise,
		&i.Position,
		&i.CreatedAtMs,
	)
	return i, err
}

const listPaymentSources = `
SELECT ` + paymentSourceColumns + `
FROM payment_sources WHERE user_id = ? ORDER BY position
`

func (q *Queries) ListPaymentSources(ctx context.Context, userID string) ([]PaymentSource, error) {
	rows, err := q.db.QueryContext(ctx, listPaymentSources, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PaymentSource
	for rows.Next() {
		i, err := scanPaymentSource(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getPaymentSource = `
SELECT ` + paymentSourceColumns + `
FROM payment_sources WHERE user_id = ? AND id = ?
`

func (q *Queries) GetPaymentSource(ctx context.Context, userID, id string) (PaymentSource, error) {
	return scanPaymentSource(q.db.QueryRowContext(ctx, getPaymentSource, userID, id))
}

const insertPaymentSource = `
INSERT INTO payment_sources (
    user_id, id, type, name, description, color, is_active,
    initial_balance_paise, current_balance_paise, alert_threshold_paise,
    position, created_at_ms
) VALUES (
    ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
    (SELECT COALESCE(MAX(position), 0) + 1 FROM payment_sources WHERE user_id = ?),
    ?
)
`

type InsertPaymentSourceParams struct {
	UserID              string
	ID                  string
	Type                string
	Name                string
	Description         string
	Color               string
	IsActive            bool
	InitialBalancePaise int64
	CurrentBalancePaise int64
	AlertThresholdPaise int64
	CreatedAtMs         int64
}

func (q *Queries) InsertPaymentSource(ctx context.Context, arg InsertPaymentSourceParams) error {
	_, err := q.db.ExecContext(ctx, insertPaymentSource,
		arg.UserID,
		arg.ID,
		arg.Type,
		arg.Name,
		arg.Description,
		arg.Color,
		arg.IsActive,
		arg.InitialBalancePaise,
		arg.CurrentBalancePaise,
		arg.AlertThresholdPaise,
		arg.UserID,
		arg.CreatedAtMs,
	)
	return err
}

const setPaymentSourceActive = `
UPDATE payment_sources SET is_active = ? WHERE user_id = ? AND id = ?
`

func (q *Queries) SetPaymentSourceActive(ctx context.Context, active bool, userID, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, setPaymentSourceActive, active, userID, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setPaymentSourceBalances = `
UPDATE payment_sources
SET initial_balance_paise = ?, current_balance_paise = ?
WHERE user_id = ? AND id = ?
`

type SetPaymentSourceBalancesParams struct {
	InitialBalancePaise int64
	CurrentBalancePaise int64
	UserID              string
	ID                  string
}

func (q *Queries) SetPaymentSourceBalances(ctx context.Context, arg SetPaymentSourceBalancesParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, setPaymentSourceBalances,
		arg.InitialBalancePaise,
		arg.CurrentBalancePaise,
		arg.UserID,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const expenseColumns = `e.id, e.user_id, e.source_id, e.category_id, c.name, e.amount_paise,
       e.vendor, e.date, e.description, e.is_voice_input, e.voice_transcript,
       e.ai_confidence, e.ai_reasoning, e.created_at_ms`

func scanExpense(row interface{ Scan(...interface{}) error }) (Expense, error) {
	var i Expense
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.SourceID,
		&i.CategoryID,
		&i.CategoryName,
		&i.AmountPaise,
		&i.Vendor,
		&i.Date,
		&i.Description,
		&i.IsVoiceInput,
		&i.VoiceTranscript,
		&i.AiConfidence,
		&i.AiReasoning,
		&i.CreatedAtMs,
	)
	return i, err
}

const insertExpense = `
INSERT INTO expenses (
    user_id, source_id, category_id, amount_paise, vendor, date, description,
    is_voice_input, voice_transcript, ai_confidence, ai_reasoning, created_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`

type InsertExpenseParams struct {
	UserID          string
	SourceID        string
	CategoryID      int64
	AmountPaise     int64
	Vendor          string
	Date            string
	Description     string
	IsVoiceInput    bool
	VoiceTranscript string
	AiConfidence    int64
	AiReasoning     string
	CreatedAtMs     int64
}

func (q *Queries) InsertExpense(ctx context.Context, arg InsertExpenseParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertExpense,
		arg.UserID,
		arg.SourceID,
		arg.CategoryID,
		arg.AmountPaise,
		arg.Vendor,
		arg.Date,
		arg.Description,
		arg.IsVoiceInput,
		arg.VoiceTranscript,
		arg.AiConfidence,
		arg.AiReasoning,
		arg.CreatedAtMs,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const getExpense = `
SELECT ` + expenseColumns + `
FROM expenses e JOIN categories c ON c.id = e.category_id
WHERE e.user_id = ? AND e.id = ?
`

func (q *Queries) GetExpense(ctx context.Context, userID string, id int64) (Expense, error) {
	return scanExpense(q.db.QueryRowContext(ctx, getExpense, userID, id))
}

const listExpenses = `
SELECT ` + expenseColumns + `
FROM expenses e JOIN categories c ON c.id = e.category_id
WHERE e.user_id = ?
ORDER BY e.id DESC
`

func (q *Queries) ListExpenses(ctx context.Context, userID string) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		i, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateExpense = `
UPDATE expenses
SET source_id = ?, category_id = ?, amount_paise = ?, vendor = ?, date = ?, description = ?
WHERE user_id = ? AND id = ?
`

type UpdateExpenseParams struct {
	SourceID    string
	CategoryID  int64
	AmountPaise int64
	Vendor      string
	Date        string
	Description string
	UserID      string
	ID          int64
}

func (q *Queries) UpdateExpense(ctx context.Context, arg UpdateExpenseParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateExpense,
		arg.SourceID,
		arg.CategoryID,
		arg.AmountPaise,
		arg.Vendor,
		arg.Date,
		arg.Description,
		arg.UserID,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteExpense = `
DELETE FROM expenses WHERE user_id = ? AND id = ?
`

func (q *Queries) DeleteExpense(ctx context.Context, userID string, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpense, userID, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const insertBalanceHistory = `
INSERT INTO balance_history (
    id, user_id, source_id, transaction_type, amount_change_paise,
    balance_before_paise, balance_after_paise, expense_id, created_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) InsertBalanceHistory(ctx context.Context, arg BalanceHistory) error {
	_, err := q.db.ExecContext(ctx, insertBalanceHistory,
		arg.ID,
		arg.UserID,
		arg.SourceID,
		arg.TransactionType,
		arg.AmountChangePaise,
		arg.BalanceBeforePaise,
		arg.BalanceAfterPaise,
		arg.ExpenseID,
		arg.CreatedAtMs,
	)
	return err
}

const listBalanceHistory = `
SELECT id, user_id, source_id, transaction_type, amount_change_paise,
       balance_before_paise, balance_after_paise, expense_id, created_at_ms
FROM balance_history
WHERE user_id = ?1 AND (?2 = '' OR source_id = ?2)
ORDER BY rowid DESC
`

func (q *Queries) ListBalanceHistory(ctx context.Context, userID, sourceID string) ([]BalanceHistory, error) {
	rows, err := q.db.QueryContext(ctx, listBalanceHistory, userID, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BalanceHistory
	for rows.Next() {
		var i BalanceHistory
		var expenseID sql.NullInt64
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.SourceID,
			&i.TransactionType,
			&i.AmountChangePaise,
			&i.BalanceBeforePaise,
			&i.BalanceAfterPaise,
			&expenseID,
			&i.CreatedAtMs,
		); err != nil {
			return nil, err
		}
		if expenseID.Valid {
			i.ExpenseID = &expenseID.Int64
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listUsers = `
SELECT DISTINCT user_id FROM payment_sources ORDER BY user_id
`

func (q *Queries) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
