package storage

// Row types mirror the tables in migrations/. Money columns are integer
// paise and timestamps are unix milliseconds.

type Category struct {
	ID       int64
	Name     string
	Position int64
}

type PaymentSource struct {
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
	Position            int64
	CreatedAtMs         int64
}

type Expense struct {
	ID              int64
	UserID          string
	SourceID        string
	CategoryID      int64
	CategoryName    string
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

type BalanceHistory struct {
	ID                 string
	UserID             string
	SourceID           string
	TransactionType    string
	AmountChangePaise  int64
	BalanceBeforePaise int64
	BalanceAfterPaise  int64
	ExpenseID          *int64
	CreatedAtMs        int64
}
