package ledger

import (
	"time"

	"spendigo/internal/core"
)

// Ids of the seeded sources.
const (
	DefaultCashID = "cash_001"
	DefaultBankID = "bank_001"
	DefaultUPIID  = "upi_001"
)

// DefaultSources returns the fixed triple seeded on first use, all at zero
// balance.
func DefaultSources(now time.Time) []core.PaymentSource {
	return []core.PaymentSource{
		{
			ID:             DefaultCashID,
			Type:           core.SourceCash,
			Name:           "Cash",
			Description:    "Physical cash payments",
			Color:          "#10b981",
			IsActive:       true,
			AlertThreshold: core.Rupees(500),
			CreatedAt:      now,
		},
		{
			ID:             DefaultBankID,
			Type:           core.SourceBank,
			Name:           "Bank Account",
			Description:    "Bank account transfers and payments",
			Color:          "#0ea5e9",
			IsActive:       true,
			AlertThreshold: core.Rupees(1000),
			CreatedAt:      now,
		},
		{
			ID:             DefaultUPIID,
			Type:           core.SourceUPI,
			Name:           "UPI",
			Description:    "UPI payments (PhonePe, Google Pay, etc.)",
			Color:          "#3b82f6",
			IsActive:       true,
			AlertThreshold: core.Rupees(500),
			CreatedAt:      now,
		},
	}
}

var defaultColors = map[core.SourceType]string{
	core.SourceCash: "#10b981",
	core.SourceBank: "#0ea5e9",
	core.SourceUPI:  "#3b82f6",
}

var defaultThresholds = map[core.SourceType]core.Money{
	core.SourceCash: core.Rupees(500),
	core.SourceBank: core.Rupees(1000),
	core.SourceUPI:  core.Rupees(500),
}
