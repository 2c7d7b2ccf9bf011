package core

// BalanceStatus is the display tier of a source balance.
type BalanceStatus string

const (
	StatusEmpty  BalanceStatus = "EMPTY"
	StatusLow    BalanceStatus = "low"
	StatusMedium BalanceStatus = "medium"
	StatusHigh   BalanceStatus = "high"
)

// StatusOf classifies a balance against its alert threshold.
func StatusOf(balance, threshold Money) BalanceStatus {
	switch {
	case balance.IsZero():
		return StatusEmpty
	case balance.Paise > 2*threshold.Paise:
		return StatusHigh
	case balance.Paise > threshold.Paise:
		return StatusMedium
	default:
		return StatusLow
	}
}

// Status classifies the source's current balance.
func (s PaymentSource) Status() BalanceStatus {
	return StatusOf(s.CurrentBalance, s.AlertThreshold)
}

// Sufficiency is an advisory classification of a draft amount against a
// balance. It never blocks a commit.
type Sufficiency string

const (
	SufficiencyZeroBalance  Sufficiency = "zero_balance"
	SufficiencyInsufficient Sufficiency = "insufficient"
	SufficiencyNormal       Sufficiency = "normal"
)

// Advice is the sufficiency verdict plus the shortfall when insufficient.
type Advice struct {
	Level        Sufficiency `json:"level"`
	Balance      Money       `json:"balance"`
	BalanceAfter Money       `json:"balanceAfter"`
	Shortfall    Money       `json:"shortfall"`
}

// CheckSufficiency classifies spending amount from balance.
func CheckSufficiency(balance, amount Money) Advice {
	a := Advice{Balance: balance, BalanceAfter: balance.Sub(amount), Level: SufficiencyNormal}
	switch {
	case balance.IsZero():
		a.Level = SufficiencyZeroBalance
	case amount.Paise > balance.Paise:
		a.Level = SufficiencyInsufficient
		a.Shortfall = amount.Sub(balance)
	}
	return a
}
