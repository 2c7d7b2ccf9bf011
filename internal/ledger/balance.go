package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"spendigo/internal/core"
)

// Recompute derives every source balance from its initial balance and the
// expenses attributed to it. Expenses on unknown sources still produce an
// entry so nothing is silently dropped.
func Recompute(initial map[string]core.Money, expenses []core.Expense) map[string]core.Money {
	out := make(map[string]core.Money, len(initial))
	for id, m := range initial {
		out[id] = m
	}
	for _, e := range expenses {
		out[e.SourceID] = out[e.SourceID].Sub(e.Amount)
	}
	return out
}

// Delta is one signed balance change against one source.
type Delta struct {
	SourceID  string
	Change    core.Money
	ExpenseID int64
}

// PlanCreate debits the expense amount from its source.
func PlanCreate(e core.Expense) []Delta {
	return []Delta{{SourceID: e.SourceID, Change: e.Amount.Neg(), ExpenseID: e.ID}}
}

// PlanDelete credits the expense amount back to its source.
func PlanDelete(e core.Expense) []Delta {
	return []Delta{{SourceID: e.SourceID, Change: e.Amount, ExpenseID: e.ID}}
}

// PlanEdit reverses old and applies updated. When the source is unchanged
// the two steps collapse into one net delta, and a zero net yields no
// delta. When the source changes the old source is credited first and the
// new source debited second.
func PlanEdit(old, updated core.Expense) []Delta {
	if old.SourceID == updated.SourceID {
		net := old.Amount.Sub(updated.Amount)
		if net.IsZero() {
			return nil
		}
		return []Delta{{SourceID: old.SourceID, Change: net, ExpenseID: old.ID}}
	}
	return []Delta{
		{SourceID: old.SourceID, Change: old.Amount, ExpenseID: old.ID},
		{SourceID: updated.SourceID, Change: updated.Amount.Neg(), ExpenseID: updated.ID},
	}
}

// Drift reports a source whose stored balance disagrees with its defining sum.
type Drift struct {
	SourceID string     `json:"sourceId"`
	Expected core.Money `json:"expected"`
	Actual   core.Money `json:"actual"`
}

func (d Drift) String() string {
	return fmt.Sprintf("%s: expected %s, stored %s", d.SourceID, d.Expected, d.Actual)
}

// Verify checks the balance invariant for every source and returns the
// sources that violate it. An empty result means the ledger is consistent.
func Verify(sources []core.PaymentSource, expenses []core.Expense) []Drift {
	initial := make(map[string]core.Money, len(sources))
	for _, s := range sources {
		initial[s.ID] = s.InitialBalance
	}
	expected := Recompute(initial, expenses)
	var out []Drift
	for _, s := range sources {
		if want := expected[s.ID]; want != s.CurrentBalance {
			out = append(out, Drift{SourceID: s.ID, Expected: want, Actual: s.CurrentBalance})
		}
	}
	return out
}

// newSource validates spec and builds a fresh active source with a uuid id.
func newSource(spec SourceSpec, now time.Time) (core.PaymentSource, error) {
	if !spec.Type.IsValid() {
		return core.PaymentSource{}, fmt.Errorf("%w: unknown type %q", core.ErrInvalidSource, spec.Type)
	}
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return core.PaymentSource{}, fmt.Errorf("%w: name is required", core.ErrInvalidSource)
	}
	if spec.InitialBalance.Paise < 0 {
		return core.PaymentSource{}, fmt.Errorf("%w: initial balance cannot be negative", core.ErrInvalidAmount)
	}
	color := spec.Color
	if color == "" {
		color = defaultColors[spec.Type]
	}
	threshold := spec.AlertThreshold
	if threshold.IsZero() {
		threshold = defaultThresholds[spec.Type]
	}
	return core.PaymentSource{
		ID:             uuid.NewString(),
		Type:           spec.Type,
		Name:           name,
		Description:    strings.TrimSpace(spec.Description),
		Color:          color,
		IsActive:       true,
		InitialBalance: spec.InitialBalance,
		CurrentBalance: spec.InitialBalance,
		AlertThreshold: threshold,
		CreatedAt:      now,
	}, nil
}

// openingDeposit is the DEPOSIT record explaining a new source's starting
// balance. There is none for a source opened at zero.
func openingDeposit(userID string, src core.PaymentSource) (core.BalanceHistory, bool) {
	if !src.InitialBalance.IsPositive() {
		return core.BalanceHistory{}, false
	}
	return core.BalanceHistory{
		ID:              uuid.NewString(),
		UserID:          userID,
		SourceID:        src.ID,
		TransactionType: core.TxDeposit,
		AmountChange:    src.InitialBalance,
		BalanceAfter:    src.InitialBalance,
		Timestamp:       src.CreatedAt,
	}, true
}

// unknownSource wraps not-found so callers see both a validation failure
// and the not-found cause.
func unknownSource(id string) error {
	return fmt.Errorf("%w: %w %q", core.ErrInvalidSource, core.ErrSourceNotFound, id)
}

func activeOnly(sources []core.PaymentSource) []core.PaymentSource {
	out := make([]core.PaymentSource, 0, len(sources))
	for _, s := range sources {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out
}
