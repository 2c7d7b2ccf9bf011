package core

import (
	"fmt"
	"strings"
)

// RequiredFields is the caller's policy for which draft fields must be
// present. Amount and source are always required.
type RequiredFields struct {
	Vendor   bool
	Date     bool
	Category bool
}

// AllRequired requires every optional field.
var AllRequired = RequiredFields{Vendor: true, Date: true, Category: true}

// ValidateDraft checks the draft shape. Source existence is the ledger's
// concern. An empty string counts as absent.
func ValidateDraft(d ExpenseDraft, req RequiredFields) error {
	if err := d.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(d.SourceID) == "" {
		return ErrMissingSource
	}
	if req.Vendor && strings.TrimSpace(d.Vendor) == "" {
		return ErrEmptyVendor
	}
	if req.Date && d.Date.IsZero() {
		return ErrMissingDate
	}
	if req.Category && d.Category.IsZero() {
		return ErrMissingCategory
	}
	if len(d.Vendor) > 200 {
		return fmt.Errorf("%w: vendor too long (max 200 characters)", ErrEmptyVendor)
	}
	return nil
}
