package core

import "errors"

// Validation failures: the operation was rejected before any state changed.
var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrMissingSource   = errors.New("payment source is required")
	ErrEmptyVendor     = errors.New("empty vendor")
	ErrMissingDate     = errors.New("date is required")
	ErrMissingCategory = errors.New("category is required")
	ErrUnknownCategory = errors.New("unknown category")
	ErrSourceInactive  = errors.New("payment source is inactive")
	ErrInvalidSource   = errors.New("invalid payment source")
)

// Lookup failures.
var (
	ErrSourceNotFound  = errors.New("payment source not found")
	ErrExpenseNotFound = errors.New("expense not found")
)

// ErrNoUser is returned by every ledger operation invoked without an
// authenticated user.
var ErrNoUser = errors.New("no authenticated user")

var validationErrors = []error{
	ErrInvalidAmount,
	ErrMissingSource,
	ErrEmptyVendor,
	ErrMissingDate,
	ErrMissingCategory,
	ErrUnknownCategory,
	ErrSourceInactive,
	ErrInvalidSource,
}

// IsValidation reports whether err is a rejected-before-apply validation error.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err signals an unknown source or expense.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSourceNotFound) || errors.Is(err, ErrExpenseNotFound)
}
