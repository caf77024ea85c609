package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a referenced trade, cashflow or account does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientBalance is returned when a cashflow change would make the balance negative.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrTransactionConflict is returned when the store could not commit after retries.
	ErrTransactionConflict = errors.New("transaction conflict")
	// ErrInvalidInput is returned for malformed or non-finite input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyOnboarded is returned when onboarding runs on an onboarded account.
	ErrAlreadyOnboarded = errors.New("account already onboarded")
	// ErrNotOnboarded is returned when a balance operation runs before onboarding.
	ErrNotOnboarded = errors.New("account not onboarded")
)

// InvalidInputf wraps ErrInvalidInput with a formatted reason.
func InvalidInputf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// DecimalFromFloat converts f, rejecting NaN and infinities.
func DecimalFromFloat(field string, f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, InvalidInputf("%s must be a finite number", field)
	}
	return decimal.NewFromFloat(f), nil
}
