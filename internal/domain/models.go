// Package domain provides the journal's core models and error taxonomy.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Currency represents an account currency code
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
	CurrencyBRL Currency = "BRL"
)

// ParseCurrency normalises a currency code. Any three-letter code is accepted.
func ParseCurrency(s string) (Currency, error) {
	c := strings.ToUpper(strings.TrimSpace(s))
	if len(c) != 3 {
		return "", InvalidInputf("currency %q must be a three-letter code", s)
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", InvalidInputf("currency %q must be a three-letter code", s)
		}
	}
	return Currency(c), nil
}

// Side is the direction of a journaled position
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// TradeStatus is the two-state lifecycle of a trade
type TradeStatus string

const (
	TradeStatusOpen   TradeStatus = "open"
	TradeStatusClosed TradeStatus = "closed"
)

// SizeKind selects the balance multiplier used for the recommended position size.
type SizeKind string

const (
	SizeKindShort  SizeKind = "short"
	SizeKindNormal SizeKind = "normal"
	SizeKindLong   SizeKind = "long"
)

// Account is the per-user ledger aggregate. CurrentBalance is written only by
// the ledger service.
type Account struct {
	CreatedAt       time.Time                  `json:"created_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
	MonthlyExpenses map[string]decimal.Decimal `json:"monthly_expenses"`
	StartingBalance decimal.NullDecimal        `json:"starting_balance"`
	CurrentBalance  decimal.NullDecimal        `json:"current_balance"`
	UserID          string                     `json:"user_id"`
	Currency        Currency                   `json:"currency"`
}

// Onboarded reports whether the starting balance has been set.
func (a *Account) Onboarded() bool {
	return a.StartingBalance.Valid
}

// Balance returns the current balance, zero before onboarding.
func (a *Account) Balance() decimal.Decimal {
	if !a.CurrentBalance.Valid {
		return decimal.Zero
	}
	return a.CurrentBalance.Decimal
}

// Starting returns the starting balance, zero before onboarding.
func (a *Account) Starting() decimal.Decimal {
	if !a.StartingBalance.Valid {
		return decimal.Zero
	}
	return a.StartingBalance.Decimal
}

// Expense returns the accumulated expenses for a "YYYY-MM" key.
func (a *Account) Expense(key string) decimal.Decimal {
	if a.MonthlyExpenses == nil {
		return decimal.Zero
	}
	return a.MonthlyExpenses[key]
}

// Trade is one journaled position.
type Trade struct {
	OpenAt        time.Time           `json:"open_at"`
	ClosedAt      *time.Time          `json:"closed_at"`
	PnL           decimal.NullDecimal `json:"pnl"`
	RiskAmount    decimal.Decimal     `json:"risk_amount"`
	RiskPct       decimal.Decimal     `json:"risk_pct"`
	Fees          decimal.Decimal     `json:"fees"`
	SizeUSD       decimal.Decimal     `json:"size_usd"`
	Leverage      decimal.Decimal     `json:"leverage"`
	R             decimal.Decimal     `json:"r"`
	BalanceBefore decimal.Decimal     `json:"balance_before"`
	ID            string              `json:"id"`
	UserID        string              `json:"user_id"`
	Symbol        string              `json:"symbol"`
	Side          Side                `json:"side"`
	Kind          SizeKind            `json:"kind"`
	Status        TradeStatus         `json:"status"`
	Setup         string              `json:"setup,omitempty"`
	Emotion       string              `json:"emotion,omitempty"`
	Notes         string              `json:"notes,omitempty"`
}

// IsClosed reports whether the trade is closed.
func (t *Trade) IsClosed() bool {
	return t.Status == TradeStatusClosed
}

// NetPnL returns the stored net PnL, zero while open.
func (t *Trade) NetPnL() decimal.Decimal {
	if !t.PnL.Valid {
		return decimal.Zero
	}
	return t.PnL.Decimal
}

// BalanceEffect is the amount this trade currently contributes to the balance.
func (t *Trade) BalanceEffect() decimal.Decimal {
	if !t.IsClosed() {
		return decimal.Zero
	}
	return t.NetPnL()
}

// Cashflow is a deposit (positive), withdrawal (negative) or adjustment.
type Cashflow struct {
	TS     time.Time       `json:"ts"`
	Amount decimal.Decimal `json:"amount"`
	ID     string          `json:"id"`
	UserID string          `json:"user_id"`
	Note   string          `json:"note"`
}

// MonthKey formats the monthly-expenses key for a calendar month.
func MonthKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// RMultiple returns pnl/risk, or zero when risk is not positive.
func RMultiple(pnl, risk decimal.Decimal) decimal.Decimal {
	if !risk.IsPositive() {
		return decimal.Zero
	}
	return pnl.DivRound(risk, 8)
}
