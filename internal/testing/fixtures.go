package testing

import (
	"time"

	"github.com/aristath/tradejournal/internal/domain"
	"github.com/shopspring/decimal"
)

// D parses a decimal literal and panics on malformed input.
func D(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// ClosedTrade builds a closed trade fixture.
func ClosedTrade(id string, closedAt time.Time, pnl string) domain.Trade {
	at := closedAt
	return domain.Trade{
		ID:       id,
		Symbol:   "EURUSD",
		Side:     domain.SideLong,
		Kind:     domain.SizeKindNormal,
		Status:   domain.TradeStatusClosed,
		OpenAt:   closedAt.Add(-time.Hour),
		ClosedAt: &at,
		PnL:      decimal.NewNullDecimal(D(pnl)),
	}
}

// OpenTrade builds an open trade fixture.
func OpenTrade(id string, openAt time.Time) domain.Trade {
	return domain.Trade{
		ID:     id,
		Symbol: "EURUSD",
		Side:   domain.SideLong,
		Kind:   domain.SizeKindNormal,
		Status: domain.TradeStatusOpen,
		OpenAt: openAt,
	}
}

// Cashflow builds a cashflow fixture.
func Cashflow(id string, ts time.Time, amount string) domain.Cashflow {
	return domain.Cashflow{ID: id, TS: ts, Amount: D(amount)}
}
