package ledger

import (
	"context"
	"time"

	"github.com/aristath/tradejournal/internal/domain"
	"github.com/aristath/tradejournal/internal/events"
	"github.com/aristath/tradejournal/internal/modules/trading"
	"github.com/shopspring/decimal"
)

// Reconciliation compares the stored balance with the balance derived from
// the journal: starting + closed trade PnL + signed cashflows.
type Reconciliation struct {
	UserID        string          `json:"user_id"`
	Starting      decimal.Decimal `json:"starting"`
	ClosedPnL     decimal.Decimal `json:"closed_pnl"`
	Cashflows     decimal.Decimal `json:"cashflows"`
	Derived       decimal.Decimal `json:"derived"`
	Stored        decimal.Decimal `json:"stored"`
	Drift         decimal.Decimal `json:"drift"`
	ClosedTrades  int             `json:"closed_trades"`
	CashflowCount int             `json:"cashflow_count"`
	Repaired      bool            `json:"repaired"`
}

// Balanced reports whether stored and derived balances agree.
func (r Reconciliation) Balanced() bool {
	return r.Drift.IsZero()
}

func reconcileInTx(ctx context.Context, tx Tx, userID string) (*domain.Account, Reconciliation, error) {
	acc, err := tx.GetAccount(ctx, userID)
	if err != nil {
		return nil, Reconciliation{}, err
	}
	trades, err := tx.ListTrades(ctx, userID, trading.Filter{Status: domain.TradeStatusClosed})
	if err != nil {
		return nil, Reconciliation{}, err
	}
	cashflows, err := tx.ListCashflows(ctx, userID, time.Time{}, time.Time{})
	if err != nil {
		return nil, Reconciliation{}, err
	}

	rec := Reconciliation{
		UserID:        userID,
		Starting:      acc.Starting(),
		ClosedPnL:     decimal.Zero,
		Cashflows:     decimal.Zero,
		Stored:        acc.Balance(),
		ClosedTrades:  len(trades),
		CashflowCount: len(cashflows),
	}
	for i := range trades {
		rec.ClosedPnL = rec.ClosedPnL.Add(trades[i].NetPnL())
	}
	for _, cf := range cashflows {
		rec.Cashflows = rec.Cashflows.Add(cf.Amount)
	}
	rec.Derived = rec.Starting.Add(rec.ClosedPnL).Add(rec.Cashflows)
	rec.Drift = rec.Stored.Sub(rec.Derived)
	return acc, rec, nil
}

// Reconcile reports drift between the stored and derived balance without writing.
func (s *Service) Reconcile(ctx context.Context, userID string) (Reconciliation, error) {
	var rec Reconciliation
	err := s.store.RunTransaction(ctx, func(tx Tx) error {
		var err error
		_, rec, err = reconcileInTx(ctx, tx, userID)
		return err
	})
	if err != nil {
		return Reconciliation{}, err
	}
	if !rec.Balanced() {
		s.log.Warn().
			Str("user_id", userID).
			Str("stored", rec.Stored.String()).
			Str("derived", rec.Derived.String()).
			Msg("Balance drift detected")
	}
	return rec, nil
}

// Repair rewrites the stored balance to the derived balance when they differ.
func (s *Service) Repair(ctx context.Context, userID string) (Reconciliation, error) {
	var rec Reconciliation
	err := s.store.RunTransaction(ctx, func(tx Tx) error {
		acc, r, err := reconcileInTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		rec = r
		if rec.Balanced() {
			return nil
		}
		acc.CurrentBalance = decimal.NewNullDecimal(rec.Derived)
		rec.Repaired = true
		return tx.PutAccount(ctx, acc)
	})
	if err != nil {
		return Reconciliation{}, err
	}

	if rec.Repaired {
		s.log.Warn().
			Str("user_id", userID).
			Str("previous", rec.Stored.String()).
			Str("repaired", rec.Derived.String()).
			Msg("Balance repaired")
		s.emit(userID, &events.BalanceRepairedData{Previous: rec.Stored, Repaired: rec.Derived})
	}
	return rec, nil
}
