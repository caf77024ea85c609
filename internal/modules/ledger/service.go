// Package ledger is the only writer of an account's current balance. Every
// operation that changes the balance runs inside one store transaction that
// reads the account, applies exactly one signed delta, and writes trade or
// cashflow and account together.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/tradejournal/internal/config"
	"github.com/aristath/tradejournal/internal/domain"
	"github.com/aristath/tradejournal/internal/events"
	"github.com/aristath/tradejournal/internal/modules/trading"
	"github.com/aristath/tradejournal/pkg/id"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const module = "ledger"

// TradeDraft is the user input for a new trade. Numeric fields default to 0.
type TradeDraft struct {
	Symbol     string
	Side       domain.Side
	Kind       domain.SizeKind
	RiskAmount decimal.Decimal
	RiskPct    decimal.Decimal
	Fees       decimal.Decimal
	SizeUSD    decimal.Decimal
	Leverage   decimal.Decimal
	Setup      string
	Emotion    string
	Notes      string
}

// Service implements the account ledger operations.
type Service struct {
	store  Store
	events *events.Manager
	policy *config.RiskPolicy
	now    func() time.Time
	log    zerolog.Logger
}

// NewService creates a ledger service.
func NewService(store Store, em *events.Manager, policy *config.RiskPolicy, log zerolog.Logger) *Service {
	if policy == nil {
		policy = config.DefaultRiskPolicy()
	}
	return &Service{
		store:  store,
		events: em,
		policy: policy,
		now:    time.Now,
		log:    log.With().Str("service", "ledger").Logger(),
	}
}

// SetClock replaces the time source. Used by tests and the admin CLI.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Policy returns the risk policy the service was built with.
func (s *Service) Policy() *config.RiskPolicy {
	return s.policy
}

func (s *Service) emit(userID string, data events.EventData) {
	if s.events != nil {
		s.events.EmitTyped(userID, module, data)
	}
}

// EnsureAccount creates the user's account on first sight and returns it.
func (s *Service) EnsureAccount(ctx context.Context, userID string) (*domain.Account, error) {
	if userID == "" {
		return nil, domain.InvalidInputf("user id is required")
	}

	var (
		acc     *domain.Account
		created bool
	)
	err := s.store.RunTransaction(ctx, func(tx Tx) error {
		var err error
		created, err = createAccount(ctx, tx, userID, domain.Currency(s.policy.DefaultCurrency))
		if err != nil {
			return err
		}
		acc, err = tx.GetAccount(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.log.Info().Str("user_id", userID).Msg("Account created")
		s.emit(userID, &events.AccountCreatedData{Currency: string(acc.Currency)})
	}
	return acc, nil
}

func createAccount(ctx context.Context, tx Tx, userID string, currency domain.Currency) (bool, error) {
	return tx.CreateAccount(ctx, &domain.Account{
		UserID:          userID,
		Currency:        currency,
		MonthlyExpenses: map[string]decimal.Decimal{},
	})
}

// loadOrCreateAccount returns the account, creating it when missing.
func (s *Service) loadOrCreateAccount(ctx context.Context, tx Tx, userID string) (*domain.Account, error) {
	acc, err := tx.GetAccount(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		if _, err := createAccount(ctx, tx, userID, domain.Currency(s.policy.DefaultCurrency)); err != nil {
			return nil, err
		}
		return tx.GetAccount(ctx, userID)
	}
	return acc, err
}

// OpenTrade records a new open trade with a snapshot of the current balance.
// It does not change the balance.
func (s *Service) OpenTrade(ctx context.Context, userID string, draft TradeDraft) (*domain.Trade, error) {
	t, err := s.tradeFromDraft(userID, draft)
	if err != nil {
		return nil, err
	}

	err = s.store.RunTransaction(ctx, func(tx Tx) error {
		acc, err := tx.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		t.BalanceBefore = acc.Balance()
		return tx.InsertTrade(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("user_id", userID).
		Str("trade_id", t.ID).
		Str("symbol", t.Symbol).
		Msg("Trade opened")
	s.emit(userID, &events.TradeChangedData{
		Type:    events.TradeOpened,
		TradeID: t.ID,
		Symbol:  t.Symbol,
		Status:  string(t.Status),
		Delta:   decimal.Zero,
		Balance: t.BalanceBefore,
	})
	return t, nil
}

func (s *Service) tradeFromDraft(userID string, d TradeDraft) (*domain.Trade, error) {
	symbol := strings.ToUpper(strings.TrimSpace(d.Symbol))
	if symbol == "" {
		return nil, domain.InvalidInputf("symbol is required")
	}
	side, err := normaliseSide(d.Side)
	if err != nil {
		return nil, err
	}
	kind, err := normaliseKind(d.Kind)
	if err != nil {
		return nil, err
	}
	if err := requireNonNegative(map[string]decimal.Decimal{
		"risk_amount": d.RiskAmount,
		"risk_pct":    d.RiskPct,
		"fees":        d.Fees,
		"size_usd":    d.SizeUSD,
		"leverage":    d.Leverage,
	}); err != nil {
		return nil, err
	}

	now := s.now()
	return &domain.Trade{
		ID:         id.NewAt(now),
		UserID:     userID,
		Symbol:     symbol,
		Side:       side,
		Kind:       kind,
		Status:     domain.TradeStatusOpen,
		OpenAt:     now,
		RiskAmount: d.RiskAmount,
		RiskPct:    d.RiskPct,
		Fees:       d.Fees,
		SizeUSD:    d.SizeUSD,
		Leverage:   d.Leverage,
		Setup:      strings.TrimSpace(d.Setup),
		Emotion:    strings.TrimSpace(d.Emotion),
		Notes:      strings.TrimSpace(d.Notes),
	}, nil
}

// CloseTrade closes an open trade with its gross PnL. Net PnL is gross minus
// fees; when fees is non-nil it replaces the stored fees first. Closing an
// already closed trade changes nothing and returns the stored trade.
func (s *Service) CloseTrade(ctx context.Context, userID, tradeID string, grossPnL decimal.Decimal, fees *decimal.Decimal) (*domain.Trade, error) {
	if fees != nil && fees.IsNegative() {
		return nil, domain.InvalidInputf("fees must not be negative")
	}

	var (
		result  *domain.Trade
		balance decimal.Decimal
		applied bool
	)
	err := s.store.RunTransaction(ctx, func(tx Tx) error {
		applied = false
		acc, err := tx.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		t, err := tx.GetTrade(ctx, userID, tradeID)
		if err != nil {
			return err
		}
		result = t
		if t.IsClosed() {
			return nil
		}
		if err := requireOnboarded(acc); err != nil {
			return err
		}

		closedAt := s.now()
		if closedAt.Before(t.OpenAt) {
			return domain.InvalidInputf("closed_at must not be before open_at")
		}
		if fees != nil {
			t.Fees = *fees
		}
		net := grossPnL.Sub(t.Fees)
		t.Status = domain.TradeStatusClosed
		t.ClosedAt = &closedAt
		t.PnL = decimal.NewNullDecimal(net)
		t.R = domain.RMultiple(net, t.RiskAmount)
		if err := tx.PutTrade(ctx, t); err != nil {
			return err
		}

		balance = acc.Balance().Add(net)
		acc.CurrentBalance = decimal.NewNullDecimal(balance)
		if err := tx.PutAccount(ctx, acc); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !applied {
		s.log.Debug().Str("user_id", userID).Str("trade_id", tradeID).Msg("Trade already closed, skipping")
		return result, nil
	}

	s.log.Debug().
		Str("user_id", userID).
		Str("trade_id", tradeID).
		Str("delta", result.NetPnL().String()).
		Msg("Trade closed")
	s.emit(userID, &events.TradeChangedData{
		Type:    events.TradeClosed,
		TradeID: tradeID,
		Symbol:  result.Symbol,
		Status:  string(result.Status),
		Delta:   result.NetPnL(),
		Balance: balance,
	})
	return result, nil
}

// TradePatch carries the fields a caller wants to change. Nil fields keep
// their stored value. Reopening a trade is expressed through Status.
type TradePatch struct {
	Symbol     *string
	Side       *domain.Side
	Kind       *domain.SizeKind
	Status     *domain.TradeStatus
	OpenAt     *time.Time
	ClosedAt   *time.Time
	RiskAmount *decimal.Decimal
	RiskPct    *decimal.Decimal
	Fees       *decimal.Decimal
	SizeUSD    *decimal.Decimal
	Leverage   *decimal.Decimal
	PnL        *decimal.Decimal
	Setup      *string
	Emotion    *string
	Notes      *string
}

// Apply overlays the patch on a copy of t.
func (p TradePatch) Apply(t domain.Trade) domain.Trade {
	if p.Symbol != nil {
		t.Symbol = *p.Symbol
	}
	if p.Side != nil {
		t.Side = *p.Side
	}
	if p.Kind != nil {
		t.Kind = *p.Kind
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.OpenAt != nil {
		t.OpenAt = *p.OpenAt
	}
	if p.ClosedAt != nil {
		at := *p.ClosedAt
		t.ClosedAt = &at
	}
	if p.RiskAmount != nil {
		t.RiskAmount = *p.RiskAmount
	}
	if p.RiskPct != nil {
		t.RiskPct = *p.RiskPct
	}
	if p.Fees != nil {
		t.Fees = *p.Fees
	}
	if p.SizeUSD != nil {
		t.SizeUSD = *p.SizeUSD
	}
	if p.Leverage != nil {
		t.Leverage = *p.Leverage
	}
	if p.PnL != nil {
		t.PnL = decimal.NewNullDecimal(*p.PnL)
	}
	if p.Setup != nil {
		t.Setup = *p.Setup
	}
	if p.Emotion != nil {
		t.Emotion = *p.Emotion
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	return t
}

// EditTrade replaces a trade with its next state and applies the balance
// delta implied by the status transition:
//
//	closed -> closed: next.pnl - previous.pnl
//	open   -> closed: next.pnl
//	closed -> open:   -previous.pnl (pnl and closedAt are cleared)
//	open   -> open:   0
func (s *Service) EditTrade(ctx context.Context, userID string, next domain.Trade) (*domain.Trade, error) {
	if next.ID == "" {
		return nil, domain.InvalidInputf("trade id is required")
	}
	return s.editTrade(ctx, userID, next.ID, func(domain.Trade) domain.Trade { return next })
}

// UpdateTrade applies a patch to the stored trade and routes the result
// through the same delta computation as EditTrade.
func (s *Service) UpdateTrade(ctx context.Context, userID, tradeID string, patch TradePatch) (*domain.Trade, error) {
	return s.editTrade(ctx, userID, tradeID, patch.Apply)
}

func (s *Service) editTrade(ctx context.Context, userID, tradeID string, build func(prev domain.Trade) domain.Trade) (*domain.Trade, error) {
	var (
		result  *domain.Trade
		delta   decimal.Decimal
		balance decimal.Decimal
	)
	err := s.store.RunTransaction(ctx, func(tx Tx) error {
		acc, err := tx.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		prev, err := tx.GetTrade(ctx, userID, tradeID)
		if err != nil {
			return err
		}

		next, d, err := s.transition(*prev, build(*prev))
		if err != nil {
			return err
		}
		if !d.IsZero() {
			if err := requireOnboarded(acc); err != nil {
				return err
			}
		}
		if err := tx.PutTrade(ctx, &next); err != nil {
			return err
		}

		balance = acc.Balance().Add(d)
		if !d.IsZero() {
			acc.CurrentBalance = decimal.NewNullDecimal(balance)
			if err := tx.PutAccount(ctx, acc); err != nil {
				return err
			}
		}
		result, delta = &next, d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("user_id", userID).
		Str("trade_id", tradeID).
		Str("status", string(result.Status)).
		Str("delta", delta.String()).
		Msg("Trade edited")
	s.emit(userID, &events.TradeChangedData{
		Type:    events.TradeEdited,
		TradeID: tradeID,
		Symbol:  result.Symbol,
		Status:  string(result.Status),
		Delta:   delta,
		Balance: balance,
	})
	return result, nil
}

// transition validates next against prev and returns the normalised trade
// plus the balance delta. Identity, owner and balance snapshot are kept
// from prev.
func (s *Service) transition(prev, next domain.Trade) (domain.Trade, decimal.Decimal, error) {
	next.ID = prev.ID
	next.UserID = prev.UserID
	next.BalanceBefore = prev.BalanceBefore
	if next.OpenAt.IsZero() {
		next.OpenAt = prev.OpenAt
	}

	next.Symbol = strings.ToUpper(strings.TrimSpace(next.Symbol))
	if next.Symbol == "" {
		return next, decimal.Zero, domain.InvalidInputf("symbol is required")
	}
	var err error
	if next.Side, err = normaliseSide(next.Side); err != nil {
		return next, decimal.Zero, err
	}
	if next.Kind, err = normaliseKind(next.Kind); err != nil {
		return next, decimal.Zero, err
	}
	if err := requireNonNegative(map[string]decimal.Decimal{
		"risk_amount": next.RiskAmount,
		"risk_pct":    next.RiskPct,
		"fees":        next.Fees,
		"size_usd":    next.SizeUSD,
		"leverage":    next.Leverage,
	}); err != nil {
		return next, decimal.Zero, err
	}

	var delta decimal.Decimal
	switch {
	case prev.IsClosed() && next.Status == domain.TradeStatusClosed:
		if !next.PnL.Valid {
			return next, decimal.Zero, domain.InvalidInputf("closed trade requires pnl")
		}
		delta = next.PnL.Decimal.Sub(prev.NetPnL())
		if next.ClosedAt == nil {
			next.ClosedAt = prev.ClosedAt
		}
		if next.ClosedAt == nil {
			at := s.now()
			next.ClosedAt = &at
		}
	case !prev.IsClosed() && next.Status == domain.TradeStatusClosed:
		if !next.PnL.Valid {
			return next, decimal.Zero, domain.InvalidInputf("closed trade requires pnl")
		}
		delta = next.PnL.Decimal
		if next.ClosedAt == nil {
			at := s.now()
			next.ClosedAt = &at
		}
	case next.Status == domain.TradeStatusOpen:
		// closed -> open reverses the stored effect, open -> open has none.
		delta = prev.BalanceEffect().Neg()
		next.PnL = decimal.NullDecimal{}
		next.ClosedAt = nil
	default:
		return next, decimal.Zero, domain.InvalidInputf("unknown status %q", next.Status)
	}

	if next.IsClosed() {
		next.R = domain.RMultiple(next.PnL.Decimal, next.RiskAmount)
		if next.ClosedAt.Before(next.OpenAt) {
			return next, decimal.Zero, domain.InvalidInputf("closed_at must not be before open_at")
		}
	} else {
		next.R = decimal.Zero
	}
	return next, delta, nil
}

// DeleteTrade removes a trade and reverses its effect when it was closed.
// A missing trade is a no-op.
func (s *Service) DeleteTrade(ctx context.Context, userID, tradeID string) error {
	var (
		removed *domain.Trade
		balance decimal.Decimal
	)
	err := s.store.RunTransaction(ctx, func(tx Tx) error {
		t, err := tx.GetTrade(ctx, userID, tradeID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		acc, err := tx.GetAccount(ctx, userID)
		if err != nil {
			return err
		}

		balance = acc.Balance()
		if t.IsClosed() {
			if err := requireOnboarded(acc); err != nil {
				return err
			}
			balance = balance.Sub(t.NetPnL())
			acc.CurrentBalance = decimal.NewNullDecimal(balance)
			if err := tx.PutAccount(ctx, acc); err != nil {
				return err
			}
		}
		removed = t
		return tx.DeleteTrade(ctx, userID, tradeID)
	})
	if err != nil || removed == nil {
		return err
	}

	delta := removed.BalanceEffect().Neg()
	s.log.Debug().
		Str("user_id", userID).
		Str("trade_id", tradeID).
		Str("delta", delta.String()).
		Msg("Trade deleted")
	s.emit(userID, &events.TradeChangedData{
		Type:    events.TradeDeleted,
		TradeID: tradeID,
		Symbol:  removed.Symbol,
		Status:  string(removed.Status),
		Delta:   delta,
		Balance: balance,
	})
	return nil
}

// AddCashflow records a signed cashflow and moves the balance by amount.
// It fails with domain.ErrInsufficientBalance when the result would be
// negative and with domain.ErrNotOnboarded before onboarding.
func (s *Service) AddCashflow(ctx context.Context, userID string, amount decimal.Decimal, note string) (*domain.Cashflow, error) {
	var (
		cf      *domain.Cashflow
		balance decimal.Decimal
	)
	err := s.store.RunTransaction(ctx, func(tx Tx) error {
		acc, err := tx.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		if err := requireOnboarded(acc); err != nil {
			return err
		}
		next := acc.Balance().Add(amount)
		if next.IsNegative() {
			return fmt.Errorf("%w: balance %s cannot absorb %s", domain.ErrInsufficientBalance, acc.Balance(), amount)
		}

		now := s.now()
		cf = &domain.Cashflow{
			ID:     id.NewAt(now),
			UserID: userID,
			Amount: amount,
			Note:   strings.TrimSpace(note),
			TS:     now,
		}
		if err := tx.InsertCashflow(ctx, cf); err != nil {
			return err
		}
		acc.CurrentBalance = decimal.NewNullDecimal(next)
		balance = next
		return tx.PutAccount(ctx, acc)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			s.log.Warn().Str("user_id", userID).Str("amount", amount.String()).Msg("Cashflow rejected")
		}
		return nil, err
	}

	s.log.Debug().Str("user_id", userID).Str("cashflow_id", cf.ID).Str("delta", amount.String()).Msg("Cashflow added")
	s.emit(userID, &events.CashflowChangedData{
		Type:       events.CashflowAdded,
		CashflowID: cf.ID,
		Amount:     amount,
		Balance:    balance,
	})
	return cf, nil
}

// DeleteCashflow removes a cashflow and reverses its amount. It fails with
// domain.ErrInsufficientBalance rather than leave the balance negative.
func (s *Service) DeleteCashflow(ctx context.Context, userID, cashflowID string) error {
	var (
		removed *domain.Cashflow
		balance decimal.Decimal
	)
	err := s.store.RunTransaction(ctx, func(tx Tx) error {
		cf, err := tx.GetCashflow(ctx, userID, cashflowID)
		if err != nil {
			return err
		}
		acc, err := tx.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		if err := requireOnboarded(acc); err != nil {
			return err
		}
		next := acc.Balance().Sub(cf.Amount)
		if next.IsNegative() {
			return fmt.Errorf("%w: removing %s would leave %s", domain.ErrInsufficientBalance, cf.Amount, next)
		}
		if err := tx.DeleteCashflow(ctx, userID, cashflowID); err != nil {
			return err
		}
		acc.CurrentBalance = decimal.NewNullDecimal(next)
		removed, balance = cf, next
		return tx.PutAccount(ctx, acc)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			s.log.Warn().Str("user_id", userID).Str("cashflow_id", cashflowID).Msg("Cashflow removal rejected")
		}
		return err
	}

	s.log.Debug().Str("user_id", userID).Str("cashflow_id", cashflowID).Str("delta", removed.Amount.Neg().String()).Msg("Cashflow deleted")
	s.emit(userID, &events.CashflowChangedData{
		Type:       events.CashflowDeleted,
		CashflowID: cashflowID,
		Amount:     removed.Amount,
		Balance:    balance,
	})
	return nil
}

// requireOnboarded rejects balance moves on an account without a starting
// balance.
func requireOnboarded(acc *domain.Account) error {
	if !acc.Onboarded() {
		return fmt.Errorf("%w: user %s", domain.ErrNotOnboarded, acc.UserID)
	}
	return nil
}

// AddMonthExpense adds delta to the month's expense accumulator, flooring
// the result at zero, and returns the new total.
func (s *Service) AddMonthExpense(ctx context.Context, userID string, year int, month time.Month, delta decimal.Decimal) (decimal.Decimal, error) {
	if month < time.January || month > time.December {
		return decimal.Zero, domain.InvalidInputf("month must be 1-12, got %d", month)
	}
	if year < 1970 || year > 9999 {
		return decimal.Zero, domain.InvalidInputf("year %d out of range", year)
	}
	key := domain.MonthKey(year, month)

	var total decimal.Decimal
	err := s.store.RunTransaction(ctx, func(tx Tx) error {
		acc, err := tx.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		if acc.MonthlyExpenses == nil {
			acc.MonthlyExpenses = map[string]decimal.Decimal{}
		}
		total = decimal.Max(decimal.Zero, acc.Expense(key).Add(delta))
		acc.MonthlyExpenses[key] = total
		return tx.PutAccount(ctx, acc)
	})
	if err != nil {
		return decimal.Zero, err
	}

	s.emit(userID, &events.ExpensesChangedData{Month: key, Total: total})
	return total, nil
}

// SaveOnboarding sets the starting and current balance once.
// It fails with domain.ErrAlreadyOnboarded when a starting balance exists.
func (s *Service) SaveOnboarding(ctx context.Context, userID string, startingBalance decimal.Decimal, currency domain.Currency) (*domain.Account, error) {
	if startingBalance.IsNegative() {
		return nil, domain.InvalidInputf("starting balance must not be negative")
	}
	currency, err := domain.ParseCurrency(string(currency))
	if err != nil {
		return nil, err
	}

	var acc *domain.Account
	err = s.store.RunTransaction(ctx, func(tx Tx) error {
		var err error
		acc, err = s.loadOrCreateAccount(ctx, tx, userID)
		if err != nil {
			return err
		}
		if acc.Onboarded() {
			return domain.ErrAlreadyOnboarded
		}
		acc.StartingBalance = decimal.NewNullDecimal(startingBalance)
		acc.CurrentBalance = decimal.NewNullDecimal(startingBalance)
		acc.Currency = currency
		return tx.PutAccount(ctx, acc)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", userID).Str("starting_balance", startingBalance.String()).Msg("Onboarding saved")
	s.emit(userID, &events.OnboardingSavedData{StartingBalance: startingBalance, Currency: string(currency)})
	return acc, nil
}

// ResetAccount purges every trade and cashflow and restarts the ledger from
// newStartingBalance. Monthly expenses are kept.
func (s *Service) ResetAccount(ctx context.Context, userID string, newStartingBalance decimal.Decimal, currency domain.Currency) (*domain.Account, error) {
	if newStartingBalance.IsNegative() {
		return nil, domain.InvalidInputf("starting balance must not be negative")
	}
	currency, err := domain.ParseCurrency(string(currency))
	if err != nil {
		return nil, err
	}

	var (
		acc               *domain.Account
		trades, cashflows int64
	)
	err = s.store.RunTransaction(ctx, func(tx Tx) error {
		var err error
		acc, err = s.loadOrCreateAccount(ctx, tx, userID)
		if err != nil {
			return err
		}
		if trades, err = tx.DeleteAllTrades(ctx, userID); err != nil {
			return err
		}
		if cashflows, err = tx.DeleteAllCashflows(ctx, userID); err != nil {
			return err
		}
		acc.StartingBalance = decimal.NewNullDecimal(newStartingBalance)
		acc.CurrentBalance = decimal.NewNullDecimal(newStartingBalance)
		acc.Currency = currency
		return tx.PutAccount(ctx, acc)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", userID).
		Int64("trades_deleted", trades).
		Int64("cashflows_deleted", cashflows).
		Msg("Account reset")
	s.emit(userID, &events.AccountResetData{
		StartingBalance:  newStartingBalance,
		Currency:         string(currency),
		TradesDeleted:    trades,
		CashflowsDeleted: cashflows,
	})
	return acc, nil
}

// GetAccount returns the user's account.
func (s *Service) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	var acc *domain.Account
	err := s.store.RunTransaction(ctx, func(tx Tx) error {
		var err error
		acc, err = tx.GetAccount(ctx, userID)
		return err
	})
	return acc, err
}

// GetTrade returns one trade.
func (s *Service) GetTrade(ctx context.Context, userID, tradeID string) (*domain.Trade, error) {
	var t *domain.Trade
	err := s.store.RunTransaction(ctx, func(tx Tx) error {
		var err error
		t, err = tx.GetTrade(ctx, userID, tradeID)
		return err
	})
	return t, err
}

// ListTrades returns the user's trades, newest open first.
func (s *Service) ListTrades(ctx context.Context, userID string, f trading.Filter) ([]domain.Trade, error) {
	var out []domain.Trade
	err := s.store.RunTransaction(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListTrades(ctx, userID, f)
		return err
	})
	return out, err
}

// ListCashflows returns the user's cashflows, newest first.
func (s *Service) ListCashflows(ctx context.Context, userID string, from, to time.Time) ([]domain.Cashflow, error) {
	var out []domain.Cashflow
	err := s.store.RunTransaction(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListCashflows(ctx, userID, from, to)
		return err
	})
	return out, err
}

func normaliseSide(s domain.Side) (domain.Side, error) {
	switch domain.Side(strings.ToLower(strings.TrimSpace(string(s)))) {
	case "", domain.SideLong:
		return domain.SideLong, nil
	case domain.SideShort:
		return domain.SideShort, nil
	}
	return "", domain.InvalidInputf("side must be long or short, got %q", s)
}

func normaliseKind(k domain.SizeKind) (domain.SizeKind, error) {
	switch domain.SizeKind(strings.ToLower(strings.TrimSpace(string(k)))) {
	case "", domain.SizeKindNormal:
		return domain.SizeKindNormal, nil
	case domain.SizeKindShort:
		return domain.SizeKindShort, nil
	case domain.SizeKindLong:
		return domain.SizeKindLong, nil
	}
	return "", domain.InvalidInputf("kind must be short, normal or long, got %q", k)
}

func requireNonNegative(fields map[string]decimal.Decimal) error {
	for name, v := range fields {
		if v.IsNegative() {
			return domain.InvalidInputf("%s must not be negative", name)
		}
	}
	return nil
}
