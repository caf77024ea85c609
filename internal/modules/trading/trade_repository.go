// Package trading persists journaled trades and provides position sizing rules.
package trading

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/tradejournal/internal/database"
	"github.com/aristath/tradejournal/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// tradesColumns is the list of columns for the trades table.
// Column order must match scanTrade().
const tradesColumns = `user_id, id, symbol, side, kind, status, open_at, closed_at,
	risk_amount, risk_pct, fees, size_usd, leverage, pnl, r, balance_before, setup, emotion, notes`

// Filter narrows a trade listing. Zero values mean "no bound".
type Filter struct {
	OpenFrom   time.Time
	OpenTo     time.Time
	ClosedFrom time.Time
	ClosedTo   time.Time
	Status     domain.TradeStatus
	Limit      int
}

// TradeRepository handles trade database operations
type TradeRepository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(db database.Querier, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{
		db:  db,
		log: log.With().Str("repo", "trade").Logger(),
	}
}

// WithTx returns a copy of the repository bound to tx.
func (r *TradeRepository) WithTx(tx *sql.Tx) *TradeRepository {
	return &TradeRepository{db: tx, log: r.log}
}

// Get loads one trade. Missing trades wrap domain.ErrNotFound.
func (r *TradeRepository) Get(ctx context.Context, userID, id string) (*domain.Trade, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tradesColumns+` FROM trades WHERE user_id = ? AND id = ?`, userID, id)
	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trade %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load trade %s: %w", id, err)
	}
	return t, nil
}

// Insert writes a new trade row.
func (r *TradeRepository) Insert(ctx context.Context, t *domain.Trade) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trades (`+tradesColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tradeArgs(t)...)
	if err != nil {
		return fmt.Errorf("failed to insert trade %s: %w", t.ID, err)
	}
	return nil
}

// Update overwrites every stored field of an existing trade.
func (r *TradeRepository) Update(ctx context.Context, t *domain.Trade) error {
	args := tradeArgs(t)
	// Move user_id and id to the WHERE clause.
	args = append(args[2:], t.UserID, t.ID)

	res, err := r.db.ExecContext(ctx, `
		UPDATE trades
		SET symbol = ?, side = ?, kind = ?, status = ?, open_at = ?, closed_at = ?,
		    risk_amount = ?, risk_pct = ?, fees = ?, size_usd = ?, leverage = ?,
		    pnl = ?, r = ?, balance_before = ?, setup = ?, emotion = ?, notes = ?
		WHERE user_id = ? AND id = ?
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to update trade %s: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("trade %s: %w", t.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete removes one trade. Missing trades wrap domain.ErrNotFound.
func (r *TradeRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM trades WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete trade %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("trade %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteAll removes every trade of a user and returns how many were removed.
func (r *TradeRepository) DeleteAll(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM trades WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete trades for %s: %w", userID, err)
	}
	return res.RowsAffected()
}

// List returns the user's trades matching f, newest open first.
func (r *TradeRepository) List(ctx context.Context, userID string, f Filter) ([]domain.Trade, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []interface{}{userID}
	)
	if !f.OpenFrom.IsZero() {
		where = append(where, "open_at >= ?")
		args = append(args, f.OpenFrom.UnixMilli())
	}
	if !f.OpenTo.IsZero() {
		where = append(where, "open_at <= ?")
		args = append(args, f.OpenTo.UnixMilli())
	}
	if !f.ClosedFrom.IsZero() {
		where = append(where, "closed_at >= ?")
		args = append(args, f.ClosedFrom.UnixMilli())
	}
	if !f.ClosedTo.IsZero() {
		where = append(where, "closed_at <= ?")
		args = append(args, f.ClosedTo.UnixMilli())
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}

	query := `SELECT ` + tradesColumns + ` FROM trades WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY open_at DESC, id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := make([]domain.Trade, 0)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}
	return trades, nil
}

// SumClosedPnL returns the sum of net PnL over the user's closed trades.
// The sum is done in decimal arithmetic rather than by SQLite.
func (r *TradeRepository) SumClosedPnL(ctx context.Context, userID string) (decimal.Decimal, int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT pnl FROM trades WHERE user_id = ? AND status = 'closed'`, userID)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("failed to query closed pnl: %w", err)
	}
	defer rows.Close()

	sum := decimal.Zero
	n := 0
	for rows.Next() {
		var pnl decimal.NullDecimal
		if err := rows.Scan(&pnl); err != nil {
			return decimal.Zero, 0, fmt.Errorf("failed to scan pnl: %w", err)
		}
		if pnl.Valid {
			sum = sum.Add(pnl.Decimal)
		}
		n++
	}
	return sum, n, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(s rowScanner) (*domain.Trade, error) {
	var (
		t        domain.Trade
		side     string
		kind     string
		status   string
		openAt   int64
		closedAt sql.NullInt64
	)
	err := s.Scan(
		&t.UserID, &t.ID, &t.Symbol, &side, &kind, &status, &openAt, &closedAt,
		&t.RiskAmount, &t.RiskPct, &t.Fees, &t.SizeUSD, &t.Leverage,
		&t.PnL, &t.R, &t.BalanceBefore, &t.Setup, &t.Emotion, &t.Notes,
	)
	if err != nil {
		return nil, err
	}
	t.Side = domain.Side(side)
	t.Kind = domain.SizeKind(kind)
	t.Status = domain.TradeStatus(status)
	t.OpenAt = time.UnixMilli(openAt)
	if closedAt.Valid {
		at := time.UnixMilli(closedAt.Int64)
		t.ClosedAt = &at
	}
	return &t, nil
}

func tradeArgs(t *domain.Trade) []interface{} {
	var closedAt interface{}
	if t.ClosedAt != nil {
		closedAt = t.ClosedAt.UnixMilli()
	}
	return []interface{}{
		t.UserID, t.ID, t.Symbol, string(t.Side), string(t.Kind), string(t.Status),
		t.OpenAt.UnixMilli(), closedAt,
		t.RiskAmount, t.RiskPct, t.Fees, t.SizeUSD, t.Leverage,
		t.PnL, t.R, t.BalanceBefore, t.Setup, t.Emotion, t.Notes,
	}
}
