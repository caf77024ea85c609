// Package cash_flows persists deposits, withdrawals and balance adjustments.
// A cashflow's signed amount is part of the derivable account balance.
package cash_flows

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/tradejournal/internal/database"
	"github.com/aristath/tradejournal/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repository handles cashflow persistence in journal.db.
type Repository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewRepository creates a new cashflow repository.
//
// Parameters:
//   - db: Connection or transaction to journal.db
//   - log: Structured logger
//
// Returns:
//   - *Repository: Initialized repository instance
func NewRepository(db database.Querier, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "cash_flows").Logger(),
	}
}

// WithTx returns a copy of the repository bound to tx.
func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx, log: r.log}
}

// Create inserts a cashflow.
//
// Parameters:
//   - cf: Cashflow with ID, UserID, Amount and TS populated
//
// Returns:
//   - error: Error if the database operation fails
func (r *Repository) Create(ctx context.Context, cf *domain.Cashflow) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cashflows (user_id, id, amount, note, ts) VALUES (?, ?, ?, ?, ?)`,
		cf.UserID, cf.ID, cf.Amount, cf.Note, cf.TS.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert cashflow %s: %w", cf.ID, err)
	}
	return nil
}

// Get loads one cashflow.
//
// Returns:
//   - *domain.Cashflow: The cashflow
//   - error: wraps domain.ErrNotFound when it does not exist
func (r *Repository) Get(ctx context.Context, userID, id string) (*domain.Cashflow, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT user_id, id, amount, note, ts FROM cashflows WHERE user_id = ? AND id = ?`, userID, id)
	cf, err := scanCashflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cashflow %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cashflow %s: %w", id, err)
	}
	return cf, nil
}

// Delete removes one cashflow.
func (r *Repository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cashflows WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete cashflow %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("cashflow %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteAll removes every cashflow of a user.
func (r *Repository) DeleteAll(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cashflows WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cashflows for %s: %w", userID, err)
	}
	return res.RowsAffected()
}

// List returns the user's cashflows, newest first. A zero from/to is unbounded.
func (r *Repository) List(ctx context.Context, userID string, from, to time.Time) ([]domain.Cashflow, error) {
	query := `SELECT user_id, id, amount, note, ts FROM cashflows WHERE user_id = ?`
	args := []interface{}{userID}
	if !from.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, from.UnixMilli())
	}
	if !to.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, to.UnixMilli())
	}
	query += ` ORDER BY ts DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cashflows: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Cashflow, 0)
	for rows.Next() {
		cf, err := scanCashflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cashflow: %w", err)
		}
		out = append(out, *cf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cashflows: %w", err)
	}
	return out, nil
}

// Sum returns the signed total of the user's cashflows.
func (r *Repository) Sum(ctx context.Context, userID string) (decimal.Decimal, int, error) {
	all, err := r.List(ctx, userID, time.Time{}, time.Time{})
	if err != nil {
		return decimal.Zero, 0, err
	}
	sum := decimal.Zero
	for _, cf := range all {
		sum = sum.Add(cf.Amount)
	}
	return sum, len(all), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCashflow(s rowScanner) (*domain.Cashflow, error) {
	var (
		cf domain.Cashflow
		ts int64
	)
	if err := s.Scan(&cf.UserID, &cf.ID, &cf.Amount, &cf.Note, &ts); err != nil {
		return nil, err
	}
	cf.TS = time.UnixMilli(ts)
	return &cf, nil
}
