// Package accounts persists the per-user account aggregate: currency,
// starting and current balance, and the monthly expense accumulators.
package accounts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/tradejournal/internal/database"
	"github.com/aristath/tradejournal/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const accountColumns = `user_id, currency, starting_balance, current_balance, monthly_expenses, created_at, updated_at`

// Repository handles account persistence in journal.db.
//
// The balance columns are written only through the ledger service; this
// repository executes whatever it is told and performs no bookkeeping itself.
type Repository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewRepository creates a new account repository.
//
// Parameters:
//   - db: Connection or transaction to journal.db
//   - log: Structured logger
func NewRepository(db database.Querier, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "accounts").Logger(),
	}
}

// WithTx returns a copy of the repository bound to tx.
func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx, log: r.log}
}

// Get loads an account by user id.
//
// Returns:
//   - *domain.Account: The account
//   - error: wraps domain.ErrNotFound when the user has no account
func (r *Repository) Get(ctx context.Context, userID string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = ?`, userID)
	acc, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", userID, err)
	}
	return acc, nil
}

// CreateIfMissing inserts acc unless an account already exists for the user.
//
// Returns:
//   - bool: true when a row was inserted
//   - error: database failure
func (r *Repository) CreateIfMissing(ctx context.Context, acc *domain.Account) (bool, error) {
	expenses, err := encodeExpenses(acc.MonthlyExpenses)
	if err != nil {
		return false, err
	}
	now := time.Now()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	acc.UpdatedAt = acc.CreatedAt

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`,
		acc.UserID,
		string(acc.Currency),
		acc.StartingBalance,
		acc.CurrentBalance,
		expenses,
		acc.CreatedAt.UnixMilli(),
		acc.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert account %s: %w", acc.UserID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// Update writes every mutable account field.
func (r *Repository) Update(ctx context.Context, acc *domain.Account) error {
	expenses, err := encodeExpenses(acc.MonthlyExpenses)
	if err != nil {
		return err
	}
	acc.UpdatedAt = time.Now()

	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET currency = ?, starting_balance = ?, current_balance = ?, monthly_expenses = ?, updated_at = ?
		WHERE user_id = ?
	`,
		string(acc.Currency),
		acc.StartingBalance,
		acc.CurrentBalance,
		expenses,
		acc.UpdatedAt.UnixMilli(),
		acc.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update account %s: %w", acc.UserID, err)
	}
	return requireOneRow(res, acc.UserID)
}

// SetBalance overwrites current_balance only.
func (r *Repository) SetBalance(ctx context.Context, userID string, balance decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET current_balance = ?, updated_at = ? WHERE user_id = ?`,
		balance, time.Now().UnixMilli(), userID)
	if err != nil {
		return fmt.Errorf("failed to set balance for %s: %w", userID, err)
	}
	return requireOneRow(res, userID)
}

// ListUserIDs returns every account's user id in ascending order.
func (r *Repository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM accounts ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func requireOneRow(res sql.Result, userID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", userID, domain.ErrNotFound)
	}
	return nil
}

func scanAccount(row *sql.Row) (*domain.Account, error) {
	var (
		acc       domain.Account
		currency  string
		expenses  string
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(
		&acc.UserID,
		&currency,
		&acc.StartingBalance,
		&acc.CurrentBalance,
		&expenses,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	acc.Currency = domain.Currency(currency)
	acc.CreatedAt = time.UnixMilli(createdAt)
	acc.UpdatedAt = time.UnixMilli(updatedAt)
	acc.MonthlyExpenses, err = decodeExpenses(expenses)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func encodeExpenses(m map[string]decimal.Decimal) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode monthly expenses: %w", err)
	}
	return string(b), nil
}

func decodeExpenses(s string) (map[string]decimal.Decimal, error) {
	m := make(map[string]decimal.Decimal)
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("failed to decode monthly expenses: %w", err)
	}
	return m, nil
}
