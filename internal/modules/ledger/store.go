package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/aristath/tradejournal/internal/database"
	"github.com/aristath/tradejournal/internal/domain"
	"github.com/aristath/tradejournal/internal/modules/accounts"
	"github.com/aristath/tradejournal/internal/modules/cash_flows"
	"github.com/aristath/tradejournal/internal/modules/trading"
	"github.com/rs/zerolog"
)

// Store is the transactional ledger store. RunTransaction either commits
// every write made through tx or none of them; fn may be invoked more than
// once when the store retries a conflicting transaction.
type Store interface {
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
}

// Tx exposes transactional get/put/delete handles for the three collections.
type Tx interface {
	GetAccount(ctx context.Context, userID string) (*domain.Account, error)
	CreateAccount(ctx context.Context, acc *domain.Account) (bool, error)
	PutAccount(ctx context.Context, acc *domain.Account) error

	GetTrade(ctx context.Context, userID, id string) (*domain.Trade, error)
	ListTrades(ctx context.Context, userID string, f trading.Filter) ([]domain.Trade, error)
	InsertTrade(ctx context.Context, t *domain.Trade) error
	PutTrade(ctx context.Context, t *domain.Trade) error
	DeleteTrade(ctx context.Context, userID, id string) error
	DeleteAllTrades(ctx context.Context, userID string) (int64, error)

	GetCashflow(ctx context.Context, userID, id string) (*domain.Cashflow, error)
	ListCashflows(ctx context.Context, userID string, from, to time.Time) ([]domain.Cashflow, error)
	InsertCashflow(ctx context.Context, cf *domain.Cashflow) error
	DeleteCashflow(ctx context.Context, userID, id string) error
	DeleteAllCashflows(ctx context.Context, userID string) (int64, error)
}

// SQLStore implements Store on journal.db using the module repositories.
type SQLStore struct {
	db        *database.DB
	accounts  *accounts.Repository
	trades    *trading.TradeRepository
	cashflows *cash_flows.Repository
}

// NewSQLStore creates a store over db.
func NewSQLStore(db *database.DB, acc *accounts.Repository, trades *trading.TradeRepository, cf *cash_flows.Repository) *SQLStore {
	return &SQLStore{db: db, accounts: acc, trades: trades, cashflows: cf}
}

// OpenSQLStore builds the repositories over db and returns a store.
func OpenSQLStore(db *database.DB, log zerolog.Logger) *SQLStore {
	conn := db.Conn()
	return NewSQLStore(db,
		accounts.NewRepository(conn, log),
		trading.NewTradeRepository(conn, log),
		cash_flows.NewRepository(conn, log))
}

// UserIDs lists every account owner.
func (s *SQLStore) UserIDs(ctx context.Context) ([]string, error) {
	return s.accounts.ListUserIDs(ctx)
}

// RunTransaction runs fn inside an immediate SQLite transaction with retries.
func (s *SQLStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.RunInTx(ctx, func(tx *sql.Tx) error {
		return fn(&sqlTx{
			accounts:  s.accounts.WithTx(tx),
			trades:    s.trades.WithTx(tx),
			cashflows: s.cashflows.WithTx(tx),
		})
	})
}

type sqlTx struct {
	accounts  *accounts.Repository
	trades    *trading.TradeRepository
	cashflows *cash_flows.Repository
}

func (t *sqlTx) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	return t.accounts.Get(ctx, userID)
}

func (t *sqlTx) CreateAccount(ctx context.Context, acc *domain.Account) (bool, error) {
	return t.accounts.CreateIfMissing(ctx, acc)
}

func (t *sqlTx) PutAccount(ctx context.Context, acc *domain.Account) error {
	return t.accounts.Update(ctx, acc)
}

func (t *sqlTx) GetTrade(ctx context.Context, userID, id string) (*domain.Trade, error) {
	return t.trades.Get(ctx, userID, id)
}

func (t *sqlTx) ListTrades(ctx context.Context, userID string, f trading.Filter) ([]domain.Trade, error) {
	return t.trades.List(ctx, userID, f)
}

func (t *sqlTx) InsertTrade(ctx context.Context, tr *domain.Trade) error {
	return t.trades.Insert(ctx, tr)
}

func (t *sqlTx) PutTrade(ctx context.Context, tr *domain.Trade) error {
	return t.trades.Update(ctx, tr)
}

func (t *sqlTx) DeleteTrade(ctx context.Context, userID, id string) error {
	return t.trades.Delete(ctx, userID, id)
}

func (t *sqlTx) DeleteAllTrades(ctx context.Context, userID string) (int64, error) {
	return t.trades.DeleteAll(ctx, userID)
}

func (t *sqlTx) GetCashflow(ctx context.Context, userID, id string) (*domain.Cashflow, error) {
	return t.cashflows.Get(ctx, userID, id)
}

func (t *sqlTx) ListCashflows(ctx context.Context, userID string, from, to time.Time) ([]domain.Cashflow, error) {
	return t.cashflows.List(ctx, userID, from, to)
}

func (t *sqlTx) InsertCashflow(ctx context.Context, cf *domain.Cashflow) error {
	return t.cashflows.Create(ctx, cf)
}

func (t *sqlTx) DeleteCashflow(ctx context.Context, userID, id string) error {
	return t.cashflows.Delete(ctx, userID, id)
}

func (t *sqlTx) DeleteAllCashflows(ctx context.Context, userID string) (int64, error) {
	return t.cashflows.DeleteAll(ctx, userID)
}
