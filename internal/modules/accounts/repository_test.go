package accounts

import (
	"context"
	"database/sql"
	"testing"

	"github.com/aristath/tradejournal/internal/domain"
	testhelpers "github.com/aristath/tradejournal/internal/testing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_CreateGetUpdate(t *testing.T) {
	db, cleanup := testhelpers.NewTestDB(t)
	defer cleanup()
	ctx := context.Background()
	repo := NewRepository(db.Conn(), testhelpers.NopLogger())

	_, err := repo.Get(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	created, err := repo.CreateIfMissing(ctx, &domain.Account{UserID: "u1", Currency: domain.CurrencyEUR})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateIfMissing(ctx, &domain.Account{UserID: "u1", Currency: domain.CurrencyUSD})
	require.NoError(t, err)
	assert.False(t, created)

	acc, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.CurrencyEUR, acc.Currency)
	assert.False(t, acc.StartingBalance.Valid)
	assert.False(t, acc.CurrentBalance.Valid)
	assert.Empty(t, acc.MonthlyExpenses)

	acc.StartingBalance = decimal.NewNullDecimal(testhelpers.D("1000"))
	acc.CurrentBalance = decimal.NewNullDecimal(testhelpers.D("1000.25"))
	acc.MonthlyExpenses = map[string]decimal.Decimal{"2024-03": testhelpers.D("12.5")}
	require.NoError(t, repo.Update(ctx, acc))

	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.Starting().Equal(testhelpers.D("1000")))
	assert.True(t, got.Balance().Equal(testhelpers.D("1000.25")))
	assert.True(t, got.Expense("2024-03").Equal(testhelpers.D("12.5")))
}

func TestRepository_SetBalanceMissingAccount(t *testing.T) {
	db, cleanup := testhelpers.NewTestDB(t)
	defer cleanup()
	repo := NewRepository(db.Conn(), testhelpers.NopLogger())

	err := repo.SetBalance(context.Background(), "ghost", testhelpers.D("1"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepository_WithTxRollback(t *testing.T) {
	db, cleanup := testhelpers.NewTestDB(t)
	defer cleanup()
	ctx := context.Background()
	repo := NewRepository(db.Conn(), testhelpers.NopLogger())

	err := db.RunInTx(ctx, func(tx *sql.Tx) error {
		_, err := repo.WithTx(tx).CreateIfMissing(ctx, &domain.Account{UserID: "u1", Currency: domain.CurrencyEUR})
		require.NoError(t, err)
		return domain.ErrInvalidInput
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	ids, err := repo.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
