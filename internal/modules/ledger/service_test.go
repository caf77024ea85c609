package ledger

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/aristath/tradejournal/internal/config"
	"github.com/aristath/tradejournal/internal/database"
	"github.com/aristath/tradejournal/internal/domain"
	"github.com/aristath/tradejournal/internal/events"
	"github.com/aristath/tradejournal/internal/modules/accounts"
	"github.com/aristath/tradejournal/internal/modules/cash_flows"
	"github.com/aristath/tradejournal/internal/modules/trading"
	testhelpers "github.com/aristath/tradejournal/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var d = testhelpers.D

type fixture struct {
	svc   *Service
	store *SQLStore
	db    *database.DB
	bus   *events.Bus
	accs  *accounts.Repository
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, cleanup := testhelpers.NewTestDB(t)
	t.Cleanup(cleanup)

	log := zerolog.Nop()
	accs := accounts.NewRepository(db.Conn(), log)
	store := NewSQLStore(db, accs, trading.NewTradeRepository(db.Conn(), log), cash_flows.NewRepository(db.Conn(), log))
	bus := events.NewBus(log)
	t.Cleanup(bus.Close)

	f := &fixture{
		store: store,
		db:    db,
		bus:   bus,
		accs:  accs,
		clock: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(store, events.NewManager(bus, log), config.DefaultRiskPolicy(), log)
	f.svc.SetClock(func() time.Time {
		f.clock = f.clock.Add(time.Minute)
		return f.clock
	})
	return f
}

func (f *fixture) onboard(t *testing.T, userID, balance string) {
	t.Helper()
	_, err := f.svc.EnsureAccount(context.Background(), userID)
	require.NoError(t, err)
	_, err = f.svc.SaveOnboarding(context.Background(), userID, d(balance), domain.CurrencyEUR)
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	acc, err := f.svc.GetAccount(context.Background(), userID)
	require.NoError(t, err)
	return acc.Balance()
}

func (f *fixture) assertBalanced(t *testing.T, userID string) {
	t.Helper()
	rec, err := f.svc.Reconcile(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, rec.Balanced(), "stored %s derived %s", rec.Stored, rec.Derived)
}

func TestCloseAndVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, "u1", "1000")

	tr, err := f.svc.OpenTrade(ctx, "u1", TradeDraft{Symbol: " btcusd ", RiskAmount: d("100"), Fees: d("10")})
	require.NoError(t, err)
	assert.Equal(t, "BTCUSD", tr.Symbol)
	assert.Equal(t, domain.SideLong, tr.Side)
	assert.Equal(t, domain.SizeKindNormal, tr.Kind)
	assert.Equal(t, domain.TradeStatusOpen, tr.Status)
	assert.False(t, tr.PnL.Valid)
	assert.Nil(t, tr.ClosedAt)
	assert.True(t, tr.BalanceBefore.Equal(d("1000")))
	assert.True(t, f.balance(t, "u1").Equal(d("1000")), "open has no balance effect")

	closed, err := f.svc.CloseTrade(ctx, "u1", tr.ID, d("150"), nil)
	require.NoError(t, err)
	assert.True(t, closed.NetPnL().Equal(d("140")))
	assert.True(t, closed.R.Equal(d("1.4")))
	assert.Equal(t, domain.TradeStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)
	assert.True(t, f.balance(t, "u1").Equal(d("1140")))

	require.NoError(t, f.svc.DeleteTrade(ctx, "u1", tr.ID))
	assert.True(t, f.balance(t, "u1").Equal(d("1000")))
	f.assertBalanced(t, "u1")
}

func TestCloseTrade_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, "u1", "1000")

	tr, err := f.svc.OpenTrade(ctx, "u1", TradeDraft{Symbol: "ES"})
	require.NoError(t, err)

	_, err = f.svc.CloseTrade(ctx, "u1", tr.ID, d("50"), nil)
	require.NoError(t, err)
	again, err := f.svc.CloseTrade(ctx, "u1", tr.ID, d("999"), nil)
	require.NoError(t, err)

	assert.True(t, again.NetPnL().Equal(d("50")), "second close keeps first pnl")
	assert.True(t, f.balance(t, "u1").Equal(d("1050")))
}

func TestCloseTrade_FeesOverrideAndZeroRisk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, "u1", "1000")

	tr, err := f.svc.OpenTrade(ctx, "u1", TradeDraft{Symbol: "NQ", Fees: d("1")})
	require.NoError(t, err)

	fees := d("5")
	closed, err := f.svc.CloseTrade(ctx, "u1", tr.ID, d("-20"), &fees)
	require.NoError(t, err)
	assert.True(t, closed.NetPnL().Equal(d("-25")))
	assert.True(t, closed.R.IsZero(), "no risk means r is 0")
	assert.True(t, f.balance(t, "u1").Equal(d("975")))

	neg := d("-1")
	_, err = f.svc.CloseTrade(ctx, "u1", tr.ID, d("1"), &neg)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCloseTrade_NotFound(t *testing.T) {
	f := newFixture(t)
	f.onboard(t, "u1", "1000")

	_, err := f.svc.CloseTrade(context.Background(), "u1", "missing", d("10"), nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.True(t, f.balance(t, "u1").Equal(d("1000")))
}

func TestCloseTrade_RejectsCloseBeforeOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, "u1", "1000")

	tr, err := f.svc.OpenTrade(ctx, "u1", TradeDraft{Symbol: "CL"})
	require.NoError(t, err)
	future := f.clock.Add(24 * time.Hour)
	_, err = f.svc.UpdateTrade(ctx, "u1", tr.ID, TradePatch{OpenAt: &future})
	require.NoError(t, err)

	_, err = f.svc.CloseTrade(ctx, "u1", tr.ID, d("10"), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	stored, err := f.svc.GetTrade(ctx, "u1", tr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusOpen, stored.Status)
	assert.True(t, f.balance(t, "u1").Equal(d("1000")))
}

func TestBalanceMovesRequireOnboarding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.EnsureAccount(ctx, "u1")
	require.NoError(t, err)

	_, err = f.svc.AddCashflow(ctx, "u1", d("100"), "")
	assert.ErrorIs(t, err, domain.ErrNotOnboarded)

	tr, err := f.svc.OpenTrade(ctx, "u1", TradeDraft{Symbol: "ES"})
	require.NoError(t, err)
	_, err = f.svc.CloseTrade(ctx, "u1", tr.ID, d("40"), nil)
	assert.ErrorIs(t, err, domain.ErrNotOnboarded)

	closed := domain.TradeStatusClosed
	pnl := d("40")
	_, err = f.svc.UpdateTrade(ctx, "u1", tr.ID, TradePatch{Status: &closed, PnL: &pnl})
	assert.ErrorIs(t, err, domain.ErrNotOnboarded)

	notes := "waiting for the open"
	_, err = f.svc.UpdateTrade(ctx, "u1", tr.ID, TradePatch{Notes: &notes})
	require.NoError(t, err, "edits without a balance effect are allowed")

	stored, err := f.svc.GetTrade(ctx, "u1", tr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusOpen, stored.Status)

	_, err = f.svc.SaveOnboarding(ctx, "u1", d("1000"), domain.CurrencyEUR)
	require.NoError(t, err)
	_, err = f.svc.AddCashflow(ctx, "u1", d("100"), "")
	require.NoError(t, err)
	_, err = f.svc.CloseTrade(ctx, "u1", tr.ID, d("40"), nil)
	require.NoError(t, err)

	assert.True(t, f.balance(t, "u1").Equal(d("1140")))
	f.assertBalanced(t, "u1")
}

func TestOpenTrade_Validation(t *testing.T) {
	f := newFixture(t)
	f.onboard(t, "u1", "1000")
	ctx := context.Background()

	tests := []struct {
		name  string
		draft TradeDraft
	}{
		{"empty symbol", TradeDraft{Symbol: "   "}},
		{"bad side", TradeDraft{Symbol: "X", Side: "sideways"}},
		{"bad kind", TradeDraft{Symbol: "X", Kind: "huge"}},
		{"negative fees", TradeDraft{Symbol: "X", Fees: d("-1")}},
		{"negative risk", TradeDraft{Symbol: "X", RiskAmount: d("-1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.OpenTrade(ctx, "u1", tt.draft)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	trades, err := f.svc.ListTrades(ctx, "u1", trading.Filter{})
	require.NoError(t, err)
	assert.Empty(t, trades)

	_, err = f.svc.OpenTrade(ctx, "nobody", TradeDraft{Symbol: "X"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOverdraftRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, "u1", "50")

	_, err := f.svc.AddCashflow(ctx, "u1", d("-100"), "withdraw")
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.True(t, f.balance(t, "u1").Equal(d("50")))

	cfs, err := f.svc.ListCashflows(ctx, "u1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, cfs)

	cf, err := f.svc.AddCashflow(ctx, "u1", d("-50"), "  all out  ")
	require.NoError(t, err)
	assert.Equal(t, "all out", cf.Note)
	assert.True(t, f.balance(t, "u1").IsZero())
}

func TestDeleteCashflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, "u1", "0")

	dep, err := f.svc.AddCashflow(ctx, "u1", d("100"), "deposit")
	require.NoError(t, err)
	wd, err := f.svc.AddCashflow(ctx, "u1", d("-80"), "withdraw")
	require.NoError(t, err)
	assert.True(t, f.balance(t, "u1").Equal(d("20")))

	err = f.svc.DeleteCashflow(ctx, "u1", dep.ID)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.True(t, f.balance(t, "u1").Equal(d("20")))
	_, err = f.store.cashflows.Get(ctx, "u1", dep.ID)
	assert.NoError(t, err, "rejected removal keeps the record")

	require.NoError(t, f.svc.DeleteCashflow(ctx, "u1", wd.ID))
	assert.True(t, f.balance(t, "u1").Equal(d("100")))

	assert.ErrorIs(t, f.svc.DeleteCashflow(ctx, "u1", wd.ID), domain.ErrNotFound)
	f.assertBalanced(t, "u1")
}

func TestEditTrade_Transitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, "u1", "1000")

	tr, err := f.svc.OpenTrade(ctx, "u1", TradeDraft{Symbol: "CL", RiskAmount: d("25")})
	require.NoError(t, err)

	closedStatus := domain.TradeStatusClosed
	openStatus := domain.TradeStatusOpen
	pnl := d("50")

	// open -> closed applies the full pnl
	edited, err := f.svc.UpdateTrade(ctx, "u1", tr.ID, TradePatch{Status: &closedStatus, PnL: &pnl})
	require.NoError(t, err)
	assert.True(t, f.balance(t, "u1").Equal(d("1050")))
	assert.True(t, edited.R.Equal(d("2")))
	require.NotNil(t, edited.ClosedAt)

	// closed -> closed applies the difference
	pnl2 := d("20")
	_, err = f.svc.UpdateTrade(ctx, "u1", tr.ID, TradePatch{PnL: &pnl2})
	require.NoError(t, err)
	assert.True(t, f.balance(t, "u1").Equal(d("1020")))

	// closed -> open reverses and clears
	reopened, err := f.svc.UpdateTrade(ctx, "u1", tr.ID, TradePatch{Status: &openStatus})
	require.NoError(t, err)
	assert.True(t, f.balance(t, "u1").Equal(d("1000")))
	assert.False(t, reopened.PnL.Valid)
	assert.Nil(t, reopened.ClosedAt)
	assert.True(t, reopened.R.IsZero())

	// open -> open changes nothing
	note := "review later"
	_, err = f.svc.UpdateTrade(ctx, "u1", tr.ID, TradePatch{Notes: &note})
	require.NoError(t, err)
	assert.True(t, f.balance(t, "u1").Equal(d("1000")))

	stored, err := f.svc.GetTrade(ctx, "u1", tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "review later", stored.Notes)
	assert.True(t, stored.BalanceBefore.Equal(d("1000")))
	f.assertBalanced(t, "u1")
}

func TestEditTrade_SymmetricRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, "u1", "1000")

	tr, err := f.svc.OpenTrade(ctx, "u1", TradeDraft{Symbol: "GC"})
	require.NoError(t, err)
	before := f.balance(t, "u1")

	next := *tr
	next.Status = domain.TradeStatusClosed
	next.PnL = decimal.NewNullDecimal(d("-33.5"))
	closed, err := f.svc.EditTrade(ctx, "u1", next)
	require.NoError(t, err)
	assert.True(t, f.balance(t, "u1").Equal(d("966.5")))

	back := *closed
	back.Status = domain.TradeStatusOpen
	_, err = f.svc.EditTrade(ctx, "u1", back)
	require.NoError(t, err)
	assert.True(t, f.balance(t, "u1").Equal(before))
}

func TestEditTrade_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, "u1", "1000")

	tr, err := f.svc.OpenTrade(ctx, "u1", TradeDraft{Symbol: "ZN"})
	require.NoError(t, err)

	next := *tr
	next.Status = domain.TradeStatusClosed
	_, err = f.svc.EditTrade(ctx, "u1", next)
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "closing needs a pnl")

	next = *tr
	next.Status = "pending"
	_, err = f.svc.EditTrade(ctx, "u1", next)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	next = *tr
	next.ID = "missing"
	_, err = f.svc.EditTrade(ctx, "u1", next)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.EditTrade(ctx, "u1", domain.Trade{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.True(t, f.balance(t, "u1").Equal(d("1000")))
}

func TestDeleteTrade_MissingAndOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, "u1", "1000")

	assert.NoError(t, f.svc.DeleteTrade(ctx, "u1", "missing"))

	tr, err := f.svc.OpenTrade(ctx, "u1", TradeDraft{Symbol: "6E"})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteTrade(ctx, "u1", tr.ID))
	assert.True(t, f.balance(t, "u1").Equal(d("1000")))
}

func TestAddMonthExpense_FloorsAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, "u1", "1000")

	total, err := f.svc.AddMonthExpense(ctx, "u1", 2024, time.March, d("40"))
	require.NoError(t, err)
	assert.True(t, total.Equal(d("40")))

	total, err = f.svc.AddMonthExpense(ctx, "u1", 2024, time.March, d("-100"))
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	acc, err := f.svc.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, acc.Expense("2024-03").IsZero())
	assert.True(t, acc.Balance().Equal(d("1000")), "expenses never touch the balance")

	_, err = f.svc.AddMonthExpense(ctx, "u1", 2024, 13, d("1"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSaveOnboarding_Once(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acc, err := f.svc.SaveOnboarding(ctx, "u1", d("2500"), "usd")
	require.NoError(t, err)
	assert.Equal(t, domain.CurrencyUSD, acc.Currency)
	assert.True(t, acc.Starting().Equal(d("2500")))
	assert.True(t, acc.Balance().Equal(d("2500")))

	_, err = f.svc.SaveOnboarding(ctx, "u1", d("1"), "EUR")
	assert.ErrorIs(t, err, domain.ErrAlreadyOnboarded)

	_, err = f.svc.SaveOnboarding(ctx, "u2", d("-1"), "EUR")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestResetAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, "u1", "1000")

	tr, err := f.svc.OpenTrade(ctx, "u1", TradeDraft{Symbol: "X"})
	require.NoError(t, err)
	_, err = f.svc.CloseTrade(ctx, "u1", tr.ID, d("10"), nil)
	require.NoError(t, err)
	_, err = f.svc.AddCashflow(ctx, "u1", d("5"), "")
	require.NoError(t, err)
	_, err = f.svc.AddMonthExpense(ctx, "u1", 2024, time.March, d("7"))
	require.NoError(t, err)

	acc, err := f.svc.ResetAccount(ctx, "u1", d("300"), "GBP")
	require.NoError(t, err)
	assert.True(t, acc.Starting().Equal(d("300")))
	assert.True(t, acc.Balance().Equal(d("300")))
	assert.Equal(t, domain.CurrencyGBP, acc.Currency)
	assert.True(t, acc.Expense("2024-03").Equal(d("7")))

	trades, err := f.svc.ListTrades(ctx, "u1", trading.Filter{})
	require.NoError(t, err)
	assert.Empty(t, trades)
	cfs, err := f.svc.ListCashflows(ctx, "u1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, cfs)
	f.assertBalanced(t, "u1")
}

func TestEnsureAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.bus.Subscribe(events.Filter{UserID: "u1", Types: []events.EventType{events.AccountCreated}}, 4)
	defer sub.Cancel()

	acc, err := f.svc.EnsureAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.CurrencyEUR, acc.Currency)
	assert.False(t, acc.Onboarded())

	_, err = f.svc.EnsureAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, sub.C, 1, "created event fires once")

	_, err = f.svc.EnsureAccount(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBalanceInvariant_RandomSequence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, "u1", "500")
	rng := rand.New(rand.NewSource(42))

	var open, closed, cashflows []string
	pick := func(ids []string) (string, []string) {
		i := rng.Intn(len(ids))
		id := ids[i]
		return id, append(append([]string{}, ids[:i]...), ids[i+1:]...)
	}
	amount := func() decimal.Decimal {
		return decimal.NewFromInt(int64(rng.Intn(400) - 200)).Div(decimal.NewFromInt(4))
	}

	for step := 0; step < 200; step++ {
		before := f.balance(t, "u1")
		var err error
		switch op := rng.Intn(7); {
		case op == 0 || len(open)+len(closed) == 0:
			var tr *domain.Trade
			tr, err = f.svc.OpenTrade(ctx, "u1", TradeDraft{Symbol: "R", RiskAmount: decimal.NewFromInt(10), Fees: d("0.5")})
			if err == nil {
				open = append(open, tr.ID)
			}
		case op == 1 && len(open) > 0:
			var id string
			id, open = pick(open)
			_, err = f.svc.CloseTrade(ctx, "u1", id, amount(), nil)
			closed = append(closed, id)
		case op == 2 && len(closed) > 0:
			id := closed[rng.Intn(len(closed))]
			pnl := amount()
			_, err = f.svc.UpdateTrade(ctx, "u1", id, TradePatch{PnL: &pnl})
		case op == 3 && len(closed) > 0:
			var id string
			id, closed = pick(closed)
			st := domain.TradeStatusOpen
			_, err = f.svc.UpdateTrade(ctx, "u1", id, TradePatch{Status: &st})
			open = append(open, id)
		case op == 4 && len(open)+len(closed) > 0:
			var id string
			if len(closed) > 0 {
				id, closed = pick(closed)
			} else {
				id, open = pick(open)
			}
			err = f.svc.DeleteTrade(ctx, "u1", id)
		case op == 5:
			var cf *domain.Cashflow
			cf, err = f.svc.AddCashflow(ctx, "u1", amount(), "")
			if err == nil {
				cashflows = append(cashflows, cf.ID)
			}
		case op == 6 && len(cashflows) > 0:
			i := rng.Intn(len(cashflows))
			err = f.svc.DeleteCashflow(ctx, "u1", cashflows[i])
			if err == nil {
				cashflows = append(cashflows[:i], cashflows[i+1:]...)
			}
		}

		if errors.Is(err, domain.ErrInsufficientBalance) {
			assert.True(t, f.balance(t, "u1").Equal(before), "rejected op changed balance")
		} else {
			require.NoError(t, err, "step %d", step)
		}
		f.assertBalanced(t, "u1")
	}
}

func TestConcurrentCashflows_NoLostUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, "u1", "0")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AddCashflow(ctx, "u1", d("1"), "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.True(t, f.balance(t, "u1").Equal(d("10")))
	f.assertBalanced(t, "u1")
}

type failingPutAccountTx struct {
	Tx
}

func (t failingPutAccountTx) PutAccount(context.Context, *domain.Account) error {
	return errors.New("disk full")
}

type failingStore struct {
	inner Store
}

func (s failingStore) RunTransaction(ctx context.Context, fn func(Tx) error) error {
	return s.inner.RunTransaction(ctx, func(tx Tx) error {
		return fn(failingPutAccountTx{tx})
	})
}

func TestCloseTrade_AtomicOnAccountWriteFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, "u1", "1000")

	tr, err := f.svc.OpenTrade(ctx, "u1", TradeDraft{Symbol: "X"})
	require.NoError(t, err)

	broken := NewService(failingStore{inner: f.store}, nil, nil, zerolog.Nop())
	_, err = broken.CloseTrade(ctx, "u1", tr.ID, d("100"), nil)
	require.Error(t, err)

	stored, err := f.svc.GetTrade(ctx, "u1", tr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusOpen, stored.Status, "trade write rolled back with the account write")
	assert.True(t, f.balance(t, "u1").Equal(d("1000")))
}

func TestMutationsEmitEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, "u1", "1000")

	sub := f.bus.Subscribe(events.Filter{UserID: "u1"}, 8)
	defer sub.Cancel()

	tr, err := f.svc.OpenTrade(ctx, "u1", TradeDraft{Symbol: "X"})
	require.NoError(t, err)
	_, err = f.svc.CloseTrade(ctx, "u1", tr.ID, d("12"), nil)
	require.NoError(t, err)

	var types []events.EventType
	for len(sub.C) > 0 {
		types = append(types, (<-sub.C).Type)
	}
	assert.Equal(t, []events.EventType{events.TradeOpened, events.TradeClosed}, types)
}

func TestReconcileAndRepair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, "u1", "1000")
	_, err := f.svc.AddCashflow(ctx, "u1", d("25"), "")
	require.NoError(t, err)

	require.NoError(t, f.accs.SetBalance(ctx, "u1", d("900")))

	rec, err := f.svc.Reconcile(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, rec.Balanced())
	assert.True(t, rec.Derived.Equal(d("1025")))
	assert.True(t, rec.Drift.Equal(d("-125")))

	rec, err = f.svc.Repair(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, rec.Repaired)
	assert.True(t, f.balance(t, "u1").Equal(d("1025")))

	rec, err = f.svc.Repair(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, rec.Repaired)
}
