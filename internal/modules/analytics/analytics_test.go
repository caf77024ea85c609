package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/tradejournal/internal/config"
	"github.com/aristath/tradejournal/internal/domain"
	"github.com/aristath/tradejournal/internal/modules/kpi"
	"github.com/aristath/tradejournal/internal/modules/ledger"
	testhelpers "github.com/aristath/tradejournal/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var d = testhelpers.D

func at(month time.Month, day, hour int) time.Time {
	return time.Date(2024, month, day, hour, 0, 0, 0, time.UTC)
}

func marchAccount() *domain.Account {
	return &domain.Account{
		UserID:          "u1",
		Currency:        domain.CurrencyEUR,
		StartingBalance: decimal.NewNullDecimal(d("1000")),
		CurrentBalance:  decimal.NewNullDecimal(d("1100")),
		MonthlyExpenses: map[string]decimal.Decimal{"2024-03": d("20")},
	}
}

func marchTrades() []domain.Trade {
	return []domain.Trade{
		testhelpers.ClosedTrade("feb", at(time.February, 15, 10), "50"),
		testhelpers.ClosedTrade("m1", at(time.March, 2, 10), "100"),
		testhelpers.ClosedTrade("m2", at(time.March, 2, 14), "-20"),
		testhelpers.ClosedTrade("m3", at(time.March, 5, 10), "-30"),
		testhelpers.OpenTrade("open", at(time.March, 7, 9)),
	}
}

func TestMonthSummary(t *testing.T) {
	m := MonthSummary(MonthInput{
		Account:  marchAccount(),
		Trades:   marchTrades(),
		Year:     2024,
		Month:    time.March,
		Now:      at(time.March, 10, 12),
		Location: time.UTC,
	})

	require.Len(t, m.Days, 31)
	assert.True(t, m.PnL.Equal(d("50")))
	assert.Equal(t, 3, m.ClosedTrades)
	assert.Equal(t, 4, m.TotalTrades, "open trades count on their open day")
	assert.Equal(t, 1, m.Wins)
	assert.Equal(t, 2, m.Losses)
	assert.True(t, m.WinRate.Equal(d("33.33")))
	assert.True(t, m.Pct.Equal(d("5")))
	assert.True(t, m.AvgPerTrade.Equal(d("16.67")))
	assert.True(t, m.GrowthPct.Equal(d("10")))
	assert.True(t, m.Expenses.Equal(d("20")))
	assert.Equal(t, 3, m.Sessions)
	assert.True(t, m.IsCurrent)
	assert.Equal(t, 22, m.DaysLeft)

	day2 := m.Days[1]
	assert.True(t, day2.OpenEquity.Equal(d("1050")), "february pnl carried in")
	assert.True(t, day2.CloseEquity.Equal(d("1130")))
	assert.True(t, day2.PctCumul.Equal(d("13")))
	assert.True(t, m.Days[4].Drawdown.Equal(d("-30")))
	assert.True(t, m.Days[6].HasTrades)
	assert.True(t, m.Days[6].PnL.IsZero())
	assert.True(t, m.Days[9].IsToday)

	require.NotNil(t, m.Best)
	require.NotNil(t, m.Worst)
	assert.Equal(t, "2024-03-02", m.Best.Key)
	assert.Equal(t, "2024-03-05", m.Worst.Key)
}

func TestMonthSummary_PastMonthAndNoAccount(t *testing.T) {
	m := MonthSummary(MonthInput{
		Trades:   marchTrades(),
		Year:     2024,
		Month:    time.February,
		Now:      at(time.March, 10, 12),
		Location: time.UTC,
	})
	assert.Len(t, m.Days, 29)
	assert.False(t, m.IsCurrent)
	assert.Equal(t, 0, m.DaysLeft)
	assert.True(t, m.Pct.IsZero(), "no starting balance means no percentages")
	assert.True(t, m.PnL.Equal(d("50")))
}

func TestPayoutFor(t *testing.T) {
	m := MonthSummary(MonthInput{
		Account:  marchAccount(),
		Trades:   marchTrades(),
		Year:     2024,
		Month:    time.March,
		Now:      at(time.March, 10, 12),
		Location: time.UTC,
	})
	p := PayoutFor(m, nil)

	assert.True(t, p.Base.Equal(d("30")))
	assert.True(t, p.PayoutNow.Equal(d("10.5")))
	assert.True(t, p.SessionRate.Equal(d("0.0968")))
	assert.True(t, p.AvgPerSession.Equal(d("16.67")))
	assert.Equal(t, int64(2), p.RemainingSessions)
	assert.True(t, p.ProjectedPnL.Equal(d("83.34")))
	assert.True(t, p.ProjectedPayout.Equal(d("22.17")))
}

func TestPayoutFor_NeverNegative(t *testing.T) {
	m := Month{PnL: d("-100"), Expenses: d("10"), Days: make([]DayRow, 30)}
	p := PayoutFor(m, config.DefaultRiskPolicy())
	assert.True(t, p.PayoutNow.IsZero())
	assert.True(t, p.ProjectedPayout.IsZero())
	assert.True(t, p.AvgPerSession.IsZero())
}

func TestAnnual(t *testing.T) {
	rows := Annual(marchTrades(), 2024, time.UTC)
	require.Len(t, rows, 12)
	assert.Equal(t, time.January, rows[0].Month)
	assert.Equal(t, 1, rows[1].Trades)
	assert.True(t, rows[1].WinRate.Equal(d("100")))
	assert.Equal(t, 3, rows[2].Trades)
	assert.True(t, rows[2].PnL.Equal(d("50")))
	assert.True(t, rows[2].WinRate.Equal(d("33.33")))
	assert.Equal(t, 0, rows[11].Trades)

	assert.Equal(t, 0, Annual(marchTrades(), 2023, time.UTC)[1].Trades)
}

func TestRisk(t *testing.T) {
	now := at(time.March, 5, 18)
	trades := []domain.Trade{
		testhelpers.ClosedTrade("a", at(time.March, 5, 9), "-50"),
		testhelpers.ClosedTrade("b", at(time.March, 5, 11), "10"),
		testhelpers.ClosedTrade("y", at(time.March, 4, 11), "-500"),
	}
	r := Risk(trades, d("1000"), now, nil, time.UTC)
	assert.True(t, r.PnLToday.Equal(d("-40")))
	assert.True(t, r.MaxPerTrade.Equal(d("30")))
	assert.True(t, r.MaxDayLoss.Equal(d("90")))
	assert.True(t, r.UsedLoss.Equal(d("40")))
	assert.True(t, r.LossPct.Equal(d("44.44")))
	assert.True(t, r.DayGoal.Equal(d("150")))
	assert.True(t, r.GoalHit.IsZero())

	win := []domain.Trade{testhelpers.ClosedTrade("w", at(time.March, 5, 9), "200")}
	r = Risk(win, d("1000"), now, nil, time.UTC)
	assert.True(t, r.GoalHit.Equal(d("150")))
	assert.True(t, r.GoalPct.Equal(d("100")))
	assert.True(t, r.UsedLoss.IsZero())

	r = Risk(nil, decimal.Zero, now, nil, time.UTC)
	assert.True(t, r.LossPct.IsZero())
	assert.True(t, r.GoalPct.IsZero())
}

func TestTodayPulse(t *testing.T) {
	now := at(time.March, 5, 18)
	p := TodayPulse(nil, now, time.UTC)
	assert.Equal(t, []kpi.Point{{X: 0, Y: 0}, {X: 1, Y: 0}}, p.Series)
	assert.Equal(t, 0, p.Trades)

	p = TodayPulse([]domain.Trade{
		testhelpers.ClosedTrade("b", at(time.March, 5, 11), "10"),
		testhelpers.ClosedTrade("a", at(time.March, 5, 9), "-50"),
		testhelpers.OpenTrade("o", at(time.March, 5, 12)),
	}, now, time.UTC)
	assert.Equal(t, 2, p.Trades)
	assert.True(t, p.PnL.Equal(d("-40")))
	assert.Equal(t, []kpi.Point{{X: 1, Y: -50}, {X: 2, Y: -40}}, p.Series)
}

type stubReader struct {
	snap ledger.Snapshot
	err  error
}

func (s stubReader) Snapshot(context.Context, string, ledger.Query) (ledger.Snapshot, error) {
	return s.snap, s.err
}

func TestService(t *testing.T) {
	reader := stubReader{snap: ledger.Snapshot{Account: marchAccount(), Trades: marchTrades()}}
	svc := NewService(reader, nil, time.UTC, zerolog.Nop())
	svc.SetClock(func() time.Time { return at(time.March, 2, 20) })
	ctx := context.Background()

	rep, err := svc.Month(ctx, "u1", 2024, time.March)
	require.NoError(t, err)
	assert.True(t, rep.Summary.PnL.Equal(d("50")))
	assert.True(t, rep.Payout.PayoutNow.Equal(d("10.5")))

	_, err = svc.Month(ctx, "u1", 2024, 13)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	rows, err := svc.Annual(ctx, "u1", 2024)
	require.NoError(t, err)
	assert.Len(t, rows, 12)

	risk, err := svc.Risk(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, risk.PnLToday.Equal(d("80")))

	pulse, err := svc.Today(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, pulse.Trades)

	failing := NewService(stubReader{err: errors.New("boom")}, nil, time.UTC, zerolog.Nop())
	_, err = failing.Today(ctx, "u1")
	assert.Error(t, err)
}
