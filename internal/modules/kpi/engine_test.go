package kpi

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/aristath/tradejournal/internal/domain"
	testhelpers "github.com/aristath/tradejournal/internal/testing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var d = testhelpers.D

func day(n, hour int) time.Time {
	return time.Date(2024, 3, n, hour, 0, 0, 0, time.UTC)
}

func window(from, to int) (time.Time, time.Time) {
	return day(from, 0), time.Date(2024, 3, to, 23, 59, 59, 999000000, time.UTC)
}

func indicator(t *testing.T, r Result, k Key) Indicator {
	t.Helper()
	for _, ind := range r.Indicators {
		if ind.Key == k {
			return ind
		}
	}
	t.Fatalf("indicator %s missing", k)
	return Indicator{}
}

func TestCompute_ThreeDayWindow(t *testing.T) {
	start, end := window(1, 3)
	r := Compute(Input{
		Trades: []domain.Trade{
			testhelpers.ClosedTrade("c", day(3, 10), "20"),
			testhelpers.ClosedTrade("a", day(1, 10), "50"),
			testhelpers.ClosedTrade("b", day(2, 10), "-30"),
		},
		Start:           start,
		End:             end,
		StartingBalance: d("1000"),
		CurrentBalance:  d("1040"),
		Location:        time.UTC,
	})

	s := r.Summary
	assert.True(t, s.EquityStart.Equal(d("1000")))
	assert.True(t, s.PnL.Equal(d("40")))
	assert.Equal(t, 3, s.TradesCount)
	assert.True(t, s.WinRate.Equal(d("66.67")), "win rate %s", s.WinRate)
	assert.True(t, s.MaxDD.Equal(d("-30")))
	assert.True(t, s.Expectancy.Equal(d("13.33")))
	assert.True(t, s.RetPct.Equal(d("4")))
	assert.Equal(t, "W1", s.Streak.String())
	assert.Equal(t, 3, s.Sessions)
	assert.True(t, s.AvgPerSession.Equal(d("13.33")))
	assert.True(t, s.ProfitFactor.Value.Equal(d("2.3333")))
	assert.False(t, s.ProfitFactor.Unbounded)
	assert.Equal(t, 0, s.RiskViolations)

	require.Len(t, r.Days, 3)
	assert.True(t, r.Days[0].Equity.Equal(d("1050")))
	assert.True(t, r.Days[1].Equity.Equal(d("1020")))
	assert.True(t, r.Days[1].Peak.Equal(d("1050")))
	assert.True(t, r.Days[1].Drawdown.Equal(d("-30")))
	assert.True(t, r.Days[2].Drawdown.Equal(d("-10")))
	assert.True(t, r.Days[2].CumulativePct.Equal(d("4")))

	assert.Len(t, r.Indicators, len(Keys))
	for i, k := range Keys {
		assert.Equal(t, k, r.Indicators[i].Key)
		assert.Contains(t, r.Charts, k)
	}

	pnlLine := r.Charts[KeyPnL]
	require.Len(t, pnlLine, 4)
	assert.Equal(t, Point{X: 0, Y: 0}, pnlLine[0])
	assert.Equal(t, Point{X: 3, Y: 40}, pnlLine[3])
	assert.Equal(t, []Point{{X: "03-01", Y: 0}, {X: "03-02", Y: -30}, {X: "03-03", Y: -10}}, r.Charts[KeyMaxDD])
	assert.Equal(t, []Point{{X: "Gross +", Y: 70}, {X: "Gross -", Y: -30}}, r.Charts[KeyProfitFactor])
	assert.Equal(t, []Point{{X: 1, Y: 1}, {X: 2, Y: -1}, {X: 3, Y: 1}}, r.Charts[KeyStreak])
}

func TestCompute_EmptyWindowIsAllZero(t *testing.T) {
	start, end := window(1, 7)
	r := Compute(Input{
		Start:           start,
		End:             end,
		StartingBalance: d("1000"),
		CurrentBalance:  d("1000"),
		Location:        time.UTC,
	})

	s := r.Summary
	assert.True(t, s.PnL.IsZero())
	assert.True(t, s.WinRate.IsZero())
	assert.True(t, s.Expectancy.IsZero())
	assert.True(t, s.ProfitFactor.Value.IsZero())
	assert.False(t, s.ProfitFactor.Unbounded)
	assert.True(t, s.AvgPerSession.IsZero())
	assert.True(t, s.MaxDD.IsZero())
	assert.Equal(t, 0, s.RiskViolations)
	assert.Equal(t, "—", s.Streak.String())
	assert.Len(t, r.Days, 7)

	assert.Equal(t, []Point{{X: 0, Y: 0}, {X: 1, Y: 0}}, r.Charts[KeyPnL])
	assert.Empty(t, r.Charts[KeyExpectancy])
	assert.Empty(t, r.Charts[KeyWinRate])
	assert.Equal(t, "—", indicator(t, r, KeyStreak).Value)

	_, err := json.Marshal(r)
	assert.NoError(t, err)
}

func TestCompute_ZeroStartingEquity(t *testing.T) {
	start, end := window(1, 1)
	r := Compute(Input{
		Trades:   []domain.Trade{testhelpers.ClosedTrade("a", day(1, 9), "10")},
		Start:    start,
		End:      end,
		Location: time.UTC,
	})
	assert.True(t, r.Summary.RetPct.IsZero())
	assert.True(t, r.Days[0].CumulativePct.IsZero())
}

func TestCompute_UnboundedProfitFactor(t *testing.T) {
	start, end := window(1, 2)
	r := Compute(Input{
		Trades: []domain.Trade{
			testhelpers.ClosedTrade("a", day(1, 9), "10"),
			testhelpers.ClosedTrade("b", day(2, 9), "0"),
		},
		Start:           start,
		End:             end,
		StartingBalance: d("100"),
		CurrentBalance:  d("110"),
		Location:        time.UTC,
	})

	pf := r.Summary.ProfitFactor
	assert.True(t, pf.Unbounded)
	assert.Equal(t, "∞", pf.String())
	assert.Equal(t, pf, indicator(t, r, KeyProfitFactor).Value)
	assert.Equal(t, "W2", r.Summary.Streak.String(), "zero pnl counts as a win")
}

func TestCompute_EquityStartIncludesHistory(t *testing.T) {
	start, end := window(10, 12)
	r := Compute(Input{
		Trades: []domain.Trade{
			testhelpers.ClosedTrade("old", day(2, 9), "100"),
			testhelpers.OpenTrade("open", day(3, 9)),
			testhelpers.ClosedTrade("in", day(11, 9), "-5"),
			testhelpers.ClosedTrade("late", day(20, 9), "999"),
		},
		Cashflows: []domain.Cashflow{
			testhelpers.Cashflow("dep", day(1, 9), "400"),
			testhelpers.Cashflow("wd", day(11, 12), "-50"),
		},
		Start:           start,
		End:             end,
		StartingBalance: d("500"),
		CurrentBalance:  d("1444"),
		Location:        time.UTC,
	})

	s := r.Summary
	assert.True(t, s.EquityStart.Equal(d("1000")))
	assert.True(t, s.NetCashflow.Equal(d("-50")))
	assert.True(t, s.EquityEnd.Equal(d("945")))
	assert.True(t, s.RetPct.Equal(d("-5.5")))
	assert.Equal(t, 1, s.TradesCount)
	assert.True(t, r.Days[len(r.Days)-1].Equity.Equal(d("995")), "daily equity ignores cashflows")
}

func TestCompute_RiskViolations(t *testing.T) {
	start, end := window(1, 2)
	r := Compute(Input{
		Trades: []domain.Trade{
			// balance 1000: trade limit -30, day limit -90
			testhelpers.ClosedTrade("a", day(1, 9), "-31"),
			testhelpers.ClosedTrade("b", day(1, 10), "-40"),
			testhelpers.ClosedTrade("c", day(1, 11), "-25"),
			testhelpers.ClosedTrade("d", day(2, 9), "-30"),
		},
		Start:           start,
		End:             end,
		StartingBalance: d("1126"),
		CurrentBalance:  d("1000"),
		Location:        time.UTC,
	})

	require.Len(t, r.Days, 2)
	assert.Equal(t, Violations{TradeLoss: 2, DayLoss: 1}, r.Days[0].Violations)
	assert.Equal(t, Violations{}, r.Days[1].Violations, "exactly at the limit is not a violation")
	assert.Equal(t, 3, r.Summary.RiskViolations)
	assert.Equal(t, []Point{{X: "03-01", Y: 3}, {X: "03-02", Y: 0}}, r.Charts[KeyRiskViolations])
	assert.Equal(t, "L4", r.Summary.Streak.String())
}

func TestCompute_DayBoundariesFollowLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, loc)
	end := time.Date(2024, 3, 2, 23, 59, 59, 999000000, loc)

	// 03:00 UTC on the 2nd is still the 1st in New York.
	closed := time.Date(2024, 3, 2, 3, 0, 0, 0, time.UTC)
	r := Compute(Input{
		Trades:          []domain.Trade{testhelpers.ClosedTrade("a", closed, "5")},
		Start:           start,
		End:             end,
		StartingBalance: d("100"),
		Location:        loc,
	})
	require.Len(t, r.Days, 2)
	assert.Len(t, r.Days[0].Trades, 1)
	assert.Empty(t, r.Days[1].Trades)
}

func TestCompute_DrawdownNeverPositive(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	start, end := window(1, 31)
	for round := 0; round < 25; round++ {
		var trades []domain.Trade
		for i := 0; i < rng.Intn(60); i++ {
			pnl := decimal.NewFromInt(int64(rng.Intn(200) - 100))
			at := day(1+rng.Intn(31), rng.Intn(24))
			trades = append(trades, testhelpers.ClosedTrade("t", at, pnl.String()))
		}
		r := Compute(Input{
			Trades:          trades,
			Start:           start,
			End:             end,
			StartingBalance: d("1000"),
			CurrentBalance:  d("1000"),
			Location:        time.UTC,
		})
		for _, agg := range r.Days {
			assert.False(t, agg.Drawdown.IsPositive(), "day %s drawdown %s", agg.Key, agg.Drawdown)
		}
		assert.False(t, r.Summary.MaxDD.IsPositive())
	}
}

func TestCompute_InvertedWindow(t *testing.T) {
	r := Compute(Input{Start: day(5, 0), End: day(1, 0), Location: time.UTC})
	assert.Empty(t, r.Days)
	assert.Equal(t, 0, r.Summary.TradesCount)
}

func TestCompute_StreakChartKeepsLastTwenty(t *testing.T) {
	var trades []domain.Trade
	for i := 0; i < 25; i++ {
		trades = append(trades, testhelpers.ClosedTrade("t", day(1, 0).Add(time.Duration(i)*time.Minute), "1"))
	}
	start, end := window(1, 1)
	r := Compute(Input{Trades: trades, Start: start, End: end, Location: time.UTC})
	assert.Len(t, r.Charts[KeyStreak], 20)
	assert.Len(t, r.Charts[KeyWinRate], 25)
	assert.Equal(t, "W25", r.Summary.Streak.String())
}

func TestHistogram(t *testing.T) {
	assert.Empty(t, Histogram(nil))

	bins := Histogram([]float64{-10, 0, 10, 20, 40})
	require.Len(t, bins, 5)
	// step 10: [-10,0) [0,10) [10,20) [20,30) [30,+inf)
	assert.Equal(t, []Point{{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 2, Y: 1}, {X: 3, Y: 1}, {X: 4, Y: 1}}, bins)

	same := Histogram([]float64{3, 3, 3})
	require.Len(t, same, 5)
	assert.Equal(t, float64(3), same[0].Y)

	many := make([]float64, 400)
	for i := range many {
		many[i] = float64(i)
	}
	wide := Histogram(many)
	assert.Len(t, wide, 14)
	total := 0.0
	for _, b := range wide {
		total += b.Y
	}
	assert.Equal(t, float64(400), total)
}
