package kpi

import (
	"sort"
	"time"

	"github.com/aristath/tradejournal/internal/config"
	"github.com/aristath/tradejournal/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Compute aggregates the window [in.Start, in.End] (both inclusive).
// Divisions by zero yield zero; the only non-finite outcome is an
// unbounded profit factor, reported through ProfitFactor.Unbounded.
func Compute(in Input) Result {
	loc := in.Location
	if loc == nil {
		loc = time.Local
	}
	policy := in.Policy
	if policy == nil {
		policy = config.DefaultRiskPolicy()
	}

	equityStart, inWindow, netCash := partition(in)

	days := walkDays(in.Start, in.End, loc, equityStart, inWindow, limits(in.CurrentBalance, policy))
	s := summarize(inWindow, days)
	s.EquityStart = equityStart
	s.NetCashflow = netCash
	s.EquityEnd = equityStart.Add(s.PnL).Add(netCash)
	s.RetPct = percent(s.EquityEnd.Sub(equityStart), equityStart)

	return Result{
		Start:      in.Start,
		End:        in.End,
		Summary:    s,
		Days:       days,
		Indicators: indicators(s, in.Currency, policy),
		Charts:     charts(s, inWindow, days),
	}
}

// partition computes the equity at window start and returns the window's
// closed trades ordered by close time, plus its net cashflow.
func partition(in Input) (decimal.Decimal, []domain.Trade, decimal.Decimal) {
	equity := in.StartingBalance
	var window []domain.Trade
	for _, t := range in.Trades {
		if !t.IsClosed() || t.ClosedAt == nil {
			continue
		}
		switch {
		case t.ClosedAt.Before(in.Start):
			equity = equity.Add(t.NetPnL())
		case !t.ClosedAt.After(in.End):
			window = append(window, t)
		}
	}
	sort.SliceStable(window, func(i, j int) bool {
		return window[i].ClosedAt.Before(*window[j].ClosedAt)
	})

	net := decimal.Zero
	for _, cf := range in.Cashflows {
		switch {
		case cf.TS.Before(in.Start):
			equity = equity.Add(cf.Amount)
		case !cf.TS.After(in.End):
			net = net.Add(cf.Amount)
		}
	}
	return equity, window, net
}

type riskLimits struct {
	trade decimal.Decimal
	day   decimal.Decimal
}

func limits(balance decimal.Decimal, p *config.RiskPolicy) riskLimits {
	return riskLimits{
		trade: balance.Mul(decimal.NewFromFloat(p.MaxTradeLossPct)).Div(hundred).Neg(),
		day:   balance.Mul(decimal.NewFromFloat(p.MaxDayLossPct)).Div(hundred).Neg(),
	}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// walkDays steps through every calendar day touching the window. Equity
// moves by closed trade PnL only; cashflows are not part of the walk.
func walkDays(start, end time.Time, loc *time.Location, equityStart decimal.Decimal, trades []domain.Trade, lim riskLimits) []DailyAggregate {
	if end.Before(start) {
		return nil
	}

	var (
		days   []DailyAggregate
		equity = equityStart
		peak   = equityStart
		next   int
	)
	for day := startOfDay(start, loc); !day.After(end); day = day.AddDate(0, 0, 1) {
		dayEnd := day.AddDate(0, 0, 1)
		agg := DailyAggregate{
			Date:   day,
			Key:    day.Format("2006-01-02"),
			Trades: []domain.Trade{},
			PnL:    decimal.Zero,
		}
		for next < len(trades) && trades[next].ClosedAt.Before(dayEnd) {
			t := trades[next]
			next++
			pnl := t.NetPnL()
			agg.Trades = append(agg.Trades, t)
			agg.PnL = agg.PnL.Add(pnl)
			if pnl.IsNegative() {
				agg.Losses++
			} else {
				agg.Wins++
			}
			if pnl.LessThan(lim.trade) {
				agg.Violations.TradeLoss++
			}
		}
		if agg.PnL.LessThan(lim.day) {
			agg.Violations.DayLoss = 1
		}

		equity = equity.Add(agg.PnL)
		peak = decimal.Max(peak, equity)
		agg.Equity = equity
		agg.Peak = peak
		agg.Drawdown = equity.Sub(peak)
		agg.CumulativePct = percent(equity.Sub(equityStart), equityStart)
		days = append(days, agg)
	}
	return days
}

func summarize(trades []domain.Trade, days []DailyAggregate) Summary {
	s := Summary{
		PnL:         decimal.Zero,
		GrossProfit: decimal.Zero,
		GrossLoss:   decimal.Zero,
		MaxDD:       decimal.Zero,
		TradesCount: len(trades),
	}

	for _, t := range trades {
		pnl := t.NetPnL()
		s.PnL = s.PnL.Add(pnl)
		if !pnl.IsNegative() {
			s.Wins++
		}
		switch {
		case pnl.IsPositive():
			s.GrossProfit = s.GrossProfit.Add(pnl)
		case pnl.IsNegative():
			s.GrossLoss = s.GrossLoss.Add(pnl.Abs())
		}
	}
	s.WinRate = percent(decimal.NewFromInt(int64(s.Wins)), decimal.NewFromInt(int64(s.TradesCount)))
	s.Expectancy = average(s.PnL, s.TradesCount)
	s.ProfitFactor = profitFactor(s.GrossProfit, s.GrossLoss)
	s.Streak = currentStreak(trades)

	sessionPnL := decimal.Zero
	for _, d := range days {
		s.MaxDD = decimal.Min(s.MaxDD, d.Drawdown)
		s.RiskViolations += d.Violations.Total()
		if len(d.Trades) > 0 {
			s.Sessions++
			sessionPnL = sessionPnL.Add(d.PnL)
		}
	}
	s.AvgPerSession = average(sessionPnL, s.Sessions)
	return s
}

func profitFactor(grossProfit, grossLoss decimal.Decimal) ProfitFactor {
	if grossLoss.IsPositive() {
		return ProfitFactor{Value: grossProfit.DivRound(grossLoss, 4)}
	}
	if grossProfit.IsPositive() {
		return ProfitFactor{Value: decimal.Zero, Unbounded: true}
	}
	return ProfitFactor{Value: decimal.Zero}
}

func currentStreak(trades []domain.Trade) Streak {
	var s Streak
	for i := len(trades) - 1; i >= 0; i-- {
		outcome := byte('W')
		if trades[i].NetPnL().IsNegative() {
			outcome = 'L'
		}
		if s.Outcome == 0 {
			s.Outcome = outcome
		} else if s.Outcome != outcome {
			break
		}
		s.Length++
	}
	return s
}

// percent returns part/whole*100 rounded to two places, or zero when whole
// is not positive.
func percent(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Mul(hundred).DivRound(whole, 2)
}

func average(sum decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return sum.DivRound(decimal.NewFromInt(int64(n)), 2)
}
