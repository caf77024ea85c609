// Package analytics derives the month dashboard figures: daily rows, the
// annual breakdown, payout projection, today's risk usage and pulse.
package analytics

import (
	"math"
	"time"

	"github.com/aristath/tradejournal/internal/domain"
	"github.com/aristath/tradejournal/internal/modules/timeframe"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DayRow is one calendar day of a month view.
type DayRow struct {
	Date        time.Time       `json:"date"`
	Key         string          `json:"key"`
	PnL         decimal.Decimal `json:"pnl"`
	Trades      int             `json:"trades"`
	HasTrades   bool            `json:"has_trades"`
	Drawdown    decimal.Decimal `json:"dd"`
	PctCumul    decimal.Decimal `json:"pct_cumul"`
	OpenEquity  decimal.Decimal `json:"open_equity"`
	CloseEquity decimal.Decimal `json:"close_equity"`
	IsToday     bool            `json:"is_today"`
}

// Month is the month dashboard summary.
type Month struct {
	Year         int             `json:"year"`
	Month        time.Month      `json:"month"`
	Label        string          `json:"label"`
	Days         []DayRow        `json:"days"`
	PnL          decimal.Decimal `json:"pnl"`
	Pct          decimal.Decimal `json:"pct"`
	ClosedTrades int             `json:"closed_trades"`
	TotalTrades  int             `json:"total_trades"`
	Wins         int             `json:"wins"`
	Losses       int             `json:"losses"`
	WinRate      decimal.Decimal `json:"win_rate"`
	AvgPerTrade  decimal.Decimal `json:"avg_per_trade"`
	Best         *DayRow         `json:"best,omitempty"`
	Worst        *DayRow         `json:"worst,omitempty"`
	Sessions     int             `json:"sessions"`
	IsCurrent    bool            `json:"is_current"`
	DaysLeft     int             `json:"days_left"`
	Expenses     decimal.Decimal `json:"expenses"`
	GrowthPct    decimal.Decimal `json:"growth_pct"`
}

// MonthInput is the data a month summary is built from.
type MonthInput struct {
	Account  *domain.Account
	Trades   []domain.Trade
	Year     int
	Month    time.Month
	Now      time.Time
	Location *time.Location
}

// dayOf is the calendar day a trade is shown on: its close day once closed,
// otherwise its open day.
func dayOf(t domain.Trade, loc *time.Location) string {
	when := t.OpenAt
	if t.IsClosed() && t.ClosedAt != nil {
		when = *t.ClosedAt
	}
	return when.In(loc).Format("2006-01-02")
}

// MonthSummary builds the month view. Daily equity starts from the starting
// balance plus every trade closed before the month, so drawdown and the
// cumulative percent are measured against the account's starting balance.
func MonthSummary(in MonthInput) Month {
	loc := in.Location
	if loc == nil {
		loc = time.Local
	}
	w := timeframe.MonthWindow(in.Year, in.Month, loc)

	starting, current := decimal.Zero, decimal.Zero
	expenses := decimal.Zero
	if in.Account != nil {
		starting = in.Account.Starting()
		current = in.Account.Balance()
		expenses = in.Account.Expense(domain.MonthKey(in.Year, in.Month))
	}

	m := Month{
		Year:     in.Year,
		Month:    in.Month,
		Label:    w.Label,
		PnL:      decimal.Zero,
		Expenses: expenses,
	}

	equity := starting
	byDay := map[string][]domain.Trade{}
	for _, t := range in.Trades {
		if t.IsClosed() && t.ClosedAt != nil {
			switch {
			case t.ClosedAt.Before(w.Start):
				equity = equity.Add(t.NetPnL())
			case w.Contains(*t.ClosedAt):
				m.PnL = m.PnL.Add(t.NetPnL())
				m.ClosedTrades++
				if t.NetPnL().IsNegative() {
					m.Losses++
				} else {
					m.Wins++
				}
			}
		}
		key := dayOf(t, loc)
		byDay[key] = append(byDay[key], t)
	}

	todayKey := in.Now.In(loc).Format("2006-01-02")
	peak := equity
	for day := w.Start; !day.After(w.End); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		list := byDay[key]
		row := DayRow{
			Date:       day,
			Key:        key,
			PnL:        decimal.Zero,
			Trades:     len(list),
			HasTrades:  len(list) > 0,
			OpenEquity: equity,
			IsToday:    key == todayKey,
		}
		for i := range list {
			row.PnL = row.PnL.Add(list[i].BalanceEffect())
		}
		equity = equity.Add(row.PnL)
		peak = decimal.Max(peak, equity)
		row.CloseEquity = equity
		row.Drawdown = equity.Sub(peak)
		row.PctCumul = percent(equity.Sub(starting), starting)
		m.Days = append(m.Days, row)
		m.TotalTrades += row.Trades
	}

	for i := range m.Days {
		row := &m.Days[i]
		if !row.HasTrades {
			continue
		}
		m.Sessions++
		if m.Best == nil || row.PnL.GreaterThan(m.Best.PnL) {
			m.Best = row
		}
		if m.Worst == nil || row.PnL.LessThan(m.Worst.PnL) {
			m.Worst = row
		}
	}

	m.Pct = percent(m.PnL, starting)
	m.WinRate = percent(decimal.NewFromInt(int64(m.Wins)), decimal.NewFromInt(int64(m.ClosedTrades)))
	if m.ClosedTrades > 0 {
		m.AvgPerTrade = m.PnL.DivRound(decimal.NewFromInt(int64(m.ClosedTrades)), 2)
	}
	m.GrowthPct = percent(current.Sub(starting), starting)

	now := in.Now.In(loc)
	m.IsCurrent = now.Year() == in.Year && now.Month() == in.Month
	if m.IsCurrent {
		m.DaysLeft = int(math.Max(0, math.Ceil(w.End.Sub(now).Hours()/24)))
	}
	return m
}

// MonthRow is one month of the annual view.
type MonthRow struct {
	Month   time.Month      `json:"month"`
	PnL     decimal.Decimal `json:"pnl"`
	Trades  int             `json:"trades"`
	WinRate decimal.Decimal `json:"win_rate"`
}

// Annual returns twelve rows of closed-trade results for year.
func Annual(trades []domain.Trade, year int, loc *time.Location) []MonthRow {
	if loc == nil {
		loc = time.Local
	}
	rows := make([]MonthRow, 12)
	wins := make([]int, 12)
	for i := range rows {
		rows[i] = MonthRow{Month: time.Month(i + 1), PnL: decimal.Zero, WinRate: decimal.Zero}
	}
	for _, t := range trades {
		if !t.IsClosed() || t.ClosedAt == nil {
			continue
		}
		at := t.ClosedAt.In(loc)
		if at.Year() != year {
			continue
		}
		i := int(at.Month()) - 1
		rows[i].PnL = rows[i].PnL.Add(t.NetPnL())
		rows[i].Trades++
		if !t.NetPnL().IsNegative() {
			wins[i]++
		}
	}
	for i := range rows {
		rows[i].WinRate = percent(decimal.NewFromInt(int64(wins[i])), decimal.NewFromInt(int64(rows[i].Trades)))
	}
	return rows
}

func percent(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Mul(hundred).DivRound(whole, 2)
}
