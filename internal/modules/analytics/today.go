package analytics

import (
	"sort"
	"time"

	"github.com/aristath/tradejournal/internal/config"
	"github.com/aristath/tradejournal/internal/domain"
	"github.com/aristath/tradejournal/internal/modules/kpi"
	"github.com/shopspring/decimal"
)

// RiskProgress is today's loss budget and goal usage.
type RiskProgress struct {
	PnLToday    decimal.Decimal `json:"pnl_today"`
	MaxPerTrade decimal.Decimal `json:"max_per_trade"`
	MaxDayLoss  decimal.Decimal `json:"max_day_loss"`
	UsedLoss    decimal.Decimal `json:"used_loss"`
	LossPct     decimal.Decimal `json:"loss_pct"`
	DayGoal     decimal.Decimal `json:"day_goal"`
	GoalHit     decimal.Decimal `json:"goal_hit"`
	GoalPct     decimal.Decimal `json:"goal_pct"`
}

// Pulse is the running PnL of today's closed trades.
type Pulse struct {
	PnL    decimal.Decimal `json:"pnl"`
	Trades int             `json:"trades"`
	Series []kpi.Point     `json:"series"`
}

func closedOn(trades []domain.Trade, day time.Time, loc *time.Location) []domain.Trade {
	key := day.In(loc).Format("2006-01-02")
	var out []domain.Trade
	for _, t := range trades {
		if t.IsClosed() && t.ClosedAt != nil && t.ClosedAt.In(loc).Format("2006-01-02") == key {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ClosedAt.Before(*out[j].ClosedAt) })
	return out
}

func share(balance decimal.Decimal, pct float64) decimal.Decimal {
	return decimal.Max(decimal.Zero, balance.Mul(decimal.NewFromFloat(pct)).Div(hundred))
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	return decimal.Min(decimal.Max(v, lo), hi)
}

// Risk reports how much of today's loss limit is used and how close the
// day is to its goal, both as a share of balance.
func Risk(trades []domain.Trade, balance decimal.Decimal, now time.Time, p *config.RiskPolicy, loc *time.Location) RiskProgress {
	if p == nil {
		p = config.DefaultRiskPolicy()
	}
	if loc == nil {
		loc = time.Local
	}

	pnl := decimal.Zero
	for _, t := range closedOn(trades, now, loc) {
		pnl = pnl.Add(t.NetPnL())
	}

	r := RiskProgress{
		PnLToday:    pnl,
		MaxPerTrade: share(balance, p.MaxTradeLossPct),
		MaxDayLoss:  share(balance, p.MaxDayLossPct),
		DayGoal:     share(balance, p.DailyGoalPct),
	}
	r.UsedLoss = clamp(pnl.Neg(), decimal.Zero, r.MaxDayLoss)
	r.LossPct = percent(r.UsedLoss, r.MaxDayLoss)
	r.GoalHit = clamp(pnl, decimal.Zero, r.DayGoal)
	r.GoalPct = percent(r.GoalHit, r.DayGoal)
	return r
}

// TodayPulse returns the cumulative PnL after each of today's closed trades.
// With no trades the series is a flat {0,0},{1,0}.
func TodayPulse(trades []domain.Trade, now time.Time, loc *time.Location) Pulse {
	if loc == nil {
		loc = time.Local
	}
	list := closedOn(trades, now, loc)

	p := Pulse{PnL: decimal.Zero, Trades: len(list)}
	for i, t := range list {
		p.PnL = p.PnL.Add(t.NetPnL())
		p.Series = append(p.Series, kpi.Point{X: i + 1, Y: p.PnL.InexactFloat64()})
	}
	if len(p.Series) == 0 {
		p.Series = []kpi.Point{{X: 0, Y: 0}, {X: 1, Y: 0}}
	}
	return p
}
