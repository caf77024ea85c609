package analytics

import (
	"github.com/aristath/tradejournal/internal/config"
	"github.com/shopspring/decimal"
)

// Payout is the month's payout position and its end-of-month projection.
type Payout struct {
	Rate              decimal.Decimal `json:"rate"`
	Base              decimal.Decimal `json:"base"`
	PayoutNow         decimal.Decimal `json:"payout_now"`
	Sessions          int             `json:"sessions"`
	Days              int             `json:"days"`
	SessionRate       decimal.Decimal `json:"session_rate"`
	AvgPerSession     decimal.Decimal `json:"avg_per_session"`
	RemainingSessions int64           `json:"remaining_sessions"`
	ProjectedPnL      decimal.Decimal `json:"projected_pnl"`
	ProjectedPayout   decimal.Decimal `json:"projected_payout"`
}

// PayoutFor computes the payout from a month summary. The base is month
// PnL minus expenses; payouts never go below zero. Remaining sessions are
// the month's session rate applied to the days left.
func PayoutFor(m Month, p *config.RiskPolicy) Payout {
	if p == nil {
		p = config.DefaultRiskPolicy()
	}
	rate := decimal.NewFromFloat(p.PayoutRate)
	out := Payout{
		Rate:          rate,
		Base:          m.PnL.Sub(m.Expenses),
		Sessions:      m.Sessions,
		Days:          len(m.Days),
		SessionRate:   decimal.Zero,
		AvgPerSession: decimal.Zero,
	}
	out.PayoutNow = decimal.Max(decimal.Zero, out.Base.Mul(rate)).Round(2)

	if out.Days > 0 {
		out.SessionRate = decimal.NewFromInt(int64(m.Sessions)).DivRound(decimal.NewFromInt(int64(out.Days)), 4)
	}
	if m.Sessions > 0 {
		out.AvgPerSession = m.PnL.DivRound(decimal.NewFromInt(int64(m.Sessions)), 2)
	}
	out.RemainingSessions = out.SessionRate.Mul(decimal.NewFromInt(int64(m.DaysLeft))).Round(0).IntPart()
	out.ProjectedPnL = m.PnL.Add(out.AvgPerSession.Mul(decimal.NewFromInt(out.RemainingSessions)))
	out.ProjectedPayout = decimal.Max(decimal.Zero, out.ProjectedPnL.Sub(m.Expenses).Mul(rate)).Round(2)
	return out
}
