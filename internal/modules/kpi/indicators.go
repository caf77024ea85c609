package kpi

import (
	"fmt"

	"github.com/aristath/tradejournal/internal/config"
	"github.com/shopspring/decimal"
)

func toneOf(v decimal.Decimal) Tone {
	if v.IsNegative() {
		return ToneNegative
	}
	return TonePositive
}

func indicators(s Summary, currency string, p *config.RiskPolicy) []Indicator {
	ddTone := Tone("")
	if s.MaxDD.IsNegative() {
		ddTone = ToneNegative
	}

	return []Indicator{
		{
			Key:         KeyPnL,
			Label:       "Period PnL",
			Value:       s.PnL,
			Tone:        toneOf(s.PnL),
			Suffix:      currency,
			Description: "Sum of net PnL of trades closed in the period.",
		},
		{
			Key:         KeyRetPct,
			Label:       "Return",
			Value:       s.RetPct,
			Tone:        toneOf(s.RetPct),
			Suffix:      "%",
			Description: "Percent change of equity over the period, relative to its start.",
		},
		{
			Key:         KeyTradesCount,
			Label:       "Trades",
			Value:       s.TradesCount,
			Description: "Trades closed within the period.",
		},
		{
			Key:         KeyWinRate,
			Label:       "Win rate",
			Value:       s.WinRate,
			Suffix:      "%",
			Description: "Share of trades with PnL >= 0.",
		},
		{
			Key:         KeyExpectancy,
			Label:       "Expectancy/trade",
			Value:       s.Expectancy,
			Tone:        toneOf(s.Expectancy),
			Suffix:      currency,
			Description: "Average net PnL per trade in the period.",
		},
		{
			Key:         KeyProfitFactor,
			Label:       "Profit factor",
			Value:       s.ProfitFactor,
			Description: "Gross profit / |gross loss| in the period.",
		},
		{
			Key:         KeyMaxDD,
			Label:       "Max drawdown",
			Value:       s.MaxDD,
			Tone:        ddTone,
			Suffix:      currency,
			Description: "Worst daily gap between equity and its running peak.",
		},
		{
			Key:         KeyAvgPerSession,
			Label:       "Average per session",
			Value:       s.AvgPerSession,
			Tone:        toneOf(s.AvgPerSession),
			Suffix:      currency,
			Description: "Average daily PnL over days with at least one trade.",
		},
		{
			Key:         KeyStreak,
			Label:       "Current streak",
			Value:       s.Streak.String(),
			Description: "Consecutive wins (W) or losses (L) at the end of the period.",
		},
		{
			Key:   KeyRiskViolations,
			Label: "Risk violations",
			Value: s.RiskViolations,
			Description: fmt.Sprintf("Trades losing more than %g%% of balance plus days losing more than %g%%.",
				p.MaxTradeLossPct, p.MaxDayLossPct),
		},
	}
}
