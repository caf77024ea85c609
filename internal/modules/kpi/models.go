// Package kpi turns a snapshot of trades and cashflows into the journal's
// ten performance indicators and their chart series. Nothing here touches
// storage; Compute is a pure function of its Input.
package kpi

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/tradejournal/internal/config"
	"github.com/aristath/tradejournal/internal/domain"
	"github.com/shopspring/decimal"
)

// Key identifies an indicator and its chart.
type Key string

const (
	KeyPnL            Key = "pnl"
	KeyRetPct         Key = "retPct"
	KeyTradesCount    Key = "tradesCount"
	KeyWinRate        Key = "winRate"
	KeyExpectancy     Key = "expectancy"
	KeyProfitFactor   Key = "profitFactor"
	KeyMaxDD          Key = "maxDD"
	KeyAvgPerSession  Key = "avgPerSession"
	KeyStreak         Key = "streak"
	KeyRiskViolations Key = "riskViolations"
)

// Keys lists the indicators in display order.
var Keys = []Key{
	KeyPnL, KeyRetPct, KeyTradesCount, KeyWinRate, KeyExpectancy,
	KeyProfitFactor, KeyMaxDD, KeyAvgPerSession, KeyStreak, KeyRiskViolations,
}

// Tone hints how a value should be coloured.
type Tone string

const (
	TonePositive Tone = "pos"
	ToneNegative Tone = "neg"
)

// Input is everything Compute needs. Trades and Cashflows are the user's
// full history; the window selects what is aggregated.
type Input struct {
	Trades          []domain.Trade
	Cashflows       []domain.Cashflow
	Start           time.Time
	End             time.Time
	StartingBalance decimal.Decimal
	CurrentBalance  decimal.Decimal
	// Location defines calendar day boundaries. Defaults to time.Local.
	Location *time.Location
	// Policy supplies the risk limits. Defaults to config.DefaultRiskPolicy.
	Policy   *config.RiskPolicy
	Currency string
}

// ProfitFactor is gross profit over absolute gross loss. Unbounded is set
// when there is profit but no loss; Value is then zero and meaningless.
type ProfitFactor struct {
	Value     decimal.Decimal `json:"value"`
	Unbounded bool            `json:"unbounded"`
}

func (p ProfitFactor) String() string {
	if p.Unbounded {
		return "∞"
	}
	return p.Value.StringFixed(2)
}

// Streak is the run of same-outcome trades at the end of the window.
type Streak struct {
	// Outcome is 'W', 'L' or 0 when there were no trades.
	Outcome byte
	Length  int
}

func (s Streak) String() string {
	if s.Outcome == 0 {
		return "—"
	}
	return fmt.Sprintf("%c%d", s.Outcome, s.Length)
}

// MarshalJSON encodes the streak as its label, e.g. "W4".
func (s Streak) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Violations counts risk limit breaches on one day.
type Violations struct {
	TradeLoss int `json:"trade_loss"`
	DayLoss   int `json:"day_loss"`
}

// Total is the day's violation count.
func (v Violations) Total() int {
	return v.TradeLoss + v.DayLoss
}

// DailyAggregate is one calendar day of the window walk.
type DailyAggregate struct {
	Date          time.Time       `json:"date"`
	Key           string          `json:"key"`
	Trades        []domain.Trade  `json:"trades"`
	PnL           decimal.Decimal `json:"pnl"`
	Wins          int             `json:"wins"`
	Losses        int             `json:"losses"`
	Equity        decimal.Decimal `json:"equity"`
	Peak          decimal.Decimal `json:"peak"`
	Drawdown      decimal.Decimal `json:"drawdown"`
	CumulativePct decimal.Decimal `json:"cumulative_pct"`
	Violations    Violations      `json:"violations"`
}

// Summary holds the typed aggregates behind the indicator list.
type Summary struct {
	EquityStart    decimal.Decimal `json:"equity_start"`
	EquityEnd      decimal.Decimal `json:"equity_end"`
	PnL            decimal.Decimal `json:"pnl"`
	RetPct         decimal.Decimal `json:"ret_pct"`
	TradesCount    int             `json:"trades_count"`
	Wins           int             `json:"wins"`
	WinRate        decimal.Decimal `json:"win_rate"`
	Expectancy     decimal.Decimal `json:"expectancy"`
	GrossProfit    decimal.Decimal `json:"gross_profit"`
	GrossLoss      decimal.Decimal `json:"gross_loss"`
	ProfitFactor   ProfitFactor    `json:"profit_factor"`
	MaxDD          decimal.Decimal `json:"max_dd"`
	Sessions       int             `json:"sessions"`
	AvgPerSession  decimal.Decimal `json:"avg_per_session"`
	Streak         Streak          `json:"streak"`
	RiskViolations int             `json:"risk_violations"`
	NetCashflow    decimal.Decimal `json:"net_cashflow"`
}

// Indicator is one display card.
type Indicator struct {
	Key         Key         `json:"key"`
	Label       string      `json:"label"`
	Value       interface{} `json:"value"`
	Tone        Tone        `json:"tone,omitempty"`
	Suffix      string      `json:"suffix,omitempty"`
	Description string      `json:"description"`
}

// Point is one chart sample. X is an index or a day label.
type Point struct {
	X interface{} `json:"x"`
	Y float64     `json:"y"`
}

// Result is the full engine output.
type Result struct {
	Start      time.Time        `json:"start"`
	End        time.Time        `json:"end"`
	Summary    Summary          `json:"summary"`
	Days       []DailyAggregate `json:"days"`
	Indicators []Indicator      `json:"indicators"`
	Charts     map[Key][]Point  `json:"charts"`
}
