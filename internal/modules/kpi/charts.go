package kpi

import (
	"math"

	"github.com/aristath/tradejournal/internal/domain"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	minBins      = 5
	maxBins      = 14
	streakWindow = 20
)

func charts(s Summary, trades []domain.Trade, days []DailyAggregate) map[Key][]Point {
	return map[Key][]Point{
		KeyPnL:            cumulativePnL(trades),
		KeyRetPct:         dayLine(days, func(d DailyAggregate) decimal.Decimal { return d.CumulativePct }),
		KeyTradesCount:    dayLine(days, func(d DailyAggregate) decimal.Decimal { return decimal.NewFromInt(int64(len(d.Trades))) }),
		KeyWinRate:        runningWinRate(trades),
		KeyExpectancy:     Histogram(pnlValues(trades)),
		KeyProfitFactor:   {{X: "Gross +", Y: s.GrossProfit.InexactFloat64()}, {X: "Gross -", Y: s.GrossLoss.Neg().InexactFloat64()}},
		KeyMaxDD:          dayLine(days, func(d DailyAggregate) decimal.Decimal { return d.Drawdown }),
		KeyAvgPerSession:  dayLine(days, func(d DailyAggregate) decimal.Decimal { return d.PnL }),
		KeyStreak:         outcomes(trades),
		KeyRiskViolations: dayLine(days, func(d DailyAggregate) decimal.Decimal { return decimal.NewFromInt(int64(d.Violations.Total())) }),
	}
}

func dayLabel(d DailyAggregate) string {
	return d.Date.Format("01-02")
}

func dayLine(days []DailyAggregate, y func(DailyAggregate) decimal.Decimal) []Point {
	out := make([]Point, 0, len(days))
	for _, d := range days {
		out = append(out, Point{X: dayLabel(d), Y: y(d).InexactFloat64()})
	}
	return out
}

// cumulativePnL starts at the origin and keeps at least two points so the
// line always renders.
func cumulativePnL(trades []domain.Trade) []Point {
	out := []Point{{X: 0, Y: 0}}
	acc := decimal.Zero
	for i, t := range trades {
		acc = acc.Add(t.NetPnL())
		out = append(out, Point{X: i + 1, Y: acc.InexactFloat64()})
	}
	if len(out) == 1 {
		out = append(out, Point{X: 1, Y: 0})
	}
	return out
}

func runningWinRate(trades []domain.Trade) []Point {
	out := make([]Point, 0, len(trades))
	wins := 0
	for i, t := range trades {
		if !t.NetPnL().IsNegative() {
			wins++
		}
		out = append(out, Point{X: i + 1, Y: float64(wins) / float64(i+1) * 100})
	}
	return out
}

func outcomes(trades []domain.Trade) []Point {
	if len(trades) > streakWindow {
		trades = trades[len(trades)-streakWindow:]
	}
	out := make([]Point, 0, len(trades))
	for i, t := range trades {
		y := 1.0
		if t.NetPnL().IsNegative() {
			y = -1
		}
		out = append(out, Point{X: i + 1, Y: y})
	}
	return out
}

func pnlValues(trades []domain.Trade) []float64 {
	out := make([]float64, 0, len(trades))
	for _, t := range trades {
		out = append(out, t.NetPnL().InexactFloat64())
	}
	return out
}

// Histogram bins values into clamp(ceil(sqrt(n)), 5, 14) equal-width bins
// spanning [min, max]. The maximum falls in the last bin. Bin i is reported
// as {X: i, Y: count}. An empty input yields no bins.
func Histogram(values []float64) []Point {
	if len(values) == 0 {
		return []Point{}
	}
	x := append([]float64(nil), values...)
	floats.Argsort(x, make([]int, len(x)))

	k := int(math.Ceil(math.Sqrt(float64(len(x)))))
	k = max(minBins, min(maxBins, k))
	lo, hi := x[0], x[len(x)-1]
	step := (hi - lo) / float64(k)
	if step == 0 {
		step = 1
	}

	// The open-ended last divider keeps the maximum inside bin k-1.
	dividers := make([]float64, k+1)
	for i := 0; i < k; i++ {
		dividers[i] = lo + float64(i)*step
	}
	dividers[k] = math.Inf(1)
	counts := stat.Histogram(nil, dividers, x, nil)

	out := make([]Point, k)
	for i, c := range counts {
		out[i] = Point{X: i, Y: c}
	}
	return out
}
