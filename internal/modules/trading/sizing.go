package trading

import (
	"github.com/aristath/tradejournal/internal/config"
	"github.com/aristath/tradejournal/internal/domain"
	"github.com/shopspring/decimal"
)

// Multiplier returns the balance multiple for a trade kind. Unknown kinds
// use the normal multiplier.
func Multiplier(kind domain.SizeKind, policy *config.RiskPolicy) decimal.Decimal {
	m := policy.SizeMultipliers
	switch kind {
	case domain.SizeKindShort:
		return decimal.NewFromFloat(m.Short)
	case domain.SizeKindLong:
		return decimal.NewFromFloat(m.Long)
	default:
		return decimal.NewFromFloat(m.Normal)
	}
}

// RecommendedSize is balanceBefore times the kind's multiplier.
func RecommendedSize(balanceBefore decimal.Decimal, kind domain.SizeKind, policy *config.RiskPolicy) decimal.Decimal {
	return balanceBefore.Mul(Multiplier(kind, policy)).Round(2)
}

// Oversized reports whether the trade's nominal size exceeds its
// recommended size. A trade with no recommendation is never oversized.
func Oversized(t *domain.Trade, policy *config.RiskPolicy) bool {
	rec := RecommendedSize(t.BalanceBefore, t.Kind, policy)
	return rec.IsPositive() && t.SizeUSD.GreaterThan(rec)
}

// SizingReport describes a trade against its recommended size.
type SizingReport struct {
	Recommended decimal.Decimal `json:"recommended"`
	Size        decimal.Decimal `json:"size"`
	Multiplier  decimal.Decimal `json:"multiplier"`
	Oversized   bool            `json:"oversized"`
}

// Sizing builds the sizing report for a trade.
func Sizing(t *domain.Trade, policy *config.RiskPolicy) SizingReport {
	return SizingReport{
		Recommended: RecommendedSize(t.BalanceBefore, t.Kind, policy),
		Size:        t.SizeUSD,
		Multiplier:  Multiplier(t.Kind, policy),
		Oversized:   Oversized(t, policy),
	}
}
