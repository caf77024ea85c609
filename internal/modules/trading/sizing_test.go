package trading

import (
	"testing"

	"github.com/aristath/tradejournal/internal/config"
	"github.com/aristath/tradejournal/internal/domain"
	testhelpers "github.com/aristath/tradejournal/internal/testing"
	"github.com/stretchr/testify/assert"
)

func TestRecommendedSize(t *testing.T) {
	policy := config.DefaultRiskPolicy()
	bal := testhelpers.D("1000")

	tests := []struct {
		kind domain.SizeKind
		want string
	}{
		{domain.SizeKindShort, "6000"},
		{domain.SizeKindNormal, "3000"},
		{domain.SizeKindLong, "1800"},
		{domain.SizeKind(""), "3000"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.True(t, testhelpers.D(tt.want).Equal(RecommendedSize(bal, tt.kind, policy)))
		})
	}
}

func TestOversized(t *testing.T) {
	policy := config.DefaultRiskPolicy()

	tr := &domain.Trade{Kind: domain.SizeKindLong, BalanceBefore: testhelpers.D("1000"), SizeUSD: testhelpers.D("1800")}
	assert.False(t, Oversized(tr, policy))

	tr.SizeUSD = testhelpers.D("1800.01")
	assert.True(t, Oversized(tr, policy))

	tr.BalanceBefore = testhelpers.D("0")
	assert.False(t, Oversized(tr, policy), "no recommendation means never oversized")

	rep := Sizing(&domain.Trade{Kind: domain.SizeKindShort, BalanceBefore: testhelpers.D("100"), SizeUSD: testhelpers.D("700")}, policy)
	assert.True(t, rep.Oversized)
	assert.True(t, testhelpers.D("600").Equal(rep.Recommended))
}
