package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RiskPolicy holds the percentages and multipliers used by the KPI engine,
// the dashboard analytics and position sizing.
type RiskPolicy struct {
	// MaxTradeLossPct is the per-trade loss limit as a percent of balance.
	MaxTradeLossPct float64 `json:"max_trade_loss_pct" yaml:"max_trade_loss_pct"`
	// MaxDayLossPct is the per-day loss limit as a percent of balance.
	MaxDayLossPct float64 `json:"max_day_loss_pct" yaml:"max_day_loss_pct"`
	// DailyGoalPct is the daily profit target as a percent of balance.
	DailyGoalPct    float64         `json:"daily_goal_pct" yaml:"daily_goal_pct"`
	PayoutRate      float64         `json:"payout_rate" yaml:"payout_rate"`
	DefaultCurrency string          `json:"default_currency" yaml:"default_currency"`
	SizeMultipliers SizeMultipliers `json:"size_multipliers" yaml:"size_multipliers"`
}

// SizeMultipliers map a trade kind to the balance multiple of its recommended size.
type SizeMultipliers struct {
	Short  float64 `json:"short" yaml:"short"`
	Normal float64 `json:"normal" yaml:"normal"`
	Long   float64 `json:"long" yaml:"long"`
}

// DefaultRiskPolicy returns the built-in policy.
func DefaultRiskPolicy() *RiskPolicy {
	return &RiskPolicy{
		MaxTradeLossPct: 3,
		MaxDayLossPct:   9,
		DailyGoalPct:    15,
		PayoutRate:      0.35,
		DefaultCurrency: "EUR",
		SizeMultipliers: SizeMultipliers{Short: 6, Normal: 3, Long: 1.8},
	}
}

// LoadRiskPolicy reads a policy file. YAML is tried first, then JSON.
// Fields missing from the file keep their default values.
func LoadRiskPolicy(path string) (*RiskPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	p := DefaultRiskPolicy()
	if err := yaml.Unmarshal(data, p); err != nil {
		p = DefaultRiskPolicy()
		if jsonErr := json.Unmarshal(data, p); jsonErr != nil {
			return nil, fmt.Errorf("parse policy (tried YAML and JSON): %w", err)
		}
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy %s: %w", path, err)
	}
	return p, nil
}

// Validate checks the policy's bounds.
func (p *RiskPolicy) Validate() error {
	if p.MaxTradeLossPct <= 0 || p.MaxTradeLossPct > 100 {
		return fmt.Errorf("max_trade_loss_pct must be in (0, 100]")
	}
	if p.MaxDayLossPct <= 0 || p.MaxDayLossPct > 100 {
		return fmt.Errorf("max_day_loss_pct must be in (0, 100]")
	}
	if p.DailyGoalPct <= 0 {
		return fmt.Errorf("daily_goal_pct must be positive")
	}
	if p.PayoutRate <= 0 || p.PayoutRate > 1 {
		return fmt.Errorf("payout_rate must be in (0, 1]")
	}
	if len(p.DefaultCurrency) != 3 {
		return fmt.Errorf("default_currency must be a three-letter code")
	}
	m := p.SizeMultipliers
	if m.Short <= 0 || m.Normal <= 0 || m.Long <= 0 {
		return fmt.Errorf("size_multipliers must all be positive")
	}
	return nil
}
