package analytics

import (
	"context"
	"time"

	"github.com/aristath/tradejournal/internal/config"
	"github.com/aristath/tradejournal/internal/domain"
	"github.com/aristath/tradejournal/internal/modules/kpi"
	"github.com/aristath/tradejournal/internal/modules/ledger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// MonthReport bundles the month summary with its payout.
type MonthReport struct {
	Summary Month  `json:"summary"`
	Payout  Payout `json:"payout"`
}

// Service serves dashboard analytics from stored journals.
type Service struct {
	reader kpi.SnapshotReader
	policy *config.RiskPolicy
	loc    *time.Location
	now    func() time.Time
	log    zerolog.Logger
}

// NewService creates an analytics service.
func NewService(reader kpi.SnapshotReader, policy *config.RiskPolicy, loc *time.Location, log zerolog.Logger) *Service {
	if policy == nil {
		policy = config.DefaultRiskPolicy()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		reader: reader,
		policy: policy,
		loc:    loc,
		now:    time.Now,
		log:    log.With().Str("service", "analytics").Logger(),
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Now returns the current time in the service location.
func (s *Service) Now() time.Time {
	return s.now().In(s.loc)
}

func (s *Service) journal(ctx context.Context, userID string) (ledger.Snapshot, error) {
	return s.reader.Snapshot(ctx, userID, ledger.Query{Kind: ledger.QueryJournal})
}

// Month returns the summary and payout for a calendar month.
func (s *Service) Month(ctx context.Context, userID string, year int, month time.Month) (MonthReport, error) {
	if month < time.January || month > time.December {
		return MonthReport{}, domain.InvalidInputf("month must be 1-12, got %d", month)
	}
	snap, err := s.journal(ctx, userID)
	if err != nil {
		return MonthReport{}, err
	}
	m := MonthSummary(MonthInput{
		Account:  snap.Account,
		Trades:   snap.Trades,
		Year:     year,
		Month:    month,
		Now:      s.now(),
		Location: s.loc,
	})
	return MonthReport{Summary: m, Payout: PayoutFor(m, s.policy)}, nil
}

// Annual returns the twelve-month breakdown for year.
func (s *Service) Annual(ctx context.Context, userID string, year int) ([]MonthRow, error) {
	snap, err := s.journal(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Annual(snap.Trades, year, s.loc), nil
}

// Risk returns today's risk progress against the current balance.
func (s *Service) Risk(ctx context.Context, userID string) (RiskProgress, error) {
	snap, err := s.journal(ctx, userID)
	if err != nil {
		return RiskProgress{}, err
	}
	balance := decimal.Zero
	if snap.Account != nil {
		balance = snap.Account.Balance()
	}
	return Risk(snap.Trades, balance, s.now(), s.policy, s.loc), nil
}

// Today returns today's PnL pulse.
func (s *Service) Today(ctx context.Context, userID string) (Pulse, error) {
	snap, err := s.journal(ctx, userID)
	if err != nil {
		return Pulse{}, err
	}
	return TodayPulse(snap.Trades, s.now(), s.loc), nil
}
