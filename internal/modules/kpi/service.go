package kpi

import (
	"context"
	"time"

	"github.com/aristath/tradejournal/internal/config"
	"github.com/aristath/tradejournal/internal/modules/ledger"
	"github.com/aristath/tradejournal/internal/modules/timeframe"
	"github.com/aristath/tradejournal/internal/utils"
	"github.com/rs/zerolog"
)

// SnapshotReader loads a consistent view of a user's journal.
type SnapshotReader interface {
	Snapshot(ctx context.Context, userID string, q ledger.Query) (ledger.Snapshot, error)
}

// Service computes KPIs for stored journals. It holds no per-user state.
type Service struct {
	reader SnapshotReader
	policy *config.RiskPolicy
	loc    *time.Location
	log    zerolog.Logger
}

// NewService creates a KPI service.
func NewService(reader SnapshotReader, policy *config.RiskPolicy, loc *time.Location, log zerolog.Logger) *Service {
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
		log:    log.With().Str("service", "kpi").Logger(),
	}
}

// Location returns the location used for day boundaries.
func (s *Service) Location() *time.Location {
	return s.loc
}

// ForWindow reads the user's journal and computes the window's KPIs.
func (s *Service) ForWindow(ctx context.Context, userID string, w timeframe.Window) (Result, error) {
	snap, err := s.reader.Snapshot(ctx, userID, ledger.Query{Kind: ledger.QueryJournal})
	if err != nil {
		return Result{}, err
	}
	return s.FromSnapshot(snap, w), nil
}

// FromSnapshot computes KPIs from an already loaded journal snapshot.
func (s *Service) FromSnapshot(snap ledger.Snapshot, w timeframe.Window) Result {
	timer := utils.NewTimer("kpi_compute", s.log)
	in := Input{
		Trades:    snap.Trades,
		Cashflows: snap.Cashflows,
		Start:     w.Start,
		End:       w.End,
		Location:  s.loc,
		Policy:    s.policy,
	}
	if snap.Account != nil {
		in.StartingBalance = snap.Account.Starting()
		in.CurrentBalance = snap.Account.Balance()
		in.Currency = string(snap.Account.Currency)
	}
	r := Compute(in)
	timer.Stop()
	return r
}
