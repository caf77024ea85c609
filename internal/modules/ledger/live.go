package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aristath/tradejournal/internal/domain"
	"github.com/aristath/tradejournal/internal/events"
	"github.com/aristath/tradejournal/internal/modules/trading"
)

// QueryKind selects what a live feed watches.
type QueryKind string

const (
	QueryAccount     QueryKind = "account"
	QueryTradesMonth QueryKind = "trades_month"
	QueryTradesAll   QueryKind = "trades_all"
	QueryCashflows   QueryKind = "cashflows"
	QueryJournal     QueryKind = "journal"
)

// Query describes a live subscription. From/To bound trade open time for
// QueryTradesMonth and are ignored otherwise.
type Query struct {
	Kind QueryKind
	From time.Time
	To   time.Time
}

// Validate checks the query shape.
func (q Query) Validate() error {
	switch q.Kind {
	case QueryAccount, QueryTradesAll, QueryCashflows, QueryJournal:
		return nil
	case QueryTradesMonth:
		if q.From.IsZero() || q.To.IsZero() || q.To.Before(q.From) {
			return domain.InvalidInputf("trades_month needs from <= to")
		}
		return nil
	}
	return domain.InvalidInputf("unknown query kind %q", q.Kind)
}

// Snapshot is one consistent read of the data a query watches.
type Snapshot struct {
	At        time.Time         `json:"at"`
	Account   *domain.Account   `json:"account,omitempty"`
	Trades    []domain.Trade    `json:"trades,omitempty"`
	Cashflows []domain.Cashflow `json:"cashflows,omitempty"`
	Err       error             `json:"-"`
	Kind      QueryKind         `json:"kind"`
	Seq       uint64            `json:"seq"`
}

// Snapshot reads the query's data in a single transaction.
func (s *Service) Snapshot(ctx context.Context, userID string, q Query) (Snapshot, error) {
	if err := q.Validate(); err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Kind: q.Kind}
	err := s.store.RunTransaction(ctx, func(tx Tx) error {
		var err error
		if q.Kind == QueryAccount || q.Kind == QueryJournal {
			if snap.Account, err = tx.GetAccount(ctx, userID); err != nil {
				return err
			}
		}
		switch q.Kind {
		case QueryTradesMonth:
			snap.Trades, err = tx.ListTrades(ctx, userID, trading.Filter{OpenFrom: q.From, OpenTo: q.To})
		case QueryTradesAll, QueryJournal:
			snap.Trades, err = tx.ListTrades(ctx, userID, trading.Filter{})
		}
		if err != nil {
			return err
		}
		if q.Kind == QueryCashflows || q.Kind == QueryJournal {
			snap.Cashflows, err = tx.ListCashflows(ctx, userID, time.Time{}, time.Time{})
		}
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}
	snap.At = s.now()
	return snap, nil
}

// LiveFeed delivers a fresh Snapshot after every committed change to the
// user's journal. Slow readers only ever see the latest snapshot. Close must
// be called to release the subscription.
type LiveFeed struct {
	out    chan Snapshot
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Updates returns the snapshot stream. It is closed after Close or when the
// subscribing context ends.
func (f *LiveFeed) Updates() <-chan Snapshot {
	return f.out
}

// Close stops the feed and waits for its goroutine. Safe to call repeatedly.
func (f *LiveFeed) Close() {
	f.once.Do(func() {
		f.cancel()
	})
	<-f.done
}

// Subscribe opens a live feed for userID. The first snapshot is delivered
// immediately.
func (s *Service) Subscribe(ctx context.Context, userID string, q Query) (*LiveFeed, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if s.events == nil {
		return nil, errors.New("live feeds require an event bus")
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := s.events.Bus().Subscribe(events.Filter{UserID: userID, Types: events.LedgerTypes}, 1)
	f := &LiveFeed{
		out:    make(chan Snapshot, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go s.runFeed(ctx, userID, q, sub, f)
	return f, nil
}

func (s *Service) runFeed(ctx context.Context, userID string, q Query, sub *events.Subscription, f *LiveFeed) {
	defer close(f.done)
	defer close(f.out)
	defer sub.Cancel()

	log := s.log.With().Str("user_id", userID).Str("query", string(q.Kind)).Logger()
	log.Debug().Msg("Live feed started")
	defer log.Debug().Msg("Live feed stopped")

	var seq uint64
	push := func() {
		snap, err := s.Snapshot(ctx, userID, q)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("Failed to load snapshot")
			snap = Snapshot{Kind: q.Kind, At: s.now(), Err: err}
		}
		seq++
		snap.Seq = seq
		// This goroutine is the only sender, so after dropping a stale
		// snapshot the send below cannot block.
		select {
		case f.out <- snap:
		default:
			select {
			case <-f.out:
			default:
			}
			f.out <- snap
		}
	}

	push()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub.C:
			if !ok {
				return
			}
			push()
		}
	}
}
