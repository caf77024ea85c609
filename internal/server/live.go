package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/tradejournal/internal/domain"
	"github.com/aristath/tradejournal/internal/events"
	"github.com/aristath/tradejournal/internal/modules/kpi"
	"github.com/aristath/tradejournal/internal/modules/ledger"
	"github.com/aristath/tradejournal/internal/modules/timeframe"
	"github.com/aristath/tradejournal/internal/utils"
)

const (
	heartbeatInterval = 30 * time.Second
	eventBuffer       = 100
)

// Frame types sent on live streams.
const (
	frameConnected = "connected"
	frameSnapshot  = "snapshot"
	frameEvent     = "event"
	frameHeartbeat = "heartbeat"
)

// streamFrame is one message on /api/stream or /api/ws.
type streamFrame struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Message   string            `json:"message,omitempty"`
	Seq       uint64            `json:"seq,omitempty"`
	Snapshot  *ledger.Snapshot  `json:"snapshot,omitempty"`
	Window    *timeframe.Window `json:"window,omitempty"`
	KPIs      *kpi.Result       `json:"kpis,omitempty"`
	Event     *events.Event     `json:"event,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// liveStream couples a ledger feed with optional raw event forwarding and
// KPI computation for a fixed window.
type liveStream struct {
	userID string
	query  ledger.Query
	feed   *ledger.LiveFeed
	events *events.Subscription // nil unless ?events= was given
	kpis   *kpi.Service
	window *timeframe.Window // nil unless ?kpis=1
}

// streamParams parses the query shared by both stream transports:
//
//	kind=account|trades_month|trades_all|cashflows|journal (default journal)
//	from, to=YYYY-MM-DD bound trades_month and custom KPI windows
//	kpis=1 with mode, date adds computed KPIs (journal only)
//	events=TYPE,TYPE forwards raw bus events of those types
func (s *Server) streamParams(r *http.Request) (ledger.Query, *timeframe.Window, []events.EventType, error) {
	q := r.URL.Query()
	loc := s.container.KPIService.Location()

	query := ledger.Query{Kind: ledger.QueryKind(utils.FirstNonEmpty(q.Get("kind"), string(ledger.QueryJournal)))}
	if query.Kind == ledger.QueryTradesMonth {
		from, err := timeframe.ParseDate(q.Get("from"), loc)
		if err != nil {
			return ledger.Query{}, nil, nil, err
		}
		to, err := timeframe.ParseDate(q.Get("to"), loc)
		if err != nil {
			return ledger.Query{}, nil, nil, err
		}
		query.From = from
		if !to.IsZero() {
			query.To = timeframe.EndOfDay(to, loc)
		}
	}
	if err := query.Validate(); err != nil {
		return ledger.Query{}, nil, nil, err
	}

	var window *timeframe.Window
	if withKPIs, _ := strconv.ParseBool(q.Get("kpis")); withKPIs {
		if query.Kind != ledger.QueryJournal {
			return ledger.Query{}, nil, nil, domain.InvalidInputf("kpis require kind=journal")
		}
		w, err := timeframe.FromStrings(q.Get("mode"), q.Get("date"), q.Get("from"), q.Get("to"), time.Now(), loc)
		if err != nil {
			return ledger.Query{}, nil, nil, err
		}
		window = &w
	}

	var types []events.EventType
	for _, t := range utils.ParseCSV(q.Get("events")) {
		types = append(types, events.EventType(t))
	}
	return query, window, types, nil
}

// openStream validates the request and subscribes. The caller must Close
// the returned stream.
func (s *Server) openStream(ctx context.Context, r *http.Request, userID string) (*liveStream, error) {
	query, window, types, err := s.streamParams(r)
	if err != nil {
		return nil, err
	}

	feed, err := s.container.LedgerService.Subscribe(ctx, userID, query)
	if err != nil {
		return nil, err
	}
	ls := &liveStream{
		userID: userID,
		query:  query,
		feed:   feed,
		kpis:   s.container.KPIService,
		window: window,
	}
	if len(types) > 0 {
		ls.events = s.container.EventBus.Subscribe(events.Filter{UserID: userID, Types: types}, eventBuffer)
	}
	return ls, nil
}

// eventChan returns the forwarded event channel, or nil (blocks forever).
func (ls *liveStream) eventChan() <-chan events.Event {
	if ls.events == nil {
		return nil
	}
	return ls.events.C
}

func (ls *liveStream) Close() {
	ls.feed.Close()
	if ls.events != nil {
		ls.events.Cancel()
	}
}

func (ls *liveStream) snapshotFrame(snap ledger.Snapshot) streamFrame {
	f := streamFrame{Type: frameSnapshot, Timestamp: snap.At, Seq: snap.Seq}
	if snap.Err != nil {
		f.Error = snap.Err.Error()
		return f
	}
	f.Snapshot = &snap
	if ls.window != nil {
		res := ls.kpis.FromSnapshot(snap, *ls.window)
		f.Window = ls.window
		f.KPIs = &res
	}
	return f
}

func eventFrame(e events.Event) streamFrame {
	return streamFrame{Type: frameEvent, Timestamp: e.Timestamp, Event: &e}
}

func connectedFrame(kind ledger.QueryKind) streamFrame {
	return streamFrame{Type: frameConnected, Timestamp: time.Now(), Message: "Connected to " + string(kind) + " stream"}
}

func heartbeatFrame() streamFrame {
	return streamFrame{Type: frameHeartbeat, Timestamp: time.Now()}
}
