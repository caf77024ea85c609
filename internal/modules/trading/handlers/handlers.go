// Package handlers provides HTTP handlers for journaled trades.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/tradejournal/internal/auth"
	"github.com/aristath/tradejournal/internal/domain"
	"github.com/aristath/tradejournal/internal/modules/ledger"
	"github.com/aristath/tradejournal/internal/modules/timeframe"
	"github.com/aristath/tradejournal/internal/modules/trading"
	"github.com/aristath/tradejournal/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const maxListLimit = 1000

// TradingHandlers contains HTTP handlers for the trades API
type TradingHandlers struct {
	ledger *ledger.Service
	loc    *time.Location
	log    zerolog.Logger
}

// NewTradingHandlers creates a new trading handlers instance
func NewTradingHandlers(svc *ledger.Service, loc *time.Location, log zerolog.Logger) *TradingHandlers {
	if loc == nil {
		loc = time.Local
	}
	return &TradingHandlers{
		ledger: svc,
		loc:    loc,
		log:    log.With().Str("handler", "trading").Logger(),
	}
}

type openTradeRequest struct {
	Symbol     string           `json:"symbol" validate:"required,max=32"`
	Side       string           `json:"side" validate:"omitempty,oneof=long short"`
	Kind       string           `json:"kind" validate:"omitempty,oneof=short normal long"`
	RiskAmount *decimal.Decimal `json:"risk_amount"`
	RiskPct    *decimal.Decimal `json:"risk_pct"`
	Fees       *decimal.Decimal `json:"fees"`
	SizeUSD    *decimal.Decimal `json:"size_usd"`
	Leverage   *decimal.Decimal `json:"leverage"`
	Setup      string           `json:"setup" validate:"max=200"`
	Emotion    string           `json:"emotion" validate:"max=200"`
	Notes      string           `json:"notes" validate:"max=5000"`
}

type updateTradeRequest struct {
	Symbol     *string          `json:"symbol" validate:"omitempty,min=1,max=32"`
	Side       *string          `json:"side" validate:"omitempty,oneof=long short"`
	Kind       *string          `json:"kind" validate:"omitempty,oneof=short normal long"`
	Status     *string          `json:"status" validate:"omitempty,oneof=open closed"`
	OpenAt     *time.Time       `json:"open_at"`
	ClosedAt   *time.Time       `json:"closed_at"`
	RiskAmount *decimal.Decimal `json:"risk_amount"`
	RiskPct    *decimal.Decimal `json:"risk_pct"`
	Fees       *decimal.Decimal `json:"fees"`
	SizeUSD    *decimal.Decimal `json:"size_usd"`
	Leverage   *decimal.Decimal `json:"leverage"`
	PnL        *decimal.Decimal `json:"pnl"`
	Setup      *string          `json:"setup" validate:"omitempty,max=200"`
	Emotion    *string          `json:"emotion" validate:"omitempty,max=200"`
	Notes      *string          `json:"notes" validate:"omitempty,max=5000"`
}

type closeTradeRequest struct {
	GrossPnL *decimal.Decimal `json:"gross_pnl" validate:"required"`
	Fees     *decimal.Decimal `json:"fees"`
}

type tradeResponse struct {
	*domain.Trade
	Sizing trading.SizingReport `json:"sizing"`
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func (h *TradingHandlers) respond(w http.ResponseWriter, status int, t *domain.Trade) {
	utils.WriteData(w, h.log, status, tradeResponse{Trade: t, Sizing: trading.Sizing(t, h.ledger.Policy())})
}

// HandleListTrades handles GET /api/trades?from&to&status&limit
func (h *TradingHandlers) HandleListTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := timeframe.ParseDate(q.Get("from"), h.loc)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	to, err := timeframe.ParseDate(q.Get("to"), h.loc)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	if !to.IsZero() {
		to = timeframe.EndOfDay(to, h.loc)
	}

	f := trading.Filter{OpenFrom: from, OpenTo: to}
	switch status := domain.TradeStatus(q.Get("status")); status {
	case "", domain.TradeStatusOpen, domain.TradeStatusClosed:
		f.Status = status
	default:
		utils.WriteError(w, h.log, domain.InvalidInputf("status must be open or closed"))
		return
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxListLimit {
			utils.WriteError(w, h.log, domain.InvalidInputf("limit must be 1-%d", maxListLimit))
			return
		}
		f.Limit = n
	}

	trades, err := h.ledger.ListTrades(r.Context(), auth.UserID(r.Context()), f)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	utils.WriteData(w, h.log, http.StatusOK, map[string]interface{}{
		"trades": trades,
		"count":  len(trades),
	})
}

// HandleOpenTrade handles POST /api/trades
func (h *TradingHandlers) HandleOpenTrade(w http.ResponseWriter, r *http.Request) {
	var req openTradeRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	t, err := h.ledger.OpenTrade(r.Context(), auth.UserID(r.Context()), ledger.TradeDraft{
		Symbol:     req.Symbol,
		Side:       domain.Side(req.Side),
		Kind:       domain.SizeKind(req.Kind),
		RiskAmount: orZero(req.RiskAmount),
		RiskPct:    orZero(req.RiskPct),
		Fees:       orZero(req.Fees),
		SizeUSD:    orZero(req.SizeUSD),
		Leverage:   orZero(req.Leverage),
		Setup:      req.Setup,
		Emotion:    req.Emotion,
		Notes:      req.Notes,
	})
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	h.respond(w, http.StatusCreated, t)
}

// HandleGetTrade handles GET /api/trades/{id}
func (h *TradingHandlers) HandleGetTrade(w http.ResponseWriter, r *http.Request) {
	t, err := h.ledger.GetTrade(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	h.respond(w, http.StatusOK, t)
}

// HandleUpdateTrade handles PUT /api/trades/{id}
func (h *TradingHandlers) HandleUpdateTrade(w http.ResponseWriter, r *http.Request) {
	var req updateTradeRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	patch := ledger.TradePatch{
		Symbol:     req.Symbol,
		OpenAt:     req.OpenAt,
		ClosedAt:   req.ClosedAt,
		RiskAmount: req.RiskAmount,
		RiskPct:    req.RiskPct,
		Fees:       req.Fees,
		SizeUSD:    req.SizeUSD,
		Leverage:   req.Leverage,
		PnL:        req.PnL,
		Setup:      req.Setup,
		Emotion:    req.Emotion,
		Notes:      req.Notes,
	}
	if req.Side != nil {
		side := domain.Side(*req.Side)
		patch.Side = &side
	}
	if req.Kind != nil {
		kind := domain.SizeKind(*req.Kind)
		patch.Kind = &kind
	}
	if req.Status != nil {
		status := domain.TradeStatus(*req.Status)
		patch.Status = &status
	}

	t, err := h.ledger.UpdateTrade(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), patch)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	h.respond(w, http.StatusOK, t)
}

// HandleCloseTrade handles POST /api/trades/{id}/close
func (h *TradingHandlers) HandleCloseTrade(w http.ResponseWriter, r *http.Request) {
	var req closeTradeRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	t, err := h.ledger.CloseTrade(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), *req.GrossPnL, req.Fees)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	h.respond(w, http.StatusOK, t)
}

// HandleDeleteTrade handles DELETE /api/trades/{id}
func (h *TradingHandlers) HandleDeleteTrade(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.ledger.DeleteTrade(r.Context(), auth.UserID(r.Context()), id); err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteData(w, h.log, http.StatusOK, map[string]interface{}{"deleted": id})
}
