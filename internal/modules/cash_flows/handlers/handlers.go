// Package handlers provides HTTP handlers for cashflows.
package handlers

import (
	"net/http"
	"time"

	"github.com/aristath/tradejournal/internal/auth"
	"github.com/aristath/tradejournal/internal/domain"
	"github.com/aristath/tradejournal/internal/modules/ledger"
	"github.com/aristath/tradejournal/internal/modules/timeframe"
	"github.com/aristath/tradejournal/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Handler handles cashflow HTTP requests
type Handler struct {
	ledger *ledger.Service
	loc    *time.Location
	log    zerolog.Logger
}

// NewHandler creates a new cashflow handler
func NewHandler(svc *ledger.Service, loc *time.Location, log zerolog.Logger) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		ledger: svc,
		loc:    loc,
		log:    log.With().Str("handler", "cash_flows").Logger(),
	}
}

type addCashflowRequest struct {
	Amount *decimal.Decimal `json:"amount" validate:"required"`
	Note   string           `json:"note" validate:"max=500"`
}

// RegisterRoutes registers all cashflow routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/cashflows", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleAdd)
		r.Delete("/{id}", h.HandleDelete)
	})
}

// HandleList handles GET /api/cashflows?from&to
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	from, err := timeframe.ParseDate(r.URL.Query().Get("from"), h.loc)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	to, err := timeframe.ParseDate(r.URL.Query().Get("to"), h.loc)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	if !to.IsZero() {
		to = timeframe.EndOfDay(to, h.loc)
	}

	list, err := h.ledger.ListCashflows(r.Context(), auth.UserID(r.Context()), from, to)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	net := decimal.Zero
	for _, cf := range list {
		net = net.Add(cf.Amount)
	}
	if list == nil {
		list = []domain.Cashflow{}
	}
	utils.WriteData(w, h.log, http.StatusOK, map[string]interface{}{
		"cashflows": list,
		"count":     len(list),
		"net":       net,
	})
}

// HandleAdd handles POST /api/cashflows. Positive amounts are deposits,
// negative ones withdrawals.
func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req addCashflowRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	cf, err := h.ledger.AddCashflow(r.Context(), auth.UserID(r.Context()), *req.Amount, req.Note)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteData(w, h.log, http.StatusCreated, cf)
}

// HandleDelete handles DELETE /api/cashflows/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.ledger.DeleteCashflow(r.Context(), auth.UserID(r.Context()), id); err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteData(w, h.log, http.StatusOK, map[string]interface{}{"deleted": id})
}
