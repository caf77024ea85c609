// Package handlers provides HTTP handlers for the month dashboard.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/tradejournal/internal/auth"
	"github.com/aristath/tradejournal/internal/domain"
	"github.com/aristath/tradejournal/internal/modules/analytics"
	"github.com/aristath/tradejournal/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles analytics HTTP requests
type Handler struct {
	analytics *analytics.Service
	log       zerolog.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(svc *analytics.Service, log zerolog.Logger) *Handler {
	return &Handler{
		analytics: svc,
		log:       log.With().Str("handler", "analytics").Logger(),
	}
}

// RegisterRoutes registers all analytics routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/month", h.HandleMonth)
		r.Get("/annual", h.HandleAnnual)
		r.Get("/risk", h.HandleRisk)
		r.Get("/today", h.HandleToday)
	})
}

func intParam(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, domain.InvalidInputf("%s must be an integer", name)
	}
	return n, nil
}

// HandleMonth handles GET /api/analytics/month?year&month
func (h *Handler) HandleMonth(w http.ResponseWriter, r *http.Request) {
	now := h.analytics.Now()
	year, err := intParam(r, "year", now.Year())
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	month, err := intParam(r, "month", int(now.Month()))
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}

	rep, err := h.analytics.Month(r.Context(), auth.UserID(r.Context()), year, time.Month(month))
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteData(w, h.log, http.StatusOK, rep)
}

// HandleAnnual handles GET /api/analytics/annual?year
func (h *Handler) HandleAnnual(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year", h.analytics.Now().Year())
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	rows, err := h.analytics.Annual(r.Context(), auth.UserID(r.Context()), year)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteData(w, h.log, http.StatusOK, map[string]interface{}{
		"year":   year,
		"months": rows,
	})
}

// HandleRisk handles GET /api/analytics/risk
func (h *Handler) HandleRisk(w http.ResponseWriter, r *http.Request) {
	risk, err := h.analytics.Risk(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteData(w, h.log, http.StatusOK, risk)
}

// HandleToday handles GET /api/analytics/today
func (h *Handler) HandleToday(w http.ResponseWriter, r *http.Request) {
	pulse, err := h.analytics.Today(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteData(w, h.log, http.StatusOK, pulse)
}
