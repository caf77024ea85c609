// Package handlers provides HTTP handlers for KPI queries.
package handlers

import (
	"net/http"
	"time"

	"github.com/aristath/tradejournal/internal/auth"
	"github.com/aristath/tradejournal/internal/modules/kpi"
	"github.com/aristath/tradejournal/internal/modules/timeframe"
	"github.com/aristath/tradejournal/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles KPI HTTP requests
type Handler struct {
	kpis *kpi.Service
	now  func() time.Time
	log  zerolog.Logger
}

// NewHandler creates a new KPI handler
func NewHandler(svc *kpi.Service, log zerolog.Logger) *Handler {
	return &Handler{
		kpis: svc,
		now:  time.Now,
		log:  log.With().Str("handler", "kpi").Logger(),
	}
}

// SetClock replaces the anchor used when no date is given.
func (h *Handler) SetClock(now func() time.Time) {
	h.now = now
}

// RegisterRoutes registers all KPI routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/kpis", h.HandleGetKPIs)
}

// HandleGetKPIs handles GET /api/kpis?mode&date&from&to
func (h *Handler) HandleGetKPIs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	win, err := timeframe.FromStrings(q.Get("mode"), q.Get("date"), q.Get("from"), q.Get("to"), h.now(), h.kpis.Location())
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}

	result, err := h.kpis.ForWindow(r.Context(), auth.UserID(r.Context()), win)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteData(w, h.log, http.StatusOK, map[string]interface{}{
		"window": win,
		"kpis":   result,
	})
}
