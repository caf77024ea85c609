package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all trading routes
func (h *TradingHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/trades", func(r chi.Router) {
		r.Get("/", h.HandleListTrades)
		r.Post("/", h.HandleOpenTrade)
		r.Get("/{id}", h.HandleGetTrade)
		r.Put("/{id}", h.HandleUpdateTrade)
		r.Post("/{id}/close", h.HandleCloseTrade)
		r.Delete("/{id}", h.HandleDeleteTrade)
	})
}
