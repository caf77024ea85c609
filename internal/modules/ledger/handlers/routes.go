package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all account routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/account", func(r chi.Router) {
		r.Get("/", h.HandleGetAccount)
		r.Post("/onboarding", h.HandleOnboarding)
		r.Post("/reset", h.HandleReset)
		r.Post("/expenses", h.HandleAddExpense)
		r.Get("/reconcile", h.HandleReconcile)
	})
}
