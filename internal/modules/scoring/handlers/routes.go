package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all scoring routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/scoring", func(r chi.Router) {
		r.Get("/profiles", h.HandleGetProfiles)    // Profile weights and default cost assumptions
		r.Post("/projection", h.HandleProjection) // Financial projection for one record
		r.Post("/analyze", h.HandleAnalyze)       // Full single-property analysis
	})
}
