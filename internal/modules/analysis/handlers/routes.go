package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all analysis routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/analysis", func(r chi.Router) {
		r.Post("/score", h.HandleScore)                 // Batch scoring with filters
		r.Get("/comprehensive", h.HandleComprehensive) // Five-source report, degrades per source
	})
}
