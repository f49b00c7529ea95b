package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all property routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/properties", func(r chi.Router) {
		r.Get("/", h.HandleList)          // Stored properties, filterable
		r.Get("/ranked", h.HandleRanked)  // Loaded dataset ranked under a profile
		r.Post("/reload", h.HandleReload) // Fetch from NYC Open Data and persist
		r.Post("/reset", h.HandleReset)   // Clear dataset and store
		r.Get("/{id}", h.HandleGet)       // Single property with data quality notes
	})
}
