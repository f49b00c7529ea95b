package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the economic and market data routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/economic/{seriesID}", h.HandleGetEconomicSeries) // FRED series with trend statistics

	r.Route("/market", func(r chi.Router) {
		r.Get("/snapshot", h.HandleGetSnapshot) // REIT index quotes and sentiment
		r.Get("/permits", h.HandleGetPermits)   // DOB permits for a borough
		r.Get("/listings", h.HandleGetListings) // Synthetic rental listings
		if h.stream != nil {
			r.Handle("/stream", h.stream) // Websocket feed of bus events
		}
	})
}
