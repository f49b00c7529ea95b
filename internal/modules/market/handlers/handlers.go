// Package handlers exposes the external data sources over HTTP: FRED series,
// the market index snapshot, DOB permits and synthetic rental listings.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/cornerstone/internal/clients/fred"
	"github.com/aristath/cornerstone/internal/clients/marketindex"
	"github.com/aristath/cornerstone/internal/clients/nycopendata"
	"github.com/aristath/cornerstone/internal/clients/synthetic"
	"github.com/aristath/cornerstone/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	dateLayout         = "2006-01-02"
	defaultPermitLimit = 100
	maxPermitLimit     = 1000
)

// EconomicSource fetches FRED series
type EconomicSource interface {
	GetEconomicSeries(ctx context.Context, seriesID string, r fred.DateRange) (*domain.CachedResponse[fred.EconomicSeries], error)
}

// MarketSource fetches the market index snapshot
type MarketSource interface {
	GetMarketSnapshot(ctx context.Context) (*domain.CachedResponse[marketindex.MarketSnapshot], error)
}

// PermitSource fetches DOB permits
type PermitSource interface {
	GetPermits(ctx context.Context, borough domain.Borough, limit int) (*domain.CachedResponse[[]nycopendata.Permit], error)
}

// ListingSource fetches rental listings
type ListingSource interface {
	GetListings(ctx context.Context, submarket string) (*domain.CachedResponse[[]synthetic.RentalListing], error)
}

// Handlers provides HTTP handlers for the market data module
type Handlers struct {
	economic EconomicSource
	market   MarketSource
	permits  PermitSource
	listings ListingSource // nil when synthetic data is disabled
	stream   http.Handler
	log      zerolog.Logger
}

// NewHandlers creates a new market handlers instance. listings and stream may be nil.
func NewHandlers(economic EconomicSource, market MarketSource, permits PermitSource, listings ListingSource, stream http.Handler, log zerolog.Logger) *Handlers {
	return &Handlers{
		economic: economic,
		market:   market,
		permits:  permits,
		listings: listings,
		stream:   stream,
		log:      log.With().Str("module", "market_handlers").Logger(),
	}
}

// HandleGetEconomicSeries handles GET /api/economic/{seriesID}
func (h *Handlers) HandleGetEconomicSeries(w http.ResponseWriter, r *http.Request) {
	var dr fred.DateRange
	for _, p := range []struct {
		param string
		dest  *time.Time
	}{
		{"start", &dr.Start},
		{"end", &dr.End},
	} {
		raw := r.URL.Query().Get(p.param)
		if raw == "" {
			continue
		}
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			h.writeError(w, "Invalid "+p.param+" date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		*p.dest = t
	}

	resp, err := h.economic.GetEconomicSeries(r.Context(), chi.URLParam(r, "seriesID"), dr)
	if err != nil {
		h.writeSourceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleGetSnapshot handles GET /api/market/snapshot
func (h *Handlers) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	resp, err := h.market.GetMarketSnapshot(r.Context())
	if err != nil {
		h.writeSourceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleGetPermits handles GET /api/market/permits
func (h *Handlers) HandleGetPermits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	borough := domain.BoroughManhattan
	if raw := q.Get("borough"); raw != "" {
		b, ok := domain.ParseBorough(raw)
		if !ok {
			h.writeError(w, "Unknown borough: "+raw, http.StatusBadRequest)
			return
		}
		borough = b
	}

	limit := defaultPermitLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxPermitLimit)
	}

	resp, err := h.permits.GetPermits(r.Context(), borough, limit)
	if err != nil {
		h.writeSourceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleGetListings handles GET /api/market/listings
func (h *Handlers) HandleGetListings(w http.ResponseWriter, r *http.Request) {
	if h.listings == nil {
		h.writeError(w, "Synthetic listings are disabled", http.StatusNotFound)
		return
	}

	submarket := strings.TrimSpace(r.URL.Query().Get("submarket"))
	if submarket == "" {
		h.writeError(w, "submarket is required", http.StatusBadRequest)
		return
	}

	resp, err := h.listings.GetListings(r.Context(), submarket)
	if err != nil {
		h.writeSourceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// writeSourceError maps source failures: 400 validation, 429 rate limit,
// 502 unavailable, 500 anything else
func (h *Handlers) writeSourceError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	var rl *domain.RateLimitExceededError
	var unavailable *domain.SourceUnavailableError

	switch {
	case errors.As(err, &ve):
		h.writeError(w, ve.Error(), http.StatusBadRequest)
	case errors.As(err, &rl):
		secs := int64((rl.WaitTime + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.FormatInt(max(secs, 1), 10))
		h.writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"success":    false,
			"error":      rl.Error(),
			"source":     rl.Source,
			"waitTimeMs": rl.WaitTimeMs(),
		})
	case errors.As(err, &unavailable):
		h.log.Warn().Err(err).Str("source", unavailable.Source).Msg("Source unavailable")
		h.writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"success": false,
			"error":   unavailable.Error(),
			"source":  unavailable.Source,
		})
	default:
		h.log.Error().Err(err).Msg("Source request failed")
		h.writeError(w, "Internal error", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with status code
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *Handlers) writeError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]interface{}{"success": false, "error": message})
}
