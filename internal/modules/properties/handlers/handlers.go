// Package handlers provides HTTP handlers for property listing, ranking and
// dataset lifecycle.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/cornerstone/internal/dataset"
	"github.com/aristath/cornerstone/internal/domain"
	"github.com/aristath/cornerstone/internal/metrics"
	"github.com/aristath/cornerstone/internal/modules/scoring"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// DatasetManager is the dataset lifecycle used by the handlers
type DatasetManager interface {
	Records() []domain.PropertyRecord
	LoadedAt() time.Time
	Reload(ctx context.Context) (*dataset.ReloadResult, error)
	Reset(ctx context.Context) (int, error)
}

// MarketContextProvider builds the market context used when ranking
type MarketContextProvider interface {
	MarketContext(ctx context.Context, records []domain.PropertyRecord) *domain.MarketContext
}

// Handlers provides HTTP handlers for the properties module
type Handlers struct {
	repo    domain.PropertyRepository
	dataset DatasetManager
	market  MarketContextProvider
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewHandlers creates a new properties handlers instance. market and m may be nil.
func NewHandlers(repo domain.PropertyRepository, ds DatasetManager, market MarketContextProvider, m *metrics.Metrics, log zerolog.Logger) *Handlers {
	return &Handlers{
		repo:    repo,
		dataset: ds,
		market:  market,
		metrics: m,
		log:     log.With().Str("module", "properties_handlers").Logger(),
	}
}

// HandleList handles GET /api/properties
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list properties")
		h.writeError(w, "Failed to list properties", http.StatusInternalServerError)
		return
	}

	total, err := h.repo.Count(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count properties")
		h.writeError(w, "Failed to list properties", http.StatusInternalServerError)
		return
	}

	if records == nil {
		records = []domain.PropertyRecord{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"properties": records,
		"count":      len(records),
		"total":      total,
	})
}

// HandleGet handles GET /api/properties/{id}
func (h *Handlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Failed to get property")
		h.writeError(w, "Failed to get property", http.StatusInternalServerError)
		return
	}
	if record == nil {
		h.writeError(w, fmt.Sprintf("Property %s not found", id), http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"property":     record,
		"dataQuality":  record.DataQualityIssues(),
		"missingInput": record.MissingFields(),
	})
}

// HandleRanked handles GET /api/properties/ranked?profile=&limit=
func (h *Handlers) HandleRanked(w http.ResponseWriter, r *http.Request) {
	profile, err := scoring.ParseProfile(r.URL.Query().Get("profile"))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			h.writeError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
	}

	engine, err := scoring.NewEngine(profile)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	records := h.dataset.Records()

	var mctx *domain.MarketContext
	if h.market != nil {
		mctx = h.market.MarketContext(r.Context(), records)
	}

	start := time.Now()
	ranked, err := engine.RankBatch(records, mctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to rank properties")
		h.writeError(w, "Failed to rank properties", http.StatusInternalServerError)
		return
	}
	h.metrics.ObserveBatch(string(profile), len(records), time.Since(start))

	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}

	response := map[string]interface{}{
		"success": true,
		"profile": profile,
		"ranked":  ranked,
		"count":   len(ranked),
		"total":   len(records),
	}
	if loadedAt := h.dataset.LoadedAt(); !loadedAt.IsZero() {
		response["loadedAt"] = loadedAt.Format(time.RFC3339)
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleReload handles POST /api/properties/reload
func (h *Handlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	result, err := h.dataset.Reload(r.Context())
	if err != nil {
		h.writeReloadError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"result":     result,
		"durationMs": result.Duration.Milliseconds(),
	})
}

// HandleReset handles POST /api/properties/reset
func (h *Handlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	cleared, err := h.dataset.Reset(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to reset dataset")
		h.writeError(w, "Failed to reset dataset", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"cleared": cleared,
	})
}

func parseFilter(r *http.Request) (domain.PropertyFilter, error) {
	q := r.URL.Query()
	filter := domain.PropertyFilter{
		Submarket: q.Get("submarket"),
		Category:  domain.PropertyCategory(q.Get("category")),
		Status:    domain.PropertyStatus(q.Get("status")),
		Limit:     defaultListLimit,
	}

	if v := q.Get("borough"); v != "" {
		borough, ok := domain.ParseBorough(v)
		if !ok {
			return filter, fmt.Errorf("unknown borough %q", v)
		}
		filter.Borough = borough
	}

	ints := []struct {
		name string
		dest *int
	}{
		{"minSF", &filter.MinSF},
		{"limit", &filter.Limit},
		{"offset", &filter.Offset},
	}
	for _, p := range ints {
		if v := q.Get(p.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return filter, fmt.Errorf("%s must be a non-negative integer", p.name)
			}
			*p.dest = n
		}
	}

	if v := q.Get("maxPrice"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return filter, fmt.Errorf("maxPrice must be a non-negative number")
		}
		filter.MaxPrice = f
	}

	if filter.Limit == 0 || filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	return filter, nil
}

// writeReloadError maps reload failures onto status codes
func (h *Handlers) writeReloadError(w http.ResponseWriter, err error) {
	var rl *domain.RateLimitExceededError
	var unavailable *domain.SourceUnavailableError

	switch {
	case errors.Is(err, dataset.ErrReloadInProgress):
		h.writeError(w, err.Error(), http.StatusConflict)
	case errors.As(err, &rl):
		w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(rl.WaitTime), 10))
		h.writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"success":    false,
			"error":      rl.Error(),
			"source":     rl.Source,
			"waitTimeMs": rl.WaitTimeMs(),
		})
	case errors.As(err, &unavailable):
		h.writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"success": false,
			"error":   unavailable.Error(),
			"source":  unavailable.Source,
		})
	default:
		h.log.Error().Err(err).Msg("Dataset reload failed")
		h.writeError(w, "Dataset reload failed", http.StatusInternalServerError)
	}
}

// retryAfterSeconds rounds a wait up to whole seconds, minimum one
func retryAfterSeconds(d time.Duration) int64 {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
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
