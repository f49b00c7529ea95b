// Package handlers provides HTTP handlers for the analysis API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/cornerstone/internal/domain"
	"github.com/aristath/cornerstone/internal/modules/analysis"
	"github.com/rs/zerolog"
)

// Analyzer is the part of the analysis service the handlers use
type Analyzer interface {
	Score(ctx context.Context, req analysis.ScoreRequest) (*analysis.ScoreResult, error)
	Comprehensive(ctx context.Context, borough domain.Borough) (*analysis.ComprehensiveResult, error)
}

// Handlers provides HTTP handlers for the analysis module
type Handlers struct {
	service Analyzer
	now     func() time.Time
	log     zerolog.Logger
}

// NewHandlers creates a new analysis handlers instance
func NewHandlers(service Analyzer, log zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		now:     time.Now,
		log:     log.With().Str("module", "analysis_handlers").Logger(),
	}
}

// HandleScore handles POST /api/analysis/score
func (h *Handlers) HandleScore(w http.ResponseWriter, r *http.Request) {
	var req analysis.ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug().Err(err).Msg("Failed to decode score request")
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.Score(r.Context(), req)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			h.writeError(w, ve.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("Score request failed")
		h.writeError(w, "Internal error", http.StatusInternalServerError)
		return
	}

	degraded := result.DegradedSources
	if degraded == nil {
		degraded = []string{}
	}

	response := map[string]interface{}{
		"success":          true,
		"type":             result.Type,
		"profile":          result.Profile,
		"scoredProperties": result.ScoredProperties,
		"excluded":         result.Excluded,
		"warnings":         result.Warnings,
		"degradedSources":  degraded,
		"timestamp":        h.now().UTC().Format(time.RFC3339),
	}
	if result.Analyses != nil {
		response["analyses"] = result.Analyses
	}
	if result.MarketMetrics != nil {
		response["marketMetrics"] = result.MarketMetrics
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleComprehensive handles GET /api/analysis/comprehensive
func (h *Handlers) HandleComprehensive(w http.ResponseWriter, r *http.Request) {
	var borough domain.Borough
	if raw := r.URL.Query().Get("borough"); raw != "" {
		b, ok := domain.ParseBorough(raw)
		if !ok {
			h.writeError(w, "Unknown borough: "+raw, http.StatusBadRequest)
			return
		}
		borough = b
	}

	result, err := h.service.Comprehensive(r.Context(), borough)
	if err != nil {
		h.writeComprehensiveError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"analysis":        result,
		"degradedSources": result.DegradedSources,
	})
}

// writeComprehensiveError maps a report that could not be built at all
func (h *Handlers) writeComprehensiveError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	var rl *domain.RateLimitExceededError

	switch {
	case errors.As(err, &ve):
		h.writeError(w, ve.Error(), http.StatusBadRequest)
	case errors.As(err, &rl):
		w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(rl.WaitTime), 10))
		h.writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"success":    false,
			"error":      rl.Error(),
			"source":     rl.Source,
			"waitTimeMs": rl.WaitTimeMs(),
		})
	default:
		h.log.Error().Err(err).Msg("Comprehensive analysis failed")
		h.writeError(w, err.Error(), http.StatusBadGateway)
	}
}

// retryAfterSeconds rounds up to whole seconds, at least 1
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
