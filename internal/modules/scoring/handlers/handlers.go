// Package handlers provides HTTP handlers for the scoring API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/cornerstone/internal/domain"
	"github.com/aristath/cornerstone/internal/modules/scoring"
	"github.com/rs/zerolog"
)

// Handlers provides HTTP handlers for the scoring module
type Handlers struct {
	costs scoring.CostAssumptions
	log   zerolog.Logger
}

// NewHandlers creates a new scoring handlers instance.
// costs are the defaults used when a request carries no assumptions.
func NewHandlers(costs scoring.CostAssumptions, log zerolog.Logger) *Handlers {
	return &Handlers{
		costs: costs,
		log:   log.With().Str("module", "scoring_handlers").Logger(),
	}
}

// ProjectionRequest is the body of POST /api/scoring/projection
type ProjectionRequest struct {
	Record      *domain.PropertyRecord   `json:"record"`
	Assumptions *scoring.CostAssumptions `json:"assumptions,omitempty"`
}

// AnalyzeRequest is the body of POST /api/scoring/analyze
type AnalyzeRequest struct {
	Record      *domain.PropertyRecord   `json:"record"`
	Profile     string                   `json:"profile,omitempty"`
	Context     *domain.MarketContext    `json:"context,omitempty"`
	Assumptions *scoring.CostAssumptions `json:"assumptions,omitempty"`
}

// HandleGetProfiles handles GET /api/scoring/profiles
func (h *Handlers) HandleGetProfiles(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"profiles":    scoring.Definitions(),
		"assumptions": h.costs,
	})
}

// HandleProjection handles POST /api/scoring/projection
func (h *Handlers) HandleProjection(w http.ResponseWriter, r *http.Request) {
	var req ProjectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug().Err(err).Msg("Failed to decode projection request")
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	costs := h.costs
	if req.Assumptions != nil {
		costs = *req.Assumptions
	}

	projection, err := scoring.ProjectFinancials(req.Record, costs)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"projection": projection,
	})
}

// HandleAnalyze handles POST /api/scoring/analyze
func (h *Handlers) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug().Err(err).Msg("Failed to decode analyze request")
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	profile, err := scoring.ParseProfile(req.Profile)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	engine, err := scoring.NewEngine(profile)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	costs := h.costs
	if req.Assumptions != nil {
		costs = *req.Assumptions
	}

	analysis, err := engine.Analyze(req.Record, req.Context, costs)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"analysis": analysis,
	})
}

// writeEngineError maps validation failures to 400 and everything else to 500
func (h *Handlers) writeEngineError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		h.writeError(w, ve.Error(), http.StatusBadRequest)
		return
	}
	h.log.Error().Err(err).Msg("Scoring request failed")
	h.writeError(w, "Internal error", http.StatusInternalServerError)
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
