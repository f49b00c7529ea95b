package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/cornerstone/internal/modules/scoring"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tribecaJSON = `{
	"id": "tribeca-1",
	"address": "100 Franklin St",
	"submarket": "Tribeca",
	"propertyCategory": "OfficeBuildings",
	"zoningCode": "R10",
	"status": "Available",
	"grossSF": 40000,
	"askingPrice": 22000000,
	"pricePerSF": 550,
	"yearBuilt": 1920
}`

func setupRouter() *chi.Mux {
	h := NewHandlers(scoring.DefaultCostAssumptions(), zerolog.Nop())
	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		h.RegisterRoutes(r)
	})
	return router
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return w, response
}

func TestHandleGetProfiles(t *testing.T) {
	w, response := doRequest(t, setupRouter(), "GET", "/api/scoring/profiles", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, response["success"])

	profiles, ok := response["profiles"].([]interface{})
	require.True(t, ok)
	require.Len(t, profiles, 3)
	assert.Equal(t, "conversion", profiles[0].(map[string]interface{})["profile"])
}

func TestHandleProjection(t *testing.T) {
	router := setupRouter()

	t.Run("default assumptions", func(t *testing.T) {
		w, response := doRequest(t, router, "POST", "/api/scoring/projection", `{"record": `+tribecaJSON+`}`)
		assert.Equal(t, http.StatusOK, w.Code)

		projection := response["projection"].(map[string]interface{})
		assert.Equal(t, 40_000_000.0, projection["totalInvestment"])
		assert.Equal(t, 164.0, projection["breakEvenMonths"])
	})

	t.Run("custom assumptions", func(t *testing.T) {
		body := `{"record": ` + tribecaJSON + `, "assumptions": {"perSFConversionCost": 0, "averageUnitSF": 1000, "monthlyRentPerUnit": 5000}}`
		w, response := doRequest(t, router, "POST", "/api/scoring/projection", body)
		assert.Equal(t, http.StatusOK, w.Code)

		projection := response["projection"].(map[string]interface{})
		assert.Equal(t, 22_000_000.0, projection["totalInvestment"])
		assert.Equal(t, 40.0, projection["estimatedUnits"])
	})

	t.Run("missing record", func(t *testing.T) {
		w, response := doRequest(t, router, "POST", "/api/scoring/projection", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, false, response["success"])
	})

	t.Run("malformed body", func(t *testing.T) {
		w, _ := doRequest(t, router, "POST", "/api/scoring/projection", `{"record":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleAnalyze(t *testing.T) {
	router := setupRouter()

	t.Run("tribeca conversion", func(t *testing.T) {
		body := `{"record": ` + tribecaJSON + `, "profile": "conversion", "context": {"asOfYear": 2025}}`
		w, response := doRequest(t, router, "POST", "/api/scoring/analyze", body)
		require.Equal(t, http.StatusOK, w.Code)

		analysis := response["analysis"].(map[string]interface{})
		breakdown := analysis["breakdown"].(map[string]interface{})
		assert.Equal(t, 88.0, breakdown["overall"])
		assert.NotEmpty(t, analysis["opportunities"])
	})

	t.Run("unknown profile", func(t *testing.T) {
		body := `{"record": ` + tribecaJSON + `, "profile": "speculative"}`
		w, response := doRequest(t, router, "POST", "/api/scoring/analyze", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, response["error"], "speculative")
	})
}

func TestRegisterRoutes(t *testing.T) {
	h := NewHandlers(scoring.DefaultCostAssumptions(), zerolog.Nop())
	router := chi.NewRouter()

	assert.NotPanics(t, func() {
		h.RegisterRoutes(router)
	}, "RegisterRoutes should not panic")
}
