package scoring

import (
	"testing"

	"github.com/aristath/cornerstone/internal/domain"
	testingutil "github.com/aristath/cornerstone/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureByID(t *testing.T, id string) domain.PropertyRecord {
	t.Helper()
	for _, r := range testingutil.NewPropertyFixtures() {
		if r.ID == id {
			return r
		}
	}
	t.Fatalf("no fixture %s", id)
	return domain.PropertyRecord{}
}

func TestGenerateRecommendations_Tribeca(t *testing.T) {
	record := testingutil.TribecaFixture()
	b, err := newTestEngine(t, ProfileConversion).ScoreProperty(&record, asOf2025)
	require.NoError(t, err)

	recs := GenerateRecommendations(b, &record)
	assert.Equal(t, []string{
		"Strong candidate: prioritize for acquisition review",
		"Acquisition basis is attractive relative to conversion costs; move quickly",
		"Commission a structural survey to confirm floor plates suit residential layouts",
	}, recs)
}

func TestGenerateRecommendations_Tiers(t *testing.T) {
	tests := []struct {
		overall  int
		expected string
	}{
		{90, "Strong candidate: prioritize for acquisition review"},
		{70, "Solid candidate: proceed with a detailed feasibility study"},
		{55, "Marginal candidate: pursue only at a discounted basis"},
		{30, "Weak candidate: deprioritize"},
	}

	for _, tt := range tests {
		recs := GenerateRecommendations(domain.ScoreBreakdown{Overall: tt.overall}, nil)
		require.NotEmpty(t, recs)
		assert.Equal(t, tt.expected, recs[0])
	}
}

func TestGenerateRecommendations_MissingDataAndTaxProgram(t *testing.T) {
	record := fixtureByID(t, "sparse-1")
	record.EligibleForTaxProgram = true
	b, err := newTestEngine(t, ProfileConversion).ScoreProperty(&record, asOf2025)
	require.NoError(t, err)

	recs := GenerateRecommendations(b, &record)
	assert.Contains(t, recs, "Model the 467-m conversion tax incentive in underwriting")
	assert.Contains(t, recs, "Obtain missing data before underwriting: submarket, yearBuilt, pricePerSF, grossSF, zoningCode")
}

func TestIdentifyRiskFactors(t *testing.T) {
	e := newTestEngine(t, ProfileConversion)

	t.Run("tribeca has none", func(t *testing.T) {
		record := testingutil.TribecaFixture()
		b, err := e.ScoreProperty(&record, asOf2025)
		require.NoError(t, err)
		assert.Empty(t, IdentifyRiskFactors(b, &record))
	})

	t.Run("manufacturing zoning under contract", func(t *testing.T) {
		record := fixtureByID(t, "midtown-1")
		b, err := e.ScoreProperty(&record, asOf2025)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"Manufacturing zoning requires a rezoning or special permit for residential use",
			"Property is under contract; availability is uncertain",
		}, IdentifyRiskFactors(b, &record))
	})

	t.Run("historic large building", func(t *testing.T) {
		record := fixtureByID(t, "fidi-1")
		b, err := e.ScoreProperty(&record, asOf2025)
		require.NoError(t, err)

		risks := IdentifyRiskFactors(b, &record)
		assert.Contains(t, risks, "Large floor plates complicate light and air requirements for units")
		assert.Contains(t, risks, "Building is more than 120 years old; expect significant systems replacement")
	})

	t.Run("data quality and price", func(t *testing.T) {
		record := domain.PropertyRecord{
			ZoningCode:  "C6-4",
			YearBuilt:   domain.IntPtr(1990),
			GrossSF:     domain.IntPtr(10_000),
			AskingPrice: domain.Float64Ptr(12_000_000),
			PricePerSF:  domain.Float64Ptr(1500),
		}
		b, err := e.ScoreProperty(&record, asOf2025)
		require.NoError(t, err)

		risks := IdentifyRiskFactors(b, &record)
		assert.Contains(t, risks, "Price of $1500/SF compresses conversion margins")
		require.NotEmpty(t, risks)
		assert.Contains(t, risks[len(risks)-1], "Data quality:")
	})

	t.Run("nil record", func(t *testing.T) {
		assert.Empty(t, IdentifyRiskFactors(domain.ScoreBreakdown{}, nil))
	})
}

func TestIdentifyOpportunities(t *testing.T) {
	e := newTestEngine(t, ProfileConversion)

	record := testingutil.TribecaFixture()
	b, err := e.ScoreProperty(&record, asOf2025)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Prime Tribeca location supports premium residential rents",
		"Below-market basis at $550/SF",
		"Residential zoning allows an as-of-right conversion",
		"Office stock not yet converted",
		"Available now with no competing contract",
	}, IdentifyOpportunities(b, &record))

	harlem := fixtureByID(t, "harlem-1")
	b, err = e.ScoreProperty(&harlem, asOf2025)
	require.NoError(t, err)
	assert.Contains(t, IdentifyOpportunities(b, &harlem), "Harlem is an emerging submarket with neighborhood growth upside")

	assert.Empty(t, IdentifyOpportunities(domain.ScoreBreakdown{}, nil))
}

func TestInsightsAreDeterministic(t *testing.T) {
	e := newTestEngine(t, ProfileInvestment)
	for _, record := range testingutil.NewPropertyFixtures() {
		b, err := e.ScoreProperty(&record, asOf2025)
		require.NoError(t, err)

		assert.Equal(t, GenerateRecommendations(b, &record), GenerateRecommendations(b, &record))
		assert.Equal(t, IdentifyRiskFactors(b, &record), IdentifyRiskFactors(b, &record))
		assert.Equal(t, IdentifyOpportunities(b, &record), IdentifyOpportunities(b, &record))
	}
}
