package analysis

import (
	"testing"

	"github.com/aristath/cornerstone/internal/clients/nycopendata"
	"github.com/aristath/cornerstone/internal/domain"
	testingutil "github.com/aristath/cornerstone/internal/testing"
	"github.com/stretchr/testify/assert"
)

func TestComputeMarketMetrics(t *testing.T) {
	permits := []nycopendata.Permit{
		{JobNumber: "1", JobType: "A1"},
		{JobNumber: "2", JobType: "A2"},
		{JobNumber: "3", JobType: "A1"},
	}

	m := ComputeMarketMetrics(testingutil.NewPropertyFixtures(), permits)

	assert.Equal(t, 5, m.PropertyCount)
	// sparse-1 has no price; midtown-1 and harlem-1 derive theirs from asking/grossSF
	assert.Equal(t, 4, m.PricedCount)
	assert.Equal(t, 550.0, m.AveragePricePerSF)
	assert.Equal(t, 550.0, m.MedianPricePerSF)
	assert.InDelta(t, 108.01, m.StdDevPricePerSF, 0.01)
	assert.Zero(t, m.AverageCapRate)
	assert.Equal(t, 366_000, m.TotalGrossSF)
	assert.Equal(t, 3, m.OfficeCount)
	assert.Equal(t, 1, m.TaxEligibleCount)
	assert.Equal(t, 3, m.PermitCount)
	assert.Equal(t, 2, m.ConversionPermits)

	assert.Equal(t, map[string]float64{
		"Tribeca":            550,
		"Financial District": 600,
		"Garment District":   650,
		"Harlem":             400,
	}, m.SubmarketPricePerSF)
	assert.Len(t, m.SubmarketCounts, 4)
}

func TestComputeMarketMetrics_Empty(t *testing.T) {
	m := ComputeMarketMetrics(nil, nil)

	assert.Zero(t, m.PropertyCount)
	assert.Zero(t, m.AveragePricePerSF)
	assert.Zero(t, m.MedianPricePerSF)
	assert.Zero(t, m.StdDevPricePerSF)
	assert.NotNil(t, m.SubmarketPricePerSF)
}

func TestComputeMarketMetrics_CapRatesAndSingletons(t *testing.T) {
	records := []domain.PropertyRecord{
		{ID: "a", PricePerSF: domain.Float64Ptr(700), CapRate: domain.Float64Ptr(5)},
		{ID: "b", CapRate: domain.Float64Ptr(6.5)},
		{ID: "c", CapRate: domain.Float64Ptr(0)},
	}

	m := ComputeMarketMetrics(records, nil)
	assert.Equal(t, 5.75, m.AverageCapRate)
	assert.Equal(t, 700.0, m.MedianPricePerSF)
	assert.Zero(t, m.StdDevPricePerSF)
}

func TestMarketMetrics_Context(t *testing.T) {
	m := ComputeMarketMetrics(testingutil.NewPropertyFixtures(), nil)
	ctx := m.Context(2025, domain.TrendFalling)

	assert.Equal(t, 2025, ctx.AsOfYear)
	assert.Equal(t, domain.TrendFalling, ctx.MortgageTrend)
	assert.Equal(t, 550.0, ctx.BenchmarkPricePerSF("Tribeca"))
	assert.Equal(t, 550.0, ctx.BenchmarkPricePerSF("SoHo"))

	ctx.SubmarketPricePerSF["Tribeca"] = 1
	assert.Equal(t, 550.0, m.SubmarketPricePerSF["Tribeca"])
}
