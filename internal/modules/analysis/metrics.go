package analysis

import (
	"math"
	"sort"

	"github.com/aristath/cornerstone/internal/clients/nycopendata"
	"github.com/aristath/cornerstone/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// MarketMetrics aggregates a set of property records and permits
type MarketMetrics struct {
	PropertyCount       int                `json:"propertyCount"`
	PricedCount         int                `json:"pricedCount"`
	AveragePricePerSF   float64            `json:"averagePricePerSF"`
	MedianPricePerSF    float64            `json:"medianPricePerSF"`
	StdDevPricePerSF    float64            `json:"stdDevPricePerSF"`
	AverageCapRate      float64            `json:"averageCapRate"`
	TotalGrossSF        int                `json:"totalGrossSF"`
	OfficeCount         int                `json:"officeCount"`
	TaxEligibleCount    int                `json:"taxEligibleCount"`
	SubmarketPricePerSF map[string]float64 `json:"submarketPricePerSF"`
	SubmarketCounts     map[string]int     `json:"submarketCounts"`
	PermitCount         int                `json:"permitCount"`
	ConversionPermits   int                `json:"conversionPermits"`
}

// ComputeMarketMetrics summarizes records and permits. Price statistics only
// consider records with a derivable price per SF. The median is the lower
// empirical median.
func ComputeMarketMetrics(records []domain.PropertyRecord, permits []nycopendata.Permit) MarketMetrics {
	m := MarketMetrics{
		PropertyCount:       len(records),
		SubmarketPricePerSF: make(map[string]float64),
		SubmarketCounts:     make(map[string]int),
		PermitCount:         len(permits),
		ConversionPermits:   nycopendata.CountConversions(permits),
	}

	var prices, capRates []float64
	bySubmarket := make(map[string][]float64)

	for i := range records {
		r := &records[i]

		if r.GrossSF != nil && *r.GrossSF > 0 {
			m.TotalGrossSF += *r.GrossSF
		}
		if r.Category.IsOffice() {
			m.OfficeCount++
		}
		if r.EligibleForTaxProgram {
			m.TaxEligibleCount++
		}
		if r.CapRate != nil && *r.CapRate > 0 {
			capRates = append(capRates, *r.CapRate)
		}
		if r.Submarket != "" {
			m.SubmarketCounts[r.Submarket]++
		}

		psf := r.EffectivePricePerSF()
		if psf == nil {
			continue
		}
		prices = append(prices, *psf)
		if r.Submarket != "" {
			bySubmarket[r.Submarket] = append(bySubmarket[r.Submarket], *psf)
		}
	}

	m.PricedCount = len(prices)
	if len(prices) > 0 {
		sort.Float64s(prices)
		m.AveragePricePerSF = round2(stat.Mean(prices, nil))
		m.MedianPricePerSF = round2(stat.Quantile(0.5, stat.Empirical, prices, nil))
		if len(prices) > 1 {
			m.StdDevPricePerSF = round2(stat.StdDev(prices, nil))
		}
	}
	if len(capRates) > 0 {
		m.AverageCapRate = round2(stat.Mean(capRates, nil))
	}
	for submarket, values := range bySubmarket {
		m.SubmarketPricePerSF[submarket] = round2(stat.Mean(values, nil))
	}

	return m
}

// Context turns the metrics into scoring input
func (m MarketMetrics) Context(asOfYear int, trend domain.MortgageTrend) *domain.MarketContext {
	benchmarks := make(map[string]float64, len(m.SubmarketPricePerSF))
	for k, v := range m.SubmarketPricePerSF {
		benchmarks[k] = v
	}
	return &domain.MarketContext{
		AsOfYear:            asOfYear,
		MortgageTrend:       trend,
		SubmarketPricePerSF: benchmarks,
		AveragePricePerSF:   m.AveragePricePerSF,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
