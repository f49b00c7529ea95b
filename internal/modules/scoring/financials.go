package scoring

import (
	"math"

	"github.com/aristath/cornerstone/internal/domain"
)

// CostAssumptions parameterize ProjectFinancials
type CostAssumptions struct {
	PerSFConversionCost          float64 `json:"perSFConversionCost"`
	AverageUnitSF                float64 `json:"averageUnitSF"`
	MonthlyRentPerUnit           float64 `json:"monthlyRentPerUnit"`
	AssumedAnnualAppreciationPct float64 `json:"assumedAnnualAppreciationPct"`
}

// DefaultCostAssumptions returns Manhattan conversion averages
func DefaultCostAssumptions() CostAssumptions {
	return CostAssumptions{
		PerSFConversionCost:          450,
		AverageUnitSF:                850,
		MonthlyRentPerUnit:           5200,
		AssumedAnnualAppreciationPct: 3,
	}
}

// Validate rejects negative assumptions
func (c CostAssumptions) Validate() error {
	switch {
	case c.PerSFConversionCost < 0:
		return domain.NewValidationError("perSFConversionCost", "must not be negative")
	case c.AverageUnitSF < 0:
		return domain.NewValidationError("averageUnitSF", "must not be negative")
	case c.MonthlyRentPerUnit < 0:
		return domain.NewValidationError("monthlyRentPerUnit", "must not be negative")
	}
	return nil
}

// ProjectFinancials derives acquisition, conversion and return figures.
//
//	totalInvestment  = acquisition + conversion
//	projectedCapRate = revenue / totalInvestment * 100   (0 when totalInvestment is 0)
//	breakEvenMonths  = ceil(totalInvestment / (revenue/12)) (0 when revenue is 0)
//	projectedROI     = projectedCapRate + appreciation    (annual total return)
//
// Reported units win over units estimated from gross SF.
func ProjectFinancials(record *domain.PropertyRecord, costs CostAssumptions) (domain.FinancialProjection, error) {
	if record == nil {
		return domain.FinancialProjection{}, domain.NewValidationError("record", "property record is required")
	}
	if err := costs.Validate(); err != nil {
		return domain.FinancialProjection{}, err
	}

	var p domain.FinancialProjection

	if asking := record.EffectiveAskingPrice(); asking != nil && *asking > 0 {
		p.AcquisitionCost = *asking
	}

	grossSF := 0.0
	if record.GrossSF != nil && *record.GrossSF > 0 {
		grossSF = float64(*record.GrossSF)
	}
	p.ConversionCost = grossSF * costs.PerSFConversionCost
	p.TotalInvestment = p.AcquisitionCost + p.ConversionCost

	switch {
	case record.Units != nil && *record.Units > 0:
		p.EstimatedUnits = *record.Units
	case costs.AverageUnitSF > 0:
		p.EstimatedUnits = int(math.Floor(grossSF / costs.AverageUnitSF))
	}

	p.ProjectedAnnualRevenue = float64(p.EstimatedUnits) * costs.MonthlyRentPerUnit * 12

	if p.TotalInvestment > 0 {
		p.ProjectedCapRate = round2(p.ProjectedAnnualRevenue / p.TotalInvestment * 100)
		p.ProjectedROI = round2(p.ProjectedAnnualRevenue/p.TotalInvestment*100 + costs.AssumedAnnualAppreciationPct)
	}

	if p.ProjectedAnnualRevenue > 0 {
		monthly := p.ProjectedAnnualRevenue / 12
		p.BreakEvenMonths = int(math.Ceil(p.TotalInvestment / monthly))
		p.PaybackPeriodYears = round2(p.TotalInvestment / p.ProjectedAnnualRevenue)
	}

	p.InvestmentGrade = investmentGrade(p)
	return p, nil
}

func investmentGrade(p domain.FinancialProjection) string {
	if p.TotalInvestment <= 0 || p.ProjectedAnnualRevenue <= 0 {
		return GradeUnrated
	}
	switch {
	case p.ProjectedROI >= GradeAThreshold:
		return "A"
	case p.ProjectedROI >= GradeBThreshold:
		return "B"
	case p.ProjectedROI >= GradeCThreshold:
		return "C"
	default:
		return "D"
	}
}

// PriceOptimization is a recommended offer for a property
type PriceOptimization struct {
	BenchmarkPricePerSF   float64 `json:"benchmarkPricePerSF"`
	CurrentPricePerSF     float64 `json:"currentPricePerSF,omitempty"`
	AdjustmentPct         float64 `json:"adjustmentPct"`
	RecommendedPricePerSF float64 `json:"recommendedPricePerSF"`
	RecommendedOfferPrice float64 `json:"recommendedOfferPrice,omitempty"`
	ExpectedROI           float64 `json:"expectedROI"`
	// HeadroomPct is how far the recommended price sits above (+) or below (-) the current one
	HeadroomPct float64 `json:"headroomPct,omitempty"`
}

// OptimizePrice recommends an offer price per SF: the submarket benchmark
// scaled by how far the overall score sits from neutral, clamped to ±20%.
// Without a market benchmark the property's own price per SF is the benchmark.
func (e *Engine) OptimizePrice(record *domain.PropertyRecord, mctx *domain.MarketContext, costs CostAssumptions) (PriceOptimization, error) {
	breakdown, err := e.ScoreProperty(record, mctx)
	if err != nil {
		return PriceOptimization{}, err
	}
	return e.optimize(record, breakdown, mctx, costs)
}

func (e *Engine) optimize(record *domain.PropertyRecord, breakdown domain.ScoreBreakdown, mctx *domain.MarketContext, costs CostAssumptions) (PriceOptimization, error) {
	var opt PriceOptimization

	current := record.EffectivePricePerSF()
	if current != nil {
		opt.CurrentPricePerSF = round2(*current)
	}

	opt.BenchmarkPricePerSF = mctx.BenchmarkPricePerSF(record.Submarket)
	if opt.BenchmarkPricePerSF <= 0 && current != nil {
		opt.BenchmarkPricePerSF = *current
	}
	if opt.BenchmarkPricePerSF <= 0 {
		// nothing to anchor a price on
		return opt, nil
	}

	adj := (float64(breakdown.Overall) - NeutralOverallScore) / 100
	adj = math.Max(-MaxPriceAdjustment, math.Min(MaxPriceAdjustment, adj))
	opt.AdjustmentPct = round2(adj * 100)
	opt.RecommendedPricePerSF = round2(opt.BenchmarkPricePerSF * (1 + adj))

	if current != nil && *current > 0 {
		opt.HeadroomPct = round2((opt.RecommendedPricePerSF - *current) / *current * 100)
	}

	atOffer := *record
	atOffer.PricePerSF = domain.Float64Ptr(opt.RecommendedPricePerSF)
	atOffer.AskingPrice = nil
	if record.GrossSF != nil && *record.GrossSF > 0 {
		opt.RecommendedOfferPrice = round2(opt.RecommendedPricePerSF * float64(*record.GrossSF))
		atOffer.AskingPrice = domain.Float64Ptr(opt.RecommendedOfferPrice)
	}

	projection, err := ProjectFinancials(&atOffer, costs)
	if err != nil {
		return PriceOptimization{}, err
	}
	opt.ExpectedROI = projection.ProjectedROI
	return opt, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
