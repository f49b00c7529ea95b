package domain

// ScoreBreakdown is the Scoring Engine output for one PropertyRecord.
// Components holds one 0-100 sub-score per dimension of the profile used.
type ScoreBreakdown struct {
	PropertyID string             `json:"propertyId"`
	Address    string             `json:"address"`
	Submarket  string             `json:"submarket,omitempty"`
	Profile    string             `json:"profile"`
	Components map[string]float64 `json:"components"`
	Overall    int                `json:"overall"`
	Rank       int                `json:"rank,omitempty"`
}

// Component returns a sub-score, or 0 if the profile does not score that dimension.
func (b ScoreBreakdown) Component(name string) float64 {
	return b.Components[name]
}

// FinancialProjection is derived investment arithmetic for a PropertyRecord.
type FinancialProjection struct {
	AcquisitionCost        float64 `json:"acquisitionCost"`
	ConversionCost         float64 `json:"conversionCost"`
	TotalInvestment        float64 `json:"totalInvestment"`
	EstimatedUnits         int     `json:"estimatedUnits"`
	ProjectedAnnualRevenue float64 `json:"projectedAnnualRevenue"`
	ProjectedCapRate       float64 `json:"projectedCapRate"`
	BreakEvenMonths        int     `json:"breakEvenMonths"`
	ProjectedROI           float64 `json:"projectedROI"`
	PaybackPeriodYears     float64 `json:"paybackPeriodYears"`
	InvestmentGrade        string  `json:"investmentGrade"`
}

// MortgageTrend summarizes the direction of mortgage rates.
type MortgageTrend string

const (
	TrendRising  MortgageTrend = "rising"
	TrendFalling MortgageTrend = "falling"
	TrendFlat    MortgageTrend = "flat"
)

// MarketContext carries optional market aggregates into the Scoring Engine.
// A nil context is valid everywhere.
type MarketContext struct {
	// AsOfYear anchors building-age calculations. Zero means the engine's current year.
	AsOfYear int `json:"asOfYear,omitempty"`
	// MortgageTrend nudges the market sub-score.
	MortgageTrend MortgageTrend `json:"mortgageTrend,omitempty"`
	// SubmarketPricePerSF holds benchmark price per SF keyed by submarket.
	SubmarketPricePerSF map[string]float64 `json:"submarketPricePerSF,omitempty"`
	// AveragePricePerSF is the benchmark used when a submarket has none.
	AveragePricePerSF float64 `json:"averagePricePerSF,omitempty"`
}

// BenchmarkPricePerSF returns the submarket benchmark, falling back to the
// overall average. Returns 0 if the context holds no benchmark.
func (c *MarketContext) BenchmarkPricePerSF(submarket string) float64 {
	if c == nil {
		return 0
	}
	if v, ok := c.SubmarketPricePerSF[submarket]; ok && v > 0 {
		return v
	}
	return c.AveragePricePerSF
}
