package scoring

// Scoring constants - all thresholds, tables and weights used by the engine.

// Component names used as keys in ScoreBreakdown.Components
const (
	ComponentLocation  = "location"
	ComponentBuilding  = "building"
	ComponentFinancial = "financial"
	ComponentMarket    = "market"
	ComponentRisk      = "risk"
	ComponentGrowth    = "growth"
	ComponentLiquidity = "liquidity"
)

// =============================================================================
// Location Score Constants
// =============================================================================

// DefaultLocationScore applies to submarkets missing from LocationScores
const DefaultLocationScore = 65.0

// LocationScores rate residential prestige by submarket.
var LocationScores = map[string]float64{
	"Tribeca":            95,
	"West Village":       93,
	"SoHo":               92,
	"Greenwich Village":  92,
	"Hudson Yards":       88,
	"Chelsea":            88,
	"Flatiron":           87,
	"Upper East Side":    86,
	"NoMad":              85,
	"Upper West Side":    85,
	"Battery Park City":  84,
	"Financial District": 82,
	"Gramercy":           82,
	"Midtown":            80,
	"Midtown East":       80,
	"East Village":       80,
	"Midtown West":       78,
	"Murray Hill":        78,
	"Lower East Side":    76,
	"Kips Bay":           74,
	"Garment District":   72,
	"Harlem":             70,
}

// =============================================================================
// Building Score Constants
// =============================================================================

const (
	// Age brackets (years since construction)
	PreWarMinAge  = 80  // [80,120] pre-war stock with deep floor plates
	PreWarMaxAge  = 120 // older than this needs heavy systems work
	MidCenturyAge = 40  // [40,80)

	PreWarScore     = 85.0
	MidCenturyScore = 75.0
	ModernScore     = 65.0
	HistoricScore   = 60.0

	// Missing YearBuilt
	DefaultBuildingScore = 70.0

	// DOF building class prefix bonuses
	OfficeClassBonus = 10.0 // "O" office
	StoreClassBonus  = 5.0  // "K" store
)

// =============================================================================
// Financial Score Constants
// =============================================================================

const (
	PricePerSFLow      = 600.0  // below: 90
	PricePerSFModerate = 800.0  // below: 80
	PricePerSFHigh     = 1000.0 // below: 70, otherwise 50

	LowPriceScore      = 90.0
	ModeratePriceScore = 80.0
	HighPriceScore     = 70.0
	PremiumPriceScore  = 50.0

	// Missing price per SF
	DefaultFinancialScore = 60.0
)

// =============================================================================
// Market Score Constants
// =============================================================================

// DefaultMarketScore applies to submarkets missing from MarketVelocityScores
const DefaultMarketScore = 70.0

// MarketVelocityScores rate transaction velocity by submarket. This is a
// different ordering from LocationScores: deep, liquid office submarkets trade
// faster than prestige residential ones.
var MarketVelocityScores = map[string]float64{
	"Financial District": 85,
	"Garment District":   82,
	"Midtown":            80,
	"NoMad":              80,
	"SoHo":               78,
	"Midtown East":       78,
	"Flatiron":           77,
	"Midtown West":       76,
	"Chelsea":            76,
	"Tribeca":            75,
	"Murray Hill":        74,
	"Hudson Yards":       72,
	"Upper East Side":    70,
	"Upper West Side":    70,
	"Harlem":             68,
}

const (
	AvailableStatusBonus       = 10.0
	UnderContractStatusPenalty = 20.0
	MortgageTrendAdjustment    = 5.0 // falling rates +5, rising -5
)

// =============================================================================
// Risk Score Constants (higher = lower risk)
// =============================================================================

const (
	ResidentialZoningBonus     = 10.0 // zoning contains "R"
	CommercialZoningBonus      = 5.0  // zoning contains "C"
	ManufacturingZoningPenalty = 5.0  // zoning contains "M"

	LargeBuildingSF      = 100_000 // above: -10 (scale complexity)
	SmallBuildingSF      = 5_000   // below: -5 (sub-scale)
	LargeBuildingPenalty = 10.0
	SmallBuildingPenalty = 5.0
)

// =============================================================================
// Growth / Liquidity Score Constants
// =============================================================================

const (
	GrowthBaseScore        = 60.0
	EmergingSubmarketBonus = 20.0
	UnconvertedOfficeBonus = 15.0

	LiquidityBaseScore          = 50.0
	HighLiquiditySubmarketBonus = 20.0
	SmallDealBonus              = 15.0
	LargeDealPenalty            = 10.0
	SmallDealPrice              = 10_000_000.0
	LargeDealPrice              = 50_000_000.0
)

// EmergingSubmarkets are neighborhoods with active rezoning or infrastructure investment.
var EmergingSubmarkets = map[string]bool{
	"Harlem":             true,
	"Garment District":   true,
	"Hudson Yards":       true,
	"Financial District": true,
	"NoMad":              true,
	"Lower East Side":    true,
	"Kips Bay":           true,
}

// HighLiquiditySubmarkets see the deepest buyer pools.
var HighLiquiditySubmarkets = map[string]bool{
	"Midtown":            true,
	"Midtown East":       true,
	"Financial District": true,
	"Tribeca":            true,
	"SoHo":               true,
	"Chelsea":            true,
	"Flatiron":           true,
	"Upper East Side":    true,
}

// =============================================================================
// Price Optimization Constants
// =============================================================================

const (
	// Overall score at which the recommended price equals the benchmark
	NeutralOverallScore = 70.0

	// Maximum adjustment from the benchmark in either direction
	MaxPriceAdjustment = 0.20
)

// =============================================================================
// Investment Grade Thresholds (projected ROI, percent)
// =============================================================================

const (
	GradeAThreshold = 15.0
	GradeBThreshold = 10.0
	GradeCThreshold = 6.0

	GradeUnrated = "Unrated"
)
