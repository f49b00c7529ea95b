package scoring

import (
	"math"
	"strings"

	"github.com/aristath/cornerstone/internal/domain"
)

// LocationScore looks up the submarket's prestige score.
func LocationScore(submarket string) float64 {
	if v, ok := lookupSubmarket(LocationScores, submarket); ok {
		return v
	}
	return DefaultLocationScore
}

// BuildingScore rates the building's age bracket, plus a DOF building class bonus.
// asOfYear is the year ages are measured from.
func BuildingScore(record *domain.PropertyRecord, asOfYear int) float64 {
	score := DefaultBuildingScore
	if record.YearBuilt != nil {
		age := asOfYear - *record.YearBuilt
		switch {
		case age > PreWarMaxAge:
			score = HistoricScore
		case age >= PreWarMinAge:
			score = PreWarScore
		case age >= MidCenturyAge:
			score = MidCenturyScore
		default:
			score = ModernScore
		}
	}

	return clamp(score + classBonus(record.BuildingClass))
}

// classBonus is the bonus for a DOF building class prefix
func classBonus(buildingClass string) float64 {
	class := strings.ToUpper(strings.TrimSpace(buildingClass))
	switch {
	case strings.HasPrefix(class, "O"):
		return OfficeClassBonus
	case strings.HasPrefix(class, "K"):
		return StoreClassBonus
	}
	return 0
}

// FinancialScore steps down as the acquisition price per SF rises.
func FinancialScore(record *domain.PropertyRecord) float64 {
	psf := record.EffectivePricePerSF()
	if psf == nil {
		return DefaultFinancialScore
	}
	switch {
	case *psf < PricePerSFLow:
		return LowPriceScore
	case *psf < PricePerSFModerate:
		return ModeratePriceScore
	case *psf < PricePerSFHigh:
		return HighPriceScore
	default:
		return PremiumPriceScore
	}
}

// MarketScore combines submarket velocity with listing status and the
// mortgage-rate trend.
func MarketScore(record *domain.PropertyRecord, mctx *domain.MarketContext, statusModifiers bool) float64 {
	score := DefaultMarketScore
	if v, ok := lookupSubmarket(MarketVelocityScores, record.Submarket); ok {
		score = v
	}

	if statusModifiers {
		switch record.Status {
		case domain.StatusAvailable:
			score += AvailableStatusBonus
		case domain.StatusUnderContract:
			score -= UnderContractStatusPenalty
		}
	}

	if mctx != nil {
		switch mctx.MortgageTrend {
		case domain.TrendFalling:
			score += MortgageTrendAdjustment
		case domain.TrendRising:
			score -= MortgageTrendAdjustment
		}
	}

	return clamp(score)
}

// RiskScore starts from the profile base and adjusts for zoning and size.
// Higher means lower risk.
func RiskScore(record *domain.PropertyRecord, base float64) float64 {
	score := base

	zoning := strings.ToUpper(record.ZoningCode)
	if strings.Contains(zoning, "R") {
		score += ResidentialZoningBonus
	}
	if strings.Contains(zoning, "C") {
		score += CommercialZoningBonus
	}
	if strings.Contains(zoning, "M") {
		score -= ManufacturingZoningPenalty
	}

	if record.GrossSF != nil {
		switch {
		case *record.GrossSF > LargeBuildingSF:
			score -= LargeBuildingPenalty
		case *record.GrossSF < SmallBuildingSF:
			score -= SmallBuildingPenalty
		}
	}

	return clamp(score)
}

// GrowthScore rewards emerging submarkets and office stock not yet converted.
func GrowthScore(record *domain.PropertyRecord) float64 {
	score := GrowthBaseScore
	if isEmerging(record.Submarket) {
		score += EmergingSubmarketBonus
	}
	if record.Category.IsOffice() && record.Status != domain.StatusCompleted {
		score += UnconvertedOfficeBonus
	}
	return clamp(score)
}

// LiquidityScore rewards deep submarkets and deal sizes with many buyers.
func LiquidityScore(record *domain.PropertyRecord) float64 {
	score := LiquidityBaseScore
	if isHighLiquidity(record.Submarket) {
		score += HighLiquiditySubmarketBonus
	}
	if asking := record.EffectiveAskingPrice(); asking != nil {
		switch {
		case *asking < SmallDealPrice:
			score += SmallDealBonus
		case *asking > LargeDealPrice:
			score -= LargeDealPenalty
		}
	}
	return clamp(score)
}

func isEmerging(submarket string) bool {
	_, ok := lookupSubmarket(EmergingSubmarkets, submarket)
	return ok
}

func isHighLiquidity(submarket string) bool {
	_, ok := lookupSubmarket(HighLiquiditySubmarkets, submarket)
	return ok
}

// lookupSubmarket matches submarket names case-insensitively
func lookupSubmarket[V any](table map[string]V, submarket string) (V, bool) {
	var zero V
	name := strings.TrimSpace(submarket)
	if name == "" {
		return zero, false
	}
	if v, ok := table[name]; ok {
		return v, true
	}
	for k, v := range table {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return zero, false
}

// clamp bounds a component score to [0, 100]
func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
