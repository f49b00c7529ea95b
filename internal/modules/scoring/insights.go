package scoring

import (
	"fmt"
	"strings"

	"github.com/aristath/cornerstone/internal/domain"
)

const (
	// Overall score tiers
	StrongCandidateScore   = 85
	SolidCandidateScore    = 70
	MarginalCandidateScore = 55

	// Component thresholds
	StrongComponentScore = 85.0
	WeakComponentScore   = 60.0
	PrimeLocationScore   = 90.0
	ElevatedRiskScore    = 70.0
)

// GenerateRecommendations returns next steps driven by the overall tier and
// the strongest and weakest components.
func GenerateRecommendations(breakdown domain.ScoreBreakdown, record *domain.PropertyRecord) []string {
	recs := []string{}

	switch {
	case breakdown.Overall >= StrongCandidateScore:
		recs = append(recs, "Strong candidate: prioritize for acquisition review")
	case breakdown.Overall >= SolidCandidateScore:
		recs = append(recs, "Solid candidate: proceed with a detailed feasibility study")
	case breakdown.Overall >= MarginalCandidateScore:
		recs = append(recs, "Marginal candidate: pursue only at a discounted basis")
	default:
		recs = append(recs, "Weak candidate: deprioritize")
	}

	if v, ok := breakdown.Components[ComponentFinancial]; ok && v >= StrongComponentScore {
		recs = append(recs, "Acquisition basis is attractive relative to conversion costs; move quickly")
	}
	if v, ok := breakdown.Components[ComponentBuilding]; ok && v >= StrongComponentScore {
		recs = append(recs, "Commission a structural survey to confirm floor plates suit residential layouts")
	}
	if v, ok := breakdown.Components[ComponentRisk]; ok && v < ElevatedRiskScore {
		recs = append(recs, "Engage zoning counsel early to confirm residential use is permitted")
	}
	if v, ok := breakdown.Components[ComponentMarket]; ok && v < WeakComponentScore {
		recs = append(recs, "Negotiate longer due diligence; the submarket is trading slowly")
	}
	if v, ok := breakdown.Components[ComponentLiquidity]; ok && v < WeakComponentScore {
		recs = append(recs, "Plan for a longer hold; exit liquidity is limited")
	}

	if record == nil {
		return recs
	}
	if record.EligibleForTaxProgram {
		recs = append(recs, "Model the 467-m conversion tax incentive in underwriting")
	}
	if missing := record.MissingFields(); len(missing) > 0 {
		recs = append(recs, fmt.Sprintf("Obtain missing data before underwriting: %s", strings.Join(missing, ", ")))
	}
	return recs
}

// IdentifyRiskFactors lists conditions that threaten a conversion.
func IdentifyRiskFactors(breakdown domain.ScoreBreakdown, record *domain.PropertyRecord) []string {
	risks := []string{}
	if record == nil {
		return risks
	}

	zoning := strings.ToUpper(record.ZoningCode)
	switch {
	case zoning == "":
		risks = append(risks, "Zoning not reported; residential use is unconfirmed")
	case strings.Contains(zoning, "M") && !strings.Contains(zoning, "R"):
		risks = append(risks, "Manufacturing zoning requires a rezoning or special permit for residential use")
	}

	if record.GrossSF != nil {
		switch {
		case *record.GrossSF > LargeBuildingSF:
			risks = append(risks, "Large floor plates complicate light and air requirements for units")
		case *record.GrossSF < SmallBuildingSF:
			risks = append(risks, "Sub-scale building limits unit count and efficiency")
		}
	}

	if record.YearBuilt == nil {
		risks = append(risks, "Year built unknown; building systems condition is unassessed")
	} else if v, ok := breakdown.Components[ComponentBuilding]; ok && v-classBonus(record.BuildingClass) == HistoricScore {
		risks = append(risks, fmt.Sprintf("Building is more than %d years old; expect significant systems replacement", PreWarMaxAge))
	}

	if psf := record.EffectivePricePerSF(); psf != nil && *psf >= PricePerSFHigh {
		risks = append(risks, fmt.Sprintf("Price of $%.0f/SF compresses conversion margins", *psf))
	}

	if record.Status == domain.StatusUnderContract {
		risks = append(risks, "Property is under contract; availability is uncertain")
	}

	if v, ok := breakdown.Components[ComponentMarket]; ok && v < WeakComponentScore {
		risks = append(risks, "Slow submarket transaction velocity")
	}

	for _, issue := range record.DataQualityIssues() {
		risks = append(risks, "Data quality: "+issue)
	}
	return risks
}

// IdentifyOpportunities lists conditions that favor a conversion or acquisition.
func IdentifyOpportunities(breakdown domain.ScoreBreakdown, record *domain.PropertyRecord) []string {
	opps := []string{}
	if record == nil {
		return opps
	}

	if v, ok := breakdown.Components[ComponentLocation]; ok && v >= PrimeLocationScore {
		opps = append(opps, fmt.Sprintf("Prime %s location supports premium residential rents", record.Submarket))
	}
	if isEmerging(record.Submarket) {
		opps = append(opps, fmt.Sprintf("%s is an emerging submarket with neighborhood growth upside", record.Submarket))
	}
	if psf := record.EffectivePricePerSF(); psf != nil && *psf < PricePerSFLow {
		opps = append(opps, fmt.Sprintf("Below-market basis at $%.0f/SF", *psf))
	}
	if strings.Contains(strings.ToUpper(record.ZoningCode), "R") {
		opps = append(opps, "Residential zoning allows an as-of-right conversion")
	}
	if record.EligibleForTaxProgram {
		opps = append(opps, "Eligible for the 467-m conversion tax incentive")
	}
	if record.Category.IsOffice() && record.Status != domain.StatusCompleted {
		opps = append(opps, "Office stock not yet converted")
	}
	if record.Status == domain.StatusAvailable {
		opps = append(opps, "Available now with no competing contract")
	}
	return opps
}
