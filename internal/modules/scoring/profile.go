package scoring

import (
	"fmt"
	"strings"

	"github.com/aristath/cornerstone/internal/domain"
)

// Profile selects the weight set and modifiers the engine applies
type Profile string

const (
	// ProfileConversion rates office buildings as residential conversion candidates
	ProfileConversion Profile = "conversion"
	// ProfileInvestment rates assets as hold investments, adding growth and liquidity
	ProfileInvestment Profile = "investment"
	// ProfileMarket rates how readily an asset trades in the current market
	ProfileMarket Profile = "market"
)

// Weight is one component's share of the overall score
type Weight struct {
	Component string  `json:"component"`
	Value     float64 `json:"weight"`
}

// ProfileDefinition describes how a profile combines component scores.
// Weights sum to 1.0.
type ProfileDefinition struct {
	Profile         Profile  `json:"profile"`
	Description     string   `json:"description"`
	Weights         []Weight `json:"weights"`
	RiskBase        float64  `json:"riskBase"`
	StatusModifiers bool     `json:"statusModifiers"`
}

// Uses reports whether the profile weights the named component.
func (d ProfileDefinition) Uses(component string) bool {
	for _, w := range d.Weights {
		if w.Component == component {
			return true
		}
	}
	return false
}

var profileDefinitions = map[Profile]ProfileDefinition{
	ProfileConversion: {
		Profile:     ProfileConversion,
		Description: "Office-to-residential conversion feasibility",
		Weights: []Weight{
			{ComponentLocation, 0.25},
			{ComponentBuilding, 0.20},
			{ComponentFinancial, 0.25},
			{ComponentMarket, 0.20},
			{ComponentRisk, 0.10},
		},
		RiskBase:        70,
		StatusModifiers: true,
	},
	ProfileInvestment: {
		Profile:     ProfileInvestment,
		Description: "Long-term investment quality with growth and liquidity",
		Weights: []Weight{
			{ComponentLocation, 0.20},
			{ComponentFinancial, 0.25},
			{ComponentMarket, 0.15},
			{ComponentRisk, 0.15},
			{ComponentGrowth, 0.15},
			{ComponentLiquidity, 0.10},
		},
		RiskBase: 80,
	},
	ProfileMarket: {
		Profile:     ProfileMarket,
		Description: "Near-term market positioning and tradability",
		Weights: []Weight{
			{ComponentLocation, 0.30},
			{ComponentMarket, 0.35},
			{ComponentFinancial, 0.20},
			{ComponentLiquidity, 0.15},
		},
		RiskBase:        75,
		StatusModifiers: true,
	},
}

// AllProfiles lists every profile in a stable order.
var AllProfiles = []Profile{ProfileConversion, ProfileInvestment, ProfileMarket}

// ParseProfile maps a name to a Profile. Empty selects the conversion profile.
func ParseProfile(s string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return ProfileConversion, nil
	}
	if _, ok := profileDefinitions[p]; !ok {
		return "", domain.NewValidationError("profile", fmt.Sprintf("unknown scoring profile %q", s))
	}
	return p, nil
}

// Definition returns the definition of a profile.
func Definition(p Profile) (ProfileDefinition, bool) {
	d, ok := profileDefinitions[p]
	return d, ok
}

// Definitions returns every profile definition in AllProfiles order.
func Definitions() []ProfileDefinition {
	out := make([]ProfileDefinition, 0, len(AllProfiles))
	for _, p := range AllProfiles {
		out = append(out, profileDefinitions[p])
	}
	return out
}
