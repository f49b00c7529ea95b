// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"math"
	"strings"
)

// Borough represents one of the five NYC boroughs
type Borough string

const (
	BoroughManhattan    Borough = "Manhattan"
	BoroughBrooklyn     Borough = "Brooklyn"
	BoroughQueens       Borough = "Queens"
	BoroughBronx        Borough = "Bronx"
	BoroughStatenIsland Borough = "StatenIsland"
)

// AllBoroughs lists the recognized boroughs in DOF borough-code order.
var AllBoroughs = []Borough{
	BoroughManhattan,
	BoroughBronx,
	BoroughBrooklyn,
	BoroughQueens,
	BoroughStatenIsland,
}

// ParseBorough accepts the borough name in any case, with or without spaces
// ("Staten Island"), or the DOF numeric code ("1" = Manhattan).
func ParseBorough(s string) (Borough, bool) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	switch normalized {
	case "manhattan", "1", "mn", "newyork":
		return BoroughManhattan, true
	case "bronx", "2", "bx", "thebronx":
		return BoroughBronx, true
	case "brooklyn", "3", "bk":
		return BoroughBrooklyn, true
	case "queens", "4", "qn":
		return BoroughQueens, true
	case "statenisland", "5", "si":
		return BoroughStatenIsland, true
	}
	return "", false
}

// Code returns the DOF numeric borough code.
func (b Borough) Code() string {
	for i, borough := range AllBoroughs {
		if borough == b {
			return fmt.Sprintf("%d", i+1)
		}
	}
	return ""
}

// PropertyCategory classifies an asset for scoring purposes
type PropertyCategory string

const (
	CategoryOfficeBuildings     PropertyCategory = "OfficeBuildings"
	CategoryMultifamily         PropertyCategory = "Multifamily"
	CategoryMixedUse            PropertyCategory = "MixedUse"
	CategoryDevelopmentSite     PropertyCategory = "DevelopmentSite"
	CategoryIndustrial          PropertyCategory = "Industrial"
	CategoryRetailCondo         PropertyCategory = "RetailCondo"
	CategoryGroundLease         PropertyCategory = "GroundLease"
	CategoryConversionCandidate PropertyCategory = "ConversionCandidate"
)

// IsOffice reports whether the category is an office asset that can still be converted.
func (c PropertyCategory) IsOffice() bool {
	return c == CategoryOfficeBuildings || c == CategoryConversionCandidate
}

// PropertyStatus is the listing or project status of a property
type PropertyStatus string

const (
	StatusAvailable     PropertyStatus = "Available"
	StatusUnderContract PropertyStatus = "UnderContract"
	StatusSold          PropertyStatus = "Sold"
	StatusCompleted     PropertyStatus = "Completed"
	StatusUnderway      PropertyStatus = "Underway"
	StatusProjected     PropertyStatus = "Projected"
)

// PropertyRecord is a real-estate asset under evaluation.
// Optional attributes are pointers; nil means "not reported by the source".
type PropertyRecord struct {
	ID                    string           `json:"id"`
	Address               string           `json:"address"`
	Borough               Borough          `json:"borough,omitempty"`
	Submarket             string           `json:"submarket,omitempty"`
	Category              PropertyCategory `json:"propertyCategory,omitempty"`
	BuildingClass         string           `json:"buildingClass,omitempty"`
	ZoningCode            string           `json:"zoningCode,omitempty"`
	Status                PropertyStatus   `json:"status,omitempty"`
	Units                 *int             `json:"units,omitempty"`
	GrossSF               *int             `json:"grossSF,omitempty"`
	AskingPrice           *float64         `json:"askingPrice,omitempty"`
	PricePerSF            *float64         `json:"pricePerSF,omitempty"`
	CapRate               *float64         `json:"capRate,omitempty"`
	YearBuilt             *int             `json:"yearBuilt,omitempty"`
	EligibleForTaxProgram bool             `json:"eligibleForTaxProgram"`
}

// pricePerSFTolerance is the relative difference allowed between a reported
// price per SF and askingPrice/grossSF before it is flagged.
const pricePerSFTolerance = 0.01

// EffectivePricePerSF returns the reported price per SF, or derives it from
// asking price and gross SF. Returns nil when neither is possible.
func (p *PropertyRecord) EffectivePricePerSF() *float64 {
	if p.PricePerSF != nil && *p.PricePerSF > 0 {
		v := *p.PricePerSF
		return &v
	}
	if p.AskingPrice != nil && p.GrossSF != nil && *p.GrossSF > 0 && *p.AskingPrice > 0 {
		v := *p.AskingPrice / float64(*p.GrossSF)
		return &v
	}
	return nil
}

// EffectiveAskingPrice returns the asking price, or derives it from price per SF
// and gross SF.
func (p *PropertyRecord) EffectiveAskingPrice() *float64 {
	if p.AskingPrice != nil {
		v := *p.AskingPrice
		return &v
	}
	if p.PricePerSF != nil && p.GrossSF != nil && *p.GrossSF > 0 {
		v := *p.PricePerSF * float64(*p.GrossSF)
		return &v
	}
	return nil
}

// DataQualityIssues reports soft inconsistencies in the record. None of these
// stop a record from being scored.
func (p *PropertyRecord) DataQualityIssues() []string {
	var issues []string

	if p.AskingPrice != nil && p.GrossSF != nil && p.PricePerSF != nil && *p.GrossSF > 0 {
		derived := *p.AskingPrice / float64(*p.GrossSF)
		if derived > 0 && math.Abs(derived-*p.PricePerSF)/derived > pricePerSFTolerance {
			issues = append(issues, fmt.Sprintf(
				"pricePerSF %.2f does not match askingPrice/grossSF %.2f", *p.PricePerSF, derived))
		}
	}
	if p.Units != nil && *p.Units < 0 {
		issues = append(issues, "units is negative")
	}
	if p.GrossSF != nil && *p.GrossSF <= 0 {
		issues = append(issues, "grossSF is not positive")
	}
	if p.AskingPrice != nil && *p.AskingPrice < 0 {
		issues = append(issues, "askingPrice is negative")
	}
	if p.CapRate != nil && (*p.CapRate < 0 || *p.CapRate > 100) {
		issues = append(issues, "capRate is outside 0-100")
	}

	return issues
}

// MissingFields lists the optional scoring inputs that are absent.
func (p *PropertyRecord) MissingFields() []string {
	var missing []string
	if p.Submarket == "" {
		missing = append(missing, "submarket")
	}
	if p.YearBuilt == nil {
		missing = append(missing, "yearBuilt")
	}
	if p.EffectivePricePerSF() == nil {
		missing = append(missing, "pricePerSF")
	}
	if p.GrossSF == nil {
		missing = append(missing, "grossSF")
	}
	if p.ZoningCode == "" {
		missing = append(missing, "zoningCode")
	}
	return missing
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}
