package testing

import (
	"github.com/aristath/cornerstone/internal/domain"
)

// TribecaFixture is a pre-war Tribeca office building with residential zoning.
// Under the conversion profile as of 2025 it scores location 95, building 85,
// financial 90, market 85, risk 80 and overall 88.
func TribecaFixture() domain.PropertyRecord {
	return domain.PropertyRecord{
		ID:          "tribeca-1",
		Address:     "100 Franklin St",
		Borough:     domain.BoroughManhattan,
		Submarket:   "Tribeca",
		Category:    domain.CategoryOfficeBuildings,
		ZoningCode:  "R10",
		Status:      domain.StatusAvailable,
		GrossSF:     domain.IntPtr(40_000),
		AskingPrice: domain.Float64Ptr(22_000_000),
		PricePerSF:  domain.Float64Ptr(550),
		YearBuilt:   domain.IntPtr(1920),
	}
}

// NewPropertyFixtures returns a varied set of Manhattan records for use in tests.
func NewPropertyFixtures() []domain.PropertyRecord {
	return []domain.PropertyRecord{
		TribecaFixture(),
		{
			ID:                    "fidi-1",
			Address:               "25 Broad St",
			Borough:               domain.BoroughManhattan,
			Submarket:             "Financial District",
			Category:              domain.CategoryOfficeBuildings,
			BuildingClass:         "O6",
			ZoningCode:            "C5-5",
			Status:                domain.StatusAvailable,
			Units:                 domain.IntPtr(180),
			GrossSF:               domain.IntPtr(210_000),
			AskingPrice:           domain.Float64Ptr(126_000_000),
			PricePerSF:            domain.Float64Ptr(600),
			YearBuilt:             domain.IntPtr(1902),
			EligibleForTaxProgram: true,
		},
		{
			ID:            "midtown-1",
			Address:       "500 Seventh Ave",
			Borough:       domain.BoroughManhattan,
			Submarket:     "Garment District",
			Category:      domain.CategoryOfficeBuildings,
			BuildingClass: "O5",
			ZoningCode:    "M1-6",
			Status:        domain.StatusUnderContract,
			GrossSF:       domain.IntPtr(95_000),
			AskingPrice:   domain.Float64Ptr(61_750_000),
			YearBuilt:     domain.IntPtr(1926),
		},
		{
			ID:            "harlem-1",
			Address:       "2300 Frederick Douglass Blvd",
			Borough:       domain.BoroughManhattan,
			Submarket:     "Harlem",
			Category:      domain.CategoryMultifamily,
			BuildingClass: "C4",
			ZoningCode:    "R7A",
			Status:        domain.StatusAvailable,
			Units:         domain.IntPtr(24),
			GrossSF:       domain.IntPtr(21_000),
			AskingPrice:   domain.Float64Ptr(8_400_000),
			YearBuilt:     domain.IntPtr(1910),
		},
		{
			ID:        "sparse-1",
			Address:   "1 Unknown Pl",
			Borough:   domain.BoroughManhattan,
			Category:  domain.CategoryMixedUse,
			Status:    domain.StatusAvailable,
			YearBuilt: nil,
		},
	}
}
