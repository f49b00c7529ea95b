package nycopendata

import (
	"strings"
	"time"

	"github.com/aristath/cornerstone/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// recordNamespace scopes deterministic record IDs
var recordNamespace = uuid.MustParse("6f1c8d2e-4b7a-4e59-9a3d-2c5e8f0b1a47")

// submarketPrefixes maps DOF neighborhood names (upper case, prefix match) to
// the submarket names used for scoring. Longer prefixes are listed first.
var submarketPrefixes = []struct {
	prefix    string
	submarket string
}{
	{"GREENWICH VILLAGE-WEST", "West Village"},
	{"GREENWICH VILLAGE", "Greenwich Village"},
	{"UPPER EAST SIDE", "Upper East Side"},
	{"UPPER WEST SIDE", "Upper West Side"},
	{"MIDTOWN EAST", "Midtown East"},
	{"MIDTOWN WEST", "Midtown West"},
	{"MIDTOWN CBD", "Midtown"},
	{"MIDTOWN", "Midtown"},
	{"FINANCIAL", "Financial District"},
	{"SOUTHBRIDGE", "Financial District"},
	{"BATTERY PARK", "Battery Park City"},
	{"FASHION", "Garment District"},
	{"JAVITS CENTER", "Hudson Yards"},
	{"CLINTON", "Midtown West"},
	{"LOWER EAST SIDE", "Lower East Side"},
	{"EAST VILLAGE", "East Village"},
	{"TRIBECA", "Tribeca"},
	{"SOHO", "SoHo"},
	{"CHELSEA", "Chelsea"},
	{"FLATIRON", "Flatiron"},
	{"GRAMERCY", "Gramercy"},
	{"MURRAY HILL", "Murray Hill"},
	{"KIPS BAY", "Kips Bay"},
	{"HARLEM", "Harlem"},
	{"CIVIC CENTER", "Tribeca"},
	{"ALPHABET CITY", "East Village"},
	{"CHINATOWN", "Lower East Side"},
	{"LITTLE ITALY", "SoHo"},
}

// NormalizeSubmarket maps a DOF neighborhood to a submarket. Unknown
// neighborhoods are title-cased.
func NormalizeSubmarket(neighborhood string) string {
	n := strings.ToUpper(strings.TrimSpace(neighborhood))
	if n == "" {
		return ""
	}
	for _, sp := range submarketPrefixes {
		if strings.HasPrefix(n, sp.prefix) {
			return sp.submarket
		}
	}
	return titleCase(n)
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// CategoryForBuildingClass maps a DOF building class code to a property category.
func CategoryForBuildingClass(class string) domain.PropertyCategory {
	class = strings.ToUpper(strings.TrimSpace(class))
	if class == "" {
		return domain.CategoryMixedUse
	}
	switch class[0] {
	case 'O':
		return domain.CategoryOfficeBuildings
	case 'C', 'D':
		return domain.CategoryMultifamily
	case 'S':
		return domain.CategoryMixedUse
	case 'V':
		return domain.CategoryDevelopmentSite
	case 'E', 'F':
		return domain.CategoryIndustrial
	case 'K':
		return domain.CategoryRetailCondo
	}
	return domain.CategoryMixedUse
}

// parseInt parses a Socrata numeric string. Empty, "-" and non-positive values
// yield nil.
func parseInt(s string) *int {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" || s == "-" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return nil
	}
	v := int(d.IntPart())
	return &v
}

// parseMoney parses a dollar amount. Values under minSalePrice are nominal
// transfers and are treated as missing.
func parseMoney(s string) *decimal.Decimal {
	s = strings.TrimSpace(strings.NewReplacer(",", "", "$", "").Replace(s))
	if s == "" || s == "-" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.LessThan(minSalePrice) {
		return nil
	}
	return &d
}

// minSalePrice filters $0 and $10 deed transfers between related parties
var minSalePrice = decimal.NewFromInt(1000)

var socrataTimeLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range socrataTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func recordID(row SaleRow) string {
	if row.Block != "" && row.Lot != "" {
		return "dof-" + strings.TrimSpace(row.Borough) + "-" + strings.TrimSpace(row.Block) + "-" + strings.TrimSpace(row.Lot)
	}
	return uuid.NewSHA1(recordNamespace, []byte(strings.ToUpper(row.Address+"|"+row.ZipCode))).String()
}

// NormalizeSales converts sales rows into PropertyRecords. Rows without an
// address are dropped, and repeated sales of the same lot keep the first
// (most recent) row.
func NormalizeSales(rows []SaleRow, borough domain.Borough) []domain.PropertyRecord {
	records := make([]domain.PropertyRecord, 0, len(rows))
	seen := make(map[string]bool, len(rows))

	for _, row := range rows {
		address := strings.Join(strings.Fields(row.Address), " ")
		if address == "" {
			continue
		}

		id := recordID(row)
		if seen[id] {
			continue
		}
		seen[id] = true

		class := strings.TrimSpace(row.BuildingClassAtTimeSale)
		if class == "" {
			class = strings.TrimSpace(row.BuildingClassAsOfFinal)
		}
		category := CategoryForBuildingClass(class)

		rec := domain.PropertyRecord{
			ID:            id,
			Address:       address,
			Borough:       borough,
			Submarket:     NormalizeSubmarket(row.Neighborhood),
			Category:      category,
			BuildingClass: class,
			Status:        domain.StatusSold,
			GrossSF:       parseInt(row.GrossSquareFeet),
			YearBuilt:     parseInt(row.YearBuilt),
		}

		if units := parseInt(row.ResidentialUnits); units != nil {
			rec.Units = units
		} else {
			rec.Units = parseInt(row.TotalUnits)
		}

		if price := parseMoney(row.SalePrice); price != nil {
			p, _ := price.Float64()
			rec.AskingPrice = &p
			if rec.GrossSF != nil {
				psf, _ := price.Div(decimal.NewFromInt(int64(*rec.GrossSF))).Round(2).Float64()
				rec.PricePerSF = &psf
			}
		}

		// Rolling sales carry no incentive column; EligibleForTaxProgram stays false
		records = append(records, rec)
	}

	return records
}

// permitBoroughName returns the borough spelling used by the DOB dataset
func permitBoroughName(b domain.Borough) string {
	switch b {
	case domain.BoroughManhattan:
		return "MANHATTAN"
	case domain.BoroughBronx:
		return "BRONX"
	case domain.BoroughBrooklyn:
		return "BROOKLYN"
	case domain.BoroughQueens:
		return "QUEENS"
	case domain.BoroughStatenIsland:
		return "STATEN ISLAND"
	}
	return ""
}

// NormalizePermits converts DOB rows into Permits, dropping rows without a job number.
func NormalizePermits(rows []PermitRow) []Permit {
	permits := make([]Permit, 0, len(rows))
	for _, row := range rows {
		job := strings.TrimSpace(row.JobNumber)
		if job == "" {
			continue
		}
		address := strings.Join(strings.Fields(row.HouseNumber+" "+row.StreetName), " ")
		permits = append(permits, Permit{
			JobNumber:    job,
			Address:      address,
			Borough:      strings.TrimSpace(row.Borough),
			JobType:      strings.ToUpper(strings.TrimSpace(row.JobType)),
			WorkType:     strings.TrimSpace(row.WorkType),
			PermitStatus: strings.TrimSpace(row.PermitStatus),
			IssuedAt:     parseTime(row.IssuanceDate),
			ZipCode:      strings.TrimSpace(row.ZipCode),
		})
	}
	return permits
}
