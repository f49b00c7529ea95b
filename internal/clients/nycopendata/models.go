package nycopendata

import "time"

// SalesPage is one fetched page of sales. RawRows counts the rows the API
// returned before normalization dropped unusable ones.
type SalesPage struct {
	Records []domain.PropertyRecord `json:"records"`
	RawRows int                     `json:"rawRows"`
}

// SaleRow is one row of the DOF rolling sales dataset. Socrata returns every
// column as a string.
type SaleRow struct {
	Borough                 string `json:"borough"`
	Neighborhood            string `json:"neighborhood"`
	BuildingClassCategory   string `json:"building_class_category"`
	Block                   string `json:"block"`
	Lot                     string `json:"lot"`
	BuildingClassAsOfFinal  string `json:"building_class_as_of_final"`
	BuildingClassAtTimeSale string `json:"building_class_at_time_of"`
	Address                 string `json:"address"`
	ZipCode                 string `json:"zip_code"`
	ResidentialUnits        string `json:"residential_units"`
	CommercialUnits         string `json:"commercial_units"`
	TotalUnits              string `json:"total_units"`
	LandSquareFeet          string `json:"land_square_feet"`
	GrossSquareFeet         string `json:"gross_square_feet"`
	YearBuilt               string `json:"year_built"`
	SalePrice               string `json:"sale_price"`
	SaleDate                string `json:"sale_date"`
}

// PermitRow is one row of the DOB permit issuance dataset.
type PermitRow struct {
	Borough      string `json:"borough"`
	JobNumber    string `json:"job__"`
	HouseNumber  string `json:"house__"`
	StreetName   string `json:"street_name"`
	JobType      string `json:"job_type"`
	WorkType     string `json:"work_type"`
	PermitStatus string `json:"permit_status"`
	IssuanceDate string `json:"issuance_date"`
	ZipCode      string `json:"zip_code"`
}

// Permit is a normalized DOB permit.
type Permit struct {
	JobNumber    string    `json:"jobNumber"`
	Address      string    `json:"address"`
	Borough      string    `json:"borough"`
	JobType      string    `json:"jobType"`
	WorkType     string    `json:"workType,omitempty"`
	PermitStatus string    `json:"permitStatus,omitempty"`
	IssuedAt     time.Time `json:"issuedAt"`
	ZipCode      string    `json:"zipCode,omitempty"`
}

// IsConversion reports whether the permit is an Alteration Type 1, the DOB job
// type filed for changes of use or occupancy.
func (p Permit) IsConversion() bool {
	return p.JobType == "A1"
}

// CountConversions counts A1 permits.
func CountConversions(permits []Permit) int {
	n := 0
	for _, p := range permits {
		if p.IsConversion() {
			n++
		}
	}
	return n
}
