package nycopendata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/cornerstone/internal/cache"
	"github.com/aristath/cornerstone/internal/clients/source"
	"github.com/aristath/cornerstone/internal/domain"
	"github.com/aristath/cornerstone/internal/ratelimit"
	"github.com/aristath/cornerstone/internal/retry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSource(capacity int) *source.Source {
	return source.New(source.Config{
		Name:   "nyc-open-data",
		Bucket: ratelimit.NewBucket(capacity, time.Minute, nil),
		Store:  cache.NewMemoryStore(nil),
		Policy: retry.Policy{
			MaxRetries: 1,
			BaseDelay:  time.Millisecond,
			Sleep:      func(context.Context, time.Duration) error { return nil },
		},
	}, zerolog.Nop())
}

var sampleSales = []SaleRow{
	{
		Borough:                 "1",
		Neighborhood:            "TRIBECA",
		Block:                   "179",
		Lot:                     "12",
		BuildingClassAtTimeSale: "O4",
		Address:                 "100  FRANKLIN STREET",
		ZipCode:                 "10013",
		TotalUnits:              "1",
		GrossSquareFeet:         "40,000",
		YearBuilt:               "1920",
		SalePrice:               "22,000,000",
		SaleDate:                "2024-11-05T00:00:00.000",
	},
	{
		Borough:                 "1",
		Neighborhood:            "UPPER EAST SIDE (59-79)",
		Block:                   "1390",
		Lot:                     "7",
		BuildingClassAtTimeSale: "C4",
		Address:                 "200 EAST 66TH STREET",
		ResidentialUnits:        "24",
		GrossSquareFeet:         "21000",
		YearBuilt:               "0",
		SalePrice:               "10",
	},
	{
		Borough: "1",
		Address: "",
	},
}

func TestNormalizeSales(t *testing.T) {
	records := NormalizeSales(sampleSales, domain.BoroughManhattan)
	require.Len(t, records, 2)

	tribeca := records[0]
	assert.Equal(t, "dof-1-179-12", tribeca.ID)
	assert.Equal(t, "100 FRANKLIN STREET", tribeca.Address)
	assert.Equal(t, "Tribeca", tribeca.Submarket)
	assert.Equal(t, domain.CategoryOfficeBuildings, tribeca.Category)
	assert.Equal(t, domain.StatusSold, tribeca.Status)
	assert.False(t, tribeca.EligibleForTaxProgram, "office class alone does not imply incentive eligibility")
	require.NotNil(t, tribeca.GrossSF)
	assert.Equal(t, 40000, *tribeca.GrossSF)
	require.NotNil(t, tribeca.YearBuilt)
	assert.Equal(t, 1920, *tribeca.YearBuilt)
	require.NotNil(t, tribeca.PricePerSF)
	assert.Equal(t, 550.0, *tribeca.PricePerSF)
	require.NotNil(t, tribeca.Units)
	assert.Equal(t, 1, *tribeca.Units)

	ues := records[1]
	assert.Equal(t, "Upper East Side", ues.Submarket)
	assert.Equal(t, domain.CategoryMultifamily, ues.Category)
	assert.Nil(t, ues.YearBuilt, "year 0 is missing")
	assert.Nil(t, ues.AskingPrice, "nominal transfers are not prices")
	assert.Nil(t, ues.PricePerSF)
	require.NotNil(t, ues.Units)
	assert.Equal(t, 24, *ues.Units)
	assert.False(t, ues.EligibleForTaxProgram)
}

func TestNormalizeSales_DeduplicatesLots(t *testing.T) {
	rows := []SaleRow{sampleSales[0], sampleSales[0]}
	assert.Len(t, NormalizeSales(rows, domain.BoroughManhattan), 1)
}

func TestNormalizeSales_AddressIDWithoutBlockLot(t *testing.T) {
	row := SaleRow{Address: "1 Main St", ZipCode: "10001"}
	a := NormalizeSales([]SaleRow{row}, domain.BoroughManhattan)
	b := NormalizeSales([]SaleRow{row}, domain.BoroughManhattan)
	require.Len(t, a, 1)
	assert.Equal(t, a[0].ID, b[0].ID)
	assert.Len(t, a[0].ID, 36)
}

func TestNormalizeSubmarket(t *testing.T) {
	tests := map[string]string{
		"GREENWICH VILLAGE-WEST":    "West Village",
		"GREENWICH VILLAGE-CENTRAL": "Greenwich Village",
		"MIDTOWN CBD":               "Midtown",
		"FINANCIAL":                 "Financial District",
		"FASHION":                   "Garment District",
		"HARLEM-CENTRAL":            "Harlem",
		"INWOOD":                    "Inwood",
		"WASHINGTON HEIGHTS UPPER":  "Washington Heights Upper",
		"":                          "",
	}
	for input, expected := range tests {
		assert.Equal(t, expected, NormalizeSubmarket(input), input)
	}
}

func TestCategoryForBuildingClass(t *testing.T) {
	assert.Equal(t, domain.CategoryOfficeBuildings, CategoryForBuildingClass("o6"))
	assert.Equal(t, domain.CategoryMultifamily, CategoryForBuildingClass("D1"))
	assert.Equal(t, domain.CategoryDevelopmentSite, CategoryForBuildingClass("V1"))
	assert.Equal(t, domain.CategoryIndustrial, CategoryForBuildingClass("F5"))
	assert.Equal(t, domain.CategoryRetailCondo, CategoryForBuildingClass("K4"))
	assert.Equal(t, domain.CategoryMixedUse, CategoryForBuildingClass("S2"))
	assert.Equal(t, domain.CategoryMixedUse, CategoryForBuildingClass(""))
}

func TestNormalizePermits(t *testing.T) {
	permits := NormalizePermits([]PermitRow{
		{JobNumber: "121", HouseNumber: "25", StreetName: "BROAD STREET", JobType: "a1", IssuanceDate: "03/14/2024"},
		{JobNumber: "122", JobType: "A2", IssuanceDate: "2024-03-15T00:00:00.000"},
		{JobNumber: ""},
	})
	require.Len(t, permits, 2)
	assert.Equal(t, "25 BROAD STREET", permits[0].Address)
	assert.True(t, permits[0].IsConversion())
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), permits[0].IssuedAt)
	assert.False(t, permits[1].IsConversion())
	assert.Equal(t, 1, CountConversions(permits))
}

func salesServer(t *testing.T, hits *int32, pages map[int][]SaleRow) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "/resource/"+SalesDataset+".json", r.URL.Path)
		assert.Equal(t, "app-token", r.Header.Get("X-App-Token"))
		assert.Contains(t, r.URL.Query().Get("$where"), "borough='1'")

		offset, _ := strconv.Atoi(r.URL.Query().Get("$offset"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(pages[offset])
	}))
}

func TestGetProperties_FetchesAndCaches(t *testing.T) {
	var hits int32
	server := salesServer(t, &hits, map[int][]SaleRow{0: sampleSales})
	defer server.Close()

	client := NewClient(server.URL, "app-token", testSource(10), zerolog.Nop())

	resp, err := client.GetProperties(context.Background(), PropertyQuery{Borough: domain.BoroughManhattan, Limit: 10})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.False(t, resp.Cached)
	assert.Equal(t, "nyc-open-data", resp.SourceName)
	assert.Len(t, resp.Payload, 2)

	again, err := client.GetProperties(context.Background(), PropertyQuery{Borough: domain.BoroughManhattan, Limit: 10})
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, resp.Payload, again.Payload)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestGetProperties_UnknownBorough(t *testing.T) {
	client := NewClient("http://unused", "", testSource(10), zerolog.Nop())

	_, err := client.GetProperties(context.Background(), PropertyQuery{Borough: "Hoboken"})
	var ve *domain.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestGetProperties_ServerErrorIsUnavailable(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testSource(10), zerolog.Nop())
	resp, err := client.GetProperties(context.Background(), PropertyQuery{})

	var su *domain.SourceUnavailableError
	require.True(t, errors.As(err, &su))
	assert.False(t, resp.Success)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "one attempt plus one retry")
}

func TestGetProperties_RateLimited(t *testing.T) {
	var hits int32
	server := salesServer(t, &hits, map[int][]SaleRow{})
	defer server.Close()

	client := NewClient(server.URL, "app-token", testSource(1), zerolog.Nop())

	_, err := client.GetProperties(context.Background(), PropertyQuery{Offset: 0})
	require.NoError(t, err)

	_, err = client.GetProperties(context.Background(), PropertyQuery{Offset: 500})
	var rl *domain.RateLimitExceededError
	require.True(t, errors.As(err, &rl))
	assert.Greater(t, rl.WaitTimeMs(), int64(0))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestGetAllProperties_WalksPages(t *testing.T) {
	var hits int32
	page2 := []SaleRow{{Borough: "1", Block: "200", Lot: "1", Address: "5 HUDSON ST", Neighborhood: "TRIBECA"}}
	server := salesServer(t, &hits, map[int][]SaleRow{
		0: sampleSales,
		3: page2,
	})
	defer server.Close()

	client := NewClient(server.URL, "app-token", testSource(100), zerolog.Nop())

	records, err := client.GetAllProperties(context.Background(), domain.BoroughManhattan, 3, 10)
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "stops after the first short page")
}

func TestGetAllProperties_UnusablePageDoesNotEndWalk(t *testing.T) {
	var hits int32
	server := salesServer(t, &hits, map[int][]SaleRow{
		0: {{Borough: "1", Block: "1", Lot: "1"}, {Borough: "1", Block: "1", Lot: "2"}},
		2: {
			{Borough: "1", Block: "300", Lot: "1", Address: "10 WALL ST", Neighborhood: "FINANCIAL"},
			{Borough: "1", Block: "300", Lot: "2", Address: "12 WALL ST", Neighborhood: "FINANCIAL"},
		},
	})
	defer server.Close()

	client := NewClient(server.URL, "app-token", testSource(100), zerolog.Nop())

	records, err := client.GetAllProperties(context.Background(), domain.BoroughManhattan, 2, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "10 WALL ST", records[0].Address)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits), "walks past the address-less page to the empty one")
}

func TestGetPermits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/resource/"+PermitDataset+".json", r.URL.Path)
		assert.Equal(t, "borough='MANHATTAN'", r.URL.Query().Get("$where"))
		_ = json.NewEncoder(w).Encode([]PermitRow{
			{JobNumber: "1", JobType: "A1"},
			{JobNumber: "2", JobType: "NB"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testSource(10), zerolog.Nop())
	resp, err := client.GetPermits(context.Background(), domain.BoroughManhattan, 0)
	require.NoError(t, err)
	assert.Len(t, resp.Payload, 2)
	assert.Equal(t, 1, CountConversions(resp.Payload))

	_, err = client.GetPermits(context.Background(), "Hoboken", 0)
	assert.Error(t, err)
}
