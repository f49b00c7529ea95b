// Package nycopendata provides a client for the NYC Open Data (Socrata) API:
// Department of Finance rolling sales and Department of Buildings permit issuance.
package nycopendata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aristath/cornerstone/internal/cache"
	"github.com/aristath/cornerstone/internal/clientdata"
	"github.com/aristath/cornerstone/internal/clients/source"
	"github.com/aristath/cornerstone/internal/domain"
	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL = "https://data.cityofnewyork.us"

	// SalesDataset is the DOF citywide rolling calendar sales dataset
	SalesDataset = "usep-8jbt"
	// PermitDataset is the DOB permit issuance dataset
	PermitDataset = "ipu4-2q9a"

	DefaultPageSize = 500
	// MaxPageSize is the Socrata per-request row cap without paging tokens
	MaxPageSize = 50000
)

// Client is the NYC Open Data API client.
type Client struct {
	baseURL    string
	appToken   string // Optional - raises Socrata throttling limits
	httpClient *http.Client
	src        *source.Source
	log        zerolog.Logger
}

// NewClient creates a new NYC Open Data client. All calls go through src.
func NewClient(baseURL, appToken string, src *source.Source, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:  baseURL,
		appToken: appToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		src: src,
		log: log.With().Str("client", "nycopendata").Logger(),
	}
}

// PropertyQuery selects a page of sales records.
type PropertyQuery struct {
	Borough domain.Borough
	Limit   int
	Offset  int
}

func (q PropertyQuery) normalized() PropertyQuery {
	if q.Borough == "" {
		q.Borough = domain.BoroughManhattan
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// GetProperties returns one page of normalized sales records for a borough.
func (c *Client) GetProperties(ctx context.Context, q PropertyQuery) (*domain.CachedResponse[[]domain.PropertyRecord], error) {
	page, err := c.getSalesPage(ctx, q)
	if page == nil {
		return nil, err
	}
	return &domain.CachedResponse[[]domain.PropertyRecord]{
		Payload:          page.Payload.Records,
		Success:          page.Success,
		SourceName:       page.SourceName,
		FetchedAtEpochMs: page.FetchedAtEpochMs,
		Cached:           page.Cached,
		ErrorMessage:     page.ErrorMessage,
	}, err
}

func (c *Client) getSalesPage(ctx context.Context, q PropertyQuery) (*domain.CachedResponse[SalesPage], error) {
	q = q.normalized()

	code := q.Borough.Code()
	if code == "" {
		return nil, domain.NewValidationError("borough", fmt.Sprintf("unknown borough %q", q.Borough))
	}

	endpoint := "/resource/" + SalesDataset + ".json"
	params := map[string]string{
		"$where":  fmt.Sprintf("borough='%s' AND gross_square_feet > 0", code),
		"$order":  "sale_date DESC",
		"$limit":  strconv.Itoa(q.Limit),
		"$offset": strconv.Itoa(q.Offset),
	}

	return source.Fetch(ctx, c.src, cache.Key(endpoint, params), clientdata.TTLPropertyData,
		func(ctx context.Context) (SalesPage, error) {
			var rows []SaleRow
			if err := c.get(ctx, endpoint, params, &rows); err != nil {
				return SalesPage{}, err
			}
			records := NormalizeSales(rows, q.Borough)
			c.log.Debug().
				Str("borough", string(q.Borough)).
				Int("rows", len(rows)).
				Int("records", len(records)).
				Msg("Fetched sales page")
			return SalesPage{Records: records, RawRows: len(rows)}, nil
		})
}

// GetAllProperties walks pages until the API returns a short page or maxPages
// is reached.
// Records gathered before a failing page are returned with the error.
func (c *Client) GetAllProperties(ctx context.Context, borough domain.Borough, pageSize, maxPages int) ([]domain.PropertyRecord, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if maxPages <= 0 {
		maxPages = 20
	}

	var all []domain.PropertyRecord
	seen := make(map[string]bool)

	for page := 0; page < maxPages; page++ {
		resp, err := c.getSalesPage(ctx, PropertyQuery{
			Borough: borough,
			Limit:   pageSize,
			Offset:  page * pageSize,
		})
		if err != nil {
			return all, fmt.Errorf("failed to fetch page %d: %w", page, err)
		}

		for _, r := range resp.Payload.Records {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			all = append(all, r)
		}

		// Normalization drops unusable rows, so the raw count decides
		if resp.Payload.RawRows < pageSize {
			break
		}
	}

	return all, nil
}

// GetPermits returns recent DOB permits for a borough, newest first.
func (c *Client) GetPermits(ctx context.Context, borough domain.Borough, limit int) (*domain.CachedResponse[[]Permit], error) {
	if borough == "" {
		borough = domain.BoroughManhattan
	}
	name := permitBoroughName(borough)
	if name == "" {
		return nil, domain.NewValidationError("borough", fmt.Sprintf("unknown borough %q", borough))
	}
	if limit <= 0 {
		limit = 1000
	}

	endpoint := "/resource/" + PermitDataset + ".json"
	params := map[string]string{
		"$where": fmt.Sprintf("borough='%s'", name),
		"$order": "issuance_date DESC",
		"$limit": strconv.Itoa(limit),
	}

	return source.Fetch(ctx, c.src, cache.Key(endpoint, params), clientdata.TTLPermits,
		func(ctx context.Context) ([]Permit, error) {
			var rows []PermitRow
			if err := c.get(ctx, endpoint, params, &rows); err != nil {
				return nil, err
			}
			return NormalizePermits(rows), nil
		})
}

func (c *Client) get(ctx context.Context, endpoint string, params map[string]string, dest interface{}) error {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	fullURL := c.baseURL + endpoint + "?" + values.Encode()

	return source.GetJSON(ctx, c.httpClient, fullURL, map[string]string{"X-App-Token": c.appToken}, dest)
}
