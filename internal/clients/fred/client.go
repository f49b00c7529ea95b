// Package fred provides a client for the Federal Reserve Economic Data API.
package fred

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/cornerstone/internal/cache"
	"github.com/aristath/cornerstone/internal/clientdata"
	"github.com/aristath/cornerstone/internal/clients/source"
	"github.com/aristath/cornerstone/internal/domain"
	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL = "https://api.stlouisfed.org/fred"

	SeriesMortgage30  = "MORTGAGE30US"
	SeriesTreasury10Y = "DGS10"

	dateLayout = "2006-01-02"
	// missingValue is FRED's placeholder for an observation with no data
	missingValue = "."
)

// DateRange bounds a series request. Zero times leave the bound open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// LastYear returns the range covering the 12 months before now.
func LastYear(now time.Time) DateRange {
	return DateRange{Start: now.AddDate(-1, 0, 0), End: now}
}

type observationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// Client is the FRED API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	src        *source.Source
	log        zerolog.Logger
}

// NewClient creates a new FRED client. All calls go through src.
func NewClient(baseURL, apiKey string, src *source.Source, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		src: src,
		log: log.With().Str("client", "fred").Logger(),
	}
}

// GetEconomicSeries returns the observations of seriesID in r, with trend statistics.
func (c *Client) GetEconomicSeries(ctx context.Context, seriesID string, r DateRange) (*domain.CachedResponse[EconomicSeries], error) {
	seriesID = strings.ToUpper(strings.TrimSpace(seriesID))
	if seriesID == "" {
		return nil, domain.NewValidationError("seriesID", "must not be empty")
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return nil, domain.NewValidationError("dateRange", "end is before start")
	}

	params := map[string]string{
		"series_id": seriesID,
		"file_type": "json",
		"api_key":   c.apiKey,
	}
	if !r.Start.IsZero() {
		params["observation_start"] = r.Start.Format(dateLayout)
	}
	if !r.End.IsZero() {
		params["observation_end"] = r.End.Format(dateLayout)
	}

	endpoint := "/series/observations"

	return source.Fetch(ctx, c.src, cache.Key(endpoint, params), clientdata.TTLEconomic,
		func(ctx context.Context) (EconomicSeries, error) {
			values := url.Values{}
			for k, v := range params {
				values.Set(k, v)
			}

			var body observationsResponse
			if err := source.GetJSON(ctx, c.httpClient, c.baseURL+endpoint+"?"+values.Encode(), nil, &body); err != nil {
				return EconomicSeries{}, err
			}

			obs := make([]Observation, 0, len(body.Observations))
			for _, o := range body.Observations {
				if o.Value == missingValue {
					continue
				}
				v, ok := parseValue(o.Value)
				if !ok {
					continue
				}
				date, err := time.Parse(dateLayout, o.Date)
				if err != nil {
					continue
				}
				obs = append(obs, Observation{Date: date, Value: v})
			}

			c.log.Debug().
				Str("series", seriesID).
				Int("observations", len(obs)).
				Msg("Fetched economic series")

			return NewEconomicSeries(seriesID, obs), nil
		})
}

// MortgageTrend fetches the 30-year mortgage series for the last year and
// returns its trend. Errors are returned with TrendFlat.
func (c *Client) MortgageTrend(ctx context.Context, now time.Time) (domain.MortgageTrend, error) {
	resp, err := c.GetEconomicSeries(ctx, SeriesMortgage30, LastYear(now))
	if err != nil {
		return domain.TrendFlat, fmt.Errorf("failed to fetch mortgage rates: %w", err)
	}
	return resp.Payload.Trend, nil
}
