// Package analysis combines the scoring engine with market data from every
// source: batch scoring requests, market aggregates and the comprehensive
// five-source report.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aristath/cornerstone/internal/clients/fred"
	"github.com/aristath/cornerstone/internal/clients/marketindex"
	"github.com/aristath/cornerstone/internal/clients/nycopendata"
	"github.com/aristath/cornerstone/internal/clients/synthetic"
	"github.com/aristath/cornerstone/internal/domain"
	"github.com/aristath/cornerstone/internal/events"
	"github.com/aristath/cornerstone/internal/metrics"
	"github.com/aristath/cornerstone/internal/modules/scoring"
	"github.com/rs/zerolog"
)

// Source names reported in comprehensive results
const (
	SourceProperties = "properties"
	SourcePermits    = "permits"
	SourceEconomic   = "economic"
	SourceMarket     = "market-index"
	SourceListings   = "listings"
)

// PropertyFetcher fetches a page of property records
type PropertyFetcher interface {
	GetProperties(ctx context.Context, q nycopendata.PropertyQuery) (*domain.CachedResponse[[]domain.PropertyRecord], error)
}

// PermitFetcher fetches DOB permits
type PermitFetcher interface {
	GetPermits(ctx context.Context, borough domain.Borough, limit int) (*domain.CachedResponse[[]nycopendata.Permit], error)
}

// EconomicFetcher fetches FRED series and the mortgage rate trend
type EconomicFetcher interface {
	GetEconomicSeries(ctx context.Context, seriesID string, r fred.DateRange) (*domain.CachedResponse[fred.EconomicSeries], error)
	MortgageTrend(ctx context.Context, now time.Time) (domain.MortgageTrend, error)
}

// MarketFetcher fetches the market index snapshot
type MarketFetcher interface {
	GetMarketSnapshot(ctx context.Context) (*domain.CachedResponse[marketindex.MarketSnapshot], error)
}

// ListingFetcher fetches rental listings
type ListingFetcher interface {
	GetListings(ctx context.Context, submarket string) (*domain.CachedResponse[[]synthetic.RentalListing], error)
}

// RecordSource supplies the loaded dataset
type RecordSource interface {
	Records() []domain.PropertyRecord
	LoadedAt() time.Time
}

// Sources groups the external collaborators. Listings may be nil.
type Sources struct {
	Properties PropertyFetcher
	Permits    PermitFetcher
	Economic   EconomicFetcher
	Market     MarketFetcher
	Listings   ListingFetcher
}

// Config tunes the comprehensive report
type Config struct {
	PropertyLimit     int
	PermitLimit       int
	TopN              int
	ListingsSubmarket string
}

// Service runs analyses
type Service struct {
	cfg     Config
	records RecordSource
	src     Sources
	costs   scoring.CostAssumptions
	events  *events.Manager
	metrics *metrics.Metrics
	now     func() time.Time
	log     zerolog.Logger
}

// NewService creates an analysis service. em and m may be nil.
func NewService(cfg Config, records RecordSource, src Sources, costs scoring.CostAssumptions, em *events.Manager, m *metrics.Metrics, log zerolog.Logger) *Service {
	if cfg.PropertyLimit <= 0 {
		cfg.PropertyLimit = nycopendata.DefaultPageSize
	}
	if cfg.PermitLimit <= 0 {
		cfg.PermitLimit = 1000
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 10
	}
	if cfg.ListingsSubmarket == "" {
		cfg.ListingsSubmarket = "Midtown"
	}
	return &Service{
		cfg:     cfg,
		records: records,
		src:     src,
		costs:   costs,
		events:  em,
		metrics: m,
		now:     time.Now,
		log:     log.With().Str("component", "analysis").Logger(),
	}
}

// MarketContext builds scoring input from records plus the current mortgage
// trend. A failed trend lookup falls back to flat.
func (s *Service) MarketContext(ctx context.Context, records []domain.PropertyRecord) *domain.MarketContext {
	trend, _ := s.mortgageTrend(ctx)
	return ComputeMarketMetrics(records, nil).Context(s.now().Year(), trend)
}

func (s *Service) mortgageTrend(ctx context.Context) (domain.MortgageTrend, *domain.PartialDataWarning) {
	if s.src.Economic == nil {
		return domain.TrendFlat, nil
	}
	trend, err := s.src.Economic.MortgageTrend(ctx, s.now())
	if err != nil {
		s.log.Warn().Err(err).Msg("Mortgage trend unavailable, assuming flat")
		return domain.TrendFlat, &domain.PartialDataWarning{Source: SourceEconomic, Message: err.Error()}
	}
	return trend, nil
}

// AnalysisType selects what a score request returns
type AnalysisType string

const (
	TypeMarket        AnalysisType = "market"
	TypeProperty      AnalysisType = "property"
	TypeFinancial     AnalysisType = "financial"
	TypeRisk          AnalysisType = "risk"
	TypeComprehensive AnalysisType = "comprehensive"
)

// typeProfiles maps each analysis type to the scoring profile it ranks with
var typeProfiles = map[AnalysisType]scoring.Profile{
	TypeMarket:        scoring.ProfileMarket,
	TypeProperty:      scoring.ProfileConversion,
	TypeFinancial:     scoring.ProfileInvestment,
	TypeRisk:          scoring.ProfileInvestment,
	TypeComprehensive: scoring.ProfileConversion,
}

// ParseAnalysisType validates an analysis type. Matching ignores case.
func ParseAnalysisType(s string) (AnalysisType, error) {
	t := AnalysisType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := typeProfiles[t]; !ok {
		return "", domain.NewValidationError("analysisType", fmt.Sprintf("unknown analysis type %q", s))
	}
	return t, nil
}

// Filters narrows the properties of a score request
type Filters struct {
	Borough       string   `json:"borough,omitempty"`
	PriceRangeMin *float64 `json:"priceRangeMin,omitempty"`
	PriceRangeMax *float64 `json:"priceRangeMax,omitempty"`
	PropertyType  string   `json:"propertyType,omitempty"`
}

// apply returns the records passing every filter. Price bounds use the
// effective asking price; records without one fail a price bound.
func (f *Filters) apply(records []domain.PropertyRecord) ([]domain.PropertyRecord, error) {
	if f == nil {
		return records, nil
	}

	var borough domain.Borough
	if f.Borough != "" {
		b, ok := domain.ParseBorough(f.Borough)
		if !ok {
			return nil, domain.NewValidationError("filters.borough", fmt.Sprintf("unknown borough %q", f.Borough))
		}
		borough = b
	}
	if f.PriceRangeMin != nil && f.PriceRangeMax != nil && *f.PriceRangeMin > *f.PriceRangeMax {
		return nil, domain.NewValidationError("filters", "priceRangeMin exceeds priceRangeMax")
	}

	out := make([]domain.PropertyRecord, 0, len(records))
	for i := range records {
		r := &records[i]
		if borough != "" && r.Borough != borough {
			continue
		}
		if f.PropertyType != "" && !strings.EqualFold(string(r.Category), f.PropertyType) {
			continue
		}
		if f.PriceRangeMin != nil || f.PriceRangeMax != nil {
			price := r.EffectiveAskingPrice()
			if price == nil {
				continue
			}
			if f.PriceRangeMin != nil && *price < *f.PriceRangeMin {
				continue
			}
			if f.PriceRangeMax != nil && *price > *f.PriceRangeMax {
				continue
			}
		}
		out = append(out, *r)
	}
	return out, nil
}

// ScoreRequest is the body of POST /api/analysis/score
type ScoreRequest struct {
	Properties   []domain.PropertyRecord `json:"properties"`
	AnalysisType string                  `json:"analysisType"`
	Filters      *Filters                `json:"filters,omitempty"`
}

// ScoreResult is the outcome of a score request
type ScoreResult struct {
	Type             AnalysisType                `json:"type"`
	Profile          scoring.Profile             `json:"profile"`
	ScoredProperties []domain.ScoreBreakdown     `json:"scoredProperties"`
	Analyses         []scoring.PropertyAnalysis  `json:"analyses,omitempty"`
	MarketMetrics    *MarketMetrics              `json:"marketMetrics,omitempty"`
	Excluded         int                         `json:"excluded"`
	Warnings         []domain.PartialDataWarning `json:"warnings,omitempty"`
	DegradedSources  []string                    `json:"degradedSources,omitempty"`
}

// Score ranks the request's properties with the analysis type's profile.
// Market and comprehensive requests include market metrics; every type but
// market includes a per-property analysis in rank order.
func (s *Service) Score(ctx context.Context, req ScoreRequest) (*ScoreResult, error) {
	if len(req.Properties) == 0 {
		return nil, domain.NewValidationError("properties", "must not be empty")
	}

	analysisType, err := ParseAnalysisType(req.AnalysisType)
	if err != nil {
		return nil, err
	}

	records, err := req.Filters.apply(req.Properties)
	if err != nil {
		return nil, err
	}

	profile := typeProfiles[analysisType]
	engine, err := scoring.NewEngine(profile, scoring.WithClock(s.now))
	if err != nil {
		return nil, err
	}

	result := &ScoreResult{
		Type:     analysisType,
		Profile:  profile,
		Excluded: len(req.Properties) - len(records),
	}

	trend, warning := s.mortgageTrend(ctx)
	if warning != nil {
		result.Warnings = append(result.Warnings, *warning)
		result.DegradedSources = append(result.DegradedSources, warning.Source)
	}

	marketMetrics := ComputeMarketMetrics(records, nil)
	mctx := marketMetrics.Context(s.now().Year(), trend)

	start := s.now()
	ranked, err := engine.RankBatch(records, mctx)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveBatch(string(profile), len(records), s.now().Sub(start))
	result.ScoredProperties = ranked

	if analysisType == TypeMarket || analysisType == TypeComprehensive {
		result.MarketMetrics = &marketMetrics
	}

	if analysisType != TypeMarket {
		analyses, err := s.analyzeAll(engine, records, mctx)
		if err != nil {
			return nil, err
		}
		result.Analyses = analyses
	}

	s.log.Debug().
		Str("type", string(analysisType)).
		Int("scored", len(ranked)).
		Int("excluded", result.Excluded).
		Msg("Scored properties")

	return result, nil
}

// SourceStatus reports how one source fared in a comprehensive report
type SourceStatus struct {
	Name      string `json:"name"`
	Success   bool   `json:"success"`
	Cached    bool   `json:"cached"`
	FetchedAt int64  `json:"fetchedAtEpochMs,omitempty"`
	Error     string `json:"error,omitempty"`
}

// PermitSummary condenses DOB permits
type PermitSummary struct {
	Total       int                  `json:"total"`
	Conversions int                  `json:"conversions"`
	Recent      []nycopendata.Permit `json:"recent"`
}

// ListingSummary condenses rental listings
type ListingSummary struct {
	Submarket   string  `json:"submarket"`
	Count       int     `json:"count"`
	AverageRent float64 `json:"averageRent"`
	Synthetic   bool    `json:"synthetic"`
}

// ComprehensiveResult combines every source into one report. Sections whose
// source failed are nil and the source is listed in DegradedSources.
type ComprehensiveResult struct {
	Borough         domain.Borough              `json:"borough"`
	TopProperties   []domain.ScoreBreakdown     `json:"topProperties"`
	MarketMetrics   MarketMetrics               `json:"marketMetrics"`
	Economic        *fred.EconomicSeries        `json:"economic,omitempty"`
	Market          *marketindex.MarketSnapshot `json:"market,omitempty"`
	Permits         *PermitSummary              `json:"permits,omitempty"`
	Listings        *ListingSummary             `json:"listings,omitempty"`
	Sources         []SourceStatus              `json:"sources"`
	DegradedSources []string                    `json:"degradedSources"`
	Warnings        []domain.PartialDataWarning `json:"warnings,omitempty"`
	GeneratedAt     time.Time                   `json:"generatedAt"`
}

// Comprehensive fetches all five sources concurrently and waits for every one
// to settle. Failed sources degrade the report instead of failing it; an error
// is returned only when every source failed.
func (s *Service) Comprehensive(ctx context.Context, borough domain.Borough) (*ComprehensiveResult, error) {
	if borough == "" {
		borough = domain.BoroughManhattan
	}
	if borough.Code() == "" {
		return nil, domain.NewValidationError("borough", fmt.Sprintf("unknown borough %q", borough))
	}

	var (
		records  []domain.PropertyRecord
		permits  []nycopendata.Permit
		economic *fred.EconomicSeries
		market   *marketindex.MarketSnapshot
		listings *ListingSummary
	)

	type outcome struct {
		status SourceStatus
		err    error
	}

	fetchers := []struct {
		name string
		run  func(ctx context.Context) (bool, int64, error)
	}{
		{SourceProperties, func(ctx context.Context) (bool, int64, error) {
			var (
				cached    bool
				fetchedAt int64
				err       error
			)
			records, cached, fetchedAt, err = s.fetchProperties(ctx, borough)
			return cached, fetchedAt, err
		}},
		{SourcePermits, func(ctx context.Context) (bool, int64, error) {
			if s.src.Permits == nil {
				return false, 0, errSourceNotConfigured
			}
			resp, err := s.src.Permits.GetPermits(ctx, borough, s.cfg.PermitLimit)
			if err != nil {
				return false, 0, err
			}
			permits = resp.Payload
			return resp.Cached, resp.FetchedAtEpochMs, nil
		}},
		{SourceEconomic, func(ctx context.Context) (bool, int64, error) {
			if s.src.Economic == nil {
				return false, 0, errSourceNotConfigured
			}
			resp, err := s.src.Economic.GetEconomicSeries(ctx, fred.SeriesMortgage30, fred.LastYear(s.now()))
			if err != nil {
				return false, 0, err
			}
			economic = &resp.Payload
			return resp.Cached, resp.FetchedAtEpochMs, nil
		}},
		{SourceMarket, func(ctx context.Context) (bool, int64, error) {
			if s.src.Market == nil {
				return false, 0, errSourceNotConfigured
			}
			resp, err := s.src.Market.GetMarketSnapshot(ctx)
			if err != nil {
				return false, 0, err
			}
			market = &resp.Payload
			if !resp.Cached {
				s.events.EmitTyped("analysis", &events.MarketUpdatedData{
					Sentiment:        market.Sentiment,
					AverageChangePct: market.AverageChangePct,
					Symbols:          len(market.Quotes),
					Missing:          market.Missing,
				})
			}
			return resp.Cached, resp.FetchedAtEpochMs, nil
		}},
		{SourceListings, func(ctx context.Context) (bool, int64, error) {
			if s.src.Listings == nil {
				return false, 0, errSourceNotConfigured
			}
			resp, err := s.src.Listings.GetListings(ctx, s.cfg.ListingsSubmarket)
			if err != nil {
				return false, 0, err
			}
			listings = &ListingSummary{
				Submarket:   s.cfg.ListingsSubmarket,
				Count:       len(resp.Payload),
				AverageRent: round2(synthetic.AverageRent(resp.Payload)),
				Synthetic:   true,
			}
			return resp.Cached, resp.FetchedAtEpochMs, nil
		}},
	}

	outcomes := make([]outcome, len(fetchers))
	var wg sync.WaitGroup
	for i, f := range fetchers {
		wg.Add(1)
		go func(i int, name string, run func(ctx context.Context) (bool, int64, error)) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = outcome{
						status: SourceStatus{Name: name, Error: fmt.Sprintf("panic: %v", r)},
						err:    fmt.Errorf("source %s panicked: %v", name, r),
					}
				}
			}()

			cached, fetchedAt, err := run(ctx)
			status := SourceStatus{Name: name, Success: err == nil, Cached: cached, FetchedAt: fetchedAt}
			if err != nil {
				status.Error = err.Error()
			}
			outcomes[i] = outcome{status: status, err: err}
		}(i, f.name, f.run)
	}
	wg.Wait()

	result := &ComprehensiveResult{
		Borough:         borough,
		Economic:        economic,
		Market:          market,
		Listings:        listings,
		DegradedSources: []string{},
		GeneratedAt:     s.now(),
	}

	var firstErr error
	for _, o := range outcomes {
		result.Sources = append(result.Sources, o.status)
		if o.err == nil {
			continue
		}
		if firstErr == nil {
			firstErr = o.err
		}
		result.DegradedSources = append(result.DegradedSources, o.status.Name)
		result.Warnings = append(result.Warnings, domain.PartialDataWarning{
			Source:  o.status.Name,
			Message: o.err.Error(),
		})
		s.degraded(o.status.Name, o.err)
	}

	if len(result.DegradedSources) == len(fetchers) {
		return nil, fmt.Errorf("all sources failed: %w", firstErr)
	}

	if permits != nil {
		recent := permits
		if len(recent) > s.cfg.TopN {
			recent = recent[:s.cfg.TopN]
		}
		result.Permits = &PermitSummary{
			Total:       len(permits),
			Conversions: nycopendata.CountConversions(permits),
			Recent:      recent,
		}
	}

	result.MarketMetrics = ComputeMarketMetrics(records, permits)

	trend := domain.TrendFlat
	if economic != nil {
		trend = economic.Trend
	}

	engine, err := scoring.NewEngine(scoring.ProfileConversion, scoring.WithClock(s.now))
	if err != nil {
		return nil, err
	}
	ranked, err := engine.RankBatch(records, result.MarketMetrics.Context(s.now().Year(), trend))
	if err != nil {
		return nil, err
	}
	if len(ranked) > s.cfg.TopN {
		ranked = ranked[:s.cfg.TopN]
	}
	result.TopProperties = ranked

	sort.Strings(result.DegradedSources)

	s.log.Info().
		Str("borough", string(borough)).
		Int("properties", len(records)).
		Strs("degraded", result.DegradedSources).
		Msg("Comprehensive analysis complete")

	return result, nil
}

var errSourceNotConfigured = errors.New("source not configured")

// analyzeAll analyzes every record and orders the analyses the way RankBatch
// orders breakdowns: overall descending, ties in input order.
func (s *Service) analyzeAll(engine *scoring.Engine, records []domain.PropertyRecord, mctx *domain.MarketContext) ([]scoring.PropertyAnalysis, error) {
	analyses := make([]scoring.PropertyAnalysis, len(records))
	for i := range records {
		a, err := engine.Analyze(&records[i], mctx, s.costs)
		if err != nil {
			return nil, err
		}
		analyses[i] = a
	}

	sort.SliceStable(analyses, func(i, j int) bool {
		return analyses[i].Breakdown.Overall > analyses[j].Breakdown.Overall
	})
	for i := range analyses {
		analyses[i].Breakdown.Rank = i + 1
	}
	return analyses, nil
}

// fetchProperties prefers the loaded dataset and falls back to one page from
// NYC Open Data when no record matches the borough. Dataset records report
// the dataset load time as their fetch time.
func (s *Service) fetchProperties(ctx context.Context, borough domain.Borough) ([]domain.PropertyRecord, bool, int64, error) {
	if s.records != nil {
		var matching []domain.PropertyRecord
		for _, r := range s.records.Records() {
			if r.Borough == borough {
				matching = append(matching, r)
			}
		}
		if len(matching) > 0 {
			var fetchedAt int64
			if loadedAt := s.records.LoadedAt(); !loadedAt.IsZero() {
				fetchedAt = loadedAt.UnixMilli()
			}
			return matching, true, fetchedAt, nil
		}
	}

	if s.src.Properties == nil {
		return nil, false, 0, errSourceNotConfigured
	}
	resp, err := s.src.Properties.GetProperties(ctx, nycopendata.PropertyQuery{
		Borough: borough,
		Limit:   s.cfg.PropertyLimit,
	})
	if err != nil {
		return nil, false, 0, err
	}
	return resp.Payload, resp.Cached, resp.FetchedAtEpochMs, nil
}

func (s *Service) degraded(source string, err error) {
	data := &events.SourceDegradedData{Source: source, Reason: err.Error()}
	var rl *domain.RateLimitExceededError
	if errors.As(err, &rl) {
		data.WaitMs = rl.WaitTimeMs()
	}
	s.events.EmitTyped("analysis", data)
	s.log.Warn().Err(err).Str("source", source).Msg("Source degraded")
}
