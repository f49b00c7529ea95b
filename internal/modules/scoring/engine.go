// Package scoring rates properties as office-to-residential conversion
// candidates, investments or market plays, and projects their financials.
//
// The engine is pure: no I/O, no shared mutable state. Market conditions
// arrive through domain.MarketContext.
package scoring

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/aristath/cornerstone/internal/domain"
)

// Engine scores properties under one profile
type Engine struct {
	def     ProfileDefinition
	now     func() time.Time
	workers int
}

// Option configures an Engine
type Option func(*Engine)

// WithClock sets the clock used when MarketContext carries no AsOfYear.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithWorkers bounds RankBatch parallelism.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// NewEngine creates an engine for the given profile
func NewEngine(profile Profile, opts ...Option) (*Engine, error) {
	def, ok := Definition(profile)
	if !ok {
		return nil, domain.NewValidationError("profile", fmt.Sprintf("unknown scoring profile %q", profile))
	}

	e := &Engine{
		def:     def,
		now:     time.Now,
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Profile returns the engine's profile
func (e *Engine) Profile() Profile {
	return e.def.Profile
}

// Definition returns the engine's profile definition
func (e *Engine) Definition() ProfileDefinition {
	return e.def
}

// asOfYear is the year building ages are measured from
func (e *Engine) asOfYear(mctx *domain.MarketContext) int {
	if mctx != nil && mctx.AsOfYear > 0 {
		return mctx.AsOfYear
	}
	return e.now().Year()
}

// ScoreProperty computes every component the profile weights and the overall
// score. Missing attributes fall back to documented defaults; the only error
// is a nil record.
func (e *Engine) ScoreProperty(record *domain.PropertyRecord, mctx *domain.MarketContext) (domain.ScoreBreakdown, error) {
	if record == nil {
		return domain.ScoreBreakdown{}, domain.NewValidationError("record", "property record is required")
	}

	components := make(map[string]float64, len(e.def.Weights))
	weighted := 0.0
	for _, w := range e.def.Weights {
		score := e.component(w.Component, record, mctx)
		components[w.Component] = score
		weighted += score * w.Value
	}

	return domain.ScoreBreakdown{
		PropertyID: record.ID,
		Address:    record.Address,
		Submarket:  record.Submarket,
		Profile:    string(e.def.Profile),
		Components: components,
		Overall:    int(math.Round(weighted)),
	}, nil
}

func (e *Engine) component(name string, record *domain.PropertyRecord, mctx *domain.MarketContext) float64 {
	switch name {
	case ComponentLocation:
		return LocationScore(record.Submarket)
	case ComponentBuilding:
		return BuildingScore(record, e.asOfYear(mctx))
	case ComponentFinancial:
		return FinancialScore(record)
	case ComponentMarket:
		return MarketScore(record, mctx, e.def.StatusModifiers)
	case ComponentRisk:
		return RiskScore(record, e.def.RiskBase)
	case ComponentGrowth:
		return GrowthScore(record)
	case ComponentLiquidity:
		return LiquidityScore(record)
	}
	return 0
}

// RankBatch scores every record in parallel, then sorts descending by overall
// score. Ties keep input order. Ranks are 1-based.
func (e *Engine) RankBatch(records []domain.PropertyRecord, mctx *domain.MarketContext) ([]domain.ScoreBreakdown, error) {
	results := make([]domain.ScoreBreakdown, len(records))
	if len(records) == 0 {
		return results, nil
	}

	workers := e.workers
	if workers > len(records) {
		workers = len(records)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				// records[i] is addressable, so the only error path is unreachable
				results[i], _ = e.ScoreProperty(&records[i], mctx)
			}
		}()
	}
	for i := range records {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Overall > results[j].Overall
	})
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

// PropertyAnalysis is the full engine output for one property
type PropertyAnalysis struct {
	Breakdown       domain.ScoreBreakdown      `json:"breakdown"`
	Projection      domain.FinancialProjection `json:"projection"`
	Optimization    PriceOptimization          `json:"optimization"`
	Recommendations []string                   `json:"recommendations"`
	RiskFactors     []string                   `json:"riskFactors"`
	Opportunities   []string                   `json:"opportunities"`
	MissingFields   []string                   `json:"missingFields,omitempty"`
}

// Analyze runs every engine operation for one property.
func (e *Engine) Analyze(record *domain.PropertyRecord, mctx *domain.MarketContext, costs CostAssumptions) (PropertyAnalysis, error) {
	breakdown, err := e.ScoreProperty(record, mctx)
	if err != nil {
		return PropertyAnalysis{}, err
	}

	projection, err := ProjectFinancials(record, costs)
	if err != nil {
		return PropertyAnalysis{}, fmt.Errorf("failed to project financials for %s: %w", record.ID, err)
	}

	optimization, err := e.optimize(record, breakdown, mctx, costs)
	if err != nil {
		return PropertyAnalysis{}, fmt.Errorf("failed to optimize price for %s: %w", record.ID, err)
	}

	return PropertyAnalysis{
		Breakdown:       breakdown,
		Projection:      projection,
		Optimization:    optimization,
		Recommendations: GenerateRecommendations(breakdown, record),
		RiskFactors:     IdentifyRiskFactors(breakdown, record),
		Opportunities:   IdentifyOpportunities(breakdown, record),
		MissingFields:   record.MissingFields(),
	}, nil
}
