package fred

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/cornerstone/internal/domain"
	"github.com/markcheno/go-talib"
)

const (
	// trendWindow is the number of observations used for SMA and rate of change
	trendWindow = 4
	// trendThresholdPct is the rate of change beyond which a series is trending
	trendThresholdPct = 1.0
)

// Observation is one dated value.
type Observation struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// EconomicSeries is a FRED series with derived trend statistics.
// SMA and ChangePct are nil when there are too few observations.
type EconomicSeries struct {
	ID           string               `json:"id"`
	Observations []Observation        `json:"observations"`
	Latest       *float64             `json:"latest,omitempty"`
	SMA          *float64             `json:"sma,omitempty"`
	ChangePct    *float64             `json:"changePct,omitempty"`
	Trend        domain.MortgageTrend `json:"trend"`
}

// NewEconomicSeries computes trend statistics over obs (oldest first).
func NewEconomicSeries(id string, obs []Observation) EconomicSeries {
	s := EconomicSeries{ID: id, Observations: obs, Trend: domain.TrendFlat}
	if len(obs) == 0 {
		return s
	}

	values := make([]float64, len(obs))
	for i, o := range obs {
		values[i] = o.Value
	}

	latest := values[len(values)-1]
	s.Latest = &latest

	if len(values) >= trendWindow {
		sma := talib.Sma(values, trendWindow)
		if v := sma[len(sma)-1]; !math.IsNaN(v) {
			s.SMA = &v
		}
	}

	if len(values) > trendWindow {
		roc := talib.Roc(values, trendWindow)
		if v := roc[len(roc)-1]; !math.IsNaN(v) && !math.IsInf(v, 0) {
			s.ChangePct = &v
			switch {
			case v > trendThresholdPct:
				s.Trend = domain.TrendRising
			case v < -trendThresholdPct:
				s.Trend = domain.TrendFalling
			}
		}
	}

	return s
}

// parseValue parses a FRED numeric string
func parseValue(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
