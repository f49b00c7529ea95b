// Package marketindex fetches REIT and office-landlord quotes as a market
// sentiment signal for commercial real estate.
package marketindex

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aristath/cornerstone/internal/cache"
	"github.com/aristath/cornerstone/internal/clientdata"
	"github.com/aristath/cornerstone/internal/clients/source"
	"github.com/aristath/cornerstone/internal/domain"
	"github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
	"github.com/rs/zerolog"
)

// DefaultSymbols are broad REIT ETFs plus Manhattan office landlords.
var DefaultSymbols = []string{"VNQ", "IYR", "XLRE", "SLG", "VNO", "ESRT"}

// sentimentThresholdPct separates a neutral day from a directional one
const sentimentThresholdPct = 0.5

// QuoteFunc fetches one quote. quote.Get is the production implementation.
type QuoteFunc func(symbol string) (*finance.Quote, error)

// IndexQuote is a normalized quote.
type IndexQuote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previousClose"`
	ChangePct     float64 `json:"changePct"`
}

// MarketSnapshot aggregates the configured symbols.
type MarketSnapshot struct {
	Quotes           []IndexQuote `json:"quotes"`
	Missing          []string     `json:"missing,omitempty"`
	AverageChangePct float64      `json:"averageChangePct"`
	Sentiment        string       `json:"sentiment"`
}

// Client is the market index client.
type Client struct {
	symbols []string
	quote   QuoteFunc
	src     *source.Source
	log     zerolog.Logger
}

// NewClient creates a market index client. Nil symbols use DefaultSymbols and
// a nil quote func uses quote.Get.
func NewClient(symbols []string, fn QuoteFunc, src *source.Source, log zerolog.Logger) *Client {
	if len(symbols) == 0 {
		symbols = DefaultSymbols
	}
	if fn == nil {
		fn = quote.Get
	}

	normalized := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			normalized = append(normalized, s)
		}
	}
	sort.Strings(normalized)

	return &Client{
		symbols: normalized,
		quote:   fn,
		src:     src,
		log:     log.With().Str("client", "marketindex").Logger(),
	}
}

// Symbols returns the tracked symbols.
func (c *Client) Symbols() []string {
	return c.symbols
}

// GetMarketSnapshot quotes every symbol. Symbols that fail are listed in
// Missing; the call fails only when no symbol could be quoted.
func (c *Client) GetMarketSnapshot(ctx context.Context) (*domain.CachedResponse[MarketSnapshot], error) {
	key := cache.Key("quotes", map[string]string{"symbols": strings.Join(c.symbols, ",")})

	return source.Fetch(ctx, c.src, key, clientdata.TTLMarketIndex,
		func(ctx context.Context) (MarketSnapshot, error) {
			var snap MarketSnapshot
			var lastErr error

			for _, symbol := range c.symbols {
				if err := ctx.Err(); err != nil {
					return MarketSnapshot{}, err
				}

				q, err := c.quote(symbol)
				if err != nil || q == nil || q.RegularMarketPrice <= 0 {
					if err == nil {
						err = fmt.Errorf("no price for %s", symbol)
					}
					lastErr = err
					snap.Missing = append(snap.Missing, symbol)
					c.log.Debug().Err(err).Str("symbol", symbol).Msg("Quote unavailable")
					continue
				}

				snap.Quotes = append(snap.Quotes, IndexQuote{
					Symbol:        symbol,
					Name:          q.ShortName,
					Price:         q.RegularMarketPrice,
					PreviousClose: q.RegularMarketPreviousClose,
					ChangePct:     changePct(q),
				})
			}

			if len(snap.Quotes) == 0 {
				return MarketSnapshot{}, fmt.Errorf("no quotes available: %w", lastErr)
			}

			var sum float64
			for _, q := range snap.Quotes {
				sum += q.ChangePct
			}
			snap.AverageChangePct = sum / float64(len(snap.Quotes))
			snap.Sentiment = Sentiment(snap.AverageChangePct)

			return snap, nil
		})
}

func changePct(q *finance.Quote) float64 {
	if q.RegularMarketChangePercent != 0 {
		return q.RegularMarketChangePercent
	}
	if q.RegularMarketPreviousClose > 0 {
		return (q.RegularMarketPrice/q.RegularMarketPreviousClose - 1) * 100
	}
	return 0
}

// Sentiment classifies an average daily change.
func Sentiment(avgChangePct float64) string {
	switch {
	case avgChangePct > sentimentThresholdPct:
		return "bullish"
	case avgChangePct < -sentimentThresholdPct:
		return "bearish"
	}
	return "neutral"
}
