package marketindex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/cornerstone/internal/cache"
	"github.com/aristath/cornerstone/internal/clients/source"
	"github.com/aristath/cornerstone/internal/domain"
	"github.com/aristath/cornerstone/internal/retry"
	"github.com/piquette/finance-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSource() *source.Source {
	return source.New(source.Config{
		Name:  "market-index",
		Store: cache.NewMemoryStore(nil),
		Policy: retry.Policy{
			Sleep: func(context.Context, time.Duration) error { return nil },
		},
	}, zerolog.Nop())
}

func fakeQuotes(quotes map[string]*finance.Quote, calls *int) QuoteFunc {
	return func(symbol string) (*finance.Quote, error) {
		*calls++
		q, ok := quotes[symbol]
		if !ok {
			return nil, errors.New("symbol not found")
		}
		return q, nil
	}
}

func TestGetMarketSnapshot(t *testing.T) {
	calls := 0
	fn := fakeQuotes(map[string]*finance.Quote{
		"VNQ": {Symbol: "VNQ", ShortName: "Vanguard Real Estate", RegularMarketPrice: 90, RegularMarketChangePercent: 1.5},
		"SLG": {Symbol: "SLG", ShortName: "SL Green", RegularMarketPrice: 60, RegularMarketPreviousClose: 58},
	}, &calls)

	client := NewClient([]string{"vnq", "SLG", "ESRT", " "}, fn, testSource(), zerolog.Nop())
	assert.Equal(t, []string{"ESRT", "SLG", "VNQ"}, client.Symbols())

	resp, err := client.GetMarketSnapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Payload.Quotes, 2)
	assert.Equal(t, []string{"ESRT"}, resp.Payload.Missing)

	slg := resp.Payload.Quotes[0]
	assert.Equal(t, "SLG", slg.Symbol)
	assert.InDelta(t, (60.0/58.0-1)*100, slg.ChangePct, 1e-9)

	assert.InDelta(t, (1.5+(60.0/58.0-1)*100)/2, resp.Payload.AverageChangePct, 1e-9)
	assert.Equal(t, "bullish", resp.Payload.Sentiment)

	_, err = client.GetMarketSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, calls, "second snapshot is served from cache")
}

func TestGetMarketSnapshot_AllFail(t *testing.T) {
	calls := 0
	client := NewClient([]string{"VNQ"}, fakeQuotes(nil, &calls), testSource(), zerolog.Nop())

	resp, err := client.GetMarketSnapshot(context.Background())
	var su *domain.SourceUnavailableError
	require.True(t, errors.As(err, &su))
	assert.False(t, resp.Success)
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(nil, nil, testSource(), zerolog.Nop())
	assert.Len(t, client.Symbols(), len(DefaultSymbols))
	assert.NotNil(t, client.quote)
}

func TestSentiment(t *testing.T) {
	assert.Equal(t, "bullish", Sentiment(0.8))
	assert.Equal(t, "bearish", Sentiment(-1.2))
	assert.Equal(t, "neutral", Sentiment(0.5))
	assert.Equal(t, "neutral", Sentiment(0))
}
