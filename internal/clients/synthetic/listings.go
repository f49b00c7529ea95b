// Package synthetic generates deterministic, clearly labeled rental listings.
// It exists for demos and tests and is never mixed into real-source results.
package synthetic

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"

	"github.com/aristath/cornerstone/internal/cache"
	"github.com/aristath/cornerstone/internal/clientdata"
	"github.com/aristath/cornerstone/internal/clients/source"
	"github.com/aristath/cornerstone/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrUnavailable is returned by a provider configured to simulate an outage.
var ErrUnavailable = errors.New("synthetic provider unavailable")

// baseRents are median monthly rents for a one-bedroom by submarket
var baseRents = map[string]float64{
	"Tribeca":            6200,
	"SoHo":               5900,
	"West Village":       5600,
	"Hudson Yards":       5400,
	"Chelsea":            5000,
	"Flatiron":           5000,
	"NoMad":              4900,
	"Financial District": 4500,
	"Midtown":            4400,
	"Upper East Side":    4000,
	"Upper West Side":    4100,
	"Harlem":             2900,
}

const defaultBaseRent = 3800

// RentalListing is a generated listing. Synthetic is always true.
type RentalListing struct {
	ID          string  `json:"id"`
	Submarket   string  `json:"submarket"`
	Bedrooms    int     `json:"bedrooms"`
	SquareFeet  int     `json:"squareFeet"`
	MonthlyRent float64 `json:"monthlyRent"`
	Synthetic   bool    `json:"synthetic"`
}

// Config configures a Provider.
type Config struct {
	Seed        int64
	PerPage     int
	Unavailable bool
}

// Provider generates listings through the same source pipeline as real clients.
type Provider struct {
	cfg Config
	src *source.Source
	log zerolog.Logger
}

// NewProvider creates a Provider.
func NewProvider(cfg Config, src *source.Source, log zerolog.Logger) *Provider {
	if cfg.PerPage <= 0 {
		cfg.PerPage = 20
	}
	return &Provider{
		cfg: cfg,
		src: src,
		log: log.With().Str("client", "synthetic").Logger(),
	}
}

// GetListings returns listings for a submarket. The same seed and submarket
// always yield the same listings.
func (p *Provider) GetListings(ctx context.Context, submarket string) (*domain.CachedResponse[[]RentalListing], error) {
	submarket = strings.TrimSpace(submarket)
	if submarket == "" {
		return nil, domain.NewValidationError("submarket", "must not be empty")
	}

	key := cache.Key("listings", map[string]string{
		"submarket": submarket,
		"seed":      fmt.Sprintf("%d", p.cfg.Seed),
	})

	return source.Fetch(ctx, p.src, key, clientdata.TTLListings,
		func(ctx context.Context) ([]RentalListing, error) {
			if p.cfg.Unavailable {
				return nil, ErrUnavailable
			}
			return Generate(p.cfg.Seed, submarket, p.cfg.PerPage), nil
		})
}

// Generate builds n listings for submarket from seed.
func Generate(seed int64, submarket string, n int) []RentalListing {
	h := fnv.New64a()
	_, _ = h.Write([]byte(submarket))
	rng := rand.New(rand.NewSource(seed ^ int64(h.Sum64())))

	base, ok := baseRents[submarket]
	if !ok {
		base = defaultBaseRent
	}

	ns := uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("synthetic/%d/%s", seed, submarket)))

	listings := make([]RentalListing, n)
	for i := range listings {
		bedrooms := rng.Intn(4) // studio to 3BR
		sf := 450 + bedrooms*300 + rng.Intn(200)
		multiplier := 0.8 + 0.45*float64(bedrooms) + rng.Float64()*0.2

		listings[i] = RentalListing{
			ID:          uuid.NewSHA1(ns, []byte(fmt.Sprintf("%d", i))).String(),
			Submarket:   submarket,
			Bedrooms:    bedrooms,
			SquareFeet:  sf,
			MonthlyRent: math.Round(base*multiplier/25) * 25,
			Synthetic:   true,
		}
	}
	return listings
}

// AverageRent returns the mean monthly rent of listings, or 0 for none.
func AverageRent(listings []RentalListing) float64 {
	if len(listings) == 0 {
		return 0
	}
	var sum float64
	for _, l := range listings {
		sum += l.MonthlyRent
	}
	return sum / float64(len(listings))
}
