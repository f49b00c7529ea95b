// Package di provides dependency injection for services.
package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/cornerstone/internal/cache"
	"github.com/aristath/cornerstone/internal/clientdata"
	"github.com/aristath/cornerstone/internal/clients/fred"
	"github.com/aristath/cornerstone/internal/clients/marketindex"
	"github.com/aristath/cornerstone/internal/clients/nycopendata"
	"github.com/aristath/cornerstone/internal/clients/source"
	"github.com/aristath/cornerstone/internal/clients/synthetic"
	"github.com/aristath/cornerstone/internal/config"
	"github.com/aristath/cornerstone/internal/dataset"
	"github.com/aristath/cornerstone/internal/events"
	"github.com/aristath/cornerstone/internal/metrics"
	"github.com/aristath/cornerstone/internal/modules/analysis"
	"github.com/aristath/cornerstone/internal/modules/properties"
	"github.com/aristath/cornerstone/internal/ratelimit"
	"github.com/aristath/cornerstone/internal/reliability"
	"github.com/aristath/cornerstone/internal/retry"
	"github.com/aristath/cornerstone/internal/scheduler"
	"github.com/rs/zerolog"
)

// Source names as they appear in logs, metrics and rate limit status
const (
	sourceNYCOpenData = "nyc-open-data"
	sourceFRED        = "fred"
	sourceMarketIndex = "market-index"
	sourceListings    = "listings"
)

// redisKeyPrefix namespaces cache keys in a shared Redis
const redisKeyPrefix = "cornerstone:"

// InitializeServices creates the cache, clients and services.
// Must be called after InitializeDatabases.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	ctx := context.Background()

	// ==========================================
	// STEP 1: Infrastructure
	// ==========================================

	container.Metrics = metrics.New()
	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)
	container.RateLimits = ratelimit.NewRegistry(time.Now)
	container.Costs = cfg.Costs

	if err := initializeCache(ctx, container, cfg, log); err != nil {
		return err
	}

	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.Retry.MaxRetries
	policy.BaseDelay = cfg.Retry.BaseDelay

	newSource := func(name, table string, perMinute int) (*source.Source, error) {
		store, err := cacheStore(container, table)
		if err != nil {
			return nil, err
		}
		var bucket *ratelimit.Bucket
		if perMinute > 0 {
			bucket = container.RateLimits.Register(name, perMinute, time.Minute)
		}
		return source.New(source.Config{
			Name:    name,
			Bucket:  bucket,
			Store:   store,
			Policy:  policy,
			Timeout: cfg.Retry.HTTPTimeout,
			Metrics: container.Metrics,
		}, log), nil
	}

	// ==========================================
	// STEP 2: External clients
	// ==========================================

	nycSrc, err := newSource(sourceNYCOpenData, clientdata.TableNYCOpenData, cfg.Sources.NYCRateLimit)
	if err != nil {
		return err
	}
	container.NYCOpenData = nycopendata.NewClient(cfg.Sources.NYCOpenDataURL, cfg.Sources.NYCAppToken, nycSrc, log)

	fredSrc, err := newSource(sourceFRED, clientdata.TableFRED, cfg.Sources.FREDRateLimit)
	if err != nil {
		return err
	}
	container.FRED = fred.NewClient(cfg.Sources.FREDURL, cfg.Sources.FREDAPIKey, fredSrc, log)

	marketSrc, err := newSource(sourceMarketIndex, clientdata.TableMarketIndex, cfg.Sources.MarketRateLimit)
	if err != nil {
		return err
	}
	container.MarketIndex = marketindex.NewClient(cfg.Sources.MarketSymbols, nil, marketSrc, log)

	// Synthetic listings never leave the process, so they are not rate limited
	if cfg.Sources.SyntheticData {
		listingsSrc, err := newSource(sourceListings, clientdata.TableListings, 0)
		if err != nil {
			return err
		}
		container.Listings = synthetic.NewProvider(synthetic.Config{}, listingsSrc, log)
		log.Warn().Msg("Synthetic rental listings enabled")
	}

	// ==========================================
	// STEP 3: Dataset
	// ==========================================

	container.PropertyRepo = properties.NewRepository(container.PropertiesDB.Conn(), container.PropertiesDB.Driver(), log)
	container.Dataset = dataset.New(dataset.Config{
		SourceName: sourceNYCOpenData,
	}, container.NYCOpenData, container.PropertyRepo, container.EventManager, container.Metrics, log)

	// An empty or unreadable store is not fatal; the first reload fills it
	if _, err := container.Dataset.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to restore dataset, starting empty")
	}

	// ==========================================
	// STEP 4: Analysis
	// ==========================================

	sources := analysis.Sources{
		Properties: container.NYCOpenData,
		Permits:    container.NYCOpenData,
		Economic:   container.FRED,
		Market:     container.MarketIndex,
	}
	if container.Listings != nil {
		sources.Listings = container.Listings
	}
	container.AnalysisService = analysis.NewService(analysis.Config{}, container.Dataset, sources, cfg.Costs, container.EventManager, container.Metrics, log)

	// ==========================================
	// STEP 5: Snapshots and scheduler
	// ==========================================

	var store reliability.ObjectStore
	if cfg.Snapshot.Enabled() {
		s3Store, err := reliability.NewS3Store(ctx, reliability.S3Config{
			Bucket:    cfg.Snapshot.Bucket,
			Endpoint:  cfg.Snapshot.Endpoint,
			AccessKey: cfg.Snapshot.AccessKey,
			SecretKey: cfg.Snapshot.SecretKey,
			Region:    cfg.Snapshot.Region,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create snapshot store: %w", err)
		}
		store = s3Store
	}
	container.SnapshotService = reliability.NewSnapshotService(container.Dataset, store, cfg.SnapshotDir(), container.EventManager, log)

	if container.Dataset.Size() == 0 {
		restoreFromSnapshot(ctx, container, log)
	}

	container.Scheduler = scheduler.New(log)

	log.Info().
		Str("cache", cfg.Cache.Backend).
		Bool("snapshot_upload", store != nil).
		Msg("Services initialized")

	return nil
}

// initializeCache creates the configured response cache backend
func initializeCache(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		store, err := cache.NewRedisStore(ctx, cfg.Cache.RedisURL, redisKeyPrefix)
		if err != nil {
			if store == nil {
				return fmt.Errorf("failed to create redis cache: %w", err)
			}
			// Unreachable Redis degrades to uncached calls
			log.Warn().Err(err).Msg("Redis unavailable, source responses will not be cached")
		}
		container.RedisCache = store
	case config.CacheSQLite:
		if container.CacheDB == nil {
			return fmt.Errorf("sqlite cache backend requires the cache database")
		}
		container.ClientDataRepo = clientdata.NewRepository(container.CacheDB)
	default:
		container.MemoryCache = cache.NewMemoryStore(time.Now)
	}
	return nil
}

// cacheStore returns the cache.Store a source should use
func cacheStore(container *Container, table string) (cache.Store, error) {
	switch {
	case container.RedisCache != nil:
		return container.RedisCache, nil
	case container.ClientDataRepo != nil:
		store, err := container.ClientDataRepo.ForTable(table)
		if err != nil {
			return nil, fmt.Errorf("failed to create cache table store: %w", err)
		}
		return store, nil
	case container.MemoryCache != nil:
		return container.MemoryCache, nil
	}
	return nil, fmt.Errorf("no cache backend initialized")
}

// restoreFromSnapshot seeds an empty store from the newest snapshot. Failures
// leave the dataset empty for the startup reload to fill.
func restoreFromSnapshot(ctx context.Context, container *Container, log zerolog.Logger) {
	records, metadata, err := container.SnapshotService.LoadLatest(ctx)
	if err != nil {
		if !errors.Is(err, reliability.ErrNoSnapshot) {
			log.Warn().Err(err).Msg("Failed to load snapshot")
		}
		return
	}
	if _, err := container.Dataset.Import(ctx, records); err != nil {
		log.Warn().Err(err).Msg("Failed to import snapshot")
		return
	}
	log.Info().
		Str("snapshot", metadata.ID).
		Int("records", len(records)).
		Msg("Restored dataset from snapshot")
}
