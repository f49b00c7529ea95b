/**
 * Package di provides dependency injection type definitions.
 *
 * Container holds every long-lived dependency. It is created by Wire() and
 * passed to the HTTP server, which builds its handlers from it.
 */
package di

import (
	"github.com/aristath/cornerstone/internal/cache"
	"github.com/aristath/cornerstone/internal/clientdata"
	"github.com/aristath/cornerstone/internal/clients/fred"
	"github.com/aristath/cornerstone/internal/clients/marketindex"
	"github.com/aristath/cornerstone/internal/clients/nycopendata"
	"github.com/aristath/cornerstone/internal/clients/synthetic"
	"github.com/aristath/cornerstone/internal/database"
	"github.com/aristath/cornerstone/internal/dataset"
	"github.com/aristath/cornerstone/internal/events"
	"github.com/aristath/cornerstone/internal/metrics"
	"github.com/aristath/cornerstone/internal/modules/analysis"
	"github.com/aristath/cornerstone/internal/modules/properties"
	"github.com/aristath/cornerstone/internal/modules/scoring"
	"github.com/aristath/cornerstone/internal/ratelimit"
	"github.com/aristath/cornerstone/internal/reliability"
	"github.com/aristath/cornerstone/internal/scheduler"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Databases: properties (SQLite or Postgres) plus an optional SQLite response cache
 * - Caches: exactly one of MemoryCache, RedisCache or ClientDataRepo backs the sources
 * - Clients: NYC Open Data, FRED, market index and the optional synthetic listings
 * - Services: dataset lifecycle, analysis, snapshots and the job scheduler
 */
type Container struct {
	// Databases
	PropertiesDB *database.DB
	CacheDB      *database.DB // nil unless CACHE_BACKEND=sqlite

	// Infrastructure
	Metrics        *metrics.Metrics
	EventBus       *events.Bus
	EventManager   *events.Manager
	RateLimits     *ratelimit.Registry
	MemoryCache    *cache.MemoryStore
	RedisCache     *cache.RedisStore
	ClientDataRepo *clientdata.Repository

	// Clients
	NYCOpenData *nycopendata.Client
	FRED        *fred.Client
	MarketIndex *marketindex.Client
	Listings    *synthetic.Provider // nil unless SYNTHETIC_DATA=true

	// Repositories
	PropertyRepo *properties.Repository

	// Services
	Dataset         *dataset.Dataset
	AnalysisService *analysis.Service
	SnapshotService *reliability.SnapshotService
	Scheduler       *scheduler.Scheduler

	Costs scoring.CostAssumptions
}

// JobInstances holds the scheduled jobs for manual triggering via API
type JobInstances struct {
	Reload   *scheduler.ReloadJob
	Cleanup  *clientdata.CleanupJob
	Snapshot *reliability.SnapshotJob
}

// All returns every registered job
func (j *JobInstances) All() []scheduler.Job {
	if j == nil {
		return nil
	}
	return []scheduler.Job{j.Reload, j.Cleanup, j.Snapshot}
}

// Close releases databases and the Redis client. It is safe on a partially
// initialized container.
func (c *Container) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.RedisCache != nil {
		keep(c.RedisCache.Close())
	}
	if c.CacheDB != nil {
		keep(c.CacheDB.Close())
	}
	if c.PropertiesDB != nil {
		keep(c.PropertiesDB.Close())
	}
	return firstErr
}
