// Package di provides dependency injection for database connections.
package di

import (
	"fmt"

	"github.com/aristath/cornerstone/internal/config"
	"github.com/aristath/cornerstone/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the properties database and, for the sqlite cache
// backend, the response cache database. Schemas are applied on open.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. properties - normalized records, SQLite file or Postgres
	propertiesDB, err := database.New(database.Config{
		Driver:  cfg.Database.Driver,
		Path:    cfg.PropertiesDBPath(),
		URL:     cfg.Database.URL,
		Profile: database.ProfileStandard,
		Name:    "properties",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize properties database: %w", err)
	}
	if err := propertiesDB.Migrate(); err != nil {
		propertiesDB.Close()
		return nil, fmt.Errorf("failed to migrate properties database: %w", err)
	}
	container.PropertiesDB = propertiesDB

	// 2. cache - source responses, only when they are cached in SQLite
	if cfg.Cache.Backend == config.CacheSQLite {
		cacheDB, err := database.New(database.Config{
			Driver:  database.DriverSQLite,
			Path:    cfg.CacheDBPath(),
			Profile: database.ProfileCache,
			Name:    "cache",
		})
		if err != nil {
			propertiesDB.Close()
			return nil, fmt.Errorf("failed to initialize cache database: %w", err)
		}
		if err := cacheDB.Migrate(); err != nil {
			cacheDB.Close()
			propertiesDB.Close()
			return nil, fmt.Errorf("failed to migrate cache database: %w", err)
		}
		container.CacheDB = cacheDB
	}

	log.Info().
		Str("driver", string(cfg.Database.Driver)).
		Bool("cache_db", container.CacheDB != nil).
		Msg("Databases initialized")

	return container, nil
}
