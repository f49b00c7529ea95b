// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/cornerstone/internal/database"
	"github.com/aristath/cornerstone/internal/modules/scoring"
	"github.com/joho/godotenv"
)

// Cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheSQLite = "sqlite"
)

// DefaultAllowedOrigins admits browser clients served from any localhost port
var DefaultAllowedOrigins = []string{"http://localhost:*"}

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for databases and snapshots (always absolute)
	LogLevel       string
	Port           int
	DevMode        bool
	AllowedOrigins []string // Browser origins for CORS and the event stream
	ScoringProfile scoring.Profile
	Costs          scoring.CostAssumptions
	Database       DatabaseConfig
	Cache          CacheConfig
	Sources        SourcesConfig
	Retry          RetryConfig
	Snapshot       SnapshotConfig
	Schedules      ScheduleConfig
}

// DatabaseConfig selects the relational store
type DatabaseConfig struct {
	Driver database.Driver
	URL    string // postgres only
}

// CacheConfig selects where source responses are cached
type CacheConfig struct {
	Backend  string // memory | redis | sqlite
	RedisURL string
}

// SourcesConfig holds external data source endpoints, credentials and limits
type SourcesConfig struct {
	NYCOpenDataURL  string
	NYCAppToken     string
	FREDURL         string
	FREDAPIKey      string
	MarketSymbols   []string
	NYCRateLimit    int // calls per minute
	FREDRateLimit   int // calls per minute
	MarketRateLimit int // calls per minute
	SyntheticData   bool
}

// RetryConfig controls retries of external calls
type RetryConfig struct {
	MaxRetries  int
	BaseDelay   time.Duration
	HTTPTimeout time.Duration // per attempt
}

// SnapshotConfig holds S3-compatible snapshot backup settings
type SnapshotConfig struct {
	Bucket        string
	Endpoint      string // empty for AWS S3
	AccessKey     string
	SecretKey     string
	Region        string
	RetentionDays int // remote snapshots older than this are rotated out; 0 keeps all
}

// Enabled reports whether snapshots should be uploaded
func (s SnapshotConfig) Enabled() bool {
	return s.Bucket != ""
}

// ScheduleConfig holds cron expressions for background jobs
type ScheduleConfig struct {
	Reload   string
	Cleanup  string
	Snapshot string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("CORNERSTONE_DATA_DIR", "./data")

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	driver, err := database.ParseDriver(getEnv("DATABASE_DRIVER", "sqlite"))
	if err != nil {
		return nil, err
	}

	profile, err := scoring.ParseProfile(getEnv("SCORING_PROFILE", string(scoring.ProfileConversion)))
	if err != nil {
		return nil, err
	}

	defaults := scoring.DefaultCostAssumptions()

	origins := getEnvAsList("CORS_ALLOWED_ORIGINS")
	if len(origins) == 0 {
		origins = DefaultAllowedOrigins
	}

	cfg := &Config{
		DataDir:        absDataDir,
		Port:           getEnvAsInt("PORT", 8080),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		AllowedOrigins: origins,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ScoringProfile: profile,
		Costs: scoring.CostAssumptions{
			PerSFConversionCost:          getEnvAsFloat("CONVERSION_COST_PER_SF", defaults.PerSFConversionCost),
			AverageUnitSF:                getEnvAsFloat("AVERAGE_UNIT_SF", defaults.AverageUnitSF),
			MonthlyRentPerUnit:           getEnvAsFloat("MONTHLY_RENT_PER_UNIT", defaults.MonthlyRentPerUnit),
			AssumedAnnualAppreciationPct: getEnvAsFloat("ANNUAL_APPRECIATION_PCT", defaults.AssumedAnnualAppreciationPct),
		},
		Database: DatabaseConfig{
			Driver: driver,
			URL:    getEnv("DATABASE_URL", ""),
		},
		Cache: CacheConfig{
			Backend:  strings.ToLower(getEnv("CACHE_BACKEND", CacheMemory)),
			RedisURL: getEnv("REDIS_URL", ""),
		},
		Sources: SourcesConfig{
			NYCOpenDataURL:  getEnv("NYC_OPEN_DATA_URL", "https://data.cityofnewyork.us"),
			NYCAppToken:     getEnv("NYC_APP_TOKEN", ""),
			FREDURL:         getEnv("FRED_URL", "https://api.stlouisfed.org/fred"),
			FREDAPIKey:      getEnv("FRED_API_KEY", ""),
			MarketSymbols:   getEnvAsList("MARKET_SYMBOLS"),
			NYCRateLimit:    getEnvAsInt("NYC_RATE_LIMIT", 60),
			FREDRateLimit:   getEnvAsInt("FRED_RATE_LIMIT", 120),
			MarketRateLimit: getEnvAsInt("MARKET_RATE_LIMIT", 30),
			SyntheticData:   getEnvAsBool("SYNTHETIC_DATA", false),
		},
		Retry: RetryConfig{
			MaxRetries:  getEnvAsInt("RETRY_MAX", 3),
			BaseDelay:   getEnvAsDuration("RETRY_BASE_DELAY", time.Second),
			HTTPTimeout: getEnvAsDuration("HTTP_TIMEOUT", 10*time.Second),
		},
		Snapshot: SnapshotConfig{
			Bucket:        getEnv("SNAPSHOT_BUCKET", ""),
			Endpoint:      getEnv("SNAPSHOT_ENDPOINT", ""),
			AccessKey:     getEnv("SNAPSHOT_ACCESS_KEY", ""),
			SecretKey:     getEnv("SNAPSHOT_SECRET_KEY", ""),
			Region:        getEnv("SNAPSHOT_REGION", "auto"),
			RetentionDays: getEnvAsInt("SNAPSHOT_RETENTION_DAYS", 30),
		},
		Schedules: ScheduleConfig{
			Reload:   getEnv("RELOAD_SCHEDULE", "0 0 */6 * * *"),
			Cleanup:  getEnv("CLEANUP_SCHEDULE", "0 */30 * * * *"),
			Snapshot: getEnv("SNAPSHOT_SCHEDULE", "0 0 3 * * *"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration values are usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}

	switch c.Database.Driver {
	case database.DriverSQLite:
	case database.DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when DATABASE_DRIVER is postgres")
		}
	default:
		return fmt.Errorf("unknown DATABASE_DRIVER: %s", c.Database.Driver)
	}

	switch c.Cache.Backend {
	case CacheMemory, CacheSQLite:
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when CACHE_BACKEND is redis")
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND: %s", c.Cache.Backend)
	}

	if _, ok := scoring.Definition(c.ScoringProfile); !ok {
		return fmt.Errorf("unknown SCORING_PROFILE: %s", c.ScoringProfile)
	}

	if err := c.Costs.Validate(); err != nil {
		return fmt.Errorf("invalid cost assumptions: %w", err)
	}

	if c.Sources.NYCRateLimit <= 0 || c.Sources.FREDRateLimit <= 0 || c.Sources.MarketRateLimit <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("RETRY_MAX must not be negative")
	}

	if c.Snapshot.RetentionDays < 0 {
		return fmt.Errorf("SNAPSHOT_RETENTION_DAYS must not be negative")
	}
	if c.Snapshot.Enabled() && (c.Snapshot.AccessKey == "") != (c.Snapshot.SecretKey == "") {
		return fmt.Errorf("SNAPSHOT_ACCESS_KEY and SNAPSHOT_SECRET_KEY must be set together")
	}

	return nil
}

// PropertiesDBPath is the SQLite file holding property records
func (c *Config) PropertiesDBPath() string {
	return filepath.Join(c.DataDir, "properties.db")
}

// CacheDBPath is the SQLite file backing the sqlite cache backend
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// SnapshotDir is where snapshot archives are written before upload
func (c *Config) SnapshotDir() string {
	return filepath.Join(c.DataDir, "snapshots")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value, dropping empty entries
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
