// Package clientdata provides persistent caching for external API client responses.
// Payloads are stored as opaque blobs with expiration timestamps, one table per source.
package clientdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/cornerstone/internal/database"
)

// Source cache tables.
const (
	TableNYCOpenData = "nyc_open_data"
	TableFRED        = "fred"
	TableMarketIndex = "market_index"
	TableListings    = "listings"
)

// AllTables lists all cache tables for cleanup operations.
var AllTables = []string{
	TableNYCOpenData,
	TableFRED,
	TableMarketIndex,
	TableListings,
}

// validTables is a set for O(1) table name validation.
var validTables = func() map[string]bool {
	m := make(map[string]bool, len(AllTables))
	for _, t := range AllTables {
		m[t] = true
	}
	return m
}()

// Repository provides cache operations for client data.
type Repository struct {
	db  *database.DB
	now func() time.Time
}

// NewRepository creates a new client data repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// WithClock overrides the time source. Used by tests.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.now = now
	return r
}

// validateTable ensures the table name is in our allowed list.
// Table names are interpolated into SQL, so this also guards against injection.
func validateTable(table string) error {
	if !validTables[table] {
		return fmt.Errorf("invalid table name: %s", table)
	}
	return nil
}

// Store saves data with expiration = now + ttl, replacing any existing row.
func (r *Repository) Store(ctx context.Context, table, key string, data []byte, ttl time.Duration) error {
	if err := validateTable(table); err != nil {
		return err
	}

	expiresAt := r.now().Add(ttl).UnixMilli()

	query := fmt.Sprintf(
		`INSERT INTO %s (cache_key, data, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (cache_key) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`,
		table,
	)

	if _, err := r.db.ExecContext(ctx, query, key, data, expiresAt); err != nil {
		return fmt.Errorf("failed to store data in %s: %w", table, err)
	}
	return nil
}

// GetIfFresh returns data only if expires_at > now.
// Returns nil, nil if the key doesn't exist or data is expired.
// Use Get() to retrieve stale data as a fallback when API calls fail.
func (r *Repository) GetIfFresh(ctx context.Context, table, key string) ([]byte, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT data FROM %s WHERE cache_key = ? AND expires_at > ?", table)

	var data []byte
	err := r.db.QueryRowContext(ctx, query, key, r.now().UnixMilli()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data from %s: %w", table, err)
	}
	return data, nil
}

// Get returns data regardless of expiration status.
// Returns nil, nil if the key doesn't exist.
func (r *Repository) Get(ctx context.Context, table, key string) ([]byte, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT data FROM %s WHERE cache_key = ?", table)

	var data []byte
	err := r.db.QueryRowContext(ctx, query, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data from %s: %w", table, err)
	}
	return data, nil
}

// Delete removes a specific entry.
func (r *Repository) Delete(ctx context.Context, table, key string) error {
	if err := validateTable(table); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE cache_key = ?", table)
	if _, err := r.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}

// DeleteExpired removes all rows where expires_at <= now.
// Returns the number of rows deleted.
func (r *Repository) DeleteExpired(ctx context.Context, table string) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE expires_at <= ?", table)

	result, err := r.db.ExecContext(ctx, query, r.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired from %s: %w", table, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", table, err)
	}
	return deleted, nil
}

// DeleteAllExpired removes all expired entries from all tables.
// Returns a map of table name to number of rows deleted.
func (r *Repository) DeleteAllExpired(ctx context.Context) (map[string]int64, error) {
	results := make(map[string]int64)

	for _, table := range AllTables {
		deleted, err := r.DeleteExpired(ctx, table)
		if err != nil {
			return results, err
		}
		results[table] = deleted
	}
	return results, nil
}

// TableStore exposes one cache table as a cache.Store.
type TableStore struct {
	repo  *Repository
	table string
}

// ForTable returns a cache.Store bound to table.
func (r *Repository) ForTable(table string) (*TableStore, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	return &TableStore{repo: r, table: table}, nil
}

func (s *TableStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.repo.GetIfFresh(ctx, s.table, key)
	if err != nil {
		return nil, false, err
	}
	return data, data != nil, nil
}

func (s *TableStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return s.repo.Delete(ctx, s.table, key)
	}
	return s.repo.Store(ctx, s.table, key, value, ttl)
}

func (s *TableStore) Delete(ctx context.Context, key string) error {
	return s.repo.Delete(ctx, s.table, key)
}
