// Package properties persists PropertyRecords and serves them over HTTP.
package properties

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/cornerstone/internal/database"
	"github.com/aristath/cornerstone/internal/domain"
	"github.com/rs/zerolog"
)

// SourceManual tags records written through Upsert rather than a dataset load
const SourceManual = "manual"

// propertyColumns is the list of columns for the properties table
const propertyColumns = `id, address, borough, submarket, category, building_class, zoning_code, status,
units, gross_sf, asking_price, price_per_sf, cap_rate, year_built, eligible_for_tax_program`

var _ domain.PropertyRepository = (*Repository)(nil)

// Repository handles property database operations
type Repository struct {
	db     *sql.DB
	driver database.Driver
	now    func() time.Time
	log    zerolog.Logger
}

// NewRepository creates a property repository over conn.
// driver selects the placeholder style.
func NewRepository(conn *sql.DB, driver database.Driver, log zerolog.Logger) *Repository {
	return &Repository{
		db:     conn,
		driver: driver,
		now:    time.Now,
		log:    log.With().Str("repo", "properties").Logger(),
	}
}

// Upsert inserts or replaces records by ID
func (r *Repository) Upsert(ctx context.Context, records []domain.PropertyRecord) (int, error) {
	return r.UpsertFrom(ctx, SourceManual, records)
}

// UpsertFrom inserts or replaces records by ID, tagging them with source.
// Records without an ID are skipped. All writes happen in one transaction.
func (r *Repository) UpsertFrom(ctx context.Context, source string, records []domain.PropertyRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	written, skipped := 0, 0
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var err error
		written, skipped, err = r.upsertTx(ctx, tx, source, records)
		return err
	})
	if err != nil {
		return 0, err
	}

	r.logWrite("Upserted properties", source, written, skipped, 0)
	return written, nil
}

// ReplaceFrom makes records the complete set stored for source: rows tagged
// with source that are not in records are deleted. Rows from other sources
// are untouched. Delete and upsert share one transaction.
func (r *Repository) ReplaceFrom(ctx context.Context, source string, records []domain.PropertyRecord) (int, error) {
	deleteQuery := database.Rebind(r.driver, "DELETE FROM properties WHERE source = ?")

	var written, skipped, removed int
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, deleteQuery, source)
		if err != nil {
			return fmt.Errorf("failed to clear properties from %s: %w", source, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			removed = int(n)
		}

		written, skipped, err = r.upsertTx(ctx, tx, source, records)
		return err
	})
	if err != nil {
		return 0, err
	}

	// removed counts every cleared row, including the ones written back
	r.logWrite("Replaced properties", source, written, skipped, removed)
	return written, nil
}

func (r *Repository) upsertTx(ctx context.Context, tx *sql.Tx, source string, records []domain.PropertyRecord) (written, skipped int, err error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	query := database.Rebind(r.driver, `INSERT INTO properties (`+propertyColumns+`, source, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			address = excluded.address,
			borough = excluded.borough,
			submarket = excluded.submarket,
			category = excluded.category,
			building_class = excluded.building_class,
			zoning_code = excluded.zoning_code,
			status = excluded.status,
			units = excluded.units,
			gross_sf = excluded.gross_sf,
			asking_price = excluded.asking_price,
			price_per_sf = excluded.price_per_sf,
			cap_rate = excluded.cap_rate,
			year_built = excluded.year_built,
			eligible_for_tax_program = excluded.eligible_for_tax_program,
			source = excluded.source,
			updated_at = excluded.updated_at`)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	updatedAt := r.now().UnixMilli()
	for _, p := range records {
		if strings.TrimSpace(p.ID) == "" {
			skipped++
			continue
		}
		_, err := stmt.ExecContext(ctx,
			p.ID, p.Address, string(p.Borough), p.Submarket, string(p.Category),
			p.BuildingClass, p.ZoningCode, string(p.Status),
			nullInt(p.Units), nullInt(p.GrossSF),
			nullFloat(p.AskingPrice), nullFloat(p.PricePerSF), nullFloat(p.CapRate),
			nullInt(p.YearBuilt), boolToInt(p.EligibleForTaxProgram),
			source, updatedAt,
		)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to upsert property %s: %w", p.ID, err)
		}
		written++
	}
	return written, skipped, nil
}

func (r *Repository) logWrite(msg, source string, written, skipped, removed int) {
	if skipped > 0 {
		r.log.Warn().Int("skipped", skipped).Msg("Skipped properties without an ID")
	}
	r.log.Debug().
		Str("source", source).
		Int("written", written).
		Int("removed", removed).
		Msg(msg)
}

// List returns properties matching filter, ordered by ID
func (r *Repository) List(ctx context.Context, filter domain.PropertyFilter) ([]domain.PropertyRecord, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter.Borough != "" {
		where = append(where, "borough = ?")
		args = append(args, string(filter.Borough))
	}
	if filter.Submarket != "" {
		where = append(where, "LOWER(submarket) = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(filter.Submarket)))
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.MinSF > 0 {
		where = append(where, "gross_sf >= ?")
		args = append(args, filter.MinSF)
	}
	if filter.MaxPrice > 0 {
		where = append(where, "asking_price <= ?")
		args = append(args, filter.MaxPrice)
	}

	query := "SELECT " + propertyColumns + " FROM properties"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, database.Rebind(r.driver, query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer rows.Close()

	var records []domain.PropertyRecord
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		records = append(records, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating properties: %w", err)
	}

	return records, nil
}

// Get returns a property by ID, or nil if not found
func (r *Repository) Get(ctx context.Context, id string) (*domain.PropertyRecord, error) {
	query := database.Rebind(r.driver, "SELECT "+propertyColumns+" FROM properties WHERE id = ?")

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query property: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	p, err := scanProperty(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan property: %w", err)
	}
	return &p, nil
}

// Count returns the number of stored properties
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM properties").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count properties: %w", err)
	}
	return n, nil
}

// DeleteAll removes every stored property
func (r *Repository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM properties"); err != nil {
		return fmt.Errorf("failed to delete properties: %w", err)
	}
	r.log.Info().Msg("Deleted all properties")
	return nil
}

func scanProperty(rows *sql.Rows) (domain.PropertyRecord, error) {
	var (
		p                                domain.PropertyRecord
		borough, category, status        string
		units, grossSF, yearBuilt        sql.NullInt64
		askingPrice, pricePerSF, capRate sql.NullFloat64
		eligible                         int
	)

	err := rows.Scan(
		&p.ID, &p.Address, &borough, &p.Submarket, &category,
		&p.BuildingClass, &p.ZoningCode, &status,
		&units, &grossSF, &askingPrice, &pricePerSF, &capRate, &yearBuilt, &eligible,
	)
	if err != nil {
		return p, err
	}

	p.Borough = domain.Borough(borough)
	p.Category = domain.PropertyCategory(category)
	p.Status = domain.PropertyStatus(status)
	p.Units = intFromNull(units)
	p.GrossSF = intFromNull(grossSF)
	p.YearBuilt = intFromNull(yearBuilt)
	p.AskingPrice = floatFromNull(askingPrice)
	p.PricePerSF = floatFromNull(pricePerSF)
	p.CapRate = floatFromNull(capRate)
	p.EligibleForTaxProgram = eligible != 0

	return p, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func intFromNull(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func floatFromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
