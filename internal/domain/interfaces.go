package domain

import "context"

// PropertyFilter narrows a property listing. Zero values mean "no constraint".
type PropertyFilter struct {
	Borough   Borough
	Submarket string
	Category  PropertyCategory
	Status    PropertyStatus
	MinSF     int
	MaxPrice  float64
	Limit     int
	Offset    int
}

// PropertyRepository persists PropertyRecords.
// Implemented by the properties module; consumed by the dataset loader and
// the analysis service so neither depends on the storage driver.
type PropertyRepository interface {
	// Upsert inserts or replaces records by ID and returns how many were written
	Upsert(ctx context.Context, records []PropertyRecord) (int, error)

	List(ctx context.Context, filter PropertyFilter) ([]PropertyRecord, error)

	// Get returns nil, nil when the ID is unknown
	Get(ctx context.Context, id string) (*PropertyRecord, error)

	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
}
