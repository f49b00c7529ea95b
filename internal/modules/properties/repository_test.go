package properties

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/cornerstone/internal/domain"
	testingutil "github.com/aristath/cornerstone/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, cleanup := testingutil.NewTestDB(t, "properties")
	t.Cleanup(cleanup)
	return NewRepository(db.Conn(), db.Driver(), zerolog.Nop())
}

func seed(t *testing.T, repo *Repository) []domain.PropertyRecord {
	t.Helper()
	records := testingutil.NewPropertyFixtures()
	n, err := repo.Upsert(context.Background(), records)
	require.NoError(t, err)
	require.Equal(t, len(records), n)
	return records
}

func TestRepository_UpsertAndGet(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seed(t, repo)

	got, err := repo.Get(ctx, "tribeca-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, testingutil.TribecaFixture(), *got)

	sparse, err := repo.Get(ctx, "sparse-1")
	require.NoError(t, err)
	require.NotNil(t, sparse)
	assert.Nil(t, sparse.YearBuilt)
	assert.Nil(t, sparse.GrossSF)
	assert.Nil(t, sparse.AskingPrice)

	fidi, err := repo.Get(ctx, "fidi-1")
	require.NoError(t, err)
	assert.True(t, fidi.EligibleForTaxProgram)
	assert.Equal(t, 180, *fidi.Units)

	missing, err := repo.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepository_UpsertReplaces(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seed(t, repo)

	updated := testingutil.TribecaFixture()
	updated.Status = domain.StatusUnderContract
	updated.AskingPrice = domain.Float64Ptr(21_000_000)

	n, err := repo.UpsertFrom(ctx, "nyc-open-data", []domain.PropertyRecord{updated, {Address: "no id"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := repo.Get(ctx, "tribeca-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderContract, got.Status)
	assert.Equal(t, 21_000_000.0, *got.AskingPrice)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestRepository_UpsertEmpty(t *testing.T) {
	repo := newTestRepository(t)
	n, err := repo.Upsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRepository_ListFilters(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seed(t, repo)

	tests := []struct {
		name     string
		filter   domain.PropertyFilter
		expected []string
	}{
		{"all", domain.PropertyFilter{}, []string{"fidi-1", "harlem-1", "midtown-1", "sparse-1", "tribeca-1"}},
		{"submarket ignores case", domain.PropertyFilter{Submarket: "tribeca"}, []string{"tribeca-1"}},
		{"category", domain.PropertyFilter{Category: domain.CategoryMultifamily}, []string{"harlem-1"}},
		{"status", domain.PropertyFilter{Status: domain.StatusUnderContract}, []string{"midtown-1"}},
		{"min sf", domain.PropertyFilter{MinSF: 90_000}, []string{"fidi-1", "midtown-1"}},
		{"max price", domain.PropertyFilter{MaxPrice: 25_000_000}, []string{"harlem-1", "tribeca-1"}},
		{"borough", domain.PropertyFilter{Borough: domain.BoroughBrooklyn}, nil},
		{"page", domain.PropertyFilter{Limit: 2, Offset: 1}, []string{"harlem-1", "midtown-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)

			var ids []string
			for _, r := range records {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestRepository_DeleteAll(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seed(t, repo)

	require.NoError(t, repo.DeleteAll(ctx))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRepository_ReplaceFromDropsSupersededRows(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	fixtures := testingutil.NewPropertyFixtures()

	_, err := repo.UpsertFrom(ctx, "nyc-open-data", fixtures[:3])
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, fixtures[3:])
	require.NoError(t, err)

	n, err := repo.ReplaceFrom(ctx, "nyc-open-data", fixtures[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	gone, err := repo.Get(ctx, "fidi-1")
	require.NoError(t, err)
	assert.Nil(t, gone, "rows missing from the new load are removed")

	kept, err := repo.Get(ctx, "tribeca-1")
	require.NoError(t, err)
	assert.NotNil(t, kept)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "manual rows are untouched")
}

func TestRepository_UpdatedAtUsesClock(t *testing.T) {
	repo := newTestRepository(t)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	_, err := repo.UpsertFrom(context.Background(), "fixture", []domain.PropertyRecord{testingutil.TribecaFixture()})
	require.NoError(t, err)

	var updatedAt int64
	var source string
	err = repo.db.QueryRow("SELECT updated_at, source FROM properties WHERE id = ?", "tribeca-1").Scan(&updatedAt, &source)
	require.NoError(t, err)
	assert.Equal(t, fixed.UnixMilli(), updatedAt)
	assert.Equal(t, "fixture", source)
}
