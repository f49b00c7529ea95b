package clientdata

import (
	"context"
	"testing"
	"time"

	testingutil "github.com/aristath/cornerstone/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time { return c.now }

func setupRepo(t *testing.T) (*Repository, *stepClock) {
	t.Helper()

	db, cleanup := testingutil.NewTestDB(t, "cache")
	t.Cleanup(cleanup)

	clock := &stepClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	return NewRepository(db).WithClock(clock.Now), clock
}

func TestStoreAndGetIfFresh(t *testing.T) {
	repo, clock := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, TableFRED, "MORTGAGE30US", []byte("payload"), time.Hour))

	data, err := repo.GetIfFresh(ctx, TableFRED, "MORTGAGE30US")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	clock.now = clock.now.Add(time.Hour)
	data, err = repo.GetIfFresh(ctx, TableFRED, "MORTGAGE30US")
	require.NoError(t, err)
	assert.Nil(t, data, "entry is stale once expires_at is reached")

	stale, err := repo.Get(ctx, TableFRED, "MORTGAGE30US")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), stale, "Get ignores expiry")
}

func TestStoreReplacesExisting(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, TableMarketIndex, "VNQ", []byte("old"), time.Hour))
	require.NoError(t, repo.Store(ctx, TableMarketIndex, "VNQ", []byte("new"), time.Hour))

	data, err := repo.GetIfFresh(ctx, TableMarketIndex, "VNQ")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), data)
}

func TestInvalidTable(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	assert.Error(t, repo.Store(ctx, "users; DROP TABLE fred", "k", []byte("v"), time.Hour))
	_, err := repo.GetIfFresh(ctx, "nope", "k")
	assert.Error(t, err)
	_, err = repo.ForTable("nope")
	assert.Error(t, err)
}

func TestMissingKey(t *testing.T) {
	repo, _ := setupRepo(t)

	data, err := repo.Get(context.Background(), TableListings, "missing")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestDeleteAndDeleteAllExpired(t *testing.T) {
	repo, clock := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, TableNYCOpenData, "short", []byte("a"), time.Minute))
	require.NoError(t, repo.Store(ctx, TableNYCOpenData, "long", []byte("b"), 24*time.Hour))
	require.NoError(t, repo.Store(ctx, TableFRED, "short", []byte("c"), time.Minute))
	require.NoError(t, repo.Store(ctx, TableListings, "gone", []byte("d"), time.Hour))

	require.NoError(t, repo.Delete(ctx, TableListings, "gone"))

	clock.now = clock.now.Add(time.Hour)
	results, err := repo.DeleteAllExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), results[TableNYCOpenData])
	assert.Equal(t, int64(1), results[TableFRED])
	assert.Equal(t, int64(0), results[TableListings])

	data, err := repo.Get(ctx, TableNYCOpenData, "long")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), data)
}

func TestTableStore(t *testing.T) {
	repo, clock := setupRepo(t)
	ctx := context.Background()

	store, err := repo.ForTable(TableFRED)
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, "DGS10", []byte{1, 2, 3}, time.Minute))
	v, ok, err := store.Get(ctx, "DGS10")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, v)

	clock.now = clock.now.Add(2 * time.Minute)
	_, ok, err = store.Get(ctx, "DGS10")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "x", []byte{1}, time.Minute))
	require.NoError(t, store.Delete(ctx, "x"))
	_, ok, _ = store.Get(ctx, "x")
	assert.False(t, ok)
}
