package clientdata

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/cornerstone/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupJobName(t *testing.T) {
	repo, _ := setupRepo(t)
	job := NewCleanupJob(repo, zerolog.Nop())

	assert.Equal(t, "client_data_cleanup", job.Name())
}

func TestCleanupJobRun(t *testing.T) {
	repo, clock := setupRepo(t)
	ctx := context.Background()
	job := NewCleanupJob(repo, zerolog.Nop())

	for _, table := range AllTables {
		require.NoError(t, repo.Store(ctx, table, "expired", []byte("x"), time.Minute))
		require.NoError(t, repo.Store(ctx, table, "fresh", []byte("y"), 48*time.Hour))
	}

	clock.now = clock.now.Add(time.Hour)
	require.NoError(t, job.Run())

	for _, table := range AllTables {
		expired, err := repo.Get(ctx, table, "expired")
		require.NoError(t, err)
		assert.Nil(t, expired, table)

		fresh, err := repo.Get(ctx, table, "fresh")
		require.NoError(t, err)
		assert.NotNil(t, fresh, table)
	}
}

type countingPurger struct {
	removed int
	calls   int
}

func (p *countingPurger) Purge() int {
	p.calls++
	return p.removed
}

func TestCleanupJobRun_PurgersAndEvents(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	var removed []int64
	bus.Subscribe(events.CacheCleaned, func(e *events.Event) {
		data := e.GetTypedData().(*events.CacheCleanedData)
		removed = append(removed, data.Removed)
	})

	purger := &countingPurger{removed: 4}
	job := NewCleanupJob(nil, zerolog.Nop()).
		WithPurgers(purger).
		WithEvents(events.NewManager(bus, zerolog.Nop()))

	require.NoError(t, job.Run())
	assert.Equal(t, 1, purger.calls)
	assert.Equal(t, []int64{4}, removed)

	// nothing removed, nothing emitted
	purger.removed = 0
	require.NoError(t, job.Run())
	assert.Equal(t, []int64{4}, removed)
}
