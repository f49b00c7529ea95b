package dataset

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aristath/cornerstone/internal/domain"
	"github.com/aristath/cornerstone/internal/events"
	"github.com/aristath/cornerstone/internal/metrics"
	"github.com/aristath/cornerstone/internal/modules/properties"
	testingutil "github.com/aristath/cornerstone/internal/testing"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu      sync.Mutex
	records []domain.PropertyRecord
	err     error
	calls   int
	block   chan struct{}
}

func (f *fakeSource) GetAllProperties(ctx context.Context, borough domain.Borough, pageSize, maxPages int) ([]domain.PropertyRecord, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	return f.records, f.err
}

type harness struct {
	ds      *Dataset
	src     *fakeSource
	repo    *properties.Repository
	metrics *metrics.Metrics
	events  []*events.Event
}

func newHarness(t *testing.T, src *fakeSource) *harness {
	t.Helper()

	db, cleanup := testingutil.NewTestDB(t, "properties")
	t.Cleanup(cleanup)

	h := &harness{
		src:     src,
		repo:    properties.NewRepository(db.Conn(), db.Driver(), zerolog.Nop()),
		metrics: metrics.New(),
	}

	bus := events.NewBus(zerolog.Nop())
	bus.SubscribeAll(func(e *events.Event) { h.events = append(h.events, e) })

	h.ds = New(Config{}, src, h.repo, events.NewManager(bus, zerolog.Nop()), h.metrics, zerolog.Nop())
	h.ds.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	return h
}

func TestReload_PersistsAndEmits(t *testing.T) {
	h := newHarness(t, &fakeSource{records: testingutil.NewPropertyFixtures()})
	ctx := context.Background()

	result, err := h.ds.Reload(ctx)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Records)
	assert.Equal(t, 5, result.Persisted)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, 5, h.ds.Size())
	assert.False(t, h.ds.LoadedAt().IsZero())

	count, err := h.repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	require.Len(t, h.events, 1)
	data, ok := h.events[0].GetTypedData().(*events.DatasetReloadedData)
	require.True(t, ok)
	assert.Equal(t, 5, data.Records)
	assert.Equal(t, "nyc-open-data", data.Source)

	assert.Equal(t, 5.0, testutil.ToFloat64(h.metrics.DatasetSize))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.DatasetReloads.WithLabelValues("success")))
}

func TestReload_PartialFailureKeepsRecords(t *testing.T) {
	h := newHarness(t, &fakeSource{
		records: testingutil.NewPropertyFixtures()[:2],
		err:     errors.New("failed to fetch page 1: source unavailable"),
	})

	result, err := h.ds.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Records)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "nyc-open-data", result.Warnings[0].Source)
	assert.Equal(t, 2, h.ds.Size())
}

func TestReload_TotalFailureKeepsPreviousRecords(t *testing.T) {
	src := &fakeSource{records: testingutil.NewPropertyFixtures()}
	h := newHarness(t, src)
	ctx := context.Background()

	_, err := h.ds.Reload(ctx)
	require.NoError(t, err)

	src.records = nil
	src.err = &domain.SourceUnavailableError{Source: "nyc-open-data", Err: errors.New("timeout")}

	_, err = h.ds.Reload(ctx)
	require.Error(t, err)

	var unavailable *domain.SourceUnavailableError
	assert.True(t, errors.As(err, &unavailable))
	assert.Equal(t, 5, h.ds.Size())
	assert.Equal(t, events.ErrorOccurred, h.events[len(h.events)-1].Type)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.DatasetReloads.WithLabelValues("error")))
}

func TestReload_RejectsConcurrentReload(t *testing.T) {
	src := &fakeSource{records: testingutil.NewPropertyFixtures(), block: make(chan struct{})}
	h := newHarness(t, src)

	done := make(chan error, 1)
	go func() {
		_, err := h.ds.Reload(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.calls == 1
	}, time.Second, 5*time.Millisecond)

	_, err := h.ds.Reload(context.Background())
	assert.ErrorIs(t, err, ErrReloadInProgress)

	close(src.block)
	require.NoError(t, <-done)
}

func TestReset(t *testing.T) {
	h := newHarness(t, &fakeSource{records: testingutil.NewPropertyFixtures()})
	ctx := context.Background()

	_, err := h.ds.Reload(ctx)
	require.NoError(t, err)

	cleared, err := h.ds.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, cleared)
	assert.Zero(t, h.ds.Size())
	assert.True(t, h.ds.LoadedAt().IsZero())

	count, err := h.repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.Equal(t, events.DatasetReset, h.events[len(h.events)-1].Type)
	assert.Zero(t, testutil.ToFloat64(h.metrics.DatasetSize))
}

func TestRestore(t *testing.T) {
	h := newHarness(t, &fakeSource{})
	ctx := context.Background()

	_, err := h.repo.Upsert(ctx, testingutil.NewPropertyFixtures())
	require.NoError(t, err)

	n, err := h.ds.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, h.ds.Size())
}

func TestReload_SmallerLoadSurvivesRestore(t *testing.T) {
	src := &fakeSource{records: testingutil.NewPropertyFixtures()[:3]}
	h := newHarness(t, src)
	ctx := context.Background()

	_, err := h.ds.Reload(ctx)
	require.NoError(t, err)

	src.records = testingutil.NewPropertyFixtures()[:1]
	result, err := h.ds.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Persisted)
	assert.Equal(t, 1, h.ds.Size())

	restarted := New(Config{}, src, h.repo, nil, nil, zerolog.Nop())
	n, err := restarted.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "tribeca-1", restarted.Records()[0].ID)
}

func TestImport(t *testing.T) {
	h := newHarness(t, &fakeSource{})
	ctx := context.Background()

	n, err := h.ds.Import(ctx, testingutil.NewPropertyFixtures()[:2])
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, h.ds.Size())
	assert.False(t, h.ds.LoadedAt().IsZero())

	count, err := h.repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.DatasetSize))
}

func TestRecordsReturnsCopy(t *testing.T) {
	h := newHarness(t, &fakeSource{records: testingutil.NewPropertyFixtures()})
	_, err := h.ds.Reload(context.Background())
	require.NoError(t, err)

	records := h.ds.Records()
	records[0].Address = "changed"
	assert.NotEqual(t, "changed", h.ds.Records()[0].Address)
}

func TestNew_NilCollaborators(t *testing.T) {
	db, cleanup := testingutil.NewTestDB(t, "properties")
	t.Cleanup(cleanup)
	repo := properties.NewRepository(db.Conn(), db.Driver(), zerolog.Nop())

	ds := New(Config{}, &fakeSource{records: testingutil.NewPropertyFixtures()}, repo, nil, nil, zerolog.Nop())
	_, err := ds.Reload(context.Background())
	require.NoError(t, err)
	_, err = ds.Reset(context.Background())
	require.NoError(t, err)
}
