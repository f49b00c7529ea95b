// Package dataset owns the active set of PropertyRecords: loading them from
// NYC Open Data, persisting them and resetting them.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/cornerstone/internal/domain"
	"github.com/aristath/cornerstone/internal/events"
	"github.com/aristath/cornerstone/internal/metrics"
	"github.com/rs/zerolog"
)

// ErrReloadInProgress is returned when Reload is called while another reload runs
var ErrReloadInProgress = errors.New("dataset reload already in progress")

// PropertySource fetches every property record for a borough
type PropertySource interface {
	GetAllProperties(ctx context.Context, borough domain.Borough, pageSize, maxPages int) ([]domain.PropertyRecord, error)
}

// Store persists the dataset. ReplaceFrom makes records the complete set
// stored for source.
type Store interface {
	domain.PropertyRepository
	ReplaceFrom(ctx context.Context, source string, records []domain.PropertyRecord) (int, error)
}

// Config controls what a reload fetches
type Config struct {
	Borough    domain.Borough
	PageSize   int
	MaxPages   int
	SourceName string
}

// ReloadResult summarizes one reload
type ReloadResult struct {
	Records   int                         `json:"records"`
	Persisted int                         `json:"persisted"`
	Duration  time.Duration               `json:"-"`
	LoadedAt  time.Time                   `json:"loadedAt"`
	Warnings  []domain.PartialDataWarning `json:"warnings,omitempty"`
}

// Dataset holds the records the scoring and analysis endpoints work on.
// Safe for concurrent use.
type Dataset struct {
	cfg     Config
	source  PropertySource
	store   Store
	events  *events.Manager
	metrics *metrics.Metrics
	now     func() time.Time
	log     zerolog.Logger

	reloadMu sync.Mutex

	mu       sync.RWMutex
	records  []domain.PropertyRecord
	loadedAt time.Time
}

// New creates an empty Dataset. events and metrics may be nil.
func New(cfg Config, source PropertySource, store Store, em *events.Manager, m *metrics.Metrics, log zerolog.Logger) *Dataset {
	if cfg.Borough == "" {
		cfg.Borough = domain.BoroughManhattan
	}
	if cfg.SourceName == "" {
		cfg.SourceName = "nyc-open-data"
	}
	return &Dataset{
		cfg:     cfg,
		source:  source,
		store:   store,
		events:  em,
		metrics: m,
		now:     time.Now,
		log:     log.With().Str("component", "dataset").Logger(),
	}
}

// Records returns a copy of the loaded records
func (d *Dataset) Records() []domain.PropertyRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.PropertyRecord, len(d.records))
	copy(out, d.records)
	return out
}

// Size returns the number of loaded records
func (d *Dataset) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records)
}

// LoadedAt returns when the records were last replaced. Zero if never loaded.
func (d *Dataset) LoadedAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loadedAt
}

// Restore loads previously persisted records into memory
func (d *Dataset) Restore(ctx context.Context) (int, error) {
	records, err := d.store.List(ctx, domain.PropertyFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to restore dataset: %w", err)
	}

	d.replace(records)
	d.metrics.SetDatasetSize(len(records))

	d.log.Info().Int("records", len(records)).Msg("Restored dataset from store")
	return len(records), nil
}

// Reload fetches all records from the property source, replaces the stored
// set for the source with them and replaces the in-memory set. A source failure after some pages succeeded
// keeps the pages already fetched and reports a warning.
func (d *Dataset) Reload(ctx context.Context) (*ReloadResult, error) {
	if !d.reloadMu.TryLock() {
		return nil, ErrReloadInProgress
	}
	defer d.reloadMu.Unlock()

	start := d.now()

	records, fetchErr := d.source.GetAllProperties(ctx, d.cfg.Borough, d.cfg.PageSize, d.cfg.MaxPages)
	if fetchErr != nil && len(records) == 0 {
		d.fail(fetchErr)
		return nil, fmt.Errorf("failed to fetch properties: %w", fetchErr)
	}

	var warnings []domain.PartialDataWarning
	if fetchErr != nil {
		warnings = append(warnings, domain.PartialDataWarning{
			Source:  d.cfg.SourceName,
			Message: fetchErr.Error(),
		})
		d.log.Warn().
			Err(fetchErr).
			Int("records", len(records)).
			Msg("Property source failed mid-load, keeping partial results")
	}

	persisted, err := d.store.ReplaceFrom(ctx, d.cfg.SourceName, records)
	if err != nil {
		d.fail(err)
		return nil, fmt.Errorf("failed to persist properties: %w", err)
	}

	d.replace(records)

	result := &ReloadResult{
		Records:   len(records),
		Persisted: persisted,
		Duration:  d.now().Sub(start),
		LoadedAt:  d.LoadedAt(),
		Warnings:  warnings,
	}

	d.metrics.ObserveReload(result.Records, nil)

	messages := make([]string, 0, len(warnings))
	for _, w := range warnings {
		messages = append(messages, w.Message)
	}
	d.events.EmitTyped("dataset", &events.DatasetReloadedData{
		Records:    result.Records,
		Persisted:  result.Persisted,
		Source:     d.cfg.SourceName,
		DurationMs: result.Duration.Milliseconds(),
		Warnings:   messages,
	})

	d.log.Info().
		Int("records", result.Records).
		Int("persisted", result.Persisted).
		Dur("duration", result.Duration).
		Msg("Dataset reloaded")

	return result, nil
}

// Import persists records as the source's complete set and makes them the
// in-memory set. Used to seed an empty store from a snapshot.
func (d *Dataset) Import(ctx context.Context, records []domain.PropertyRecord) (int, error) {
	d.reloadMu.Lock()
	defer d.reloadMu.Unlock()

	persisted, err := d.store.ReplaceFrom(ctx, d.cfg.SourceName, records)
	if err != nil {
		return 0, fmt.Errorf("failed to import properties: %w", err)
	}

	d.replace(records)
	d.metrics.SetDatasetSize(len(records))

	d.log.Info().Int("records", len(records)).Int("persisted", persisted).Msg("Imported dataset")
	return persisted, nil
}

// Reset clears the in-memory records and the store
func (d *Dataset) Reset(ctx context.Context) (int, error) {
	d.reloadMu.Lock()
	defer d.reloadMu.Unlock()

	if err := d.store.DeleteAll(ctx); err != nil {
		return 0, fmt.Errorf("failed to reset dataset: %w", err)
	}

	d.mu.Lock()
	cleared := len(d.records)
	d.records = nil
	d.loadedAt = time.Time{}
	d.mu.Unlock()

	d.metrics.SetDatasetSize(0)
	d.events.EmitTyped("dataset", &events.DatasetResetData{Cleared: cleared})

	d.log.Info().Int("cleared", cleared).Msg("Dataset reset")
	return cleared, nil
}

func (d *Dataset) replace(records []domain.PropertyRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = records
	d.loadedAt = d.now()
}

func (d *Dataset) fail(err error) {
	d.metrics.ObserveReload(0, err)
	d.events.EmitError("dataset", err, map[string]interface{}{
		"operation": "reload",
		"source":    d.cfg.SourceName,
	})
	d.log.Error().Err(err).Msg("Dataset reload failed")
}
