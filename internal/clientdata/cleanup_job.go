package clientdata

import (
	"context"
	"time"

	"github.com/aristath/cornerstone/internal/events"
	"github.com/rs/zerolog"
)

// Purger drops expired entries from an in-process cache.
type Purger interface {
	Purge() int
}

// CleanupJob removes expired entries from all client data tables and any
// registered in-process caches.
type CleanupJob struct {
	repo    *Repository // nil when responses are not cached in SQLite
	purgers []Purger
	events  *events.Manager
	log     zerolog.Logger
}

// NewCleanupJob creates a new client data cleanup job. repo may be nil.
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo: repo,
		log:  log.With().Str("job", "client_data_cleanup").Logger(),
	}
}

// WithPurgers registers in-process caches to purge on every run.
func (j *CleanupJob) WithPurgers(purgers ...Purger) *CleanupJob {
	j.purgers = append(j.purgers, purgers...)
	return j
}

// WithEvents emits CacheCleaned after runs that removed entries.
func (j *CleanupJob) WithEvents(em *events.Manager) *CleanupJob {
	j.events = em
	return j
}

// Run executes the cleanup job, removing all expired entries from all tables.
func (j *CleanupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var totalDeleted int64

	if j.repo != nil {
		results, err := j.repo.DeleteAllExpired(ctx)
		if err != nil {
			j.log.Error().Err(err).Msg("Failed to delete expired client data")
			return err
		}

		for table, count := range results {
			if count > 0 {
				j.log.Info().
					Str("table", table).
					Int64("deleted", count).
					Msg("Cleaned up expired cache entries")
				totalDeleted += count
			}
		}
	}

	for _, p := range j.purgers {
		totalDeleted += int64(p.Purge())
	}

	if totalDeleted > 0 {
		j.log.Info().
			Int64("total_deleted", totalDeleted).
			Msg("Client data cleanup completed")
		j.events.EmitTyped("clientdata", &events.CacheCleanedData{Removed: totalDeleted})
	}

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "client_data_cleanup"
}
