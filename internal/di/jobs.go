// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"

	"github.com/aristath/cornerstone/internal/clientdata"
	"github.com/aristath/cornerstone/internal/config"
	"github.com/aristath/cornerstone/internal/reliability"
	"github.com/aristath/cornerstone/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the background jobs and registers them with the scheduler.
// Returns JobInstances for manual triggering via API.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.Scheduler == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	// Job 1: periodic dataset refresh from NYC Open Data
	reload := scheduler.NewReloadJob(container.Dataset, log)

	// Job 2: cache expiry, whichever backend holds expiring entries
	cleanup := clientdata.NewCleanupJob(container.ClientDataRepo, log).WithEvents(container.EventManager)
	if container.MemoryCache != nil {
		cleanup = cleanup.WithPurgers(container.MemoryCache)
	}

	// Job 3: dataset snapshot, uploaded and rotated when a bucket is configured
	snapshot := reliability.NewSnapshotJob(container.SnapshotService, cfg.Snapshot.RetentionDays, log)

	instances := &JobInstances{
		Reload:   reload,
		Cleanup:  cleanup,
		Snapshot: snapshot,
	}

	schedules := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.Schedules.Reload, reload},
		{cfg.Schedules.Cleanup, cleanup},
		{cfg.Schedules.Snapshot, snapshot},
	}
	for _, s := range schedules {
		if err := container.Scheduler.AddJob(s.schedule, s.job); err != nil {
			return nil, err
		}
	}

	log.Info().Int("jobs", len(schedules)).Msg("Jobs registered")

	return instances, nil
}
