package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// SnapshotJob creates a snapshot and rotates old uploads
type SnapshotJob struct {
	service       *SnapshotService
	retentionDays int
	timeout       time.Duration
	log           zerolog.Logger
}

// NewSnapshotJob creates a new snapshot job. retentionDays <= 0 disables rotation.
func NewSnapshotJob(service *SnapshotService, retentionDays int, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		service:       service,
		retentionDays: retentionDays,
		timeout:       10 * time.Minute,
		log:           log.With().Str("job", "dataset_snapshot").Logger(),
	}
}

// Run executes the snapshot job
func (j *SnapshotJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	info, err := j.service.Create(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Snapshot failed")
		return fmt.Errorf("snapshot failed: %w", err)
	}

	if info.Uploaded {
		// Rotation failures are logged, the snapshot itself succeeded
		if _, err := j.service.RotateOldSnapshots(ctx, j.retentionDays); err != nil {
			j.log.Warn().Err(err).Msg("Snapshot rotation failed")
		}
	}
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *SnapshotJob) Name() string {
	return "dataset_snapshot"
}
