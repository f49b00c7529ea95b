package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/aristath/cornerstone/internal/dataset"
	"github.com/rs/zerolog"
)

// Reloader refreshes the property dataset
type Reloader interface {
	Reload(ctx context.Context) (*dataset.ReloadResult, error)
}

// ReloadJob pulls a fresh dataset from NYC Open Data
type ReloadJob struct {
	dataset Reloader
	timeout time.Duration
	log     zerolog.Logger
}

// NewReloadJob creates a new dataset reload job
func NewReloadJob(ds Reloader, log zerolog.Logger) *ReloadJob {
	return &ReloadJob{
		dataset: ds,
		timeout: 10 * time.Minute,
		log:     log.With().Str("job", "dataset_reload").Logger(),
	}
}

// Run executes the reload. A reload already started through the API is not
// an error.
func (j *ReloadJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	result, err := j.dataset.Reload(ctx)
	if errors.Is(err, dataset.ErrReloadInProgress) {
		j.log.Info().Msg("Reload already in progress, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	j.log.Info().
		Int("records", result.Records).
		Int("warnings", len(result.Warnings)).
		Msg("Scheduled reload complete")
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *ReloadJob) Name() string {
	return "dataset_reload"
}
