package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/cornerstone/internal/ratelimit"
	"github.com/aristath/cornerstone/internal/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDataset struct {
	size     int
	loadedAt time.Time
}

func (d *fakeDataset) Size() int           { return d.size }
func (d *fakeDataset) LoadedAt() time.Time { return d.loadedAt }

type fakeJob struct{ name string }

func (j *fakeJob) Run() error   { return nil }
func (j *fakeJob) Name() string { return j.name }

type fakeRunner struct {
	err   error
	calls []string
}

func (r *fakeRunner) RunNow(job scheduler.Job) error {
	r.calls = append(r.calls, job.Name())
	return r.err
}

var statusNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestSystemHandlers(ds DatasetInfo, limits *ratelimit.Registry, runner JobRunner) *SystemHandlers {
	h := NewSystemHandlers(ds, limits, runner, zerolog.Nop())
	h.now = func() time.Time { return statusNow }
	h.startedAt = statusNow.Add(-90 * time.Second)
	h.hostStats = func() HostStats { return HostStats{CPUPercent: 12.5, MemoryPercent: 40} }
	return h
}

func TestSystemStatus_Healthy(t *testing.T) {
	loaded := statusNow.Add(-time.Hour)
	limits := ratelimit.NewRegistry(func() time.Time { return statusNow })
	limits.Register("nyc-open-data", 60, time.Minute)
	limits.Register("fred", 120, time.Minute)

	h := newTestSystemHandlers(&fakeDataset{size: 5, loadedAt: loaded}, limits, nil)
	h.SetJobs(&fakeJob{"dataset_snapshot"}, &fakeJob{"dataset_reload"})

	w := httptest.NewRecorder()
	h.HandleSystemStatus(w, httptest.NewRequest(http.MethodGet, "/api/system/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp SystemStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, int64(90), resp.UptimeSeconds)
	assert.Equal(t, 5, resp.DatasetSize)
	require.NotNil(t, resp.DatasetLoadedAt)
	assert.True(t, loaded.Equal(*resp.DatasetLoadedAt))
	assert.Equal(t, 12.5, resp.Host.CPUPercent)
	assert.Equal(t, []string{"dataset_reload", "dataset_snapshot"}, resp.Jobs)
	require.Len(t, resp.RateLimits, 2)
	assert.Equal(t, "fred", resp.RateLimits[0].Source)
	assert.Equal(t, 60, resp.RateLimits[1].Capacity)
	assert.Positive(t, resp.Goroutines)
}

func TestSystemStatus_DegradedWithoutDataset(t *testing.T) {
	h := newTestSystemHandlers(&fakeDataset{}, nil, nil)

	resp := h.GetSystemStatusSnapshot()
	assert.Equal(t, "degraded", resp.Status)
	assert.Nil(t, resp.DatasetLoadedAt)
	assert.Empty(t, resp.RateLimits)
	assert.Empty(t, resp.Jobs)
}

func TestHealth_ReportsDatasetAndCache(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		backend string
		loaded  bool
		want    string
	}{
		{name: "loaded", size: 5, backend: "redis", loaded: true, want: "redis"},
		{name: "empty", size: 0, backend: "", loaded: false, want: "none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestSystemHandlers(&fakeDataset{size: tt.size}, nil, nil)
			h.SetCacheBackend(tt.backend)

			w := httptest.NewRecorder()
			h.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, http.StatusOK, w.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "healthy", resp.Status)
			assert.Equal(t, tt.loaded, resp.DatasetLoaded)
			assert.Equal(t, tt.size, resp.DatasetSize)
			assert.Equal(t, tt.want, resp.CacheBackend)
		})
	}
}

func TestTriggerJob(t *testing.T) {
	tests := []struct {
		name     string
		job      string
		runner   *fakeRunner
		noRunner bool
		status   int
	}{
		{name: "runs job", job: "dataset_reload", runner: &fakeRunner{}, status: http.StatusOK},
		{name: "unknown job", job: "rebalance", runner: &fakeRunner{}, status: http.StatusNotFound},
		{name: "already running", job: "dataset_reload", runner: &fakeRunner{err: scheduler.ErrJobRunning}, status: http.StatusConflict},
		{name: "job fails", job: "dataset_reload", runner: &fakeRunner{err: errors.New("boom")}, status: http.StatusInternalServerError},
		{name: "no runner", job: "dataset_reload", noRunner: true, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var runner JobRunner
			if !tt.noRunner {
				runner = tt.runner
			}
			h := newTestSystemHandlers(&fakeDataset{size: 1}, nil, runner)
			h.SetJobs(&fakeJob{"dataset_reload"})

			r := chi.NewRouter()
			r.Post("/api/system/jobs/{name}", h.HandleTriggerJob)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/system/jobs/"+tt.job, nil))
			assert.Equal(t, tt.status, w.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.status == http.StatusOK, body["success"])
			if tt.status == http.StatusOK {
				assert.Equal(t, "dataset_reload", body["job"])
				assert.Equal(t, []string{"dataset_reload"}, tt.runner.calls)
			}
		})
	}
}
