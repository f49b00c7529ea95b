package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/aristath/cornerstone/internal/ratelimit"
	"github.com/aristath/cornerstone/internal/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// DatasetInfo reports on the loaded dataset
type DatasetInfo interface {
	Size() int
	LoadedAt() time.Time
}

// JobRunner runs a job outside its schedule
type JobRunner interface {
	RunNow(job scheduler.Job) error
}

// HostStats are resource usage readings
type HostStats struct {
	CPUPercent        float64 `json:"cpuPercent"`
	MemoryPercent     float64 `json:"memoryPercent"`
	MemoryUsedMB      float64 `json:"memoryUsedMB"`
	HostUptimeSeconds uint64  `json:"hostUptimeSeconds"`
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status          string             `json:"status"`
	UptimeSeconds   int64              `json:"uptimeSeconds"`
	Host            HostStats          `json:"host"`
	Goroutines      int                `json:"goroutines"`
	DatasetSize     int                `json:"datasetSize"`
	DatasetLoadedAt *time.Time         `json:"datasetLoadedAt,omitempty"`
	RateLimits      []ratelimit.Status `json:"rateLimits"`
	Jobs            []string           `json:"jobs"`
	Timestamp       time.Time          `json:"timestamp"`
}

// HealthResponse is the body of GET /health. The process is live whenever it
// answers; DatasetLoaded tells readiness apart.
type HealthResponse struct {
	Status        string `json:"status"`
	Service       string `json:"service"`
	DatasetLoaded bool   `json:"datasetLoaded"`
	DatasetSize   int    `json:"datasetSize"`
	CacheBackend  string `json:"cacheBackend"`
}

// SystemHandlers handles health, system status and job trigger requests
type SystemHandlers struct {
	dataset      DatasetInfo
	limits       *ratelimit.Registry
	runner       JobRunner
	cacheBackend string
	startedAt    time.Time
	now       func() time.Time
	hostStats func() HostStats
	log       zerolog.Logger

	mu   sync.RWMutex
	jobs map[string]scheduler.Job
}

// NewSystemHandlers creates a new system handlers instance. limits and
// runner may be nil.
func NewSystemHandlers(ds DatasetInfo, limits *ratelimit.Registry, runner JobRunner, log zerolog.Logger) *SystemHandlers {
	h := &SystemHandlers{
		dataset:   ds,
		limits:    limits,
		runner:    runner,
		startedAt: time.Now(),
		now:       time.Now,
		jobs:      make(map[string]scheduler.Job),
		log:       log.With().Str("component", "system_handlers").Logger(),
	}
	h.hostStats = h.readHostStats
	return h
}

// SetJobs registers job instances for manual triggering via API
func (h *SystemHandlers) SetJobs(jobs ...scheduler.Job) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, j := range jobs {
		h.jobs[j.Name()] = j
	}
}

// SetCacheBackend records which cache backs the source clients
func (h *SystemHandlers) SetCacheBackend(name string) {
	h.cacheBackend = name
}

// HandleHealth handles GET /health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:       "healthy",
		Service:      "cornerstone",
		CacheBackend: h.cacheBackend,
	}
	if response.CacheBackend == "" {
		response.CacheBackend = "none"
	}
	if h.dataset != nil {
		response.DatasetSize = h.dataset.Size()
		response.DatasetLoaded = response.DatasetSize > 0
	}
	h.writeJSON(w, http.StatusOK, response)
}

// GetSystemStatusSnapshot collects the current system status
func (h *SystemHandlers) GetSystemStatusSnapshot() SystemStatusResponse {
	now := h.now()
	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(now.Sub(h.startedAt).Seconds()),
		Host:          h.hostStats(),
		Goroutines:    runtime.NumGoroutine(),
		RateLimits:    []ratelimit.Status{},
		Jobs:          h.jobNames(),
		Timestamp:     now.UTC(),
	}

	if h.dataset != nil {
		response.DatasetSize = h.dataset.Size()
		if loadedAt := h.dataset.LoadedAt(); !loadedAt.IsZero() {
			response.DatasetLoadedAt = &loadedAt
		}
	}
	if response.DatasetSize == 0 {
		response.Status = "degraded"
	}

	if h.limits != nil {
		response.RateLimits = h.limits.Snapshot()
	}

	return response
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")
	h.writeJSON(w, http.StatusOK, h.GetSystemStatusSnapshot())
}

// HandleTriggerJob handles POST /api/system/jobs/{name}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	h.mu.RLock()
	job, ok := h.jobs[name]
	h.mu.RUnlock()
	if !ok || h.runner == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"success": false,
			"error":   "Unknown job: " + name,
		})
		return
	}

	start := h.now()
	if err := h.runner.RunNow(job); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scheduler.ErrJobRunning) {
			status = http.StatusConflict
		}
		h.log.Error().Err(err).Str("job", name).Msg("Triggered job failed")
		h.writeJSON(w, status, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"job":        name,
		"durationMs": h.now().Sub(start).Milliseconds(),
	})
}

func (h *SystemHandlers) jobNames() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// readHostStats samples CPU over 100ms; memory and uptime are instant
func (h *SystemHandlers) readHostStats() HostStats {
	var stats HostStats

	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(cpuPercent) > 0 {
		stats.CPUPercent = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		stats.MemoryPercent = memStat.UsedPercent
		stats.MemoryUsedMB = float64(memStat.Used) / 1024 / 1024
	}

	if uptime, err := host.Uptime(); err == nil {
		stats.HostUptimeSeconds = uptime
	}

	return stats
}

// writeJSON writes a JSON response with status code
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
