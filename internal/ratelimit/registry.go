package ratelimit

import (
	"sort"
	"sync"
	"time"
)

// Registry holds one Bucket per external source.
type Registry struct {
	mu      sync.RWMutex
	buckets map[string]*Bucket
	clock   Clock
}

// NewRegistry creates an empty registry. A nil clock uses time.Now.
func NewRegistry(clock Clock) *Registry {
	return &Registry{
		buckets: make(map[string]*Bucket),
		clock:   clock,
	}
}

// Register creates (or replaces) the bucket for source.
func (r *Registry) Register(source string, capacity int, period time.Duration) *Bucket {
	b := NewBucket(capacity, period, r.clock)

	r.mu.Lock()
	r.buckets[source] = b
	r.mu.Unlock()

	return b
}

// Get returns the bucket for source, or nil if none was registered.
func (r *Registry) Get(source string) *Bucket {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.buckets[source]
}

// Status is a point-in-time view of one bucket.
type Status struct {
	Source     string `json:"source"`
	Capacity   int    `json:"capacity"`
	Remaining  int    `json:"remaining"`
	WaitTimeMs int64  `json:"waitTimeMs"`
}

// Snapshot returns the status of every bucket sorted by source name.
func (r *Registry) Snapshot() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Status, 0, len(r.buckets))
	for name, b := range r.buckets {
		out = append(out, Status{
			Source:     name,
			Capacity:   b.Capacity(),
			Remaining:  b.Remaining(),
			WaitTimeMs: b.WaitTime().Milliseconds(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}
