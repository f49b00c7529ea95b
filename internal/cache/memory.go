// Package cache provides TTL caches for external API responses.
//
// Memory is the in-process cache used by every client. Store is the byte-level
// interface shared by the memory, Redis and SQL-backed (clientdata) backends so
// that cached payloads can survive restarts or be shared between instances.
package cache

import (
	"sync"
	"time"
)

// Clock returns the current time.
type Clock func() time.Time

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Memory is a concurrency-safe in-process TTL cache.
// An entry is live while now < expiresAt; expired entries are dropped lazily on
// read or eagerly by Purge.
type Memory[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	now     Clock
}

// NewMemory creates an empty cache. A nil clock uses time.Now.
func NewMemory[V any](clock Clock) *Memory[V] {
	if clock == nil {
		clock = time.Now
	}
	return &Memory[V]{
		entries: make(map[string]entry[V]),
		now:     clock,
	}
}

// Get returns the live value for key.
func (m *Memory[V]) Get(key string) (V, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		// re-check: a concurrent Set may have refreshed the entry
		if cur, still := m.entries[key]; still && !m.now().Before(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores value under key until now+ttl, replacing any previous entry.
// A non-positive ttl stores nothing and evicts the key.
func (m *Memory[V]) Set(key string, value V, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ttl <= 0 {
		delete(m.entries, key)
		return
	}
	m.entries[key] = entry[V]{value: value, expiresAt: m.now().Add(ttl)}
}

// Delete removes key.
func (m *Memory[V]) Delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// Purge removes all expired entries and returns how many were removed.
func (m *Memory[V]) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

// Clear removes every entry.
func (m *Memory[V]) Clear() {
	m.mu.Lock()
	m.entries = make(map[string]entry[V])
	m.mu.Unlock()
}

// Len returns the number of stored entries, including expired ones not yet purged.
func (m *Memory[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
