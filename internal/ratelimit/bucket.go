// Package ratelimit provides token-bucket rate limiting for outbound API calls.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Clock returns the current time. Tests inject a fake clock.
type Clock func() time.Time

// Bucket is a token bucket with a fixed capacity refilled continuously over a period.
// Tokens never exceed capacity and never go below zero. Safe for concurrent use.
type Bucket struct {
	mu         sync.Mutex
	capacity   int
	period     time.Duration
	tokens     float64
	lastRefill time.Time
	now        Clock
}

// NewBucket creates a full bucket allowing capacity calls per period.
// A nil clock uses time.Now.
func NewBucket(capacity int, period time.Duration, clock Clock) *Bucket {
	if clock == nil {
		clock = time.Now
	}
	if capacity < 0 {
		capacity = 0
	}
	if period <= 0 {
		period = time.Minute
	}
	return &Bucket{
		capacity:   capacity,
		period:     period,
		tokens:     float64(capacity),
		lastRefill: clock(),
		now:        clock,
	}
}

// refill must be called with mu held
func (b *Bucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	// multiply before dividing so that a full period restores exactly capacity tokens
	added := float64(elapsed) * float64(b.capacity) / float64(b.period)
	b.tokens = math.Min(float64(b.capacity), b.tokens+added)
	b.lastRefill = now
}

// CanProceed reports whether at least one whole token is available.
func (b *Bucket) CanProceed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	return b.tokens >= 1
}

// RecordCall consumes one token. It is a no-op when fewer than one token remains.
func (b *Bucket) RecordCall() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= 1 {
		b.tokens--
	}
}

// Allow checks and consumes a token atomically.
func (b *Bucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// WaitTime returns how long until one token is available, or 0 if one is available now.
func (b *Bucket) WaitTime() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= 1 {
		return 0
	}
	if b.capacity == 0 {
		return b.period
	}
	deficit := 1 - b.tokens
	return time.Duration(math.Ceil(deficit * float64(b.period) / float64(b.capacity)))
}

// Remaining returns the number of whole tokens available.
func (b *Bucket) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	return int(math.Floor(b.tokens))
}

// Capacity returns the configured capacity.
func (b *Bucket) Capacity() int {
	return b.capacity
}
