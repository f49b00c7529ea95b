package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestBucket_ExhaustAndRefill(t *testing.T) {
	clock := newFakeClock()
	b := NewBucket(5, time.Second, clock.Now)

	for i := 0; i < 5; i++ {
		require.True(t, b.CanProceed(), "call %d", i)
		b.RecordCall()
	}

	assert.False(t, b.CanProceed())
	assert.Equal(t, 200*time.Millisecond, b.WaitTime())

	clock.Advance(200 * time.Millisecond)
	assert.True(t, b.CanProceed())
	assert.Equal(t, time.Duration(0), b.WaitTime())
}

func TestBucket_FullPeriodRestoresCapacity(t *testing.T) {
	clock := newFakeClock()
	b := NewBucket(30, time.Minute, clock.Now)

	for i := 0; i < 30; i++ {
		b.RecordCall()
	}
	assert.Equal(t, 0, b.Remaining())

	clock.Advance(time.Minute)
	assert.Equal(t, 30, b.Remaining())

	// never exceeds capacity
	clock.Advance(10 * time.Minute)
	assert.Equal(t, 30, b.Remaining())
}

func TestBucket_RecordCallOnEmptyIsNoop(t *testing.T) {
	clock := newFakeClock()
	b := NewBucket(1, time.Second, clock.Now)

	b.RecordCall()
	b.RecordCall()
	b.RecordCall()

	assert.Equal(t, 0, b.Remaining())
	assert.Equal(t, time.Second, b.WaitTime())
}

func TestBucket_Allow(t *testing.T) {
	clock := newFakeClock()
	b := NewBucket(2, time.Second, clock.Now)

	assert.True(t, b.Allow())
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())

	clock.Advance(500 * time.Millisecond)
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())
}

func TestBucket_ZeroCapacity(t *testing.T) {
	b := NewBucket(0, time.Second, newFakeClock().Now)
	assert.False(t, b.CanProceed())
	assert.Equal(t, time.Second, b.WaitTime())
}

func TestBucket_ConcurrentAllowNeverOverspends(t *testing.T) {
	b := NewBucket(50, time.Hour, newFakeClock().Now)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Allow() {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, granted)
}

func TestRegistry_Snapshot(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(clock.Now)

	r.Register("nyc-open-data", 10, time.Minute)
	fred := r.Register("fred", 2, time.Minute)
	fred.RecordCall()
	fred.RecordCall()

	assert.Nil(t, r.Get("unknown"))
	assert.Same(t, fred, r.Get("fred"))

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "fred", snap[0].Source)
	assert.Equal(t, 0, snap[0].Remaining)
	assert.Equal(t, int64(30000), snap[0].WaitTimeMs)
	assert.Equal(t, "nyc-open-data", snap[1].Source)
	assert.Equal(t, 10, snap[1].Remaining)
}
