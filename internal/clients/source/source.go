// Package source wraps external API calls with caching, rate limiting and retries.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/aristath/cornerstone/internal/cache"
	"github.com/aristath/cornerstone/internal/domain"
	"github.com/aristath/cornerstone/internal/metrics"
	"github.com/aristath/cornerstone/internal/ratelimit"
	"github.com/aristath/cornerstone/internal/retry"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a single network attempt.
const DefaultTimeout = 10 * time.Second

// Source is the shared call policy for one external data source.
type Source struct {
	name    string
	bucket  *ratelimit.Bucket
	store   cache.Store
	policy  retry.Policy
	timeout time.Duration
	metrics *metrics.Metrics
	now     func() time.Time
	log     zerolog.Logger
}

// Config configures a Source. Bucket and Store are optional: without a bucket
// calls are never rate limited, without a store nothing is cached.
type Config struct {
	Name    string
	Bucket  *ratelimit.Bucket
	Store   cache.Store
	Policy  retry.Policy
	Timeout time.Duration
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// New creates a Source.
func New(cfg Config, log zerolog.Logger) *Source {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Source{
		name:    cfg.Name,
		bucket:  cfg.Bucket,
		store:   cfg.Store,
		policy:  cfg.Policy,
		timeout: cfg.Timeout,
		metrics: cfg.Metrics,
		now:     cfg.Now,
		log:     log.With().Str("source", cfg.Name).Logger(),
	}
}

// Name returns the source name.
func (s *Source) Name() string {
	return s.name
}

// Bucket returns the source's rate limiter, or nil.
func (s *Source) Bucket() *ratelimit.Bucket {
	return s.bucket
}

// Fetch returns the cached payload for key if live; otherwise it takes one
// rate-limit token and runs op with retries, caching a successful result for ttl.
//
// On failure Fetch returns both a failed CachedResponse and an error:
// *domain.RateLimitExceededError when no token was available (op is not called),
// *domain.SourceUnavailableError when all attempts failed.
func Fetch[T any](ctx context.Context, s *Source, key string, ttl time.Duration, op func(ctx context.Context) (T, error)) (*domain.CachedResponse[T], error) {
	if resp, ok := lookup[T](ctx, s, key); ok {
		return resp, nil
	}

	if s.bucket != nil && !s.bucket.Allow() {
		err := &domain.RateLimitExceededError{Source: s.name, WaitTime: s.bucket.WaitTime()}
		s.metrics.ObserveSource(s.name, metrics.OutcomeRateLimited, 0)
		s.log.Warn().
			Str("key", key).
			Int64("wait_ms", err.WaitTimeMs()).
			Msg("Rate limit exceeded")
		return domain.NewFailedResponse[T](s.name, err, s.now()), err
	}

	policy := s.policy
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		s.metrics.ObserveRetry(s.name)
		s.log.Debug().
			Err(err).
			Str("key", key).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Retrying source call")
	}

	start := s.now()
	payload, err := retry.Do(ctx, policy, func(ctx context.Context) (T, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return op(attemptCtx)
	})
	elapsed := s.now().Sub(start)

	if err != nil {
		unavailable := &domain.SourceUnavailableError{Source: s.name, Err: err}
		s.metrics.ObserveSource(s.name, metrics.OutcomeUnavailable, elapsed)
		s.log.Error().
			Err(err).
			Str("key", key).
			Msg("Source unavailable")
		return domain.NewFailedResponse[T](s.name, unavailable, s.now()), unavailable
	}

	fetchedAt := s.now()
	s.metrics.ObserveSource(s.name, metrics.OutcomeSuccess, elapsed)
	save(ctx, s, key, payload, fetchedAt, ttl)

	return domain.NewCachedResponse(s.name, payload, fetchedAt, false), nil
}

func lookup[T any](ctx context.Context, s *Source, key string) (*domain.CachedResponse[T], bool) {
	if s.store == nil {
		return nil, false
	}

	data, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Cache read failed, fetching from source")
		s.metrics.ObserveCache(s.name, false)
		return nil, false
	}
	if !ok {
		s.metrics.ObserveCache(s.name, false)
		return nil, false
	}

	var payload T
	fetchedAt, err := cache.Decode(data, &payload)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		_ = s.store.Delete(ctx, key)
		s.metrics.ObserveCache(s.name, false)
		return nil, false
	}

	s.metrics.ObserveCache(s.name, true)
	s.metrics.ObserveSource(s.name, metrics.OutcomeCacheHit, 0)
	return domain.NewCachedResponse(s.name, payload, fetchedAt, true), true
}

func save[T any](ctx context.Context, s *Source, key string, payload T, fetchedAt time.Time, ttl time.Duration) {
	if s.store == nil || ttl <= 0 {
		return
	}

	data, err := cache.Encode(payload, fetchedAt)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to encode response for cache")
		return
	}
	if err := s.store.Set(ctx, key, data, ttl); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to write response to cache")
	}
}

// IsRateLimited reports whether err carries a RateLimitExceededError.
func IsRateLimited(err error) bool {
	var rl *domain.RateLimitExceededError
	return errors.As(err, &rl)
}
