/**
 * @description
 * This file implements the in-process fixed-window rate limiter that guards public
 * write endpoints when no Redis backend is configured. The bucket map is bounded
 * and periodically swept so an open endpoint cannot grow process memory without
 * limit.
 *
 * @notes
 * - On the first request in a window the count is set to 1 with an expiry of
 *   now+window; the window resets unconditionally on the first request after
 *   expiry. Denials report the whole seconds remaining until reset, minimum 1.
 * - When the map is at capacity and no expired bucket can be reclaimed, the client
 *   is counted against a shared overflow bucket. Unidentifiable clients sharing
 *   one bucket is the same conservative fallback the key-derivation layer uses.
 */

package app

import (
	"context"
	"math"
	"sync"
	"time"
)

// RateLimiter admits or denies one request for a client key within a fixed window.
// A denial carries the seconds the client should wait before retrying.
type RateLimiter interface {
	Admit(ctx context.Context, scope string, clientKey string, limit int, window time.Duration) (allowed bool, retryAfterSeconds int, err error)
}

const overflowBucketKey = "overflow"

type windowBucket struct {
	count   int
	resetAt time.Time
}

// MemoryRateLimiter is a bounded, swept, per-process fixed-window counter.
type MemoryRateLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*windowBucket
	maxEntries int
	now        func() time.Time
}

// NewMemoryRateLimiter creates a limiter holding at most maxEntries buckets.
func NewMemoryRateLimiter(maxEntries int) *MemoryRateLimiter {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &MemoryRateLimiter{
		buckets:    make(map[string]*windowBucket),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Admit applies the fixed-window algorithm for scope+clientKey.
func (l *MemoryRateLimiter) Admit(ctx context.Context, scope string, clientKey string, limit int, window time.Duration) (bool, int, error) {
	if limit <= 0 || window <= 0 {
		return true, 0, nil
	}

	key := scope + ":" + clientKey
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[key]
	if !ok || !now.Before(bucket.resetAt) {
		if !ok && len(l.buckets) >= l.maxEntries {
			l.sweepLocked(now)
		}
		if !ok && len(l.buckets) >= l.maxEntries {
			key = overflowBucketKey
			bucket, ok = l.buckets[key]
			if ok && now.Before(bucket.resetAt) {
				return l.admitLocked(bucket, limit, now)
			}
		}
		l.buckets[key] = &windowBucket{count: 1, resetAt: now.Add(window)}
		return true, 0, nil
	}

	return l.admitLocked(bucket, limit, now)
}

func (l *MemoryRateLimiter) admitLocked(bucket *windowBucket, limit int, now time.Time) (bool, int, error) {
	bucket.count++
	if bucket.count <= limit {
		return true, 0, nil
	}
	retryAfter := int(math.Ceil(bucket.resetAt.Sub(now).Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return false, retryAfter, nil
}

// sweepLocked drops every expired bucket. Caller holds the mutex.
func (l *MemoryRateLimiter) sweepLocked(now time.Time) {
	for key, bucket := range l.buckets {
		if !now.Before(bucket.resetAt) {
			delete(l.buckets, key)
		}
	}
}

// StartSweeper periodically reclaims expired buckets until ctx is cancelled.
func (l *MemoryRateLimiter) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.mu.Lock()
				l.sweepLocked(l.now())
				l.mu.Unlock()
			}
		}
	}()
}
