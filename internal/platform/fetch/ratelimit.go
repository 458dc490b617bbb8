package fetch

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces at most maxRequests per rolling window using a sliding
// log of request timestamps, plus a minimum inter-request spacing of
// window/maxRequests for smooth distribution.
//
// One instance is shared by every external fetch call site in the process.
// It is constructed at the composition root and passed down explicitly; there
// is no package-level singleton.
type RateLimiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	minInterval time.Duration
	clock       Clock
	stamps      []time.Time
}

// NewRateLimiter constructs a limiter with the system clock.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return NewRateLimiterWithClock(maxRequests, window, SystemClock())
}

// NewRateLimiterWithClock constructs a limiter with an injected clock.
func NewRateLimiterWithClock(maxRequests int, window time.Duration, clock Clock) *RateLimiter {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		minInterval: window / time.Duration(maxRequests),
		clock:       clock,
	}
}

// WaitIfNeeded blocks until both the window and spacing constraints are
// satisfied, then records the request timestamp. The whole
// evict-wait-record sequence holds the lock so concurrent callers cannot
// interleave between the capacity check and the recording.
func (l *RateLimiter) WaitIfNeeded(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.evict(now)

	if len(l.stamps) >= l.maxRequests {
		wait := l.window - now.Sub(l.stamps[0])
		if wait > 0 {
			if err := l.clock.Sleep(ctx, wait); err != nil {
				return err
			}
			now = l.clock.Now()
			l.evict(now)
		}
	}

	if len(l.stamps) > 0 {
		sinceLast := now.Sub(l.stamps[len(l.stamps)-1])
		if sinceLast < l.minInterval {
			if err := l.clock.Sleep(ctx, l.minInterval-sinceLast); err != nil {
				return err
			}
			now = l.clock.Now()
		}
	}

	l.stamps = append(l.stamps, now)
	return nil
}

// Cleanup drops stale timestamps so an idle limiter does not hold onto the
// whole last window. Safe to call from a background ticker.
func (l *RateLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(l.clock.Now())
}

// evict drops timestamps older than the rolling window. Caller holds the lock.
func (l *RateLimiter) evict(now time.Time) {
	cutoff := now.Add(-l.window)
	idx := 0
	for idx < len(l.stamps) && !l.stamps[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[idx:]...)
	}
}
