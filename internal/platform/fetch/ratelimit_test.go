package fetch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now = c.now.Add(d)
		c.slept = append(c.slept, d)
	}
	return nil
}

func TestRateLimiterEnforcesWindow(t *testing.T) {
	clock := newFakeClock()
	limiter := NewRateLimiterWithClock(5, time.Second, clock)
	start := clock.Now()

	for i := 0; i < 10; i++ {
		require.NoError(t, limiter.WaitIfNeeded(context.Background()))
	}

	elapsed := clock.Now().Sub(start)
	require.GreaterOrEqual(t, elapsed, time.Second, "10 requests at 5/s must span at least one window")
}

func TestRateLimiterMinimumSpacing(t *testing.T) {
	clock := newFakeClock()
	limiter := NewRateLimiterWithClock(4, time.Second, clock)

	require.NoError(t, limiter.WaitIfNeeded(context.Background()))
	before := clock.Now()
	require.NoError(t, limiter.WaitIfNeeded(context.Background()))

	require.GreaterOrEqual(t, clock.Now().Sub(before), 250*time.Millisecond)
}

func TestRateLimiterCancelledContext(t *testing.T) {
	clock := newFakeClock()
	limiter := NewRateLimiterWithClock(1, time.Minute, clock)
	require.NoError(t, limiter.WaitIfNeeded(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, limiter.WaitIfNeeded(ctx))
}

func TestRateLimiterConcurrentCallers(t *testing.T) {
	limiter := NewRateLimiter(50, time.Second)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = limiter.WaitIfNeeded(context.Background())
		}()
	}
	wg.Wait()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	require.Len(t, limiter.stamps, 20)
}
