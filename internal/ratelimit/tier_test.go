package ratelimit

import (
	"context"
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
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
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

type recordingObserver struct {
	mu       sync.Mutex
	acquires []time.Duration
	slept    []time.Duration
	waits    []error
}

func (o *recordingObserver) ObserveAcquire(_ string, wait time.Duration) {
	o.mu.Lock()
	o.acquires = append(o.acquires, wait)
	o.mu.Unlock()
}

func (o *recordingObserver) ObserveWait(_ string, slept time.Duration, err error) {
	o.mu.Lock()
	o.slept = append(o.slept, slept)
	o.waits = append(o.waits, err)
	o.mu.Unlock()
}

func TestTierLimiter_StartsFull(t *testing.T) {
	clock := newFakeClock()
	limiter := NewTierLimiter(WithClock(clock.Now))

	for tier, cfg := range DefaultTierConfigs() {
		t.Run(tier.String(), func(t *testing.T) {
			assert.Equal(t, cfg.Capacity, limiter.Tokens(tier))
			for i := 0; i < cfg.Capacity; i++ {
				assert.Zero(t, limiter.Acquire(tier), "acquire %d", i+1)
			}
		})
	}
}

func TestTierLimiter_ExhaustedWaitIsBounded(t *testing.T) {
	clock := newFakeClock()
	limiter := NewTierLimiter(WithClock(clock.Now))

	for tier, cfg := range DefaultTierConfigs() {
		t.Run(tier.String(), func(t *testing.T) {
			for i := 0; i < cfg.Capacity; i++ {
				limiter.Acquire(tier)
			}
			wait := limiter.Acquire(tier)
			assert.Greater(t, wait, time.Duration(0))
			assert.LessOrEqual(t, wait, cfg.RefillPeriod)
		})
	}
}

func TestTierLimiter_Tier1Burst(t *testing.T) {
	limiter := NewTierLimiter()

	for i := 0; i < 15; i++ {
		require.Zero(t, limiter.Acquire(Tier1), "acquire %d", i+1)
	}
	wait := limiter.Acquire(Tier1)
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, 45*time.Second)
}

func TestTierLimiter_NeverExceedsCapacity(t *testing.T) {
	clock := newFakeClock()
	limiter := NewTierLimiter(WithClock(clock.Now))

	limiter.Acquire(Tier2)
	clock.Advance(1000 * time.Hour)

	assert.Zero(t, limiter.Acquire(Tier2))
	assert.Equal(t, 19, limiter.Tokens(Tier2))
}

func TestTierLimiter_PartialPeriodIsDiscarded(t *testing.T) {
	clock := newFakeClock()
	limiter := NewTierLimiter(WithClock(clock.Now))

	for i := 0; i < 15; i++ {
		limiter.Acquire(Tier1)
	}
	assert.Equal(t, 45*time.Second, limiter.Acquire(Tier1))

	clock.Advance(30 * time.Second)
	assert.Equal(t, 15*time.Second, limiter.Acquire(Tier1))

	// 50s elapsed: one token credited and the extra 5s forgotten.
	clock.Advance(20 * time.Second)
	assert.Zero(t, limiter.Acquire(Tier1))
	assert.Equal(t, 45*time.Second, limiter.Acquire(Tier1))

	// 89s since start would have yielded a second token with exact accounting.
	clock.Advance(39 * time.Second)
	assert.Equal(t, 6*time.Second, limiter.Acquire(Tier1))
}

func TestTierLimiter_MultiplePeriodsRefillMultipleTokens(t *testing.T) {
	clock := newFakeClock()
	limiter := NewTierLimiter(WithClock(clock.Now))

	for i := 0; i < 15; i++ {
		limiter.Acquire(Tier4)
	}
	clock.Advance(3*time.Minute + 10*time.Second)

	for i := 0; i < 3; i++ {
		assert.Zero(t, limiter.Acquire(Tier4), "acquire %d", i+1)
	}
	assert.Equal(t, 60*time.Second, limiter.Acquire(Tier4))
}

func TestTierLimiter_WaitDoesNotReacquire(t *testing.T) {
	limiter := NewTierLimiter(WithTierConfig(Tier1, TierConfig{Capacity: 1, RefillPeriod: 20 * time.Millisecond}))

	require.Zero(t, limiter.Acquire(Tier1))

	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background(), Tier1))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)

	assert.Zero(t, limiter.Tokens(Tier1))
	snapshot := limiter.Metrics()
	assert.Equal(t, int64(2), snapshot.TotalAcquires)
	assert.Equal(t, int64(1), snapshot.GrantedAcquires)
	assert.Equal(t, int64(1), snapshot.DeniedAcquires)
	assert.Equal(t, int64(1), snapshot.Waits)
}

func TestTierLimiter_WaitImmediateWhenTokensAvailable(t *testing.T) {
	limiter := NewTierLimiter()

	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background(), Tier3))
	assert.Less(t, time.Since(start), 10*time.Millisecond)
	assert.Equal(t, 19, limiter.Tokens(Tier3))
}

func TestTierLimiter_WaitContextCancellation(t *testing.T) {
	limiter := NewTierLimiter(WithTierConfig(Tier2, TierConfig{Capacity: 1, RefillPeriod: time.Hour}))
	limiter.Acquire(Tier2)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx, Tier2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTierLimiter_UnknownTierIsUnlimited(t *testing.T) {
	limiter := NewTierLimiter()

	for i := 0; i < 100; i++ {
		assert.Zero(t, limiter.Acquire(Tier(99)))
	}
	assert.NoError(t, limiter.Wait(context.Background(), Tier(0)))

	_, ok := limiter.Config(Tier(99))
	assert.False(t, ok)
}

func TestTierLimiter_ConcurrentAcquire(t *testing.T) {
	clock := newFakeClock()
	limiter := NewTierLimiter(WithClock(clock.Now))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 200; i++ {
		wg.Go(func() {
			if limiter.Acquire(Tier2) == 0 {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	assert.Equal(t, 20, granted)
	assert.Zero(t, limiter.Tokens(Tier2))
	assert.Equal(t, 15, limiter.Tokens(Tier1))
}

func TestTierLimiter_FIFOFairness(t *testing.T) {
	limiter := NewTierLimiter(
		WithFairness(true),
		WithTierConfig(Tier1, TierConfig{Capacity: 1, RefillPeriod: 100 * time.Millisecond}),
	)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		order []int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_ = limiter.Wait(context.Background(), Tier1)
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
		}(i)
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3}, order)
}

func TestTierLimiter_Observer(t *testing.T) {
	observer := &recordingObserver{}
	limiter := NewTierLimiter(
		WithObserver(observer),
		WithTierConfig(Tier3, TierConfig{Capacity: 1, RefillPeriod: time.Hour}),
	)

	limiter.Acquire(Tier3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := limiter.Wait(ctx, Tier3)
	assert.ErrorIs(t, err, context.Canceled)

	observer.mu.Lock()
	defer observer.mu.Unlock()
	require.Len(t, observer.acquires, 2)
	assert.Zero(t, observer.acquires[0])
	assert.Greater(t, observer.acquires[1], time.Duration(0))
	require.Len(t, observer.waits, 1)
	assert.ErrorIs(t, observer.waits[0], context.Canceled)
	assert.Less(t, observer.slept[0], time.Second)
}

func TestTierLimiter_ObserverReportsTimeSlept(t *testing.T) {
	observer := &recordingObserver{}
	limiter := NewTierLimiter(
		WithObserver(observer),
		WithTierConfig(Tier2, TierConfig{Capacity: 1, RefillPeriod: time.Hour}),
	)
	limiter.Acquire(Tier2)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, limiter.Wait(ctx, Tier2), context.DeadlineExceeded)

	observer.mu.Lock()
	defer observer.mu.Unlock()
	require.Len(t, observer.slept, 1)
	assert.GreaterOrEqual(t, observer.slept[0], 20*time.Millisecond)
	assert.Less(t, observer.slept[0], time.Minute)
}

func TestTierLimiter_ConfigOverride(t *testing.T) {
	limiter := NewTierLimiter(WithTierConfig(Tier4, TierConfig{Capacity: 3, RefillPeriod: time.Second}))

	cfg, ok := limiter.Config(Tier4)
	require.True(t, ok)
	assert.Equal(t, 3, cfg.Capacity)
	assert.Equal(t, time.Second, cfg.RefillPeriod)
	assert.Equal(t, 3, limiter.Tokens(Tier4))

	cfg, _ = limiter.Config(Tier1)
	assert.Equal(t, 15, cfg.Capacity)
}

func TestTier_String(t *testing.T) {
	assert.Equal(t, "tier1", Tier1.String())
	assert.Equal(t, "tier4", Tier4.String())
	assert.Equal(t, "tier(7)", Tier(7).String())
}
