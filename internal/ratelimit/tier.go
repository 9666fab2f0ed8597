// Package ratelimit implements the per-tier token buckets that gate REST calls,
// plus a smooth command throttle for streaming sessions.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Tier is a rate-limit class with its own bucket capacity and refill period.
type Tier int

// Supported tiers.
const (
	Tier1 Tier = iota + 1
	Tier2
	Tier3
	Tier4
)

// Tiers lists every tier the limiter manages.
var Tiers = []Tier{Tier1, Tier2, Tier3, Tier4}

// String returns the string representation of the tier.
func (t Tier) String() string {
	switch t {
	case Tier1:
		return "tier1"
	case Tier2:
		return "tier2"
	case Tier3:
		return "tier3"
	case Tier4:
		return "tier4"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// TierConfig describes one bucket. One token is regenerated per RefillPeriod.
type TierConfig struct {
	Capacity     int           `mapstructure:"capacity" validate:"required,min=1"`
	RefillPeriod time.Duration `mapstructure:"refill_period" validate:"required,gt=0"`
}

// DefaultTierConfigs returns the published limits for each tier.
func DefaultTierConfigs() map[Tier]TierConfig {
	return map[Tier]TierConfig{
		Tier1: {Capacity: 15, RefillPeriod: 45 * time.Second},
		Tier2: {Capacity: 20, RefillPeriod: 60 * time.Second},
		Tier3: {Capacity: 20, RefillPeriod: 60 * time.Second},
		Tier4: {Capacity: 15, RefillPeriod: 60 * time.Second},
	}
}

// Observer receives limiter events. internal/metrics provides a Prometheus implementation.
type Observer interface {
	ObserveAcquire(tier string, wait time.Duration)
	ObserveWait(tier string, slept time.Duration, err error)
}

type bucket struct {
	mu         sync.Mutex
	maxTokens  int
	tokens     int
	period     time.Duration
	lastRefill time.Time

	// queue serializes Wait callers when FIFO fairness is enabled.
	queue chan struct{}
}

// refill credits whole elapsed periods. lastRefill only moves when at least one
// period has passed, so progress inside a period is discarded.
func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed < b.period {
		return
	}
	refills := int(elapsed / b.period)
	b.tokens = min(b.tokens+refills, b.maxTokens)
	b.lastRefill = now
}

func (b *bucket) take(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)
	if b.tokens > 0 {
		b.tokens--
		return 0
	}
	return max(b.period-now.Sub(b.lastRefill), 0)
}

// TierLimiter holds one token bucket per tier. It is safe for concurrent use and
// is meant to be constructed once and shared by every dispatch call site.
type TierLimiter struct {
	buckets  map[Tier]*bucket
	now      func() time.Time
	fifo     bool
	observer Observer
	metrics  *Metrics
}

// Option configures a TierLimiter.
type Option func(*TierLimiter)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(l *TierLimiter) { l.now = now }
}

// WithFairness makes Wait callers of the same tier proceed in arrival order.
// Without it whichever goroutine wins the bucket lock first is served.
func WithFairness(fifo bool) Option {
	return func(l *TierLimiter) { l.fifo = fifo }
}

// WithObserver attaches an event observer.
func WithObserver(o Observer) Option {
	return func(l *TierLimiter) { l.observer = o }
}

// WithTierConfig overrides the limits of a single tier.
func WithTierConfig(tier Tier, cfg TierConfig) Option {
	return func(l *TierLimiter) {
		if b, ok := l.buckets[tier]; ok {
			b.maxTokens = cfg.Capacity
			b.tokens = cfg.Capacity
			b.period = cfg.RefillPeriod
		}
	}
}

// NewTierLimiter creates a limiter with every tier's bucket full.
func NewTierLimiter(opts ...Option) *TierLimiter {
	l := &TierLimiter{
		buckets: make(map[Tier]*bucket, len(Tiers)),
		now:     time.Now,
		metrics: &Metrics{},
	}
	for tier, cfg := range DefaultTierConfigs() {
		l.buckets[tier] = &bucket{
			maxTokens: cfg.Capacity,
			tokens:    cfg.Capacity,
			period:    cfg.RefillPeriod,
			queue:     make(chan struct{}, 1),
		}
	}
	for _, opt := range opts {
		opt(l)
	}

	start := l.now()
	for _, b := range l.buckets {
		b.lastRefill = start
	}
	return l
}

// Acquire refills the tier's bucket and tries to take a token. It returns zero
// when a token was taken, otherwise the time until the next refill boundary.
// Unknown tiers are not limited.
func (l *TierLimiter) Acquire(tier Tier) time.Duration {
	b, ok := l.buckets[tier]
	if !ok {
		return 0
	}

	wait := b.take(l.now())
	l.metrics.totalAcquires.Add(1)
	if wait > 0 {
		l.metrics.deniedAcquires.Add(1)
	} else {
		l.metrics.grantedAcquires.Add(1)
	}
	if l.observer != nil {
		l.observer.ObserveAcquire(tier.String(), wait)
	}
	return wait
}

// Wait calls Acquire and sleeps for the returned duration. It does not acquire
// again after sleeping, so returning nil does not imply a token was consumed.
// The only error is ctx's, when it ends before the sleep completes.
func (l *TierLimiter) Wait(ctx context.Context, tier Tier) error {
	b, ok := l.buckets[tier]
	if !ok {
		return nil
	}

	if l.fifo {
		select {
		case b.queue <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		defer func() { <-b.queue }()
	}

	wait := l.Acquire(tier)
	if wait <= 0 {
		return nil
	}

	l.metrics.waits.Add(1)
	start := l.now()
	timer := time.NewTimer(wait)
	defer timer.Stop()

	slept := wait
	var err error
	select {
	case <-timer.C:
	case <-ctx.Done():
		err = ctx.Err()
		slept = min(max(l.now().Sub(start), 0), wait)
	}
	if l.observer != nil {
		l.observer.ObserveWait(tier.String(), slept, err)
	}
	return err
}

// Tokens returns the tier's current token count without refilling.
func (l *TierLimiter) Tokens(tier Tier) int {
	b, ok := l.buckets[tier]
	if !ok {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

// Config returns the effective configuration of a tier.
func (l *TierLimiter) Config(tier Tier) (TierConfig, bool) {
	b, ok := l.buckets[tier]
	if !ok {
		return TierConfig{}, false
	}
	return TierConfig{Capacity: b.maxTokens, RefillPeriod: b.period}, true
}

// Metrics returns a snapshot of the current limiter statistics.
func (l *TierLimiter) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalAcquires:   l.metrics.totalAcquires.Load(),
		GrantedAcquires: l.metrics.grantedAcquires.Load(),
		DeniedAcquires:  l.metrics.deniedAcquires.Load(),
		Waits:           l.metrics.waits.Load(),
	}
}

// Metrics tracks statistics about limiter usage.
type Metrics struct {
	totalAcquires   atomic.Int64
	grantedAcquires atomic.Int64
	deniedAcquires  atomic.Int64
	waits           atomic.Int64
}

// MetricsSnapshot is a point-in-time capture of limiter statistics.
type MetricsSnapshot struct {
	// TotalAcquires is the number of Acquire calls across all tiers.
	TotalAcquires int64
	// GrantedAcquires is the number of Acquire calls that took a token.
	GrantedAcquires int64
	// DeniedAcquires is the number of Acquire calls that found the bucket empty.
	DeniedAcquires int64
	// Waits is the number of Wait calls that had to sleep.
	Waits int64
}
