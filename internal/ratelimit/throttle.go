package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle smooths outbound streaming commands so a burst of subscribes does not
// trip the venue's per-connection message limit. A nil *Throttle never blocks.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle allows requests commands per period, with bursts up to requests.
// It returns nil when requests or period is not positive, which disables throttling.
func NewThrottle(requests int, period time.Duration) *Throttle {
	if requests <= 0 || period <= 0 {
		return nil
	}
	return &Throttle{
		limiter: rate.NewLimiter(rate.Every(period/time.Duration(requests)), requests),
	}
}

// Wait blocks until a command may be sent or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}
