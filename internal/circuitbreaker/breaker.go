// Package circuitbreaker stops the REST dispatcher from hammering a venue that
// is failing at the transport or server level.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"krakenkit/pkg/core"
)

type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

type Config struct {
	FailThreshold    int           `json:"fail_threshold"`
	SuccessThreshold int           `json:"success_threshold"`
	Timeout          time.Duration `json:"timeout"`
	// OnStateChange, if set, is called after every transition while the breaker lock is held.
	OnStateChange func(from, to State) `json:"-"`
}

type Breaker struct {
	mu               sync.Mutex
	state            State
	failures         int
	successes        int
	failThreshold    int
	successThreshold int
	timeout          time.Duration
	openedAt         time.Time
	now              func() time.Time
	onStateChange    func(from, to State)
	metrics          *Metrics
}

type Metrics struct {
	totalRequests    atomic.Int64
	rejectedRequests atomic.Int64
	successRequests  atomic.Int64
	failedRequests   atomic.Int64
	stateChanges     atomic.Int32
}

func New(config Config) *Breaker {
	return &Breaker{
		state:            StateClosed,
		failThreshold:    config.FailThreshold,
		successThreshold: config.SuccessThreshold,
		timeout:          config.Timeout,
		now:              time.Now,
		onStateChange:    config.OnStateChange,
		metrics:          &Metrics{},
	}
}

// Allow reports whether a request may proceed. An open breaker turns half-open
// once its timeout has elapsed.
func (b *Breaker) Allow() bool {
	b.metrics.totalRequests.Add(1)

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.timeout {
			b.transitionLocked(StateHalfOpen)
			return true
		}
	}
	b.metrics.rejectedRequests.Add(1)
	return false
}

// Record reports the outcome of an allowed request.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.metrics.successRequests.Add(1)
	} else {
		b.metrics.failedRequests.Add(1)
	}

	switch b.state {
	case StateClosed:
		if success {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.failThreshold {
			b.openLocked()
		}
	case StateHalfOpen:
		if !success {
			b.openLocked()
			return
		}
		b.successes++
		if b.successes >= b.successThreshold {
			b.transitionLocked(StateClosed)
			b.failures = 0
			b.successes = 0
		}
	case StateOpen:
		// Late result from a request admitted before the breaker opened.
	}
}

// Execute runs fn if the breaker allows it and records the outcome.
// Only errors for which Trips returns true count as failures.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.Allow() {
		return core.ErrCircuitBreakerOpen
	}
	err := fn(ctx)
	b.Record(!Trips(err))
	return err
}

// Trips reports whether err indicates venue or transport trouble. Rejections of
// the request itself (bad arguments, insufficient funds, auth) and caller
// cancellation leave the breaker alone.
func Trips(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *core.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Type {
		case core.ErrorTypeNetwork, core.ErrorTypeTimeout, core.ErrorTypeServerError:
			return true
		default:
			return false
		}
	}
	return true
}

func (b *Breaker) openLocked() {
	b.openedAt = b.now()
	b.successes = 0
	b.transitionLocked(StateOpen)
}

func (b *Breaker) transitionLocked(newState State) {
	old := b.state
	b.state = newState
	b.metrics.stateChanges.Add(1)
	if b.onStateChange != nil {
		b.onStateChange(old, newState)
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
}

func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) Successes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.successes
}

func (b *Breaker) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalRequests:    b.metrics.totalRequests.Load(),
		RejectedRequests: b.metrics.rejectedRequests.Load(),
		SuccessRequests:  b.metrics.successRequests.Load(),
		FailedRequests:   b.metrics.failedRequests.Load(),
		StateChanges:     b.metrics.stateChanges.Load(),
		CurrentState:     b.State().String(),
	}
}

type MetricsSnapshot struct {
	TotalRequests    int64
	RejectedRequests int64
	SuccessRequests  int64
	FailedRequests   int64
	StateChanges     int32
	CurrentState     string
}
