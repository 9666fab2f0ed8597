// Package metrics exposes limiter, stream and REST activity as Prometheus
// collectors. Every method is safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "krakenkit"

type Metrics struct {
	LimiterAcquireTotal *prometheus.CounterVec
	LimiterWaitSeconds  *prometheus.HistogramVec
	LimiterWaitAborted  *prometheus.CounterVec

	RESTRequestTotal   *prometheus.CounterVec
	RESTRequestSeconds *prometheus.HistogramVec
	BreakerState       prometheus.Gauge

	StreamFramesTotal  *prometheus.CounterVec
	StreamSessions     *prometheus.GaugeVec
	StreamQueueBacklog *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them with reg.
// A *prometheus.Registry can be passed to keep tests isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LimiterAcquireTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "limiter_acquire_total",
			Help:      "Token acquisitions by tier and outcome",
		}, []string{"tier", "outcome"}),

		LimiterWaitSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "limiter_wait_seconds",
			Help:      "Time callers slept waiting for a tier to refill",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"tier"}),

		LimiterWaitAborted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "limiter_wait_aborted_total",
			Help:      "Limiter waits cut short by context cancellation",
		}, []string{"tier"}),

		RESTRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rest_request_total",
			Help:      "REST requests by endpoint and result",
		}, []string{"endpoint", "result"}),

		RESTRequestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rest_request_seconds",
			Help:      "REST round-trip latency",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"endpoint"}),

		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "REST circuit breaker state (0 closed, 1 open, 2 half-open)",
		}),

		StreamFramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_frames_total",
			Help:      "Streaming frames by direction and kind",
		}, []string{"direction", "kind"}),

		StreamSessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_sessions",
			Help:      "Streaming sessions by state",
		}, []string{"state"}),

		StreamQueueBacklog: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_queue_backlog",
			Help:      "Items waiting in a session queue",
		}, []string{"queue"}),
	}

	reg.MustRegister(
		m.LimiterAcquireTotal,
		m.LimiterWaitSeconds,
		m.LimiterWaitAborted,
		m.RESTRequestTotal,
		m.RESTRequestSeconds,
		m.BreakerState,
		m.StreamFramesTotal,
		m.StreamSessions,
		m.StreamQueueBacklog,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return m
}

// Handler serves the registered collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveAcquire records one limiter acquisition.
func (m *Metrics) ObserveAcquire(tier string, wait time.Duration) {
	if m == nil {
		return
	}
	outcome := "granted"
	if wait > 0 {
		outcome = "throttled"
	}
	m.LimiterAcquireTotal.WithLabelValues(tier, outcome).Inc()
}

// ObserveWait records a limiter sleep.
func (m *Metrics) ObserveWait(tier string, slept time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.LimiterWaitAborted.WithLabelValues(tier).Inc()
		return
	}
	m.LimiterWaitSeconds.WithLabelValues(tier).Observe(slept.Seconds())
}

// ObserveRequest records a REST call outcome and its latency.
func (m *Metrics) ObserveRequest(endpoint, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RESTRequestTotal.WithLabelValues(endpoint, result).Inc()
	m.RESTRequestSeconds.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// SetBreakerState publishes the breaker's current state.
func (m *Metrics) SetBreakerState(state int) {
	if m == nil {
		return
	}
	m.BreakerState.Set(float64(state))
}

// FrameSent counts an outbound frame.
func (m *Metrics) FrameSent(kind string) {
	if m == nil {
		return
	}
	m.StreamFramesTotal.WithLabelValues("out", kind).Inc()
}

// FrameReceived counts an inbound frame.
func (m *Metrics) FrameReceived(kind string) {
	if m == nil {
		return
	}
	m.StreamFramesTotal.WithLabelValues("in", kind).Inc()
}

// SessionTransition moves one session from one state gauge to another.
func (m *Metrics) SessionTransition(from, to string) {
	if m == nil {
		return
	}
	if from != "" {
		m.StreamSessions.WithLabelValues(from).Dec()
	}
	m.StreamSessions.WithLabelValues(to).Inc()
}

// QueueBacklog publishes the number of items waiting in a session queue.
func (m *Metrics) QueueBacklog(queue string, n int) {
	if m == nil {
		return
	}
	m.StreamQueueBacklog.WithLabelValues(queue).Set(float64(n))
}
