// Package krakenkit is a client for Kraken's spot REST and streaming APIs.
//
// A Client owns one tier limiter shared by every REST call, an optional
// circuit breaker and response cache, and a registry of streaming sessions:
//
//	client, err := krakenkit.New(core.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer client.Close(ctx)
//
//	tickers, err := client.Ticker(ctx, "XBTUSD")
package krakenkit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"krakenkit/internal/circuitbreaker"
	httpClient "krakenkit/internal/http"
	"krakenkit/internal/keyring"
	"krakenkit/internal/metrics"
	"krakenkit/internal/ratelimit"
	"krakenkit/internal/ws"
	"krakenkit/pkg/core"
	"krakenkit/pkg/rest"
	"krakenkit/pkg/stream"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	logger     *zerolog.Logger
	registerer prometheus.Registerer
	dialer     ws.Dialer
}

// WithLogger replaces the logger built from Config.LogLevel.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = &logger }
}

// WithRegisterer registers metrics with reg instead of a private registry.
// It only has an effect when Config.MetricsEnabled is set.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithDialer replaces the websocket dialer selected by Config.WSTransport.
func WithDialer(d ws.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// Client is the entry point for REST calls and streaming sessions.
// REST methods are promoted from the embedded rest.Client.
type Client struct {
	*rest.Client

	config    *core.Config
	http      *httpClient.Client
	limiter   *ratelimit.TierLimiter
	breaker   *circuitbreaker.Breaker
	cache     *rest.Cache
	metrics   *metrics.Metrics
	dialer    ws.Dialer
	sessions  *stream.Registry
	logger    zerolog.Logger
	createdAt time.Time

	closeOnce sync.Once
}

// New validates config and builds a Client from it.
func New(config *core.Config, opts ...Option) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := newLogger(config.LogLevel)
	if o.logger != nil {
		logger = *o.logger
	}

	var m *metrics.Metrics
	if config.MetricsEnabled {
		reg := o.registerer
		if reg == nil {
			reg = prometheus.NewRegistry()
		}
		m = metrics.NewMetrics(reg)
	}

	limiterOpts, err := config.LimiterOptions()
	if err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	if m != nil {
		limiterOpts = append(limiterOpts, ratelimit.WithObserver(m))
	}
	limiter := ratelimit.NewTierLimiter(limiterOpts...)

	hc, err := httpClient.NewClient(&httpClient.Config{
		BaseURL:      config.APIURL,
		Timeout:      config.Timeout,
		MaxRetries:   config.MaxRetries,
		RetryWaitMin: config.RetryWaitMin,
		RetryWaitMax: config.RetryWaitMax,
		UserAgent:    config.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("http client: %w", err)
	}
	hc.SetLogger(logger.With().Str("component", "http").Logger())

	c := &Client{
		config:    config,
		http:      hc,
		limiter:   limiter,
		metrics:   m,
		sessions:  stream.NewRegistry(),
		logger:    logger,
		createdAt: time.Now(),
	}

	restOpts := []rest.Option{
		rest.WithMetrics(m),
		rest.WithLogger(logger.With().Str("component", "rest").Logger()),
	}
	if config.CircuitBreakerEnabled {
		c.breaker = circuitbreaker.New(circuitbreaker.Config{
			FailThreshold:    config.CircuitBreakerFailThreshold,
			SuccessThreshold: config.CircuitBreakerSuccessThreshold,
			Timeout:          config.CircuitBreakerTimeout,
			OnStateChange: func(from, to circuitbreaker.State) {
				m.SetBreakerState(int(to))
				logger.Warn().Stringer("from", from).Stringer("to", to).Msg("circuit breaker state change")
			},
		})
		restOpts = append(restOpts, rest.WithBreaker(c.breaker))
	}
	if config.CacheEnabled {
		c.cache = rest.NewCache(config.CacheTTL)
		restOpts = append(restOpts, rest.WithCache(c.cache))
	}
	if config.HasCredentials() {
		kr := keyring.FromCredentials(config.Keys, keyring.RotationOnRateLimit)
		kr.SetLogger(logger.With().Str("component", "keyring").Logger())
		restOpts = append(restOpts, rest.WithKeyRing(kr))
	}
	c.Client = rest.New(hc, limiter, restOpts...)

	c.dialer = o.dialer
	if c.dialer == nil {
		c.dialer, err = ws.NewDialer(config.WSTransport, ws.DialConfig{
			ReadTimeout: config.WSReadTimeout,
			Logger:      logger.With().Str("component", "ws").Logger(),
		})
		if err != nil {
			return nil, err
		}
	}

	logger.Debug().
		Str("api_url", config.APIURL).
		Str("ws_url", config.WSURL).
		Str("transport", config.WSTransport).
		Bool("credentials", config.HasCredentials()).
		Msg("client created")
	return c, nil
}

func newLogger(level string) zerolog.Logger {
	if level == "" {
		return zerolog.Nop()
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) { w.Out = os.Stderr })
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// NewSession creates a streaming session against Config.WSURL and registers
// it under name. The session is returned disconnected.
func (c *Client) NewSession(name string, opts ...stream.Option) (*stream.Session, error) {
	cfg := stream.DefaultConfig(c.config.WSURL)
	cfg.BufferSize = c.config.WSBufferSize
	cfg.CommandRate = c.config.WSCommandRate
	cfg.CommandPeriod = c.config.WSCommandPeriod

	base := []stream.Option{
		stream.WithLogger(c.logger.With().Str("component", "stream").Str("name", name).Logger()),
		stream.WithMetrics(c.metrics),
	}
	s := stream.NewSession(cfg, c.dialer, append(base, opts...)...)
	if err := c.sessions.Register(name, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Session returns the session registered under name.
func (c *Client) Session(name string) (*stream.Session, error) {
	return c.sessions.Get(name)
}

// Sessions returns the registered session names in sorted order.
func (c *Client) Sessions() []string {
	return c.sessions.Names()
}

// Config returns the configuration the client was built from.
func (c *Client) Config() *core.Config {
	return c.config
}

// Limiter returns the tier limiter shared by all REST calls.
func (c *Client) Limiter() *ratelimit.TierLimiter {
	return c.limiter
}

// BreakerState reports the circuit breaker state, or "DISABLED".
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return "DISABLED"
	}
	return c.breaker.State().String()
}

// MetricsHandler serves the client's metrics in the Prometheus text format.
// It answers 404 when metrics are disabled.
func (c *Client) MetricsHandler() http.Handler {
	return c.metrics.Handler()
}

// CreatedAt returns when the client was built.
func (c *Client) CreatedAt() time.Time {
	return c.createdAt
}

// ClearCache drops every cached REST response.
func (c *Client) ClearCache() {
	if c.cache != nil {
		c.cache.Clear()
	}
}

// Close closes every registered session, waits for them to finish and
// releases the HTTP client. Later calls return nil.
func (c *Client) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		err = errors.Join(
			c.sessions.CloseAll(ctx),
			c.http.Close(),
		)
		c.ClearCache()
		c.logger.Debug().Msg("client closed")
	})
	return err
}
