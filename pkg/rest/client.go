// Package rest implements the exchange's REST API on top of the shared
// tier limiter, circuit breaker and key ring.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"krakenkit/internal/auth"
	"krakenkit/internal/circuitbreaker"
	httpClient "krakenkit/internal/http"
	"krakenkit/internal/keyring"
	"krakenkit/internal/metrics"
	"krakenkit/internal/ratelimit"
	"krakenkit/pkg/core"
)

// decoder keeps numbers as json.Number for the array-shaped market data results.
var decoder = sonic.Config{UseNumber: true}.Froze()

// Client issues REST calls. Every call waits on its operation's tier first.
type Client struct {
	http    *httpClient.Client
	limiter *ratelimit.TierLimiter
	breaker *circuitbreaker.Breaker
	keyring *keyring.KeyRing
	nonces  *auth.NonceSource
	cache   *Cache
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates a Client. Private endpoints need WithKeyRing.
func New(hc *httpClient.Client, limiter *ratelimit.TierLimiter, opts ...Option) *Client {
	c := &Client{
		http:    hc,
		limiter: limiter,
		nonces:  auth.NewNonceSource(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the common response wrapper: {"error": [...], "result": ...}.
type envelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

// Do runs req and decodes its result into out.
func (c *Client) Do(ctx context.Context, req *core.Request, out any) error {
	raw, err := c.doRaw(ctx, req)
	if err != nil {
		return err
	}
	if err := decoder.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", req.Operation, err)
	}
	return nil
}

func (c *Client) doRaw(ctx context.Context, req *core.Request) ([]byte, error) {
	endpoint := req.Operation.String()

	if req.CacheKey != "" && c.cache != nil {
		if raw, ok := c.cache.Get(req.CacheKey); ok {
			c.logger.Debug().Str("endpoint", endpoint).Str("cache_key", req.CacheKey).Msg("cache hit")
			c.metrics.ObserveRequest(endpoint, "cached", 0)
			return raw, nil
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, req.Tier); err != nil {
			return nil, fmt.Errorf("%s: rate limit wait: %w", endpoint, err)
		}
	}

	start := time.Now()
	var raw []byte
	call := func(ctx context.Context) error {
		var err error
		raw, err = c.send(ctx, req)
		return err
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}

	switch {
	case errors.Is(err, core.ErrCircuitBreakerOpen):
		c.metrics.ObserveRequest(endpoint, "rejected", time.Since(start))
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	case err != nil:
		c.metrics.ObserveRequest(endpoint, "error", time.Since(start))
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("request failed")
		return nil, err
	}
	c.metrics.ObserveRequest(endpoint, "ok", time.Since(start))

	if req.CacheKey != "" && c.cache != nil {
		c.cache.Set(req.CacheKey, raw, req.CacheTTL)
	}
	return raw, nil
}

// send performs one HTTP exchange and unwraps the envelope.
func (c *Client) send(ctx context.Context, req *core.Request) ([]byte, error) {
	endpoint := req.Operation.String()

	var keyID string
	var body []byte
	var status int

	if req.Private {
		if c.keyring == nil {
			return nil, fmt.Errorf("%s: %w", endpoint, core.ErrNoCredentials)
		}
		nonce := c.nonces.Next()
		req.SetParam("nonce", nonce)
		form := req.Params.Encode()

		id, apiKey, signature, err := c.keyring.Sign(req.Path, nonce, form)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", endpoint, err)
		}
		keyID = id

		opts := []httpClient.RequestOption{
			httpClient.WithHeader("API-Key", apiKey),
			httpClient.WithHeader("API-Sign", signature),
			httpClient.WithHeaders(req.Headers),
			// A replayed nonce is rejected, so signed requests are never retried.
			httpClient.WithNoRetry(),
		}
		resp, err := c.http.PostForm(ctx, req.Path, form, opts...)
		if err != nil {
			return nil, transportError(endpoint, err)
		}
		body, status = resp.Bytes(), resp.StatusCode()
	} else {
		resp, err := c.http.Get(ctx, req.Path,
			httpClient.WithQueryParams(req.Params.Strings()),
			httpClient.WithHeaders(req.Headers),
		)
		if err != nil {
			return nil, transportError(endpoint, err)
		}
		body, status = resp.Bytes(), resp.StatusCode()
	}

	var env envelope
	if err := sonic.Unmarshal(body, &env); err != nil {
		if status >= http.StatusBadRequest {
			return nil, core.NewAPIError(endpoint, statusErrorType(status), status, truncateBody(body))
		}
		return nil, fmt.Errorf("%s: decode envelope: %w", endpoint, err)
	}

	errs, warnings := splitMessages(env.Error)
	if len(warnings) > 0 {
		c.logger.Warn().Str("endpoint", endpoint).Strs("warnings", warnings).Msg("venue warnings")
	}
	if len(errs) > 0 {
		apiErr := core.FromKrakenErrors(endpoint, status, errs)
		if keyID != "" {
			c.keyring.OnError(keyID, apiErr)
		}
		return nil, apiErr
	}
	if status >= http.StatusBadRequest {
		return nil, core.NewAPIError(endpoint, statusErrorType(status), status, truncateBody(body))
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil, fmt.Errorf("%s: %w", endpoint, core.ErrEmptyResult)
	}
	return env.Result, nil
}

// splitMessages separates errors ("E...") from warnings ("W...").
func splitMessages(msgs []string) (errs, warnings []string) {
	for _, m := range msgs {
		if strings.HasPrefix(m, "W") {
			warnings = append(warnings, m)
		} else {
			errs = append(errs, m)
		}
	}
	return errs, warnings
}

func transportError(endpoint string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	typ := core.ErrorTypeNetwork
	if errors.Is(err, context.DeadlineExceeded) {
		typ = core.ErrorTypeTimeout
	}
	return fmt.Errorf("%w: %w", core.NewAPIError(endpoint, typ, 0, err.Error()), err)
}

func statusErrorType(status int) core.ErrorType {
	switch {
	case status >= 500:
		return core.ErrorTypeServerError
	case status == http.StatusTooManyRequests:
		return core.ErrorTypeRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return core.ErrorTypeAuthentication
	case status == http.StatusNotFound:
		return core.ErrorTypeNotFound
	case status >= 400:
		return core.ErrorTypeBadRequest
	default:
		return core.ErrorTypeUnknown
	}
}

func truncateBody(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
