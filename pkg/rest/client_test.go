package rest

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krakenkit/internal/auth"
	"krakenkit/internal/circuitbreaker"
	httpClient "krakenkit/internal/http"
	"krakenkit/internal/keyring"
	"krakenkit/internal/ratelimit"
	"krakenkit/pkg/core"
)

var testSecret = base64.StdEncoding.EncodeToString([]byte("kraken-test-secret"))

func newTestServer(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	hc, err := httpClient.NewClient(&httpClient.Config{
		BaseURL:      srv.URL,
		Timeout:      time.Second,
		MaxRetries:   0,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: time.Millisecond,
		UserAgent:    "krakenkit-test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = hc.Close() })

	return New(hc, ratelimit.NewTierLimiter(), opts...)
}

func withTestKey() Option {
	return WithKeyRing(keyring.FromCredentials([]core.Credentials{
		{APIKey: "public-key", APISecret: testSecret},
	}, keyring.RotationOnRateLimit))
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func TestClient_PublicRequestUsesQuery(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/0/public/Time", r.URL.Path)
		assert.Empty(t, r.Header.Get("API-Key"))
		writeJSON(w, `{"error":[],"result":{"unixtime":1700000000,"rfc1123":"Tue, 14 Nov 23 22:13:20 +0000"}}`)
	})

	st, err := client.ServerTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), st.UnixTime)
	assert.Equal(t, time.Unix(1700000000, 0), st.Time())
}

func TestClient_PrivateRequestIsSigned(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/0/private/Balance", r.URL.Path)
		assert.Equal(t, "public-key", r.Header.Get("API-Key"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		form, err := url.ParseQuery(string(body))
		require.NoError(t, err)
		nonce := form.Get("nonce")
		require.NotEmpty(t, nonce)

		n, err := strconv.ParseUint(nonce, 10, 64)
		require.NoError(t, err)
		want, err := auth.Sign(r.URL.Path, n, string(body), testSecret)
		require.NoError(t, err)
		assert.Equal(t, want, r.Header.Get("API-Sign"))

		writeJSON(w, `{"error":[],"result":{"ZUSD":"100.50","XXBT":"0.0000000000","XETH":"2.5"}}`)
	}, withTestKey())

	balances, err := client.Balance(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, "XETH", balances[0].Asset)
	assert.Equal(t, "2.5", balances[0].Amount.String())
	assert.Equal(t, "ZUSD", balances[1].Asset)
}

func TestClient_PrivateWithoutKeyRing(t *testing.T) {
	var calls atomic.Int32
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := client.Balance(context.Background())
	require.ErrorIs(t, err, core.ErrNoCredentials)
	assert.Zero(t, calls.Load())
}

func TestClient_PrivateRequestIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	hc, err := httpClient.NewClient(&httpClient.Config{
		BaseURL:      srv.URL,
		Timeout:      time.Second,
		MaxRetries:   3,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = hc.Close() })
	client := New(hc, ratelimit.NewTierLimiter(), withTestKey())

	_, err = client.Balance(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_EnvelopeErrors(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"error":["EQuery:Unknown asset pair"]}`)
	})

	_, err := client.Ticker(context.Background(), "NOPE")
	require.Error(t, err)

	var apiErr *core.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, core.ErrorTypeBadRequest, apiErr.Type)
	assert.Equal(t, "EQuery:Unknown asset pair", apiErr.Code)
	assert.Equal(t, "Ticker", apiErr.Endpoint)
}

func TestClient_WarningsAreNotErrors(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"error":["WGeneral:Deprecated"],"result":{"unixtime":1,"rfc1123":""}}`)
	})

	st, err := client.ServerTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.UnixTime)
}

func TestClient_HTTPStatusWithoutEnvelope(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	})

	_, err := client.ServerTime(context.Background())
	require.Error(t, err)
	var apiErr *core.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, core.ErrorTypeServerError, apiErr.Type)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "maintenance", apiErr.Message)
}

func TestClient_EmptyResult(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"error":[]}`)
	})

	_, err := client.ServerTime(context.Background())
	assert.ErrorIs(t, err, core.ErrEmptyResult)
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailThreshold:    2,
		SuccessThreshold: 1,
		Timeout:          time.Hour,
	})
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, `{"error":["EService:Unavailable"]}`)
	}, WithBreaker(breaker))

	for range 2 {
		_, err := client.ServerTime(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.StateOpen, breaker.State())

	_, err := client.ServerTime(context.Background())
	require.ErrorIs(t, err, core.ErrCircuitBreakerOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_BreakerIgnoresRequestErrors(t *testing.T) {
	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailThreshold:    1,
		SuccessThreshold: 1,
		Timeout:          time.Hour,
	})
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"error":["EGeneral:Invalid arguments"]}`)
	}, WithBreaker(breaker))

	for range 3 {
		_, err := client.ServerTime(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.StateClosed, breaker.State())
}

func TestClient_CacheServesRepeatedRequests(t *testing.T) {
	var calls atomic.Int32
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, `{"error":[],"result":{"XXBT":{"aclass":"currency","altname":"XBT","decimals":10,"display_decimals":5}}}`)
	}, WithCache(NewCache(time.Minute)))

	for range 3 {
		assets, err := client.Assets(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "XBT", assets["XXBT"].AltName)
	}
	assert.Equal(t, int32(1), calls.Load())

	// A different asset filter is a different cache key.
	_, err := client.Assets(context.Background(), "XBT")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_WaitsOnTier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"error":[],"result":{"unixtime":1,"rfc1123":""}}`)
	}))
	t.Cleanup(srv.Close)

	hc, err := httpClient.NewClient(&httpClient.Config{BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = hc.Close() })

	limiter := ratelimit.NewTierLimiter(
		ratelimit.WithTierConfig(core.OpServerTime.Tier(), ratelimit.TierConfig{Capacity: 1, RefillPeriod: time.Hour}),
	)
	client := New(hc, limiter)

	_, err = client.ServerTime(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.ServerTime(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_CanceledContext(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"error":[],"result":{}}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.ServerTime(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSplitMessages(t *testing.T) {
	errs, warnings := splitMessages([]string{"EGeneral:Internal error", "WGeneral:Notice", "EAPI:Bad request"})
	assert.Equal(t, []string{"EGeneral:Internal error", "EAPI:Bad request"}, errs)
	assert.Equal(t, []string{"WGeneral:Notice"}, warnings)
}

func TestStatusErrorType(t *testing.T) {
	tests := []struct {
		status int
		want   core.ErrorType
	}{
		{http.StatusInternalServerError, core.ErrorTypeServerError},
		{http.StatusTooManyRequests, core.ErrorTypeRateLimit},
		{http.StatusUnauthorized, core.ErrorTypeAuthentication},
		{http.StatusForbidden, core.ErrorTypeAuthentication},
		{http.StatusNotFound, core.ErrorTypeNotFound},
		{http.StatusBadRequest, core.ErrorTypeBadRequest},
		{http.StatusOK, core.ErrorTypeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusErrorType(tt.status), "status %d", tt.status)
	}
}
