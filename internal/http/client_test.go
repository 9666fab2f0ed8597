package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, retries int) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(&Config{
		BaseURL:      srv.URL,
		Timeout:      time.Second,
		MaxRetries:   retries,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
		UserAgent:    "krakenkit-test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewClient_InvalidConfig(t *testing.T) {
	_, err := NewClient(&Config{BaseURL: "", Timeout: time.Second})
	assert.Error(t, err)
}

func TestClient_Get(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/0/public/Ticker", r.URL.Path)
		assert.Equal(t, "XBTUSD", r.URL.Query().Get("pair"))
		assert.Equal(t, "krakenkit-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "1", r.Header.Get("X-Trace"))
		_, _ = w.Write([]byte(`{"error":[],"result":{}}`))
	}, 0)

	resp, err := client.Get(context.Background(), "/0/public/Ticker",
		WithQueryParams(map[string]string{"pair": "XBTUSD"}),
		WithHeaders(map[string]string{"X-Trace": "1"}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.JSONEq(t, `{"error":[],"result":{}}`, string(resp.Bytes()))
}

func TestClient_PostFormSendsBodyVerbatim(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "nonce=1&pair=XBTUSD", string(body))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Equal(t, "key", r.Header.Get("API-Key"))
		_, _ = w.Write([]byte(`{"error":[],"result":{}}`))
	}, 0)

	resp, err := client.PostForm(context.Background(), "/0/private/Balance", "nonce=1&pair=XBTUSD",
		WithHeader("API-Key", "key"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
}

func TestClient_NoRetry(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, 3)

	resp, err := client.PostForm(context.Background(), "/0/private/Balance", "nonce=1", WithNoRetry())
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode())
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Closed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {}, 0)
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	_, err := client.Get(context.Background(), "/")
	assert.Error(t, err)
	_, err = client.PostForm(context.Background(), "/", "")
	assert.Error(t, err)
}
