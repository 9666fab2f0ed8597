package rest

import (
	"time"

	"github.com/rs/zerolog"

	"krakenkit/internal/auth"
	"krakenkit/internal/circuitbreaker"
	"krakenkit/internal/keyring"
	"krakenkit/internal/metrics"
	"krakenkit/pkg/core"
)

// Option configures a Client.
type Option func(*Client)

// WithBreaker guards every call with b.
func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// WithKeyRing enables private endpoints.
func WithKeyRing(kr *keyring.KeyRing) Option {
	return func(c *Client) { c.keyring = kr }
}

// WithCache caches reference data (assets, pairs).
func WithCache(cache *Cache) Option {
	return func(c *Client) { c.cache = cache }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithNonceSource replaces the default millisecond nonce source.
// Keys shared between processes need a source that never goes backwards across them.
func WithNonceSource(n *auth.NonceSource) Option {
	return func(c *Client) { c.nonces = n }
}

// CallOption tunes a single endpoint call.
type CallOption func(*CallOptions)

// CallOptions holds the optional parameters accepted by list endpoints.
// Each endpoint reads only the fields it understands.
type CallOptions struct {
	Interval  int
	Since     string
	Count     int
	Start     time.Time
	End       time.Time
	Offset    int
	Trades    bool
	Asset     string
	UserRef   int32
	CloseTime string
}

// WithInterval sets the candle interval in minutes.
func WithInterval(minutes int) CallOption {
	return func(o *CallOptions) { o.Interval = minutes }
}

// WithSince resumes a list from the cursor returned in a previous "last" field.
func WithSince(cursor string) CallOption {
	return func(o *CallOptions) { o.Since = cursor }
}

// WithCount limits the number of entries returned.
func WithCount(n int) CallOption {
	return func(o *CallOptions) { o.Count = n }
}

func WithTimeRange(start, end time.Time) CallOption {
	return func(o *CallOptions) {
		o.Start = start
		o.End = end
	}
}

func WithOffset(offset int) CallOption {
	return func(o *CallOptions) { o.Offset = offset }
}

// WithTrades includes related trade ids in order results.
func WithTrades(include bool) CallOption {
	return func(o *CallOptions) { o.Trades = include }
}

func WithAsset(asset string) CallOption {
	return func(o *CallOptions) { o.Asset = asset }
}

func WithUserRef(ref int32) CallOption {
	return func(o *CallOptions) { o.UserRef = ref }
}

// WithCloseTime selects which timestamp ("open", "close", "both") bounds closed orders.
func WithCloseTime(which string) CallOption {
	return func(o *CallOptions) { o.CloseTime = which }
}

func applyOptions(opts ...CallOption) *CallOptions {
	o := &CallOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// apply copies the set options onto req using the venue's parameter names.
func (o *CallOptions) apply(req *core.Request) {
	req.SetParamIf(o.Interval > 0, "interval", o.Interval).
		SetParamIf(o.Since != "", "since", o.Since).
		SetParamIf(o.Count > 0, "count", o.Count).
		SetParamIf(!o.Start.IsZero(), "start", o.Start).
		SetParamIf(!o.End.IsZero(), "end", o.End).
		SetParamIf(o.Offset > 0, "ofs", o.Offset).
		SetParamIf(o.Trades, "trades", true).
		SetParamIf(o.Asset != "", "asset", o.Asset).
		SetParamIf(o.UserRef != 0, "userref", o.UserRef).
		SetParamIf(o.CloseTime != "", "closetime", o.CloseTime)
}
