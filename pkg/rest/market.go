package rest

import (
	"context"
	"fmt"
	"strings"

	"krakenkit/pkg/core"
)

// ServerTime returns the venue clock.
func (c *Client) ServerTime(ctx context.Context) (*core.ServerTime, error) {
	var out core.ServerTime
	if err := c.Do(ctx, core.NewRequest(core.OpServerTime), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Assets returns asset metadata keyed by the venue's asset name.
// Results are cached when the client has a cache.
func (c *Client) Assets(ctx context.Context, assets ...string) (map[string]core.AssetInfo, error) {
	req := core.NewRequest(core.OpAssets).
		SetParamIf(len(assets) > 0, "asset", assets).
		SetCache("assets:"+strings.Join(assets, ","), 0)

	var out map[string]core.AssetInfo
	if err := c.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AssetPairs returns tradable pair metadata keyed by the venue's pair name.
// Results are cached when the client has a cache.
func (c *Client) AssetPairs(ctx context.Context, pairs ...string) (map[string]core.AssetPair, error) {
	req := core.NewRequest(core.OpAssetPairs).
		SetParamIf(len(pairs) > 0, "pair", pairs).
		SetCache("pairs:"+strings.Join(pairs, ","), 0)

	var out map[string]core.AssetPair
	if err := c.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ticker returns tickers for the given pairs, or all pairs when none are given.
func (c *Client) Ticker(ctx context.Context, pairs ...string) ([]core.Ticker, error) {
	req := core.NewRequest(core.OpTicker).SetParamIf(len(pairs) > 0, "pair", pairs)

	var out map[string]map[string]any
	if err := c.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return normalizeTickers(out)
}

// OHLC returns candles for pair. Supports WithInterval and WithSince.
func (c *Client) OHLC(ctx context.Context, pair string, opts ...CallOption) (*core.OHLC, error) {
	req := core.NewRequest(core.OpOHLC).SetParam("pair", pair)
	applyOptions(opts...).apply(req)

	var out map[string]any
	if err := c.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	ohlc, err := normalizeOHLC(out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", core.OpOHLC, err)
	}
	return ohlc, nil
}

// OrderBook returns up to count levels per side (all levels when count is 0).
func (c *Client) OrderBook(ctx context.Context, pair string, count int) (*core.OrderBook, error) {
	req := core.NewRequest(core.OpOrderBook).
		SetParam("pair", pair).
		SetParamIf(count > 0, "count", count)

	var out map[string]any
	if err := c.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	book, err := normalizeOrderBook(out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", core.OpOrderBook, err)
	}
	return book, nil
}

// Trades returns recent public trades. Supports WithSince and WithCount.
func (c *Client) Trades(ctx context.Context, pair string, opts ...CallOption) (*core.Trades, error) {
	req := core.NewRequest(core.OpTrades).SetParam("pair", pair)
	applyOptions(opts...).apply(req)

	var out map[string]any
	if err := c.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	trades, err := normalizeTrades(out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", core.OpTrades, err)
	}
	return trades, nil
}
