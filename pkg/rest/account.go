package rest

import (
	"context"
	"fmt"

	"krakenkit/pkg/core"
)

// Balance returns non-zero balances sorted by asset.
func (c *Client) Balance(ctx context.Context) ([]core.Balance, error) {
	var out map[string]string
	if err := c.Do(ctx, core.NewRequest(core.OpBalance), &out); err != nil {
		return nil, err
	}
	return normalizeBalances(out)
}

// TradeBalance returns the margin summary, valued in asset (default ZUSD).
func (c *Client) TradeBalance(ctx context.Context, asset string) (*core.TradeBalance, error) {
	req := core.NewRequest(core.OpTradeBalance).SetParamIf(asset != "", "asset", asset)

	var out core.TradeBalance
	if err := c.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OpenOrders supports WithTrades and WithUserRef.
func (c *Client) OpenOrders(ctx context.Context, opts ...CallOption) (*core.OpenOrders, error) {
	req := core.NewRequest(core.OpOpenOrders)
	applyOptions(opts...).apply(req)

	var out core.OpenOrders
	if err := c.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClosedOrders supports WithTrades, WithUserRef, WithTimeRange, WithOffset and WithCloseTime.
func (c *Client) ClosedOrders(ctx context.Context, opts ...CallOption) (*core.ClosedOrders, error) {
	req := core.NewRequest(core.OpClosedOrders)
	applyOptions(opts...).apply(req)

	var out core.ClosedOrders
	if err := c.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QueryOrders returns the orders with the given transaction ids.
func (c *Client) QueryOrders(ctx context.Context, txids []string, opts ...CallOption) (map[string]core.OrderInfo, error) {
	if len(txids) == 0 {
		return nil, fmt.Errorf("%s: at least one txid required", core.OpQueryOrders)
	}
	req := core.NewRequest(core.OpQueryOrders).SetParam("txid", txids)
	applyOptions(opts...).apply(req)

	var out map[string]core.OrderInfo
	if err := c.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TradesHistory supports WithTimeRange and WithOffset.
func (c *Client) TradesHistory(ctx context.Context, opts ...CallOption) (*core.TradesHistory, error) {
	req := core.NewRequest(core.OpTradesHistory)
	applyOptions(opts...).apply(req)

	var out core.TradesHistory
	if err := c.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QueryTrades returns the trades with the given transaction ids.
func (c *Client) QueryTrades(ctx context.Context, txids []string) (map[string]core.TradeInfo, error) {
	if len(txids) == 0 {
		return nil, fmt.Errorf("%s: at least one txid required", core.OpQueryTrades)
	}
	req := core.NewRequest(core.OpQueryTrades).SetParam("txid", txids)

	var out map[string]core.TradeInfo
	if err := c.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ledgers supports WithAsset, WithTimeRange and WithOffset.
func (c *Client) Ledgers(ctx context.Context, opts ...CallOption) (*core.Ledgers, error) {
	req := core.NewRequest(core.OpLedgers)
	applyOptions(opts...).apply(req)

	var out core.Ledgers
	if err := c.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
