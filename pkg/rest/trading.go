package rest

import (
	"context"
	"fmt"

	"krakenkit/pkg/core"
)

// AddOrder validates and submits order.
func (c *Client) AddOrder(ctx context.Context, order *core.OrderRequest) (*core.AddOrderResult, error) {
	if order == nil {
		return nil, fmt.Errorf("%s: nil order", core.OpAddOrder)
	}
	if err := order.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", core.OpAddOrder, err)
	}
	req := core.NewRequest(core.OpAddOrder).SetParams(order.Params())

	var out core.AddOrderResult
	if err := c.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	c.logger.Info().
		Str("pair", order.Pair).
		Stringer("side", order.Side).
		Strs("txid", out.TxIDs).
		Msg("order placed")
	return &out, nil
}

// CancelOrder cancels by transaction id or user reference.
func (c *Client) CancelOrder(ctx context.Context, txid string) (*core.CancelResult, error) {
	if txid == "" {
		return nil, fmt.Errorf("%s: txid required", core.OpCancelOrder)
	}
	req := core.NewRequest(core.OpCancelOrder).SetParam("txid", txid)

	var out core.CancelResult
	if err := c.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelAll cancels every open order.
func (c *Client) CancelAll(ctx context.Context) (*core.CancelResult, error) {
	var out core.CancelResult
	if err := c.Do(ctx, core.NewRequest(core.OpCancelAll), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
