package core

import "krakenkit/internal/ratelimit"

// Operation identifies a REST method.
type Operation int

// Operation constants, grouped by rate-limit tier.
const (
	// OpServerTime retrieves the server clock.
	OpServerTime Operation = iota
	// OpAssets retrieves asset metadata.
	OpAssets
	// OpAssetPairs retrieves tradable pair metadata.
	OpAssetPairs
	// OpTicker retrieves ticker data for one or more pairs.
	OpTicker
	// OpOHLC retrieves candlestick data.
	OpOHLC
	// OpOrderBook retrieves order book depth.
	OpOrderBook
	// OpTrades retrieves recent public trades.
	OpTrades

	// OpBalance retrieves account balances.
	OpBalance
	// OpTradeBalance retrieves margin and equity summary.
	OpTradeBalance
	// OpOpenOrders retrieves open orders.
	OpOpenOrders
	// OpClosedOrders retrieves closed orders.
	OpClosedOrders
	// OpQueryOrders retrieves orders by transaction id.
	OpQueryOrders

	// OpTradesHistory retrieves the account's trade history.
	OpTradesHistory
	// OpQueryTrades retrieves trades by transaction id.
	OpQueryTrades
	// OpLedgers retrieves ledger entries.
	OpLedgers

	// OpAddOrder submits a new order.
	OpAddOrder
	// OpCancelOrder cancels an open order.
	OpCancelOrder
	// OpCancelAll cancels every open order.
	OpCancelAll
)

type operationInfo struct {
	method  string
	tier    ratelimit.Tier
	private bool
}

var operations = [...]operationInfo{
	OpServerTime:    {"Time", ratelimit.Tier1, false},
	OpAssets:        {"Assets", ratelimit.Tier1, false},
	OpAssetPairs:    {"AssetPairs", ratelimit.Tier1, false},
	OpTicker:        {"Ticker", ratelimit.Tier1, false},
	OpOHLC:          {"OHLC", ratelimit.Tier1, false},
	OpOrderBook:     {"Depth", ratelimit.Tier1, false},
	OpTrades:        {"Trades", ratelimit.Tier1, false},
	OpBalance:       {"Balance", ratelimit.Tier2, true},
	OpTradeBalance:  {"TradeBalance", ratelimit.Tier2, true},
	OpOpenOrders:    {"OpenOrders", ratelimit.Tier2, true},
	OpClosedOrders:  {"ClosedOrders", ratelimit.Tier2, true},
	OpQueryOrders:   {"QueryOrders", ratelimit.Tier2, true},
	OpTradesHistory: {"TradesHistory", ratelimit.Tier3, true},
	OpQueryTrades:   {"QueryTrades", ratelimit.Tier3, true},
	OpLedgers:       {"Ledgers", ratelimit.Tier3, true},
	OpAddOrder:      {"AddOrder", ratelimit.Tier4, true},
	OpCancelOrder:   {"CancelOrder", ratelimit.Tier4, true},
	OpCancelAll:     {"CancelAll", ratelimit.Tier4, true},
}

// String returns the venue's method name.
func (o Operation) String() string {
	return operations[o].method
}

// Tier returns the rate-limit tier the operation is charged to.
func (o Operation) Tier() ratelimit.Tier {
	return operations[o].tier
}

// IsPrivate reports whether the operation requires a signed request.
func (o Operation) IsPrivate() bool {
	return operations[o].private
}

// Path returns the URL path of the operation.
func (o Operation) Path() string {
	if o.IsPrivate() {
		return "/0/private/" + o.String()
	}
	return "/0/public/" + o.String()
}
