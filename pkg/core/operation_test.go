package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"krakenkit/internal/ratelimit"
)

func TestOperation_Metadata(t *testing.T) {
	tests := []struct {
		op      Operation
		path    string
		tier    ratelimit.Tier
		private bool
	}{
		{OpServerTime, "/0/public/Time", ratelimit.Tier1, false},
		{OpAssets, "/0/public/Assets", ratelimit.Tier1, false},
		{OpAssetPairs, "/0/public/AssetPairs", ratelimit.Tier1, false},
		{OpTicker, "/0/public/Ticker", ratelimit.Tier1, false},
		{OpOHLC, "/0/public/OHLC", ratelimit.Tier1, false},
		{OpOrderBook, "/0/public/Depth", ratelimit.Tier1, false},
		{OpTrades, "/0/public/Trades", ratelimit.Tier1, false},
		{OpBalance, "/0/private/Balance", ratelimit.Tier2, true},
		{OpTradeBalance, "/0/private/TradeBalance", ratelimit.Tier2, true},
		{OpOpenOrders, "/0/private/OpenOrders", ratelimit.Tier2, true},
		{OpClosedOrders, "/0/private/ClosedOrders", ratelimit.Tier2, true},
		{OpQueryOrders, "/0/private/QueryOrders", ratelimit.Tier2, true},
		{OpTradesHistory, "/0/private/TradesHistory", ratelimit.Tier3, true},
		{OpQueryTrades, "/0/private/QueryTrades", ratelimit.Tier3, true},
		{OpLedgers, "/0/private/Ledgers", ratelimit.Tier3, true},
		{OpAddOrder, "/0/private/AddOrder", ratelimit.Tier4, true},
		{OpCancelOrder, "/0/private/CancelOrder", ratelimit.Tier4, true},
		{OpCancelAll, "/0/private/CancelAll", ratelimit.Tier4, true},
	}

	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			assert.Equal(t, tt.path, tt.op.Path())
			assert.Equal(t, tt.tier, tt.op.Tier())
			assert.Equal(t, tt.private, tt.op.IsPrivate())
		})
	}
}
