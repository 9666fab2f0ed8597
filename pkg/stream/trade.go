package stream

import (
	"fmt"
	"strings"

	"krakenkit/pkg/core"
)

// DecodeTrades converts a trade channel push into individual trades.
func DecodeTrades(d DataArray) ([]core.PublicTrade, error) {
	if d.ChannelName() != string(ChannelTrade) {
		return nil, fmt.Errorf("not a trade push: %q", d.ChannelName())
	}
	payload := d.Payload()
	if len(payload) != 1 {
		return nil, fmt.Errorf("trade push: expected 1 payload element, got %d", len(payload))
	}
	entries, ok := payload[0].([]any)
	if !ok {
		return nil, fmt.Errorf("trade push: unexpected payload %T", payload[0])
	}

	trades := make([]core.PublicTrade, 0, len(entries))
	for i, entry := range entries {
		trade, err := core.TradeOf(entry)
		if err != nil {
			return nil, fmt.Errorf("trade push entry %d: %w", i, err)
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

// DecodeCandle converts an ohlc channel push. The channel name carries the
// interval ("ohlc-5"), and the payload is
// [time, etime, open, high, low, close, vwap, volume, count].
func DecodeCandle(d DataArray) (core.Candle, error) {
	if !strings.HasPrefix(d.ChannelName(), string(ChannelOHLC)+"-") {
		return core.Candle{}, fmt.Errorf("not an ohlc push: %q", d.ChannelName())
	}
	payload := d.Payload()
	if len(payload) != 1 {
		return core.Candle{}, fmt.Errorf("ohlc push: expected 1 payload element, got %d", len(payload))
	}
	arr, ok := payload[0].([]any)
	if !ok || len(arr) < 9 {
		return core.Candle{}, fmt.Errorf("ohlc push: malformed payload")
	}
	// Drop etime so the layout matches the REST candle.
	row := append([]any{arr[0]}, arr[2:9]...)
	return core.CandleOf(row)
}
