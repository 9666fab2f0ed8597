package stream

import (
	"fmt"

	"krakenkit/pkg/core"
)

// DecodeTicker converts a ticker channel push into a core.Ticker.
func DecodeTicker(d DataArray) (core.Ticker, error) {
	if d.ChannelName() != string(ChannelTicker) {
		return core.Ticker{}, fmt.Errorf("not a ticker push: %q", d.ChannelName())
	}
	payload := d.Payload()
	if len(payload) != 1 {
		return core.Ticker{}, fmt.Errorf("ticker push: expected 1 payload element, got %d", len(payload))
	}
	fields, ok := payload[0].(map[string]any)
	if !ok {
		return core.Ticker{}, fmt.Errorf("ticker push: unexpected payload %T", payload[0])
	}
	return core.TickerOf(d.Pair(), fields)
}

// Spread is the best bid/ask update from the spread channel.
type Spread struct {
	Pair string
	Bid  core.OrderBookLevel
	Ask  core.OrderBookLevel
}

// DecodeSpread converts a spread channel push: [bid, ask, timestamp, bidVolume, askVolume].
func DecodeSpread(d DataArray) (Spread, error) {
	if d.ChannelName() != string(ChannelSpread) {
		return Spread{}, fmt.Errorf("not a spread push: %q", d.ChannelName())
	}
	payload := d.Payload()
	if len(payload) != 1 {
		return Spread{}, fmt.Errorf("spread push: expected 1 payload element, got %d", len(payload))
	}
	arr, ok := payload[0].([]any)
	if !ok || len(arr) < 5 {
		return Spread{}, fmt.Errorf("spread push: malformed payload")
	}

	bid, err := core.LevelOf([]any{arr[0], arr[3], arr[2]})
	if err != nil {
		return Spread{}, fmt.Errorf("spread bid: %w", err)
	}
	ask, err := core.LevelOf([]any{arr[1], arr[4], arr[2]})
	if err != nil {
		return Spread{}, fmt.Errorf("spread ask: %w", err)
	}
	return Spread{
		Pair: d.Pair(),
		Bid:  bid,
		Ask:  ask,
	}, nil
}
