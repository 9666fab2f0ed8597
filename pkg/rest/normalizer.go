package rest

import (
	"fmt"
	"sort"

	"krakenkit/pkg/core"
)

// The market data endpoints key their result by the venue's pair name and add a
// "last" cursor next to it. These helpers turn the untyped result into core types.

// splitPairResult returns the single pair entry and the optional "last" cursor.
func splitPairResult(result map[string]any) (pair string, data any, last any, err error) {
	for key, value := range result {
		if key == "last" {
			last = value
			continue
		}
		if pair != "" {
			return "", nil, nil, fmt.Errorf("unexpected extra pair %q in result", key)
		}
		pair, data = key, value
	}
	if pair == "" {
		return "", nil, nil, core.ErrEmptyResult
	}
	return pair, data, last, nil
}

func normalizeOHLC(result map[string]any) (*core.OHLC, error) {
	pair, data, last, err := splitPairResult(result)
	if err != nil {
		return nil, err
	}
	rows, ok := data.([]any)
	if !ok {
		return nil, fmt.Errorf("ohlc %s: unexpected %T", pair, data)
	}

	out := &core.OHLC{Pair: pair, Candles: make([]core.Candle, 0, len(rows))}
	for i, row := range rows {
		candle, err := core.CandleOf(row)
		if err != nil {
			return nil, fmt.Errorf("ohlc %s row %d: %w", pair, i, err)
		}
		out.Candles = append(out.Candles, candle)
	}
	if last != nil {
		out.Last, _ = core.IntOf(last)
	}
	return out, nil
}

func normalizeOrderBook(result map[string]any) (*core.OrderBook, error) {
	pair, data, _, err := splitPairResult(result)
	if err != nil {
		return nil, err
	}
	sides, ok := data.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("depth %s: unexpected %T", pair, data)
	}

	book := &core.OrderBook{Pair: pair}
	if book.Asks, err = core.LevelsOf(sides["asks"]); err != nil {
		return nil, fmt.Errorf("depth %s asks: %w", pair, err)
	}
	if book.Bids, err = core.LevelsOf(sides["bids"]); err != nil {
		return nil, fmt.Errorf("depth %s bids: %w", pair, err)
	}
	return book, nil
}

func normalizeTrades(result map[string]any) (*core.Trades, error) {
	pair, data, last, err := splitPairResult(result)
	if err != nil {
		return nil, err
	}
	rows, ok := data.([]any)
	if !ok {
		return nil, fmt.Errorf("trades %s: unexpected %T", pair, data)
	}

	out := &core.Trades{Pair: pair, Trades: make([]core.PublicTrade, 0, len(rows))}
	for i, row := range rows {
		trade, err := core.TradeOf(row)
		if err != nil {
			return nil, fmt.Errorf("trades %s row %d: %w", pair, i, err)
		}
		out.Trades = append(out.Trades, trade)
	}
	if last != nil {
		out.Last = fmt.Sprint(last)
	}
	return out, nil
}

// normalizeTickers converts every pair in the result, sorted by pair name.
func normalizeTickers(result map[string]map[string]any) ([]core.Ticker, error) {
	pairs := make([]string, 0, len(result))
	for pair := range result {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)

	tickers := make([]core.Ticker, 0, len(pairs))
	for _, pair := range pairs {
		ticker, err := core.TickerOf(pair, result[pair])
		if err != nil {
			return nil, fmt.Errorf("ticker %s: %w", pair, err)
		}
		tickers = append(tickers, ticker)
	}
	return tickers, nil
}

// normalizeBalances drops zero balances and sorts by asset.
func normalizeBalances(result map[string]string) ([]core.Balance, error) {
	balances := make([]core.Balance, 0, len(result))
	for asset, amount := range result {
		d, err := core.DecimalOf(amount)
		if err != nil {
			return nil, fmt.Errorf("balance %s: %w", asset, err)
		}
		if d.IsZero() {
			continue
		}
		balances = append(balances, core.Balance{Asset: asset, Amount: d})
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].Asset < balances[j].Asset })
	return balances, nil
}
