package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// The venue encodes prices and volumes as strings and timestamps as fractional
// Unix seconds, inside positional arrays. The helpers below accept the untyped
// values produced by a UseNumber JSON decode (string, json.Number, float64).

// DecimalOf converts an untyped JSON scalar to a decimal.
func DecimalOf(v any) (apd.Decimal, error) {
	var d apd.Decimal
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case json.Number:
		s = x.String()
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		d.SetInt64(x)
		return d, nil
	default:
		return d, fmt.Errorf("decimal: unexpected %T", v)
	}
	if _, _, err := d.SetString(s); err != nil {
		return d, fmt.Errorf("decimal %q: %w", s, err)
	}
	return d, nil
}

// TimeOf converts fractional Unix seconds to a time.
func TimeOf(v any) (time.Time, error) {
	var f float64
	var err error
	switch x := v.(type) {
	case string:
		f, err = strconv.ParseFloat(x, 64)
	case json.Number:
		f, err = x.Float64()
	case float64:
		f = x
	case int64:
		f = float64(x)
	default:
		return time.Time{}, fmt.Errorf("time: unexpected %T", v)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("time: %w", err)
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e6))*int64(time.Microsecond)), nil
}

// IntOf converts an untyped JSON scalar to an int64.
func IntOf(v any) (int64, error) {
	switch x := v.(type) {
	case json.Number:
		return x.Int64()
	case float64:
		return int64(x), nil
	case int64:
		return x, nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	default:
		return 0, fmt.Errorf("int: unexpected %T", v)
	}
}

func arrayOf(v any, min int) ([]any, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", v)
	}
	if len(arr) < min {
		return nil, fmt.Errorf("expected at least %d elements, got %d", min, len(arr))
	}
	return arr, nil
}

// LevelOf parses a [price, volume, timestamp, ...] book entry.
func LevelOf(v any) (OrderBookLevel, error) {
	var level OrderBookLevel
	arr, err := arrayOf(v, 3)
	if err != nil {
		return level, fmt.Errorf("book level: %w", err)
	}
	if level.Price, err = DecimalOf(arr[0]); err != nil {
		return level, err
	}
	if level.Volume, err = DecimalOf(arr[1]); err != nil {
		return level, err
	}
	if level.Timestamp, err = TimeOf(arr[2]); err != nil {
		return level, err
	}
	return level, nil
}

// LevelsOf parses a list of book entries.
func LevelsOf(v any) ([]OrderBookLevel, error) {
	if v == nil {
		return nil, nil
	}
	arr, err := arrayOf(v, 0)
	if err != nil {
		return nil, err
	}
	levels := make([]OrderBookLevel, 0, len(arr))
	for _, entry := range arr {
		level, err := LevelOf(entry)
		if err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	return levels, nil
}

// TradeOf parses a [price, volume, time, side, ordertype, misc, ...] trade entry.
func TradeOf(v any) (PublicTrade, error) {
	var trade PublicTrade
	arr, err := arrayOf(v, 6)
	if err != nil {
		return trade, fmt.Errorf("trade: %w", err)
	}
	if trade.Price, err = DecimalOf(arr[0]); err != nil {
		return trade, err
	}
	if trade.Volume, err = DecimalOf(arr[1]); err != nil {
		return trade, err
	}
	if trade.Time, err = TimeOf(arr[2]); err != nil {
		return trade, err
	}
	side, _ := arr[3].(string)
	if err := trade.Side.UnmarshalJSON([]byte(side)); err != nil {
		return trade, err
	}
	orderType, _ := arr[4].(string)
	if err := trade.OrderType.UnmarshalJSON([]byte(orderType)); err != nil {
		return trade, err
	}
	trade.Misc, _ = arr[5].(string)
	return trade, nil
}

// CandleOf parses a [time, open, high, low, close, vwap, volume, count] entry.
func CandleOf(v any) (Candle, error) {
	var c Candle
	arr, err := arrayOf(v, 8)
	if err != nil {
		return c, fmt.Errorf("candle: %w", err)
	}
	if c.Time, err = TimeOf(arr[0]); err != nil {
		return c, err
	}
	fields := []*apd.Decimal{&c.Open, &c.High, &c.Low, &c.Close, &c.VWAP, &c.Volume}
	for i, dst := range fields {
		if *dst, err = DecimalOf(arr[i+1]); err != nil {
			return c, err
		}
	}
	if c.Count, err = IntOf(arr[7]); err != nil {
		return c, err
	}
	return c, nil
}

// TickerOf builds a Ticker from the venue's compact ticker object
// (a/b/c/v/p/t/l/h/o keys, each an array whose second element covers 24h).
func TickerOf(pair string, fields map[string]any) (Ticker, error) {
	t := Ticker{Pair: pair, Timestamp: time.Now()}

	pick := func(key string, idx int, dst *apd.Decimal) error {
		arr, err := arrayOf(fields[key], idx+1)
		if err != nil {
			return fmt.Errorf("ticker %s: %w", key, err)
		}
		d, err := DecimalOf(arr[idx])
		if err != nil {
			return fmt.Errorf("ticker %s: %w", key, err)
		}
		*dst = d
		return nil
	}

	steps := []struct {
		key string
		idx int
		dst *apd.Decimal
	}{
		{"a", 0, &t.Ask},
		{"b", 0, &t.Bid},
		{"c", 0, &t.Last},
		{"v", 1, &t.Volume},
		{"p", 1, &t.VWAP},
		{"l", 1, &t.Low},
		{"h", 1, &t.High},
	}
	for _, s := range steps {
		if err := pick(s.key, s.idx, s.dst); err != nil {
			return t, err
		}
	}

	// "o" is a bare string on REST and a [today, 24h] pair on the stream.
	switch open := fields["o"].(type) {
	case []any:
		if err := pick("o", 0, &t.Open); err != nil {
			return t, err
		}
	case nil:
	default:
		d, err := DecimalOf(open)
		if err != nil {
			return t, fmt.Errorf("ticker o: %w", err)
		}
		t.Open = d
	}

	if arr, err := arrayOf(fields["t"], 2); err == nil {
		t.Trades, _ = IntOf(arr[1])
	}
	return t, nil
}
