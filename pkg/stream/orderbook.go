package stream

import (
	"fmt"
	"hash/crc32"
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/apd/v3"

	"krakenkit/pkg/core"
)

// BookUpdate is one book channel push.
type BookUpdate struct {
	Pair     string
	Snapshot bool
	Bids     []core.OrderBookLevel
	Asks     []core.OrderBookLevel
	// Checksum is the server's CRC32 of the top ten levels, empty on snapshots.
	Checksum string
}

// DecodeBook converts a book channel push. Snapshots use "as"/"bs" keys;
// updates use "a"/"b" and may split asks and bids across two payload objects.
func DecodeBook(d DataArray) (BookUpdate, error) {
	if !strings.HasPrefix(d.ChannelName(), string(ChannelBook)+"-") {
		return BookUpdate{}, fmt.Errorf("not a book push: %q", d.ChannelName())
	}
	update := BookUpdate{Pair: d.Pair()}
	for _, part := range d.Payload() {
		fields, ok := part.(map[string]any)
		if !ok {
			return BookUpdate{}, fmt.Errorf("book push: unexpected payload %T", part)
		}
		for key, value := range fields {
			var err error
			switch key {
			case "as":
				update.Snapshot = true
				update.Asks, err = core.LevelsOf(value)
			case "bs":
				update.Snapshot = true
				update.Bids, err = core.LevelsOf(value)
			case "a":
				update.Asks, err = core.LevelsOf(value)
			case "b":
				update.Bids, err = core.LevelsOf(value)
			case "c":
				update.Checksum, _ = value.(string)
			}
			if err != nil {
				return BookUpdate{}, fmt.Errorf("book push %s: %w", key, err)
			}
		}
	}
	return update, nil
}

// LocalBook maintains a depth-limited order book from book channel pushes.
type LocalBook struct {
	mu    sync.RWMutex
	pair  string
	depth int
	bids  []core.OrderBookLevel
	asks  []core.OrderBookLevel
}

// NewLocalBook creates an empty book keeping depth levels per side.
func NewLocalBook(pair string, depth int) *LocalBook {
	return &LocalBook{pair: pair, depth: depth}
}

// Apply merges an update. A zero volume removes the level.
func (b *LocalBook) Apply(u BookUpdate) error {
	if u.Pair != "" && u.Pair != b.pair {
		return fmt.Errorf("book for %s got update for %s", b.pair, u.Pair)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if u.Snapshot {
		b.bids, b.asks = nil, nil
	}
	for _, level := range u.Bids {
		b.bids = upsert(b.bids, level, true)
	}
	for _, level := range u.Asks {
		b.asks = upsert(b.asks, level, false)
	}
	if len(b.bids) > b.depth {
		b.bids = b.bids[:b.depth]
	}
	if len(b.asks) > b.depth {
		b.asks = b.asks[:b.depth]
	}
	return nil
}

func upsert(levels []core.OrderBookLevel, level core.OrderBookLevel, descending bool) []core.OrderBookLevel {
	idx, found := slices.BinarySearchFunc(levels, level, func(a, b core.OrderBookLevel) int {
		c := a.Price.Cmp(&b.Price)
		if descending {
			return -c
		}
		return c
	})
	if level.Volume.IsZero() {
		if found {
			return slices.Delete(levels, idx, idx+1)
		}
		return levels
	}
	if found {
		levels[idx] = level
		return levels
	}
	return slices.Insert(levels, idx, level)
}

// Snapshot returns a copy of the current book.
func (b *LocalBook) Snapshot() core.OrderBook {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return core.OrderBook{
		Pair: b.pair,
		Bids: slices.Clone(b.bids),
		Asks: slices.Clone(b.asks),
	}
}

// Checksum computes the CRC32 the server sends with updates: the top ten asks
// then the top ten bids, each as price and volume with the decimal point and
// leading zeros removed.
func (b *LocalBook) Checksum() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var sb strings.Builder
	write := func(levels []core.OrderBookLevel) {
		for i, level := range levels {
			if i == 10 {
				break
			}
			sb.WriteString(checksumDigits(&level.Price))
			sb.WriteString(checksumDigits(&level.Volume))
		}
	}
	write(b.asks)
	write(b.bids)
	return fmt.Sprint(crc32.ChecksumIEEE([]byte(sb.String())))
}

func checksumDigits(d *apd.Decimal) string {
	s := strings.Replace(d.Text('f'), ".", "", 1)
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "0"
	}
	return s
}
