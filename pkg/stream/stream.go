// Package stream implements a full-duplex streaming session against the
// exchange's public websocket feed.
package stream

import (
	"time"

	"krakenkit/internal/ws"
)

type ConnState = ws.ConnState

const (
	StateDisconnected = ws.StateDisconnected
	StateConnecting   = ws.StateConnecting
	StateConnected    = ws.StateConnected
	StateClosing      = ws.StateClosing
	StateClosed       = ws.StateClosed
	StateFailed       = ws.StateFailed
)

// Config controls a Session.
type Config struct {
	// URL is the websocket endpoint.
	URL string
	// BufferSize bounds both the outbound command queue and the inbound result queue.
	BufferSize int
	// CloseTimeout is how long Close waits for the peer's close frame before
	// tearing the connection down. Zero selects the default.
	CloseTimeout time.Duration
	// CommandRate and CommandPeriod, when both positive, limit how fast
	// subscribe/unsubscribe/ping frames are written. Pong and close frames are exempt.
	CommandRate   int
	CommandPeriod time.Duration
}

// DefaultConfig returns a Config for url with a 100 element buffer.
func DefaultConfig(url string) Config {
	return Config{
		URL:          url,
		BufferSize:   100,
		CloseTimeout: 5 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	if c.BufferSize <= 0 {
		c.BufferSize = 100
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = 5 * time.Second
	}
}
