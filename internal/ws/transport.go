// Package ws provides the duplex frame transports used by streaming sessions.
//
// A Transport is deliberately small: a session owns exactly one writer goroutine
// calling Send and one reader goroutine calling Receive, so implementations only
// need to be safe for that pairing plus a concurrent Close.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ErrClosed is returned by Receive after the transport has been shut down locally.
var ErrClosed = errors.New("transport closed")

// FrameType identifies the kind of a websocket frame.
type FrameType int

// Frame types carried over a Transport.
const (
	FrameText FrameType = iota
	FrameBinary
	FramePing
	FramePong
	FrameClose
)

// String returns the string representation of the frame type.
func (t FrameType) String() string {
	return [...]string{"text", "binary", "ping", "pong", "close"}[t]
}

// Frame is one discrete unit of data sent or received over a Transport.
type Frame struct {
	Type FrameType
	Data []byte
}

// TextFrame returns a text frame holding data.
func TextFrame(data []byte) Frame {
	return Frame{Type: FrameText, Data: data}
}

// PingFrame returns an empty ping control frame.
func PingFrame() Frame {
	return Frame{Type: FramePing}
}

// PongFrame returns a pong control frame echoing payload.
func PongFrame(payload []byte) Frame {
	return Frame{Type: FramePong, Data: payload}
}

// CloseFrame returns a normal-closure control frame.
func CloseFrame() Frame {
	return Frame{Type: FrameClose}
}

// Transport is an established duplex frame channel.
type Transport interface {
	// Send writes one frame. Only one goroutine may call Send at a time.
	Send(frame Frame) error
	// Receive blocks until the next frame arrives or the transport ends.
	// Only one goroutine may call Receive at a time.
	Receive() (Frame, error)
	// Close tears the transport down and unblocks Receive.
	Close() error
}

// Dialer establishes transports.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, url string) (Transport, error)

// Dial calls f(ctx, url).
func (f DialerFunc) Dial(ctx context.Context, url string) (Transport, error) {
	return f(ctx, url)
}

// Transport implementation names accepted by NewDialer.
const (
	KindGWS     = "gws"
	KindGorilla = "gorilla"
)

// DialConfig holds options shared by the transport implementations.
type DialConfig struct {
	// Header is sent with the websocket handshake.
	Header http.Header
	// HandshakeTimeout bounds the opening handshake. Defaults to 10s.
	HandshakeTimeout time.Duration
	// ReadTimeout, when positive, fails the transport if no frame arrives for that long.
	// Zero leaves reads unbounded, so a silent peer stalls the reader indefinitely.
	ReadTimeout time.Duration
	// WriteTimeout bounds control-frame writes where the library supports it. Defaults to 5s.
	WriteTimeout time.Duration
	// Logger receives transport-level diagnostics.
	Logger zerolog.Logger
}

func (c *DialConfig) applyDefaults() {
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Second
	}
}

// NewDialer returns the dialer registered under kind.
func NewDialer(kind string, config DialConfig) (Dialer, error) {
	config.applyDefaults()
	switch kind {
	case "", KindGWS:
		return &gwsDialer{config: config}, nil
	case KindGorilla:
		return &gorillaDialer{config: config}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", kind)
	}
}
