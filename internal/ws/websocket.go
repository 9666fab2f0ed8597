package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lxzan/gws"
	"github.com/rs/zerolog"
)

type gwsDialer struct {
	config DialConfig
}

type gwsDialResult struct {
	conn *gws.Conn
	err  error
}

// Dial performs the websocket handshake and starts the gws read loop.
// The handshake runs in its own goroutine so ctx cancellation is honored.
func (d *gwsDialer) Dial(ctx context.Context, url string) (Transport, error) {
	t := newGWSTransport(d.config)

	resultCh := make(chan gwsDialResult, 1)
	go func() {
		socket, _, err := gws.NewClient(t, &gws.ClientOption{
			Addr:             url,
			RequestHeader:    d.config.Header,
			HandshakeTimeout: d.config.HandshakeTimeout,
		})
		resultCh <- gwsDialResult{conn: socket, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, fmt.Errorf("dial %s: %w", url, res.err)
		}
		t.conn = res.conn
	case <-ctx.Done():
		go func() {
			if res := <-resultCh; res.err == nil {
				_ = res.conn.NetConn().Close()
			}
		}()
		return nil, ctx.Err()
	}

	t.logger.Debug().Str("url", url).Msg("websocket handshake complete")
	go t.conn.ReadLoop()
	return t, nil
}

// gwsTransport bridges gws's callback model onto a pull-based Receive.
// Handlers run synchronously inside ReadLoop, so an unbuffered frames channel
// stops gws from reading further until the consumer has taken the frame.
type gwsTransport struct {
	conn        *gws.Conn
	readTimeout time.Duration
	logger      zerolog.Logger

	frames    chan Frame
	done      chan struct{}
	closeOnce sync.Once
	closeSent atomic.Bool

	mu  sync.Mutex
	err error
}

func newGWSTransport(config DialConfig) *gwsTransport {
	return &gwsTransport{
		readTimeout: config.ReadTimeout,
		logger:      config.Logger,
		frames:      make(chan Frame),
		done:        make(chan struct{}),
	}
}

func (t *gwsTransport) OnOpen(socket *gws.Conn) {
	t.extendDeadline(socket)
}

func (t *gwsTransport) OnClose(socket *gws.Conn, err error) {
	var closeErr *gws.CloseError
	if errors.As(err, &closeErr) || t.closeSent.Load() {
		t.deliver(Frame{Type: FrameClose})
	} else {
		t.fail(err)
	}
	t.shutdown()
}

func (t *gwsTransport) OnPing(socket *gws.Conn, payload []byte) {
	t.extendDeadline(socket)
	t.deliver(Frame{Type: FramePing, Data: append([]byte(nil), payload...)})
}

func (t *gwsTransport) OnPong(socket *gws.Conn, payload []byte) {
	t.extendDeadline(socket)
	t.deliver(Frame{Type: FramePong, Data: append([]byte(nil), payload...)})
}

func (t *gwsTransport) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()
	t.extendDeadline(socket)

	frameType := FrameText
	if message.Opcode == gws.OpcodeBinary {
		frameType = FrameBinary
	}
	// message buffers are pooled by gws and recycled on Close.
	t.deliver(Frame{Type: frameType, Data: append([]byte(nil), message.Bytes()...)})
}

func (t *gwsTransport) extendDeadline(socket *gws.Conn) {
	if t.readTimeout > 0 {
		_ = socket.SetReadDeadline(time.Now().Add(t.readTimeout))
	}
}

func (t *gwsTransport) deliver(frame Frame) {
	select {
	case t.frames <- frame:
	case <-t.done:
	}
}

func (t *gwsTransport) fail(err error) {
	t.mu.Lock()
	if t.err == nil {
		t.err = err
	}
	t.mu.Unlock()
}

func (t *gwsTransport) shutdown() {
	t.closeOnce.Do(func() { close(t.done) })
}

// Send writes frame to the connection.
func (t *gwsTransport) Send(frame Frame) error {
	switch frame.Type {
	case FrameText:
		return t.conn.WriteMessage(gws.OpcodeText, frame.Data)
	case FrameBinary:
		return t.conn.WriteMessage(gws.OpcodeBinary, frame.Data)
	case FramePing:
		return t.conn.WritePing(frame.Data)
	case FramePong:
		return t.conn.WritePong(frame.Data)
	case FrameClose:
		t.closeSent.Store(true)
		t.conn.WriteClose(1000, frame.Data)
		return nil
	default:
		return fmt.Errorf("unsupported frame type %d", frame.Type)
	}
}

// Receive returns the next frame, or the error that ended the connection.
func (t *gwsTransport) Receive() (Frame, error) {
	select {
	case frame := <-t.frames:
		return frame, nil
	case <-t.done:
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.err != nil {
			return Frame{}, t.err
		}
		return Frame{}, ErrClosed
	}
}

// Close releases the underlying connection and unblocks Receive.
func (t *gwsTransport) Close() error {
	t.shutdown()
	if t.conn == nil {
		return nil
	}
	return t.conn.NetConn().Close()
}
