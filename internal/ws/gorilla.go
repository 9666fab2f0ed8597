package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type gorillaDialer struct {
	config DialConfig
}

// Dial connects with gorilla/websocket and starts the background reader.
func (d *gorillaDialer) Dial(ctx context.Context, url string) (Transport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.config.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, d.config.Header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	t := &gorillaTransport{
		conn:         conn,
		readTimeout:  d.config.ReadTimeout,
		writeTimeout: d.config.WriteTimeout,
		logger:       d.config.Logger,
		frames:       make(chan Frame),
		done:         make(chan struct{}),
	}

	// Control frames are surfaced to the consumer instead of being answered here.
	conn.SetPingHandler(func(data string) error {
		t.extendDeadline()
		t.deliver(Frame{Type: FramePing, Data: []byte(data)})
		return nil
	})
	conn.SetPongHandler(func(data string) error {
		t.extendDeadline()
		t.deliver(Frame{Type: FramePong, Data: []byte(data)})
		return nil
	})
	// Replacing the default handler drops gorilla's close echo, so reply here.
	conn.SetCloseHandler(func(code int, text string) error {
		t.closeSeen.Store(true)
		reply := websocket.FormatCloseMessage(code, "")
		if code == websocket.CloseNoStatusReceived {
			reply = websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		}
		if err := conn.WriteControl(websocket.CloseMessage, reply, time.Now().Add(t.writeTimeout)); err != nil &&
			!errors.Is(err, websocket.ErrCloseSent) {
			t.logger.Debug().Err(err).Msg("close reply failed")
		}
		t.deliver(Frame{Type: FrameClose, Data: []byte(text)})
		return nil
	})

	t.extendDeadline()
	go t.readLoop()
	return t, nil
}

type gorillaTransport struct {
	conn         *websocket.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
	logger       zerolog.Logger

	frames    chan Frame
	done      chan struct{}
	closeOnce sync.Once
	closeSeen atomic.Bool

	mu  sync.Mutex
	err error
}

func (t *gorillaTransport) readLoop() {
	defer t.shutdown()
	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			if !t.closeSeen.Load() {
				t.logger.Debug().Err(err).Msg("websocket read failed")
				t.fail(err)
			}
			return
		}
		t.extendDeadline()

		frameType := FrameText
		if messageType == websocket.BinaryMessage {
			frameType = FrameBinary
		}
		t.deliver(Frame{Type: frameType, Data: data})
	}
}

func (t *gorillaTransport) extendDeadline() {
	if t.readTimeout > 0 {
		_ = t.conn.SetReadDeadline(time.Now().Add(t.readTimeout))
	}
}

func (t *gorillaTransport) deliver(frame Frame) {
	select {
	case t.frames <- frame:
	case <-t.done:
	}
}

func (t *gorillaTransport) fail(err error) {
	t.mu.Lock()
	if t.err == nil {
		t.err = err
	}
	t.mu.Unlock()
}

func (t *gorillaTransport) shutdown() {
	t.closeOnce.Do(func() { close(t.done) })
}

// Send writes frame to the connection.
func (t *gorillaTransport) Send(frame Frame) error {
	switch frame.Type {
	case FrameText:
		return t.conn.WriteMessage(websocket.TextMessage, frame.Data)
	case FrameBinary:
		return t.conn.WriteMessage(websocket.BinaryMessage, frame.Data)
	case FramePing:
		return t.conn.WriteControl(websocket.PingMessage, frame.Data, time.Now().Add(t.writeTimeout))
	case FramePong:
		return t.conn.WriteControl(websocket.PongMessage, frame.Data, time.Now().Add(t.writeTimeout))
	case FrameClose:
		payload := websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(frame.Data))
		return t.conn.WriteControl(websocket.CloseMessage, payload, time.Now().Add(t.writeTimeout))
	default:
		return fmt.Errorf("unsupported frame type %d", frame.Type)
	}
}

// Receive returns the next frame, or the error that ended the connection.
func (t *gorillaTransport) Receive() (Frame, error) {
	select {
	case frame := <-t.frames:
		return frame, nil
	case <-t.done:
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.err != nil && !errors.Is(t.err, websocket.ErrCloseSent) {
			return Frame{}, t.err
		}
		return Frame{}, ErrClosed
	}
}

// Close releases the underlying connection and unblocks Receive.
func (t *gorillaTransport) Close() error {
	t.shutdown()
	return t.conn.Close()
}
