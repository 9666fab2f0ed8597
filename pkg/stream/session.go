package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"krakenkit/internal/metrics"
	"krakenkit/internal/ratelimit"
	"krakenkit/internal/ws"
	"krakenkit/pkg/core"
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithMetrics records frame and state activity.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// Session manages one streaming connection at a time. A writer goroutine is the
// only caller of Transport.Send, and a reader goroutine is the only caller of
// Transport.Receive. Callers and the reader feed the writer through one
// bounded outbound queue.
//
// A session that ended in Closed or Failed can be connected again. It never
// reconnects on its own.
type Session struct {
	id       string
	config   Config
	dialer   ws.Dialer
	throttle *ratelimit.Throttle
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	state ws.State

	mu   sync.Mutex
	conn *connection
}

// command is one queued outbound frame, labeled for logs and metrics.
type command struct {
	kind  string
	frame ws.Frame
}

// connection holds everything that lives exactly as long as one transport.
type connection struct {
	transport ws.Transport
	outbound  chan command
	inbound   chan Result

	// ctx is cancelled on teardown; its Done channel stops both pumps.
	ctx    context.Context
	cancel context.CancelFunc

	wg        sync.WaitGroup
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

// NewSession creates a disconnected session that dials through dialer.
func NewSession(config Config, dialer ws.Dialer, opts ...Option) *Session {
	config.applyDefaults()
	s := &Session{
		id:       uuid.NewString(),
		config:   config,
		dialer:   dialer,
		throttle: ratelimit.NewThrottle(config.CommandRate, config.CommandPeriod),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("session", s.id).Logger()
	s.state.Store(StateDisconnected)
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current connection state.
func (s *Session) State() ConnState {
	return s.state.Load()
}

// Err returns the error that moved the most recent connection to Failed, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	c := s.conn
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.failure()
}

// Connect dials the transport and starts the pumps. The returned channel
// delivers classified messages in wire order and is closed when the
// connection ends. If the connection failed, the last value received before
// the close carries the error, unless the consumer had fallen too far behind.
func (s *Session) Connect(ctx context.Context) (<-chan Result, error) {
	s.mu.Lock()
	current := s.state.Load()
	if current != StateDisconnected && !current.IsTerminal() {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot connect while %s", core.ErrInvalidState, current)
	}
	s.conn = nil
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()

	s.logger.Debug().Str("url", s.config.URL).Msg("connecting")
	transport, err := s.dialer.Dial(ctx, s.config.URL)
	if err != nil {
		s.mu.Lock()
		s.setStateLocked(StateFailed)
		s.mu.Unlock()
		s.logger.Error().Err(err).Str("url", s.config.URL).Msg("connect failed")
		return nil, fmt.Errorf("%w: %w", core.ErrConnectionFailed, err)
	}

	c := &connection{
		transport: transport,
		outbound:  make(chan command, s.config.BufferSize),
		inbound:   make(chan Result, s.config.BufferSize),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	s.mu.Lock()
	s.conn = c
	s.setStateLocked(StateConnected)
	s.mu.Unlock()

	c.wg.Go(func() { s.writePump(c) })
	c.wg.Go(func() { s.readPump(c) })

	s.logger.Info().Str("url", s.config.URL).Msg("stream connected")
	return c.inbound, nil
}

// Subscribe queues a subscribe command.
func (s *Session) Subscribe(ctx context.Context, req *SubscribeRequest) error {
	return s.sendRequest(ctx, req, EventSubscribe)
}

// Unsubscribe queues an unsubscribe command.
func (s *Session) Unsubscribe(ctx context.Context, req *SubscribeRequest) error {
	return s.sendRequest(ctx, req, EventUnsubscribe)
}

func (s *Session) sendRequest(ctx context.Context, req *SubscribeRequest, event string) error {
	c, err := s.active()
	if err != nil {
		return err
	}
	if req == nil {
		return fmt.Errorf("%s: nil request", event)
	}

	wire := *req
	wire.Event = event
	if err := wire.Validate(); err != nil {
		return err
	}
	data, err := sonic.Marshal(&wire)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}
	return s.enqueue(ctx, c, command{kind: event, frame: ws.TextFrame(data)})
}

// Ping queues a transport-level ping.
func (s *Session) Ping(ctx context.Context) error {
	c, err := s.active()
	if err != nil {
		return err
	}
	return s.enqueue(ctx, c, command{kind: "ping", frame: ws.PingFrame()})
}

// Close marks the session Closing and queues a close frame. Subscribe and
// Unsubscribe fail from this point on. The connection finishes when the peer
// answers with its own close frame or after Config.CloseTimeout.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	current := s.state.Load()
	if current == StateClosing {
		s.mu.Unlock()
		return nil
	}
	if current != StateConnected || s.conn == nil {
		s.mu.Unlock()
		return core.ErrNotConnected
	}
	c := s.conn
	s.setStateLocked(StateClosing)
	s.mu.Unlock()

	if err := s.enqueue(ctx, c, command{kind: "close", frame: ws.CloseFrame()}); err != nil {
		// Nothing was queued, so the connection is still usable and Close can be retried.
		s.mu.Lock()
		if s.conn == c && s.state.CompareAndSwap(StateClosing, StateConnected) {
			s.metrics.SessionTransition(StateClosing.String(), StateConnected.String())
			s.logger.Debug().Err(err).Msg("close not queued, back to connected")
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// Wait blocks until both pumps of the current connection have exited.
func (s *Session) Wait() {
	s.mu.Lock()
	c := s.conn
	s.mu.Unlock()
	if c != nil {
		c.wg.Wait()
	}
}

func (s *Session) active() (*connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Load() != StateConnected || s.conn == nil {
		return nil, core.ErrNotConnected
	}
	return s.conn, nil
}

func (s *Session) enqueue(ctx context.Context, c *connection, cmd command) error {
	select {
	case c.outbound <- cmd:
		s.metrics.QueueBacklog("outbound", len(c.outbound))
		return nil
	case <-c.ctx.Done():
		return fmt.Errorf("%w: %s: connection ended", core.ErrSendFailed, cmd.kind)
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %w", core.ErrSendFailed, cmd.kind, ctx.Err())
	}
}

func (s *Session) writePump(c *connection) {
	for {
		var cmd command
		select {
		case <-c.ctx.Done():
			return
		case cmd = <-c.outbound:
		}

		if cmd.frame.Type != ws.FramePong && cmd.frame.Type != ws.FrameClose {
			if err := s.throttle.Wait(c.ctx); err != nil {
				return
			}
		}

		if err := c.transport.Send(cmd.frame); err != nil {
			s.logger.Error().Err(err).Str("kind", cmd.kind).Msg("write failed")
			s.finish(c, fmt.Errorf("%w: write %s: %w", core.ErrTransport, cmd.kind, err))
			return
		}
		s.metrics.FrameSent(cmd.kind)
		s.logger.Debug().Str("kind", cmd.kind).Msg("frame sent")

		if cmd.frame.Type == ws.FrameClose {
			c.wg.Go(func() { s.awaitClose(c) })
		}
	}
}

// awaitClose tears c down if the peer has not answered a close frame in time.
func (s *Session) awaitClose(c *connection) {
	timer := time.NewTimer(s.config.CloseTimeout)
	defer timer.Stop()
	select {
	case <-timer.C:
		s.logger.Warn().Dur("timeout", s.config.CloseTimeout).Msg("no close reply from peer")
		s.finish(c, nil)
	case <-c.ctx.Done():
	}
}

func (s *Session) readPump(c *connection) {
	defer func() {
		if err := c.failure(); err != nil {
			select {
			case c.inbound <- Result{Err: err}:
			default:
				s.logger.Warn().Err(err).Msg("inbound queue full, dropping final error")
			}
		}
		close(c.inbound)
	}()

	for {
		frame, err := c.transport.Receive()
		if err != nil {
			if c.ctx.Err() != nil || errors.Is(err, ws.ErrClosed) {
				s.finish(c, nil)
			} else {
				s.logger.Error().Err(err).Msg("read failed")
				s.finish(c, fmt.Errorf("%w: read: %w", core.ErrTransport, err))
			}
			return
		}

		switch frame.Type {
		case ws.FrameText:
			msg, err := Classify(frame.Data)
			kind := "invalid"
			if msg != nil {
				kind = msg.Kind().String()
			}
			s.metrics.FrameReceived(kind)

			select {
			case c.inbound <- Result{Message: msg, Err: err}:
				s.metrics.QueueBacklog("inbound", len(c.inbound))
			case <-c.ctx.Done():
				return
			}

		case ws.FramePing:
			s.metrics.FrameReceived("ping")
			select {
			case c.outbound <- command{kind: "pong", frame: ws.PongFrame(frame.Data)}:
			case <-c.ctx.Done():
				return
			}

		case ws.FramePong:
			s.metrics.FrameReceived("pong")

		case ws.FrameClose:
			s.metrics.FrameReceived("close")
			s.logger.Info().Msg("close frame received")
			s.finish(c, nil)
			return

		default:
			s.logger.Debug().Int("bytes", len(frame.Data)).Stringer("type", frame.Type).Msg("ignoring frame")
		}
	}
}

// finish ends c. A nil cause is an orderly close. A non-nil cause fails the
// session unless a close was already in progress.
func (s *Session) finish(c *connection, cause error) {
	s.mu.Lock()
	if s.conn == c {
		current := s.state.Load()
		if !current.IsTerminal() {
			if cause != nil && current != StateClosing {
				c.fail(cause)
				s.setStateLocked(StateFailed)
			} else {
				s.setStateLocked(StateClosed)
			}
		}
	}
	s.mu.Unlock()

	c.closeOnce.Do(func() {
		c.cancel()
		if err := c.transport.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("transport close")
		}
	})
}

func (s *Session) setStateLocked(to ConnState) {
	from := s.state.Load()
	if from == to {
		return
	}
	s.state.Store(to)
	s.metrics.SessionTransition(sessionGaugeLabel(from), to.String())
	s.logger.Debug().Stringer("from", from).Stringer("to", to).Msg("state change")
}

func sessionGaugeLabel(state ConnState) string {
	if state == StateDisconnected {
		return ""
	}
	return state.String()
}

func (c *connection) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}

func (c *connection) failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
