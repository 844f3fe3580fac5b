package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const writeWait = 5 * time.Second

// WebSocketSession connects to the simulation over a websocket and
// reconnects with exponential backoff when the connection drops.
type WebSocketSession struct {
	id     string
	url    string
	opts   Options
	logger *slog.Logger
	dialer *websocket.Dialer

	events  chan Event
	done    chan struct{}
	closing chan struct{}

	state atomic.Uint32

	// mu guards the start/close lifecycle.
	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc

	// writeMu serializes writes and guards conn.
	writeMu sync.Mutex
	conn    *websocket.Conn

	limiter *rate.Limiter
}

// NewWebSocket creates a session for the given ws:// or wss:// URL. The
// connection is not opened until Start.
func NewWebSocket(rawURL string, opts Options) (*WebSocketSession, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing websocket url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("websocket url %q: scheme must be ws or wss", rawURL)
	}
	opts.withDefaults()

	id := newSessionID()
	s := &WebSocketSession{
		id:      id,
		url:     rawURL,
		opts:    opts,
		logger:  opts.Logger.With("component", "transport", "kind", "ws", "session", id),
		events:  make(chan Event, opts.EventBuffer),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
		limiter: opts.limiter(),
		dialer: &websocket.Dialer{
			HandshakeTimeout: opts.HandshakeTimeout,
		},
	}
	s.state.Store(uint32(StateDisconnected))
	return s, nil
}

// ID returns the session identifier used in logs.
func (s *WebSocketSession) ID() string { return s.id }

// Events returns the inbound stream.
func (s *WebSocketSession) Events() <-chan Event { return s.events }

// Done is closed once the session has stopped for good.
func (s *WebSocketSession) Done() <-chan struct{} { return s.done }

// State returns the current lifecycle state.
func (s *WebSocketSession) State() State { return State(s.state.Load()) }

// Start begins connecting in the background.
func (s *WebSocketSession) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
	return nil
}

func (s *WebSocketSession) run(ctx context.Context) {
	defer close(s.done)
	defer s.setState(ctx, StateClosed, nil)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.opts.ReconnectMin
	bo.MaxInterval = s.opts.ReconnectMax
	bo.MaxElapsedTime = 0
	bo.Reset()

	for {
		s.setState(ctx, StateConnecting, nil)
		conn, resp, err := s.dialer.DialContext(ctx, s.url, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("dial failed", "url", s.url, "error", err)
			s.setState(ctx, StateError, err)
		} else {
			bo.Reset()
			s.setConn(conn)
			s.setState(ctx, StateConnected, nil)
			s.logger.Info("connected", "url", s.url)

			stop := context.AfterFunc(ctx, func() { conn.Close() })
			err = s.readLoop(ctx, conn)
			stop()

			s.setConn(nil)
			conn.Close()
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("connection lost", "error", err)
			s.setState(ctx, StateDisconnected, err)
		}

		if s.opts.ReconnectMin <= 0 {
			return
		}
		wait := bo.NextBackOff()
		s.logger.Debug("reconnecting", "backoff", wait)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *WebSocketSession) readLoop(ctx context.Context, conn *websocket.Conn) error {
	if s.opts.ReadLimit > 0 {
		conn.SetReadLimit(s.opts.ReadLimit)
	}
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		if !s.emit(ctx, Event{Kind: EventMessage, Data: data, At: time.Now()}) {
			return ctx.Err()
		}
	}
}

// emit delivers ev unless the session is shutting down.
func (s *WebSocketSession) emit(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	case <-s.closing:
		return false
	}
}

func (s *WebSocketSession) setState(ctx context.Context, st State, cause error) {
	if State(s.state.Swap(uint32(st))) == st && cause == nil {
		return
	}
	ev := Event{Kind: EventState, State: st, Err: cause, At: time.Now()}
	if ctx.Err() != nil {
		// Best effort once shutting down; nobody may be reading.
		select {
		case s.events <- ev:
		default:
		}
		return
	}
	select {
	case s.events <- ev:
	case <-ctx.Done():
	case <-s.closing:
	}
}

func (s *WebSocketSession) setConn(c *websocket.Conn) {
	s.writeMu.Lock()
	s.conn = c
	s.writeMu.Unlock()
}

// Send writes a control command to the server.
func (s *WebSocketSession) Send(ctx context.Context, cmd Command) error {
	select {
	case <-s.closing:
		return ErrClosed
	case <-s.done:
		return ErrClosed
	default:
	}
	data, err := Encode(cmd)
	if err != nil {
		return err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting to send %s: %w", cmd.Type(), err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("sending %s: %w", cmd.Type(), err)
	}
	s.logger.Debug("command sent", "type", cmd.Type())
	return nil
}

// Close stops the session and waits for the read loop to exit. It is safe
// to call more than once.
func (s *WebSocketSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return nil
	}
	s.closed = true
	close(s.closing)
	started := s.started
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.writeMu.Lock()
	if s.conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		s.conn.Close()
	}
	s.writeMu.Unlock()

	if !started {
		s.state.Store(uint32(StateClosed))
		close(s.done)
	}
	<-s.done
	s.logger.Info("session closed")
	return nil
}
