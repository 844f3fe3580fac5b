package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/time/rate"
)

// NATSSession receives patches from a NATS subject and publishes control
// commands to another. Reconnects are handled by the NATS client.
type NATSSession struct {
	id             string
	url            string
	patchSubject   string
	controlSubject string
	opts           Options
	logger         *slog.Logger

	events  chan Event
	done    chan struct{}
	closing chan struct{}
	state   atomic.Uint32
	limiter *rate.Limiter

	mu      sync.Mutex
	started bool
	closed  bool
	conn    *nats.Conn
	sub     *nats.Subscription
}

// NewNATS creates a NATS backed session. The connection is opened by Start.
func NewNATS(url, patchSubject, controlSubject string, opts Options) (*NATSSession, error) {
	if url == "" {
		return nil, errors.New("nats url is required")
	}
	if patchSubject == "" || controlSubject == "" {
		return nil, errors.New("nats patch and control subjects are required")
	}
	opts.withDefaults()

	id := newSessionID()
	s := &NATSSession{
		id:             id,
		url:            url,
		patchSubject:   patchSubject,
		controlSubject: controlSubject,
		opts:           opts,
		logger:         opts.Logger.With("component", "transport", "kind", "nats", "session", id),
		events:         make(chan Event, opts.EventBuffer),
		done:           make(chan struct{}),
		closing:        make(chan struct{}),
		limiter:        opts.limiter(),
	}
	s.state.Store(uint32(StateDisconnected))
	return s, nil
}

// ID returns the session identifier used in logs.
func (s *NATSSession) ID() string { return s.id }

// Events returns the inbound stream.
func (s *NATSSession) Events() <-chan Event { return s.events }

// Done is closed once the session has stopped for good.
func (s *NATSSession) Done() <-chan struct{} { return s.done }

// State returns the current lifecycle state.
func (s *NATSSession) State() State { return State(s.state.Load()) }

// Start connects and subscribes to the patch subject. An unreachable server
// is retried in the background rather than failing Start.
func (s *NATSSession) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}

	maxReconnects := -1
	if s.opts.ReconnectMin <= 0 {
		maxReconnects = 0
	}
	s.setState(StateConnecting, nil)
	nc, err := nats.Connect(s.url,
		nats.Name("soupview-"+s.id),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(s.opts.ReconnectMin),
		nats.Timeout(s.handshakeTimeout()),
		nats.ConnectHandler(func(nc *nats.Conn) {
			s.logger.Info("connected", "url", nc.ConnectedUrl())
			s.setState(StateConnected, nil)
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			s.logger.Warn("disconnected", "error", err)
			s.setState(StateDisconnected, err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			s.logger.Info("reconnected", "url", nc.ConnectedUrl())
			s.setState(StateConnected, nil)
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			s.finish()
		}),
	)
	if err != nil {
		s.setState(StateError, err)
		return fmt.Errorf("connecting to nats: %w", err)
	}

	sub, err := nc.Subscribe(s.patchSubject, func(m *nats.Msg) {
		s.emit(Event{Kind: EventMessage, Data: m.Data, At: time.Now()})
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("subscribing to %s: %w", s.patchSubject, err)
	}

	s.started = true
	s.conn = nc
	s.sub = sub
	if nc.IsConnected() {
		// The subscription is live on the server once the flush returns.
		if err := nc.FlushTimeout(s.handshakeTimeout()); err != nil {
			s.logger.Warn("flushing subscription", "error", err)
		}
		s.setState(StateConnected, nil)
	}

	context.AfterFunc(ctx, func() { s.Close() })
	return nil
}

func (s *NATSSession) handshakeTimeout() time.Duration {
	if s.opts.HandshakeTimeout > 0 {
		return s.opts.HandshakeTimeout
	}
	return nats.DefaultTimeout
}

func (s *NATSSession) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.closing:
	}
}

func (s *NATSSession) setState(st State, cause error) {
	if State(s.state.Swap(uint32(st))) == st && cause == nil {
		return
	}
	s.emit(Event{Kind: EventState, State: st, Err: cause, At: time.Now()})
}

// finish runs once the NATS connection is closed for good.
func (s *NATSSession) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return
	default:
	}
	s.state.Store(uint32(StateClosed))
	if !s.closed {
		s.closed = true
		close(s.closing)
	}
	close(s.done)
	s.logger.Info("session closed")
}

// Send publishes a control command.
func (s *NATSSession) Send(ctx context.Context, cmd Command) error {
	s.mu.Lock()
	nc, closed := s.conn, s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if nc == nil || !nc.IsConnected() {
		return ErrNotConnected
	}

	data, err := Encode(cmd)
	if err != nil {
		return err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting to send %s: %w", cmd.Type(), err)
	}
	if err := nc.Publish(s.controlSubject, data); err != nil {
		return fmt.Errorf("publishing %s: %w", cmd.Type(), err)
	}
	return nil
}

// Close unsubscribes and closes the connection. It is safe to call more
// than once.
func (s *NATSSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return nil
	}
	s.closed = true
	close(s.closing)
	nc, sub := s.conn, s.sub
	s.mu.Unlock()

	if nc == nil {
		s.finish()
		return nil
	}
	if sub != nil {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			s.logger.Debug("unsubscribe failed", "error", err)
		}
	}
	// ClosedHandler calls finish.
	nc.Close()
	<-s.done
	return nil
}
