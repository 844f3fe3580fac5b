// Package transport owns the long-lived connection to the simulation server.
// A Session delivers inbound patch messages in arrival order and sends
// control commands back.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pthm-cable/soupview/config"
	"golang.org/x/time/rate"
)

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("transport: session closed")
	// ErrNotConnected is returned by Send while no connection is up.
	ErrNotConnected = errors.New("transport: not connected")
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("transport: session already started")
)

// State is the connection lifecycle state.
type State uint8

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// EventKind distinguishes inbound payloads from lifecycle changes.
type EventKind uint8

const (
	EventMessage EventKind = iota
	EventState
)

// Event is one item of the inbound stream.
type Event struct {
	Kind  EventKind
	Data  []byte // EventMessage only
	State State  // EventState only
	Err   error  // Cause of an error or disconnect, if any
	At    time.Time
}

// Session is a duplex connection to the simulation.
//
// Events are delivered in arrival order on Events until Done is closed. The
// Events channel itself is never closed; consumers select on both.
type Session interface {
	ID() string
	Start(ctx context.Context) error
	Events() <-chan Event
	Done() <-chan struct{}
	State() State
	Send(ctx context.Context, cmd Command) error
	Close() error
}

// Options configures behavior shared by all session implementations.
type Options struct {
	// ReconnectMin is the first backoff delay. Zero disables reconnecting.
	ReconnectMin time.Duration
	ReconnectMax time.Duration

	HandshakeTimeout time.Duration
	ReadLimit        int64

	CommandRate  float64 // Commands per second, zero for unlimited
	CommandBurst int

	EventBuffer int
	Logger      *slog.Logger
}

// OptionsFromConfig builds Options from the transport configuration.
func OptionsFromConfig(cfg config.TransportConfig, logger *slog.Logger) Options {
	return Options{
		ReconnectMin:     cfg.ReconnectMin,
		ReconnectMax:     cfg.ReconnectMax,
		HandshakeTimeout: cfg.HandshakeTimeout,
		ReadLimit:        cfg.ReadLimit,
		CommandRate:      cfg.CommandRate,
		CommandBurst:     cfg.CommandBurst,
		EventBuffer:      cfg.EventBuffer,
		Logger:           logger,
	}
}

func (o *Options) withDefaults() {
	if o.EventBuffer <= 0 {
		o.EventBuffer = 64
	}
	if o.ReconnectMax < o.ReconnectMin {
		o.ReconnectMax = o.ReconnectMin
	}
	if o.CommandBurst <= 0 {
		o.CommandBurst = 1
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

func (o Options) limiter() *rate.Limiter {
	if o.CommandRate <= 0 {
		return rate.NewLimiter(rate.Inf, o.CommandBurst)
	}
	return rate.NewLimiter(rate.Limit(o.CommandRate), o.CommandBurst)
}

// New creates the session selected by cfg.Kind.
func New(cfg config.TransportConfig, logger *slog.Logger) (Session, error) {
	opts := OptionsFromConfig(cfg, logger)
	switch cfg.Kind {
	case "ws", "":
		return NewWebSocket(cfg.URL, opts)
	case "nats":
		return NewNATS(cfg.NATSURL, cfg.PatchSubject, cfg.ControlSubject, opts)
	}
	return nil, fmt.Errorf("transport: unknown kind %q", cfg.Kind)
}

func newSessionID() string {
	return uuid.NewString()
}
