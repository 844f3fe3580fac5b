package mocksim

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
)

// Path is the websocket endpoint served by Handler.
const Path = "/ws/simulation"

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServerOptions configures a Server.
type ServerOptions struct {
	TickRate time.Duration // Default 1/60 s
	Logger   *slog.Logger

	// Optional NATS fan-out. Full state is published every FullEvery ticks
	// so late subscribers converge.
	NATS           *nats.Conn
	PatchSubject   string
	ControlSubject string
	FullEvery      int64
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Server steps a Sim and streams its state to websocket clients.
type Server struct {
	sim    *Sim
	opts   ServerOptions
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]*client
}

// NewServer wraps sim.
func NewServer(sim *Sim, opts ServerOptions) *Server {
	if opts.TickRate <= 0 {
		opts.TickRate = time.Second / 60
	}
	if opts.FullEvery <= 0 {
		opts.FullEvery = 300
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		sim:     sim,
		opts:    opts,
		logger:  opts.Logger,
		clients: make(map[string]*client),
	}
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Handler serves the websocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.serveWS)
	return mux
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, sendBuffer)}

	if err := s.register(c); err != nil {
		s.logger.Error("initial state", "error", err)
		conn.Close()
		return
	}
	s.logger.Info("client connected", "client", c.id, "remote", r.RemoteAddr)

	go s.writePump(c)
	s.readPump(c)
}

// register queues the full state before any later broadcast reaches c.
func (s *Server) register(c *client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	full, err := s.sim.Full()
	if err != nil {
		return err
	}
	c.send <- full
	s.clients[c.id] = c
	return nil
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.id]; ok {
		delete(s.clients, c.id)
		close(c.send)
		s.logger.Info("client disconnected", "client", c.id)
	}
}

func (s *Server) readPump(c *client) {
	defer s.unregister(c)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("read failed", "client", c.id, "error", err)
			}
			return
		}
		if err := s.sim.Apply(data); err != nil {
			s.logger.Warn("command rejected", "client", c.id, "error", err)
			continue
		}
		s.logger.Debug("command applied", "client", c.id, "bytes", len(data))
	}
}

func (s *Server) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.logger.Warn("write failed", "client", c.id, "error", err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) broadcast(msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.clients {
		select {
		case c.send <- msg:
		default:
			s.logger.Warn("dropping slow client", "client", id)
			delete(s.clients, id)
			close(c.send)
		}
	}
}

// Run steps the simulation until ctx is done, broadcasting a delta after
// each tick. Connected clients are disconnected on return.
func (s *Server) Run(ctx context.Context) error {
	if s.opts.NATS != nil && s.opts.ControlSubject != "" {
		sub, err := s.opts.NATS.Subscribe(s.opts.ControlSubject, func(m *nats.Msg) {
			if err := s.sim.Apply(m.Data); err != nil {
				s.logger.Warn("command rejected", "subject", m.Subject, "error", err)
			}
		})
		if err != nil {
			return err
		}
		defer sub.Unsubscribe()
	}

	ticker := time.NewTicker(s.opts.TickRate)
	defer ticker.Stop()
	defer s.closeAll()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		s.sim.Step()
		delta, err := s.sim.Delta()
		if err != nil {
			return err
		}
		s.broadcast(delta)
		s.publish(delta)
	}
}

func (s *Server) publish(delta []byte) {
	nc := s.opts.NATS
	if nc == nil || s.opts.PatchSubject == "" {
		return
	}
	msg := delta
	if tick := s.sim.Tick(); tick%s.opts.FullEvery == 0 {
		full, err := s.sim.Full()
		if err != nil {
			s.logger.Error("full state", "error", err)
			return
		}
		msg = full
	}
	if err := nc.Publish(s.opts.PatchSubject, msg); err != nil {
		s.logger.Warn("publish failed", "subject", s.opts.PatchSubject, "error", err)
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.clients {
		delete(s.clients, id)
		close(c.send)
	}
}
