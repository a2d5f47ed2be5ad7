package connection

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rtpmididns/midirouter/internal/model"
)

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithBinder makes named connections register their name with b.
func WithBinder(b NameBinder) ServerOption {
	return func(s *Server) {
		s.binder = b
	}
}

// WithQueueDropHook sets a function called whenever a client drops a queued packet.
func WithQueueDropHook(fn func()) ServerOption {
	return func(s *Server) {
		s.onDrop = fn
	}
}

// Server accepts websocket connections and registers them as router peers.
type Server struct {
	cfg      ClientConfig
	router   Registrar
	binder   NameBinder
	onDrop   func()
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*Client]struct{}
	closed  bool
	wg      sync.WaitGroup

	accepted atomic.Int64
	rejected atomic.Int64
}

// NewServer creates a websocket server.
func NewServer(cfg ClientConfig, r Registrar, logger *slog.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		router: r,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*Client]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP upgrades the request and serves the connection until it ends.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name != "" && s.binder != nil {
		if _, taken := s.binder.Lookup(name); taken {
			s.rejected.Add(1)
			http.Error(w, "peer name already in use", http.StatusConflict)
			return
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.rejected.Add(1)
		http.Error(w, "server closed", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.rejected.Add(1)
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := newClient(conn, s.cfg, name, s.logger)
	client.onDrop = s.onDrop
	if !s.track(client) {
		client.Close()
		return
	}
	defer s.untrack(client)

	id := s.router.AddPeer(client)
	defer s.router.RemovePeer(id)

	if name != "" && s.binder != nil {
		if err := s.binder.Bind(name, id); err != nil {
			// Lost a race for the name after the upgrade.
			s.rejected.Add(1)
			s.logger.Warn("rejecting websocket peer", "peer_id", id, "name", name, "error", err)
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
				time.Now().Add(time.Second),
			)
			client.Close()
			return
		}
		defer s.binder.Unbind(name, id)
	}

	s.accepted.Add(1)
	s.logger.Info("websocket peer connected",
		"peer_id", id,
		"name", name,
		"remote", r.RemoteAddr,
	)

	client.run(func(data model.MIDIData) {
		s.router.SendMIDI(id, data)
	})

	s.logger.Info("websocket peer disconnected", "peer_id", id, "name", name)
}

// Close closes every client and waits for their handlers to return.
// New connections are refused afterwards.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	var errs []error
	for _, c := range clients {
		if err := c.Close(); err != nil && !errors.Is(err, ErrAlreadyClosed) {
			errs = append(errs, err)
		}
	}
	s.wg.Wait()
	return errors.Join(errs...)
}

// Stats returns server statistics.
func (s *Server) Stats() ServerStats {
	s.mu.Lock()
	n := len(s.clients)
	s.mu.Unlock()
	return ServerStats{
		Connected: n,
		Accepted:  s.accepted.Load(),
		Rejected:  s.rejected.Load(),
	}
}

func (s *Server) track(c *Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *Client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}
