package control

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/sonetlumiere/vj/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the listen side of the cross-host Control Channel leg
// (§4.11): a remote UI dials in over WebSocket on the configured control
// port, and the engine relays the same Envelope vocabulary as Local to
// every connected client at once. Unlike Local's in-process broadcast,
// any number of remote clients may be attached simultaneously.
type Server struct {
	addr    string
	handler Handler

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	everConnected atomic.Bool
}

// NewServer returns a Server bound to addr (host:port), not yet
// listening.
func NewServer(addr string) *Server {
	return &Server{addr: addr, clients: make(map[*websocket.Conn]struct{})}
}

// Handle installs the callback invoked for every Envelope received from
// any connected client.
func (s *Server) Handle(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// ListenAndServe blocks accepting WebSocket upgrades on /control until
// the listener fails or is closed.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/control", s.serveWS)
	return http.ListenAndServe(s.addr, mux)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.GetLogger().Warn("control: websocket upgrade failed", "error", err)
		return
	}
	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()
	s.everConnected.Store(true)

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}

		s.mu.Lock()
		handler := s.handler
		s.mu.Unlock()
		if handler != nil {
			handler(env)
		}
	}
}

// Send writes env to every currently connected client. A client whose
// write fails is left for its own read loop to notice and drop;
// disconnected (zero-client) is not an error, matching §7's fallback
// policy for this transient a peer simply isn't attached yet.
func (s *Server) Send(env Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteJSON(env); err != nil {
			logger.GetLogger().Warn("control: send to remote client failed", "error", err)
		}
	}
	return nil
}

// Connected reports whether at least one remote client is currently
// attached.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients) > 0
}

// EverConnected reports whether a remote client has ever attached, the
// condition under which Local-only fallback ends (§4.11: "falls back to
// local broadcast if no remote has ever connected").
func (s *Server) EverConnected() bool { return s.everConnected.Load() }
