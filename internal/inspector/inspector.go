// Package inspector is the optional `svm serve` websocket server
// (SPEC_FULL §11): it broadcasts each Event passed to Publish as JSON to
// every connected client. No command in this module calls Publish, so
// `svm serve` accepts connections but sends no events. Its
// broadcast-to-all-clients shape is the direct descendant of
// sentra/internal/network's WebSocketServer/WebSocketBroadcast pair,
// repurposed from "security scan progress" to "verification progress"
// and simplified to a single fan-out broadcaster instead of a
// per-server registry, since one `svm serve` process only ever runs one
// inspector.
package inspector

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// EventKind names the three progress events the pipeline reports.
type EventKind string

const (
	EventFunctionVerified EventKind = "function_verified"
	EventImportResolved   EventKind = "import_resolved"
	EventError            EventKind = "error"
)

// Event is one progress message, serialized as JSON and broadcast
// verbatim to every connected client.
type Event struct {
	Kind    EventKind `json:"kind"`
	Label   string    `json:"label,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

type client struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

// Server accepts websocket connections on a single endpoint and
// broadcasts every Publish call to all of them.
type Server struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[string]*client
	next     int
}

// NewServer builds an inspector ready to be mounted via Handler.
func NewServer() *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

// Handler upgrades incoming HTTP requests to websocket connections and
// registers them as broadcast recipients until they disconnect.
func (s *Server) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	id := s.nextID()
	c := &client{conn: conn}
	s.clients[id] = c
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, id)
		s.mu.Unlock()
		conn.Close()
	}()

	// Drain and discard incoming frames; this is a one-way progress
	// feed, but reading keeps the connection's pong handling alive and
	// detects client-initiated close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) nextID() string {
	s.next++
	return "client-" + itoa(s.next)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// Publish broadcasts one event to every currently connected client. A
// client whose write fails is marked closed and dropped on its next
// read error rather than synchronously removed here, mirroring the
// teacher's broadcast-then-mark-closed pattern.
func (s *Server) Publish(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	var lastErr error
	for _, c := range clients {
		c.mu.Lock()
		if !c.closed {
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				lastErr = err
				c.closed = true
			}
		}
		c.mu.Unlock()
	}
	return lastErr
}

// ClientCount reports how many clients are currently connected and not
// marked closed.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.clients {
		if !c.closed {
			n++
		}
	}
	return n
}
