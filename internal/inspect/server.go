// Package inspect serves frame statistics over HTTP and streams them to
// WebSocket clients. It is off unless enabled in the configuration.
package inspect

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"isosandbox/internal/logging"
	"isosandbox/internal/renderer"
)

const writeTimeout = time.Second

// Snapshot is one published set of statistics
type Snapshot struct {
	renderer.Stats
	FPS   float64   `json:"fps"`
	Field string    `json:"field"`
	Grid  string    `json:"grid"`
	Time  time.Time `json:"time"`
}

// Server provides HTTP endpoints for statistics
type Server struct {
	addr     string
	server   *http.Server
	upgrader websocket.Upgrader

	latest   Snapshot
	latestMu sync.RWMutex

	clients   map[*websocket.Conn]*sync.Mutex
	clientsMu sync.RWMutex

	updates chan Snapshot
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewServer creates a statistics server for addr and starts its broadcaster
func NewServer(addr string) *Server {
	s := &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*websocket.Conn]*sync.Mutex),
		updates: make(chan Snapshot, 1),
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.broadcaster()
	return s
}

// Handler returns the endpoint mux
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Start serves until Stop is called
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logging.Logger().Info("inspect server starting", "addr", s.addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop closes the listener, the broadcaster and every client
func (s *Server) Stop() error {
	var err error
	if s.server != nil {
		err = s.server.Close()
	}
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.wg.Wait()

	s.clientsMu.Lock()
	for conn := range s.clients {
		conn.Close()
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()
	return err
}

// Publish records the latest statistics and queues them for streaming.
// It never blocks: a pending update is replaced by the newer one.
func (s *Server) Publish(snap Snapshot) {
	s.latestMu.Lock()
	s.latest = snap
	s.latestMu.Unlock()

	for {
		select {
		case s.updates <- snap:
			return
		default:
		}
		select {
		case <-s.updates:
		default:
		}
	}
}

// Latest returns the most recently published statistics
func (s *Server) Latest() Snapshot {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()
	return s.latest
}

func (s *Server) broadcaster() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case snap := <-s.updates:
			s.broadcast(snap)
		}
	}
}

func (s *Server) broadcast(snap Snapshot) {
	var failed []*websocket.Conn

	s.clientsMu.RLock()
	for conn, mu := range s.clients {
		if err := send(conn, mu, snap); err != nil {
			failed = append(failed, conn)
		}
	}
	s.clientsMu.RUnlock()

	// Remove failed clients
	if len(failed) > 0 {
		s.clientsMu.Lock()
		for _, conn := range failed {
			conn.Close()
			delete(s.clients, conn)
		}
		s.clientsMu.Unlock()
	}
}

func send(conn *websocket.Conn, mu *sync.Mutex, snap Snapshot) error {
	mu.Lock()
	defer mu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(snap)
}

// handleHealth provides a health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleStats returns the latest snapshot as JSON
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(s.Latest()); err != nil {
		logging.Logger().Warn("stats encode failed", "err", err)
	}
}

// handleWebSocket streams every published snapshot until the client goes away
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Logger().Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	mu := &sync.Mutex{}
	s.clientsMu.Lock()
	s.clients[conn] = mu
	s.clientsMu.Unlock()
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
	}()

	if err := send(conn, mu, s.Latest()); err != nil {
		return
	}

	// Drain client messages so close frames are processed
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
