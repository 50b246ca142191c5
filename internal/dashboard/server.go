// Package dashboard serves the task board over HTTP and pushes cache
// reloads to connected browsers over WebSocket.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// MessageType identifies a board message.
type MessageType string

const (
	// MessageTypeTaskUpdate reports the outcome of a single field write.
	MessageTypeTaskUpdate MessageType = "task_update"

	// MessageTypeSyncComplete is sent after the cache is reloaded from a
	// new snapshot.
	MessageTypeSyncComplete MessageType = "sync_complete"

	// MessageTypeStats carries per-status task counts.
	MessageTypeStats MessageType = "stats"
)

// Message is the envelope pushed to browsers.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Config holds server settings.
type Config struct {
	// Port to listen on; 0 picks a free port.
	Port int
	// Host to bind; empty binds all interfaces.
	Host   string
	Logger *log.Logger
}

// DefaultConfig listens on port 8080 on all interfaces.
func DefaultConfig() *Config {
	return &Config{Port: 8080, Logger: defaultLogger()}
}

func defaultLogger() *log.Logger {
	return log.New(os.Stderr, "[dashboard] ", log.LstdFlags)
}

// Server serves the board routes and the /ws push channel. Routes are
// added with HandleFunc before Start.
type Server struct {
	addr   string
	mux    *http.ServeMux
	hub    *hub
	queue  chan Message
	logger *log.Logger

	// welcome builds the first message sent to a new browser.
	welcome func() Message

	ln   net.Listener
	srv  *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer builds a server from config; nil means DefaultConfig.
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = defaultLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:    net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
		mux:     http.NewServeMux(),
		hub:     newHub(logger),
		queue:   make(chan Message, 100),
		logger:  logger,
		welcome: func() Message { return Message{Type: MessageTypeStats} },
		ctx:     ctx,
		cancel:  cancel,
	}
	s.mux.HandleFunc("/ws", s.serveWS)
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "clients": s.hub.count()})
	})
	return s
}

// HandleFunc registers a route.
func (s *Server) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.mux.HandleFunc(pattern, handler)
}

// SetWelcome replaces the message sent to each browser on connect.
func (s *Server) SetWelcome(fn func() Message) {
	s.welcome = fn
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:     s.mux,
		ReadTimeout: 10 * time.Second,
		// Covers a forward sync started from the board.
		WriteTimeout: 5 * time.Minute,
	}

	s.wg.Add(2)
	go s.pump()
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Board at http://%s", ln.Addr())
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("serve: %v", err)
		}
	}()
	return nil
}

// Stop disconnects browsers and shuts the listener down. It is safe to
// call on a server that was never started.
func (s *Server) Stop() error {
	s.cancel()
	s.hub.closeAll("server shutting down")
	if s.srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down dashboard: %w", err)
	}
	s.wg.Wait()
	s.logger.Println("Board stopped")
	return nil
}

// Broadcast queues msg for every connected browser. It never blocks; the
// message is dropped when the queue is full.
func (s *Server) Broadcast(msg Message) {
	select {
	case <-s.ctx.Done():
	case s.queue <- msg:
	default:
		s.logger.Printf("queue full, dropping %s message", msg.Type)
	}
}

func (s *Server) pump() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.queue:
			s.hub.send(s.ctx, msg)
		}
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		s.logger.Printf("websocket accept: %v", err)
		return
	}
	n := s.hub.add(conn)
	s.logger.Printf("browser joined (%d connected)", n)

	if data, err := encode(s.welcome()); err == nil {
		_ = write(s.ctx, conn, data)
	}

	// Browsers never send anything; reading only detects the close.
	go func() {
		defer s.hub.remove(conn, websocket.StatusNormalClosure, "")
		for {
			if _, _, err := conn.Read(s.ctx); err != nil {
				return
			}
		}
	}()
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// ClientCount returns the number of connected browsers.
func (s *Server) ClientCount() int {
	return s.hub.count()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
