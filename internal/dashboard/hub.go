package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// hub tracks connected browsers and fans messages out to them.
type hub struct {
	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}

	logger *log.Logger
}

func newHub(logger *log.Logger) *hub {
	return &hub{conns: make(map[*websocket.Conn]struct{}), logger: logger}
}

func (h *hub) add(conn *websocket.Conn) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
	return len(h.conns)
}

// remove closes conn if it is still registered.
func (h *hub) remove(conn *websocket.Conn, code websocket.StatusCode, reason string) {
	h.mu.Lock()
	_, ok := h.conns[conn]
	delete(h.conns, conn)
	n := len(h.conns)
	h.mu.Unlock()

	if !ok {
		return
	}
	_ = conn.Close(code, reason)
	if code == websocket.StatusNormalClosure {
		h.logger.Printf("browser left (%d connected)", n)
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *hub) snapshot() []*websocket.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		out = append(out, c)
	}
	return out
}

// send writes one message to every connection, dropping the ones that fail.
func (h *hub) send(ctx context.Context, msg Message) {
	data, err := encode(msg)
	if err != nil {
		h.logger.Printf("cannot encode %s message: %v", msg.Type, err)
		return
	}
	for _, conn := range h.snapshot() {
		if err := write(ctx, conn, data); err != nil {
			h.logger.Printf("dropping browser: %v", err)
			h.remove(conn, websocket.StatusNormalClosure, "")
		}
	}
}

// closeAll disconnects every browser.
func (h *hub) closeAll(reason string) {
	for _, conn := range h.snapshot() {
		h.remove(conn, websocket.StatusGoingAway, reason)
	}
}

func encode(msg Message) ([]byte, error) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return json.Marshal(msg)
}

func write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
