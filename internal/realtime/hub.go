// Package realtime maintains the set of connected WebSocket clients and fans
// normalized message events out to them. Delivery is best-effort: a failed
// write evicts that client only and never propagates to the caller.
package realtime

import (
	"log/slog"
	"sync"
)

// Conn is the minimal connection surface the hub needs. *websocket.Conn
// satisfies it; tests substitute fakes.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Hub is the process-wide registry of realtime clients. It lives exactly as
// long as the process; reconnecting clients see only events from the point
// they reconnect.
type Hub struct {
	mu     sync.Mutex
	conns  map[Conn]struct{}
	logger *slog.Logger
	closed bool
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		conns:  make(map[Conn]struct{}),
		logger: log.With(slog.String("service", "realtime")),
	}
}

// Register adds a connection to the broadcast set.
func (h *Hub) Register(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		conn.Close()
		return
	}
	h.conns[conn] = struct{}{}
}

// Unregister removes a connection; unknown connections are a no-op.
func (h *Hub) Unregister(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// Broadcast pushes event to every connected client. The hub lock is held for
// the whole loop: websocket connections allow only one concurrent writer, so
// overlapping broadcasts must never reach the same connection at once. A
// write failure removes that client but does not interrupt delivery to the
// rest.
func (h *Hub) Broadcast(event any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		if err := conn.WriteJSON(event); err != nil {
			h.logger.Warn("drop realtime client", slog.Any("error", err))
			delete(h.conns, conn)
			conn.Close()
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close evicts all clients and rejects future registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn := range h.conns {
		conn.Close()
		delete(h.conns, conn)
	}
}
