package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/chathubhq/chathub/internal/realtime"
)

type clientRegistry interface {
	Register(conn realtime.Conn)
	Unregister(conn realtime.Conn)
}

// RealtimeHandler upgrades dashboard clients onto the broadcast hub.
type RealtimeHandler struct {
	hub      clientRegistry
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewRealtimeHandler(hub clientRegistry, logger *slog.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			// The dashboard is served from another origin; events carry no
			// credentials, so cross-origin reads are acceptable here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.With(slog.String("handler", "realtime")),
	}
}

func (h *RealtimeHandler) Register(e *echo.Echo) {
	e.GET("/ws", h.Serve)
}

// Serve upgrades the connection and parks it on the hub. Clients only listen;
// inbound frames are drained and discarded until the peer goes away.
func (h *RealtimeHandler) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return err
	}

	h.hub.Register(conn)
	defer func() {
		h.hub.Unregister(conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}
