package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const pingTimeout = 2 * time.Second

type databasePinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// PingHandler answers liveness probes. The GET variant also reports whether
// the contact database is reachable so a dashboard can tell a dead process
// from a dead connection.
type PingHandler struct {
	mongo databasePinger
}

func NewPingHandler(mongo databasePinger) *PingHandler {
	return &PingHandler{mongo: mongo}
}

func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.HEAD("/health", h.PingHead)
}

func (h *PingHandler) Ping(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
	defer cancel()

	mongoStatus := "ok"
	if err := h.mongo.Ping(ctx, readpref.Primary()); err != nil {
		mongoStatus = "unreachable"
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "chathub",
		"mongo":   mongoStatus,
	})
}

func (h *PingHandler) PingHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
