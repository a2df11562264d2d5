package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/chathubhq/chathub/internal/channel"
)

// MessengerHandler exposes the outbound Messenger endpoint.
type MessengerHandler struct {
	sender   textMediaSender
	outbound *outbound
	logger   *slog.Logger
}

func NewMessengerHandler(sender textMediaSender, store sendStore, hub eventBroadcaster, zone *time.Location, logger *slog.Logger) *MessengerHandler {
	return &MessengerHandler{
		sender:   sender,
		outbound: &outbound{store: store, hub: hub, zone: zone},
		logger:   logger.With(slog.String("handler", "messenger")),
	}
}

func (h *MessengerHandler) Register(e *echo.Echo) {
	e.POST("/messenger/send", h.SendText)
}

type messengerSendRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Text   string `json:"text" validate:"required"`
}

// SendText sends a text message to a Messenger PSID and records it.
func (h *MessengerHandler) SendText(c echo.Context) error {
	var req messengerSendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	result, err := h.sender.SendText(ctx, req.UserID, req.Text)
	if err != nil || !result.OK {
		h.logger.Warn("messenger send failed", slog.String("user_id", req.UserID), slog.Any("error", err))
		return sendError(result, err)
	}

	body, err := h.outbound.record(ctx, channel.PlatformMessenger, req.UserID, "", channel.ContentText, req.Text, result)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, body)
}
