package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chathubhq/chathub/internal/webhook"
)

const webhookMaxBodyBytes = 1 << 20

type deliveryProcessor interface {
	Process(ctx context.Context, delivery webhook.Delivery) error
}

// WebhookHandler terminates the Meta webhook: the GET verification handshake
// and the POST delivery endpoint feeding the ingestion pipeline.
type WebhookHandler struct {
	verifyToken string
	processor   deliveryProcessor
	logger      *slog.Logger
}

func NewWebhookHandler(verifyToken string, processor deliveryProcessor, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifyToken: verifyToken,
		processor:   processor,
		logger:      logger.With(slog.String("handler", "webhook")),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.GET("/webhook", h.Verify)
	e.POST("/webhook", h.Receive)
}

// Verify answers the subscription handshake. Meta sends hub.mode,
// hub.verify_token and hub.challenge; the challenge must be echoed back
// verbatim as plain text, not wrapped in JSON.
func (h *WebhookHandler) Verify(c echo.Context) error {
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		h.logger.Info("webhook verified")
		return c.String(http.StatusOK, challenge)
	}

	h.logger.Warn("webhook verification rejected", slog.String("mode", mode))
	return echo.NewHTTPError(http.StatusForbidden, "verification failed")
}

// Receive accepts a webhook delivery. Malformed or unrecognized bodies are
// acknowledged rather than rejected so Meta does not retry junk forever; only
// a pipeline failure on a recognized delivery earns a 5xx and a vendor retry.
func (h *WebhookHandler) Receive(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, webhookMaxBodyBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read body: "+err.Error())
	}

	delivery := webhook.Classify(body)
	if !delivery.HasEntries {
		return c.JSON(http.StatusOK, map[string]string{"status": "no_entry"})
	}

	if err := h.processor.Process(c.Request().Context(), delivery); err != nil {
		h.logger.Error("webhook processing failed", slog.String("object", delivery.Object), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "received"})
}
