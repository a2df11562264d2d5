package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/chathubhq/chathub/internal/channel"
)

type textMediaSender interface {
	SendText(ctx context.Context, to, text string) (channel.SendResult, error)
	SendMedia(ctx context.Context, to, mediaURL string, contentType channel.ContentType) (channel.SendResult, error)
}

type mediaUploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// WhatsAppHandler exposes the outbound WhatsApp endpoints.
type WhatsAppHandler struct {
	sender   textMediaSender
	objects  mediaUploader
	outbound *outbound
	logger   *slog.Logger
}

func NewWhatsAppHandler(sender textMediaSender, objects mediaUploader, store sendStore, hub eventBroadcaster, zone *time.Location, logger *slog.Logger) *WhatsAppHandler {
	return &WhatsAppHandler{
		sender:   sender,
		objects:  objects,
		outbound: &outbound{store: store, hub: hub, zone: zone},
		logger:   logger.With(slog.String("handler", "whatsapp")),
	}
}

func (h *WhatsAppHandler) Register(e *echo.Echo) {
	e.POST("/whatsapp/send", h.SendText)
	e.POST("/whatsapp/send_media", h.SendMedia)
}

type whatsAppSendRequest struct {
	WaID string `json:"wa_id" validate:"required"`
	Text string `json:"text" validate:"required"`
}

// SendText sends a text message to a WhatsApp user and records it.
func (h *WhatsAppHandler) SendText(c echo.Context) error {
	var req whatsAppSendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	result, err := h.sender.SendText(ctx, req.WaID, req.Text)
	if err != nil || !result.OK {
		h.logger.Warn("whatsapp send failed", slog.String("wa_id", req.WaID), slog.Any("error", err))
		return sendError(result, err)
	}

	body, err := h.outbound.record(ctx, channel.PlatformWhatsApp, req.WaID, "", channel.ContentText, req.Text, result)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, body)
}

// SendMedia accepts a multipart file, re-hosts it in the bucket and sends it
// by public URL. The stored message carries the durable URL, never the upload.
func (h *WhatsAppHandler) SendMedia(c echo.Context) error {
	waID := c.FormValue("wa_id")
	if waID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "wa_id is required")
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	contentType := contentTypeForMime(mimeType)

	ctx := c.Request().Context()
	key := "whatsapp/" + waID + "/" + uuid.NewString() + path.Ext(fileHeader.Filename)
	url, err := h.objects.Upload(ctx, key, data, mimeType)
	if err != nil {
		h.logger.Error("media upload failed", slog.String("key", key), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	result, err := h.sender.SendMedia(ctx, waID, url, contentType)
	if err != nil || !result.OK {
		h.logger.Warn("whatsapp media send failed", slog.String("wa_id", waID), slog.Any("error", err))
		return sendError(result, err)
	}

	body, err := h.outbound.record(ctx, channel.PlatformWhatsApp, waID, "", contentType, url, result)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, body)
}

func contentTypeForMime(mimeType string) channel.ContentType {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return channel.ContentImage
	case strings.HasPrefix(mimeType, "audio/"):
		return channel.ContentAudio
	case mimeType == "application/pdf":
		return channel.ContentDocument
	default:
		return channel.ContentFile
	}
}
