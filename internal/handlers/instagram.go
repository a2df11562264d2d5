package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/chathubhq/chathub/internal/channel"
)

type instagramSender interface {
	SendText(ctx context.Context, to, text string) (channel.SendResult, error)
	UploadAttachment(ctx context.Context, filename string, data []byte, mimeType string) (string, error)
	SendAttachmentID(ctx context.Context, to, attachmentID string, contentType channel.ContentType) (channel.SendResult, error)
}

// InstagramHandler exposes the outbound Instagram endpoints. Text arrives as
// form fields; images go through the two-phase attachment upload so the vendor
// hosts nothing we cannot reproduce.
type InstagramHandler struct {
	sender   instagramSender
	objects  mediaUploader
	outbound *outbound
	logger   *slog.Logger
}

func NewInstagramHandler(sender instagramSender, objects mediaUploader, store sendStore, hub eventBroadcaster, zone *time.Location, logger *slog.Logger) *InstagramHandler {
	return &InstagramHandler{
		sender:   sender,
		objects:  objects,
		outbound: &outbound{store: store, hub: hub, zone: zone},
		logger:   logger.With(slog.String("handler", "instagram")),
	}
}

func (h *InstagramHandler) Register(e *echo.Echo) {
	e.POST("/instagram/send", h.SendText)
	e.POST("/instagram/send_image_file", h.SendImageFile)
}

// SendText sends a text message to an Instagram user.
func (h *InstagramHandler) SendText(c echo.Context) error {
	userID := c.FormValue("user_id")
	text := c.FormValue("text")
	username := c.FormValue("username")
	if userID == "" || text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id and text are required")
	}

	ctx := c.Request().Context()
	result, err := h.sender.SendText(ctx, userID, text)
	if err != nil || !result.OK {
		h.logger.Warn("instagram send failed", slog.String("user_id", userID), slog.Any("error", err))
		return sendError(result, err)
	}

	body, err := h.outbound.record(ctx, channel.PlatformInstagram, userID, username, channel.ContentText, text, result)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, body)
}

// SendImageFile reads a multipart image, uploads it as a vendor attachment,
// sends by attachment id, then re-hosts the image in the bucket so the stored
// message points at a URL under our control.
func (h *InstagramHandler) SendImageFile(c echo.Context) error {
	userID := c.FormValue("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
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
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	ctx := c.Request().Context()
	attachmentID, err := h.sender.UploadAttachment(ctx, fileHeader.Filename, data, mimeType)
	if err != nil {
		h.logger.Warn("instagram attachment upload failed", slog.String("user_id", userID), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	result, err := h.sender.SendAttachmentID(ctx, userID, attachmentID, channel.ContentImage)
	if err != nil || !result.OK {
		h.logger.Warn("instagram image send failed", slog.String("user_id", userID), slog.Any("error", err))
		return sendError(result, err)
	}

	key := "instagram/" + userID + "/" + uuid.NewString() + path.Ext(fileHeader.Filename)
	url, err := h.objects.Upload(ctx, key, data, mimeType)
	if err != nil {
		h.logger.Error("media upload failed", slog.String("key", key), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	body, err := h.outbound.record(ctx, channel.PlatformInstagram, userID, "", channel.ContentImage, url, result)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, body)
}
