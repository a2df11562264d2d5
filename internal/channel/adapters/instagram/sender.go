// Package instagram sends messages through the Instagram Messaging API.
package instagram

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chathubhq/chathub/internal/channel"
	"github.com/chathubhq/chathub/internal/config"
)

// Sender is a stateless Instagram Messaging API sender.
type Sender struct {
	http    *http.Client
	baseURL string
	token   string
	logger  *slog.Logger
}

// NewSender builds a sender from Meta config.
func NewSender(log *slog.Logger, cfg config.MetaConfig) *Sender {
	if log == nil {
		log = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sender{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.GraphBaseURL, "/"),
		token:   cfg.PageAccessToken,
		logger:  log.With(slog.String("sender", "instagram")),
	}
}

// Platform returns the channel this sender serves.
func (s *Sender) Platform() channel.Platform {
	return channel.PlatformInstagram
}

// SendText delivers a text message to an Instagram-scoped user id.
func (s *Sender) SendText(ctx context.Context, to, text string) (channel.SendResult, error) {
	payload := map[string]any{
		"recipient":      map[string]string{"id": to},
		"message":        map[string]string{"text": text},
		"messaging_type": "RESPONSE",
	}
	return channel.PostJSON(ctx, s.http, s.messagesURL(), payload)
}

// SendMedia delivers media by public URL (send-by-URL path).
func (s *Sender) SendMedia(ctx context.Context, to, mediaURL string, contentType channel.ContentType) (channel.SendResult, error) {
	payload := map[string]any{
		"recipient": map[string]string{"id": to},
		"message": map[string]any{
			"attachment": map[string]any{
				"type": attachmentKind(contentType),
				"payload": map[string]any{
					"url":         mediaURL,
					"is_reusable": true,
				},
			},
		},
		"messaging_type": "RESPONSE",
	}
	return channel.PostJSON(ctx, s.http, s.messagesURL(), payload)
}

// UploadAttachment performs the two-phase path: upload the bytes to Meta
// first, then send by attachment id. Returns the attachment id.
func (s *Sender) UploadAttachment(ctx context.Context, filename string, data []byte, mimeType string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("message", fmt.Sprintf(`{"attachment":{"type":"%s","payload":{"is_reusable":true}}}`, attachmentKindForMime(mimeType))); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("filedata", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	uploadURL := fmt.Sprintf("%s/me/message_attachments?access_token=%s", s.baseURL, url.QueryEscape(s.token))
	result, err := channel.PostForm(ctx, s.http, uploadURL, writer.FormDataContentType(), &buf)
	if err != nil {
		return "", fmt.Errorf("upload attachment: %w", err)
	}
	id, _ := result.Body["attachment_id"].(string)
	if !result.OK || id == "" {
		return "", fmt.Errorf("upload attachment: %s", result.ErrorDetail())
	}
	return id, nil
}

// SendAttachmentID delivers previously uploaded media by attachment id. This
// converges on the same SendResult contract as the send-by-URL path.
func (s *Sender) SendAttachmentID(ctx context.Context, to, attachmentID string, contentType channel.ContentType) (channel.SendResult, error) {
	payload := map[string]any{
		"recipient": map[string]string{"id": to},
		"message": map[string]any{
			"attachment": map[string]any{
				"type":    attachmentKind(contentType),
				"payload": map[string]string{"attachment_id": attachmentID},
			},
		},
		"messaging_type": "RESPONSE",
	}
	return channel.PostJSON(ctx, s.http, s.messagesURL(), payload)
}

func (s *Sender) messagesURL() string {
	return fmt.Sprintf("%s/me/messages?access_token=%s", s.baseURL, url.QueryEscape(s.token))
}

func attachmentKind(t channel.ContentType) string {
	switch t {
	case channel.ContentImage:
		return "image"
	case channel.ContentAudio:
		return "audio"
	default:
		return "file"
	}
}

func attachmentKindForMime(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio"
	default:
		return "file"
	}
}
