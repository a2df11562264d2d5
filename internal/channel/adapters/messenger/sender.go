// Package messenger sends messages through the Facebook Messenger Send API.
package messenger

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chathubhq/chathub/internal/channel"
	"github.com/chathubhq/chathub/internal/config"
)

// Sender is a stateless Messenger Send API sender.
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
		logger:  log.With(slog.String("sender", "messenger")),
	}
}

// Platform returns the channel this sender serves.
func (s *Sender) Platform() channel.Platform {
	return channel.PlatformMessenger
}

// SendText delivers a text message to a Messenger PSID.
func (s *Sender) SendText(ctx context.Context, to, text string) (channel.SendResult, error) {
	payload := map[string]any{
		"recipient":      map[string]string{"id": to},
		"message":        map[string]string{"text": text},
		"messaging_type": "RESPONSE",
	}
	return channel.PostJSON(ctx, s.http, s.messagesURL(), payload)
}

// SendMedia delivers media by public URL.
func (s *Sender) SendMedia(ctx context.Context, to, mediaURL string, contentType channel.ContentType) (channel.SendResult, error) {
	kind := "file"
	switch contentType {
	case channel.ContentImage:
		kind = "image"
	case channel.ContentAudio:
		kind = "audio"
	}
	payload := map[string]any{
		"recipient": map[string]string{"id": to},
		"message": map[string]any{
			"attachment": map[string]any{
				"type": kind,
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

func (s *Sender) messagesURL() string {
	return fmt.Sprintf("%s/me/messages?access_token=%s", s.baseURL, url.QueryEscape(s.token))
}
