// Package whatsapp sends messages through the WhatsApp Cloud API.
package whatsapp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chathubhq/chathub/internal/channel"
	"github.com/chathubhq/chathub/internal/config"
)

// ErrNoPhoneNumberID is returned when the Cloud API phone number id is not
// configured; sends cannot be addressed without it.
var ErrNoPhoneNumberID = errors.New("whatsapp: phone_number_id not configured")

// Sender is a stateless WhatsApp Cloud API sender. Callers own all store
// updates and broadcasts after a successful send.
type Sender struct {
	http          *http.Client
	baseURL       string
	token         string
	phoneNumberID string
	logger        *slog.Logger
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
		http:          &http.Client{Timeout: timeout},
		baseURL:       strings.TrimRight(cfg.GraphBaseURL, "/"),
		token:         cfg.WhatsAppToken,
		phoneNumberID: cfg.PhoneNumberID,
		logger:        log.With(slog.String("sender", "whatsapp")),
	}
}

// Platform returns the channel this sender serves.
func (s *Sender) Platform() channel.Platform {
	return channel.PlatformWhatsApp
}

// SendText delivers a text message to a wa_id.
func (s *Sender) SendText(ctx context.Context, to, text string) (channel.SendResult, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": text},
	}
	return s.send(ctx, to, payload)
}

// SendMedia delivers media by public URL. The Cloud API accepts a link
// directly, so no two-phase upload is needed on this platform.
func (s *Sender) SendMedia(ctx context.Context, to, mediaURL string, contentType channel.ContentType) (channel.SendResult, error) {
	kind := "document"
	switch contentType {
	case channel.ContentImage:
		kind = "image"
	case channel.ContentAudio:
		kind = "audio"
	}
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              kind,
		kind:                map[string]string{"link": mediaURL},
	}
	return s.send(ctx, to, payload)
}

func (s *Sender) send(ctx context.Context, to string, payload map[string]any) (channel.SendResult, error) {
	if s.phoneNumberID == "" {
		return channel.SendResult{}, ErrNoPhoneNumberID
	}
	url := s.baseURL + "/" + s.phoneNumberID + "/messages"
	result, err := channel.PostJSONAuth(ctx, s.http, url, s.token, payload)
	if err != nil {
		return channel.SendResult{}, err
	}
	if !result.OK {
		s.logger.Warn("whatsapp send rejected",
			slog.String("to", to),
			slog.Int("status", result.StatusCode))
	}
	return result, nil
}
