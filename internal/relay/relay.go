// Package relay forwards normalized inbound events to an external automation
// endpoint. Delivery is fire-and-forget: failures are logged, never retried
// synchronously, and never surfaced to the ingestion path.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/chathubhq/chathub/internal/channel"
	"github.com/chathubhq/chathub/internal/config"
)

// Relay posts events to per-platform automation URLs.
type Relay struct {
	http    *http.Client
	targets map[channel.Platform]string
	timeout time.Duration
	logger  *slog.Logger
}

// New builds a relay from config. Platforms without a URL are disabled.
func New(log *slog.Logger, cfg config.RelayConfig) *Relay {
	if log == nil {
		log = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	targets := map[channel.Platform]string{}
	if cfg.WhatsAppURL != "" {
		targets[channel.PlatformWhatsApp] = cfg.WhatsAppURL
	}
	if cfg.InstagramURL != "" {
		targets[channel.PlatformInstagram] = cfg.InstagramURL
	}
	if cfg.MessengerURL != "" {
		targets[channel.PlatformMessenger] = cfg.MessengerURL
	}
	return &Relay{
		http:    &http.Client{Timeout: timeout},
		targets: targets,
		timeout: timeout,
		logger:  log.With(slog.String("service", "relay")),
	}
}

// Forward posts the event to the platform's automation URL in a detached
// goroutine. It returns immediately and never blocks the caller.
func (r *Relay) Forward(event channel.Event) {
	target, ok := r.targets[event.Platform]
	if !ok {
		return
	}
	go r.post(target, event)
}

func (r *Relay) post(target string, event channel.Event) {
	body, err := json.Marshal(event)
	if err != nil {
		r.logger.Warn("relay marshal failed", slog.Any("error", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		r.logger.Warn("relay request failed", slog.Any("error", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		r.logger.Warn("relay unreachable",
			slog.String("platform", event.Platform.String()),
			slog.Any("error", err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		r.logger.Warn("relay rejected event",
			slog.String("platform", event.Platform.String()),
			slog.Int("status", resp.StatusCode))
	}
}
