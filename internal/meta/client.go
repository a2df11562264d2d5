// Package meta wraps the Graph API calls the ingestion path depends on:
// profile lookups for display names and the two-step WhatsApp media fetch.
// All lookups are best-effort for callers; errors degrade to placeholders.
package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chathubhq/chathub/internal/config"
)

// Client calls the Graph API. It is stateless and safe for concurrent use.
type Client struct {
	http            *http.Client
	baseURL         string
	whatsAppToken   string
	pageAccessToken string
	logger          *slog.Logger
}

// NewClient builds a Graph API client from config.
func NewClient(log *slog.Logger, cfg config.MetaConfig) *Client {
	if log == nil {
		log = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:            &http.Client{Timeout: timeout},
		baseURL:         strings.TrimRight(cfg.GraphBaseURL, "/"),
		whatsAppToken:   cfg.WhatsAppToken,
		pageAccessToken: cfg.PageAccessToken,
		logger:          log.With(slog.String("service", "meta")),
	}
}

// MediaInfo is the Graph response for a WhatsApp media id. URL is temporary
// and must never be persisted.
type MediaInfo struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
	FileSize int64  `json:"file_size"`
}

// WhatsAppMediaInfo resolves a WhatsApp media id to its temporary download URL.
func (c *Client) WhatsAppMediaInfo(ctx context.Context, mediaID string) (MediaInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+url.PathEscape(mediaID), nil)
	if err != nil {
		return MediaInfo{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.whatsAppToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return MediaInfo{}, fmt.Errorf("media info %s: %w", mediaID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return MediaInfo{}, fmt.Errorf("media info %s: status %d", mediaID, resp.StatusCode)
	}

	var info MediaInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return MediaInfo{}, fmt.Errorf("media info %s: decode: %w", mediaID, err)
	}
	if info.URL == "" {
		return MediaInfo{}, fmt.Errorf("media info %s: no url in response", mediaID)
	}
	return info, nil
}

// DownloadMedia fetches the bytes behind a temporary WhatsApp media URL.
func (c *Client) DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.whatsAppToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download media: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// DownloadAttachment fetches a Messenger/Instagram attachment URL. These urls
// are unauthenticated CDN links, also transient.
func (c *Client) DownloadAttachment(ctx context.Context, attachmentURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, attachmentURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download attachment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download attachment: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// InstagramUsername looks up the username behind an Instagram-scoped user id.
// Returns "" when the lookup fails; callers fall back to a placeholder.
func (c *Client) InstagramUsername(ctx context.Context, userID string) string {
	var out struct {
		Username string `json:"username"`
	}
	if err := c.getJSON(ctx, userID, "username", &out); err != nil {
		c.logger.Warn("instagram username lookup failed", slog.String("user_id", userID), slog.Any("error", err))
		return ""
	}
	return out.Username
}

// MessengerProfile looks up basic profile info for a Messenger PSID. Returns
// "" when the lookup fails; callers fall back to a placeholder.
func (c *Client) MessengerProfile(ctx context.Context, psid string) string {
	var out struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := c.getJSON(ctx, psid, "first_name,last_name", &out); err != nil {
		c.logger.Warn("messenger profile lookup failed", slog.String("psid", psid), slog.Any("error", err))
		return ""
	}
	return strings.TrimSpace(out.FirstName + " " + out.LastName)
}

func (c *Client) getJSON(ctx context.Context, id, fields string, out any) error {
	endpoint := fmt.Sprintf("%s/%s?fields=%s&access_token=%s",
		c.baseURL, url.PathEscape(id), url.QueryEscape(fields), url.QueryEscape(c.pageAccessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
