// Package channel defines the unified model shared by the webhook normalizer
// and the per-platform outbound senders: platform identifiers, content types,
// normalized send results, and the canonical event pushed to realtime clients.
package channel

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies a messaging platform (e.g., "whatsapp", "instagram").
type Platform string

const (
	PlatformWhatsApp  Platform = "whatsapp"
	PlatformInstagram Platform = "instagram"
	PlatformMessenger Platform = "messenger"
)

// String returns the platform as a plain string.
func (p Platform) String() string {
	return string(p)
}

// Valid reports whether the platform is one of the supported channels.
func (p Platform) Valid() bool {
	switch p {
	case PlatformWhatsApp, PlatformInstagram, PlatformMessenger:
		return true
	}
	return false
}

// PlaceholderName is the display name used when the vendor profile lookup
// fails or is unavailable for this platform.
func (p Platform) PlaceholderName() string {
	if p == PlatformInstagram {
		return "Desconocido"
	}
	return "Cliente"
}

// Sender distinguishes who authored a message.
type Sender string

const (
	SenderUser   Sender = "user"   // inbound, from the external party
	SenderSystem Sender = "system" // outbound from the business, including echoes
)

// ContentType classifies message content.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentImage    ContentType = "image"
	ContentDocument ContentType = "document"
	ContentAudio    ContentType = "audio"
	ContentFile     ContentType = "file"
)

// Preview returns the short human-readable conversation preview for content
// of this type: the text itself, or an icon+label for media.
func (t ContentType) Preview(content string) string {
	switch t {
	case ContentText:
		return content
	case ContentImage:
		return "🖼 Imagen"
	case ContentAudio:
		return "🎵 Audio"
	case ContentDocument:
		return "📄 Documento"
	default:
		return "📎 Archivo"
	}
}

// Direction labels which way a message traveled, as seen by realtime clients.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// SendResult is the normalized outcome of one vendor API call. Vendors are
// inconsistent about response shapes; senders always reduce them to this.
type SendResult struct {
	OK         bool           `json:"ok"`
	StatusCode int            `json:"status_code"`
	Body       map[string]any `json:"body,omitempty"`
}

// ErrorDetail extracts the vendor error message from the response body, or
// returns a generic fallback.
func (r SendResult) ErrorDetail() string {
	if errObj, ok := r.Body["error"].(map[string]any); ok {
		if msg, _ := errObj["message"].(string); strings.TrimSpace(msg) != "" {
			if code, ok := errObj["code"]; ok {
				return fmt.Sprintf("%s (code %v)", strings.TrimSpace(msg), code)
			}
			return strings.TrimSpace(msg)
		}
	}
	return "vendor request failed"
}

// Event is the canonical normalized message event produced by ingestion and
// by the outbound send path. It is what realtime clients and the downstream
// relay receive.
type Event struct {
	UserID         string      `json:"user_id"`
	ConversationID string      `json:"conversation_id"`
	Platform       Platform    `json:"platform"`
	Type           ContentType `json:"type"`
	Content        string      `json:"content"`
	Timestamp      time.Time   `json:"timestamp"`
	Direction      Direction   `json:"direction"`
	Remitente      string      `json:"remitente"`
}
