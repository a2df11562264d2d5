package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chathubhq/chathub/internal/channel"
	"github.com/chathubhq/chathub/internal/dedup"
	"github.com/chathubhq/chathub/internal/meta"
	"github.com/chathubhq/chathub/internal/store"
)

// ingestStore is the store surface the normalizer mutates.
type ingestStore interface {
	UpsertContact(ctx context.Context, userID string, platform channel.Platform, patch store.ContactPatch) (store.Contact, error)
	AppendMessage(ctx context.Context, msg store.Message) (string, error)
}

// duplicateGuard suppresses replayed deliveries.
type duplicateGuard interface {
	IsDuplicate(userID, content, vendorTS string) bool
	Forget(userID, content, vendorTS string)
}

// profileResolver resolves display names, best-effort.
type profileResolver interface {
	InstagramUsername(ctx context.Context, userID string) string
	MessengerProfile(ctx context.Context, psid string) string
}

// mediaFetcher resolves vendor media references to bytes.
type mediaFetcher interface {
	WhatsAppMediaInfo(ctx context.Context, mediaID string) (meta.MediaInfo, error)
	DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error)
	DownloadAttachment(ctx context.Context, attachmentURL string) ([]byte, string, error)
}

// objectStore re-hosts media bytes on durable storage.
type objectStore interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// broadcaster fans events out to realtime clients.
type broadcaster interface {
	Broadcast(event any)
}

// forwarder relays genuine inbound events downstream, fire-and-forget.
type forwarder interface {
	Forward(event channel.Event)
}

// Normalizer drives the ingestion pipeline for classified webhook events.
// Per event the ordering is fixed: dedup check, media re-host, name
// resolution, contact upsert, message append, broadcast, relay. A realtime
// client therefore never sees a message before its conversation summary is
// queryable.
type Normalizer struct {
	store    ingestStore
	guard    duplicateGuard
	profiles profileResolver
	media    mediaFetcher
	objects  objectStore
	hub      broadcaster
	relay    forwarder
	logger   *slog.Logger
	now      func() time.Time
}

// NewNormalizer wires the ingestion pipeline.
func NewNormalizer(log *slog.Logger, st ingestStore, guard duplicateGuard, profiles profileResolver, media mediaFetcher, objects objectStore, hub broadcaster, relay forwarder) *Normalizer {
	if log == nil {
		log = slog.Default()
	}
	return &Normalizer{
		store:    st,
		guard:    guard,
		profiles: profiles,
		media:    media,
		objects:  objects,
		hub:      hub,
		relay:    relay,
		logger:   log.With(slog.String("service", "webhook")),
		now:      time.Now,
	}
}

// Process ingests every event of a classified delivery. A storage failure
// aborts with an error so the HTTP layer can return 5xx and the vendor
// redelivers; all other per-event failures degrade and processing continues.
func (n *Normalizer) Process(ctx context.Context, delivery Delivery) error {
	for _, ev := range delivery.Events {
		if err := n.processEvent(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (n *Normalizer) processEvent(ctx context.Context, ev InboundEvent) (err error) {
	now := n.now().UTC()

	sig := n.signature(ev, now)
	if n.guard.IsDuplicate(ev.UserID, sig.content, sig.vendorTS) {
		n.logger.Info("duplicate delivery suppressed",
			slog.String("platform", ev.Platform.String()),
			slog.String("user_id", ev.UserID))
		return nil
	}
	// A failure past this point must not leave the fingerprint behind, or the
	// vendor's redelivery of this event would be swallowed.
	defer func() {
		if err != nil {
			n.guard.Forget(ev.UserID, sig.content, sig.vendorTS)
		}
	}()

	content, mediaErr := n.resolveContent(ctx, ev)
	if mediaErr != nil {
		// Vendor media could not be fetched or re-hosted; drop the event
		// rather than persist a URL that will expire.
		n.logger.Warn("media resolution failed, event skipped",
			slog.String("platform", ev.Platform.String()),
			slog.String("user_id", ev.UserID),
			slog.Any("error", mediaErr))
		return nil
	}

	name := n.resolveName(ctx, ev)

	contact, err := n.store.UpsertContact(ctx, ev.UserID, ev.Platform, store.ContactPatch{
		LastMessage:     ev.Type.Preview(content),
		Timestamp:       now,
		Name:            name,
		IncrementUnread: !ev.Echo,
		ResetManaged:    !ev.Echo,
	})
	if err != nil {
		return fmt.Errorf("ingest contact: %w", err)
	}

	sender := channel.SenderUser
	direction := channel.DirectionInbound
	if ev.Echo {
		sender = channel.SenderSystem
		direction = channel.DirectionOutbound
	}

	if _, err = n.store.AppendMessage(ctx, store.Message{
		ConversationID: contact.ConversationID,
		Sender:         sender,
		Type:           ev.Type,
		Content:        content,
		Timestamp:      now,
	}); err != nil {
		return fmt.Errorf("ingest message: %w", err)
	}

	event := channel.Event{
		UserID:         ev.UserID,
		ConversationID: contact.ConversationID,
		Platform:       ev.Platform,
		Type:           ev.Type,
		Content:        content,
		Timestamp:      now,
		Direction:      direction,
		Remitente:      contact.Name,
	}
	n.hub.Broadcast(event)

	if !ev.Echo {
		n.relay.Forward(event)
	}
	return nil
}

type eventSignature struct {
	content  string
	vendorTS string
}

// signature picks the dedup key parts: the literal text or the vendor media
// reference, plus the vendor timestamp (or a minute bucket of arrival time
// when the vendor sent none).
func (n *Normalizer) signature(ev InboundEvent, now time.Time) eventSignature {
	content := ev.Text
	if content == "" {
		content = ev.MediaID
	}
	if content == "" {
		content = ev.AttachmentURL
	}
	vendorTS := ev.VendorTS
	if vendorTS == "" {
		vendorTS = dedup.MinuteBucket(now)
	}
	return eventSignature{content: content, vendorTS: vendorTS}
}

// resolveContent returns the value persisted as message content: the literal
// text, or a durable object-store URL for media. Vendor URLs are never
// returned.
func (n *Normalizer) resolveContent(ctx context.Context, ev InboundEvent) (string, error) {
	switch {
	case ev.Type == channel.ContentText:
		return ev.Text, nil

	case ev.MediaID != "":
		info, err := n.media.WhatsAppMediaInfo(ctx, ev.MediaID)
		if err != nil {
			return "", err
		}
		body, err := n.media.DownloadMedia(ctx, info.URL)
		if err != nil {
			return "", err
		}
		mimeType := ev.MimeType
		if mimeType == "" {
			mimeType = info.MimeType
		}
		key := fmt.Sprintf("whatsapp/%s/%s%s", ev.UserID, ev.MediaID, extensionFor(mimeType, ev.Filename))
		return n.objects.Upload(ctx, key, body, mimeType)

	case ev.AttachmentURL != "":
		body, mimeType, err := n.media.DownloadAttachment(ctx, ev.AttachmentURL)
		if err != nil {
			return "", err
		}
		if ev.MimeType != "" {
			mimeType = ev.MimeType
		}
		key := fmt.Sprintf("%s/%s/%s%s", ev.Platform, ev.UserID, uuid.NewString(), extensionFor(mimeType, ""))
		return n.objects.Upload(ctx, key, body, mimeType)
	}
	return "", fmt.Errorf("event carries no content")
}

// resolveName returns the best display name available, or "" when nothing
// resolved (the store keeps any previously known name in that case).
func (n *Normalizer) resolveName(ctx context.Context, ev InboundEvent) string {
	if ev.Name != "" {
		return ev.Name
	}
	switch ev.Platform {
	case channel.PlatformInstagram:
		return n.profiles.InstagramUsername(ctx, ev.UserID)
	case channel.PlatformMessenger:
		return n.profiles.MessengerProfile(ctx, ev.UserID)
	}
	return ""
}

func extensionFor(mimeType, filename string) string {
	if filename != "" {
		if idx := strings.LastIndex(filename, "."); idx >= 0 {
			return filename[idx:]
		}
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	if idx := strings.LastIndex(mimeType, "/"); idx >= 0 && idx < len(mimeType)-1 {
		return "." + mimeType[idx+1:]
	}
	return ".bin"
}
