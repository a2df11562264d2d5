// Package handlers contains the echo HTTP handlers: the Meta webhook
// endpoint, the per-platform send endpoints, the conversation read side, and
// the realtime WebSocket endpoint.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/chathubhq/chathub/internal/channel"
	"github.com/chathubhq/chathub/internal/store"
)

// sendStore is the store surface the send endpoints use.
type sendStore interface {
	UpsertContact(ctx context.Context, userID string, platform channel.Platform, patch store.ContactPatch) (store.Contact, error)
	AppendMessage(ctx context.Context, msg store.Message) (string, error)
}

// eventBroadcaster fans events to realtime clients.
type eventBroadcaster interface {
	Broadcast(event any)
}

// outbound records a successful vendor send: contact upsert, then message
// append, then broadcast, mirroring the ingestion pipeline. The senders
// themselves stay stateless; this is the caller-side bookkeeping.
type outbound struct {
	store sendStore
	hub   eventBroadcaster
	zone  *time.Location
}

// record persists the sent message and returns the JSON body for the HTTP
// response. Timestamps are stored UTC and rendered in the display zone.
func (o *outbound) record(ctx context.Context, platform channel.Platform, userID, name string, contentType channel.ContentType, content string, vendorResult channel.SendResult) (map[string]any, error) {
	now := time.Now().UTC()

	contact, err := o.store.UpsertContact(ctx, userID, platform, store.ContactPatch{
		LastMessage: contentType.Preview(content),
		Timestamp:   now,
		Name:        name,
	})
	if err != nil {
		return nil, err
	}

	if _, err := o.store.AppendMessage(ctx, store.Message{
		ConversationID: contact.ConversationID,
		Sender:         channel.SenderSystem,
		Type:           contentType,
		Content:        content,
		Timestamp:      now,
	}); err != nil {
		return nil, err
	}

	o.hub.Broadcast(channel.Event{
		UserID:         userID,
		ConversationID: contact.ConversationID,
		Platform:       platform,
		Type:           contentType,
		Content:        content,
		Timestamp:      now,
		Direction:      channel.DirectionOutbound,
		Remitente:      contact.Name,
	})

	return map[string]any{
		"status":          "ok",
		"response":        vendorResult.Body,
		"conversation_id": contact.ConversationID,
		"user_id":         userID,
		"timestamp":       now.In(o.zone).Format(time.RFC3339),
		"remitente":       contact.Name,
		"message_type":    contentType,
		"content":         content,
	}, nil
}

// sendError maps a vendor failure to the HTTP error surfaced to the caller.
func sendError(result channel.SendResult, err error) error {
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, result.ErrorDetail())
}
