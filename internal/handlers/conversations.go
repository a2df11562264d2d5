package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/chathubhq/chathub/internal/channel"
	"github.com/chathubhq/chathub/internal/store"
)

const defaultConversationLimit = 200

type readStore interface {
	ListContacts(ctx context.Context, limit int64) ([]store.Contact, error)
	ListMessages(ctx context.Context, conversationID string) ([]store.Message, error)
	GetContactByUser(ctx context.Context, userID string, platform channel.Platform) (store.Contact, error)
	MarkManaged(ctx context.Context, contactID string) error
}

// ConversationsHandler serves the read side: the conversation list consumed by
// the dashboard, the per-user message history, and the managed flag.
type ConversationsHandler struct {
	store  readStore
	zone   *time.Location
	logger *slog.Logger
}

func NewConversationsHandler(store readStore, zone *time.Location, logger *slog.Logger) *ConversationsHandler {
	return &ConversationsHandler{
		store:  store,
		zone:   zone,
		logger: logger.With(slog.String("handler", "conversations")),
	}
}

func (h *ConversationsHandler) Register(e *echo.Echo) {
	e.GET("/get-conversations/", h.ListConversations)
	e.GET("/conversations/messages/:user_id", h.ListMessages)
	e.POST("/contacts/:contact_id/gestionado", h.MarkManaged)
}

type conversationView struct {
	ConversationID string            `json:"conversation_id"`
	UserID         string            `json:"user_id"`
	Platform       channel.Platform  `json:"platform"`
	Name           string            `json:"name"`
	LastMessage    string            `json:"last_message"`
	Timestamp      string            `json:"timestamp"`
	Unread         int               `json:"unread"`
	Managed        bool              `json:"gestionado"`
	Messages       []messageView     `json:"messages"`
}

type messageView struct {
	ID        string              `json:"id"`
	Sender    channel.Sender      `json:"sender"`
	Type      channel.ContentType `json:"type"`
	Content   string              `json:"content"`
	Timestamp string              `json:"timestamp"`
}

// ListConversations returns recent conversations, most recent first, each with
// its ordered message history embedded. A failed history read degrades to an
// empty list rather than failing the whole response.
func (h *ConversationsHandler) ListConversations(c echo.Context) error {
	ctx := c.Request().Context()
	contacts, err := h.store.ListContacts(ctx, defaultConversationLimit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	views := make([]conversationView, 0, len(contacts))
	for _, contact := range contacts {
		messages, err := h.store.ListMessages(ctx, contact.ConversationID)
		if err != nil {
			h.logger.Warn("message history read failed", slog.String("conversation_id", contact.ConversationID), slog.Any("error", err))
			messages = nil
		}
		views = append(views, h.contactView(contact, messages))
	}
	return c.JSON(http.StatusOK, views)
}

// ListMessages returns the ordered history for one user's conversation.
func (h *ConversationsHandler) ListMessages(c echo.Context) error {
	userID := c.Param("user_id")
	platform := channel.Platform(c.QueryParam("platform"))
	if platform != "" && !platform.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown platform")
	}

	ctx := c.Request().Context()
	contact, err := h.store.GetContactByUser(ctx, userID, platform)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "contact not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	messages, err := h.store.ListMessages(ctx, contact.ConversationID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, h.contactView(contact, messages))
}

// MarkManaged flags the contact as handled and resets its unread counter.
func (h *ConversationsHandler) MarkManaged(c echo.Context) error {
	contactID := c.Param("contact_id")
	if err := h.store.MarkManaged(c.Request().Context(), contactID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "contact not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "contact_id": contactID, "gestionado": true})
}

func (h *ConversationsHandler) contactView(contact store.Contact, messages []store.Message) conversationView {
	msgViews := make([]messageView, 0, len(messages))
	for _, msg := range messages {
		msgViews = append(msgViews, messageView{
			ID:        msg.ID.Hex(),
			Sender:    msg.Sender,
			Type:      msg.Type,
			Content:   msg.Content,
			Timestamp: msg.Timestamp.In(h.zone).Format(time.RFC3339),
		})
	}
	return conversationView{
		ConversationID: contact.ConversationID,
		UserID:         contact.UserID,
		Platform:       contact.Platform,
		Name:           contact.Name,
		LastMessage:    contact.LastMessage,
		Timestamp:      contact.Timestamp.In(h.zone).Format(time.RFC3339),
		Unread:         contact.Unread,
		Managed:        contact.Managed,
		Messages:       msgViews,
	}
}
