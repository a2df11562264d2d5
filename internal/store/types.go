package store

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/chathubhq/chathub/internal/channel"
)

// Contact is the per-identity-per-platform conversation summary. At most one
// document exists per (user_id, platform); the invariant is enforced by the
// atomic upsert in Service.UpsertContact, not by a unique index.
type Contact struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserID         string             `bson:"user_id" json:"user_id"`
	Platform       channel.Platform   `bson:"platform" json:"platform"`
	Name           string             `bson:"name" json:"name"`
	LastMessage    string             `bson:"last_message" json:"last_message"`
	Timestamp      time.Time          `bson:"timestamp" json:"timestamp"`
	Unread         int                `bson:"unread" json:"unread"`
	Managed        bool               `bson:"gestionado" json:"gestionado"`
	ConversationID string             `bson:"conversation_id" json:"conversation_id"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

// ContactPatch describes one activity update applied to a Contact.
type ContactPatch struct {
	LastMessage string
	Timestamp   time.Time
	// Name is applied only when non-empty, so a failed profile lookup never
	// overwrites a previously resolved display name.
	Name string
	// IncrementUnread is set for genuine inbound messages only; echoes and
	// outbound sends leave the counter untouched.
	IncrementUnread bool
	// ResetManaged forces gestionado back to false (every inbound message).
	ResetManaged bool
}

// Message is one append-only entry in a conversation log.
type Message struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"-"`
	ConversationID string              `bson:"conversation_id" json:"conversation_id"`
	Sender         channel.Sender      `bson:"sender" json:"sender"`
	Type           channel.ContentType `bson:"type" json:"type"`
	Content        string              `bson:"content" json:"content"`
	Timestamp      time.Time           `bson:"timestamp" json:"timestamp"`
}
