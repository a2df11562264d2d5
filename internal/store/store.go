// Package store provides the Contact/Message document store on MongoDB.
// All mutation goes through atomic upsert/append primitives; callers never
// read-modify-write contact state.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/chathubhq/chathub/internal/channel"
	"github.com/chathubhq/chathub/internal/config"
)

const (
	contactsCollection = "contacts"
	messagesCollection = "messages"
)

// Open connects to MongoDB and verifies the connection with a ping.
func Open(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// Service persists contacts and messages.
type Service struct {
	contacts *mongo.Collection
	messages *mongo.Collection
	logger   *slog.Logger
}

// NewService creates a store service bound to the configured database.
func NewService(log *slog.Logger, client *mongo.Client, cfg config.MongoConfig) *Service {
	if log == nil {
		log = slog.Default()
	}
	db := client.Database(cfg.Database)
	return &Service{
		contacts: db.Collection(contactsCollection),
		messages: db.Collection(messagesCollection),
		logger:   log.With(slog.String("service", "store")),
	}
}

// UpsertContact applies one activity patch to the contact identified by
// (userID, platform), creating it when absent. The whole operation is a single
// FindOneAndUpdate round trip so that two concurrent deliveries for a new
// identity cannot both insert; last write wins on the summary fields.
func (s *Service) UpsertContact(ctx context.Context, userID string, platform channel.Platform, patch ContactPatch) (Contact, error) {
	now := patch.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}
	now = now.UTC()

	set := bson.M{
		"last_message": patch.LastMessage,
		"timestamp":    now,
		"updated_at":   now,
	}
	if patch.Name != "" {
		set["name"] = patch.Name
	}
	if patch.ResetManaged {
		set["gestionado"] = false
	}

	// Pre-generate the identity so conversation_id can be written in the same
	// round trip; $setOnInsert is ignored when the document already exists.
	newID := primitive.NewObjectID()
	setOnInsert := bson.M{
		"_id":             newID,
		"conversation_id": newID.Hex(),
		"created_at":      now,
	}
	if patch.Name == "" {
		setOnInsert["name"] = platform.PlaceholderName()
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": setOnInsert,
	}
	if patch.IncrementUnread {
		update["$inc"] = bson.M{"unread": 1}
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var contact Contact
	err := s.contacts.FindOneAndUpdate(ctx, bson.M{"user_id": userID, "platform": platform}, update, opts).Decode(&contact)
	if err != nil {
		return Contact{}, fmt.Errorf("upsert contact %s/%s: %w", platform, userID, err)
	}
	normalizeContact(&contact)
	return contact, nil
}

// AppendMessage inserts one immutable message and returns its id.
func (s *Service) AppendMessage(ctx context.Context, msg Message) (string, error) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	msg.Timestamp = msg.Timestamp.UTC()
	res, err := s.messages.InsertOne(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("append message: %w", err)
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Sprint(res.InsertedID), nil
	}
	return id.Hex(), nil
}

// ListMessages returns a conversation's messages in timestamp-ascending order.
// Read failures degrade to an empty slice with a logged warning.
func (s *Service) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cur, err := s.messages.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		s.logger.Warn("list messages failed", slog.String("conversation_id", conversationID), slog.Any("error", err))
		return nil, nil
	}
	defer cur.Close(ctx)

	var msgs []Message
	if err := cur.All(ctx, &msgs); err != nil {
		s.logger.Warn("decode messages failed", slog.String("conversation_id", conversationID), slog.Any("error", err))
		return nil, nil
	}
	return msgs, nil
}

// ListContacts returns the most recently active contacts, newest first.
func (s *Service) ListContacts(ctx context.Context, limit int64) ([]Contact, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}
	cur, err := s.contacts.Find(ctx, bson.M{}, opts)
	if err != nil {
		s.logger.Warn("list contacts failed", slog.Any("error", err))
		return nil, nil
	}
	defer cur.Close(ctx)

	var contacts []Contact
	if err := cur.All(ctx, &contacts); err != nil {
		s.logger.Warn("decode contacts failed", slog.Any("error", err))
		return nil, nil
	}
	for i := range contacts {
		normalizeContact(&contacts[i])
	}
	return contacts, nil
}

// GetContactByUser finds a contact by external user id, optionally scoped to a
// platform (empty platform matches any).
func (s *Service) GetContactByUser(ctx context.Context, userID string, platform channel.Platform) (Contact, error) {
	filter := bson.M{"user_id": userID}
	if platform != "" {
		filter["platform"] = platform
	}
	var contact Contact
	if err := s.contacts.FindOne(ctx, filter).Decode(&contact); err != nil {
		if err == mongo.ErrNoDocuments {
			return Contact{}, ErrNotFound
		}
		return Contact{}, fmt.Errorf("get contact %s: %w", userID, err)
	}
	normalizeContact(&contact)
	return contact, nil
}

// MarkManaged flags a contact as handled and resets its unread counter. This
// is the only path that decrements unread.
func (s *Service) MarkManaged(ctx context.Context, contactID string) error {
	oid, err := primitive.ObjectIDFromHex(contactID)
	if err != nil {
		// A malformed id cannot match any document.
		return ErrNotFound
	}
	res, err := s.contacts.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"gestionado": true, "unread": 0}},
	)
	if err != nil {
		return fmt.Errorf("mark managed: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// normalizeContact fills derived fields for documents written by older
// revisions that lack them.
func normalizeContact(c *Contact) {
	if c.ConversationID == "" {
		c.ConversationID = c.ID.Hex()
	}
	if c.Name == "" {
		c.Name = c.Platform.PlaceholderName()
	}
}
