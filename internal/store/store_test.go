package store

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/chathubhq/chathub/internal/channel"
	"github.com/chathubhq/chathub/internal/config"
)

func newMockService(mt *mtest.T) *Service {
	return NewService(slog.Default(), mt.Client, config.MongoConfig{Database: "chathub"})
}

func contactValue(oid primitive.ObjectID) bson.D {
	return bson.D{
		{Key: "_id", Value: oid},
		{Key: "user_id", Value: "573001112233"},
		{Key: "platform", Value: "whatsapp"},
		{Key: "conversation_id", Value: oid.Hex()},
		{Key: "name", Value: "Cliente"},
		{Key: "last_message", Value: "hola"},
		{Key: "unread", Value: 1},
	}
}

func TestUpsertContactCommandShape(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("unresolved name goes to setOnInsert only", func(mt *mtest.T) {
		svc := newMockService(mt)
		oid := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: contactValue(oid)}))

		contact, err := svc.UpsertContact(context.Background(), "573001112233", channel.PlatformWhatsApp, ContactPatch{
			LastMessage:     "hola",
			Timestamp:       time.Now().UTC(),
			IncrementUnread: true,
			ResetManaged:    true,
		})
		if err != nil {
			mt.Fatalf("unexpected error: %v", err)
		}
		if contact.ConversationID != oid.Hex() {
			mt.Fatalf("conversation id must be the stringified _id, got %q", contact.ConversationID)
		}

		evt := mt.GetStartedEvent()
		if evt == nil || evt.CommandName != "findAndModify" {
			mt.Fatalf("expected a single findAndModify, got %+v", evt)
		}
		if !evt.Command.Lookup("upsert").Boolean() {
			mt.Fatalf("upsert must be enabled")
		}
		if !evt.Command.Lookup("new").Boolean() {
			mt.Fatalf("must return the post-update document")
		}

		update := evt.Command.Lookup("update").Document()
		set := update.Lookup("$set").Document()
		// The placeholder name lives in $setOnInsert; putting it in $set too
		// would be a path conflict and would also clobber resolved names.
		if _, err := set.LookupErr("name"); err == nil {
			mt.Fatalf("$set must not carry a name for an unresolved patch: %v", set)
		}
		if set.Lookup("gestionado").Boolean() {
			mt.Fatalf("inbound patch must force gestionado false")
		}
		if set.Lookup("last_message").StringValue() != "hola" {
			mt.Fatalf("unexpected last_message: %v", set)
		}

		setOnInsert := update.Lookup("$setOnInsert").Document()
		if setOnInsert.Lookup("name").StringValue() != "Cliente" {
			mt.Fatalf("new contacts must get the placeholder name: %v", setOnInsert)
		}
		if _, err := setOnInsert.LookupErr("conversation_id"); err != nil {
			mt.Fatalf("conversation_id must be assigned at insert: %v", setOnInsert)
		}
		if _, err := setOnInsert.LookupErr("_id"); err != nil {
			mt.Fatalf("the _id must be pre-generated so conversation_id can match it")
		}

		if inc := update.Lookup("$inc").Document(); inc.Lookup("unread").AsInt64() != 1 {
			mt.Fatalf("unexpected $inc: %v", inc)
		}
	})

	mt.Run("resolved name goes to set only", func(mt *mtest.T) {
		svc := newMockService(mt)
		oid := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: contactValue(oid)}))

		_, err := svc.UpsertContact(context.Background(), "573001112233", channel.PlatformWhatsApp, ContactPatch{
			LastMessage: "hola",
			Timestamp:   time.Now().UTC(),
			Name:        "Ana",
		})
		if err != nil {
			mt.Fatalf("unexpected error: %v", err)
		}

		update := mt.GetStartedEvent().Command.Lookup("update").Document()
		if update.Lookup("$set").Document().Lookup("name").StringValue() != "Ana" {
			mt.Fatalf("resolved name must be written: %v", update)
		}
		if _, err := update.Lookup("$setOnInsert").Document().LookupErr("name"); err == nil {
			mt.Fatalf("name must not appear in both $set and $setOnInsert: %v", update)
		}
		if _, err := update.LookupErr("$inc"); err == nil {
			mt.Fatalf("unread must not change without IncrementUnread: %v", update)
		}
	})
}

func TestListMessagesSortsAscending(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("sort option and order", func(mt *mtest.T) {
		svc := newMockService(mt)
		first := bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "conversation_id", Value: "conv-a"},
			{Key: "sender", Value: "user"},
			{Key: "type", Value: "text"},
			{Key: "content", Value: "hola"},
			{Key: "timestamp", Value: primitive.NewDateTimeFromTime(time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC))},
		}
		second := bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "conversation_id", Value: "conv-a"},
			{Key: "sender", Value: "system"},
			{Key: "type", Value: "text"},
			{Key: "content", Value: "buenas"},
			{Key: "timestamp", Value: primitive.NewDateTimeFromTime(time.Date(2025, 3, 10, 14, 5, 0, 0, time.UTC))},
		}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "chathub.messages", mtest.FirstBatch, first, second))

		messages, err := svc.ListMessages(context.Background(), "conv-a")
		if err != nil {
			mt.Fatalf("unexpected error: %v", err)
		}
		if len(messages) != 2 || messages[0].Content != "hola" || messages[1].Content != "buenas" {
			mt.Fatalf("unexpected messages: %+v", messages)
		}
		if !messages[0].Timestamp.Before(messages[1].Timestamp) {
			mt.Fatalf("history must be oldest first: %+v", messages)
		}

		evt := mt.GetStartedEvent()
		if evt.CommandName != "find" {
			mt.Fatalf("expected find, got %s", evt.CommandName)
		}
		if evt.Command.Lookup("sort").Document().Lookup("timestamp").AsInt64() != 1 {
			mt.Fatalf("messages must be requested timestamp ascending: %v", evt.Command)
		}
		if evt.Command.Lookup("filter").Document().Lookup("conversation_id").StringValue() != "conv-a" {
			mt.Fatalf("unexpected filter: %v", evt.Command)
		}
	})
}

func TestMarkManaged(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("sets gestionado and zeroes unread", func(mt *mtest.T) {
		svc := newMockService(mt)
		oid := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		if err := svc.MarkManaged(context.Background(), oid.Hex()); err != nil {
			mt.Fatalf("unexpected error: %v", err)
		}

		evt := mt.GetStartedEvent()
		if evt.CommandName != "update" {
			mt.Fatalf("expected update, got %s", evt.CommandName)
		}
		u := evt.Command.Lookup("updates").Array().Index(0).Value().Document()
		set := u.Lookup("u").Document().Lookup("$set").Document()
		if !set.Lookup("gestionado").Boolean() {
			mt.Fatalf("gestionado must be set true: %v", set)
		}
		if set.Lookup("unread").AsInt64() != 0 {
			mt.Fatalf("unread must be reset with the same write: %v", set)
		}
	})

	mt.Run("unknown contact", func(mt *mtest.T) {
		svc := newMockService(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		if err := svc.MarkManaged(context.Background(), primitive.NewObjectID().Hex()); !errors.Is(err, ErrNotFound) {
			mt.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	mt.Run("malformed id", func(mt *mtest.T) {
		svc := newMockService(mt)
		// No mock response: a malformed id must never reach the database.
		if err := svc.MarkManaged(context.Background(), "not-a-hex-id"); !errors.Is(err, ErrNotFound) {
			mt.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
