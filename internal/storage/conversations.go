package storage

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Abdulkalam0018/roadresq/internal/apperr"
	"github.com/Abdulkalam0018/roadresq/internal/models"
)

// ErrNotFound is returned for absent documents and malformed object ids.
var ErrNotFound = apperr.New(apperr.NotFound, "not found")

type conversationDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Participants   []string           `bson:"participants"`
	ParticipantKey string             `bson:"participant_key"`
	LastMessage    string             `bson:"last_message"`
	UnreadCount    map[string]int64   `bson:"unread_count"`
	CreatedAt      time.Time          `bson:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at"`
}

func (d *conversationDoc) toModel() *models.Conversation {
	return &models.Conversation{
		ID:             d.ID.Hex(),
		Participants:   d.Participants,
		ParticipantKey: d.ParticipantKey,
		LastMessage:    d.LastMessage,
		UnreadCount:    d.UnreadCount,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// ConversationRepo implements chat.ConversationStore on Mongo.
type ConversationRepo struct {
	coll *mongo.Collection
}

func NewConversationRepo(db *mongo.Database) *ConversationRepo {
	return &ConversationRepo{coll: db.Collection(collConversations)}
}

// GetOrCreate upserts on the canonical pair key in a single round trip, so
// concurrent first contact from both participants yields one document.
func (r *ConversationRepo) GetOrCreate(ctx context.Context, a, b string) (*models.Conversation, error) {
	now := time.Now().UTC()
	key := models.PairKey(a, b)
	update := bson.M{"$setOnInsert": bson.M{
		"participants":    []string{a, b},
		"participant_key": key,
		"last_message":    "",
		"unread_count":    map[string]int64{a: 0, b: 0},
		"created_at":      now,
		"updated_at":      now,
	}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc conversationDoc
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"participant_key": key}, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// Lost the upsert race against the peer; the document exists now.
		err = r.coll.FindOneAndUpdate(ctx, bson.M{"participant_key": key}, update, opts).Decode(&doc)
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc conversationDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.Conversation
	for cur.Next(ctx) {
		var doc conversationDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toModel())
	}
	return out, cur.Err()
}

// ApplyMessage applies the per-send conversation mutation as one atomic
// update: $inc cannot lose concurrent increments the way a read-modify-write
// of the counter would.
func (r *ConversationRepo) ApplyMessage(ctx context.Context, convID, receiverID, preview string, at time.Time) error {
	oid, err := primitive.ObjectIDFromHex(convID)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.coll.UpdateByID(ctx, oid, bson.M{
		"$set": bson.M{"last_message": preview, "updated_at": at},
		"$inc": bson.M{"unread_count." + receiverID: 1},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ConversationRepo) ResetUnread(ctx context.Context, convID, userID string) error {
	oid, err := primitive.ObjectIDFromHex(convID)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.coll.UpdateByID(ctx, oid, bson.M{
		"$set": bson.M{"unread_count." + userID: 0},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
