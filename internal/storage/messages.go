package storage

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Abdulkalam0018/roadresq/internal/models"
)

type messageDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	ConversationID string             `bson:"conversation_id"`
	SenderID       string             `bson:"sender_id"`
	ReceiverID     string             `bson:"receiver_id"`
	Content        string             `bson:"content"`
	Read           bool               `bson:"read"`
	CreatedAt      time.Time          `bson:"created_at"`
}

func (d *messageDoc) toModel() *models.Message {
	return &models.Message{
		ID:             d.ID.Hex(),
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		ReceiverID:     d.ReceiverID,
		Content:        d.Content,
		Read:           d.Read,
		CreatedAt:      d.CreatedAt,
	}
}

// MessageRepo implements chat.MessageStore on Mongo.
type MessageRepo struct {
	coll *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) *MessageRepo {
	return &MessageRepo{coll: db.Collection(collMessages)}
}

func (r *MessageRepo) Insert(ctx context.Context, m *models.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	doc := messageDoc{
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Content:        m.Content,
		Read:           m.Read,
		CreatedAt:      m.CreatedAt,
	}
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return err
	}
	m.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return nil
}

// ListPage pages back from the newest message and re-sorts ascending so the
// page reads chronologically.
func (r *MessageRepo) ListPage(ctx context.Context, convID string, page, limit int64) ([]*models.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)
	cur, err := r.coll.Find(ctx, bson.M{"conversation_id": convID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.Message
	for cur.Next(ctx) {
		var doc messageDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toModel())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *MessageRepo) MarkRead(ctx context.Context, convID, receiverID string) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"conversation_id": convID, "receiver_id": receiverID, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
