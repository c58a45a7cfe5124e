package storage

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Abdulkalam0018/roadresq/internal/config"
)

const (
	collConversations = "conversations"
	collMessages      = "messages"
	collUsers         = "users"
)

// Connect dials Mongo, verifies the connection and ensures the indexes the
// chat core relies on.
func Connect(ctx context.Context, cfg config.MongoCfg) (*mongo.Database, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(dialCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(dialCtx, nil); err != nil {
		return nil, err
	}
	db := client.Database(cfg.Database)
	if err := ensureIndexes(dialCtx, db); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	// The unique pair key is what makes get-or-create converge under
	// concurrent first contact from both participants.
	_, err := db.Collection(collConversations).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "participant_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("participant_key_uniq"),
		},
		{
			Keys:    bson.D{{Key: "participants", Value: 1}},
			Options: options.Index().SetName("participants_idx"),
		},
	})
	if err != nil {
		return err
	}
	_, err = db.Collection(collMessages).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
		Options: options.Index().SetName("conversation_created_idx"),
	})
	return err
}
