package storage

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Abdulkalam0018/roadresq/internal/models"
)

type userDoc struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Username string             `bson:"username"`
	FullName string             `bson:"full_name"`
	Avatar   string             `bson:"avatar,omitempty"`
	UserType string             `bson:"user_type"`
}

func (d *userDoc) toModel() *models.User {
	return &models.User{
		ID:       d.ID.Hex(),
		Username: d.Username,
		FullName: d.FullName,
		Avatar:   d.Avatar,
		UserType: d.UserType,
	}
}

// UserRepo is a read-only view over the account service's users collection,
// just enough to resolve display info and validate that a peer exists.
type UserRepo struct {
	coll *mongo.Collection
}

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{coll: db.Collection(collUsers)}
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc userDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (r *UserRepo) FindByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	out := make(map[string]*models.User, len(oids))
	if len(oids) == 0 {
		return out, nil
	}
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var doc userDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		u := doc.toModel()
		out[u.ID] = u
	}
	return out, cur.Err()
}
