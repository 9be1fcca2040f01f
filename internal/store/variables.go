package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dmitrymomot/campaigner/internal/models"
)

// VariableRepository persists per-user variable definitions. Keys are unique
// per user, enforced by index.
type VariableRepository struct {
	coll *mongo.Collection
}

// Create inserts a definition. Returns ErrDuplicate if the user already has
// a variable with the same key.
func (r *VariableRepository) Create(ctx context.Context, v *models.Variable) error {
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now

	res, err := r.coll.InsertOne(ctx, v)
	if err != nil {
		return translateError(err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		v.ID = id
	}
	return nil
}

// ListByUser returns the user's definitions sorted by key.
func (r *VariableRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Variable, error) {
	opts := options.Find().SetSort(bson.D{{Key: "key", Value: 1}})

	cur, err := r.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, translateError(err)
	}
	defer cur.Close(ctx)

	var vars []models.Variable
	if err := cur.All(ctx, &vars); err != nil {
		return nil, translateError(err)
	}
	return vars, nil
}

// Update rewrites the label, required flag, and description of an owned
// definition. The key itself is immutable once created.
func (r *VariableRepository) Update(ctx context.Context, v *models.Variable) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": v.ID, "user_id": v.UserID},
		bson.M{"$set": bson.M{
			"label":       v.Label,
			"required":    v.Required,
			"description": v.Description,
			"updated_at":  time.Now().UTC(),
		}},
	)
	if err != nil {
		return translateError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an owned definition.
func (r *VariableRepository) Delete(ctx context.Context, id, userID primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return translateError(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
