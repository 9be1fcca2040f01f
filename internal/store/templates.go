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

// TemplateRepository persists saved subject/body templates.
type TemplateRepository struct {
	coll *mongo.Collection
}

// Create inserts a new template and fills in its generated ID.
func (r *TemplateRepository) Create(ctx context.Context, t *models.Template) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	res, err := r.coll.InsertOne(ctx, t)
	if err != nil {
		return translateError(err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		t.ID = id
	}
	return nil
}

// GetOwned fetches a template by ID scoped to its owner.
func (r *TemplateRepository) GetOwned(ctx context.Context, id, userID primitive.ObjectID) (*models.Template, error) {
	var t models.Template
	err := r.coll.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&t)
	if err != nil {
		return nil, translateError(err)
	}
	return &t, nil
}

// ListByUser returns the user's templates, most recently updated first.
func (r *TemplateRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Template, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	cur, err := r.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, translateError(err)
	}

	var templates []models.Template
	if err := cur.All(ctx, &templates); err != nil {
		return nil, translateError(err)
	}
	return templates, nil
}

// Delete removes a template scoped to its owner.
func (r *TemplateRepository) Delete(ctx context.Context, id, userID primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return translateError(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
