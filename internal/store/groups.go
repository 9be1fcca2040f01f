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

// GroupRepository persists reusable recipient lists.
type GroupRepository struct {
	coll *mongo.Collection
}

// Create inserts a new group and fills in its generated ID.
func (r *GroupRepository) Create(ctx context.Context, g *models.Group) error {
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now

	res, err := r.coll.InsertOne(ctx, g)
	if err != nil {
		return translateError(err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		g.ID = id
	}
	return nil
}

// GetOwned fetches a group by ID scoped to its owner.
func (r *GroupRepository) GetOwned(ctx context.Context, id, userID primitive.ObjectID) (*models.Group, error) {
	var g models.Group
	err := r.coll.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&g)
	if err != nil {
		return nil, translateError(err)
	}
	return &g, nil
}

// ListByUser returns the user's groups, most recently updated first.
func (r *GroupRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	cur, err := r.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, translateError(err)
	}

	var groups []models.Group
	if err := cur.All(ctx, &groups); err != nil {
		return nil, translateError(err)
	}
	return groups, nil
}

// AppendRecipients adds rows to a group, skipping emails the group already
// holds, and returns how many were actually added.
func (r *GroupRepository) AppendRecipients(ctx context.Context, id, userID primitive.ObjectID, additions []models.GroupRecipient) (int, error) {
	g, err := r.GetOwned(ctx, id, userID)
	if err != nil {
		return 0, err
	}

	existing := make(map[string]struct{}, len(g.Recipients))
	for _, rec := range g.Recipients {
		existing[rec.Email] = struct{}{}
	}
	var fresh []models.GroupRecipient
	for _, rec := range additions {
		if _, ok := existing[rec.Email]; ok {
			continue
		}
		existing[rec.Email] = struct{}{}
		fresh = append(fresh, rec)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{
			"$push": bson.M{"recipients": bson.M{"$each": fresh}},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return 0, translateError(err)
	}
	if res.MatchedCount == 0 {
		return 0, ErrNotFound
	}
	return len(fresh), nil
}

// Delete removes a group scoped to its owner.
func (r *GroupRepository) Delete(ctx context.Context, id, userID primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return translateError(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
