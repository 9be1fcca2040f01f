package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/dmitrymomot/campaigner/internal/models"
)

// SendLogRepository appends and counts send log entries. The log is
// append-only: entries feed the daily quota computation and nothing else.
type SendLogRepository struct {
	coll *mongo.Collection
}

// Append records one successfully sent message.
func (r *SendLogRepository) Append(ctx context.Context, userID primitive.ObjectID, sentAt time.Time) error {
	_, err := r.coll.InsertOne(ctx, models.SendLog{
		UserID: userID,
		SentAt: sentAt.UTC(),
	})
	return translateError(err)
}

// CountSince returns the number of entries for a user at or after the given
// instant.
func (r *SendLogRepository) CountSince(ctx context.Context, userID primitive.ObjectID, since time.Time) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{
		"user_id": userID,
		"sent_at": bson.M{"$gte": since.UTC()},
	})
	return n, translateError(err)
}
