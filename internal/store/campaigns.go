package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dmitrymomot/campaigner/internal/models"
)

// CampaignRepository persists campaign documents with their embedded,
// ID-addressed recipient rows.
type CampaignRepository struct {
	coll *mongo.Collection
}

// Create inserts a new campaign and fills in its generated ID.
func (r *CampaignRepository) Create(ctx context.Context, c *models.Campaign) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	res, err := r.coll.InsertOne(ctx, c)
	if err != nil {
		return translateError(err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		c.ID = id
	}
	return nil
}

// GetOwned fetches a campaign by ID scoped to its owner. Returns ErrNotFound
// both when the campaign is absent and when it belongs to someone else, so
// ownership failures are indistinguishable from missing documents.
func (r *CampaignRepository) GetOwned(ctx context.Context, id, userID primitive.ObjectID) (*models.Campaign, error) {
	var c models.Campaign
	err := r.coll.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&c)
	if err != nil {
		return nil, translateError(err)
	}
	return &c, nil
}

// ListByUser returns the user's campaigns, newest first.
func (r *CampaignRepository) ListByUser(ctx context.Context, userID primitive.ObjectID, limit, offset int64) ([]models.Campaign, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)

	cur, err := r.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, translateError(err)
	}
	defer cur.Close(ctx)

	var campaigns []models.Campaign
	if err := cur.All(ctx, &campaigns); err != nil {
		return nil, translateError(err)
	}
	return campaigns, nil
}

// Replace overwrites an owned campaign document (edits from the API layer).
func (r *CampaignRepository) Replace(ctx context.Context, c *models.Campaign) error {
	c.UpdatedAt = time.Now().UTC()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": c.ID, "user_id": c.UserID}, c)
	if err != nil {
		return translateError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an owned campaign.
func (r *CampaignRepository) Delete(ctx context.Context, id, userID primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return translateError(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStatus updates the campaign lifecycle status.
func (r *CampaignRepository) SetStatus(ctx context.Context, id primitive.ObjectID, status models.CampaignStatus) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": status, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return translateError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRecipientStatus updates one embedded recipient row by its stable ID.
// lastError is only stored for failed rows.
func (r *CampaignRepository) SetRecipientStatus(ctx context.Context, campaignID primitive.ObjectID, recipientID string, status models.RecipientStatus, lastError string) error {
	set := bson.M{
		"recipients.$.status": status,
		"updated_at":          time.Now().UTC(),
	}
	if lastError != "" {
		set["recipients.$.last_error"] = lastError
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": campaignID, "recipients.id": recipientID},
		bson.M{"$set": set},
	)
	if err != nil {
		return translateError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkRecipientsSent flips a set of recipient rows to sent in one update.
func (r *CampaignRepository) MarkRecipientsSent(ctx context.Context, campaignID primitive.ObjectID, recipientIDs []string) error {
	if len(recipientIDs) == 0 {
		return nil
	}

	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []any{bson.M{"row.id": bson.M{"$in": recipientIDs}}},
	})

	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": campaignID},
		bson.M{"$set": bson.M{
			"recipients.$[row].status": models.RecipientSent,
			"updated_at":               time.Now().UTC(),
		}},
		opts,
	)
	return translateError(err)
}

// ClaimDue atomically claims up to limit campaigns whose schedule has come
// due, flipping each from scheduled to sending as part of selection so that
// overlapping ticks can never pick up the same campaign twice. Claims are
// made in ascending scheduled-time order.
func (r *CampaignRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.Campaign, error) {
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "scheduled_at", Value: 1}}).
		SetReturnDocument(options.After)

	filter := bson.M{
		"status":       models.CampaignScheduled,
		"scheduled_at": bson.M{"$lte": now},
	}
	update := bson.M{
		"$set": bson.M{
			"status":     models.CampaignSending,
			"updated_at": time.Now().UTC(),
		},
	}

	var claimed []models.Campaign
	for len(claimed) < limit {
		var c models.Campaign
		err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&c)
		if errors.Is(err, mongo.ErrNoDocuments) {
			break
		}
		if err != nil {
			return claimed, translateError(err)
		}
		claimed = append(claimed, c)
	}
	return claimed, nil
}
