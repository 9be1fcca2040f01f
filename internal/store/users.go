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

// UserRepository persists account records and the mailbox authorization state
// embedded in them.
type UserRepository struct {
	coll *mongo.Collection
}

// GetByID fetches a user by primary key.
func (r *UserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

// UpsertBySubject creates or refreshes the user record for an identity
// provider subject and returns the current document.
func (r *UserRepository) UpsertBySubject(ctx context.Context, subject, email, displayName string) (*models.User, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"email":        email,
			"display_name": displayName,
			"updated_at":   now,
		},
		"$setOnInsert": bson.M{
			"subject":           subject,
			"mailbox_connected": false,
			"created_at":        now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var user models.User
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"subject": subject}, update, opts).Decode(&user)
	if err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

// SetAuthState stores the one-time handshake state token and its expiry,
// replacing any previous unexpired token.
func (r *UserRepository) SetAuthState(ctx context.Context, id primitive.ObjectID, state string, expiresAt time.Time) error {
	return r.updateOne(ctx, id, bson.M{
		"$set": bson.M{
			"auth_state":            state,
			"auth_state_expires_at": expiresAt,
			"updated_at":            time.Now().UTC(),
		},
	})
}

// FindByAuthState looks a user up by handshake state token. Expiry is the
// caller's concern so expired and unknown tokens can fail differently.
func (r *UserRepository) FindByAuthState(ctx context.Context, state string) (*models.User, error) {
	var user models.User
	err := r.coll.FindOne(ctx, bson.M{"auth_state": state}).Decode(&user)
	if err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

// ClearAuthState drops the handshake state token. Idempotent.
func (r *UserRepository) ClearAuthState(ctx context.Context, id primitive.ObjectID) error {
	return r.updateOne(ctx, id, bson.M{
		"$unset": bson.M{"auth_state": "", "auth_state_expires_at": ""},
		"$set":   bson.M{"updated_at": time.Now().UTC()},
	})
}

// SaveCredential stores the encrypted long-lived credential and marks the
// mailbox connected.
func (r *UserRepository) SaveCredential(ctx context.Context, id primitive.ObjectID, encrypted, mailboxEmail string) error {
	set := bson.M{
		"encrypted_refresh_token": encrypted,
		"mailbox_connected":       true,
		"updated_at":              time.Now().UTC(),
	}
	if mailboxEmail != "" {
		set["mailbox_email"] = mailboxEmail
	}
	return r.updateOne(ctx, id, bson.M{"$set": set})
}

// ClearCredential removes the stored credential, the connected flag, and the
// cached sender identity. Idempotent.
func (r *UserRepository) ClearCredential(ctx context.Context, id primitive.ObjectID) error {
	return r.updateOne(ctx, id, bson.M{
		"$unset": bson.M{
			"encrypted_refresh_token": "",
			"mailbox_email":           "",
			"sender_identity":         "",
		},
		"$set": bson.M{
			"mailbox_connected": false,
			"updated_at":        time.Now().UTC(),
		},
	})
}

// SaveSenderIdentity caches the resolved send-as identity on the user record.
func (r *UserRepository) SaveSenderIdentity(ctx context.Context, id primitive.ObjectID, identity *models.SenderIdentity) error {
	return r.updateOne(ctx, id, bson.M{
		"$set": bson.M{
			"sender_identity": identity,
			"updated_at":      time.Now().UTC(),
		},
	})
}

// SetSenderDisplayName stores the user's preferred default sender name.
func (r *UserRepository) SetSenderDisplayName(ctx context.Context, id primitive.ObjectID, name string) error {
	return r.updateOne(ctx, id, bson.M{
		"$set": bson.M{
			"sender_display_name": name,
			"updated_at":          time.Now().UTC(),
		},
	})
}

func (r *UserRepository) updateOne(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return translateError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
