// Package store implements persistence on MongoDB: campaign documents with
// embedded recipients, user records carrying mailbox authorization state, the
// append-only send log, and per-user variable definitions.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	connectTimeout = 10 * time.Second

	usersCollection     = "users"
	campaignsCollection = "campaigns"
	variablesCollection = "variables"
	sendLogCollection   = "send_log"
	groupsCollection    = "groups"
	templatesCollection = "templates"
)

// Store bundles the repositories backed by a single MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database

	Users     *UserRepository
	Campaigns *CampaignRepository
	Variables *VariableRepository
	SendLog   *SendLogRepository
	Groups    *GroupRepository
	Templates *TemplateRepository
}

// Connect establishes a MongoDB connection, verifies it with a ping, and
// returns the repository bundle.
func Connect(ctx context.Context, uri, database string, log *slog.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:    client,
		db:        db,
		Users:     &UserRepository{coll: db.Collection(usersCollection)},
		Campaigns: &CampaignRepository{coll: db.Collection(campaignsCollection)},
		Variables: &VariableRepository{coll: db.Collection(variablesCollection)},
		SendLog:   &SendLogRepository{coll: db.Collection(sendLogCollection)},
		Groups:    &GroupRepository{coll: db.Collection(groupsCollection)},
		Templates: &TemplateRepository{coll: db.Collection(templatesCollection)},
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, err
	}

	log.Info("store connected", slog.String("database", database))
	return s, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	specs := map[*mongo.Collection][]mongo.IndexModel{
		s.Users.coll: {
			{Keys: bson.D{{Key: "subject", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "auth_state", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		s.Campaigns.coll: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduled_at", Value: 1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		s.Variables.coll: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "key", Value: 1}}, Options: unique},
		},
		s.SendLog.coll: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "sent_at", Value: 1}}},
		},
		s.Groups.coll: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}}},
		},
		s.Templates.coll: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}}},
		},
	}

	for coll, models := range specs {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("store: indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}
