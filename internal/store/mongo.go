package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNoDocument = errors.New("not found")

// Store bundles the per-collection repositories over one database handle.
type Store struct {
	client *mongo.Client

	Profiles      *ProfileRepo
	Messages      *MessageRepo
	Groups        *GroupRepo
	GroupMessages *GroupMessageRepo
	Media         *MediaRepo
	Attachments   *AttachmentIndex
}

func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, err
	}

	db := client.Database(database)
	s := &Store{
		client:        client,
		Profiles:      NewProfileRepo(db.Collection("profiles")),
		Messages:      NewMessageRepo(db.Collection("messages")),
		Groups:        NewGroupRepo(db.Collection("groups"), db.Collection("group_members")),
		GroupMessages: NewGroupMessageRepo(db.Collection("group_messages")),
		Media:         NewMediaRepo(db.Collection("media")),
		Attachments:   NewAttachmentIndex(db.Collection("messages"), db.Collection("group_messages"), db.Collection("group_members")),
	}
	s.ensureIndexes(ctx)
	return s, nil
}

func (s *Store) Disconnect(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) {
	// best-effort, same as the first connect wins on a shared cluster
	idx := func(coll *mongo.Collection, models ...mongo.IndexModel) {
		_, _ = coll.Indexes().CreateMany(ctx, models)
	}
	idx(s.Messages.coll,
		mongo.IndexModel{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "created_at", Value: -1}}},
		mongo.IndexModel{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "read", Value: 1}}},
	)
	idx(s.GroupMessages.coll,
		mongo.IndexModel{Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "created_at", Value: -1}}},
	)
	idx(s.Groups.members,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("group_user_idx"),
		},
		mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}}},
	)
	idx(s.Media.coll,
		mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	)
}
