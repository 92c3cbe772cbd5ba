package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type GroupMessageRepo struct{ coll *mongo.Collection }

func NewGroupMessageRepo(coll *mongo.Collection) *GroupMessageRepo {
	return &GroupMessageRepo{coll: coll}
}

func (r *GroupMessageRepo) Insert(ctx context.Context, m *GroupMessage) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := r.coll.InsertOne(ctx, m)
	return err
}

func (r *GroupMessageRepo) List(ctx context.Context, groupID string, before time.Time, limit int64) ([]*GroupMessage, error) {
	filter := bson.M{"group_id": groupID, "created_at": bson.M{"$lt": before}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*GroupMessage
	for cur.Next(ctx) {
		var m GroupMessage
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, cur.Err()
}

func (r *GroupMessageRepo) Last(ctx context.Context, groupID string) (*GroupMessage, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var m GroupMessage
	err := r.coll.FindOne(ctx, bson.M{"group_id": groupID}, opts).Decode(&m)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNoDocument
		}
		return nil, err
	}
	return &m, nil
}

// CountSince counts messages newer than the member's read watermark,
// excluding the member's own.
func (r *GroupMessageRepo) CountSince(ctx context.Context, groupID, userID string, since time.Time) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{
		"group_id":   groupID,
		"sender_id":  bson.M{"$ne": userID},
		"created_at": bson.M{"$gt": since},
	})
}
