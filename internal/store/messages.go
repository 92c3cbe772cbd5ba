package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MessageRepo struct{ coll *mongo.Collection }

func NewMessageRepo(coll *mongo.Collection) *MessageRepo {
	return &MessageRepo{coll: coll}
}

func (r *MessageRepo) Insert(ctx context.Context, m *Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := r.coll.InsertOne(ctx, m)
	return err
}

// ListConversation returns messages between two users older than `before`,
// newest first.
func (r *MessageRepo) ListConversation(ctx context.Context, a, b string, before time.Time, limit int64) ([]*Message, error) {
	filter := bson.M{
		"$or": bson.A{
			bson.M{"sender_id": a, "receiver_id": b},
			bson.M{"sender_id": b, "receiver_id": a},
		},
		"created_at": bson.M{"$lt": before},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*Message
	for cur.Next(ctx) {
		var m Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, cur.Err()
}

// MarkRead flips the read flag, but only when the caller is the receiver.
// Returns the message so the change feed can notify the sender.
func (r *MessageRepo) MarkRead(ctx context.Context, msgID, receiverID string) (*Message, error) {
	filter := bson.M{"_id": msgID, "receiver_id": receiverID}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var m Message
	err := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": bson.M{"read": true}}, opts).Decode(&m)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNoDocument
		}
		return nil, err
	}
	return &m, nil
}

// ContactSummary is one contact-list row before profile joining: the peer,
// the newest message either way, and how many of their messages are unread.
type ContactSummary struct {
	PeerID string   `bson:"_id"`
	Last   *Message `bson:"last"`
	Unread int64    `bson:"unread"`
}

// Summaries aggregates the direct-message collection into one row per peer
// the user has exchanged messages with, newest conversation first.
func (r *MessageRepo) Summaries(ctx context.Context, userID string) ([]*ContactSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"$or": bson.A{bson.M{"sender_id": userID}, bson.M{"receiver_id": userID}},
		}}},
		{{Key: "$addFields", Value: bson.M{
			"peer": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$sender_id", userID}},
				"$receiver_id",
				"$sender_id",
			}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":  "$peer",
			"last": bson.M{"$first": "$$ROOT"},
			"unread": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$receiver_id", userID}},
					bson.M{"$eq": bson.A{"$read", false}},
				}},
				1, 0,
			}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last.created_at", Value: -1}}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*ContactSummary
	for cur.Next(ctx) {
		var s ContactSummary
		if err := cur.Decode(&s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, cur.Err()
}
