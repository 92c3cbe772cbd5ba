package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ProfileRepo struct{ coll *mongo.Collection }

func NewProfileRepo(coll *mongo.Collection) *ProfileRepo {
	return &ProfileRepo{coll: coll}
}

// Upsert creates the profile row on first sign-in and refreshes the email on
// later ones. Display name is only written when the row is new.
func (r *ProfileRepo) Upsert(ctx context.Context, id, email, displayName string) (*Profile, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{"email": email},
		"$setOnInsert": bson.M{
			"display_name":  displayName,
			"online_status": StatusOffline,
			"last_seen":     now,
			"created_at":    now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var p Profile
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProfileRepo) Get(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNoDocument
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProfileRepo) GetMany(ctx context.Context, ids []string) (map[string]*Profile, error) {
	out := make(map[string]*Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var p Profile
		if err := cur.Decode(&p); err != nil {
			return nil, err
		}
		out[p.ID] = &p
	}
	return out, cur.Err()
}

func (r *ProfileRepo) Update(ctx context.Context, id string, fields bson.M) (*Profile, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p Profile
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": fields}, opts).Decode(&p)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNoDocument
		}
		return nil, err
	}
	return &p, nil
}

// SetPresence mirrors the realtime presence marker into the profile row so
// list queries can render status without a Redis round trip.
func (r *ProfileRepo) SetPresence(ctx context.Context, id, status string, lastSeen time.Time) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"online_status": status,
		"last_seen":     lastSeen.UTC(),
	}})
	return err
}
