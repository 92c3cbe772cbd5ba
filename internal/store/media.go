package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type MediaRepo struct{ coll *mongo.Collection }

func NewMediaRepo(coll *mongo.Collection) *MediaRepo {
	return &MediaRepo{coll: coll}
}

func (r *MediaRepo) Insert(ctx context.Context, m *Media) error {
	_, err := r.coll.InsertOne(ctx, m)
	return err
}

func (r *MediaRepo) Get(ctx context.Context, id string) (*Media, error) {
	var m Media
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNoDocument
		}
		return nil, err
	}
	return &m, nil
}
