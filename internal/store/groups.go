package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type GroupRepo struct {
	coll    *mongo.Collection
	members *mongo.Collection
}

func NewGroupRepo(groups, members *mongo.Collection) *GroupRepo {
	return &GroupRepo{coll: groups, members: members}
}

func (r *GroupRepo) Create(ctx context.Context, g *Group, creator *GroupMember) error {
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now
	if _, err := r.coll.InsertOne(ctx, g); err != nil {
		return err
	}
	creator.JoinedAt = now
	creator.LastReadAt = now
	_, err := r.members.InsertOne(ctx, creator)
	return err
}

func (r *GroupRepo) Get(ctx context.Context, id string) (*Group, error) {
	var g Group
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNoDocument
		}
		return nil, err
	}
	return &g, nil
}

func (r *GroupRepo) Update(ctx context.Context, id string, fields bson.M) (*Group, error) {
	fields["updated_at"] = time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var g Group
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": fields}, opts).Decode(&g)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNoDocument
		}
		return nil, err
	}
	return &g, nil
}

// Delete removes the group and its membership rows. Messages are left in
// place; history views are membership-gated so they become unreachable.
func (r *GroupRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.members.DeleteMany(ctx, bson.M{"group_id": id}); err != nil {
		return err
	}
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *GroupRepo) ListForUser(ctx context.Context, userID string) ([]*Group, map[string]*GroupMember, error) {
	cur, err := r.members.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, nil, err
	}
	memberships := make(map[string]*GroupMember)
	ids := make([]string, 0)
	for cur.Next(ctx) {
		var m GroupMember
		if err := cur.Decode(&m); err != nil {
			cur.Close(ctx)
			return nil, nil, err
		}
		memberships[m.GroupID] = &m
		ids = append(ids, m.GroupID)
	}
	cur.Close(ctx)
	if len(ids) == 0 {
		return nil, memberships, nil
	}

	gcur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, nil, err
	}
	defer gcur.Close(ctx)
	var groups []*Group
	for gcur.Next(ctx) {
		var g Group
		if err := gcur.Decode(&g); err != nil {
			return nil, nil, err
		}
		groups = append(groups, &g)
	}
	return groups, memberships, gcur.Err()
}

func (r *GroupRepo) Member(ctx context.Context, groupID, userID string) (*GroupMember, error) {
	var m GroupMember
	err := r.members.FindOne(ctx, bson.M{"group_id": groupID, "user_id": userID}).Decode(&m)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNoDocument
		}
		return nil, err
	}
	return &m, nil
}

func (r *GroupRepo) Members(ctx context.Context, groupID string) ([]*GroupMember, error) {
	cur, err := r.members.Find(ctx, bson.M{"group_id": groupID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*GroupMember
	for cur.Next(ctx) {
		var m GroupMember
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, cur.Err()
}

func (r *GroupRepo) AddMember(ctx context.Context, m *GroupMember) error {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{"role": m.Role},
		"$setOnInsert": bson.M{
			"joined_at":    now,
			"last_read_at": now,
		},
	}
	filter := bson.M{"group_id": m.GroupID, "user_id": m.UserID}
	_, err := r.members.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (r *GroupRepo) RemoveMember(ctx context.Context, groupID, userID string) error {
	res, err := r.members.DeleteOne(ctx, bson.M{"group_id": groupID, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNoDocument
	}
	return nil
}

func (r *GroupRepo) SetRole(ctx context.Context, groupID, userID, role string) error {
	res, err := r.members.UpdateOne(ctx,
		bson.M{"group_id": groupID, "user_id": userID},
		bson.M{"$set": bson.M{"role": role}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoDocument
	}
	return nil
}

func (r *GroupRepo) CountAdmins(ctx context.Context, groupID string) (int64, error) {
	return r.members.CountDocuments(ctx, bson.M{"group_id": groupID, "role": RoleAdmin})
}

// SetLastRead advances the member's read watermark; it never moves backwards.
func (r *GroupRepo) SetLastRead(ctx context.Context, groupID, userID string, ts time.Time) error {
	_, err := r.members.UpdateOne(ctx,
		bson.M{"group_id": groupID, "user_id": userID},
		bson.M{"$max": bson.M{"last_read_at": ts.UTC()}})
	return err
}
