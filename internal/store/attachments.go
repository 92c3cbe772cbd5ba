package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// AttachmentIndex answers whether a media object appears in a conversation
// the user is part of.
type AttachmentIndex struct {
	messages      *mongo.Collection
	groupMessages *mongo.Collection
	members       *mongo.Collection
}

func NewAttachmentIndex(messages, groupMessages, members *mongo.Collection) *AttachmentIndex {
	return &AttachmentIndex{messages: messages, groupMessages: groupMessages, members: members}
}

// Visible reports whether userID sent or received a direct message carrying
// the attachment, or belongs to a group whose history carries it.
func (a *AttachmentIndex) Visible(ctx context.Context, userID, mediaID string) (bool, error) {
	n, err := a.messages.CountDocuments(ctx, bson.M{
		"file.id": mediaID,
		"$or":     bson.A{bson.M{"sender_id": userID}, bson.M{"receiver_id": userID}},
	})
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	groupIDs, err := a.groupMessages.Distinct(ctx, "group_id", bson.M{"file.id": mediaID})
	if err != nil {
		return false, err
	}
	if len(groupIDs) == 0 {
		return false, nil
	}
	n, err = a.members.CountDocuments(ctx, bson.M{
		"group_id": bson.M{"$in": groupIDs},
		"user_id":  userID,
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
